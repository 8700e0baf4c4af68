package billing

import "github.com/shopspring/decimal"

// QuickPack is a predefined duration/price shortcut offered when starting a
// session. The price pre-fills the prepaid amount; the billed amount is always
// computed from elapsed time once the session ends.
type QuickPack struct {
	Label   string          `json:"label"`
	Minutes int             `json:"minutes"`
	Price   decimal.Decimal `json:"price"`
}

var quickPacks = []QuickPack{
	{Label: "30 min", Minutes: 30, Price: decimal.NewFromInt(60)},
	{Label: "1 hour", Minutes: 60, Price: decimal.NewFromInt(100)},
	{Label: "2 hours", Minutes: 120, Price: decimal.NewFromInt(180)},
	{Label: "5 hours", Minutes: 300, Price: decimal.NewFromInt(400)},
}

// QuickPacks returns the static pricing table.
func QuickPacks() []QuickPack {
	out := make([]QuickPack, len(quickPacks))
	copy(out, quickPacks)
	return out
}

// QuickPackByMinutes looks up a pack by duration for start-session pre-fill.
func QuickPackByMinutes(minutes int) (QuickPack, bool) {
	for _, p := range quickPacks {
		if p.Minutes == minutes {
			return p, true
		}
	}
	return QuickPack{}, false
}
