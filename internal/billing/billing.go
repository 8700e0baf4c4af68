// Package billing derives monetary amounts from session durations. All
// functions are pure; amounts stay exact decimals internally and are rounded
// only at display boundaries.
package billing

import (
	"time"

	"github.com/shopspring/decimal"

	"cafedeck/internal/models"
)

var msPerHour = decimal.NewFromInt(3_600_000)

// SessionAmount bills one archived session: elapsed hours times the hourly
// rate. Prepaid quick-pack amounts are advisory only and never enter here.
func SessionAmount(p models.PastSession, hourlyRate decimal.Decimal) decimal.Decimal {
	ms := p.EndTime.Sub(p.StartTime).Milliseconds()
	if ms <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(ms).Div(msPerHour).Mul(hourlyRate)
}

// DailyRevenue groups one station's session amounts by the operator-local
// calendar date of each session's end, keyed YYYY-MM-DD.
func DailyRevenue(past []models.PastSession, hourlyRate decimal.Decimal, loc *time.Location) map[string]decimal.Decimal {
	if loc == nil {
		loc = time.Local
	}
	out := make(map[string]decimal.Decimal)
	for _, p := range past {
		day := p.EndTime.In(loc).Format("2006-01-02")
		out[day] = out[day].Add(SessionAmount(p, hourlyRate))
	}
	return out
}

// NetworkDailyRevenue rolls up DailyRevenue across all stations, each billed
// at its own hourly rate.
func NetworkDailyRevenue(stations []models.Station, loc *time.Location) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, st := range stations {
		for day, amount := range DailyRevenue(st.PastSessions, st.HourlyRate, loc) {
			out[day] = out[day].Add(amount)
		}
	}
	return out
}

// PercentChange returns (today-yesterday)/yesterday*100. The comparison is
// undefined when yesterday is zero; ok is false and no division happens.
func PercentChange(today, yesterday decimal.Decimal) (decimal.Decimal, bool) {
	if yesterday.IsZero() {
		return decimal.Zero, false
	}
	return today.Sub(yesterday).Div(yesterday).Mul(decimal.NewFromInt(100)), true
}

// Summary is the revenue header shown on the dashboard.
type Summary struct {
	Today         decimal.Decimal
	Yesterday     decimal.Decimal
	PercentChange *decimal.Decimal
}

// Summarize compares today's revenue with yesterday's. PercentChange is nil
// when yesterday had no revenue.
func Summarize(stations []models.Station, now time.Time, loc *time.Location) Summary {
	if loc == nil {
		loc = time.Local
	}
	byDay := NetworkDailyRevenue(stations, loc)
	today := byDay[now.In(loc).Format("2006-01-02")]
	yesterday := byDay[now.In(loc).AddDate(0, 0, -1).Format("2006-01-02")]

	sum := Summary{Today: today, Yesterday: yesterday}
	if pct, ok := PercentChange(today, yesterday); ok {
		sum.PercentChange = &pct
	}
	return sum
}
