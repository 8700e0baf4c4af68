package httpserver

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"time"

	"cafedeck/internal/billing"
	"cafedeck/internal/gateway"
	"cafedeck/internal/store"
	"cafedeck/internal/ws"
)

// Handlers serves the operator API: read-only views over the live station
// snapshot plus action endpoints forwarded to the gateway. Reads never mutate
// the store; all mutation flows through the gateway's optimistic path.
type Handlers struct {
	Store    *store.Store
	Gateway  *gateway.Gateway
	Conn     *ws.Client
	Location *time.Location
	Now      func() time.Time
}

// StationsCollection serves GET (snapshot list) and POST (deploy station).
func (h *Handlers) StationsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"stations": h.Store.Snapshot(),
		})
	case http.MethodPost:
		h.createStation(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// StationSubtree serves /stations/{id} and its action sub-paths.
func (h *Handlers) StationSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/stations/")
	parts := strings.SplitN(rest, "/", 2)
	id := parts[0]
	if id == "" {
		writeError(w, http.StatusBadRequest, "station id required")
		return
	}

	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		h.getStation(w, id)
	case action == "" && r.Method == http.MethodDelete:
		h.deleteStation(w, r, id)
	case r.Method == http.MethodPost:
		h.stationAction(w, r, id, action)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handlers) getStation(w http.ResponseWriter, id string) {
	st, ok := h.Store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "station not found")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Revenue returns the revenue-by-day rollup plus the today/yesterday header.
func (h *Handlers) Revenue(w http.ResponseWriter, r *http.Request) {
	snapshot := h.Store.Snapshot()
	byDay := billing.NetworkDailyRevenue(snapshot, h.Location)

	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)

	rows := make([]map[string]string, 0, len(days))
	for _, day := range days {
		rows = append(rows, map[string]string{
			"date":   day,
			"amount": byDay[day].StringFixed(2),
		})
	}

	summary := billing.Summarize(snapshot, h.Now(), h.Location)
	resp := map[string]interface{}{
		"days":      rows,
		"today":     summary.Today.StringFixed(2),
		"yesterday": summary.Yesterday.StringFixed(2),
	}
	if summary.PercentChange != nil {
		resp["percentChange"] = summary.PercentChange.StringFixed(1)
	}
	writeJSON(w, http.StatusOK, resp)
}

// QuickPacks returns the static start-session pricing table.
func (h *Handlers) QuickPacks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"quickPacks": billing.QuickPacks(),
	})
}

// Connection reports the event-channel state; transport failures surface here
// as a status indicator, never as a blocking error.
func (h *Handlers) Connection(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"state":             h.Conn.State(),
		"reconnectAttempts": h.Conn.Attempts(),
	})
}

// Health is a liveness probe.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
