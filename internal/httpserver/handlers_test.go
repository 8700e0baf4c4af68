package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cafedeck/internal/clients"
	"cafedeck/internal/gateway"
	"cafedeck/internal/models"
	"cafedeck/internal/store"
	"cafedeck/internal/ws"
)

var testNow = time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

type stubAPI struct {
	fail bool
}

func (s *stubAPI) err() error {
	if s.fail {
		return errors.New("backend down")
	}
	return nil
}

func (s *stubAPI) LockStation(ctx context.Context, stationID, assignee string) error {
	return s.err()
}

func (s *stubAPI) UnlockStation(ctx context.Context, stationID string) error { return s.err() }

func (s *stubAPI) StartSession(ctx context.Context, stationID, customerName string, minutes int, prepaid decimal.Decimal) (*clients.SessionPayload, error) {
	if err := s.err(); err != nil {
		return nil, err
	}
	return &clients.SessionPayload{SessionID: "srv-1", TimeRemaining: minutes}, nil
}

func (s *stubAPI) EndSession(ctx context.Context, sessionID string) (*clients.SessionPayload, error) {
	if err := s.err(); err != nil {
		return nil, err
	}
	return &clients.SessionPayload{SessionID: sessionID}, nil
}

func (s *stubAPI) AddTime(ctx context.Context, sessionID string, minutes int) (*clients.SessionPayload, error) {
	if err := s.err(); err != nil {
		return nil, err
	}
	return &clients.SessionPayload{SessionID: sessionID}, nil
}

func (s *stubAPI) SetHandRaised(ctx context.Context, stationID string, raised bool) error {
	return s.err()
}

func (s *stubAPI) CreateStation(ctx context.Context, st models.Station) (*models.Station, error) {
	if err := s.err(); err != nil {
		return nil, err
	}
	created := st
	created.ID = "srv-" + st.Name
	return &created, nil
}

func (s *stubAPI) DeleteStation(ctx context.Context, stationID string) error { return s.err() }

func fixtureStations() []models.Station {
	billed := models.Station{
		ID:         "st-1",
		Name:       "PC-01",
		Type:       models.StationTypePC,
		HourlyRate: decimal.NewFromInt(100),
		Status:     models.StatusAvailable,
		Online:     true,
		PastSessions: []models.PastSession{{
			ID:           "sess-old",
			CustomerName: "alex",
			StartTime:    testNow.Add(-2 * time.Hour),
			EndTime:      testNow.Add(-30 * time.Minute), // 1.5h at 100/h
		}},
	}
	idle := models.Station{
		ID:         "st-2",
		Name:       "PS5-01",
		Type:       models.StationTypePS5,
		HourlyRate: decimal.NewFromInt(150),
		Status:     models.StatusAvailable,
		Online:     true,
	}
	return []models.Station{billed, idle}
}

func newTestServer(t *testing.T, api *stubAPI) (*httptest.Server, *store.Store) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(testNow)
	logger := zap.NewNop()

	st := store.New(clock, time.Minute, logger)
	st.Hydrate(fixtureStations())

	gw := gateway.New(st, api, gateway.LogNotifier{Logger: logger}, clock, logger)
	conn := ws.NewClient(ws.Config{URL: "ws://127.0.0.1:1"}, clock, logger)

	h := &Handlers{
		Store:    st,
		Gateway:  gw,
		Conn:     conn,
		Location: time.UTC,
		Now:      clock.Now,
	}
	srv := httptest.NewServer(NewRouter(Routes{
		StationsCollection: h.StationsCollection,
		StationSubtree:     h.StationSubtree,
		Revenue:            h.Revenue,
		QuickPacks:         h.QuickPacks,
		Connection:         h.Connection,
		Health:             h.Health,
	}))
	t.Cleanup(srv.Close)
	return srv, st
}

func doJSON(t *testing.T, method, url, body string) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var payload map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return resp.StatusCode, payload
}

func TestListStations(t *testing.T) {
	srv, _ := newTestServer(t, &stubAPI{})

	status, payload := doJSON(t, http.MethodGet, srv.URL+"/stations", "")
	require.Equal(t, http.StatusOK, status)

	stations := payload["stations"].([]interface{})
	require.Len(t, stations, 2)
	first := stations[0].(map[string]interface{})
	assert.Equal(t, "PC-01", first["name"], "stations are ordered by name")
}

func TestGetStationNotFound(t *testing.T) {
	srv, _ := newTestServer(t, &stubAPI{})

	status, _ := doJSON(t, http.MethodGet, srv.URL+"/stations/ghost", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestLockActionMutatesStore(t *testing.T) {
	srv, st := newTestServer(t, &stubAPI{})

	status, _ := doJSON(t, http.MethodPost, srv.URL+"/stations/st-1/lock", `{"lockedFor":"walk-in"}`)
	require.Equal(t, http.StatusOK, status)

	got, _ := st.Get("st-1")
	assert.True(t, got.IsLocked)
	assert.Equal(t, "walk-in", got.LockedFor)
}

func TestStartSessionAction(t *testing.T) {
	srv, st := newTestServer(t, &stubAPI{})

	status, _ := doJSON(t, http.MethodPost, srv.URL+"/stations/st-1/sessions",
		`{"customerName":"alex","timeMinutes":60,"prepaidAmount":"100"}`)
	require.Equal(t, http.StatusOK, status)

	got, _ := st.Get("st-1")
	require.NotNil(t, got.CurrentSession)
	assert.Equal(t, "srv-1", got.CurrentSession.ID)
	assert.Equal(t, models.StatusOccupied, got.Status)
}

func TestEndSessionWithoutSessionConflicts(t *testing.T) {
	srv, _ := newTestServer(t, &stubAPI{})

	status, _ := doJSON(t, http.MethodPost, srv.URL+"/stations/st-1/sessions/end", "")
	assert.Equal(t, http.StatusConflict, status)
}

func TestBackendFailureMapsToBadGateway(t *testing.T) {
	api := &stubAPI{fail: true}
	srv, st := newTestServer(t, api)

	status, _ := doJSON(t, http.MethodPost, srv.URL+"/stations/st-1/lock", `{"lockedFor":"walk-in"}`)
	assert.Equal(t, http.StatusBadGateway, status)

	got, _ := st.Get("st-1")
	assert.False(t, got.IsLocked, "failed action must be rolled back before responding")
}

func TestUnknownActionNotFound(t *testing.T) {
	srv, _ := newTestServer(t, &stubAPI{})

	status, _ := doJSON(t, http.MethodPost, srv.URL+"/stations/st-1/reboot", "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestRevenueRollup(t *testing.T) {
	srv, _ := newTestServer(t, &stubAPI{})

	status, payload := doJSON(t, http.MethodGet, srv.URL+"/revenue/daily", "")
	require.Equal(t, http.StatusOK, status)

	assert.Equal(t, "150.00", payload["today"], "1.5h at 100/h billed to today")
	assert.Equal(t, "0.00", payload["yesterday"])
	_, hasChange := payload["percentChange"]
	assert.False(t, hasChange, "percent change is omitted while yesterday is zero")

	days := payload["days"].([]interface{})
	require.Len(t, days, 1)
	row := days[0].(map[string]interface{})
	assert.Equal(t, "2026-08-28", row["date"])
	assert.Equal(t, "150.00", row["amount"])
}

func TestQuickPacksEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &stubAPI{})

	status, payload := doJSON(t, http.MethodGet, srv.URL+"/quick-packs", "")
	require.Equal(t, http.StatusOK, status)
	packs := payload["quickPacks"].([]interface{})
	assert.NotEmpty(t, packs)
}

func TestConnectionReportsState(t *testing.T) {
	srv, _ := newTestServer(t, &stubAPI{})

	status, payload := doJSON(t, http.MethodGet, srv.URL+"/connection", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, string(ws.StateDisconnected), payload["state"])
	assert.Equal(t, float64(0), payload["reconnectAttempts"])
}

func TestCreateAndDeleteStation(t *testing.T) {
	srv, st := newTestServer(t, &stubAPI{})

	status, _ := doJSON(t, http.MethodPost, srv.URL+"/stations",
		`{"name":"XBOX-01","type":"XBOX","hourlyRate":"120","status":"AVAILABLE"}`)
	require.Equal(t, http.StatusCreated, status)
	created, ok := st.Get("srv-XBOX-01")
	require.True(t, ok)
	assert.Equal(t, models.StationTypeXbox, created.Type)

	status, _ = doJSON(t, http.MethodDelete, srv.URL+"/stations/srv-XBOX-01", "")
	require.Equal(t, http.StatusOK, status)
	_, ok = st.Get("srv-XBOX-01")
	assert.False(t, ok)
}

func TestMethodGuardOnReadEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, &stubAPI{})

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/revenue/daily", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, http.MethodGet, resp.Header.Get("Allow"))
}
