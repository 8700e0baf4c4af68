package store

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cafedeck/internal/events"
	"cafedeck/internal/lifecycle"
	"cafedeck/internal/models"
)

var testEpoch = time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*Store, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(testEpoch)
	return New(clock, time.Minute, zap.NewNop()), clock
}

func station(id, name string) models.Station {
	return models.Station{
		ID:         id,
		Name:       name,
		Type:       models.StationTypePC,
		HourlyRate: decimal.NewFromInt(100),
		Status:     models.StatusAvailable,
		Online:     true,
	}
}

func occupiedStation(id, name, sessionID string, remaining int) models.Station {
	st := station(id, name)
	st.Status = models.StatusOccupied
	st.CurrentSession = &models.ActiveSession{
		ID:            sessionID,
		CustomerName:  "alex",
		StartTime:     testEpoch.Add(-30 * time.Minute),
		TimeRemaining: remaining,
	}
	return st
}

func TestHydrateNormalizesTimeUnits(t *testing.T) {
	s, _ := newTestStore(t)

	s.Hydrate([]models.Station{
		occupiedStation("st-1", "PC-01", "sess-1", 5400), // seconds-magnitude
		occupiedStation("st-2", "PC-02", "sess-2", 45),   // already minutes
	})

	st1, ok := s.Get("st-1")
	require.True(t, ok)
	assert.Equal(t, 90, st1.CurrentSession.TimeRemaining)
	assert.Equal(t, testEpoch.Add(90*time.Minute), st1.CurrentSession.Deadline)

	st2, ok := s.Get("st-2")
	require.True(t, ok)
	assert.Equal(t, 45, st2.CurrentSession.TimeRemaining)
}

func TestHydrateRepairsOccupancyConservation(t *testing.T) {
	s, _ := newTestStore(t)

	broken := station("st-1", "PC-01")
	broken.Status = models.StatusOccupied // no session attached

	s.Hydrate([]models.Station{broken})

	st, ok := s.Get("st-1")
	require.True(t, ok)
	assert.Equal(t, models.StatusAvailable, st.Status)
}

func TestApplyRemoteEventIgnoresUnknownStationAndType(t *testing.T) {
	s, _ := newTestStore(t)
	s.Hydrate([]models.Station{station("st-1", "PC-01")})
	before := s.Snapshot()

	s.ApplyRemoteEvent(events.SessionUpdate{StationID: "ghost", SessionID: "x", Status: "RUNNING"})
	s.ApplyRemoteEvent(events.Unknown{Type: "analytics_update"})

	assert.Equal(t, before, s.Snapshot())
}

func TestSessionUpdateOccupiesStation(t *testing.T) {
	s, clock := newTestStore(t)
	s.Hydrate([]models.Station{station("st-1", "PC-01")})

	endTime := clock.Now().Add(30 * time.Minute).UnixMilli()
	s.ApplyRemoteEvent(events.SessionUpdate{
		StationID: "st-1",
		Status:    "RUNNING",
		SessionID: "sess-1",
		EndTime:   endTime,
	})

	st, ok := s.Get("st-1")
	require.True(t, ok)
	require.NotNil(t, st.CurrentSession)
	assert.Equal(t, models.StatusOccupied, st.Status)
	assert.Equal(t, "sess-1", st.CurrentSession.ID)
	assert.Equal(t, 30, st.CurrentSession.TimeRemaining)
}

func TestSessionUpdateCompletionEndsSessionOnce(t *testing.T) {
	s, _ := newTestStore(t)
	s.Hydrate([]models.Station{occupiedStation("st-1", "PC-01", "sess-1", 30)})

	completed := events.SessionUpdate{StationID: "st-1", Status: "COMPLETED", SessionID: "sess-1"}
	s.ApplyRemoteEvent(completed)
	s.ApplyRemoteEvent(completed) // duplicate push event

	st, ok := s.Get("st-1")
	require.True(t, ok)
	assert.Nil(t, st.CurrentSession)
	assert.Equal(t, models.StatusAvailable, st.Status)
	assert.Len(t, st.PastSessions, 1)
}

func TestStaleRunningEventCannotResurrectArchivedSession(t *testing.T) {
	s, clock := newTestStore(t)
	s.Hydrate([]models.Station{occupiedStation("st-1", "PC-01", "sess-1", 30)})

	completed := events.SessionUpdate{StationID: "st-1", Status: "COMPLETED", SessionID: "sess-1"}
	s.ApplyRemoteEvent(completed)

	// Out-of-order progress report for the archived session, then the
	// duplicate completion: exactly one archive entry must survive.
	s.ApplyRemoteEvent(events.SessionUpdate{
		StationID: "st-1",
		Status:    "RUNNING",
		SessionID: "sess-1",
		EndTime:   clock.Now().Add(10 * time.Minute).UnixMilli(),
	})
	s.ApplyRemoteEvent(completed)

	st, ok := s.Get("st-1")
	require.True(t, ok)
	assert.Nil(t, st.CurrentSession)
	assert.Equal(t, models.StatusAvailable, st.Status)
	assert.Len(t, st.PastSessions, 1)
}

func TestRemoteEchoSupersedesOptimisticEnd(t *testing.T) {
	s, clock := newTestStore(t)
	s.Hydrate([]models.Station{occupiedStation("st-1", "PC-01", "sess-1", 30)})

	corr, err := s.BeginOptimistic("st-1", OpEndSession, "sess-1", func(st *models.Station) error {
		return lifecycle.EndSession(st, "sess-1", clock.Now())
	})
	require.NoError(t, err)

	// The authoritative "ended" echo lands before the HTTP response.
	s.ApplyRemoteEvent(events.SessionUpdate{StationID: "st-1", Status: "COMPLETED", SessionID: "sess-1"})

	st, _ := s.Get("st-1")
	assert.Len(t, st.PastSessions, 1, "optimistic end plus remote echo must archive exactly once")

	// A late rollback of the superseded op must not resurrect the session.
	s.Rollback(corr)
	st, _ = s.Get("st-1")
	assert.Nil(t, st.CurrentSession)
	assert.Len(t, st.PastSessions, 1)
}

func TestOptimisticRollbackRestoresPreActionState(t *testing.T) {
	s, _ := newTestStore(t)
	s.Hydrate([]models.Station{station("st-1", "PC-01")})

	corr, err := s.BeginOptimistic("st-1", OpLock, "", func(st *models.Station) error {
		return lifecycle.Lock(st, "walk-in")
	})
	require.NoError(t, err)

	st, _ := s.Get("st-1")
	assert.True(t, st.IsLocked)

	s.Rollback(corr)
	st, _ = s.Get("st-1")
	assert.False(t, st.IsLocked)
	assert.Empty(t, st.LockedFor)
}

func TestBeginOptimisticRejectsInvalidTransition(t *testing.T) {
	s, clock := newTestStore(t)
	s.Hydrate([]models.Station{occupiedStation("st-1", "PC-01", "A", 30)})

	_, err := s.BeginOptimistic("st-1", OpAddTime, "B", func(st *models.Station) error {
		return lifecycle.AddTime(st, "B", 30, clock.Now())
	})
	assert.ErrorIs(t, err, lifecycle.ErrSessionMismatch)

	st, _ := s.Get("st-1")
	assert.Equal(t, 30, st.CurrentSession.TimeRemaining, "rejected transition must not mutate state")

	_, err = s.BeginOptimistic("ghost", OpLock, "", func(st *models.Station) error { return nil })
	assert.ErrorIs(t, err, ErrStationNotFound)
}

func TestStationUpdatePreservesOptimisticLock(t *testing.T) {
	s, _ := newTestStore(t)
	s.Hydrate([]models.Station{station("st-1", "PC-01")})

	_, err := s.BeginOptimistic("st-1", OpLock, "", func(st *models.Station) error {
		return lifecycle.Lock(st, "walk-in")
	})
	require.NoError(t, err)

	remote := station("st-1", "PC-01")
	remote.IsLocked = false
	s.ApplyRemoteEvent(events.StationUpdate{Station: remote})

	st, _ := s.Get("st-1")
	assert.True(t, st.IsLocked, "stale remote isLocked=false must not clobber the in-flight lock")
}

func TestSubscribersSeeSnapshotsInMutationOrder(t *testing.T) {
	s, _ := newTestStore(t)

	var deliveries [][]models.Station
	cancel := s.Subscribe(func(snapshot []models.Station) {
		deliveries = append(deliveries, snapshot)
	})

	s.Hydrate([]models.Station{station("st-1", "PC-01")})
	s.ApplyRemoteEvent(events.StationStatus{StationID: "st-1", Status: models.StatusMaintenance, Online: true})

	require.Len(t, deliveries, 2)
	assert.Equal(t, models.StatusAvailable, deliveries[0][0].Status)
	assert.Equal(t, models.StatusMaintenance, deliveries[1][0].Status)

	cancel()
	s.ApplyRemoteEvent(events.StationStatus{StationID: "st-1", Status: models.StatusAvailable, Online: true})
	assert.Len(t, deliveries, 2, "unsubscribe detaches immediately")
}

func TestListenersMayReadBackIntoStore(t *testing.T) {
	s, _ := newTestStore(t)
	s.Hydrate([]models.Station{station("st-1", "PC-01")})

	var observed models.StationStatus
	s.Subscribe(func([]models.Station) {
		st, ok := s.Get("st-1")
		require.True(t, ok)
		observed = st.Status
	})

	s.ApplyRemoteEvent(events.StationStatus{StationID: "st-1", Status: models.StatusMaintenance, Online: true})
	assert.Equal(t, models.StatusMaintenance, observed)
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	s, _ := newTestStore(t)
	s.Hydrate([]models.Station{occupiedStation("st-1", "PC-01", "sess-1", 30)})

	snap := s.Snapshot()
	snap[0].CurrentSession.TimeRemaining = 1
	snap[0].IsLocked = true

	st, _ := s.Get("st-1")
	assert.Equal(t, 30, st.CurrentSession.TimeRemaining)
	assert.False(t, st.IsLocked)
}

func TestAddAndRemoveStation(t *testing.T) {
	s, _ := newTestStore(t)
	s.Hydrate(nil)

	s.AddStation(station("st-9", "PS5-01"))
	st, ok := s.Get("st-9")
	require.True(t, ok)
	assert.Equal(t, "PS5-01", st.Name)

	s.RemoveStation("st-9")
	_, ok = s.Get("st-9")
	assert.False(t, ok)
}
