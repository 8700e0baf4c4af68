// Package store owns the canonical in-memory collection of stations. All
// mutation enters through its methods; views and the action gateway only ever
// see deep copies. Mutations are serialized behind one mutex; the snapshot
// published to subscribers is captured while that mutex is held, but listeners
// run after it is released so they may read back into the store.
package store

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"cafedeck/internal/events"
	"cafedeck/internal/lifecycle"
	"cafedeck/internal/models"
)

// ErrStationNotFound is returned for operations referencing an unknown station.
var ErrStationNotFound = errors.New("store: station not found")

// secondsThreshold is the magnitude cutoff of the minutes-vs-seconds
// heuristic: upstream timers report timeRemaining in either unit depending on
// code path, and anything above this is taken to be seconds.
const secondsThreshold = 1000

// Listener observes every change as a full snapshot, never a delta, so each
// view re-derives its rows from one consistent state.
type Listener func(snapshot []models.Station)

// OpKind tags a pending optimistic mutation for reconciliation.
type OpKind string

const (
	OpLock         OpKind = "lock"
	OpUnlock       OpKind = "unlock"
	OpStartSession OpKind = "start-session"
	OpEndSession   OpKind = "end-session"
	OpAddTime      OpKind = "add-time"
	OpHand         OpKind = "hand"
)

type pendingOp struct {
	stationID string
	kind      OpKind
	sessionID string
	before    *models.Station
}

// Store is the authoritative station collection.
type Store struct {
	mu       sync.Mutex
	stations map[string]*models.Station
	pending  map[string]pendingOp
	subs     map[string]Listener
	subOrder []string

	clock      clockwork.Clock
	tickPeriod time.Duration
	logger     *zap.Logger
}

// New builds an empty store. The clock is injected so countdown behavior is
// deterministic under test.
func New(clock clockwork.Clock, tickPeriod time.Duration, logger *zap.Logger) *Store {
	if tickPeriod <= 0 {
		tickPeriod = time.Minute
	}
	return &Store{
		stations:   make(map[string]*models.Station),
		pending:    make(map[string]pendingOp),
		subs:       make(map[string]Listener),
		clock:      clock,
		tickPeriod: tickPeriod,
		logger:     logger,
	}
}

// Hydrate replaces the collection wholesale from a REST snapshot, normalizing
// session time units and rebuilding countdown deadlines. Pending optimistic
// ops are discarded: the snapshot is authoritative.
func (s *Store) Hydrate(stations []models.Station) {
	now := s.clock.Now()

	s.mu.Lock()
	s.stations = make(map[string]*models.Station, len(stations))
	s.pending = make(map[string]pendingOp)
	for i := range stations {
		st := stations[i].Clone()
		if st.CurrentSession != nil {
			st.CurrentSession.TimeRemaining = normalizeRemaining(st.CurrentSession.TimeRemaining)
			st.CurrentSession.Deadline = now.Add(time.Duration(st.CurrentSession.TimeRemaining) * time.Minute)
			st.Status = models.StatusOccupied
		} else if st.Status == models.StatusOccupied {
			st.Status = models.StatusAvailable
		}
		s.stations[st.ID] = st
	}
	s.logger.Info("store hydrated", zap.Int("stations", len(stations)))
	deliver := s.publishLocked()
	s.mu.Unlock()
	deliver()
}

// normalizeRemaining converts a seconds-magnitude value to whole minutes
// (ceiling); values at or below the threshold are already minutes.
func normalizeRemaining(v int) int {
	if v > secondsThreshold {
		return (v + 59) / 60
	}
	return v
}

// Snapshot returns all stations as deep copies, ordered by name then id.
func (s *Store) Snapshot() []models.Station {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() []models.Station {
	out := make([]models.Station, 0, len(s.stations))
	for _, st := range s.stations {
		out = append(out, *st.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Get returns a deep copy of one station.
func (s *Store) Get(stationID string) (models.Station, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stations[stationID]
	if !ok {
		return models.Station{}, false
	}
	return *st.Clone(), true
}

// Subscribe registers a listener and returns its cancel function. Listeners
// run outside the store lock and may read back via Get/Snapshot; a delivery
// already captured when cancel is called may still complete.
func (s *Store) Subscribe(l Listener) func() {
	id := uuid.New().String()
	s.mu.Lock()
	s.subs[id] = l
	s.subOrder = append(s.subOrder, id)
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
		for i, sid := range s.subOrder {
			if sid == id {
				s.subOrder = append(s.subOrder[:i], s.subOrder[i+1:]...)
				break
			}
		}
	}
}

// publishLocked captures the listener set and one consistent snapshot under
// the lock; the returned function performs the delivery and must be called
// after the lock is released.
func (s *Store) publishLocked() func() {
	if len(s.subs) == 0 {
		return func() {}
	}
	snapshot := s.snapshotLocked()
	order := append([]string(nil), s.subOrder...)
	subs := make(map[string]Listener, len(s.subs))
	for id, l := range s.subs {
		subs[id] = l
	}
	return func() {
		for _, id := range order {
			if l, ok := subs[id]; ok {
				l(snapshot)
			}
		}
	}
}

// ApplyRemoteEvent merges one push event. Unknown event types and events for
// unknown stations are logged and ignored; no station is ever created
// implicitly by a push event, and a stale progress report can never resurrect
// a session that is already archived.
func (s *Store) ApplyRemoteEvent(ev events.Event) {
	now := s.clock.Now()

	s.mu.Lock()
	changed := false

	switch e := ev.(type) {
	case events.SessionUpdate:
		st, ok := s.stations[e.StationID]
		if !ok {
			s.logger.Warn("session update for unknown station", zap.String("station_id", e.StationID))
			break
		}
		s.supersedeLocked(e.StationID, e.SessionID)
		if e.Completed() {
			if err := lifecycle.EndSession(st, e.SessionID, now); err != nil {
				s.logger.Debug("remote session completion ignored",
					zap.String("station_id", e.StationID),
					zap.String("session_id", e.SessionID),
					zap.Error(err))
				break
			}
		} else {
			if st.HasPastSession(e.SessionID) {
				s.logger.Debug("stale update for archived session ignored",
					zap.String("station_id", e.StationID),
					zap.String("session_id", e.SessionID))
				break
			}
			remaining := int((e.EndTime - now.UnixMilli()) / 60_000)
			lifecycle.SyncSession(st, e.SessionID, remaining, now)
		}
		changed = true

	case events.StationStatus:
		st, ok := s.stations[e.StationID]
		if !ok {
			s.logger.Warn("status event for unknown station", zap.String("station_id", e.StationID))
			break
		}
		lifecycle.ApplyRemoteStatus(st, e.Status, e.Online)
		changed = true

	case events.StationUpdate:
		st, ok := s.stations[e.Station.ID]
		if !ok {
			s.logger.Warn("station update for unknown station", zap.String("station_id", e.Station.ID))
			break
		}
		remote := e.Station.Clone()
		if remote.CurrentSession != nil {
			remote.CurrentSession.TimeRemaining = normalizeRemaining(remote.CurrentSession.TimeRemaining)
		}
		lifecycle.MergeRemote(st, remote, s.hasPendingLockLocked(e.Station.ID), now)
		changed = true

	default:
		s.logger.Debug("ignoring event", zap.String("type", ev.EventType()))
	}

	var deliver func()
	if changed {
		deliver = s.publishLocked()
	}
	s.mu.Unlock()
	if deliver != nil {
		deliver()
	}
}

// AddStation inserts a backend-confirmed station. Stations are never created
// from push events; this is the only way a new one enters the collection
// outside Hydrate.
func (s *Store) AddStation(st models.Station) {
	s.mu.Lock()
	s.stations[st.ID] = st.Clone()
	deliver := s.publishLocked()
	s.mu.Unlock()
	deliver()
}

// RemoveStation drops a backend-confirmed removal.
func (s *Store) RemoveStation(stationID string) {
	s.mu.Lock()
	if _, ok := s.stations[stationID]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.stations, stationID)
	deliver := s.publishLocked()
	s.mu.Unlock()
	deliver()
}

// supersedeLocked drops pending optimistic ops that the arriving authoritative
// event settles: matching session ids, or a still-unconfirmed session start on
// the same station. A later Confirm/Rollback for a superseded op is a no-op,
// which is what prevents double-applied ends and double-decremented time.
func (s *Store) supersedeLocked(stationID, sessionID string) {
	for corr, op := range s.pending {
		if op.sessionID == sessionID || (op.kind == OpStartSession && op.stationID == stationID) {
			delete(s.pending, corr)
		}
	}
}

func (s *Store) hasPendingLockLocked(stationID string) bool {
	for _, op := range s.pending {
		if op.stationID == stationID && (op.kind == OpLock || op.kind == OpUnlock) {
			return true
		}
	}
	return false
}
