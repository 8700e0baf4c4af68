package store

import (
	"fmt"

	"github.com/google/uuid"

	"cafedeck/internal/models"
)

// Mutation applies one lifecycle transition to a working copy of a station.
type Mutation func(st *models.Station) error

// BeginOptimistic applies a not-yet-confirmed local action and records the
// pre-action snapshot under a fresh correlation id. The caller either
// Confirms the op with the backend's authoritative fields or Rolls it back.
// If the transition itself is invalid nothing is recorded or published.
func (s *Store) BeginOptimistic(stationID string, kind OpKind, sessionID string, mutate Mutation) (string, error) {
	s.mu.Lock()

	st, ok := s.stations[stationID]
	if !ok {
		s.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrStationNotFound, stationID)
	}

	before := st.Clone()
	if err := mutate(st); err != nil {
		s.mu.Unlock()
		return "", err
	}

	corr := uuid.New().String()
	s.pending[corr] = pendingOp{
		stationID: stationID,
		kind:      kind,
		sessionID: sessionID,
		before:    before,
	}
	deliver := s.publishLocked()
	s.mu.Unlock()
	deliver()
	return corr, nil
}

// Confirm settles a pending op with the backend's response. The optional
// patch adopts authoritative fields (true session id, server-computed
// remaining time) over the optimistic guess. Confirming an op that a remote
// event already superseded is a no-op.
func (s *Store) Confirm(corrID string, patch func(st *models.Station)) {
	s.mu.Lock()

	op, ok := s.pending[corrID]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.pending, corrID)

	if patch == nil {
		s.mu.Unlock()
		return
	}
	st, ok := s.stations[op.stationID]
	if !ok {
		s.mu.Unlock()
		return
	}
	patch(st)
	deliver := s.publishLocked()
	s.mu.Unlock()
	deliver()
}

// Rollback restores the pre-action snapshot of a failed optimistic op.
// Rolling back an op that a remote event already superseded is a no-op: the
// authoritative state must not be reverted to a stale local guess.
func (s *Store) Rollback(corrID string) {
	s.mu.Lock()

	op, ok := s.pending[corrID]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.pending, corrID)

	if _, ok := s.stations[op.stationID]; !ok {
		s.mu.Unlock()
		return
	}
	s.stations[op.stationID] = op.before
	deliver := s.publishLocked()
	s.mu.Unlock()
	deliver()
}

// RenameSession rewires a pending op's session id once the backend assigns
// the authoritative one, so a remote echo for the real id still supersedes.
func (s *Store) RenameSession(corrID, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if op, ok := s.pending[corrID]; ok {
		op.sessionID = sessionID
		s.pending[corrID] = op
	}
}
