package store

import (
	"context"

	"cafedeck/internal/lifecycle"
)

// RunCountdown drives the per-station countdown until the context is
// cancelled. Each tick recomputes remaining minutes from the session deadline
// against the wall clock, so a suspended process catches up on its next tick
// instead of drifting. Reaching zero never ends a session.
func (s *Store) RunCountdown(ctx context.Context) {
	ticker := s.clock.NewTicker(s.tickPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.tick()
		}
	}
}

func (s *Store) tick() {
	now := s.clock.Now()

	s.mu.Lock()
	changed := false
	for _, st := range s.stations {
		if lifecycle.Tick(st, now) {
			changed = true
		}
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
