package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cafedeck/internal/models"
)

func TestCountdownRecomputesAgainstWallClock(t *testing.T) {
	s, clock := newTestStore(t)
	s.Hydrate([]models.Station{occupiedStation("st-1", "PC-01", "sess-1", 2)})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.RunCountdown(ctx)

	clock.BlockUntil(1) // ticker armed
	clock.Advance(time.Minute)
	require.Eventually(t, func() bool {
		st, _ := s.Get("st-1")
		return st.CurrentSession != nil && st.CurrentSession.TimeRemaining == 1
	}, time.Second, 2*time.Millisecond)

	// A multi-minute jump (tab suspension) is caught up in one recompute and
	// the floor is zero; the session is never auto-ended.
	clock.Advance(10 * time.Minute)
	require.Eventually(t, func() bool {
		st, _ := s.Get("st-1")
		return st.CurrentSession != nil &&
			st.CurrentSession.TimeRemaining == 0 &&
			st.Status == models.StatusOccupied
	}, time.Second, 2*time.Millisecond)
}

func TestCountdownStopsOnContextCancel(t *testing.T) {
	s, clock := newTestStore(t)
	s.Hydrate([]models.Station{occupiedStation("st-1", "PC-01", "sess-1", 30)})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.RunCountdown(ctx)
		close(done)
	}()

	clock.BlockUntil(1)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("countdown loop did not stop after cancellation")
	}
}
