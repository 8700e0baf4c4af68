// Package gateway translates operator intents into an optimistic local
// mutation plus a backend command, and reconciles the two: the backend's
// authoritative payload supersedes the optimistic guess on success, and the
// pre-action snapshot is restored on failure.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"cafedeck/internal/clients"
	"cafedeck/internal/lifecycle"
	"cafedeck/internal/models"
	"cafedeck/internal/store"
)

var (
	// ErrNoActiveSession is a precondition failure signaled before any
	// network call is made.
	ErrNoActiveSession = errors.New("gateway: station has no active session")
	// ErrStationLocked rejects starting a session on a station locked for
	// someone else; the operator must unlock first.
	ErrStationLocked = errors.New("gateway: station is locked for another customer")
	// ErrStationBusy rejects removing a station that is occupied or locked.
	ErrStationBusy = errors.New("gateway: station must be available and unlocked")
)

// API is the slice of the backend client the gateway issues commands through.
type API interface {
	LockStation(ctx context.Context, stationID, assignee string) error
	UnlockStation(ctx context.Context, stationID string) error
	StartSession(ctx context.Context, stationID, customerName string, minutes int, prepaid decimal.Decimal) (*clients.SessionPayload, error)
	EndSession(ctx context.Context, sessionID string) (*clients.SessionPayload, error)
	AddTime(ctx context.Context, sessionID string, minutes int) (*clients.SessionPayload, error)
	SetHandRaised(ctx context.Context, stationID string, raised bool) error
	CreateStation(ctx context.Context, st models.Station) (*models.Station, error)
	DeleteStation(ctx context.Context, stationID string) error
}

// Notifier surfaces action failures to the operator.
type Notifier interface {
	Notify(severity, message string)
}

// Severity levels for notifications.
const (
	SeverityInfo  = "info"
	SeverityError = "error"
)

// LogNotifier writes notifications to the log; the default when no UI
// notification channel is attached.
type LogNotifier struct {
	Logger *zap.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(severity, message string) {
	if severity == SeverityError {
		n.Logger.Error("operator notification", zap.String("message", message))
		return
	}
	n.Logger.Info("operator notification", zap.String("message", message))
}

// Gateway issues action commands against the store and backend.
type Gateway struct {
	store    *store.Store
	api      API
	notifier Notifier
	clock    clockwork.Clock
	logger   *zap.Logger
}

// New builds the gateway.
func New(st *store.Store, api API, notifier Notifier, clock clockwork.Clock, logger *zap.Logger) *Gateway {
	return &Gateway{
		store:    st,
		api:      api,
		notifier: notifier,
		clock:    clock,
		logger:   logger,
	}
}

// Lock reserves a station, optimistically and then authoritatively.
func (g *Gateway) Lock(ctx context.Context, stationID, assignee string) error {
	corr, err := g.store.BeginOptimistic(stationID, store.OpLock, "", func(st *models.Station) error {
		return lifecycle.Lock(st, assignee)
	})
	if err != nil {
		return err
	}

	if err := g.api.LockStation(ctx, stationID, assignee); err != nil {
		g.store.Rollback(corr)
		g.notifier.Notify(SeverityError, fmt.Sprintf("failed to lock station %s", stationID))
		return err
	}
	g.store.Confirm(corr, nil)
	return nil
}

// Unlock releases a reservation.
func (g *Gateway) Unlock(ctx context.Context, stationID string) error {
	corr, err := g.store.BeginOptimistic(stationID, store.OpUnlock, "", func(st *models.Station) error {
		lifecycle.Unlock(st)
		return nil
	})
	if err != nil {
		return err
	}

	if err := g.api.UnlockStation(ctx, stationID); err != nil {
		g.store.Rollback(corr)
		g.notifier.Notify(SeverityError, fmt.Sprintf("failed to unlock station %s", stationID))
		return err
	}
	g.store.Confirm(corr, nil)
	return nil
}

// StartSession begins an occupancy. A station locked for a different customer
// is a precondition failure; the lock's own assignee may start directly.
func (g *Gateway) StartSession(ctx context.Context, stationID, customerName string, minutes int, prepaid decimal.Decimal) error {
	current, ok := g.store.Get(stationID)
	if !ok {
		return fmt.Errorf("%w: %s", store.ErrStationNotFound, stationID)
	}
	if current.IsLocked && current.LockedFor != customerName {
		return ErrStationLocked
	}

	now := g.clock.Now()
	localID := "local-" + uuid.New().String()
	corr, err := g.store.BeginOptimistic(stationID, store.OpStartSession, localID, func(st *models.Station) error {
		if st.IsLocked {
			lifecycle.Unlock(st)
		}
		return lifecycle.StartSession(st, localID, customerName, minutes, now)
	})
	if err != nil {
		return err
	}

	resp, err := g.api.StartSession(ctx, stationID, customerName, minutes, prepaid)
	if err != nil {
		g.store.Rollback(corr)
		g.notifier.Notify(SeverityError, fmt.Sprintf("failed to start session on station %s", stationID))
		return err
	}

	g.store.RenameSession(corr, resp.SessionID)
	g.store.Confirm(corr, func(st *models.Station) {
		if st.CurrentSession == nil || st.CurrentSession.ID != localID {
			return
		}
		st.CurrentSession.ID = resp.SessionID
		if resp.TimeRemaining > 0 {
			st.CurrentSession.TimeRemaining = resp.TimeRemaining
			st.CurrentSession.Deadline = g.clock.Now().Add(time.Duration(resp.TimeRemaining) * time.Minute)
		}
	})
	return nil
}

// EndSession finalizes the station's running session. A missing session id is
// a precondition failure, signaled before any network call.
func (g *Gateway) EndSession(ctx context.Context, stationID string) error {
	current, ok := g.store.Get(stationID)
	if !ok {
		return fmt.Errorf("%w: %s", store.ErrStationNotFound, stationID)
	}
	if current.CurrentSession == nil {
		return ErrNoActiveSession
	}
	sessionID := current.CurrentSession.ID

	now := g.clock.Now()
	corr, err := g.store.BeginOptimistic(stationID, store.OpEndSession, sessionID, func(st *models.Station) error {
		return lifecycle.EndSession(st, sessionID, now)
	})
	if err != nil {
		return err
	}

	if _, err := g.api.EndSession(ctx, sessionID); err != nil {
		g.store.Rollback(corr)
		g.notifier.Notify(SeverityError, fmt.Sprintf("failed to end session on station %s", stationID))
		return err
	}
	g.store.Confirm(corr, nil)
	return nil
}

// AddTime extends the station's running session.
func (g *Gateway) AddTime(ctx context.Context, stationID string, minutes int) error {
	current, ok := g.store.Get(stationID)
	if !ok {
		return fmt.Errorf("%w: %s", store.ErrStationNotFound, stationID)
	}
	if current.CurrentSession == nil {
		return ErrNoActiveSession
	}
	sessionID := current.CurrentSession.ID

	now := g.clock.Now()
	corr, err := g.store.BeginOptimistic(stationID, store.OpAddTime, sessionID, func(st *models.Station) error {
		return lifecycle.AddTime(st, sessionID, minutes, now)
	})
	if err != nil {
		return err
	}

	resp, err := g.api.AddTime(ctx, sessionID, minutes)
	if err != nil {
		g.store.Rollback(corr)
		g.notifier.Notify(SeverityError, fmt.Sprintf("failed to add time on station %s", stationID))
		return err
	}

	g.store.Confirm(corr, func(st *models.Station) {
		if st.CurrentSession == nil || st.CurrentSession.ID != sessionID {
			return
		}
		if resp.TimeRemaining > 0 {
			st.CurrentSession.TimeRemaining = resp.TimeRemaining
			st.CurrentSession.Deadline = g.clock.Now().Add(time.Duration(resp.TimeRemaining) * time.Minute)
		}
	})
	return nil
}

// RaiseHand flags the station for operator assistance.
func (g *Gateway) RaiseHand(ctx context.Context, stationID string) error {
	return g.setHand(ctx, stationID, true)
}

// LowerHand clears the assistance flag.
func (g *Gateway) LowerHand(ctx context.Context, stationID string) error {
	return g.setHand(ctx, stationID, false)
}

func (g *Gateway) setHand(ctx context.Context, stationID string, raised bool) error {
	corr, err := g.store.BeginOptimistic(stationID, store.OpHand, "", func(st *models.Station) error {
		if raised {
			lifecycle.RaiseHand(st)
		} else {
			lifecycle.LowerHand(st)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := g.api.SetHandRaised(ctx, stationID, raised); err != nil {
		g.store.Rollback(corr)
		g.notifier.Notify(SeverityError, fmt.Sprintf("failed to update hand flag on station %s", stationID))
		return err
	}
	g.store.Confirm(corr, nil)
	return nil
}

// CreateStation deploys a new station. No optimistic apply: a station exists
// only once the backend confirms it.
func (g *Gateway) CreateStation(ctx context.Context, st models.Station) error {
	created, err := g.api.CreateStation(ctx, st)
	if err != nil {
		g.notifier.Notify(SeverityError, fmt.Sprintf("failed to create station %s", st.Name))
		return err
	}
	g.store.AddStation(*created)
	return nil
}

// DeleteStation removes a station; only permitted while available and
// unlocked.
func (g *Gateway) DeleteStation(ctx context.Context, stationID string) error {
	current, ok := g.store.Get(stationID)
	if !ok {
		return fmt.Errorf("%w: %s", store.ErrStationNotFound, stationID)
	}
	if current.Status != models.StatusAvailable || current.IsLocked {
		return ErrStationBusy
	}

	if err := g.api.DeleteStation(ctx, stationID); err != nil {
		g.notifier.Notify(SeverityError, fmt.Sprintf("failed to delete station %s", stationID))
		return err
	}
	g.store.RemoveStation(stationID)
	return nil
}
