// Package lifecycle holds the pure state-transition rules for a station and
// its session. Every mutation of a Station in the store goes through one of
// these functions; nothing here touches I/O or the clock package directly,
// callers pass `now` in.
package lifecycle

import (
	"errors"
	"time"

	"cafedeck/internal/models"
)

var (
	// ErrStationOccupied rejects transitions that require a free station.
	ErrStationOccupied = errors.New("lifecycle: station is occupied")
	// ErrStationUnavailable rejects session starts on maintenance/offline stations.
	ErrStationUnavailable = errors.New("lifecycle: station is not available")
	// ErrNoActiveSession rejects session operations when nothing is running.
	ErrNoActiveSession = errors.New("lifecycle: no active session")
	// ErrSessionMismatch rejects operations referencing a stale session id.
	ErrSessionMismatch = errors.New("lifecycle: session id does not match active session")
	// ErrInvalidDuration rejects non-positive session durations.
	ErrInvalidDuration = errors.New("lifecycle: duration must be positive")
)

// Lock reserves a free station, optionally for a named customer.
func Lock(st *models.Station, assignee string) error {
	if st.Status == models.StatusOccupied {
		return ErrStationOccupied
	}
	st.IsLocked = true
	st.LockedFor = assignee
	return nil
}

// Unlock releases a reservation.
func Unlock(st *models.Station) {
	st.IsLocked = false
	st.LockedFor = ""
}

// StartSession begins an occupancy. Lock ownership is the caller's policy and
// is not re-validated here.
func StartSession(st *models.Station, sessionID, customerName string, minutes int, now time.Time) error {
	if minutes <= 0 {
		return ErrInvalidDuration
	}
	if st.Status == models.StatusOccupied {
		return ErrStationOccupied
	}
	if st.Status != models.StatusAvailable {
		return ErrStationUnavailable
	}
	st.Status = models.StatusOccupied
	st.CurrentSession = &models.ActiveSession{
		ID:            sessionID,
		CustomerName:  customerName,
		StartTime:     now,
		TimeRemaining: minutes,
		Deadline:      now.Add(time.Duration(minutes) * time.Minute),
	}
	return nil
}

// AddTime extends the running session. A mismatched id means the caller holds
// a stale reference (the session already ended); the station is left untouched.
func AddTime(st *models.Station, sessionID string, minutes int, now time.Time) error {
	if minutes <= 0 {
		return ErrInvalidDuration
	}
	if st.CurrentSession == nil {
		return ErrNoActiveSession
	}
	if st.CurrentSession.ID != sessionID {
		return ErrSessionMismatch
	}
	st.CurrentSession.TimeRemaining += minutes
	st.CurrentSession.Deadline = st.CurrentSession.Deadline.Add(time.Duration(minutes) * time.Minute)
	if st.CurrentSession.Deadline.Before(now) {
		st.CurrentSession.Deadline = now.Add(time.Duration(st.CurrentSession.TimeRemaining) * time.Minute)
	}
	return nil
}

// EndSession archives the running session and frees the station. The move
// from CurrentSession to PastSessions happens exactly once per session id:
// ending an already-archived session is a no-op, so a remote "ended" echo
// arriving after an optimistic local end cannot double-append. If a stale
// out-of-order event resurrected an archived id in between, the duplicate end
// clears it without appending a second entry.
func EndSession(st *models.Station, sessionID string, now time.Time) error {
	if st.HasPastSession(sessionID) {
		if st.CurrentSession != nil && st.CurrentSession.ID == sessionID {
			st.CurrentSession = nil
			st.Status = models.StatusAvailable
		}
		return nil
	}
	if st.CurrentSession == nil {
		return ErrNoActiveSession
	}
	if st.CurrentSession.ID != sessionID {
		return ErrSessionMismatch
	}

	end := now
	if !end.After(st.CurrentSession.StartTime) {
		end = st.CurrentSession.StartTime.Add(time.Millisecond)
	}
	st.PastSessions = append(st.PastSessions, models.PastSession{
		ID:           st.CurrentSession.ID,
		CustomerName: st.CurrentSession.CustomerName,
		StartTime:    st.CurrentSession.StartTime,
		EndTime:      end,
	})
	st.CurrentSession = nil
	st.Status = models.StatusAvailable
	return nil
}

// RaiseHand flags the station for operator assistance.
func RaiseHand(st *models.Station) { st.HandRaised = true }

// LowerHand clears the assistance flag.
func LowerHand(st *models.Station) { st.HandRaised = false }

// SetMaintenance toggles the maintenance overlay; only permitted while the
// station is not occupied.
func SetMaintenance(st *models.Station, on bool) error {
	if st.Status == models.StatusOccupied {
		return ErrStationOccupied
	}
	if on {
		st.Status = models.StatusMaintenance
	} else if st.Status == models.StatusMaintenance {
		st.Status = models.StatusAvailable
	}
	return nil
}

// SetOnline updates the connectivity overlay. An offline free station is shown
// as OFFLINE; occupancy and maintenance win over the overlay.
func SetOnline(st *models.Station, online bool) {
	st.Online = online
	if !online && st.Status == models.StatusAvailable {
		st.Status = models.StatusOffline
	}
	if online && st.Status == models.StatusOffline {
		st.Status = models.StatusAvailable
	}
}

// Tick recomputes the remaining minutes of an occupied station against the
// wall clock, floored at zero. Reaching zero never ends the session; ending
// is always an explicit operator action.
func Tick(st *models.Station, now time.Time) bool {
	if st.CurrentSession == nil {
		return false
	}
	remaining := int(st.CurrentSession.Deadline.Sub(now) / time.Minute)
	if remaining < 0 {
		remaining = 0
	}
	if remaining == st.CurrentSession.TimeRemaining {
		return false
	}
	st.CurrentSession.TimeRemaining = remaining
	return true
}

// SyncSession reconciles a station with an authoritative remote session
// report: it creates the session when the local model has none (the push
// event beat the snapshot) and adopts the server's id and remaining time.
func SyncSession(st *models.Station, sessionID string, remainingMinutes int, now time.Time) {
	if remainingMinutes < 0 {
		remainingMinutes = 0
	}
	if st.CurrentSession == nil {
		st.CurrentSession = &models.ActiveSession{
			ID:        sessionID,
			StartTime: now,
		}
	}
	st.CurrentSession.ID = sessionID
	st.CurrentSession.TimeRemaining = remainingMinutes
	st.CurrentSession.Deadline = now.Add(time.Duration(remainingMinutes) * time.Minute)
	st.Status = models.StatusOccupied
}

// ApplyRemoteStatus merges a STATION_STATUS event. A non-OCCUPIED status for a
// station that still has a live session is treated as a stale overlay and only
// the online bit is taken; the session is cleared by SESSION_UPDATE, not here.
func ApplyRemoteStatus(st *models.Station, status models.StationStatus, online bool) {
	if st.CurrentSession != nil && status != models.StatusOccupied {
		st.Online = online
		return
	}
	switch status {
	case models.StatusAvailable, models.StatusOccupied, models.StatusMaintenance, models.StatusOffline:
		st.Status = status
	}
	SetOnline(st, online)
}

// CheckInvariants verifies the occupancy conservation rule after a transition.
func CheckInvariants(st *models.Station) error {
	occupied := st.Status == models.StatusOccupied
	hasSession := st.CurrentSession != nil
	if occupied != hasSession {
		return errors.New("lifecycle: OCCUPIED status and current session out of sync")
	}
	for _, p := range st.PastSessions {
		if !p.EndTime.After(p.StartTime) {
			return errors.New("lifecycle: past session end time not after start time")
		}
	}
	return nil
}
