package lifecycle

import (
	"time"

	"cafedeck/internal/models"
)

// MergeRemote folds a full-station refresh into the local model. The unit of
// change is the whole station, but a few fields need transition-aware merging
// rather than overwrite:
//   - lock state is kept when an optimistic lock/unlock is still in flight,
//     so a stale remote isLocked=false cannot clobber it
//   - past sessions are append-only; remote entries are unioned in by id and
//     existing entries are never rewritten
func MergeRemote(local *models.Station, remote *models.Station, preserveLock bool, now time.Time) {
	local.Name = remote.Name
	local.Type = remote.Type
	local.HourlyRate = remote.HourlyRate
	local.Specs = remote.Specs
	local.IPAddress = remote.IPAddress
	local.MACAddress = remote.MACAddress
	local.HandRaised = remote.HandRaised

	if !preserveLock {
		local.IsLocked = remote.IsLocked
		local.LockedFor = remote.LockedFor
	}

	for _, p := range remote.PastSessions {
		if !local.HasPastSession(p.ID) {
			local.PastSessions = append(local.PastSessions, p)
		}
	}

	switch {
	case remote.CurrentSession != nil && local.HasPastSession(remote.CurrentSession.ID):
		// Stale refresh echoing a session that is already archived locally;
		// it stays archived and only the connectivity bit is taken.
	case remote.CurrentSession != nil:
		SyncSession(local, remote.CurrentSession.ID, remote.CurrentSession.TimeRemaining, now)
		if remote.CurrentSession.CustomerName != "" {
			local.CurrentSession.CustomerName = remote.CurrentSession.CustomerName
		}
		if !remote.CurrentSession.StartTime.IsZero() {
			local.CurrentSession.StartTime = remote.CurrentSession.StartTime
		}
	case local.CurrentSession != nil && remote.Status != models.StatusOccupied:
		// Remote says the session is gone; archive rather than drop it.
		_ = EndSession(local, local.CurrentSession.ID, now)
		ApplyRemoteStatus(local, remote.Status, remote.Online)
	default:
		ApplyRemoteStatus(local, remote.Status, remote.Online)
	}
	local.Online = remote.Online
}
