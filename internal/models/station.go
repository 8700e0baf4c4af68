package models

import "github.com/shopspring/decimal"

// StationType identifies the kind of terminal offered to customers.
type StationType string

const (
	StationTypePC   StationType = "PC"
	StationTypePS5  StationType = "PS5"
	StationTypeXbox StationType = "XBOX"
)

// StationStatus is the occupancy state of a station.
type StationStatus string

const (
	StatusAvailable   StationStatus = "AVAILABLE"
	StatusOccupied    StationStatus = "OCCUPIED"
	StatusMaintenance StationStatus = "MAINTENANCE"
	StatusOffline     StationStatus = "OFFLINE"
)

// Station represents a rentable terminal and its session history.
type Station struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Type           StationType     `json:"type"`
	HourlyRate     decimal.Decimal `json:"hourlyRate"`
	Specs          string          `json:"specifications,omitempty"`
	IPAddress      string          `json:"ipAddress,omitempty"`
	MACAddress     string          `json:"macAddress,omitempty"`
	Status         StationStatus   `json:"status"`
	Online         bool            `json:"online"`
	IsLocked       bool            `json:"isLocked"`
	LockedFor      string          `json:"lockedFor,omitempty"`
	HandRaised     bool            `json:"handRaised"`
	CurrentSession *ActiveSession  `json:"currentSession,omitempty"`
	PastSessions   []PastSession   `json:"pastSessions,omitempty"`
}

// Clone returns a deep copy safe to hand out to readers.
func (s *Station) Clone() *Station {
	cp := *s
	if s.CurrentSession != nil {
		session := *s.CurrentSession
		cp.CurrentSession = &session
	}
	if len(s.PastSessions) > 0 {
		cp.PastSessions = make([]PastSession, len(s.PastSessions))
		copy(cp.PastSessions, s.PastSessions)
	}
	return &cp
}

// HasPastSession reports whether a session id is already archived.
func (s *Station) HasPastSession(sessionID string) bool {
	for _, p := range s.PastSessions {
		if p.ID == sessionID {
			return true
		}
	}
	return false
}
