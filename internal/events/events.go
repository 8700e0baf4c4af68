package events

import (
	"encoding/json"
	"errors"
	"fmt"

	"cafedeck/internal/models"
)

// Recognized envelope types pushed by the backend event channel.
const (
	TypeSessionUpdate   = "SESSION_UPDATE"
	TypeStationStatus   = "STATION_STATUS"
	TypeStationUpdate   = "STATION_UPDATE"
	TypeAnalyticsUpdate = "analytics_update"
)

// Event is one decoded push message.
type Event interface {
	EventType() string
}

// SessionUpdate reports progress or completion of a station's session.
// EndTime is epoch milliseconds of the session deadline.
type SessionUpdate struct {
	StationID   string `json:"stationId"`
	Status      string `json:"status"`
	SessionID   string `json:"sessionId"`
	CurrentTime int64  `json:"currentTime"`
	EndTime     int64  `json:"endTime"`
}

func (SessionUpdate) EventType() string { return TypeSessionUpdate }

// Completed reports whether the session has finished.
func (e SessionUpdate) Completed() bool { return e.Status == "COMPLETED" }

// StationStatus updates a station's occupancy status and online overlay.
type StationStatus struct {
	StationID string               `json:"stationId"`
	Status    models.StationStatus `json:"status"`
	Online    bool                 `json:"online"`
}

func (StationStatus) EventType() string { return TypeStationStatus }

// StationUpdate carries a full refresh of one station.
type StationUpdate struct {
	Station models.Station `json:"station"`
}

func (StationUpdate) EventType() string { return TypeStationUpdate }

// Unknown wraps any envelope type this core does not consume. Kept instead of
// rejected so new backend event types stay forward-compatible.
type Unknown struct {
	Type string
	Raw  json.RawMessage
}

func (e Unknown) EventType() string { return e.Type }

type envelope struct {
	Type string `json:"type"`
}

// Parse decodes one raw frame into a typed event. Frames that are not a JSON
// object with a string type field are rejected; the caller drops them.
func Parse(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("events: decode envelope: %w", err)
	}
	if env.Type == "" {
		return nil, errors.New("events: missing type field")
	}

	switch env.Type {
	case TypeSessionUpdate:
		var ev SessionUpdate
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("events: decode %s: %w", env.Type, err)
		}
		if ev.StationID == "" {
			return nil, fmt.Errorf("events: %s missing stationId", env.Type)
		}
		return ev, nil
	case TypeStationStatus:
		var ev StationStatus
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("events: decode %s: %w", env.Type, err)
		}
		if ev.StationID == "" {
			return nil, fmt.Errorf("events: %s missing stationId", env.Type)
		}
		return ev, nil
	case TypeStationUpdate:
		var ev StationUpdate
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("events: decode %s: %w", env.Type, err)
		}
		if ev.Station.ID == "" {
			return nil, fmt.Errorf("events: %s missing station id", env.Type)
		}
		return ev, nil
	default:
		return Unknown{Type: env.Type, Raw: append(json.RawMessage(nil), data...)}, nil
	}
}

// Command is an outbound message for the event channel, e.g. the subscribe
// handshake sent after connecting.
type Command struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}
