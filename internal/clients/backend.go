// Package clients wraps the backend REST API consumed by the dashboard:
// snapshot/config reads at hydration and the action commands issued by the
// gateway.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"cafedeck/internal/models"
)

// Backend is an HTTP client for the café backend.
type Backend struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewBackend builds the HTTP client wrapper.
func NewBackend(baseURL string, timeout time.Duration, logger *zap.Logger) *Backend {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Backend{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// SystemConfig is the operator configuration fetched once at hydration.
type SystemConfig struct {
	CafeName     string                     `json:"cafeName"`
	Theme        string                     `json:"theme"`
	AllowedTimes []int                      `json:"allowedTimes"`
	HourlyRates  map[string]decimal.Decimal `json:"hourlyRates"`
}

// SessionPayload carries the backend's authoritative session fields; they
// supersede the optimistic guess field by field.
type SessionPayload struct {
	SessionID     string `json:"sessionId"`
	TimeRemaining int    `json:"timeRemaining"`
}

// GetStations fetches the full station snapshot.
func (c *Backend) GetStations(ctx context.Context) ([]models.Station, error) {
	var payload struct {
		Stations []models.Station `json:"stations"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/stations", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Stations, nil
}

// GetSystemConfig fetches operator configuration (allowed times, rates, name).
func (c *Backend) GetSystemConfig(ctx context.Context) (*SystemConfig, error) {
	var cfg SystemConfig
	if err := c.do(ctx, http.MethodGet, "/api/config", nil, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// CreateStation deploys a new station.
func (c *Backend) CreateStation(ctx context.Context, st models.Station) (*models.Station, error) {
	var created models.Station
	if err := c.do(ctx, http.MethodPost, "/api/stations", st, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// DeleteStation removes a station.
func (c *Backend) DeleteStation(ctx context.Context, stationID string) error {
	return c.do(ctx, http.MethodDelete, "/api/stations/"+url.PathEscape(stationID), nil, nil)
}

// LockStation reserves a station, optionally for a named customer.
func (c *Backend) LockStation(ctx context.Context, stationID, assignee string) error {
	body := map[string]string{"lockedFor": assignee}
	return c.do(ctx, http.MethodPost, "/api/stations/"+url.PathEscape(stationID)+"/lock", body, nil)
}

// UnlockStation releases a reservation.
func (c *Backend) UnlockStation(ctx context.Context, stationID string) error {
	return c.do(ctx, http.MethodPost, "/api/stations/"+url.PathEscape(stationID)+"/unlock", nil, nil)
}

// StartSession begins a session; the response carries the authoritative id.
func (c *Backend) StartSession(ctx context.Context, stationID, customerName string, minutes int, prepaid decimal.Decimal) (*SessionPayload, error) {
	body := map[string]interface{}{
		"stationId":     stationID,
		"customerName":  customerName,
		"timeMinutes":   minutes,
		"prepaidAmount": prepaid,
	}
	var payload SessionPayload
	if err := c.do(ctx, http.MethodPost, "/api/sessions", body, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// EndSession finalizes a session.
func (c *Backend) EndSession(ctx context.Context, sessionID string) (*SessionPayload, error) {
	var payload SessionPayload
	if err := c.do(ctx, http.MethodPost, "/api/sessions/"+url.PathEscape(sessionID)+"/end", nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// AddTime extends a session; the response carries server-computed remaining time.
func (c *Backend) AddTime(ctx context.Context, sessionID string, minutes int) (*SessionPayload, error) {
	body := map[string]int{"minutes": minutes}
	var payload SessionPayload
	if err := c.do(ctx, http.MethodPost, "/api/sessions/"+url.PathEscape(sessionID)+"/add-time", body, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// SetHandRaised toggles the operator-assistance flag.
func (c *Backend) SetHandRaised(ctx context.Context, stationID string, raised bool) error {
	body := map[string]bool{"raised": raised}
	return c.do(ctx, http.MethodPost, "/api/stations/"+url.PathEscape(stationID)+"/hand", body, nil)
}

func (c *Backend) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("backend: marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("backend: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("backend request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
		return fmt.Errorf("backend: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		c.logger.Warn("backend returned non-success",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode))
		return fmt.Errorf("backend: %s %s: status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("backend: decode response: %w", err)
	}
	return nil
}
