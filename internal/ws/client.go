// Package ws owns the single client connection to the backend's event
// channel: connect/reconnect with bounded constant backoff, an inbound event
// stream fanned out to any number of subscribers, and an outbound command
// sink. The client is constructed and injected explicitly; there is no
// package-level singleton.
package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"cafedeck/internal/events"
)

// State of the connection to the event channel.
type State string

const (
	StateDisconnected State = "DISCONNECTED"
	StateConnecting   State = "CONNECTING"
	StateConnected    State = "CONNECTED"
)

// ErrNotConnected is returned by Send while the channel is down.
var ErrNotConnected = errors.New("ws: not connected")

const pingInterval = 30 * time.Second

// Config controls the connection and its reconnect policy.
type Config struct {
	URL                  string
	MaxReconnectAttempts int
	ReconnectInterval    time.Duration
	ReadTimeout          time.Duration
	WriteTimeout         time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = 5
	}
	if c.ReconnectInterval <= 0 {
		c.ReconnectInterval = 3 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 60 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	return c
}

// EventListener observes every decoded inbound event.
type EventListener func(ev events.Event)

// StateListener observes connection state changes.
type StateListener func(state State)

// Client maintains at most one live connection to the event channel.
type Client struct {
	cfg     Config
	dialer  *websocket.Dialer
	clock   clockwork.Clock
	logger  *zap.Logger
	backoff *backoff.ConstantBackOff

	mu         sync.Mutex
	state      State
	conn       *websocket.Conn
	attempts   int
	suppressed bool
	reconnect  clockwork.Timer

	// writeMu serializes socket writes; gorilla/websocket allows at most one
	// concurrent writer. It is never held together with mu.
	writeMu sync.Mutex

	eventSubs  map[string]EventListener
	eventOrder []string
	stateSubs  map[string]StateListener
	stateOrder []string
}

// NewClient builds a disconnected client. The clock is injected so reconnect
// timing is deterministic under test.
func NewClient(cfg Config, clock clockwork.Clock, logger *zap.Logger) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		cfg:        cfg,
		dialer:     &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		clock:      clock,
		logger:     logger,
		backoff:    backoff.NewConstantBackOff(cfg.ReconnectInterval),
		state:      StateDisconnected,
		suppressed: true,
		eventSubs:  make(map[string]EventListener),
		stateSubs:  make(map[string]StateListener),
	}
}

// SubscribeEvents registers an inbound event listener; the returned cancel
// detaches it immediately. Re-registration never replaces other listeners.
func (c *Client) SubscribeEvents(l EventListener) func() {
	id := uuid.New().String()
	c.mu.Lock()
	c.eventSubs[id] = l
	c.eventOrder = append(c.eventOrder, id)
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.eventSubs, id)
		c.eventOrder = removeID(c.eventOrder, id)
	}
}

// SubscribeState registers a connection-state listener. Listeners run on the
// connection's internal goroutine and must not call back into the client
// synchronously.
func (c *Client) SubscribeState(l StateListener) func() {
	id := uuid.New().String()
	c.mu.Lock()
	c.stateSubs[id] = l
	c.stateOrder = append(c.stateOrder, id)
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.stateSubs, id)
		c.stateOrder = removeID(c.stateOrder, id)
	}
}

func removeID(order []string, id string) []string {
	for i, v := range order {
		if v == id {
			return append(order[:i], order[i+1:]...)
		}
	}
	return order
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempts returns the current reconnect attempt counter.
func (c *Client) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Connect starts the connection. Calling it while already connecting or
// connected is a no-op; calling it after reconnects were exhausted or after
// Disconnect resets the attempt counter and re-enables auto-reconnect.
func (c *Client) Connect() {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.suppressed = false
	c.attempts = 0
	c.backoff.Reset()
	c.stopReconnectLocked()
	c.mu.Unlock()

	go c.dial()
}

// Disconnect tears down the socket and cancels any pending reconnect timer.
// Auto-reconnect stays suppressed until the next Connect.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.suppressed = true
	c.stopReconnectLocked()
	conn := c.conn
	c.conn = nil
	c.setStateLocked(StateDisconnected)
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

// Send marshals a command onto the channel. The write happens outside the
// state mutex so a slow socket never blocks State/Attempts or subscriptions.
func (c *Client) Send(cmd events.Command) error {
	c.mu.Lock()
	conn := c.conn
	connected := c.state == StateConnected
	c.mu.Unlock()
	if !connected || conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return conn.WriteJSON(cmd)
}

func (c *Client) dial() {
	c.mu.Lock()
	if c.suppressed {
		c.mu.Unlock()
		return
	}
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	conn, _, err := c.dialer.Dial(c.cfg.URL, nil)

	c.mu.Lock()
	if c.suppressed {
		c.setStateLocked(StateDisconnected)
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		c.logger.Warn("event channel dial failed", zap.String("url", c.cfg.URL), zap.Error(err))
		c.setStateLocked(StateDisconnected)
		c.scheduleReconnectLocked()
		c.mu.Unlock()
		return
	}

	c.conn = conn
	c.attempts = 0
	c.backoff.Reset()
	c.setStateLocked(StateConnected)
	c.mu.Unlock()

	c.logger.Info("event channel connected", zap.String("url", c.cfg.URL))
	go c.writePump(conn)
	go c.readPump(conn)
}

// scheduleReconnectLocked arms the reconnect timer unless the attempt counter
// has reached the configured maximum.
func (c *Client) scheduleReconnectLocked() {
	if c.attempts >= c.cfg.MaxReconnectAttempts {
		c.logger.Error("reconnect attempts exhausted",
			zap.Int("attempts", c.attempts),
			zap.String("url", c.cfg.URL))
		return
	}
	c.attempts++
	delay := c.backoff.NextBackOff()
	c.logger.Info("scheduling reconnect",
		zap.Int("attempt", c.attempts),
		zap.Int("max_attempts", c.cfg.MaxReconnectAttempts),
		zap.Duration("delay", delay))
	c.reconnect = c.clock.AfterFunc(delay, c.dial)
}

func (c *Client) stopReconnectLocked() {
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
}

func (c *Client) setStateLocked(state State) {
	if c.state == state {
		return
	}
	c.state = state
	for _, id := range c.stateOrder {
		if l, ok := c.stateSubs[id]; ok {
			l(state)
		}
	}
}

func (c *Client) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(1024 * 1024)
	_ = conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			c.handleClosed(conn, err)
			return
		}

		ev, parseErr := events.Parse(message)
		if parseErr != nil {
			// Malformed payloads never reach subscribers and never kill the pump.
			c.logger.Warn("dropping malformed event payload", zap.Error(parseErr))
			continue
		}

		c.mu.Lock()
		order := append([]string(nil), c.eventOrder...)
		subs := make(map[string]EventListener, len(c.eventSubs))
		for id, l := range c.eventSubs {
			subs[id] = l
		}
		c.mu.Unlock()

		for _, id := range order {
			if l, ok := subs[id]; ok {
				l(ev)
			}
		}
	}
}

func (c *Client) writePump(conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		current := c.conn == conn
		c.mu.Unlock()
		if !current {
			return
		}
		c.writeMu.Lock()
		_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
		err := conn.WriteMessage(websocket.PingMessage, []byte("ping"))
		c.writeMu.Unlock()
		if err != nil {
			return
		}
	}
}

// handleClosed reacts to a read failure on what may or may not still be the
// live connection; stale pump exits after a manual Disconnect are ignored.
func (c *Client) handleClosed(conn *websocket.Conn, err error) {
	_ = conn.Close()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != conn {
		return
	}
	c.conn = nil
	c.logger.Info("event channel closed", zap.Error(err))
	c.setStateLocked(StateDisconnected)
	if !c.suppressed {
		c.scheduleReconnectLocked()
	}
}
