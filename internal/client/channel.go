package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"portfolio-notify/internal/model"
)

// ConnState is the connection state surfaced to the rest of the app.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Sink receives every well-formed inbound notification record.
type Sink func(rec model.NotificationRecord)

// ChannelConfig configures the push channel client.
type ChannelConfig struct {
	// URL is the ws:// base of the backend, without path.
	URL              string
	Token            string
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
}

// Channel owns the lifetime of exactly one push channel connection for the
// active user. Transport errors surface only as a state transition to
// disconnected; reconnecting is the caller's decision, and a fresh Connect
// never replays events missed while down.
type Channel struct {
	cfg     ChannelConfig
	sink    Sink
	onState func(ConnState)
	logger  *zap.Logger

	state atomic.Int32

	mu   sync.Mutex
	conn *websocket.Conn
	wg   sync.WaitGroup
}

func NewChannel(cfg ChannelConfig, sink Sink, logger *zap.Logger) *Channel {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 90 * time.Second
	}
	return &Channel{
		cfg:    cfg,
		sink:   sink,
		logger: logger,
	}
}

// OnStateChange registers a listener for connection-state transitions.
// Must be called before Connect.
func (c *Channel) OnStateChange(fn func(ConnState)) {
	c.onState = fn
}

// State returns the current connection state.
func (c *Channel) State() ConnState {
	return ConnState(c.state.Load())
}

// Connect opens the push channel for userID. If a channel is already open
// it is torn down first, so re-entry is safe. The call returns once the
// server's handshake ack arrived and the forwarding loop is running.
func (c *Channel) Connect(ctx context.Context, userID int) error {
	c.Disconnect()
	c.setState(StateConnecting)

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	header := make(http.Header)
	header.Set("Authorization", "Bearer "+c.cfg.Token)

	url := fmt.Sprintf("%s/notifications/stream?userId=%d", c.cfg.URL, userID)
	conn, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		c.setState(StateDisconnected)
		return fmt.Errorf("push channel dial failed: %w", err)
	}

	// The server confirms the subscription with one ack frame before any
	// notification flows.
	conn.SetReadDeadline(time.Now().Add(c.cfg.HandshakeTimeout))
	var env model.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		conn.Close()
		c.setState(StateDisconnected)
		return fmt.Errorf("push channel handshake failed: %w", err)
	}
	if env.Event != model.EventConnected {
		conn.Close()
		c.setState(StateDisconnected)
		return fmt.Errorf("unexpected handshake frame %q", env.Event)
	}

	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.setState(StateConnected)
	c.logger.Info("Push channel connected", zap.Int("user_id", userID))

	c.wg.Add(1)
	go c.readLoop(conn, userID)
	return nil
}

// Disconnect closes the channel if open. Safe to call repeatedly; a no-op
// when already disconnected.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	c.wg.Wait()
	c.setState(StateDisconnected)
}

func (c *Channel) readLoop(conn *websocket.Conn, userID int) {
	defer c.wg.Done()

	for {
		conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			current := c.conn == conn
			if current {
				c.conn = nil
			}
			c.mu.Unlock()

			conn.Close()
			// Only the still-current connection owns the state flag; a
			// stale loop ending after a re-Connect must not clobber it.
			if current {
				c.logger.Warn("Push channel closed",
					zap.Int("user_id", userID),
					zap.Error(err),
				)
				c.setState(StateDisconnected)
			}
			return
		}

		c.forward(msg, userID)
	}
}

// forward parses one inbound frame and hands the record to the sink.
// Malformed payloads are dropped with a log; nothing in here may panic the
// pipeline.
func (c *Channel) forward(msg []byte, userID int) {
	var env model.Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		c.logger.Warn("Dropping malformed push frame",
			zap.Int("user_id", userID),
			zap.Error(err),
		)
		return
	}
	if env.Event != model.EventNotification {
		c.logger.Debug("Ignoring push frame", zap.String("event", env.Event))
		return
	}

	var rec model.NotificationRecord
	if err := json.Unmarshal(env.Data, &rec); err != nil {
		c.logger.Warn("Dropping malformed notification payload",
			zap.Int("user_id", userID),
			zap.Error(err),
		)
		return
	}
	if rec.ID == 0 {
		c.logger.Warn("Dropping notification without id", zap.Int("user_id", userID))
		return
	}

	c.sink(rec)
}

func (c *Channel) setState(s ConnState) {
	old := c.state.Swap(int32(s))
	if ConnState(old) != s && c.onState != nil {
		c.onState(s)
	}
}
