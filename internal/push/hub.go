package push

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"portfolio-notify/internal/model"
	"portfolio-notify/pkg/metrics"
)

const writeTimeout = 5 * time.Second

type session struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	done    chan struct{}
}

func (s *session) writeEnvelope(env model.Envelope) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(env)
}

func (s *session) ping() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

// Hub keeps the registry of live push channel sessions, one set per user,
// and fans notification records out to them.
type Hub struct {
	mu       sync.RWMutex
	sessions map[int]map[*session]struct{}

	logger       *zap.Logger
	pingInterval time.Duration
	readTimeout  time.Duration
}

func NewHub(logger *zap.Logger, pingInterval, readTimeout time.Duration) *Hub {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	if readTimeout <= 0 {
		readTimeout = 60 * time.Second
	}
	return &Hub{
		sessions:     make(map[int]map[*session]struct{}),
		logger:       logger,
		pingInterval: pingInterval,
		readTimeout:  readTimeout,
	}
}

// Serve takes ownership of an upgraded connection for userID: sends the
// handshake ack frame, registers the session and blocks reading until the
// peer goes away. The ack is what drives the client's connecting→connected
// transition.
func (h *Hub) Serve(userID int, conn *websocket.Conn) {
	s := &session{conn: conn, done: make(chan struct{})}

	if err := s.writeEnvelope(model.Envelope{Event: model.EventConnected}); err != nil {
		h.logger.Warn("Failed to send handshake ack",
			zap.Int("user_id", userID),
			zap.Error(err),
		)
		conn.Close()
		return
	}

	h.register(userID, s)
	defer h.unregister(userID, s)

	go h.pingLoop(userID, s)

	conn.SetReadDeadline(time.Now().Add(h.readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(h.readTimeout))
		return nil
	})

	// Clients never send application frames. Drain reads so ping/pong and
	// close frames are processed.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Publish delivers one record to every live session of the user.
func (h *Hub) Publish(userID int, rec model.NotificationRecord) {
	data, err := json.Marshal(rec)
	if err != nil {
		h.logger.Error("Failed to marshal notification for push", zap.Error(err))
		return
	}
	env := model.Envelope{Event: model.EventNotification, Data: data}

	h.mu.RLock()
	targets := make([]*session, 0, len(h.sessions[userID]))
	for s := range h.sessions[userID] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		if err := s.writeEnvelope(env); err != nil {
			h.logger.Warn("Push delivery failed, dropping session",
				zap.Int("user_id", userID),
				zap.Int("notification_id", rec.ID),
				zap.Error(err),
			)
			metrics.IncrementPushDelivered("dropped")
			// Closing wakes the Serve read loop, which unregisters.
			s.conn.Close()
			continue
		}
		metrics.IncrementPushDelivered("sent")
	}
}

// SessionCount returns the number of registered sessions across all users.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, set := range h.sessions {
		n += len(set)
	}
	return n
}

// Close drops every registered session.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, set := range h.sessions {
		for s := range set {
			s.conn.Close()
		}
	}
	h.sessions = make(map[int]map[*session]struct{})
}

func (h *Hub) register(userID int, s *session) {
	h.mu.Lock()
	if h.sessions[userID] == nil {
		h.sessions[userID] = make(map[*session]struct{})
	}
	h.sessions[userID][s] = struct{}{}
	h.mu.Unlock()

	metrics.PushSessions.Inc()
	h.logger.Info("Push session registered", zap.Int("user_id", userID))
}

func (h *Hub) unregister(userID int, s *session) {
	h.mu.Lock()
	set := h.sessions[userID]
	if _, ok := set[s]; !ok {
		h.mu.Unlock()
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(h.sessions, userID)
	}
	h.mu.Unlock()

	close(s.done)
	s.conn.Close()
	metrics.PushSessions.Dec()
	h.logger.Info("Push session unregistered", zap.Int("user_id", userID))
}

func (h *Hub) pingLoop(userID int, s *session) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.ping(); err != nil {
				h.logger.Debug("Push ping failed",
					zap.Int("user_id", userID),
					zap.Error(err),
				)
				s.conn.Close()
				return
			}
		}
	}
}
