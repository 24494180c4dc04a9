// Package events pushes action outcomes to websocket subscribers.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/raphaelgruber/histograph-go/internal/actions"
	"github.com/raphaelgruber/histograph-go/internal/models"
)

const (
	// sendBuffer is how many messages a subscriber may lag behind before it
	// is dropped.
	sendBuffer   = 32
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
	pongTimeout  = pingInterval + 10*time.Second
)

// MessageTypeAction is the type of every action outcome message.
const MessageTypeAction = "action"

// Message is what subscribers receive.
type Message struct {
	Type      string          `json:"type"`
	Action    *models.Action  `json:"action"`
	Performed bool            `json:"performed"`
	Results   []models.Result `json:"results"`
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.send) })
}

// Hub fans action outcomes out to connected websocket clients.
// It implements actions.Notifier and http.Handler.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

var _ actions.Notifier = (*Hub)(nil)

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // allow all origins for local dev
			},
		},
		logger: logger,
		subs:   make(map[*subscriber]struct{}),
	}
}

// Subscribers returns the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Notify broadcasts an outcome. Subscribers whose buffer is full are
// disconnected rather than blocking the caller.
func (h *Hub) Notify(_ context.Context, o *actions.Outcome) {
	if o == nil {
		return
	}
	payload, err := json.Marshal(Message{
		Type:      MessageTypeAction,
		Action:    o.Action,
		Performed: o.Performed,
		Results:   o.Results,
	})
	if err != nil {
		h.logger.Error("failed to encode action event", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		select {
		case s.send <- payload:
		default:
			h.logger.Warn("dropping slow websocket subscriber", "remote", s.conn.RemoteAddr().String())
			delete(h.subs, s)
			s.close()
		}
	}
}

// ServeHTTP upgrades the request and keeps the subscriber until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	s := &subscriber{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket subscriber connected", "remote", conn.RemoteAddr().String())

	go h.writeLoop(s)
	h.readLoop(s)
}

// readLoop discards client messages; it exists to process control frames
// and to notice disconnects.
func (h *Hub) readLoop(s *subscriber) {
	defer h.remove(s)

	s.conn.SetReadLimit(512)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read failed", "error", err)
			}
			return
		}
	}
}

func (h *Hub) writeLoop(s *subscriber) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		s.close()
	}
	h.mu.Unlock()
	h.logger.Debug("websocket subscriber disconnected", "remote", s.conn.RemoteAddr().String())
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		delete(h.subs, s)
		s.close()
	}
}
