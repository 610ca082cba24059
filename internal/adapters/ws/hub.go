// Package ws implements the per-session live update channel over websocket.
// The channel is a notification hint, never a source of truth: missed events
// are not replayed, clients reconcile via the session endpoints after a
// reconnect.
package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/FelixJx/fupan-game/pkg/logger"
	"github.com/FelixJx/fupan-game/pkg/metrics"
)

// Server-to-client message kinds.
const (
	MessageMarketUpdate    = "market_update"
	MessageAchievement     = "achievement"
	MessageScoreCalculated = "score_calculated"
)

// Default hub configuration constants.
const (
	defaultSendBuffer = 16
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = 54 * time.Second // must be less than pongWait
)

// Message is one live-update push.
type Message struct {
	Type      string      `json:"type"`
	SessionID string      `json:"session_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// client is one websocket subscriber for a session.
type client struct {
	conn *websocket.Conn
	send chan Message
}

// Option applies a configuration option to the Hub.
type Option func(*Hub)

// WithSendBuffer sets the per-client outbound buffer size.
func WithSendBuffer(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.sendBuffer = size
		}
	}
}

// WithLogger sets a custom logger for the hub.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// Hub fans out messages to the subscribers of each session. A session may
// have any number of subscribers (zero after a drop, more than one during a
// reconnect race); sends never block game progress.
type Hub struct {
	mu         sync.RWMutex
	sessions   map[string]map[*client]struct{}
	sendBuffer int
	logger     logger.Logger
}

// NewHub creates an empty hub with configuration options.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		sessions:   make(map[string]map[*client]struct{}),
		sendBuffer: defaultSendBuffer,
		logger:     logger.Named("ws"),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Subscribe registers conn for sessionID and services it until the
// connection drops or ctx is canceled. It blocks, so call it from the HTTP
// handler goroutine. Reconnecting with the same sessionID simply subscribes
// again; missed events are not replayed.
func (h *Hub) Subscribe(ctx context.Context, sessionID string, conn *websocket.Conn) {
	c := &client{
		conn: conn,
		send: make(chan Message, h.sendBuffer),
	}

	h.mu.Lock()
	subs, ok := h.sessions[sessionID]
	if !ok {
		subs = make(map[*client]struct{})
		h.sessions[sessionID] = subs
	}
	subs[c] = struct{}{}
	h.mu.Unlock()

	metrics.IncWSConnections()
	h.logger.Debug(ctx, "subscriber connected", logger.String("sessionID", sessionID))

	defer func() {
		h.unsubscribe(sessionID, c)
		metrics.DecWSConnections()
		_ = conn.Close()
	}()

	// The reader only consumes control frames; inbound data frames are
	// discarded. Its exit signals a dropped connection.
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		conn.SetReadLimit(1024)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-readerDone:
			h.logger.Debug(ctx, "subscriber dropped", logger.String("sessionID", sessionID))
			return
		case msg := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug(ctx, "write failed", logger.String("sessionID", sessionID), logger.Error(err))
				return
			}
			metrics.RecordWSMessageSent()
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) unsubscribe(sessionID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.sessions[sessionID]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.sessions, sessionID)
		}
	}
}

// Publish pushes a message to every subscriber of one session, best-effort:
// slow or absent subscribers lose the message rather than blocking the
// caller.
func (h *Hub) Publish(sessionID string, msgType string, data interface{}) {
	msg := Message{
		Type:      msgType,
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.sessions[sessionID] {
		select {
		case c.send <- msg:
		default:
			metrics.RecordWSMessageDropped()
		}
	}
}

// Broadcast pushes a message to the subscribers of every session.
func (h *Hub) Broadcast(msgType string, data interface{}) {
	now := time.Now().UnixMilli()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sessionID, subs := range h.sessions {
		msg := Message{Type: msgType, SessionID: sessionID, Data: data, Timestamp: now}
		for c := range subs {
			select {
			case c.send <- msg:
			default:
				metrics.RecordWSMessageDropped()
			}
		}
	}
}

// SessionCount returns the number of sessions with at least one subscriber.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}
