// Package realtime keeps the websocket connections of this instance and fans events
// out across instances through Redis pub/sub.
package realtime

import (
	"context"
	"sync"
	"time"

	"ops-notifications/internal/common/logger"
	"ops-notifications/internal/common/metrics"
	"ops-notifications/internal/models"
)

// Conn is the part of *websocket.Conn the hub writes through.
type Conn interface {
	WriteJSON(v interface{}) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Client is one registered connection. Writes to a connection are serialized.
type Client struct {
	UserID string
	conn   Conn
	mu     sync.Mutex
}

func (c *Client) write(v interface{}, timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if timeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	return c.conn.WriteJSON(v)
}

// Hub is the per-instance connection registry, keyed by user id.
type Hub struct {
	mu           sync.RWMutex
	clients      map[string]map[*Client]struct{}
	writeTimeout time.Duration
	logger       logger.Logger

	presenceMu sync.RWMutex
	presence   func(userID string)
}

func NewHub(log logger.Logger) *Hub {
	return &Hub{
		clients:      make(map[string]map[*Client]struct{}),
		writeTimeout: 10 * time.Second,
		logger:       log.WithFields(map[string]interface{}{"component": "realtime_hub"}),
	}
}

// OnPresenceChange sets fn to be called whenever a user gains a first connection or loses
// the last one. fn runs outside the hub lock and should re-read ConnectionCount.
func (h *Hub) OnPresenceChange(fn func(userID string)) {
	h.presenceMu.Lock()
	h.presence = fn
	h.presenceMu.Unlock()
}

func (h *Hub) notifyPresence(userID string) {
	h.presenceMu.RLock()
	fn := h.presence
	h.presenceMu.RUnlock()
	if fn != nil {
		fn(userID)
	}
}

func (h *Hub) Register(userID string, conn Conn) *Client {
	c := &Client{UserID: userID, conn: conn}

	h.mu.Lock()
	set, ok := h.clients[userID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[userID] = set
	}
	set[c] = struct{}{}
	count := len(set)
	h.mu.Unlock()
	metrics.RealtimeConnections.Inc()

	if count == 1 {
		h.notifyPresence(userID)
	}

	h.logger.Debug("connection registered", map[string]interface{}{"userId": userID, "connections": count})
	return c
}

// Unregister is safe to call more than once for the same client.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	set, ok := h.clients[c.UserID]
	_, present := set[c]
	gone := false
	if ok && present {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.UserID)
			gone = true
		}
	}
	h.mu.Unlock()

	if present {
		metrics.RealtimeConnections.Dec()
	}
	if gone {
		h.notifyPresence(c.UserID)
	}
}

// Users lists the users holding at least one connection on this instance.
func (h *Hub) Users() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	users := make([]string, 0, len(h.clients))
	for userID := range h.clients {
		users = append(users, userID)
	}
	return users
}

func (h *Hub) ConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Deliver writes the event to every local connection of the user and returns how many
// accepted it. Connections that fail the write are dropped.
func (h *Hub) Deliver(userID string, event models.RealtimeEvent) int {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients[userID]))
	for c := range h.clients[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	reached := 0
	for _, c := range targets {
		if err := c.write(event, h.writeTimeout); err != nil {
			h.logger.Warn("dropping connection after failed write", map[string]interface{}{
				"userId": userID,
				"error":  err,
			})
			h.Unregister(c)
			_ = c.conn.Close()
			continue
		}
		reached++
	}
	return reached
}

// BroadcastToUser delivers to local connections only. Use RedisBridge when more than one
// instance serves websockets.
func (h *Hub) BroadcastToUser(_ context.Context, userID string, event models.RealtimeEvent) (int, error) {
	return h.Deliver(userID, event), nil
}

// CloseAll closes every connection; used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	all := h.clients
	h.clients = make(map[string]map[*Client]struct{})
	h.mu.Unlock()

	for userID, set := range all {
		for c := range set {
			_ = c.conn.Close()
			metrics.RealtimeConnections.Dec()
		}
		h.notifyPresence(userID)
	}
}
