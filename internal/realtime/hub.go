package realtime

import (
	"log/slog"
	"sync"

	"github.com/ltessier/courier/internal/adapters/metrics"
)

// Hub tracks this instance's live connections: which clients belong to
// which user, and which rooms each client currently subscribes to. Cross
// instance routing happens on the fabric; the hub only fans out locally.
type Hub struct {
	mu    sync.RWMutex
	users map[string]map[*Client]struct{}
	rooms map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		users: make(map[string]map[*Client]struct{}),
		rooms: make(map[string]map[*Client]struct{}),
	}
}

// Register binds an authenticated client to its user and auto-joins the
// personal room.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.users[c.userID] == nil {
		h.users[c.userID] = make(map[*Client]struct{})
	}
	h.users[c.userID][c] = struct{}{}
	h.joinLocked(c, PersonalRoom(c.userID))

	metrics.ConnectionsActive.Inc()
	slog.Info("ws: client registered", "user_id", c.userID, "connections", len(h.users[c.userID]))
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.users[c.userID]; ok {
		if _, present := conns[c]; !present {
			return
		}
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.users, c.userID)
		}
	} else {
		return
	}

	for room := range c.rooms {
		h.leaveLocked(c, room)
	}

	metrics.ConnectionsActive.Dec()
	slog.Info("ws: client unregistered", "user_id", c.userID)
}

func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.joinLocked(c, room)
}

func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, room)
}

func (h *Hub) joinLocked(c *Client, room string) {
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][c] = struct{}{}
	c.rooms[room] = struct{}{}
}

func (h *Hub) leaveLocked(c *Client, room string) {
	if subs, ok := h.rooms[room]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(c.rooms, room)
}

// Broadcast fans a frame out to every local subscriber of a room. Clients
// whose queue is full are dropped rather than blocking the broadcast.
func (h *Hub) Broadcast(room string, frame []byte) {
	h.mu.RLock()
	subs := make([]*Client, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		subs = append(subs, c)
	}
	h.mu.RUnlock()

	for _, c := range subs {
		c.enqueue(frame)
	}
}

// HasSubscribers reports whether any local client is in the room.
func (h *Hub) HasSubscribers(room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room]) > 0
}

// ForceDisconnect closes every local connection of a user after flushing
// the given frame.
func (h *Hub) ForceDisconnect(userID string, frame []byte) {
	h.mu.RLock()
	conns := make([]*Client, 0, len(h.users[userID]))
	for c := range h.users[userID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		c.enqueue(frame)
		c.close()
	}
	if len(conns) > 0 {
		metrics.ConnectionsDropped.WithLabelValues("forced").Add(float64(len(conns)))
		slog.Info("ws: force disconnected", "user_id", userID, "connections", len(conns))
	}
}

// Shutdown closes every connection, flushing frame first. Used during the
// graceful drain window.
func (h *Hub) Shutdown(frame []byte) {
	h.mu.RLock()
	var conns []*Client
	for _, set := range h.users {
		for c := range set {
			conns = append(conns, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range conns {
		c.enqueue(frame)
		c.close()
	}
}

// PersonalRoom names the room that reaches all of one user's devices.
func PersonalRoom(userID string) string {
	return "user:" + userID
}

// ConversationRoom names the fan-out room for a conversation.
func ConversationRoom(conversationID string) string {
	return "conversation:" + conversationID
}
