package devserver

import (
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/myapplejuice/final-project-the-kratos-hub-sub001/internal/models"
	"github.com/myapplejuice/final-project-the-kratos-hub-sub001/internal/observability"
)

// client wraps a websocket connection with a write lock; gorilla
// connections allow only one concurrent writer.
type client struct {
	userID string
	conn   *websocket.Conn
	meta   observability.RequestMeta
	mu     sync.Mutex
}

func (c *client) send(env models.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(env)
}

// Hub tracks which connections sit in which chat rooms and which
// connections belong to which user.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*client]bool
	users map[string]map[*client]bool
	joins map[*client]map[string]bool
}

func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[*client]bool),
		users: make(map[string]map[*client]bool),
		joins: make(map[*client]map[string]bool),
	}
}

// Attach registers an authenticated connection under its user id.
func (h *Hub) Attach(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.users[c.userID] == nil {
		h.users[c.userID] = make(map[*client]bool)
	}
	h.users[c.userID][c] = true
	h.joins[c] = make(map[string]bool)
	observability.IncWSActive("server")
}

// Detach removes a connection from every room and its user set.
func (h *Hub) Detach(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.joins[c]; !ok {
		return
	}
	for roomID := range h.joins[c] {
		delete(h.rooms[roomID], c)
		if len(h.rooms[roomID]) == 0 {
			delete(h.rooms, roomID)
		}
	}
	delete(h.joins, c)

	delete(h.users[c.userID], c)
	if len(h.users[c.userID]) == 0 {
		delete(h.users, c.userID)
	}
	observability.DecWSActive("server")
}

func (h *Hub) JoinRoom(roomID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*client]bool)
	}
	h.rooms[roomID][c] = true
	if h.joins[c] != nil {
		h.joins[c][roomID] = true
	}
}

func (h *Hub) LeaveRoom(roomID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.rooms[roomID], c)
	if len(h.rooms[roomID]) == 0 {
		delete(h.rooms, roomID)
	}
	if h.joins[c] != nil {
		delete(h.joins[c], roomID)
	}
}

// InRoom reports whether any connection of a user is joined to a room.
// Notifications are only pushed to users who are not already watching
// the room.
func (h *Hub) InRoom(roomID, userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[roomID] {
		if c.userID == userID {
			return true
		}
	}
	return false
}

// BroadcastRoom sends an envelope to every connection joined to a room.
func (h *Hub) BroadcastRoom(roomID string, env models.Envelope) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.rooms[roomID]))
	for c := range h.rooms[roomID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.deliver(c, env)
	}
}

// SendToUser sends an envelope to every connection of one user.
func (h *Hub) SendToUser(userID string, env models.Envelope) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.users[userID]))
	for c := range h.users[userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.deliver(c, env)
	}
}

func (h *Hub) deliver(c *client, env models.Envelope) {
	if err := c.send(env); err != nil {
		log.Printf("ws write failed user=%s event=%s: %v", c.userID, env.Event, err)
		_ = c.conn.Close()
		h.Detach(c)
		return
	}
	observability.IncWSEvent("outbound", env.Event)
}

// RoomSize reports the number of connections in a room; tests use it.
func (h *Hub) RoomSize(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// UserConnections reports the number of live connections for a user.
func (h *Hub) UserConnections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}
