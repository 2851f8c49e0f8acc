package hub

import (
	"sync"
)

// Conn is a live client connection that events can be emitted to. The
// socket.io socket is adapted to this interface so the hub (and its tests)
// never depend on the transport.
type Conn interface {
	ID() string
	Emit(event string, payload any)
}

// Hub keeps room-scoped subscriber sets and delivers ordered broadcasts.
// State is partitioned per room: publishing to one room never blocks
// another.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]*room
}

type room struct {
	// mu serializes subscribe/unsubscribe/publish for one room so that
	// delivery order equals publish order and a late subscriber never
	// receives an earlier event.
	mu    sync.Mutex
	subs  map[string]Conn
	order []string
}

func New() *Hub {
	return &Hub{rooms: make(map[string]*room)}
}

func (h *Hub) getRoom(roomID string, create bool) *room {
	h.mu.RLock()
	r, ok := h.rooms[roomID]
	h.mu.RUnlock()
	if ok || !create {
		return r
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok = h.rooms[roomID]; ok {
		return r
	}
	r = &room{subs: make(map[string]Conn)}
	h.rooms[roomID] = r
	return r
}

// Subscribe adds a connection to a room's subscriber set.
func (h *Hub) Subscribe(roomID string, conn Conn) {
	r := h.getRoom(roomID, true)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subs[conn.ID()]; !ok {
		r.subs[conn.ID()] = conn
		r.order = append(r.order, conn.ID())
	}
}

// Unsubscribe removes a connection from a room. It is idempotent:
// unsubscribing a connection that is not subscribed is a no-op.
func (h *Hub) Unsubscribe(roomID string, conn Conn) {
	r := h.getRoom(roomID, false)
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remove(conn.ID())
}

func (r *room) remove(connID string) {
	if _, ok := r.subs[connID]; !ok {
		return
	}
	delete(r.subs, connID)
	for i, id := range r.order {
		if id == connID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// UnsubscribeAll removes a connection from every room it is subscribed to.
// Used when a socket disconnects.
func (h *Hub) UnsubscribeAll(conn Conn) {
	h.mu.RLock()
	rooms := make([]*room, 0, len(h.rooms))
	for _, r := range h.rooms {
		rooms = append(rooms, r)
	}
	h.mu.RUnlock()

	for _, r := range rooms {
		r.mu.Lock()
		r.remove(conn.ID())
		r.mu.Unlock()
	}
}

// Publish emits an event to every connection currently subscribed to the
// room, in subscription order. Events published while holding the room are
// delivered in publish order. Publishing to a room with no subscribers is
// a no-op, never an error.
func (h *Hub) Publish(roomID string, event string, payload any) {
	r := h.getRoom(roomID, false)
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.order {
		r.subs[id].Emit(event, payload)
	}
}

// Subscribers returns the current subscriber count of a room.
func (h *Hub) Subscribers(roomID string) int {
	r := h.getRoom(roomID, false)
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}
