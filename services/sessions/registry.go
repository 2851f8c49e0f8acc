package sessions

import (
	"log"
	"sync"
	"time"

	"Tavern/services/hub"

	"github.com/google/uuid"
)

// Registry maps an authenticated identity to its live connections. An
// identity may hold several connections at once (multiple devices); fan-out
// must reach all of them.
//
// When the last connection of an identity goes away the registry does not
// fire departure callbacks immediately: a grace period absorbs transient
// network drops and reconnects. Only if the identity is still offline when
// the timer expires are the callbacks (implicit lobby leave, room
// unsubscribe) invoked.
type Registry struct {
	mu     sync.Mutex
	conns  map[uuid.UUID]map[string]hub.Conn
	timers map[uuid.UUID]*time.Timer
	grace  time.Duration

	onDeparture []func(identity uuid.UUID)
}

func NewRegistry(grace time.Duration) *Registry {
	return &Registry{
		conns:  make(map[uuid.UUID]map[string]hub.Conn),
		timers: make(map[uuid.UUID]*time.Timer),
		grace:  grace,
	}
}

// OnDeparture registers a callback that runs once an identity has been
// offline for the full grace period. Must be called during setup, before
// connections arrive.
func (r *Registry) OnDeparture(fn func(identity uuid.UUID)) {
	r.onDeparture = append(r.onDeparture, fn)
}

// Bind attaches a connection to an identity and cancels any pending
// departure timer for it.
func (r *Registry) Bind(identity uuid.UUID, conn hub.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.timers[identity]; ok {
		t.Stop()
		delete(r.timers, identity)
		log.Printf("[SESSION] %s reconnected within grace period", identity)
	}

	set, ok := r.conns[identity]
	if !ok {
		set = make(map[string]hub.Conn)
		r.conns[identity] = set
	}
	set[conn.ID()] = conn
}

// Unbind detaches a connection. If it was the identity's last one, a grace
// timer is started; departure callbacks fire only on expiry with the
// identity still offline.
func (r *Registry) Unbind(identity uuid.UUID, conn hub.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[identity]
	if !ok {
		return
	}
	delete(set, conn.ID())
	if len(set) > 0 {
		return
	}
	delete(r.conns, identity)

	if t, ok := r.timers[identity]; ok {
		t.Stop()
	}
	r.timers[identity] = time.AfterFunc(r.grace, func() {
		r.expire(identity)
	})
}

func (r *Registry) expire(identity uuid.UUID) {
	r.mu.Lock()
	if _, online := r.conns[identity]; online {
		// Reconnected between timer fire and lock acquisition.
		r.mu.Unlock()
		return
	}
	delete(r.timers, identity)
	callbacks := r.onDeparture
	r.mu.Unlock()

	log.Printf("[SESSION] grace period expired for %s, running departure cleanup", identity)
	for _, fn := range callbacks {
		fn(identity)
	}
}

// Connections returns a snapshot of the identity's live connections.
func (r *Registry) Connections(identity uuid.UUID) []hub.Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.conns[identity]
	out := make([]hub.Conn, 0, len(set))
	for _, c := range set {
		out = append(out, c)
	}
	return out
}

// Online reports whether the identity has at least one live connection.
func (r *Registry) Online(identity uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.conns[identity]
	return ok
}

// EmitTo sends an event to every live connection of an identity. Returns
// the number of connections reached.
func (r *Registry) EmitTo(identity uuid.UUID, event string, payload any) int {
	conns := r.Connections(identity)
	for _, c := range conns {
		c.Emit(event, payload)
	}
	return len(conns)
}

// Close stops all pending timers. Used on shutdown, after the socket server
// has drained its connections.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, t := range r.timers {
		t.Stop()
		delete(r.timers, id)
	}
}
