package websocket

import (
	"log"
	"sync"
)

// Registry tracks every live connection grouped by session, so one
// interview can have the candidate plus any number of observers attached.
// It implements the interfaces.Deliverer fan-out contract.
type Registry struct {
	mu     sync.RWMutex
	groups map[string]map[string]*Connection
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		groups: make(map[string]map[string]*Connection),
	}
}

// Register adds a connection to its session's delivery group. A second
// connection with the same client id replaces the first; the old one is
// closed asynchronously to avoid holding the registry lock.
func (r *Registry) Register(conn *Connection) error {
	if conn == nil {
		return ErrNilConnection
	}

	sessionID := conn.SessionID()
	clientID := conn.ClientID()

	r.mu.Lock()
	defer r.mu.Unlock()

	group := r.groups[sessionID]
	if group == nil {
		group = make(map[string]*Connection)
		r.groups[sessionID] = group
	}
	if existing, ok := group[clientID]; ok && existing != conn {
		go func() {
			if err := existing.Close(); err != nil {
				log.Printf("Failed to close replaced connection: %v", err)
			}
		}()
	}
	group[clientID] = conn
	return nil
}

// Unregister removes a connection. It is idempotent and only removes the
// exact instance that is registered, so a replaced connection's teardown
// cannot evict its successor.
func (r *Registry) Unregister(conn *Connection) {
	if conn == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	group, ok := r.groups[conn.SessionID()]
	if !ok {
		return
	}
	if registered, ok := group[conn.ClientID()]; !ok || registered != conn {
		return
	}
	delete(group, conn.ClientID())
	if len(group) == 0 {
		delete(r.groups, conn.SessionID())
	}
}

// Deliver fans a payload out to every connection in the session's group.
// Delivery is best-effort: an unreachable connection is dropped from the
// group rather than failing the dialogue turn.
func (r *Registry) Deliver(sessionID string, payload any) {
	r.mu.RLock()
	group := r.groups[sessionID]
	conns := make([]*Connection, 0, len(group))
	for _, conn := range group {
		conns = append(conns, conn)
	}
	r.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.WriteJSON(payload); err != nil {
			log.Printf("Dropping unreachable connection %s in session %s: %v", conn.ClientID(), sessionID, err)
			r.Unregister(conn)
			_ = conn.Close()
		}
	}
}

// SessionConnections returns the connections in a session's group.
func (r *Registry) SessionConnections(sessionID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	group := r.groups[sessionID]
	conns := make([]*Connection, 0, len(group))
	for _, conn := range group {
		conns = append(conns, conn)
	}
	return conns
}

// Stats reports registry counters for the health endpoint.
func (r *Registry) Stats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, group := range r.groups {
		total += len(group)
	}
	return map[string]int{
		"total_connections": total,
		"active_sessions":   len(r.groups),
	}
}
