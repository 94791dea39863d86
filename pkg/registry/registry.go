package registry

import (
	"sync"

	"kwak/pkg/protocol"
)

// Registry tracks the live set of connections and their attached
// identities. It owns the connection map; nothing else mutates it. The
// registry never notifies anyone of a change, that is the presence
// broadcaster's job.
type Registry struct {
	conns map[string]*Conn
	mu    sync.RWMutex
}

// New creates an empty registry
func New() *Registry {
	return &Registry{
		conns: make(map[string]*Conn),
	}
}

// Add registers a connection
func (r *Registry) Add(conn *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[conn.ID()] = conn
}

// Get returns a connection by id
func (r *Registry) Get(id string) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[id]
	return conn, ok
}

// AttachIdentity attaches an identity to a connection. It returns false if
// the connection is unknown or already carries an identity; an identity is
// set at most once for the lifetime of a connection.
func (r *Registry) AttachIdentity(id string, identity protocol.Identity) bool {
	r.mu.RLock()
	conn, ok := r.conns[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	return conn.attachIdentity(identity)
}

// Remove deregisters and closes a connection. It reports the identity the
// connection carried, if any, so callers can announce the departure.
func (r *Registry) Remove(id string) (protocol.Identity, bool) {
	r.mu.Lock()
	conn, ok := r.conns[id]
	if ok {
		delete(r.conns, id)
	}
	r.mu.Unlock()

	if !ok {
		return protocol.Identity{}, false
	}

	identity, authenticated := conn.Identity()
	conn.Close()
	return identity, authenticated
}

// Roster returns a point-in-time snapshot of the identities of all
// authenticated connections. A user connected from several devices appears
// once per connection.
func (r *Registry) Roster() []protocol.Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roster := make([]protocol.Identity, 0, len(r.conns))
	for _, conn := range r.conns {
		if identity, ok := conn.Identity(); ok {
			roster = append(roster, identity)
		}
	}
	return roster
}

// AuthenticatedConns returns a snapshot of all authenticated connections
func (r *Registry) AuthenticatedConns() []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*Conn, 0, len(r.conns))
	for _, conn := range r.conns {
		if conn.State() == StateAuthenticated {
			conns = append(conns, conn)
		}
	}
	return conns
}

// AllConns returns a snapshot of every live connection
func (r *Registry) AllConns() []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*Conn, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	return conns
}

// Count returns the number of live connections
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
