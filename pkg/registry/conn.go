package registry

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	kwakerrors "kwak/pkg/errors"
	"kwak/pkg/protocol"
)

// State is the lifecycle state of a connection
type State int

const (
	// StateUnauthenticated is the initial state of every connection
	StateUnauthenticated State = iota
	// StateAuthenticated means an identity has been attached
	StateAuthenticated
	// StateClosed is terminal
	StateClosed
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Conn represents one live duplex channel to a client. Outbound events go
// through a buffered send channel drained by the transport's write pump, so
// a stuck client never blocks a fan-out.
type Conn struct {
	id           string
	ws           *websocket.Conn // nil for test connections
	send         chan *protocol.Event
	state        State
	identity     *protocol.Identity
	lastActivity time.Time
	mu           sync.RWMutex
	closed       bool
}

// NewConn creates a connection in the unauthenticated state
func NewConn(id string, ws *websocket.Conn, sendBufferSize int) *Conn {
	return &Conn{
		id:           id,
		ws:           ws,
		send:         make(chan *protocol.Event, sendBufferSize),
		state:        StateUnauthenticated,
		lastActivity: time.Now(),
	}
}

// ID returns the connection id
func (c *Conn) ID() string {
	return c.id
}

// WS returns the underlying websocket connection, if any
func (c *Conn) WS() *websocket.Conn {
	return c.ws
}

// State returns the current lifecycle state
func (c *Conn) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Identity returns the attached identity, if any
func (c *Conn) Identity() (protocol.Identity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.identity == nil {
		return protocol.Identity{}, false
	}
	return *c.identity, true
}

// attachIdentity sets the identity exactly once. It fails if the connection
// already carries one or is closed.
func (c *Conn) attachIdentity(identity protocol.Identity) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity != nil || c.closed {
		return false
	}
	c.identity = &identity
	c.state = StateAuthenticated
	return true
}

// Enqueue queues an event for delivery without blocking. Events for a
// closed connection or a full buffer are dropped with an error; a slow
// consumer only ever loses its own events.
func (c *Conn) Enqueue(event *protocol.Event) error {
	// The read lock is held across the send so Close cannot close the
	// channel mid-enqueue. The send never blocks, so neither does Close.
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return kwakerrors.ErrConnectionClosed
	}

	select {
	case c.send <- event:
		return nil
	default:
		return kwakerrors.ErrSendBufferFull
	}
}

// Events returns the outbound event channel for the write pump. The channel
// is closed when the connection closes.
func (c *Conn) Events() <-chan *protocol.Event {
	return c.send
}

// Touch records activity on the connection
func (c *Conn) Touch() {
	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()
}

// LastActivity returns the time of the last recorded activity
func (c *Conn) LastActivity() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastActivity
}

// Close marks the connection closed and releases its resources. Safe to
// call multiple times.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.state = StateClosed
	ws := c.ws
	close(c.send)
	c.mu.Unlock()

	if ws != nil {
		return ws.Close()
	}
	return nil
}

// IsClosed reports whether the connection is closed
func (c *Conn) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}
