package relay

import (
	"fmt"
	"strings"
	"sync"

	kwakerrors "kwak/pkg/errors"
	"kwak/pkg/logger"
	"kwak/pkg/presence"
	"kwak/pkg/protocol"
	"kwak/pkg/registry"
)

// Appender persists a chat message and returns the canonical record with
// the server-assigned id and timestamp.
type Appender interface {
	AppendMessage(authorID int64, authorUsername, content string) (*protocol.ChatMessage, error)
}

// Relay accepts outbound messages from authenticated connections, persists
// them, and fans the persisted record out to every live connection.
//
// A single mutex serializes the persist-then-fan-out sequence: one Submit
// runs to completion before the next begins, so every observer sees
// messages in store-commit order. Fan-out itself never blocks on a slow
// connection, so the serialization window stays short.
type Relay struct {
	store Appender
	reg   *registry.Registry
	bc    *presence.Broadcaster
	mu    sync.Mutex
	log   *logger.Logger
}

// New creates a relay
func New(store Appender, reg *registry.Registry, bc *presence.Broadcaster) *Relay {
	return &Relay{
		store: store,
		reg:   reg,
		bc:    bc,
		log:   logger.Get().With("component", "relay"),
	}
}

// Submit persists text from the given connection and fans the stored
// record out to all connections, the sender included. The sender confirms
// delivery by observing its own message come back through the same path as
// everyone else's.
func (r *Relay) Submit(connID, text string) (*protocol.ChatMessage, error) {
	conn, ok := r.reg.Get(connID)
	if !ok {
		return nil, kwakerrors.ErrConnectionNotFound
	}

	identity, authenticated := conn.Identity()
	if !authenticated {
		return nil, kwakerrors.ErrNotAuthenticated
	}

	content := strings.TrimSpace(text)
	if content == "" {
		return nil, kwakerrors.ErrEmptyMessage
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	msg, err := r.store.AppendMessage(identity.UserID, identity.Username, content)
	if err != nil {
		r.log.ErrorWithErr("message append failed", err, "connId", connID)
		return nil, fmt.Errorf("%w: %v", kwakerrors.ErrPersistenceFailed, err)
	}

	event, err := protocol.NewEvent(protocol.EventNewMessage, msg)
	if err != nil {
		return nil, err
	}
	r.bc.BroadcastAll(event)

	return msg, nil
}
