package presence

import (
	"kwak/pkg/logger"
	"kwak/pkg/protocol"
	"kwak/pkg/registry"
)

// Broadcaster translates registry transitions into fan-out events. It only
// reads registry snapshots; it never mutates the connection set itself.
//
// Delivery is best-effort, at-most-once per event per connected observer.
// There is no queuing or replay: a connection that joins after an event
// fired never sees it. That is fine because the roster is re-sent in full
// on every join and message history is retrievable over REST.
type Broadcaster struct {
	reg *registry.Registry
	log *logger.Logger
}

// New creates a broadcaster over the given registry
func New(reg *registry.Registry) *Broadcaster {
	return &Broadcaster{
		reg: reg,
		log: logger.Get().With("component", "presence"),
	}
}

// ConnJoined announces a newly authenticated connection: joined{username}
// to every other authenticated connection, then the full roster to all of
// them including the joiner. The joiner is excluded from the first event so
// clients never render their own arrival.
func (b *Broadcaster) ConnJoined(joiner *registry.Conn) {
	identity, ok := joiner.Identity()
	if !ok {
		return
	}

	joined, err := protocol.NewEvent(protocol.EventJoined, protocol.JoinedPayload{
		Username: identity.Username,
	})
	if err != nil {
		b.log.ErrorWithErr("failed to encode joined event", err)
		return
	}
	b.broadcastAuthenticated(joined, joiner.ID())

	b.broadcastRoster()
	b.log.InfoWith("user joined", "username", identity.Username, "connId", joiner.ID())
}

// ConnLeft announces the departure of a previously authenticated
// connection: left{username} then the updated roster, to every remaining
// authenticated connection. Departures of connections that never
// authenticated are unobservable, matching that they were never announced.
func (b *Broadcaster) ConnLeft(identity protocol.Identity) {
	left, err := protocol.NewEvent(protocol.EventLeft, protocol.LeftPayload{
		Username: identity.Username,
	})
	if err != nil {
		b.log.ErrorWithErr("failed to encode left event", err)
		return
	}
	b.broadcastAuthenticated(left, "")

	b.broadcastRoster()
	b.log.InfoWith("user left", "username", identity.Username)
}

// BroadcastAll fans an event out to every live connection regardless of
// authentication state. The relay uses this for newMessage events.
func (b *Broadcaster) BroadcastAll(event *protocol.Event) {
	for _, conn := range b.reg.AllConns() {
		if err := conn.Enqueue(event); err != nil {
			// Per-connection failure; the rest of the fan-out proceeds.
			b.log.DebugWith("dropped event", "connId", conn.ID(), "event", string(event.Type), "reason", err.Error())
		}
	}
}

// broadcastRoster sends the current roster snapshot to all authenticated
// connections.
func (b *Broadcaster) broadcastRoster() {
	roster, err := protocol.NewEvent(protocol.EventRoster, protocol.RosterPayload{
		Entries: b.reg.Roster(),
	})
	if err != nil {
		b.log.ErrorWithErr("failed to encode roster event", err)
		return
	}
	b.broadcastAuthenticated(roster, "")
}

// broadcastAuthenticated sends an event to every authenticated connection,
// optionally excluding one by id.
func (b *Broadcaster) broadcastAuthenticated(event *protocol.Event, excludeID string) {
	for _, conn := range b.reg.AuthenticatedConns() {
		if conn.ID() == excludeID {
			continue
		}
		if err := conn.Enqueue(event); err != nil {
			b.log.DebugWith("dropped event", "connId", conn.ID(), "event", string(event.Type), "reason", err.Error())
		}
	}
}
