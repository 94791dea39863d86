package session

import (
	"errors"

	"kwak/pkg/auth"
	kwakerrors "kwak/pkg/errors"
	"kwak/pkg/logger"
	"kwak/pkg/presence"
	"kwak/pkg/protocol"
	"kwak/pkg/registry"
	"kwak/pkg/relay"
)

// Session is the per-connection state machine. Every inbound event funnels
// through HandleEvent; the connection's registry state decides which
// operations are permitted. All registry mutation happens here, so the
// broadcaster and relay only ever read snapshots.
//
// States: unauthenticated -> authenticated -> closed. The identity is
// attached at most once and never cleared while the connection lives.
type Session struct {
	conn     *registry.Conn
	reg      *registry.Registry
	verifier auth.Verifier
	bc       *presence.Broadcaster
	relay    *relay.Relay
	log      *logger.Logger
}

// New creates a session for a freshly registered connection
func New(conn *registry.Conn, reg *registry.Registry, verifier auth.Verifier, bc *presence.Broadcaster, rel *relay.Relay) *Session {
	return &Session{
		conn:     conn,
		reg:      reg,
		verifier: verifier,
		bc:       bc,
		relay:    rel,
		log:      logger.Get().With("component", "session", "connId", conn.ID()),
	}
}

// HandleEvent processes one inbound event against the current state
func (s *Session) HandleEvent(event *protocol.Event) {
	s.conn.Touch()

	switch event.Type {
	case protocol.EventAuthenticate:
		s.handleAuthenticate(event)
	case protocol.EventSendMessage:
		s.handleSendMessage(event)
	default:
		// Unauthenticated connections only get to authenticate; nothing
		// else may have a side effect.
		if s.conn.State() != registry.StateAuthenticated {
			s.sendError("not authenticated")
			return
		}
		s.sendError("unknown event")
	}
}

// HandleClose deregisters the connection and announces the departure if it
// was ever publicly visible. Safe from any state.
func (s *Session) HandleClose() {
	identity, authenticated := s.reg.Remove(s.conn.ID())
	if authenticated {
		s.bc.ConnLeft(identity)
	}
}

// handleAuthenticate verifies the credential and attaches the resulting
// identity. A failed attempt leaves the connection open so the client can
// retry; a repeated attempt on an authenticated connection is a no-op.
func (s *Session) handleAuthenticate(event *protocol.Event) {
	var payload protocol.AuthenticatePayload
	if err := event.ParsePayload(&payload); err != nil {
		s.sendAuthError()
		return
	}

	identity, err := s.verifier.Verify(payload.Token)
	if err != nil {
		s.log.DebugWith("authentication rejected")
		s.sendAuthError()
		return
	}

	if !s.reg.AttachIdentity(s.conn.ID(), identity) {
		// Already authenticated; keep the original identity and do not
		// announce a second join.
		s.log.DebugWith("duplicate authenticate ignored")
		return
	}

	s.bc.ConnJoined(s.conn)
}

// handleSendMessage relays chat text from an authenticated connection
func (s *Session) handleSendMessage(event *protocol.Event) {
	if s.conn.State() != registry.StateAuthenticated {
		s.sendError("not authenticated")
		return
	}

	var payload protocol.SendMessagePayload
	if err := event.ParsePayload(&payload); err != nil {
		s.sendError("invalid message")
		return
	}

	_, err := s.relay.Submit(s.conn.ID(), payload.Content)
	switch {
	case err == nil:
		// The sender sees its message come back through the fan-out.
	case errors.Is(err, kwakerrors.ErrEmptyMessage):
		// Validation failure, dropped without a reply.
	case errors.Is(err, kwakerrors.ErrNotAuthenticated):
		s.sendError("not authenticated")
	default:
		s.sendError("failed to send message")
	}
}

func (s *Session) sendAuthError() {
	event, err := protocol.NewEvent(protocol.EventAuthError, protocol.AuthErrorPayload{
		Error: "invalid token",
	})
	if err != nil {
		return
	}
	if err := s.conn.Enqueue(event); err != nil {
		s.log.DebugWith("failed to queue authError", "reason", err.Error())
	}
}

func (s *Session) sendError(message string) {
	event, err := protocol.NewEvent(protocol.EventError, protocol.ErrorPayload{
		Message: message,
	})
	if err != nil {
		return
	}
	if err := s.conn.Enqueue(event); err != nil {
		s.log.DebugWith("failed to queue error", "reason", err.Error())
	}
}
