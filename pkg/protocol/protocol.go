package protocol

import (
	"encoding/json"
	"time"
)

// EventType defines the type of event being sent over a connection
type EventType string

const (
	// Client to server events
	EventAuthenticate EventType = "authenticate"
	EventSendMessage  EventType = "sendMessage"

	// Server to client events
	EventJoined     EventType = "joined"
	EventLeft       EventType = "left"
	EventRoster     EventType = "roster"
	EventNewMessage EventType = "newMessage"
	EventAuthError  EventType = "authError"
	EventError      EventType = "error"
)

// Event is the envelope for all messages exchanged over a connection
type Event struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEvent creates an event with the payload marshaled to JSON
func NewEvent(eventType EventType, payload interface{}) (*Event, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = data
	}

	return &Event{
		Type:    eventType,
		Payload: raw,
	}, nil
}

// ParsePayload unmarshals the event payload into the given value
func (e *Event) ParsePayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// Identity is a verified user attached to a connection. A single user may
// hold several simultaneous connections; each carries its own copy.
type Identity struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
}

// ChatMessage is a persisted chat message. Only the message store creates
// these; the relay never assigns ids or timestamps itself.
type ChatMessage struct {
	ID             int64     `json:"id"`
	Content        string    `json:"content"`
	AuthorID       int64     `json:"authorId"`
	AuthorUsername string    `json:"authorUsername"`
	CreatedAt      time.Time `json:"createdAt"`
}

// AuthenticatePayload carries the credential for the authenticate event
type AuthenticatePayload struct {
	Token string `json:"token"`
}

// SendMessagePayload carries outbound chat text
type SendMessagePayload struct {
	Content string `json:"content"`
}

// JoinedPayload announces a user joining the room
type JoinedPayload struct {
	Username string `json:"username"`
}

// LeftPayload announces a user leaving the room
type LeftPayload struct {
	Username string `json:"username"`
}

// RosterPayload carries the full snapshot of authenticated connections.
// Entries may repeat a userId when a user is connected from several devices.
type RosterPayload struct {
	Entries []Identity `json:"entries"`
}

// AuthErrorPayload reports a failed authenticate attempt
type AuthErrorPayload struct {
	Error string `json:"error"`
}

// ErrorPayload reports a connection-local operational error
type ErrorPayload struct {
	Message string `json:"message"`
}
