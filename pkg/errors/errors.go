package errors

import "errors"

// Authentication errors
var (
	// ErrAuthenticationFailed is returned when a credential cannot be
	// verified. Malformed, expired, and unknown credentials all map to
	// this error so the client cannot tell them apart.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrAlreadyAuthenticated is returned when an identity is attached
	// to a connection that already has one. Callers treat it as a no-op.
	ErrAlreadyAuthenticated = errors.New("already authenticated")

	// ErrNotAuthenticated is returned when an operation requires an
	// authenticated connection.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// Connection errors
var (
	// ErrConnectionNotFound is returned when a connection is not in the registry
	ErrConnectionNotFound = errors.New("connection not found")

	// ErrConnectionClosed is returned when sending to a closed connection
	ErrConnectionClosed = errors.New("connection closed")

	// ErrSendBufferFull is returned when a connection's outbound queue is full
	ErrSendBufferFull = errors.New("send buffer full")
)

// Message errors
var (
	// ErrEmptyMessage is returned when a message is empty after trimming
	ErrEmptyMessage = errors.New("empty message")

	// ErrPersistenceFailed is returned when the message store is unavailable
	ErrPersistenceFailed = errors.New("persistence failed")

	// ErrUnknownEvent is returned for events the server does not recognize
	ErrUnknownEvent = errors.New("unknown event")
)

// Account errors
var (
	// ErrUserExists is returned when a username or email is already taken
	ErrUserExists = errors.New("username or email already in use")

	// ErrInvalidCredentials is returned when login credentials do not match
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrUserNotFound is returned when a user does not exist
	ErrUserNotFound = errors.New("user not found")
)
