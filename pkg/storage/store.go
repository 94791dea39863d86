package storage

import (
	"time"

	"kwak/pkg/protocol"
)

// Store defines the interface for persistent storage operations
type Store interface {
	// User operations
	CreateUser(username, email, passwordHash string) (*User, error)
	GetUserByEmail(email string) (*User, error)
	GetUserByID(id int64) (*User, error)
	UserExists(username, email string) (bool, error)

	// Message operations. AppendMessage assigns the id and timestamp;
	// callers never pick these themselves.
	AppendMessage(authorID int64, authorUsername, content string) (*protocol.ChatMessage, error)
	ListMessages() ([]*protocol.ChatMessage, error)

	// Lifecycle
	Close() error
}

// User represents a registered account
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}
