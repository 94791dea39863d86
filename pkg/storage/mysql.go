package storage

import (
	"database/sql"
	"strings"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"

	kwakerrors "kwak/pkg/errors"
	"kwak/pkg/protocol"
)

// MySQLStore implements Store using a MySQL backend
type MySQLStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewMySQLStore creates a new MySQL-backed store. The DSN must enable
// parseTime so DATETIME columns scan into time.Time.
func NewMySQLStore(dsn string) (Store, error) {
	if !strings.Contains(dsn, "parseTime") {
		if strings.Contains(dsn, "?") {
			dsn += "&parseTime=true"
		} else {
			dsn += "?parseTime=true"
		}
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	store := &MySQLStore{
		db: db,
	}

	if err := store.initDB(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// initDB initializes the database schema
func (s *MySQLStore) initDB() error {
	schemas := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			username VARCHAR(191) NOT NULL UNIQUE,
			email VARCHAR(191) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			content TEXT NOT NULL,
			author_id BIGINT NOT NULL,
			author_username VARCHAR(191) NOT NULL,
			created_at DATETIME NOT NULL,
			INDEX idx_messages_created_at (created_at)
		)`,
	}

	for _, schema := range schemas {
		if _, err := s.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// CreateUser inserts a new account
func (s *MySQLStore) CreateUser(username, email, passwordHash string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Truncate(time.Second)
	res, err := s.db.Exec(
		`INSERT INTO users (username, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		username, email, passwordHash, now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "Duplicate entry") {
			return nil, kwakerrors.ErrUserExists
		}
		return nil, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	return &User{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
	}, nil
}

// GetUserByEmail looks up an account by email
func (s *MySQLStore) GetUserByEmail(email string) (*User, error) {
	row := s.db.QueryRow(
		`SELECT id, username, email, password_hash, created_at FROM users WHERE email = ?`,
		email,
	)
	return scanUser(row)
}

// GetUserByID looks up an account by id
func (s *MySQLStore) GetUserByID(id int64) (*User, error) {
	row := s.db.QueryRow(
		`SELECT id, username, email, password_hash, created_at FROM users WHERE id = ?`,
		id,
	)
	return scanUser(row)
}

// UserExists reports whether any account already uses the username or email
func (s *MySQLStore) UserExists(username, email string) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(1) FROM users WHERE username = ? OR email = ?`,
		username, email,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// AppendMessage durably stores a message and returns the canonical record
func (s *MySQLStore) AppendMessage(authorID int64, authorUsername, content string) (*protocol.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Truncate(time.Second)
	res, err := s.db.Exec(
		`INSERT INTO messages (content, author_id, author_username, created_at) VALUES (?, ?, ?, ?)`,
		content, authorID, authorUsername, now,
	)
	if err != nil {
		return nil, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	return &protocol.ChatMessage{
		ID:             id,
		Content:        content,
		AuthorID:       authorID,
		AuthorUsername: authorUsername,
		CreatedAt:      now,
	}, nil
}

// ListMessages returns all messages in commit order
func (s *MySQLStore) ListMessages() ([]*protocol.ChatMessage, error) {
	rows, err := s.db.Query(
		`SELECT id, content, author_id, author_username, created_at FROM messages ORDER BY id ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*protocol.ChatMessage
	for rows.Next() {
		var msg protocol.ChatMessage
		if err := rows.Scan(&msg.ID, &msg.Content, &msg.AuthorID, &msg.AuthorUsername, &msg.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, &msg)
	}

	return messages, rows.Err()
}

// Close closes the database
func (s *MySQLStore) Close() error {
	return s.db.Close()
}
