package storage

import (
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	kwakerrors "kwak/pkg/errors"
	"kwak/pkg/protocol"
)

// SQLiteStore implements Store using a SQLite backend
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore creates a new SQLite-backed store
func NewSQLiteStore(dbPath string) (Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{
		db: db,
	}

	if err := store.initDB(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// initDB initializes the database schema
func (s *SQLiteStore) initDB() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		content TEXT NOT NULL,
		author_id INTEGER NOT NULL,
		author_username TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (author_id) REFERENCES users(id)
	);

	CREATE INDEX IF NOT EXISTS idx_messages_created_at ON messages(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// CreateUser inserts a new account
func (s *SQLiteStore) CreateUser(username, email, passwordHash string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	res, err := s.db.Exec(
		`INSERT INTO users (username, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		username, email, passwordHash, now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
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
func (s *SQLiteStore) GetUserByEmail(email string) (*User, error) {
	row := s.db.QueryRow(
		`SELECT id, username, email, password_hash, created_at FROM users WHERE email = ?`,
		email,
	)
	return scanUser(row)
}

// GetUserByID looks up an account by id
func (s *SQLiteStore) GetUserByID(id int64) (*User, error) {
	row := s.db.QueryRow(
		`SELECT id, username, email, password_hash, created_at FROM users WHERE id = ?`,
		id,
	)
	return scanUser(row)
}

// UserExists reports whether any account already uses the username or email
func (s *SQLiteStore) UserExists(username, email string) (bool, error) {
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
// with the server-assigned id and timestamp.
func (s *SQLiteStore) AppendMessage(authorID int64, authorUsername, content string) (*protocol.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
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
func (s *SQLiteStore) ListMessages() ([]*protocol.ChatMessage, error) {
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
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanUser(row *sql.Row) (*User, error) {
	var user User
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, kwakerrors.ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}
