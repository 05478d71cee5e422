// Package store persists questionnaire responses and chat messages in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// QuestionnaireResponse is one submitted answer set. A resubmission creates
// a new row; uniqueness per user is not enforced.
type QuestionnaireResponse struct {
	UserID    string            `json:"user_id"`
	Responses map[string]string `json:"responses"`
	Timestamp time.Time         `json:"timestamp"`
}

// ChatMessage is a single immutable transcript entry.
type ChatMessage struct {
	MessageID string    `json:"message_id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// StoreError wraps any persistence failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("store %s failed: %v", e.Op, e.Err) }
func (e *StoreError) Unwrap() error { return e.Err }

// Store is the response store adapter backed by SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the database and ensures the schema exists.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	createResponsesTable := `
	CREATE TABLE IF NOT EXISTS questionnaire_responses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		responses TEXT NOT NULL,
		timestamp DATETIME NOT NULL
	);`

	createMessagesTable := `
	CREATE TABLE IF NOT EXISTS chat_messages (
		message_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		message TEXT NOT NULL,
		role TEXT NOT NULL,
		timestamp DATETIME NOT NULL
	);`

	if _, err := db.Exec(createResponsesTable); err != nil {
		return nil, fmt.Errorf("failed to create questionnaire_responses table: %w", err)
	}

	if _, err := db.Exec(createMessagesTable); err != nil {
		return nil, fmt.Errorf("failed to create chat_messages table: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveQuestionnaireResponse inserts a full answer set for a user.
func (s *Store) SaveQuestionnaireResponse(ctx context.Context, userID string, responses map[string]string) error {
	payload, err := json.Marshal(responses)
	if err != nil {
		return &StoreError{Op: "save questionnaire response", Err: err}
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO questionnaire_responses (user_id, responses, timestamp) VALUES (?, ?, ?)",
		userID, string(payload), time.Now().UTC(),
	)
	if err != nil {
		return &StoreError{Op: "save questionnaire response", Err: err}
	}

	s.logger.Info("saved questionnaire response", "user_id", userID, "answer_count", len(responses))
	return nil
}

// HasQuestionnaireResponse reports whether any response exists for the user.
func (s *Store) HasQuestionnaireResponse(ctx context.Context, userID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM questionnaire_responses WHERE user_id = ?", userID,
	).Scan(&n)
	if err != nil {
		return false, &StoreError{Op: "check questionnaire completion", Err: err}
	}
	return n > 0, nil
}

// SaveChatMessage inserts one transcript entry.
func (s *Store) SaveChatMessage(ctx context.Context, msg ChatMessage) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO chat_messages (message_id, user_id, message, role, timestamp) VALUES (?, ?, ?, ?, ?)",
		msg.MessageID, msg.UserID, msg.Message, msg.Role, msg.Timestamp,
	)
	if err != nil {
		return &StoreError{Op: "save chat message", Err: err}
	}
	return nil
}

// ChatHistory returns up to limit messages for the user, oldest first.
// Insertion order breaks timestamp ties.
func (s *Store) ChatHistory(ctx context.Context, userID string, limit int) ([]ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT message_id, user_id, message, role, timestamp FROM chat_messages WHERE user_id = ? ORDER BY timestamp ASC, rowid ASC LIMIT ?",
		userID, limit,
	)
	if err != nil {
		return nil, &StoreError{Op: "load chat history", Err: err}
	}
	defer rows.Close()

	messages := []ChatMessage{}
	for rows.Next() {
		var msg ChatMessage
		if err := rows.Scan(&msg.MessageID, &msg.UserID, &msg.Message, &msg.Role, &msg.Timestamp); err != nil {
			return nil, &StoreError{Op: "scan chat message", Err: err}
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "load chat history", Err: err}
	}

	return messages, nil
}
