// Package chat orchestrates turn-by-turn exchange with the conversational
// backend and durable logging of every turn.
package chat

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"sakhi/internal/backend"
	"sakhi/internal/store"
)

// DefaultHistoryLimit caps transcript reads when the caller does not.
const DefaultHistoryLimit = 50

// MessageStore is the persistence surface a session needs.
type MessageStore interface {
	SaveChatMessage(ctx context.Context, msg store.ChatMessage) error
	ChatHistory(ctx context.Context, userID string, limit int) ([]store.ChatMessage, error)
}

// Session is the chat state for one authenticated user.
type Session struct {
	userID    string
	store     MessageStore
	responder backend.Responder
	logger    *slog.Logger
	tracer    trace.Tracer

	transcript []store.ChatMessage
	pending    string
}

// NewSession creates a chat session for a user.
func NewSession(userID string, msgStore MessageStore, responder backend.Responder, logger *slog.Logger, tracer trace.Tracer) *Session {
	return &Session{
		userID:    userID,
		store:     msgStore,
		responder: responder,
		logger:    logger,
		tracer:    tracer,
	}
}

// Send runs one turn: persist the user message, obtain the assistant
// reply, persist it, refresh the cached transcript. Empty or
// whitespace-only input is a complete no-op. A failure persisting the
// user message aborts the turn before the backend is contacted; a failure
// persisting the assistant message is logged and leaves the stored
// transcript stale until the next load.
func (s *Session) Send(ctx context.Context, text string) ([]store.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	ctx, span := s.tracer.Start(ctx, "chat_turn")
	defer span.End()

	userMsg := store.ChatMessage{
		MessageID: uuid.NewString(),
		UserID:    s.userID,
		Role:      store.RoleUser,
		Message:   text,
		Timestamp: time.Now().UTC(),
	}
	if err := s.store.SaveChatMessage(ctx, userMsg); err != nil {
		return nil, err
	}

	reply := s.responder.Reply(ctx, text)

	assistantMsg := store.ChatMessage{
		MessageID: uuid.NewString(),
		UserID:    s.userID,
		Role:      store.RoleAssistant,
		Message:   reply,
		Timestamp: time.Now().UTC(),
	}
	if err := s.store.SaveChatMessage(ctx, assistantMsg); err != nil {
		s.logger.Warn("failed to persist assistant message, transcript stale until next load",
			"user_id", s.userID, "error", err)
	}

	s.refreshTranscript(ctx, userMsg, assistantMsg)
	return []store.ChatMessage{userMsg, assistantMsg}, nil
}

// refreshTranscript reloads the cached transcript from the store, falling
// back to appending the turn locally when the read fails.
func (s *Session) refreshTranscript(ctx context.Context, turn ...store.ChatMessage) {
	history, err := s.store.ChatHistory(ctx, s.userID, DefaultHistoryLimit)
	if err != nil {
		s.logger.Warn("failed to refresh transcript", "user_id", s.userID, "error", err)
		s.transcript = append(s.transcript, turn...)
		return
	}
	s.transcript = history
}

// History returns up to limit messages oldest-first. A store failure
// degrades to an empty transcript instead of an error.
func (s *Session) History(ctx context.Context, limit int) []store.ChatMessage {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	history, err := s.store.ChatHistory(ctx, s.userID, limit)
	if err != nil {
		s.logger.Warn("failed to load chat history", "user_id", s.userID, "error", err)
		return []store.ChatMessage{}
	}
	s.transcript = history
	return history
}

// Transcript returns the cached transcript without touching the store.
func (s *Session) Transcript() []store.ChatMessage {
	out := make([]store.ChatMessage, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// StagePending stores a transcribed voice message for the user to review
// and edit before sending. It is never sent automatically.
func (s *Session) StagePending(text string) {
	s.pending = text
}

// Pending returns the staged message, if any.
func (s *Session) Pending() string {
	return s.pending
}

// TakePending returns the staged message and clears the buffer.
func (s *Session) TakePending() string {
	text := s.pending
	s.pending = ""
	return text
}
