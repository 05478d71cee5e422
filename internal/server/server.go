// Package server exposes the application over HTTP: credential endpoints,
// questionnaire navigation, chat, voice transcription, and a websocket
// channel pushing completed turns.
package server

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"sakhi/internal/backend"
	"sakhi/internal/chat"
	"sakhi/internal/config"
	"sakhi/internal/controller"
	"sakhi/internal/gateway"
	"sakhi/internal/questionnaire"
)

// Store is the persistence surface the server wires into flows and sessions.
type Store interface {
	questionnaire.Saver
	chat.MessageStore
	HasQuestionnaireResponse(ctx context.Context, userID string) (bool, error)
}

// Transcriber is the optional speech-to-text surface.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// userSession serializes one user's interactions; the hosting environment
// guarantees isolation only across sessions, not within one.
type userSession struct {
	mu    sync.Mutex
	state controller.SessionState
}

// Server owns the HTTP surface and the per-user session registry.
type Server struct {
	cfg         config.Config
	logger      *slog.Logger
	tracer      trace.Tracer
	store       Store
	gateway     *gateway.Gateway
	backend     backend.Backend
	transcriber Transcriber
	engine      *gin.Engine
	hub         *Hub

	mu       sync.Mutex
	sessions map[string]*userSession
}

// New assembles the server. transcriber may be nil; the voice endpoint
// then reports the feature as unavailable.
func New(cfg config.Config, logger *slog.Logger, tracer trace.Tracer, st Store, gw *gateway.Gateway, be backend.Backend, transcriber Transcriber) *Server {
	s := &Server{
		cfg:         cfg,
		logger:      logger,
		tracer:      tracer,
		store:       st,
		gateway:     gw,
		backend:     be,
		transcriber: transcriber,
		hub:         NewHub(logger),
		sessions:    make(map[string]*userSession),
	}
	s.engine = s.newRouter()
	return s
}

// Run blocks serving HTTP on the configured address.
func (s *Server) Run() error {
	s.logger.Info("listening", "addr", s.cfg.ListenAddr)
	return s.engine.Run(s.cfg.ListenAddr)
}

// session returns the state for a user id, rebuilding it from the store
// when the process restarted after the token was issued.
func (s *Server) session(ctx context.Context, userID, email string) *userSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[userID]; ok {
		return sess
	}

	done, err := s.store.HasQuestionnaireResponse(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to check questionnaire completion", "user_id", userID, "error", err)
		done = false
	}

	sess := &userSession{}
	sess.state.BeginSession(
		gateway.LoginResult{UserID: userID, Email: email, QuestionnaireDone: done},
		questionnaire.NewFlow(userID, s.store, s.logger),
		chat.NewSession(userID, s.store, s.backend, s.logger, s.tracer),
	)
	s.sessions[userID] = sess
	return sess
}

// dropSession removes a user's state after logout.
func (s *Server) dropSession(userID string) {
	s.mu.Lock()
	delete(s.sessions, userID)
	s.mu.Unlock()
	s.hub.CloseUser(userID)
}
