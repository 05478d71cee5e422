package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"sakhi/internal/chat"
	"sakhi/internal/controller"
	"sakhi/internal/gateway"
	"sakhi/internal/questionnaire"
	"sakhi/internal/store"
	"sakhi/internal/voice"
	"sakhi/internal/wellness"
)

func respondError(c *gin.Context, status int, code string, err error) {
	c.JSON(status, gin.H{
		"error": gin.H{"message": err.Error(), "code": code},
	})
}

func (s *Server) handleSignup(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	res, err := s.gateway.Signup(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		var verr *gateway.ValidationError
		if errors.As(err, &verr) {
			respondError(c, http.StatusBadRequest, "validation_error", err)
			return
		}
		respondError(c, http.StatusUnauthorized, "auth_error", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":               res.UserID,
		"confirmation_required": res.ConfirmationRequired,
	})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	res, err := s.gateway.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		var verr *gateway.ValidationError
		if errors.As(err, &verr) {
			respondError(c, http.StatusBadRequest, "validation_error", err)
			return
		}
		respondError(c, http.StatusUnauthorized, "auth_error", err)
		return
	}

	// A fresh login replaces any previous state for the user.
	sess := &userSession{}
	sess.state.BeginSession(res,
		questionnaire.NewFlow(res.UserID, s.store, s.logger),
		chat.NewSession(res.UserID, s.store, s.backend, s.logger, s.tracer),
	)
	s.mu.Lock()
	s.sessions[res.UserID] = sess
	s.mu.Unlock()

	token, err := s.issueToken(res.UserID, res.Email)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "token_error", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":                   token,
		"email":                   res.Email,
		"questionnaire_completed": res.QuestionnaireDone,
		"view":                    controller.CurrentView(&sess.state),
	})
}

// currentSession resolves the caller's session from the verified claims.
func (s *Server) currentSession(c *gin.Context) *userSession {
	userID := c.GetString(ctxUserID)
	email := c.GetString(ctxEmail)
	return s.session(c.Request.Context(), userID, email)
}

func (s *Server) handleSession(c *gin.Context) {
	sess := s.currentSession(c)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	resp := gin.H{
		"view":                    controller.CurrentView(&sess.state),
		"email":                   sess.state.Email,
		"questionnaire_completed": sess.state.QuestionnaireDone,
	}
	if controller.CurrentView(&sess.state) == controller.ViewRecommendation {
		resp["recommendation"] = sess.state.PendingRecommendation
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleLogout(c *gin.Context) {
	sess := s.currentSession(c)
	sess.mu.Lock()
	sess.state.Logout()
	sess.mu.Unlock()

	s.dropSession(c.GetString(ctxUserID))
	c.JSON(http.StatusOK, gin.H{"view": controller.ViewAuth})
}

func (s *Server) handleQuestionnaire(c *gin.Context) {
	sess := s.currentSession(c)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	flow := sess.state.Flow
	c.JSON(http.StatusOK, gin.H{
		"questions": wellness.Questions(),
		"index":     flow.Index(),
		"current":   flow.Current(),
		"answers":   flow.Answers(),
		"total":     wellness.Count(),
	})
}

func (s *Server) handleAnswer(c *gin.Context) {
	var req struct {
		QuestionID string `json:"question_id"`
		Answer     string `json:"answer"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	sess := s.currentSession(c)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := sess.state.Flow.Answer(req.QuestionID, req.Answer); err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"answered": len(sess.state.Flow.Answers())})
}

func (s *Server) handleNext(c *gin.Context) {
	sess := s.currentSession(c)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := sess.state.Flow.Next(); err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"index":   sess.state.Flow.Index(),
		"current": sess.state.Flow.Current(),
	})
}

func (s *Server) handlePrevious(c *gin.Context) {
	sess := s.currentSession(c)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.state.Flow.Previous()
	c.JSON(http.StatusOK, gin.H{
		"index":   sess.state.Flow.Index(),
		"current": sess.state.Flow.Current(),
	})
}

func (s *Server) handleSubmit(c *gin.Context) {
	sess := s.currentSession(c)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := sess.state.Flow.Submit(c.Request.Context()); err != nil {
		var ierr *questionnaire.IncompleteError
		if errors.As(err, &ierr) {
			respondError(c, http.StatusBadRequest, "validation_error", err)
			return
		}
		respondError(c, http.StatusInternalServerError, "store_error", err)
		return
	}

	sess.state.CompleteQuestionnaire("")
	c.JSON(http.StatusOK, gin.H{"view": controller.CurrentView(&sess.state)})
}

func (s *Server) handleSubmitAll(c *gin.Context) {
	var req struct {
		Answers map[string]string `json:"answers"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	sess := s.currentSession(c)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	userID := c.GetString(ctxUserID)
	recommendation, err := questionnaire.SubmitAll(c.Request.Context(), s.store, s.backend, s.logger, userID, req.Answers)
	if err != nil {
		var serr *store.StoreError
		if errors.As(err, &serr) {
			respondError(c, http.StatusInternalServerError, "store_error", err)
			return
		}
		respondError(c, http.StatusBadRequest, "validation_error", err)
		return
	}

	sess.state.CompleteQuestionnaire(recommendation)
	c.JSON(http.StatusOK, gin.H{
		"recommendation": recommendation,
		"view":           controller.CurrentView(&sess.state),
	})
}

func (s *Server) handleAckRecommendation(c *gin.Context) {
	sess := s.currentSession(c)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.state.AcknowledgeRecommendation()
	c.JSON(http.StatusOK, gin.H{"view": controller.CurrentView(&sess.state)})
}

func (s *Server) handleChatHistory(c *gin.Context) {
	sess := s.currentSession(c)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	limit := chat.DefaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	messages := sess.state.Chat.History(c.Request.Context(), limit)
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (s *Server) handleChatSend(c *gin.Context) {
	var req struct {
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	sess := s.currentSession(c)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if !sess.state.QuestionnaireDone {
		respondError(c, http.StatusConflict, "questionnaire_required",
			errors.New("please complete the questionnaire before chatting"))
		return
	}

	turn, err := sess.state.Chat.Send(c.Request.Context(), req.Message)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "store_error", err)
		return
	}
	if turn == nil {
		c.JSON(http.StatusOK, gin.H{"messages": []store.ChatMessage{}})
		return
	}

	s.hub.Broadcast(c.GetString(ctxUserID), turn)
	c.JSON(http.StatusOK, gin.H{"messages": turn})
}

func (s *Server) handleVoiceTranscribe(c *gin.Context) {
	if s.transcriber == nil {
		respondError(c, http.StatusServiceUnavailable, "voice_unavailable",
			errors.New("voice input is not configured"))
		return
	}

	audio, err := io.ReadAll(io.LimitReader(c.Request.Body, voice.MaxClipBytes+1))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	text, err := s.transcriber.Transcribe(c.Request.Context(), audio, c.ContentType())
	if err != nil {
		switch {
		case errors.Is(err, voice.ErrNoSpeech):
			respondError(c, http.StatusUnprocessableEntity, "no_speech", err)
		case errors.Is(err, voice.ErrUnintelligible):
			respondError(c, http.StatusUnprocessableEntity, "unintelligible", err)
		default:
			respondError(c, http.StatusBadGateway, "transcription_failed", err)
		}
		return
	}

	sess := s.currentSession(c)
	sess.mu.Lock()
	sess.state.Chat.StagePending(text)
	sess.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"text": text})
}
