package server

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func (s *Server) newRouter() *gin.Engine {
	if !s.cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "http://localhost:5173", "http://127.0.0.1:3000", "http://127.0.0.1:5173"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.GET("/healthcheck", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		api.POST("/signup", s.handleSignup)
		api.POST("/login", s.handleLogin)
	}

	protected := api.Group("/")
	protected.Use(s.requireAuth())
	{
		protected.GET("/session", s.handleSession)
		protected.POST("/logout", s.handleLogout)

		protected.GET("/questionnaire", s.handleQuestionnaire)
		protected.POST("/questionnaire/answer", s.handleAnswer)
		protected.POST("/questionnaire/next", s.handleNext)
		protected.POST("/questionnaire/previous", s.handlePrevious)
		protected.POST("/questionnaire/submit", s.handleSubmit)
		protected.POST("/questionnaire/submit-all", s.handleSubmitAll)
		protected.POST("/recommendation/ack", s.handleAckRecommendation)

		protected.GET("/chat/history", s.handleChatHistory)
		protected.POST("/chat/send", s.handleChatSend)
		protected.GET("/chat/ws", s.handleChatWS)

		protected.POST("/voice/transcribe", s.handleVoiceTranscribe)
	}

	return r
}
