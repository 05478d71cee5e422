package server

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"sakhi/internal/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The REST surface already enforces CORS; tokens gate the upgrade.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub tracks open websocket connections per user and pushes each
// completed turn to them.
type Hub struct {
	logger *slog.Logger

	mu    sync.Mutex
	conns map[string][]*websocket.Conn
}

// NewHub creates an empty connection registry.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{logger: logger, conns: make(map[string][]*websocket.Conn)}
}

// Register adds a connection for a user.
func (h *Hub) Register(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	h.conns[userID] = append(h.conns[userID], conn)
	h.mu.Unlock()
	h.logger.Info("websocket connected", "user_id", userID)
}

// Unregister removes a connection for a user.
func (h *Hub) Unregister(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	kept := h.conns[userID][:0]
	for _, c := range h.conns[userID] {
		if c != conn {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		delete(h.conns, userID)
	} else {
		h.conns[userID] = kept
	}
}

// Broadcast pushes a completed turn to every connection the user holds.
// Broken connections are dropped.
func (h *Hub) Broadcast(userID string, turn []store.ChatMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	kept := h.conns[userID][:0]
	for _, conn := range h.conns[userID] {
		if err := conn.WriteJSON(gin.H{"type": "turn", "messages": turn}); err != nil {
			h.logger.Warn("dropping broken websocket", "user_id", userID, "error", err)
			conn.Close()
			continue
		}
		kept = append(kept, conn)
	}
	if len(kept) == 0 {
		delete(h.conns, userID)
	} else {
		h.conns[userID] = kept
	}
}

// CloseUser closes and forgets every connection for a user.
func (h *Hub) CloseUser(userID string) {
	h.mu.Lock()
	conns := h.conns[userID]
	delete(h.conns, userID)
	h.mu.Unlock()

	for _, conn := range conns {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}
}

// handleChatWS upgrades the request and keeps the connection open until
// the client goes away. The server only pushes; client frames are drained
// to detect the close.
func (s *Server) handleChatWS(c *gin.Context) {
	userID := c.GetString(ctxUserID)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "user_id", userID, "error", err)
		return
	}

	s.hub.Register(userID, conn)
	defer func() {
		s.hub.Unregister(userID, conn)
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
