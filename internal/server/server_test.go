package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"sakhi/internal/config"
	"sakhi/internal/gateway"
	"sakhi/internal/identity"
	"sakhi/internal/store"
	"sakhi/internal/wellness"
)

// memStore implements Store in memory.
type memStore struct {
	responses map[string][]map[string]string
	messages  []store.ChatMessage
}

func newMemStore() *memStore {
	return &memStore{responses: make(map[string][]map[string]string)}
}

func (m *memStore) SaveQuestionnaireResponse(ctx context.Context, userID string, responses map[string]string) error {
	saved := make(map[string]string, len(responses))
	for k, v := range responses {
		saved[k] = v
	}
	m.responses[userID] = append(m.responses[userID], saved)
	return nil
}

func (m *memStore) HasQuestionnaireResponse(ctx context.Context, userID string) (bool, error) {
	return len(m.responses[userID]) > 0, nil
}

func (m *memStore) SaveChatMessage(ctx context.Context, msg store.ChatMessage) error {
	m.messages = append(m.messages, msg)
	return nil
}

func (m *memStore) ChatHistory(ctx context.Context, userID string, limit int) ([]store.ChatMessage, error) {
	var out []store.ChatMessage
	for _, msg := range m.messages {
		if msg.UserID == userID {
			out = append(out, msg)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type stubProvider struct {
	signUpCalls int
}

func (p *stubProvider) SignIn(ctx context.Context, email, password string) (identity.User, error) {
	return identity.User{ID: "user-1", Email: email}, nil
}

func (p *stubProvider) SignUp(ctx context.Context, email, password string) (identity.SignupOutcome, error) {
	p.signUpCalls++
	return identity.SignupOutcome{UserID: "user-2", ConfirmationRequired: true}, nil
}

type stubBackend struct {
	reply    string
	analysis string
}

func (b *stubBackend) Reply(ctx context.Context, userText string) string { return b.reply }

func (b *stubBackend) Analyze(ctx context.Context, responses map[string]string) (string, error) {
	return b.analysis, nil
}

func init() {
	gin.SetMode(gin.TestMode)
}

func testServer(t *testing.T) (*Server, *memStore, *stubProvider) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := newMemStore()
	provider := &stubProvider{}
	gw := gateway.New(provider, st, logger)
	be := &stubBackend{reply: "I'm listening.", analysis: "take more walks"}
	cfg := config.Config{JWTSecret: "test-secret", ListenAddr: ":0"}
	return New(cfg, logger, otel.Tracer("test"), st, gw, be, nil), st, provider
}

func doJSON(s *Server, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func login(t *testing.T, s *Server) string {
	t.Helper()
	w := doJSON(s, http.MethodPost, "/api/login", "", map[string]string{"email": "foo@bar.com", "password": "pw"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func fullAnswers() map[string]string {
	out := make(map[string]string)
	for _, q := range wellness.Questions() {
		if q.Kind == wellness.KindCategorical {
			out[q.ID] = q.Options[0]
		} else {
			out[q.ID] = "5"
		}
	}
	return out
}

func TestLoginIssuesTokenAndQuestionnaireView(t *testing.T) {
	s, _, _ := testServer(t)

	w := doJSON(s, http.MethodPost, "/api/login", "", map[string]string{"email": "foo@bar.com", "password": "pw"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "questionnaire", body["view"])
	assert.Equal(t, false, body["questionnaire_completed"])
	assert.NotEmpty(t, body["token"])
}

func TestSignupRejectsMalformedEmailBeforeProvider(t *testing.T) {
	s, _, provider := testServer(t)

	w := doJSON(s, http.MethodPost, "/api/signup", "", map[string]string{"email": "foo@bar", "password": "pw"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, provider.signUpCalls)

	w = doJSON(s, http.MethodPost, "/api/signup", "", map[string]string{"email": "foo@bar.com", "password": "pw"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, provider.signUpCalls)
	assert.Equal(t, true, decode(t, w)["confirmation_required"])
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s, _, _ := testServer(t)

	w := doJSON(s, http.MethodGet, "/api/session", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(s, http.MethodGet, "/api/session", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestChatGatedUntilQuestionnaireCompleted(t *testing.T) {
	s, _, _ := testServer(t)
	token := login(t, s)

	w := doJSON(s, http.MethodPost, "/api/chat/send", token, map[string]string{"message": "hi"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSubmitAllUnlocksChatWithRecommendation(t *testing.T) {
	s, st, _ := testServer(t)
	token := login(t, s)

	w := doJSON(s, http.MethodPost, "/api/questionnaire/submit-all", token, map[string]interface{}{"answers": fullAnswers()})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "take more walks", body["recommendation"])
	assert.Equal(t, "recommendation", body["view"])
	require.Len(t, st.responses["user-1"], 1)
	assert.Len(t, st.responses["user-1"][0], wellness.Count())

	// The recommendation gates the chat until acknowledged.
	w = doJSON(s, http.MethodGet, "/api/session", token, nil)
	assert.Equal(t, "recommendation", decode(t, w)["view"])

	w = doJSON(s, http.MethodPost, "/api/recommendation/ack", token, nil)
	assert.Equal(t, "chat", decode(t, w)["view"])
}

func TestSubmitAllRejectsIncompleteAnswers(t *testing.T) {
	s, st, _ := testServer(t)
	token := login(t, s)

	answers := fullAnswers()
	delete(answers, "AGE")
	w := doJSON(s, http.MethodPost, "/api/questionnaire/submit-all", token, map[string]interface{}{"answers": answers})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, st.responses["user-1"])
}

func TestSteppedFlowOverHTTP(t *testing.T) {
	s, st, _ := testServer(t)
	token := login(t, s)

	// Next without an answer is rejected.
	w := doJSON(s, http.MethodPost, "/api/questionnaire/next", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	for _, q := range wellness.Questions() {
		answer := "5"
		if q.Kind == wellness.KindCategorical {
			answer = q.Options[0]
		}
		w = doJSON(s, http.MethodPost, "/api/questionnaire/answer", token, map[string]string{"question_id": q.ID, "answer": answer})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		w = doJSON(s, http.MethodPost, "/api/questionnaire/next", token, nil)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w = doJSON(s, http.MethodPost, "/api/questionnaire/submit", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "chat", decode(t, w)["view"])
	require.Len(t, st.responses["user-1"], 1)
}

func TestChatRoundTripAndHistory(t *testing.T) {
	s, st, _ := testServer(t)
	token := login(t, s)

	w := doJSON(s, http.MethodPost, "/api/questionnaire/submit-all", token, map[string]interface{}{"answers": fullAnswers()})
	require.Equal(t, http.StatusOK, w.Code)
	doJSON(s, http.MethodPost, "/api/recommendation/ack", token, nil)

	for i := 0; i < 2; i++ {
		w = doJSON(s, http.MethodPost, "/api/chat/send", token, map[string]string{"message": fmt.Sprintf("turn %d", i)})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	require.Len(t, st.messages, 4)
	var prev time.Time
	for i, msg := range st.messages {
		wantRole := store.RoleUser
		if i%2 == 1 {
			wantRole = store.RoleAssistant
		}
		assert.Equal(t, wantRole, msg.Role, "message %d", i)
		assert.False(t, msg.Timestamp.Before(prev), "message %d out of order", i)
		prev = msg.Timestamp
	}

	w = doJSON(s, http.MethodGet, "/api/chat/history?limit=3", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	messages, _ := decode(t, w)["messages"].([]interface{})
	assert.Len(t, messages, 3)
}

func TestEmptySendIsNoOp(t *testing.T) {
	s, st, _ := testServer(t)
	token := login(t, s)

	doJSON(s, http.MethodPost, "/api/questionnaire/submit-all", token, map[string]interface{}{"answers": fullAnswers()})

	w := doJSON(s, http.MethodPost, "/api/chat/send", token, map[string]string{"message": "   "})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, st.messages)
}

func TestLogoutReturnsToAuthView(t *testing.T) {
	s, _, _ := testServer(t)
	token := login(t, s)

	w := doJSON(s, http.MethodPost, "/api/logout", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "auth", decode(t, w)["view"])
}

func TestVoiceUnavailableWithoutTranscriber(t *testing.T) {
	s, _, _ := testServer(t)
	token := login(t, s)

	req := httptest.NewRequest(http.MethodPost, "/api/voice/transcribe", bytes.NewReader([]byte{1, 2, 3}))
	req.Header.Set("Content-Type", "audio/webm")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
