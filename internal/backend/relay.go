package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Relay forwards each turn to an external workflow webhook and takes the
// response body verbatim as the assistant reply. Failures are immediate
// (no retry) and degrade to a fixed placeholder.
type Relay struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
	tracer     trace.Tracer
}

// NewRelay creates a webhook-relay backend.
func NewRelay(url string, logger *slog.Logger, tracer trace.Tracer) *Relay {
	return &Relay{
		url:        url,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
		tracer:     tracer,
	}
}

type relayRequest struct {
	Message string `json:"message"`
}

type relayAnalysisRequest struct {
	Responses map[string]string `json:"responses"`
}

// Reply posts the raw user text and returns the body as the reply.
func (r *Relay) Reply(ctx context.Context, userText string) string {
	ctx, span := r.tracer.Start(ctx, "relay_webhook_call")
	defer span.End()

	body, err := r.post(ctx, relayRequest{Message: userText})
	if err != nil {
		r.logger.Warn("relay call failed", "error", err)
		return ErrorConnectingReply
	}

	reply := strings.TrimSpace(string(body))
	if reply == "" {
		r.logger.Warn("relay returned empty body")
		return ErrorConnectingReply
	}
	return reply
}

// Analyze forwards the questionnaire answers to the workflow endpoint and
// returns its analysis text.
func (r *Relay) Analyze(ctx context.Context, responses map[string]string) (string, error) {
	ctx, span := r.tracer.Start(ctx, "relay_analysis_call")
	defer span.End()

	body, err := r.post(ctx, relayAnalysisRequest{Responses: responses})
	if err != nil {
		return "", fmt.Errorf("failed to analyze questionnaire: %w", err)
	}
	return strings.TrimSpace(string(body)), nil
}

func (r *Relay) post(ctx context.Context, payload interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", r.url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("content-type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("webhook error: %s - %s", resp.Status, string(body))
	}

	return body, nil
}
