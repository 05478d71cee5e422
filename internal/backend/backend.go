// Package backend adapts text-generation services behind a contract that
// never surfaces raw errors: every failure degrades to a placeholder reply.
package backend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"sakhi/internal/cache"
	"sakhi/internal/config"
)

// SystemPrompt seeds every direct-model conversation.
const SystemPrompt = `You are SAKHI AI, a compassionate and understanding AI assistant focused on mental health and well-being. ` +
	`Your goal is to provide supportive, empathetic responses while maintaining appropriate boundaries and encouraging professional help when needed.`

// Placeholder replies substituted when the backend is unavailable.
const (
	ApologyReply         = "I apologize, but I'm currently experiencing technical difficulties. Please try again in a few moments."
	ErrorConnectingReply = "I'm sorry, there was an error connecting to the assistant. Please try again."
)

// Responder produces one assistant reply per user turn. Implementations
// must not fail; on any backend trouble they return a placeholder string.
type Responder interface {
	Reply(ctx context.Context, userText string) string
}

// Analyzer produces a personalized analysis of a submitted questionnaire.
// Unlike Reply, callers see the error and decide how to degrade.
type Analyzer interface {
	Analyze(ctx context.Context, responses map[string]string) (string, error)
}

// Backend is the full conversational surface exposed to the rest of the app.
type Backend interface {
	Responder
	Analyzer
}

// analysisCacheTTL bounds how long a memoized recommendation stays valid.
const analysisCacheTTL = time.Hour

// New selects the backend shape from configuration.
func New(cfg config.Config, logger *slog.Logger, tracer trace.Tracer, meter metric.Meter) (Backend, error) {
	switch cfg.Backend {
	case config.BackendOpenAI:
		return withAnalysisCache(NewDirectSession(cfg.OpenAIAPIKey, cfg.OpenAIModel, logger, tracer, meter), logger), nil
	case config.BackendRelay:
		return withAnalysisCache(NewRelay(cfg.RelayWebhookURL, logger, tracer), logger), nil
	default:
		return nil, fmt.Errorf("unknown backend: %s", cfg.Backend)
	}
}

// cachedBackend memoizes Analyze results. Recommendations depend only on
// the answer set, so a repeat submission with identical answers reuses
// the earlier one instead of calling the model again.
type cachedBackend struct {
	Backend
	logger   *slog.Logger
	analyses *cache.Analyses
}

func withAnalysisCache(b Backend, logger *slog.Logger) Backend {
	return &cachedBackend{Backend: b, logger: logger, analyses: cache.NewAnalyses(analysisCacheTTL)}
}

func (b *cachedBackend) Analyze(ctx context.Context, responses map[string]string) (string, error) {
	key := cache.Key(responses)
	if rec, ok := b.analyses.Get(key); ok {
		b.logger.Debug("analysis cache hit", "key", key)
		return rec, nil
	}

	rec, err := b.Backend.Analyze(ctx, responses)
	if err == nil && rec != "" {
		b.analyses.Put(key, rec)
	}
	return rec, err
}
