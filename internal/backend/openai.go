package backend

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// completionAPI is the slice of the OpenAI client the session uses.
type completionAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// DirectSession keeps one conversational context seeded with SystemPrompt
// and appends every completed turn to it.
type DirectSession struct {
	api    completionAPI
	model  string
	logger *slog.Logger
	tracer trace.Tracer
	meter  metric.Meter

	mu      sync.Mutex
	history []openai.ChatCompletionMessage

	maxRetries int
	retryDelay time.Duration
	sleep      func(time.Duration)
}

// NewDirectSession creates a direct-model backend.
func NewDirectSession(apiKey, model string, logger *slog.Logger, tracer trace.Tracer, meter metric.Meter) *DirectSession {
	return &DirectSession{
		api:    openai.NewClient(apiKey),
		model:  model,
		logger: logger,
		tracer: tracer,
		meter:  meter,
		history: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt},
		},
		maxRetries: 3,
		retryDelay: time.Second,
		sleep:      time.Sleep,
	}
}

// Reply requests a completion for the user turn. On transport or provider
// failure it retries with linearly increasing backoff; after the last
// attempt it returns the fixed apology instead of an error. Failed turns
// are not appended to the conversational context.
func (s *DirectSession) Reply(ctx context.Context, userText string) string {
	ctx, span := s.tracer.Start(ctx, "openai_completion")
	defer span.End()

	start := time.Now()

	s.mu.Lock()
	messages := make([]openai.ChatCompletionMessage, len(s.history), len(s.history)+1)
	copy(messages, s.history)
	s.mu.Unlock()
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: userText})

	var resp openai.ChatCompletionResponse
	var err error
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		resp, err = s.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    s.model,
			Messages: messages,
		})
		if err == nil && len(resp.Choices) == 0 {
			err = fmt.Errorf("empty response from model")
		}
		if err == nil {
			break
		}
		s.logger.Warn("completion attempt failed", "attempt", attempt, "error", err)
		s.sleep(s.retryDelay * time.Duration(attempt))
	}
	if err != nil {
		return ApologyReply
	}

	reply := resp.Choices[0].Message.Content

	s.mu.Lock()
	s.history = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: reply})
	s.mu.Unlock()

	duration := time.Since(start)
	histogram, herr := s.meter.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
	)
	if herr == nil {
		histogram.Record(ctx, float64(duration.Milliseconds()))
	}
	s.recordUsage(ctx, resp.Usage)

	return reply
}

// Analyze asks the model for a one-shot well-being analysis of the
// submitted answers, outside the conversational context.
func (s *DirectSession) Analyze(ctx context.Context, responses map[string]string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "openai_analysis")
	defer span.End()

	resp, err := s.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: analysisPrompt(responses)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to analyze questionnaire: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty analysis response from model")
	}

	s.recordUsage(ctx, resp.Usage)
	return resp.Choices[0].Message.Content, nil
}

// recordUsage records token usage as OpenTelemetry counters.
func (s *DirectSession) recordUsage(ctx context.Context, usage openai.Usage) {
	for name, value := range map[string]int{
		"prompt_tokens":     usage.PromptTokens,
		"completion_tokens": usage.CompletionTokens,
		"total_tokens":      usage.TotalTokens,
	} {
		counter, err := s.meter.Int64Counter(
			fmt.Sprintf("llm.usage.%s", name),
			metric.WithDescription(fmt.Sprintf("LLM usage metric: %s", name)),
		)
		if err != nil {
			s.logger.Warn("failed to create counter", "key", name, "error", err)
			continue
		}
		counter.Add(ctx, int64(value))
	}
}

func analysisPrompt(responses map[string]string) string {
	ids := make([]string, 0, len(responses))
	for id := range responses {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	b.WriteString("A user has completed a well-being questionnaire. Provide a short, supportive analysis of their answers with gentle, practical recommendations.\n\n")
	for _, id := range ids {
		fmt.Fprintf(&b, "%s: %s\n", id, responses[id])
	}
	return b.String()
}
