// Package questionnaire implements the well-being questionnaire flows:
// a stepped one-question-per-screen state machine and an all-at-once
// submission path.
package questionnaire

import (
	"context"
	"fmt"
	"log/slog"

	"sakhi/internal/backend"
	"sakhi/internal/wellness"
)

// Saver is the store surface the flows write to.
type Saver interface {
	SaveQuestionnaireResponse(ctx context.Context, userID string, responses map[string]string) error
}

// IncompleteError reports a Next/Submit attempted without the required
// answers. The flow state is unchanged and the user may retry.
type IncompleteError struct {
	Message string
}

func (e *IncompleteError) Error() string { return e.Message }

// Flow is the stepped questionnaire for one user.
type Flow struct {
	userID    string
	store     Saver
	logger    *slog.Logger
	questions []wellness.Question
	index     int
	answers   map[string]string
	submitted bool
}

// NewFlow starts a stepped flow at the first question with no answers.
func NewFlow(userID string, store Saver, logger *slog.Logger) *Flow {
	return &Flow{
		userID:    userID,
		store:     store,
		logger:    logger,
		questions: wellness.Questions(),
		answers:   make(map[string]string),
	}
}

// Current returns the question at the current position.
func (f *Flow) Current() wellness.Question {
	return f.questions[f.index]
}

// Index returns the current zero-based position.
func (f *Flow) Index() int { return f.index }

// Submitted reports whether the flow has completed.
func (f *Flow) Submitted() bool { return f.submitted }

// Answers returns a copy of the collected answers.
func (f *Flow) Answers() map[string]string {
	out := make(map[string]string, len(f.answers))
	for k, v := range f.answers {
		out[k] = v
	}
	return out
}

// Answer records a validated answer for a question. Re-answering replaces
// the previous value.
func (f *Flow) Answer(questionID, value string) error {
	if err := wellness.Validate(questionID, value); err != nil {
		return err
	}
	f.answers[questionID] = value
	return nil
}

// Next advances one question. It is legal only when the current question
// has a recorded answer; at the last question it leaves the position
// unchanged (the view there is submit-eligible).
func (f *Flow) Next() error {
	current := f.questions[f.index]
	if _, ok := f.answers[current.ID]; !ok {
		return &IncompleteError{Message: "please select an option before proceeding"}
	}
	if f.index < len(f.questions)-1 {
		f.index++
	}
	return nil
}

// Previous steps back one question without discarding any answers.
func (f *Flow) Previous() {
	if f.index > 0 {
		f.index--
	}
}

// Submit persists the full answer map. It is legal only when every
// question has an answer; a store failure blocks progress and keeps the
// in-progress state so the user can retry.
func (f *Flow) Submit(ctx context.Context) error {
	if len(f.answers) != len(f.questions) {
		return &IncompleteError{Message: "please answer all questions before submitting"}
	}

	if err := f.store.SaveQuestionnaireResponse(ctx, f.userID, f.answers); err != nil {
		return err
	}

	f.logger.Info("questionnaire submitted", "user_id", f.userID, "answer_count", len(f.answers))
	f.submitted = true
	f.answers = make(map[string]string)
	f.index = 0
	return nil
}

// SubmitAll validates and persists a complete answer set in one shot, then
// asks the backend for a personalized analysis. Completion is decided by
// the store write alone: an analysis failure degrades to an empty
// recommendation rather than un-completing the submission.
func SubmitAll(ctx context.Context, store Saver, analyzer backend.Analyzer, logger *slog.Logger, userID string, answers map[string]string) (string, error) {
	if len(answers) != wellness.Count() {
		return "", &IncompleteError{Message: fmt.Sprintf("expected %d answers, got %d", wellness.Count(), len(answers))}
	}
	for id, value := range answers {
		if err := wellness.Validate(id, value); err != nil {
			return "", err
		}
	}

	if err := store.SaveQuestionnaireResponse(ctx, userID, answers); err != nil {
		return "", err
	}

	if analyzer == nil {
		return "", nil
	}
	recommendation, err := analyzer.Analyze(ctx, answers)
	if err != nil {
		logger.Warn("questionnaire analysis failed, continuing without recommendation", "user_id", userID, "error", err)
		return "", nil
	}
	return recommendation, nil
}
