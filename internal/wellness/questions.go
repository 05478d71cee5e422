// Package wellness holds the fixed well-being questionnaire catalog.
package wellness

import (
	"fmt"
	"strconv"
)

// Question kinds.
const (
	KindCategorical = "categorical"
	KindNumeric     = "numeric"
)

// Question is one questionnaire entry. Numeric questions accept integer
// answers in [0, 10]; categorical questions accept one of Options.
type Question struct {
	ID      string   `json:"id"`
	Kind    string   `json:"kind"`
	Options []string `json:"options,omitempty"`
}

var questions = buildCatalog()

func buildCatalog() []Question {
	qs := []Question{
		{ID: "AGE", Kind: KindCategorical, Options: []string{"Less than 20", "21-35", "36-50", "51 or more"}},
		{ID: "GENDER", Kind: KindCategorical, Options: []string{"Male", "Female"}},
	}

	numeric := []string{
		"BMI_RANGE", "SUFFICIENT_INCOME", "DONATION", "Fruit and Veggies",
		"DAILY_STRESS", "CORE_CIRCLE", "SUPPORTING_OTHERS", "SOCIAL_NETWORK",
		"ACHIEVEMENT", "TODO_COMPLETED", "FLOW", "DAILY_STEPS", "LIVE_VISION",
		"SLEEP_HOURS", "LOST_VACATION", "DAILY_SHOUTING", "PERSONAL_AWARDS",
		"TIME_FOR_PASSION", "WEEKLY_MEDITATION",
	}
	for _, id := range numeric {
		qs = append(qs, Question{ID: id, Kind: KindNumeric})
	}
	return qs
}

// Questions returns the full catalog in presentation order.
func Questions() []Question {
	out := make([]Question, len(questions))
	copy(out, questions)
	return out
}

// Count returns the number of questions a complete response must answer.
func Count() int {
	return len(questions)
}

// ByID looks up a question by its identifier.
func ByID(id string) (Question, bool) {
	for _, q := range questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// Validate checks an answer against its question's kind.
func Validate(questionID, answer string) error {
	q, ok := ByID(questionID)
	if !ok {
		return fmt.Errorf("unknown question: %s", questionID)
	}

	switch q.Kind {
	case KindCategorical:
		for _, opt := range q.Options {
			if answer == opt {
				return nil
			}
		}
		return fmt.Errorf("answer %q is not an option for %s", answer, questionID)
	case KindNumeric:
		n, err := strconv.Atoi(answer)
		if err != nil {
			return fmt.Errorf("answer for %s must be an integer: %w", questionID, err)
		}
		if n < 0 || n > 10 {
			return fmt.Errorf("answer for %s must be between 0 and 10, got %d", questionID, n)
		}
		return nil
	default:
		return fmt.Errorf("question %s has unknown kind %s", questionID, q.Kind)
	}
}
