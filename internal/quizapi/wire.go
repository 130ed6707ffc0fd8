package quizapi

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/victornm/quizmaster/internal/domain"
)

// wireQuestion is a question as served by quizapi.io. Correctness and the
// multiple-answers marker arrive as the strings "true" and "false".
type wireQuestion struct {
	ID                     int                `json:"id"`
	Question               string             `json:"question"`
	Description            *string            `json:"description"`
	Answers                map[string]*string `json:"answers"`
	CorrectAnswers         map[string]string  `json:"correct_answers"`
	MultipleCorrectAnswers string             `json:"multiple_correct_answers"`
	Category               string             `json:"category"`
	Difficulty             string             `json:"difficulty"`
}

// DecodeQuestions parses a provider question array into domain questions.
func DecodeQuestions(b []byte) ([]domain.Question, error) {
	var ws []wireQuestion
	if err := json.Unmarshal(b, &ws); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}

	qs := make([]domain.Question, 0, len(ws))
	for _, w := range ws {
		q, err := w.toDomain()
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", w.ID, err)
		}
		qs = append(qs, q)
	}
	return qs, nil
}

func (w wireQuestion) toDomain() (domain.Question, error) {
	q := domain.Question{
		ID:         w.ID,
		Prompt:     w.Question,
		Category:   w.Category,
		Difficulty: w.Difficulty,
	}
	if w.Description != nil {
		q.Description = *w.Description
	}

	multi, err := parseFlag(w.MultipleCorrectAnswers)
	if err != nil {
		return q, fmt.Errorf("multiple_correct_answers: %w", err)
	}
	q.MultipleCorrect = multi == domain.FlagTrue

	for k, v := range w.Answers {
		s, err := domain.ParseSlot(k)
		if err != nil {
			return q, err
		}
		if v != nil {
			label := *v
			q.Answers[s] = &label
		}
	}

	for k, v := range w.CorrectAnswers {
		s, err := domain.ParseSlot(strings.TrimSuffix(k, "_correct"))
		if err != nil {
			return q, err
		}
		if q.Correct[s], err = parseFlag(v); err != nil {
			return q, fmt.Errorf("%s: %w", k, err)
		}
	}

	return q, nil
}

func parseFlag(s string) (domain.Flag, error) {
	switch s {
	case "":
		return domain.FlagAbsent, nil
	case "true":
		return domain.FlagTrue, nil
	case "false":
		return domain.FlagFalse, nil
	default:
		return domain.FlagAbsent, fmt.Errorf("invalid flag %q", s)
	}
}
