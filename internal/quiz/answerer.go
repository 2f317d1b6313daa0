package quiz

import (
	"context"
	"strings"

	"github.com/mohammad-safakhou/quizchain/provider"
)

// Answerer asks the reasoning service and extracts the typed answer.
type Answerer struct {
	LLM provider.Provider
}

// Answer returns the parsed answer and the raw completion text.
func (a *Answerer) Answer(ctx context.Context, prompt string) (Answer, string, error) {
	text, err := a.LLM.Complete(ctx, prompt)
	if err != nil {
		return Answer{}, "", err
	}
	if strings.TrimSpace(text) == "" {
		return Answer{}, text, provider.ErrEmptyCompletion
	}
	return ExtractAnswer(text), text, nil
}
