package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/quizchain/config"
	openai_provider "github.com/mohammad-safakhou/quizchain/provider/openai"
)

// Client represents different LLM providers
type Client string

const (
	OpenAI Client = "openai"
	Mock   Client = "mock"
)

// Provider is the interface that all LLM implementations must satisfy.
// Complete sends a single-turn prompt and returns the raw model text.
type Provider interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ErrEmptyCompletion is returned when the model answered with no text.
var ErrEmptyCompletion = errors.New("empty completion")

// NewProvider creates a new LLM client based on the provided configuration
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	switch Client(strings.ToLower(strings.TrimSpace(cfg.Provider))) {
	case OpenAI:
		c, err := openai_provider.NewOpenAIClient(openai_provider.Options{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	case Mock:
		return &MockProvider{Reply: "FINAL_ANSWER: 0"}, nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.Provider)
	}
}
