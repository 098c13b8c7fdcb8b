package generator

import (
	"context"
	"fmt"
	"iter"

	"aether_architect/config"
)

// LLMClient abstracts the generation backend so it can be swapped or mocked.
// Stream yields the model output as an ordered sequence of text fragments;
// a non-nil error ends the sequence.
type LLMClient interface {
	Stream(ctx context.Context, prompt Prompt) iter.Seq2[string, error]
}

// LLMSettings is the base configuration handed to concrete clients.
type LLMSettings struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}

// NewLLM builds the client selected by cfg.
func NewLLM(cfg *config.LLMConfig) (LLMClient, error) {
	if cfg == nil || cfg.Provider == "" {
		return nil, fmt.Errorf("llm config missing; please set llm.provider/model/api_key in config")
	}
	switch cfg.Provider {
	case config.ProviderMock:
		return &MockLLM{}, nil
	case config.ProviderOpenAI, config.ProviderDeepSeek:
		// DeepSeek speaks the OpenAI protocol; config validation already
		// demands a base_url for it.
		return NewOpenAILLMFromConfig(&LLMSettings{
			Provider: cfg.Provider,
			Model:    cfg.Model,
			APIKey:   cfg.APIKey,
			BaseURL:  cfg.BaseURL,
		})
	default:
		return nil, fmt.Errorf("llm provider %s not supported", cfg.Provider)
	}
}
