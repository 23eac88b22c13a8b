// Package llm turns detected story conflicts into short author-facing alerts
// and writes character summaries.
package llm

import (
	"fmt"

	"github.com/Harshitk-cp/storybrain/internal/domain"
)

// Provider constants
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderCerebras  = "cerebras"
	ProviderMock      = "mock"
)

const (
	cerebrasBaseURL = "https://api.cerebras.ai/v1"
	cerebrasModel   = "llama-3.3-70b"
)

type Options struct {
	APIKey  string
	BaseURL string
	Model   string
	Prompts *Prompts
}

// NewClient creates a model client based on the provider name.
// Returns an error if the provider is unknown or the API key is empty (except for mock).
func NewClient(provider string, opts Options) (domain.LLMClient, error) {
	switch provider {
	case ProviderOpenAI:
		if opts.APIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for OpenAI provider")
		}
		return NewOpenAIClient(opts.APIKey, opts.Model, opts.BaseURL, opts.Prompts), nil

	case ProviderAnthropic:
		if opts.APIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is required for Anthropic provider")
		}
		return NewAnthropicClient(opts.APIKey, opts.Model, opts.BaseURL, opts.Prompts), nil

	case ProviderCerebras:
		if opts.APIKey == "" {
			return nil, fmt.Errorf("CEREBRAS_API_KEY is required for Cerebras provider")
		}
		model, baseURL := opts.Model, opts.BaseURL
		if model == "" {
			model = cerebrasModel
		}
		if baseURL == "" {
			baseURL = cerebrasBaseURL
		}
		return NewOpenAIClient(opts.APIKey, model, baseURL, opts.Prompts), nil

	case ProviderMock:
		return NewMockClient(), nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (valid options: openai, anthropic, cerebras, mock)", provider)
	}
}
