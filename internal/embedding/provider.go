// Package embedding produces vectors for narrative chunks.
package embedding

import (
	"fmt"

	"github.com/Harshitk-cp/storybrain/internal/domain"
)

// Provider constants
const (
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
	ProviderNone   = "none"
)

// NewClient creates an embedding client based on the provider name. The none
// provider returns a nil client and chunks are stored without embeddings.
// Returns an error if the provider is unknown or the API key is empty (except for mock and none).
func NewClient(provider, apiKey, model, baseURL string) (domain.EmbeddingClient, error) {
	switch provider {
	case ProviderOpenAI:
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for OpenAI embedding provider")
		}
		return NewOpenAIClient(apiKey, model, baseURL), nil

	case ProviderMock:
		return NewMockClient(), nil

	case ProviderNone:
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (valid options: openai, mock, none)", provider)
	}
}
