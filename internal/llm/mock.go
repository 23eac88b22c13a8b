package llm

import (
	"context"
	"sync"

	"github.com/Harshitk-cp/storybrain/internal/domain"
)

// MockClient is a configurable explainer and summarizer for testing.
// Set the response fields to control what each method returns.
type MockClient struct {
	mu sync.Mutex

	ExplainResponse string
	ExplainError    error
	SummaryResponse string
	SummaryError    error

	// Call tracking for assertions
	ExplainCalls []domain.Conflict
	MaxWords     []int
	SummaryCalls []domain.CharacterDossier
}

func NewMockClient() *MockClient {
	return &MockClient{}
}

// ExplainConflict returns ExplainResponse, or the fallback alert when it is empty.
func (m *MockClient) ExplainConflict(ctx context.Context, c domain.Conflict, maxWords int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ExplainCalls = append(m.ExplainCalls, c)
	m.MaxWords = append(m.MaxWords, maxWords)
	if m.ExplainError != nil {
		return "", m.ExplainError
	}
	return finishAlert(m.ExplainResponse, c), nil
}

func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ExplainCalls)
}

// SummarizeCharacter parses SummaryResponse the way a model reply is parsed.
func (m *MockClient) SummarizeCharacter(ctx context.Context, d domain.CharacterDossier) (domain.CharacterSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SummaryCalls = append(m.SummaryCalls, d)
	if m.SummaryError != nil {
		return domain.CharacterSummary{}, m.SummaryError
	}
	return ParseCharacterSummary(m.SummaryResponse), nil
}
