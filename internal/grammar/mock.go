package grammar

import (
	"context"
	"sync"
)

// MockParser returns canned documents. Documents are looked up by exact text;
// unknown text yields a document with no sentences.
type MockParser struct {
	mu        sync.Mutex
	Documents map[string]*Document
	Error     error

	// Call tracking for assertions
	ParseCalls []string
}

func NewMockParser() *MockParser {
	return &MockParser{Documents: make(map[string]*Document)}
}

// Add registers doc as the parse result for doc.Text.
func (p *MockParser) Add(doc *Document) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Documents[doc.Text] = doc
}

func (p *MockParser) Parse(ctx context.Context, text string) (*Document, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ParseCalls = append(p.ParseCalls, text)
	if p.Error != nil {
		return nil, p.Error
	}
	if doc, ok := p.Documents[text]; ok {
		return doc, nil
	}
	return &Document{Text: text}, nil
}
