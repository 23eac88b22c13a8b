package grammar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrParse wraps every failure of the parser collaborator.
var ErrParse = errors.New("grammar parse failed")

// Parser turns raw text into sentences of dependency-annotated tokens.
// Implementations must be deterministic for deterministic input.
type Parser interface {
	Parse(ctx context.Context, text string) (*Document, error)
}

const (
	defaultParseTimeout = 30 * time.Second
	// maxResponseBytes bounds a parse reply; a 1 MiB chunk parses to well under this.
	maxResponseBytes = 32 << 20
)

// HTTPParser calls an external parse service: POST {baseURL}/parse with
// {"text": "..."} returning a Document as JSON.
type HTTPParser struct {
	baseURL    string
	httpClient *http.Client
	maxBody    int64
}

func NewHTTPParser(baseURL string, timeout time.Duration) *HTTPParser {
	if timeout <= 0 {
		timeout = defaultParseTimeout
	}
	return &HTTPParser{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		maxBody:    maxResponseBytes,
	}
}

type parseRequest struct {
	Text string `json:"text"`
}

type parseResponse struct {
	Document
	Error string `json:"error,omitempty"`
}

func (p *HTTPParser) Parse(ctx context.Context, text string) (*Document, error) {
	body, err := json.Marshal(parseRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", ErrParse, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/parse", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrParse, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %w", ErrParse, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrParse, err)
	}
	if int64(len(respBody)) > p.maxBody {
		return nil, fmt.Errorf("%w: response exceeds %d bytes", ErrParse, p.maxBody)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: parser returned status %d: %s", ErrParse, resp.StatusCode, string(respBody))
	}

	var result parseResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("%w: unmarshal response: %v", ErrParse, err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrParse, result.Error)
	}

	doc := result.Document
	if doc.Text == "" {
		doc.Text = text
	}
	if err := doc.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return &doc, nil
}

// validate checks that every head index stays inside its own sentence.
func (d *Document) validate() error {
	for si, s := range d.Sentences {
		for ti, t := range s.Tokens {
			if t.Head < -1 || t.Head >= len(s.Tokens) {
				return fmt.Errorf("sentence %d token %d: head %d out of range", si, ti, t.Head)
			}
		}
	}
	return nil
}

// Provider constants
const (
	ProviderHTTP = "http"
	ProviderMock = "mock"
)

// NewParser creates a parser for the given provider name.
func NewParser(provider, baseURL string, timeout time.Duration) (Parser, error) {
	switch provider {
	case ProviderHTTP, "":
		if baseURL == "" {
			return nil, fmt.Errorf("PARSER_URL is required for the http parser")
		}
		return NewHTTPParser(baseURL, timeout), nil
	case ProviderMock:
		return NewMockParser(), nil
	default:
		return nil, fmt.Errorf("unknown parser provider: %s (valid options: http, mock)", provider)
	}
}
