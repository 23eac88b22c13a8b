package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/Harshitk-cp/storybrain/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func swordConflict() domain.Conflict {
	return *domain.NewConflict("John", "HAS", "shield", []string{"sword"}, "John has a shield.")
}

func TestPrompts_ConflictAlert(t *testing.T) {
	prompt := DefaultPrompts().ConflictAlert(swordConflict(), 12)

	assert.Contains(t, prompt, "Use at most 12 words.")
	assert.Contains(t, prompt, "- New claim: John -> HAS -> shield")
	assert.Contains(t, prompt, "- Existing facts for same subject+relation: sword")
	assert.Contains(t, prompt, "Ask a short clarifying question")

	empty := DefaultPrompts().ConflictAlert(domain.Conflict{Subject: "A", Relation: "R", Object: "B"}, 0)
	assert.Contains(t, empty, "subject+relation: none")
	assert.Contains(t, empty, "Use at most 10 words.")
}

func TestLoadPrompts(t *testing.T) {
	p, err := LoadPrompts("")
	require.NoError(t, err)
	assert.Equal(t, DefaultPrompts(), p)

	dir := t.TempDir()
	path := filepath.Join(dir, "prompts.toml")
	require.NoError(t, os.WriteFile(path, []byte(`[alerts]
conflict = "Flag {{subject}} {{relation}} {{object}} vs {{existing}} in {{max_words}} words."
`), 0o600))

	p, err = LoadPrompts(path)
	require.NoError(t, err)
	assert.Equal(t, "Flag John HAS shield vs sword in 5 words.", p.ConflictAlert(swordConflict(), 5))

	blank := filepath.Join(dir, "blank.toml")
	require.NoError(t, os.WriteFile(blank, []byte("[alerts]\n"), 0o600))
	p, err = LoadPrompts(blank)
	require.NoError(t, err)
	assert.Equal(t, conflictAlertPrompt, p.Alerts.Conflict)

	bad := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[alerts\n"), 0o600))
	_, err = LoadPrompts(bad)
	assert.Error(t, err)

	_, err = LoadPrompts(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)
}

func TestFinishAlert(t *testing.T) {
	c := swordConflict()
	assert.Equal(t, "John lost his sword?", finishAlert("  \"John lost his sword?\" \n", c))
	assert.Equal(t, "Potential conflict: John HAS shield; please verify continuity.", finishAlert("  ", c))
}

func TestOpenAIClient_ExplainConflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Model       string  `json:"model"`
			Temperature float32 `json:"temperature"`
			Messages    []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		assert.InDelta(t, 0.2, req.Temperature, 0.001)
		require.Len(t, req.Messages, 1)
		assert.Contains(t, req.Messages[0].Content, "John -> HAS -> shield")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"John swapped swords for a shield?"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("test-key", "", srv.URL+"/v1", nil)
	alert, err := c.ExplainConflict(context.Background(), swordConflict(), 10)
	require.NoError(t, err)
	assert.Equal(t, "John swapped swords for a shield?", alert)
}

func TestOpenAIClient_EmptyAndFailure(t *testing.T) {
	status := http.StatusOK
	body := `{"choices":[{"index":0,"message":{"role":"assistant","content":""}}]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	c := NewOpenAIClient("test-key", "gpt-test", srv.URL+"/v1", nil)
	alert, err := c.ExplainConflict(context.Background(), swordConflict(), 10)
	require.NoError(t, err)
	assert.Equal(t, FallbackAlert(swordConflict()), alert)

	status = http.StatusInternalServerError
	body = `{"error":{"message":"boom","type":"server_error"}}`
	_, err = c.ExplainConflict(context.Background(), swordConflict(), 10)
	assert.Error(t, err)
}

func TestAnthropicClient_ExplainConflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var req struct {
			Model     string `json:"model"`
			MaxTokens int    `json:"max_tokens"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, anthropicModel, req.Model)
		assert.Equal(t, alertMaxTokens(8), req.MaxTokens)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","content":[{"type":"text","text":"Sword or shield for John?"}]}`))
	}))
	defer srv.Close()

	c := NewAnthropicClient("test-key", "", srv.URL, nil)
	alert, err := c.ExplainConflict(context.Background(), swordConflict(), 8)
	require.NoError(t, err)
	assert.Equal(t, "Sword or shield for John?", alert)
}

func TestAnthropicClient_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer srv.Close()

	_, err := NewAnthropicClient("test-key", "", srv.URL, nil).ExplainConflict(context.Background(), swordConflict(), 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "explain conflict")
}

func TestMockClient(t *testing.T) {
	m := NewMockClient()
	alert, err := m.ExplainConflict(context.Background(), swordConflict(), 7)
	require.NoError(t, err)
	assert.Equal(t, FallbackAlert(swordConflict()), alert)

	m.ExplainResponse = "Which does John carry?"
	alert, _ = m.ExplainConflict(context.Background(), swordConflict(), 7)
	assert.Equal(t, "Which does John carry?", alert)

	m.ExplainError = errors.New("down")
	_, err = m.ExplainConflict(context.Background(), swordConflict(), 7)
	assert.Error(t, err)
	assert.Equal(t, 3, m.Calls())
	assert.Equal(t, []int{7, 7, 7}, m.MaxWords)
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		provider string
		apiKey   string
		wantErr  bool
		wantType any
	}{
		{ProviderOpenAI, "key", false, &OpenAIClient{}},
		{ProviderOpenAI, "", true, nil},
		{ProviderAnthropic, "key", false, &AnthropicClient{}},
		{ProviderAnthropic, "", true, nil},
		{ProviderCerebras, "key", false, &OpenAIClient{}},
		{ProviderCerebras, "", true, nil},
		{ProviderMock, "", false, &MockClient{}},
		{"ollama", "key", true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.provider+"/"+tt.apiKey, func(t *testing.T) {
			c, err := NewClient(tt.provider, Options{APIKey: tt.apiKey})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, c)
		})
	}
}
