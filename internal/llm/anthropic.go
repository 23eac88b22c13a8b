package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/Harshitk-cp/storybrain/internal/domain"
	"github.com/liushuangls/go-anthropic/v2"
)

const anthropicModel = "claude-3-5-haiku-20241022"

type AnthropicClient struct {
	client  *anthropic.Client
	model   string
	prompts *Prompts
}

// NewAnthropicClient talks to the Messages API. baseURL, when set, is the host
// root; the /v1 prefix is appended here.
func NewAnthropicClient(apiKey, model, baseURL string, prompts *Prompts) *AnthropicClient {
	var opts []anthropic.ClientOption
	if baseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(strings.TrimRight(baseURL, "/")+"/v1"))
	}
	if model == "" {
		model = anthropicModel
	}
	if prompts == nil {
		prompts = DefaultPrompts()
	}
	return &AnthropicClient{
		client:  anthropic.NewClient(apiKey, opts...),
		model:   model,
		prompts: prompts,
	}
}

func (c *AnthropicClient) complete(ctx context.Context, prompt string, maxTokens int, temperature float32) (string, error) {
	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(c.model),
		Messages:    []anthropic.Message{anthropic.NewUserTextMessage(prompt)},
		MaxTokens:   maxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		return "", fmt.Errorf("anthropic request failed: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			sb.WriteString(*block.Text)
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

func (c *AnthropicClient) ExplainConflict(ctx context.Context, conflict domain.Conflict, maxWords int) (string, error) {
	result, err := c.complete(ctx, c.prompts.ConflictAlert(conflict, maxWords), alertMaxTokens(maxWords), alertTemperature)
	if err != nil {
		return "", fmt.Errorf("explain conflict: %w", err)
	}
	return finishAlert(result, conflict), nil
}

func (c *AnthropicClient) SummarizeCharacter(ctx context.Context, d domain.CharacterDossier) (domain.CharacterSummary, error) {
	result, err := c.complete(ctx, c.prompts.CharacterSummary(d), summaryMaxTokens, summaryTemperature)
	if err != nil {
		return domain.CharacterSummary{}, fmt.Errorf("summarize character: %w", err)
	}
	return ParseCharacterSummary(result), nil
}
