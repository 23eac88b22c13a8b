package llm

import (
	"context"
	"fmt"

	"github.com/Harshitk-cp/storybrain/internal/domain"
	"github.com/sashabaranov/go-openai"
)

const defaultChatModel = "gpt-4o-mini"

const (
	alertTemperature   = 0.2
	summaryTemperature = 0.3
)

type OpenAIClient struct {
	client  *openai.Client
	model   string
	prompts *Prompts
}

// NewOpenAIClient talks to the OpenAI chat API, or to any compatible server
// when baseURL is set.
func NewOpenAIClient(apiKey, model, baseURL string, prompts *Prompts) *OpenAIClient {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if model == "" {
		model = defaultChatModel
	}
	if prompts == nil {
		prompts = DefaultPrompts()
	}
	return &OpenAIClient{
		client:  openai.NewClientWithConfig(config),
		model:   model,
		prompts: prompts,
	}
}

func (c *OpenAIClient) ExplainConflict(ctx context.Context, conflict domain.Conflict, maxWords int) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: c.prompts.ConflictAlert(conflict, maxWords),
			},
		},
		Temperature: alertTemperature,
		MaxTokens:   alertMaxTokens(maxWords),
	})
	if err != nil {
		return "", fmt.Errorf("explain conflict: %w", err)
	}
	if len(resp.Choices) == 0 {
		return FallbackAlert(conflict), nil
	}
	return finishAlert(resp.Choices[0].Message.Content, conflict), nil
}

func (c *OpenAIClient) SummarizeCharacter(ctx context.Context, d domain.CharacterDossier) (domain.CharacterSummary, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: c.prompts.CharacterSummary(d),
			},
		},
		Temperature: summaryTemperature,
		MaxTokens:   summaryMaxTokens,
	})
	if err != nil {
		return domain.CharacterSummary{}, fmt.Errorf("summarize character: %w", err)
	}
	if len(resp.Choices) == 0 {
		return ParseCharacterSummary(""), nil
	}
	return ParseCharacterSummary(resp.Choices[0].Message.Content), nil
}
