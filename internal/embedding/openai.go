package embedding

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

const defaultModel = openai.SmallEmbedding3

type OpenAIClient struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

func NewOpenAIClient(apiKey, model, baseURL string) *OpenAIClient {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	m := openai.EmbeddingModel(model)
	if model == "" {
		m = defaultModel
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(config),
		model:  m,
	}
}

func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: c.model,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding API returned no data")
	}
	return resp.Data[0].Embedding, nil
}
