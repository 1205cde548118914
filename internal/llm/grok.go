package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// Grok speaks the OpenAI-compatible chat API exposed by xAI. It has no
// embeddings endpoint, so a deployment using Grok for chat still needs an
// embedding-capable provider for the schema catalog build.
type Grok struct {
	client *openai.Client
	model  string
}

func NewGrok(apiKey, baseURL, model string) (*Grok, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GROK_API_KEY must be set")
	}
	if baseURL == "" {
		return nil, fmt.Errorf("GROK_API_URL must be set")
	}

	clientConfig := openai.DefaultConfig(apiKey)
	clientConfig.BaseURL = baseURL

	return &Grok{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
	}, nil
}

func (g *Grok) Chat(ctx context.Context, messages []Message, temperature float64) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    toOpenAIMessages(messages),
		Temperature: float32(temperature),
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: grok chat: %v", ErrConnection, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%w: grok chat returned no choices", ErrEmptyResponse)
	}
	return resp.Choices[0].Message.Content, nil
}

func (g *Grok) Embed(ctx context.Context, text string) ([]float64, error) {
	return nil, ErrEmbedUnsupported
}
