package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/atlas-insights/sibyl/internal/config"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrConnection marks transport-level failures talking to a provider.
var ErrConnection = errors.New("llm connection failed")

// ErrEmptyResponse marks a well-formed reply that carries no usable content.
var ErrEmptyResponse = errors.New("llm returned empty response")

// ErrEmbedUnsupported is returned by providers without an embeddings endpoint.
var ErrEmbedUnsupported = errors.New("embeddings not supported by provider")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client is the model capability the pipeline depends on. Providers differ in
// wire format only; callers never see a concrete provider type.
type Client interface {
	Chat(ctx context.Context, messages []Message, temperature float64) (string, error)
	Embed(ctx context.Context, text string) ([]float64, error)
}

// New selects a provider from configuration. Missing credentials are a fatal
// configuration error for the selected provider only.
func New(cfg config.Config) (Client, error) {
	switch cfg.LLMProvider {
	case "openai":
		return NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIEmbedModel)
	case "gemini":
		return NewGemini(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiEmbedModel)
	case "grok":
		return NewGrok(cfg.GrokAPIKey, cfg.GrokBaseURL, cfg.GrokModel)
	default:
		return nil, fmt.Errorf("invalid LLM_PROVIDER %q: must be one of openai, gemini, grok", cfg.LLMProvider)
	}
}
