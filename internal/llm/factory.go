package llm

import (
	"context"
	"fmt"
	"strings"
)

// NewProvider creates a new text generation provider based on configuration.
// An empty provider name returns nil, nil: model stages are disabled.
func NewProvider(ctx context.Context, config Config) (Provider, error) {
	provider := strings.ToLower(config.Provider)

	switch provider {
	case "openai":
		return NewOpenAIProvider(config)

	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	case "gemini", "google":
		return NewGeminiProvider(ctx, config)

	case "vertex", "vertexai":
		return NewVertexProvider(ctx, config)

	case "":
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, anthropic, ollama, gemini, vertex)", config.Provider)
	}
}

// NewEmbedder creates a new embedding provider based on configuration.
// An empty provider name selects the offline hash embedder.
func NewEmbedder(ctx context.Context, config Config) (Embedder, error) {
	provider := strings.ToLower(config.Provider)

	switch provider {
	case "openai":
		return NewOpenAIEmbedder(config)

	case "ollama":
		return NewOllamaEmbedder(config)

	case "gemini", "google":
		return NewGeminiEmbedder(ctx, config, false)

	case "vertex", "vertexai":
		return NewGeminiEmbedder(ctx, config, true)

	case "hash", "":
		return NewHashEmbedder(config.Dimensions), nil

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: openai, ollama, gemini, vertex, hash)", config.Provider)
	}
}
