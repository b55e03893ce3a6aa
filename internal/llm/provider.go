// Package llm is the model service boundary: text generation and embedding
// providers plus the cache, retry and rate limit wrappers stages call through.
package llm

import (
	"context"

	"github.com/ppiankov/reqtrace/internal/model"
)

// Provider defines the interface for text generation providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Generate sends one prompt and returns the raw model text. Errors are
	// *model.TransientError or *model.PermanentError.
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// Embedder turns text into a fixed-length vector
type Embedder interface {
	Name() string
	Embed(ctx context.Context, text string) ([]float32, error)
	// Dimensions is the vector length, or 0 when only known after the first call
	Dimensions() int
	// Model identifies the embedding model recorded next to each vector
	Model() string
}

// SchemaHint describes the response shape a stage expects
type SchemaHint struct {
	// Name identifies the schema in logs and cache keys (e.g. "structured_requirement")
	Name string

	// JSON asks the provider for a JSON object response where the API supports it
	JSON bool
}

// GenerateRequest contains the input for one model call
type GenerateRequest struct {
	System string
	Prompt string
	Schema SchemaHint

	// Model overrides the configured model
	Model string

	// MaxTokens limits the response length (0 = configured default)
	MaxTokens int

	// Temperature overrides the configured temperature
	Temperature *float32

	// Accept reports whether a response is usable by the caller. The cache
	// stores only accepted responses and evicts cached ones it rejects.
	// Not part of the cache key.
	Accept func(text string) error
}

// GenerateResponse contains the model output
type GenerateResponse struct {
	Text       string `json:"text"`
	Model      string `json:"model"`
	TokensUsed int    `json:"tokens_used"`
	Cached     bool   `json:"-"`
}

// Config holds provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", "gemini", "vertex", "hash", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for hosted providers
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama, OpenAI-compatible gateways)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	MaxTokens   int
	Temperature float32

	// Dimensions requested from embedding providers (0 = model default)
	Dimensions int

	// Vertex AI
	Project  string
	Location string

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "", // Disabled by default
		Timeout:   60,
		MaxTokens: 2048,
	}
}

// ConfigFromModel converts the generation section of the run config
func ConfigFromModel(cfg model.Config) Config {
	return Config{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Timeout:     cfg.LLM.Timeout,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Project:     cfg.LLM.Project,
		Location:    cfg.LLM.Location,
		HTTPProxy:   cfg.Fetch.HTTPProxy,
		HTTPSProxy:  cfg.Fetch.HTTPSProxy,
		NoProxy:     cfg.Fetch.NoProxy,
	}
}

// EmbeddingConfigFromModel converts the embedding section of the run config
func EmbeddingConfigFromModel(cfg model.Config) Config {
	return Config{
		Provider:   cfg.Embedding.Provider,
		Model:      cfg.Embedding.Model,
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Timeout:    cfg.Embedding.Timeout,
		Dimensions: cfg.Embedding.Dimensions,
		Project:    cfg.Embedding.Project,
		Location:   cfg.Embedding.Location,
		HTTPProxy:  cfg.Fetch.HTTPProxy,
		HTTPSProxy: cfg.Fetch.HTTPSProxy,
		NoProxy:    cfg.Fetch.NoProxy,
	}
}

func (c Config) maxTokens(req GenerateRequest) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return 2048
}

func (c Config) temperature(req GenerateRequest) float32 {
	if req.Temperature != nil {
		return *req.Temperature
	}
	return c.Temperature
}

func (c Config) model(req GenerateRequest, fallback string) string {
	if req.Model != "" {
		return req.Model
	}
	if c.Model != "" {
		return c.Model
	}
	return fallback
}
