package llm

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/ppiankov/reqtrace/internal/util"
)

const defaultOpenAIEmbeddingModel = "text-embedding-3-small"

// OpenAIProvider implements the Provider interface for OpenAI models
type OpenAIProvider struct {
	client *openai.Client
	config Config
}

func newOpenAIClient(config Config) (*openai.Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{
		Transport: &http.Transport{
			Proxy: util.NewProxyFunc(config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
		},
	}

	return openai.NewClientWithConfig(clientConfig), nil
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(config Config) (*OpenAIProvider, error) {
	client, err := newOpenAIClient(config)
	if err != nil {
		return nil, err
	}

	return &OpenAIProvider{
		client: client,
		config: config,
	}, nil
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// IsAvailable checks if the provider is properly configured
func (p *OpenAIProvider) IsAvailable(ctx context.Context) bool {
	// Listing models is the cheapest authenticated call
	_, err := p.client.ListModels(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "OpenAI API check failed: %v\n", err)
		return false
	}
	return true
}

// Generate runs one chat completion
func (p *OpenAIProvider) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	model := p.config.model(req, openai.GPT4oMini)

	ctxWithTimeout, cancel := context.WithTimeout(ctx, timeoutOf(p.config, 60*time.Second))
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	chatReq := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   p.config.maxTokens(req),
		Temperature: p.config.temperature(req),
	}
	if req.Schema.JSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := p.client.CreateChatCompletion(ctxWithTimeout, chatReq)
	if err != nil {
		return nil, classifyOpenAIError(p.Name(), fmt.Errorf("chat completion: %w", err))
	}

	if len(resp.Choices) == 0 {
		return nil, classifyStatus(p.Name(), http.StatusBadGateway, "", fmt.Errorf("no choices in OpenAI response"))
	}

	return &GenerateResponse{
		Text:       strings.TrimSpace(resp.Choices[0].Message.Content),
		Model:      resp.Model,
		TokensUsed: resp.Usage.TotalTokens,
	}, nil
}

// OpenAIEmbedder implements Embedder with the OpenAI embeddings endpoint
type OpenAIEmbedder struct {
	client *openai.Client
	config Config
}

// NewOpenAIEmbedder creates a new OpenAI embedder
func NewOpenAIEmbedder(config Config) (*OpenAIEmbedder, error) {
	client, err := newOpenAIClient(config)
	if err != nil {
		return nil, err
	}
	if config.Model == "" {
		config.Model = defaultOpenAIEmbeddingModel
	}
	return &OpenAIEmbedder{client: client, config: config}, nil
}

// Name returns the provider name
func (e *OpenAIEmbedder) Name() string { return "openai" }

// Model returns the embedding model
func (e *OpenAIEmbedder) Model() string { return e.config.Model }

// Dimensions returns the requested size, or the known default of the model
func (e *OpenAIEmbedder) Dimensions() int {
	if e.config.Dimensions > 0 {
		return e.config.Dimensions
	}
	switch e.config.Model {
	case "text-embedding-3-small", "text-embedding-ada-002":
		return 1536
	case "text-embedding-3-large":
		return 3072
	}
	return 0
}

// Embed returns the embedding of text
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, timeoutOf(e.config, 30*time.Second))
	defer cancel()

	resp, err := e.client.CreateEmbeddings(ctxWithTimeout, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      openai.EmbeddingModel(e.config.Model),
		Dimensions: e.config.Dimensions,
	})
	if err != nil {
		return nil, classifyOpenAIError(e.Name(), fmt.Errorf("create embeddings: %w", err))
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, classifyStatus(e.Name(), http.StatusBadGateway, "", fmt.Errorf("no embedding in OpenAI response"))
	}

	return resp.Data[0].Embedding, nil
}

func timeoutOf(config Config, fallback time.Duration) time.Duration {
	if config.Timeout > 0 {
		return time.Duration(config.Timeout) * time.Second
	}
	return fallback
}
