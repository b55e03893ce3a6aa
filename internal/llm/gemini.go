package llm

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/ppiankov/reqtrace/internal/util"
)

const (
	defaultGeminiModel          = "gemini-2.5-flash"
	defaultGeminiEmbeddingModel = "gemini-embedding-001"
)

func newGenAIClient(ctx context.Context, config Config, vertex bool) (*genai.Client, error) {
	cc := &genai.ClientConfig{
		APIKey: config.APIKey,
		HTTPClient: &http.Client{
			Timeout: timeoutOf(config, 60*time.Second),
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
			},
		},
		HTTPOptions: genai.HTTPOptions{BaseURL: config.BaseURL},
	}

	if vertex {
		if config.Project == "" {
			return nil, fmt.Errorf("vertex AI project is required")
		}
		cc.Backend = genai.BackendVertexAI
		cc.Project = config.Project
		cc.Location = config.Location
		cc.APIKey = ""
		// Vertex authenticates with Application Default Credentials
		cc.HTTPClient = nil
	} else {
		if config.APIKey == "" {
			return nil, fmt.Errorf("Gemini API key is required")
		}
		cc.Backend = genai.BackendGeminiAPI
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return client, nil
}

// GeminiProvider implements the Provider interface for Gemini models, either
// through the Gemini API or Vertex AI
type GeminiProvider struct {
	client *genai.Client
	config Config
	name   string
}

// NewGeminiProvider creates a Gemini API provider
func NewGeminiProvider(ctx context.Context, config Config) (*GeminiProvider, error) {
	client, err := newGenAIClient(ctx, config, false)
	if err != nil {
		return nil, err
	}
	return &GeminiProvider{client: client, config: config, name: "gemini"}, nil
}

// NewVertexProvider creates a Vertex AI provider
func NewVertexProvider(ctx context.Context, config Config) (*GeminiProvider, error) {
	client, err := newGenAIClient(ctx, config, true)
	if err != nil {
		return nil, err
	}
	return &GeminiProvider{client: client, config: config, name: "vertex"}, nil
}

// Name returns the provider name
func (p *GeminiProvider) Name() string {
	return p.name
}

// IsAvailable checks access to the configured model
func (p *GeminiProvider) IsAvailable(ctx context.Context) bool {
	model := p.config.model(GenerateRequest{}, defaultGeminiModel)
	if _, err := p.client.Models.Get(ctx, model, nil); err != nil {
		fmt.Fprintf(os.Stderr, "%s API check failed: %v\n", p.name, err)
		return false
	}
	return true
}

// Generate runs one GenerateContent call
func (p *GeminiProvider) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	model := p.config.model(req, defaultGeminiModel)

	ctxWithTimeout, cancel := context.WithTimeout(ctx, timeoutOf(p.config, 60*time.Second))
	defer cancel()

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(p.config.temperature(req)),
		MaxOutputTokens: int32(p.config.maxTokens(req)),
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Schema.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := p.client.Models.GenerateContent(ctxWithTimeout, model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return nil, classifyGenAIError(p.name, fmt.Errorf("generate content: %w", err))
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, classifyStatus(p.name, http.StatusBadGateway, "", fmt.Errorf("no text in %s response", p.name))
	}

	tokens := 0
	if resp.UsageMetadata != nil {
		tokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	if resp.ModelVersion != "" {
		model = resp.ModelVersion
	}

	return &GenerateResponse{
		Text:       text,
		Model:      model,
		TokensUsed: tokens,
	}, nil
}

// GeminiEmbedder implements Embedder with EmbedContent
type GeminiEmbedder struct {
	client *genai.Client
	config Config
	name   string
}

// NewGeminiEmbedder creates an embedder on the Gemini API, or on Vertex AI when vertex is set
func NewGeminiEmbedder(ctx context.Context, config Config, vertex bool) (*GeminiEmbedder, error) {
	if config.Model == "" {
		config.Model = defaultGeminiEmbeddingModel
	}
	client, err := newGenAIClient(ctx, config, vertex)
	if err != nil {
		return nil, err
	}
	name := "gemini"
	if vertex {
		name = "vertex"
	}
	return &GeminiEmbedder{client: client, config: config, name: name}, nil
}

// Name returns the provider name
func (e *GeminiEmbedder) Name() string { return e.name }

// Model returns the embedding model
func (e *GeminiEmbedder) Model() string { return e.config.Model }

// Dimensions returns the configured output dimensionality
func (e *GeminiEmbedder) Dimensions() int { return e.config.Dimensions }

// Embed returns the embedding of text
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, timeoutOf(e.config, 30*time.Second))
	defer cancel()

	cfg := &genai.EmbedContentConfig{TaskType: "RETRIEVAL_DOCUMENT"}
	if e.config.Dimensions > 0 {
		cfg.OutputDimensionality = genai.Ptr(int32(e.config.Dimensions))
	}

	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	result, err := e.client.Models.EmbedContent(ctxWithTimeout, e.config.Model, contents, cfg)
	if err != nil {
		return nil, classifyGenAIError(e.name, fmt.Errorf("embed content: %w", err))
	}

	if len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
		return nil, classifyStatus(e.name, http.StatusBadGateway, "", fmt.Errorf("no embedding in %s response", e.name))
	}

	return result.Embeddings[0].Values, nil
}
