package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/reqtrace/internal/util"
)

const defaultOllamaEmbeddingModel = "nomic-embed-text"

// OllamaProvider implements the Provider interface for Ollama local models
type OllamaProvider struct {
	baseURL    string
	httpClient *http.Client
	config     Config
}

// Ollama API structures
type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	System  string        `json:"system,omitempty"`
	Format  string        `json:"format,omitempty"`
	Options ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float32 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"` // Max tokens
}

type ollamaResponse struct {
	Model           string `json:"model"`
	CreatedAt       string `json:"created_at"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count,omitempty"`
	EvalCount       int    `json:"eval_count,omitempty"`
}

type ollamaEmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

type ollamaError struct {
	Error string `json:"error"`
}

func newOllamaClient(config Config) (string, *http.Client) {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	return strings.TrimSuffix(baseURL, "/"), &http.Client{
		// Local models can be slow to load
		Timeout: timeoutOf(config, 120*time.Second),
		Transport: &http.Transport{
			Proxy: util.NewProxyFunc(config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
		},
	}
}

// NewOllamaProvider creates a new Ollama provider
func NewOllamaProvider(config Config) (*OllamaProvider, error) {
	if config.Model == "" {
		return nil, fmt.Errorf("ollama model must be specified (e.g., llama3.1:8b, mistral)")
	}

	baseURL, client := newOllamaClient(config)
	return &OllamaProvider{
		baseURL:    baseURL,
		httpClient: client,
		config:     config,
	}, nil
}

// Name returns the provider name
func (p *OllamaProvider) Name() string {
	return "ollama"
}

// IsAvailable checks if Ollama is running by listing local models
func (p *OllamaProvider) IsAvailable(ctx context.Context) bool {
	return ollamaAvailable(ctx, p.httpClient, p.baseURL)
}

func ollamaAvailable(ctx context.Context, client *http.Client, baseURL string) bool {
	url := fmt.Sprintf("%s/api/tags", baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ollama availability check failed (request creation): %v\n", err)
		return false
	}

	resp, err := client.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ollama availability check failed (connection to %s): %v\n", baseURL, err)
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Ollama availability check failed (HTTP %d from %s)\n", resp.StatusCode, baseURL)
		return false
	}

	return true
}

// Generate runs one non-streaming completion
func (p *OllamaProvider) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	apiReq := ollamaRequest{
		Model:  p.config.model(req, ""),
		Prompt: req.Prompt,
		Stream: false,
		System: req.System,
		Options: ollamaOptions{
			Temperature: p.config.temperature(req),
			NumPredict:  p.config.maxTokens(req),
		},
	}
	if req.Schema.JSON {
		apiReq.Format = "json"
	}

	var resp ollamaResponse
	if err := ollamaPost(ctx, p.httpClient, p.baseURL+"/api/generate", apiReq, &resp); err != nil {
		return nil, classifyTransport(p.Name(), err)
	}

	text := strings.TrimSpace(resp.Response)

	// Some models report no counts; estimate at 4 characters per token
	tokensUsed := resp.PromptEvalCount + resp.EvalCount
	if tokensUsed == 0 {
		tokensUsed = (len(req.Prompt) + len(text)) / 4
	}

	return &GenerateResponse{
		Text:       text,
		Model:      resp.Model,
		TokensUsed: tokensUsed,
	}, nil
}

// OllamaEmbedder implements Embedder with the Ollama embeddings endpoint
type OllamaEmbedder struct {
	baseURL    string
	httpClient *http.Client
	config     Config
}

// NewOllamaEmbedder creates a new Ollama embedder
func NewOllamaEmbedder(config Config) (*OllamaEmbedder, error) {
	if config.Model == "" {
		config.Model = defaultOllamaEmbeddingModel
	}
	baseURL, client := newOllamaClient(config)
	return &OllamaEmbedder{baseURL: baseURL, httpClient: client, config: config}, nil
}

// Name returns the provider name
func (e *OllamaEmbedder) Name() string { return "ollama" }

// Model returns the embedding model
func (e *OllamaEmbedder) Model() string { return e.config.Model }

// Dimensions is only known after the first call unless configured
func (e *OllamaEmbedder) Dimensions() int { return e.config.Dimensions }

// Embed returns the embedding of text
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var resp ollamaEmbeddingResponse
	err := ollamaPost(ctx, e.httpClient, e.baseURL+"/api/embeddings",
		ollamaEmbeddingRequest{Model: e.config.Model, Prompt: text}, &resp)
	if err != nil {
		return nil, classifyTransport(e.Name(), err)
	}
	if len(resp.Embedding) == 0 {
		return nil, classifyStatus(e.Name(), http.StatusBadGateway, "", fmt.Errorf("no embedding in Ollama response"))
	}
	return resp.Embedding, nil
}

// ollamaPost sends a JSON request and decodes the JSON response into out
func ollamaPost(ctx context.Context, client *http.Client, url string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		var apiErr ollamaError
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error != "" {
			return classifyStatus("ollama", httpResp.StatusCode, "",
				fmt.Errorf("API error (%d): %s", httpResp.StatusCode, apiErr.Error))
		}
		return classifyStatus("ollama", httpResp.StatusCode, "",
			fmt.Errorf("API error (%d): %s", httpResp.StatusCode, string(respBody)))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}

	return nil
}
