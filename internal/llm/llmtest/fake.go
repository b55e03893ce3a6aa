// Package llmtest provides scripted providers and embedders for stage tests.
package llmtest

import (
	"context"
	"sync"

	"github.com/ppiankov/reqtrace/internal/llm"
)

// Provider answers each request with Respond. It is safe for concurrent use.
type Provider struct {
	ProviderName string
	ModelName    string
	Respond      func(req llm.GenerateRequest) (string, error)

	mu    sync.Mutex
	calls []llm.GenerateRequest
}

// NewProvider returns a provider named "fake" that answers with respond
func NewProvider(respond func(req llm.GenerateRequest) (string, error)) *Provider {
	return &Provider{ProviderName: "fake", ModelName: "fake-model", Respond: respond}
}

// Name implements llm.Provider
func (p *Provider) Name() string { return p.ProviderName }

// IsAvailable implements llm.Provider
func (p *Provider) IsAvailable(ctx context.Context) bool { return true }

// Generate implements llm.Provider
func (p *Provider) Generate(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
	p.mu.Lock()
	p.calls = append(p.calls, req)
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text, err := p.Respond(req)
	if err != nil {
		return nil, err
	}
	return &llm.GenerateResponse{Text: text, Model: p.ModelName, TokensUsed: len(text) / 4}, nil
}

// Calls returns a copy of every request received so far
func (p *Provider) Calls() []llm.GenerateRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]llm.GenerateRequest, len(p.calls))
	copy(out, p.calls)
	return out
}

// Embedder returns Vector(text), or the deterministic hash embedding when Vector is nil
type Embedder struct {
	Dims   int
	Vector func(text string) ([]float32, error)
}

// NewEmbedder returns a hash-backed embedder of the given size
func NewEmbedder(dims int) *Embedder {
	return &Embedder{Dims: dims}
}

// Name implements llm.Embedder
func (e *Embedder) Name() string { return "fake" }

// Model implements llm.Embedder
func (e *Embedder) Model() string { return "fake-embedding" }

// Dimensions implements llm.Embedder
func (e *Embedder) Dimensions() int { return e.Dims }

// Embed implements llm.Embedder
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.Vector != nil {
		return e.Vector(text)
	}
	return llm.NewHashEmbedder(e.Dims).Embed(ctx, text)
}
