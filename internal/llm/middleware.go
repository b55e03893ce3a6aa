package llm

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/reqtrace/internal/cache"
)

// Waiter blocks until a call for key may proceed. worker.Limiter satisfies it.
type Waiter interface {
	Wait(ctx context.Context, key string) error
}

// Middleware configures the wrappers applied around a provider or embedder
type Middleware struct {
	Limiter Waiter      // nil disables rate limiting
	Retry   RetryPolicy // MaxAttempts <= 1 disables retries
	Cache   cache.Cache // nil disables the response cache
	Logger  *zap.Logger

	// CacheScope separates cache entries of differently configured providers,
	// typically the configured model name
	CacheScope string
}

// WrapProvider applies cache → retry → rate limit → p, outermost first
func WrapProvider(p Provider, mw Middleware) Provider {
	logger := mw.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if mw.Limiter != nil {
		p = &rateLimitedProvider{Provider: p, limiter: mw.Limiter}
	}
	if mw.Retry.MaxAttempts > 1 {
		p = &retryingProvider{Provider: p, policy: mw.Retry, logger: logger}
	}
	if mw.Cache != nil {
		p = &cachedProvider{Provider: p, cache: mw.Cache, scope: mw.CacheScope, logger: logger}
	}
	return p
}

// WrapEmbedder applies the same chain to an embedder
func WrapEmbedder(e Embedder, mw Middleware) Embedder {
	logger := mw.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if mw.Limiter != nil {
		e = &rateLimitedEmbedder{Embedder: e, limiter: mw.Limiter}
	}
	if mw.Retry.MaxAttempts > 1 {
		e = &retryingEmbedder{Embedder: e, policy: mw.Retry, logger: logger}
	}
	if mw.Cache != nil {
		e = &cachedEmbedder{Embedder: e, cache: mw.Cache, logger: logger}
	}
	return e
}

type rateLimitedProvider struct {
	Provider
	limiter Waiter
}

func (p *rateLimitedProvider) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if err := p.limiter.Wait(ctx, p.Name()); err != nil {
		return nil, classifyTransport(p.Name(), err)
	}
	return p.Provider.Generate(ctx, req)
}

type retryingProvider struct {
	Provider
	policy RetryPolicy
	logger *zap.Logger
}

func (p *retryingProvider) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	return Retry(ctx, p.policy, func(ctx context.Context) (*GenerateResponse, error) {
		return p.Provider.Generate(ctx, req)
	}, retryLogger(p.logger, p.Name(), req.Schema.Name))
}

type cachedProvider struct {
	Provider
	cache  cache.Cache
	scope  string
	logger *zap.Logger
}

func (p *cachedProvider) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	temp := ""
	if req.Temperature != nil {
		temp = strconv.FormatFloat(float64(*req.Temperature), 'f', -1, 32)
	}
	key := cache.Key("generate", p.Name(), p.scope, req.Model, req.Schema.Name,
		strconv.FormatBool(req.Schema.JSON), strconv.Itoa(req.MaxTokens), temp,
		req.System, req.Prompt)

	if data, ok := p.cache.Get(key); ok {
		var resp GenerateResponse
		err := json.Unmarshal(data, &resp)
		if err == nil && req.Accept != nil {
			err = req.Accept(resp.Text)
		}
		if err == nil {
			resp.Cached = true
			return &resp, nil
		}
		p.logger.Debug("evicting unusable cached response", zap.String("provider", p.Name()), zap.Error(err))
		if err := p.cache.Delete(key); err != nil {
			p.logger.Warn("cache delete failed", zap.String("provider", p.Name()), zap.Error(err))
		}
	}

	resp, err := p.Provider.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	if req.Accept != nil {
		if err := req.Accept(resp.Text); err != nil {
			p.logger.Debug("response not cached", zap.String("provider", p.Name()), zap.Error(err))
			return resp, nil
		}
	}

	if data, err := json.Marshal(resp); err == nil {
		if err := p.cache.Set(key, data, 0); err != nil {
			p.logger.Warn("cache write failed", zap.String("provider", p.Name()), zap.Error(err))
		}
	}
	return resp, nil
}

type rateLimitedEmbedder struct {
	Embedder
	limiter Waiter
}

func (e *rateLimitedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := e.limiter.Wait(ctx, e.Name()); err != nil {
		return nil, classifyTransport(e.Name(), err)
	}
	return e.Embedder.Embed(ctx, text)
}

type retryingEmbedder struct {
	Embedder
	policy RetryPolicy
	logger *zap.Logger
}

func (e *retryingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return Retry(ctx, e.policy, func(ctx context.Context) ([]float32, error) {
		return e.Embedder.Embed(ctx, text)
	}, retryLogger(e.logger, e.Name(), "embedding"))
}

type cachedEmbedder struct {
	Embedder
	cache  cache.Cache
	logger *zap.Logger
}

func (e *cachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cache.Key("embed", e.Name(), e.Model(), strconv.Itoa(e.Dimensions()), text)

	if data, ok := e.cache.Get(key); ok {
		var vec []float32
		if err := json.Unmarshal(data, &vec); err == nil && len(vec) > 0 {
			return vec, nil
		}
	}

	vec, err := e.Embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(vec); err == nil {
		if err := e.cache.Set(key, data, 0); err != nil {
			e.logger.Warn("cache write failed", zap.String("provider", e.Name()), zap.Error(err))
		}
	}
	return vec, nil
}

func retryLogger(logger *zap.Logger, provider, schema string) func(int, time.Duration, error) {
	return func(attempt int, delay time.Duration, err error) {
		logger.Warn("retrying model call",
			zap.String("provider", provider),
			zap.String("schema", schema),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
	}
}
