package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ppiankov/reqtrace/internal/model"
	"github.com/ppiankov/reqtrace/internal/util"
	"github.com/ppiankov/reqtrace/internal/worker"
)

const (
	fetchMaxAttempts = 3
	fetchBaseDelay   = time.Second
)

// fetchSleepFunc is swapped out by tests
var fetchSleepFunc = time.Sleep

// StatusError is a non-2xx response
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d %s", e.StatusCode, e.Status)
}

// Fetcher fetches documents from URLs
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	robots     *util.RobotsChecker // nil when robots.txt is ignored
	limiter    *worker.Limiter     // per host, nil for no limit
}

// NewFetcher creates a new Fetcher with the given configuration
func NewFetcher(timeout time.Duration, userAgent string, maxBytes int64, respectRobots bool, httpProxy, httpsProxy, noProxy string) *Fetcher {
	transport := &http.Transport{
		Proxy: util.NewProxyFunc(httpProxy, httpsProxy, noProxy),
	}
	f := &Fetcher{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		userAgent: userAgent,
		maxBytes:  maxBytes,
	}
	if respectRobots {
		f.robots = util.NewRobotsChecker(util.ProductToken(userAgent), timeout, transport)
	}
	return f
}

// NewFetcherFromConfig builds a fetcher from the fetch config section.
// limiter may be nil.
func NewFetcherFromConfig(cfg model.FetchConfig, limiter *worker.Limiter) *Fetcher {
	f := NewFetcher(cfg.Timeout, cfg.UserAgent, cfg.MaxBodyBytes, cfg.RespectRobots, cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy)
	f.limiter = limiter
	return f
}

// FetchResult contains the fetched document and metadata
type FetchResult struct {
	Body        []byte
	ContentType string
	FinalURL    string
}

// Fetch retrieves a document. Transport failures, 408, 429 and 5xx come back
// as model.TransientError; everything else as model.InputError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return nil, &model.InputError{Source: rawURL, Err: fmt.Errorf("invalid URL")}
	}

	var crawlDelay time.Duration
	if f.robots != nil {
		decision, err := f.robots.Check(ctx, rawURL)
		if err != nil {
			return nil, &model.InputError{Source: rawURL, Err: err}
		}
		if !decision.Allowed {
			return nil, &model.InputError{Source: rawURL, Err: errors.New("disallowed by robots.txt")}
		}
		crawlDelay = decision.CrawlDelay
	}

	if f.limiter != nil {
		if err := f.limiter.WaitWithDelay(ctx, parsed.Host, crawlDelay); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &model.InputError{Source: rawURL, Err: fmt.Errorf("create request: %w", err)}
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,application/json;q=0.9,text/plain;q=0.8,*/*;q=0.5")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &model.TransientError{Provider: parsed.Host, Err: fmt.Errorf("fetch: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
		if resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, &model.TransientError{Provider: parsed.Host, StatusCode: resp.StatusCode, Err: statusErr}
		}
		return nil, &model.InputError{Source: rawURL, Err: statusErr}
	}

	// Read body with size limit
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, &model.InputError{Source: rawURL, Err: fmt.Errorf("read body: %w", err)}
	}

	return &FetchResult{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		FinalURL:    resp.Request.URL.String(),
	}, nil
}

// FetchWithRetry retries transient fetch failures with exponential backoff
func (f *Fetcher) FetchWithRetry(ctx context.Context, rawURL string) (*FetchResult, error) {
	var lastErr error
	for attempt := 0; attempt < fetchMaxAttempts; attempt++ {
		if attempt > 0 {
			fetchSleepFunc(fetchBaseDelay << (attempt - 1))
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		result, err := f.Fetch(ctx, rawURL)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !isRetryableFetchError(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("fetch %s: %d attempts: %w", rawURL, fetchMaxAttempts, lastErr)
}

func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}
	return model.IsTransient(err)
}

func urlPath(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return parsed.Path
}
