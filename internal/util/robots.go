package util

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"
)

// robotsTTL bounds how long a parsed robots.txt is trusted
const robotsTTL = time.Hour

// maxRobotsBytes caps the robots.txt body read per origin
const maxRobotsBytes = 512 << 10

// RobotsDecision is the robots.txt verdict for one URL
type RobotsDecision struct {
	Allowed    bool
	CrawlDelay time.Duration
}

// RobotsChecker checks robots.txt compliance. Files are fetched once per
// origin and cached; concurrent checks against the same origin share a fetch.
type RobotsChecker struct {
	client    *http.Client
	userAgent string
	cache     *gocache.Cache
	inflight  singleflight.Group
}

// NewRobotsChecker creates a checker for the given robots product token.
// transport may be nil for the default transport.
func NewRobotsChecker(userAgent string, timeout time.Duration, transport http.RoundTripper) *RobotsChecker {
	return &RobotsChecker{
		client:    &http.Client{Timeout: timeout, Transport: transport},
		userAgent: userAgent,
		cache:     gocache.New(robotsTTL, 2*robotsTTL),
	}
}

// Check returns whether rawURL may be fetched and the crawl delay the site
// asks for. An unreachable robots.txt allows the fetch.
func (r *RobotsChecker) Check(ctx context.Context, rawURL string) (RobotsDecision, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return RobotsDecision{}, fmt.Errorf("parse URL %q: invalid", rawURL)
	}

	origin := parsed.Scheme + "://" + parsed.Host
	data, err := r.robotsData(ctx, origin)
	if err != nil {
		return RobotsDecision{Allowed: true}, nil
	}

	decision := RobotsDecision{Allowed: data.TestAgent(parsed.RequestURI(), r.userAgent)}
	if group := data.FindGroup(r.userAgent); group != nil {
		decision.CrawlDelay = group.CrawlDelay
	}
	return decision, nil
}

func (r *RobotsChecker) robotsData(ctx context.Context, origin string) (*robotstxt.RobotsData, error) {
	if cached, ok := r.cache.Get(origin); ok {
		return cached.(*robotstxt.RobotsData), nil
	}

	v, err, _ := r.inflight.Do(origin, func() (any, error) {
		data, err := r.fetch(ctx, origin+"/robots.txt")
		if err != nil {
			return nil, err
		}
		r.cache.SetDefault(origin, data)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*robotstxt.RobotsData), nil
}

func (r *RobotsChecker) fetch(ctx context.Context, robotsURL string) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil {
		return nil, fmt.Errorf("read robots.txt: %w", err)
	}

	// 4xx allows everything, 5xx disallows everything
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}
	return data, nil
}

// Forget drops the cached robots.txt of every origin
func (r *RobotsChecker) Forget() {
	r.cache.Flush()
}

// ProductToken returns the robots.txt product token of a User-Agent header,
// e.g. "reqtrace" for "reqtrace/0.1 (+https://example.com)".
func ProductToken(ua string) string {
	parts := strings.Fields(ua)
	if len(parts) == 0 {
		return ua
	}
	product, _, _ := strings.Cut(parts[0], "/")
	return product
}
