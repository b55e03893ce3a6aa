package util

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewProxyFunc(t *testing.T) {
	proxy := NewProxyFunc("http://proxy.internal:3128", "", "docs.example.org")

	tests := []struct {
		target string
		want   string
	}{
		{"http://www.ecfr.gov/title-45", "http://proxy.internal:3128"},
		{"https://www.ecfr.gov/title-45", "http://proxy.internal:3128"},
		{"https://docs.example.org/policy", ""},
	}

	for _, tt := range tests {
		u, _ := url.Parse(tt.target)
		got, err := proxy(&http.Request{URL: u})
		if err != nil {
			t.Fatalf("proxy(%s) error: %v", tt.target, err)
		}
		gotStr := ""
		if got != nil {
			gotStr = got.String()
		}
		if gotStr != tt.want {
			t.Errorf("proxy(%s) = %q, want %q", tt.target, gotStr, tt.want)
		}
	}
}

func TestNewProxyFunc_SeparateHTTPSProxy(t *testing.T) {
	proxy := NewProxyFunc("http://plain.internal:80", "http://tls.internal:443", "")
	u, _ := url.Parse("https://www.hhs.gov/hipaa")
	got, err := proxy(&http.Request{URL: u})
	if err != nil || got == nil || got.Host != "tls.internal:443" {
		t.Errorf("Expected HTTPS proxy, got %v (err %v)", got, err)
	}
}

func TestRobotsChecker_Check(t *testing.T) {
	var fetches atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		fetches.Add(1)
		_, _ = fmt.Fprint(w, "User-agent: reqtrace\nDisallow: /private\nCrawl-delay: 2\n")
	}))
	defer server.Close()

	r := NewRobotsChecker("reqtrace", 5*time.Second, nil)
	ctx := context.Background()

	allowed, err := r.Check(ctx, server.URL+"/regulation/164")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !allowed.Allowed || allowed.CrawlDelay != 2*time.Second {
		t.Errorf("Unexpected decision: %+v", allowed)
	}

	blocked, err := r.Check(ctx, server.URL+"/private/notes?x=1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if blocked.Allowed {
		t.Error("Expected /private to be disallowed")
	}

	if n := fetches.Load(); n != 1 {
		t.Errorf("Expected robots.txt fetched once, got %d", n)
	}

	r.Forget()
	_, _ = r.Check(ctx, server.URL+"/")
	if n := fetches.Load(); n != 2 {
		t.Errorf("Expected a refetch after Forget, got %d fetches", n)
	}
}

func TestRobotsChecker_ConcurrentChecksShareFetch(t *testing.T) {
	var fetches atomic.Int32
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		<-release
		_, _ = fmt.Fprint(w, "User-agent: *\nAllow: /\n")
	}))
	defer server.Close()

	r := NewRobotsChecker("reqtrace", 5*time.Second, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = r.Check(context.Background(), server.URL+"/doc")
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := fetches.Load(); n != 1 {
		t.Errorf("Expected one shared fetch, got %d", n)
	}
}

func TestRobotsChecker_ServerErrorDisallows(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	d, err := NewRobotsChecker("reqtrace", 5*time.Second, nil).Check(context.Background(), server.URL+"/doc")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if d.Allowed {
		t.Error("Expected a 5xx robots.txt to disallow fetching")
	}
}

func TestRobotsChecker_UnreachableAllows(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := server.URL
	server.Close()

	d, err := NewRobotsChecker("reqtrace", time.Second, nil).Check(context.Background(), addr+"/doc")
	if err != nil || !d.Allowed {
		t.Errorf("Expected allow on unreachable robots.txt, got %+v (err %v)", d, err)
	}
}

func TestProductToken(t *testing.T) {
	tests := map[string]string{
		"reqtrace/0.1 (+https://example.com)": "reqtrace",
		"curl":                                "curl",
		"":                                    "",
	}
	for in, want := range tests {
		if got := ProductToken(in); got != want {
			t.Errorf("ProductToken(%q) = %q, want %q", in, got, want)
		}
	}
}
