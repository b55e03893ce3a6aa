// Package util holds the outbound HTTP helpers shared by the document fetcher
// and the hosted model providers.
package util

import (
	"net/http"
	"net/url"

	"golang.org/x/net/http/httpproxy"
)

// NewProxyFunc returns the transport proxy function for the configured
// proxies. Empty settings fall back to HTTP_PROXY, HTTPS_PROXY and NO_PROXY.
// HTTPS requests use the HTTP proxy when only that one is set.
func NewProxyFunc(httpProxy, httpsProxy, noProxy string) func(*http.Request) (*url.URL, error) {
	env := httpproxy.FromEnvironment()

	cfg := httpproxy.Config{
		HTTPProxy:  firstNonEmpty(httpProxy, env.HTTPProxy),
		HTTPSProxy: firstNonEmpty(httpsProxy, httpProxy, env.HTTPSProxy),
		NoProxy:    firstNonEmpty(noProxy, env.NoProxy),
	}
	proxy := cfg.ProxyFunc()

	return func(req *http.Request) (*url.URL, error) {
		return proxy(req.URL)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
