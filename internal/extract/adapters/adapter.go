// Package adapters selects the readable body of HTML pages from known
// publishers of regulatory text, so site navigation and footnotes do not end
// up as requirement statements.
package adapters

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Adapter defines the interface for publisher-specific page handling
type Adapter interface {
	// Name returns the adapter name
	Name() string

	// CanHandle checks if this adapter understands pages at the given URL
	CanHandle(rawURL string) bool

	// ContentRoot returns the node that holds the document body. It never
	// returns nil; the document itself is the fallback.
	ContentRoot(doc *html.Node) *html.Node

	// Skip reports whether an element and its subtree are page furniture
	Skip(n *html.Node) bool
}

// Registry manages publisher adapters
type Registry struct {
	adapters []Adapter
	generic  Adapter
}

// NewRegistry creates a registry with the built-in adapters
func NewRegistry() *Registry {
	registry := &Registry{
		adapters: make([]Adapter, 0),
	}

	registry.Register(NewWikipediaAdapter())
	registry.Register(NewLegalAdapter())

	registry.generic = NewGenericAdapter()

	return registry
}

// Register registers a new adapter. Adapters are tried in registration order.
func (r *Registry) Register(adapter Adapter) {
	r.adapters = append(r.adapters, adapter)
}

// FindAdapter finds the adapter for rawURL, falling back to the generic one
func (r *Registry) FindAdapter(rawURL string) Adapter {
	for _, adapter := range r.adapters {
		if adapter.CanHandle(rawURL) {
			return adapter
		}
	}
	return r.generic
}

// VisibleText returns the text nodes under the adapter's content root, one
// per line, leaving out the subtrees the adapter skips.
func VisibleText(doc *html.Node, a Adapter) string {
	var buf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && a.Skip(n) {
			return
		}

		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				buf.WriteString(text)
				buf.WriteString("\n")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(a.ContentRoot(doc))
	return buf.String()
}

// BaseAdapter provides common functionality for adapters
type BaseAdapter struct{}

// IsElement checks if n is an element with one of the given tag names
func (b *BaseAdapter) IsElement(n *html.Node, tags ...string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, tag := range tags {
		if n.Data == tag {
			return true
		}
	}
	return false
}

// HasClass checks if a node has a specific CSS class
func (b *BaseAdapter) HasClass(n *html.Node, className string) bool {
	if n.Type != html.ElementNode {
		return false
	}

	for _, attr := range n.Attr {
		if attr.Key == "class" {
			classes := strings.Fields(attr.Val)
			for _, class := range classes {
				if class == className {
					return true
				}
			}
		}
	}
	return false
}

// GetAttribute gets an attribute value from a node
func (b *BaseAdapter) GetAttribute(n *html.Node, attrKey string) string {
	for _, attr := range n.Attr {
		if attr.Key == attrKey {
			return attr.Val
		}
	}
	return ""
}

// FindFirst finds the first node matching a predicate, depth first
func (b *BaseAdapter) FindFirst(n *html.Node, predicate func(*html.Node) bool) *html.Node {
	var result *html.Node

	var walk func(*html.Node) bool
	walk = func(node *html.Node) bool {
		if predicate(node) {
			result = node
			return true
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			if walk(c) {
				return true
			}
		}
		return false
	}

	walk(n)
	return result
}

// skipsNonContent reports the elements no adapter ever reads
func (b *BaseAdapter) skipsNonContent(n *html.Node) bool {
	return b.IsElement(n, "script", "style", "noscript", "iframe", "template", "head", "svg")
}

// hostOf returns the lower-cased host of rawURL, or "" when it does not parse
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// hostMatches reports whether host is domain or one of its subdomains
func hostMatches(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}
