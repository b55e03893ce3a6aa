package adapters

import "golang.org/x/net/html"

// GenericAdapter reads the whole document. It serves local files and any
// host without a dedicated adapter.
type GenericAdapter struct {
	BaseAdapter
}

// NewGenericAdapter creates a new generic adapter
func NewGenericAdapter() *GenericAdapter {
	return &GenericAdapter{}
}

// Name returns the adapter name
func (a *GenericAdapter) Name() string {
	return "generic"
}

// CanHandle always returns true
func (a *GenericAdapter) CanHandle(string) bool {
	return true
}

// ContentRoot returns doc
func (a *GenericAdapter) ContentRoot(doc *html.Node) *html.Node {
	return doc
}

// Skip drops scripts, styles and other non-rendered elements
func (a *GenericAdapter) Skip(n *html.Node) bool {
	return a.skipsNonContent(n)
}
