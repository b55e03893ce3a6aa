package adapters

import "golang.org/x/net/html"

// WikipediaAdapter reads article prose from Wikipedia pages, leaving out
// citations, navigation boxes and edit links
type WikipediaAdapter struct {
	BaseAdapter
	furniture []string
}

// NewWikipediaAdapter creates a new Wikipedia adapter
func NewWikipediaAdapter() *WikipediaAdapter {
	return &WikipediaAdapter{
		furniture: []string{
			"reference", "reflist", "references", "navbox", "mw-editsection",
			"infobox", "toc", "hatnote", "metadata", "sidebar", "mw-jump-link",
			"noprint", "catlinks",
		},
	}
}

// Name returns the adapter name
func (a *WikipediaAdapter) Name() string {
	return "wikipedia"
}

// CanHandle checks if this is a Wikipedia URL
func (a *WikipediaAdapter) CanHandle(rawURL string) bool {
	return hostMatches(hostOf(rawURL), "wikipedia.org")
}

// ContentRoot returns the article body div
func (a *WikipediaAdapter) ContentRoot(doc *html.Node) *html.Node {
	content := a.FindFirst(doc, func(n *html.Node) bool {
		return a.HasClass(n, "mw-parser-output") || a.GetAttribute(n, "id") == "mw-content-text"
	})
	if content == nil {
		return doc
	}
	return content
}

// Skip drops citations, boxes and edit links
func (a *WikipediaAdapter) Skip(n *html.Node) bool {
	if a.skipsNonContent(n) || a.IsElement(n, "sup", "nav") {
		return true
	}
	if a.GetAttribute(n, "id") == "toc" {
		return true
	}
	for _, class := range a.furniture {
		if a.HasClass(n, class) {
			return true
		}
	}
	return false
}
