package adapters

import (
	"strings"

	"golang.org/x/net/html"
)

// LegalAdapter reads statute and regulation pages from government and legal
// information publishers
type LegalAdapter struct {
	BaseAdapter
	legalDomains []string
	legalPaths   []string
	chromeClass  []string
}

// NewLegalAdapter creates a new legal document adapter
func NewLegalAdapter() *LegalAdapter {
	return &LegalAdapter{
		legalDomains: []string{
			"ecfr.gov",
			"federalregister.gov",
			"govinfo.gov",
			"hhs.gov",
			"law.cornell.edu",
			"legislation.gov.uk",
			"eur-lex.europa.eu",
			"gdpr-info.eu",
			"justice.gov",
			"gov.uk",
		},
		legalPaths: []string{"/cfr", "/statute", "/regulation", "/legal", "/law"},
		chromeClass: []string{
			"breadcrumb", "breadcrumbs", "skip-link", "site-header", "site-footer",
			"sidebar", "toolbar", "usa-banner", "usa-footer",
		},
	}
}

// Name returns the adapter name
func (a *LegalAdapter) Name() string {
	return "legal"
}

// CanHandle matches known publishers by host and other sites by legal path
// segments
func (a *LegalAdapter) CanHandle(rawURL string) bool {
	host := hostOf(rawURL)
	if host == "" {
		return false
	}
	for _, domain := range a.legalDomains {
		if hostMatches(host, domain) {
			return true
		}
	}

	lowerURL := strings.ToLower(rawURL)
	for _, p := range a.legalPaths {
		if strings.Contains(lowerURL, p) {
			return true
		}
	}
	return false
}

// ContentRoot prefers <main>, then role="main", then the first <article>
func (a *LegalAdapter) ContentRoot(doc *html.Node) *html.Node {
	if n := a.FindFirst(doc, func(n *html.Node) bool { return a.IsElement(n, "main") }); n != nil {
		return n
	}
	if n := a.FindFirst(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && a.GetAttribute(n, "role") == "main"
	}); n != nil {
		return n
	}
	if n := a.FindFirst(doc, func(n *html.Node) bool { return a.IsElement(n, "article") }); n != nil {
		return n
	}
	return doc
}

// Skip drops navigation, page chrome and non-rendered elements
func (a *LegalAdapter) Skip(n *html.Node) bool {
	if a.skipsNonContent(n) || a.IsElement(n, "nav", "header", "footer", "aside", "form", "button") {
		return true
	}
	for _, class := range a.chromeClass {
		if a.HasClass(n, class) {
			return true
		}
	}
	return false
}
