package model

import (
	"strings"
	"time"
)

// RawStatement is a requirement-like span extracted from a source document
type RawStatement struct {
	ID            string    `json:"id"`             // Random UUID
	RequirementID string    `json:"requirement_id"` // Sequential id (e.g., "REQ-001")
	Source        string    `json:"source"`         // File name or URL the span came from
	Page          int       `json:"page"`           // 1-based page number
	Offset        int       `json:"offset"`         // Byte offset within the cleaned page text
	Text          string    `json:"text"`
	CreatedAt     time.Time `json:"created_at"`
}

// Priority is the business priority of a requirement
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// Severity is the impact of a requirement not being met
type Severity string

const (
	SeverityCritical Severity = "Critical"
	SeverityMajor    Severity = "Major"
	SeverityMinor    Severity = "Minor"
	SeverityCosmetic Severity = "Cosmetic"
)

// DefaultPriority and DefaultSeverity replace out-of-set model output
const (
	DefaultPriority = PriorityMedium
	DefaultSeverity = SeverityMinor
)

var priorityAliases = map[string]Priority{
	"high":     PriorityHigh,
	"medium":   PriorityMedium,
	"low":      PriorityLow,
	"p1":       PriorityHigh,
	"p2":       PriorityMedium,
	"p3":       PriorityLow,
	"critical": PriorityHigh,
	"normal":   PriorityMedium,
}

var severityAliases = map[string]Severity{
	"critical": SeverityCritical,
	"major":    SeverityMajor,
	"minor":    SeverityMinor,
	"cosmetic": SeverityCosmetic,
	"high":     SeverityMajor,
	"medium":   SeverityMinor,
	"low":      SeverityCosmetic,
}

// ParsePriority maps free-form model output onto the allowed priority set.
// ok is false when the value was not recognized.
func ParsePriority(s string) (Priority, bool) {
	p, ok := priorityAliases[strings.ToLower(strings.TrimSpace(s))]
	return p, ok
}

// ParseSeverity maps free-form model output onto the allowed severity set
func ParseSeverity(s string) (Severity, bool) {
	v, ok := severityAliases[strings.ToLower(strings.TrimSpace(s))]
	return v, ok
}

// StructuredRequirement is a RawStatement mapped to requirement fields by a model
type StructuredRequirement struct {
	RequirementID      string   `json:"requirement_id"`
	StatementID        string   `json:"statement_id"` // RawStatement.ID
	Statement          string   `json:"statement"`
	Source             string   `json:"source,omitempty"`
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	Priority           Priority `json:"priority"`
	Severity           Severity `json:"severity"`
	Actors             []string `json:"actors"`
	AcceptanceCriteria []string `json:"acceptance_criteria"`
	DataType           string   `json:"data_type,omitempty"`    // e.g. PHI, lab results
	Dependencies       []string `json:"dependencies,omitempty"` // Other requirement ids
	Model              string   `json:"model,omitempty"`        // Model that structured the statement
	Flags              []string `json:"flags,omitempty"`        // e.g. "priority_defaulted:urgent"
}

// EnrichedRequirement carries everything later stages add to a structured requirement.
// Fields are only ever appended to; nothing set by an earlier stage is replaced.
type EnrichedRequirement struct {
	StructuredRequirement

	Regulations       []string  `json:"regulations"`
	NormalizedActors  []string  `json:"normalized_actors"`
	NormalizedActions []string  `json:"normalized_actions"`
	Category          Category  `json:"category,omitempty"`
	CategoryRationale string    `json:"category_rationale,omitempty"`
	Embedding         []float32 `json:"embedding,omitempty"`
	EmbeddingModel    string    `json:"embedding_model,omitempty"`
}

// Category is the single classification label of a requirement
type Category string

const (
	CategoryFunctional       Category = "Functional"
	CategorySecurity         Category = "Security"
	CategoryPerformance      Category = "Performance"
	CategoryUsability        Category = "Usability"
	CategoryReliability      Category = "Reliability"
	CategoryCompliance       Category = "Compliance"
	CategoryDataIntegrity    Category = "Data Integrity"
	CategoryInteroperability Category = "Interoperability"
)

// Categories lists the allowed categories in prompt order
var Categories = []Category{
	CategoryFunctional,
	CategorySecurity,
	CategoryPerformance,
	CategoryUsability,
	CategoryReliability,
	CategoryCompliance,
	CategoryDataIntegrity,
	CategoryInteroperability,
}

// ParseCategory matches s case-insensitively against Categories
func ParseCategory(s string) (Category, bool) {
	s = strings.TrimSpace(s)
	for _, c := range Categories {
		if strings.EqualFold(s, string(c)) {
			return c, true
		}
	}
	return "", false
}

// NewEnriched wraps a structured requirement with empty enrichment slices
func NewEnriched(req StructuredRequirement) EnrichedRequirement {
	return EnrichedRequirement{
		StructuredRequirement: req,
		Regulations:           []string{},
		NormalizedActors:      []string{},
		NormalizedActions:     []string{},
	}
}

// AddFlag appends a flag unless it is already present
func (r *StructuredRequirement) AddFlag(flag string) {
	for _, f := range r.Flags {
		if f == flag {
			return
		}
	}
	r.Flags = append(r.Flags, flag)
}

// SearchText returns the text used for keyword matching and embeddings
func (r StructuredRequirement) SearchText() string {
	parts := make([]string, 0, 4+len(r.Actors)+len(r.AcceptanceCriteria))
	parts = append(parts, r.Title, r.Description, r.Statement)
	parts = append(parts, r.Actors...)
	parts = append(parts, r.AcceptanceCriteria...)

	var b strings.Builder
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(p)
	}
	return b.String()
}
