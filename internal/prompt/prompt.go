// Package prompt renders the model prompts of each stage from text/template
// sources. Every template asks for a single JSON object so providers with a
// JSON response mode can enforce it.
package prompt

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/ppiankov/reqtrace/internal/model"
)

// Template names, one per model-calling stage
const (
	Structure  = "structure"
	Categorize = "categorize"
	Generate   = "generate"
	Validate   = "validate"
)

// Prompt is a rendered system instruction plus user message
type Prompt struct {
	System string
	User   string
}

var systems = map[string]string{
	Structure:  "You are a healthcare QA and compliance expert who turns regulatory text into structured, testable requirements.",
	Categorize: "You are a requirements classifier.",
	Generate:   "You are a healthcare QA test designer.",
	Validate:   "You are validating whether a test case matches its requirement.",
}

const structureTemplate = `Convert the following requirement into a structured JSON object.

Requirement ID: {{.RequirementID}}
Requirement: "{{.Text}}"

Fields:
- title: a short name (at most eight words)
- description: the requirement restated precisely
- priority: one of {{join .Priorities ", "}}
- severity: one of {{join .Severities ", "}}
- actors: list of roles involved (clinician, patient, administrator, system, ...)
- acceptance_criteria: list of measurable validation points
- data_type: kind of data concerned (PHI, lab results, prescriptions, ...), or ""
- dependencies: list of other requirement ids this one depends on, or []

Return ONLY one JSON object with exactly these fields. No markdown, no explanation.`

const categorizeTemplate = `Categorize the following requirement into exactly one of:
[{{join .Categories ", "}}].

Title: {{.Requirement.Title}}
Requirement: "{{.Requirement.Statement}}"
{{- if .Requirement.Regulations}}
Regulations: {{join .Requirement.Regulations ", "}}
{{- end}}

Return ONLY a JSON object: {"category": "<one of the categories>", "rationale": "<one sentence>"}`

const generateTemplate = `Convert the following requirement into {{len .Kinds}} test case{{if gt (len .Kinds) 1}}s{{end}}:
{{- range .Kinds}}
- {{.}}{{with kindHint .}} ({{.}}){{end}}
{{- end}}

Requirement ID: {{.Requirement.RequirementID}}
Title: {{.Requirement.Title}}
Requirement: "{{.Requirement.Statement}}"
{{- if .Requirement.AcceptanceCriteria}}
Acceptance criteria:
{{- range .Requirement.AcceptanceCriteria}}
- {{.}}
{{- end}}
{{- end}}
{{- if .Requirement.Regulations}}
Regulations: {{join .Requirement.Regulations ", "}}
{{- end}}

Return ONLY a JSON object of the form {"test_cases": [...]} where each test case has:
- kind: one of {{join .Kinds ", "}} (each exactly once)
- title
- description
- preconditions (list of strings)
- steps (list of strings)
- test_data (JSON object)
- expected_result (string)
- postconditions (list of strings)
- priority ({{join .Priorities ", "}})
- severity ({{join .Severities ", "}})`

const validateTemplate = `Requirement:
ID: {{.Requirement.RequirementID}}
Statement: {{.Requirement.Statement}}

Test Case:
ID: {{.TestCase.TestID}}
Kind: {{.TestCase.Kind}}
Title: {{.TestCase.Title}}
Description: {{.TestCase.Description}}
Steps:
{{- range .TestCase.Steps}}
- {{.}}
{{- end}}
Expected Result: {{.TestCase.ExpectedResult}}

Does the test case exercise the requirement?
Respond ONLY with strict JSON in this format:
{"relevant": true or false, "confidence": 0-100, "rationale": "short explanation"}`

var defaults = map[string]string{
	Structure:  structureTemplate,
	Categorize: categorizeTemplate,
	Generate:   generateTemplate,
	Validate:   validateTemplate,
}

var funcs = template.FuncMap{
	"join":     join,
	"kindHint": kindHint,
}

// Set holds the parsed templates of a run
type Set struct {
	templates map[string]*template.Template
}

// NewSet parses the built-in templates, replacing any that overrides provides
func NewSet(overrides model.PromptConfig) (*Set, error) {
	sources := map[string]string{}
	for name, src := range defaults {
		sources[name] = src
	}
	for name, src := range map[string]string{
		Structure:  overrides.Structure,
		Categorize: overrides.Categorize,
		Generate:   overrides.Generate,
		Validate:   overrides.Validate,
	} {
		if strings.TrimSpace(src) != "" {
			sources[name] = src
		}
	}

	s := &Set{templates: make(map[string]*template.Template, len(sources))}
	for name, src := range sources {
		t, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(src)
		if err != nil {
			return nil, fmt.Errorf("parse %s prompt: %w", name, err)
		}
		s.templates[name] = t
	}
	return s, nil
}

// MustDefault returns the built-in templates; they are known to parse
func MustDefault() *Set {
	s, err := NewSet(model.PromptConfig{})
	if err != nil {
		panic(err)
	}
	return s
}

// Render executes the named template with data
func (s *Set) Render(name string, data any) (Prompt, error) {
	t, ok := s.templates[name]
	if !ok {
		return Prompt{}, fmt.Errorf("unknown prompt %q", name)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return Prompt{}, fmt.Errorf("render %s prompt: %w", name, err)
	}

	return Prompt{System: systems[name], User: strings.TrimSpace(buf.String())}, nil
}

// StructureData is the input of the structure template
type StructureData struct {
	RequirementID string
	Text          string
	Priorities    []model.Priority
	Severities    []model.Severity
}

// NewStructureData fills in the allowed value sets
func NewStructureData(stmt model.RawStatement) StructureData {
	return StructureData{
		RequirementID: stmt.RequirementID,
		Text:          stmt.Text,
		Priorities:    []model.Priority{model.PriorityHigh, model.PriorityMedium, model.PriorityLow},
		Severities:    []model.Severity{model.SeverityCritical, model.SeverityMajor, model.SeverityMinor, model.SeverityCosmetic},
	}
}

// CategorizeData is the input of the categorize template
type CategorizeData struct {
	Requirement model.EnrichedRequirement
	Categories  []model.Category
}

// GenerateData is the input of the generate template
type GenerateData struct {
	Requirement model.EnrichedRequirement
	Kinds       []model.VariantKind // Kinds still missing
	Priorities  []model.Priority
	Severities  []model.Severity
}

// NewGenerateData asks for the given kinds of req
func NewGenerateData(req model.EnrichedRequirement, kinds []model.VariantKind) GenerateData {
	return GenerateData{
		Requirement: req,
		Kinds:       kinds,
		Priorities:  []model.Priority{model.PriorityHigh, model.PriorityMedium, model.PriorityLow},
		Severities:  []model.Severity{model.SeverityCritical, model.SeverityMajor, model.SeverityMinor, model.SeverityCosmetic},
	}
}

// ValidateData is the input of the validate template
type ValidateData struct {
	Requirement model.EnrichedRequirement
	TestCase    model.TestCase
}

func kindHint(k model.VariantKind) string {
	switch k {
	case model.VariantPositive:
		return "happy path"
	case model.VariantNegative:
		return "invalid input or failure"
	case model.VariantEdge:
		return "boundary condition"
	}
	return ""
}

// join accepts any slice of string-kinded values
func join(v any, sep string) (string, error) {
	var parts []string
	switch s := v.(type) {
	case []string:
		parts = s
	case []model.Priority:
		for _, x := range s {
			parts = append(parts, string(x))
		}
	case []model.Severity:
		for _, x := range s {
			parts = append(parts, string(x))
		}
	case []model.Category:
		for _, x := range s {
			parts = append(parts, string(x))
		}
	case []model.VariantKind:
		for _, x := range s {
			parts = append(parts, string(x))
		}
	default:
		return "", fmt.Errorf("join: unsupported type %T", v)
	}
	return strings.Join(parts, sep), nil
}
