package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// VariantKind is one of the three mandated test case categories per requirement
type VariantKind string

const (
	VariantPositive VariantKind = "Positive" // Happy path
	VariantNegative VariantKind = "Negative" // Invalid input / failure
	VariantEdge     VariantKind = "Edge"     // Boundary condition
)

// VariantKinds lists the kinds in output order
var VariantKinds = []VariantKind{VariantPositive, VariantNegative, VariantEdge}

// ParseVariantKind accepts the kind name or common spellings ("happy path", "boundary")
func ParseVariantKind(s string) (VariantKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "positive", "happy path", "happy", "pos":
		return VariantPositive, true
	case "negative", "failure", "invalid", "neg":
		return VariantNegative, true
	case "edge", "boundary", "edge case", "corner case":
		return VariantEdge, true
	}
	return "", false
}

// Code returns the short code used in test ids
func (k VariantKind) Code() string {
	switch k {
	case VariantPositive:
		return "POS"
	case VariantNegative:
		return "NEG"
	case VariantEdge:
		return "EDGE"
	default:
		return "UNK"
	}
}

// TestCaseID builds the stable id of the kind-th test case of a requirement
func TestCaseID(requirementID string, kind VariantKind) string {
	return fmt.Sprintf("TC-%s-%s", requirementID, kind.Code())
}

// Defaults applied to generated test cases
const (
	ExecutionStatusNotExecuted = "Not Executed"
	DefaultOwner               = "QA Team"
)

// TestCase is a generated test case traced to exactly one requirement
type TestCase struct {
	TestID          string         `json:"test_id"`
	RequirementID   string         `json:"requirement_id"` // Parent EnrichedRequirement
	Kind            VariantKind    `json:"kind"`
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	Preconditions   []string       `json:"preconditions"`
	Steps           []string       `json:"steps"`
	TestData        map[string]any `json:"test_data,omitempty"`
	ExpectedResult  string         `json:"expected_result"`
	Postconditions  []string       `json:"postconditions,omitempty"`
	Priority        Priority       `json:"priority"`
	Severity        Severity       `json:"severity"`
	Type            Category       `json:"type,omitempty"`
	ComplianceTag   string         `json:"compliance_tag"`
	ExecutionStatus string         `json:"execution_status"`
	Owner           string         `json:"owner"`
	CreatedAt       time.Time      `json:"created_at"`
}

// GenerationGap records variants the generator could not produce for a requirement
type GenerationGap struct {
	RequirementID string        `json:"requirement_id"`
	MissingKinds  []VariantKind `json:"missing_kinds"`
	Reason        string        `json:"reason"`
}

// ValidationResult is the advisory relevance verdict for one test case
type ValidationResult struct {
	TestID        string `json:"test_id"`
	RequirementID string `json:"requirement_id"`
	Relevant      bool   `json:"relevant"`
	Confidence    int    `json:"confidence"` // 0-100 as reported by the model
	Rationale     string `json:"rationale"`
	Model         string `json:"model,omitempty"`
}

// FlexString decodes a JSON string, an array of strings (joined with "; "),
// or a number or boolean in its literal form. Models are inconsistent about
// the shape of single-valued text fields, e.g. "priority": 1.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexString(n.String())
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = FlexString(strconv.FormatBool(b))
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("expected string, number, boolean or string array: %w", err)
	}
	*f = FlexString(strings.Join(list, "; "))
	return nil
}

// FlexStrings decodes either a JSON array of strings or a single string
type FlexStrings []string

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexStrings) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*f = list
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("expected string array or string: %w", err)
	}
	if strings.TrimSpace(s) == "" {
		*f = []string{}
		return nil
	}
	*f = []string{s}
	return nil
}
