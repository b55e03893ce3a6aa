package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/reqtrace/internal/cache"
	"github.com/ppiankov/reqtrace/internal/llm"
	"github.com/ppiankov/reqtrace/internal/llm/llmtest"
	"github.com/ppiankov/reqtrace/internal/model"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func requirement(id string) model.EnrichedRequirement {
	req := model.NewEnriched(model.StructuredRequirement{
		RequirementID: id,
		Statement:     "The system shall encrypt all PHI at rest.",
		Title:         "Encrypt PHI at rest",
		Priority:      model.PriorityHigh,
		Severity:      model.SeverityCritical,
	})
	req.Regulations = []string{"HIPAA", "ISO 27001"}
	req.Category = model.CategorySecurity
	return req
}

type fakeCase struct {
	Kind           string         `json:"kind"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Preconditions  []string       `json:"preconditions"`
	Steps          []string       `json:"steps"`
	TestData       map[string]any `json:"test_data,omitempty"`
	ExpectedResult string         `json:"expected_result"`
	Priority       string         `json:"priority,omitempty"`
	Severity       string         `json:"severity,omitempty"`
}

func validCase(kind model.VariantKind) fakeCase {
	return fakeCase{
		Kind:           string(kind),
		Title:          string(kind) + " encryption check",
		Description:    "Verify encryption behaviour",
		Preconditions:  []string{"Database is running"},
		Steps:          []string{"Store a patient record", "Inspect the storage"},
		TestData:       map[string]any{"patient_id": "P-1"},
		ExpectedResult: "Data is encrypted",
	}
}

func respondWith(cases ...fakeCase) string {
	b, _ := json.Marshal(map[string]any{"test_cases": cases})
	return string(b)
}

// kindsRequested reads the kinds listed in a generate prompt
func kindsRequested(prompt string) []model.VariantKind {
	var kinds []model.VariantKind
	for _, k := range model.VariantKinds {
		if strings.Contains(prompt, "- "+string(k)+" (") {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

func newGenerator(provider llm.Provider, attempts int) *Generator {
	return New(Options{
		Provider:    provider,
		MaxAttempts: attempts,
		Workers:     4,
		Now:         func() time.Time { return fixedNow },
	})
}

func TestGenerateAllKinds(t *testing.T) {
	provider := llmtest.NewProvider(func(req llm.GenerateRequest) (string, error) {
		edge := validCase(model.VariantEdge)
		edge.Priority = "Low"
		edge.Severity = "Minor"
		return respondWith(validCase(model.VariantNegative), validCase(model.VariantPositive), edge), nil
	})

	res, err := newGenerator(provider, 2).Generate(context.Background(), requirement("REQ-001"))
	require.NoError(t, err)
	assert.Nil(t, res.Gap)
	require.Len(t, res.TestCases, 3)

	ids := []string{res.TestCases[0].TestID, res.TestCases[1].TestID, res.TestCases[2].TestID}
	assert.Equal(t, []string{"TC-REQ-001-POS", "TC-REQ-001-NEG", "TC-REQ-001-EDGE"}, ids)

	pos := res.TestCases[0]
	assert.Equal(t, "REQ-001", pos.RequirementID)
	assert.Equal(t, model.PriorityHigh, pos.Priority)
	assert.Equal(t, model.SeverityCritical, pos.Severity)
	assert.Equal(t, model.CategorySecurity, pos.Type)
	assert.Equal(t, "HIPAA, ISO 27001", pos.ComplianceTag)
	assert.Equal(t, model.ExecutionStatusNotExecuted, pos.ExecutionStatus)
	assert.Equal(t, model.DefaultOwner, pos.Owner)
	assert.Equal(t, fixedNow, pos.CreatedAt)
	assert.Equal(t, map[string]any{"patient_id": "P-1"}, pos.TestData)

	edge := res.TestCases[2]
	assert.Equal(t, model.PriorityLow, edge.Priority)
	assert.Equal(t, model.SeverityMinor, edge.Severity)

	assert.Len(t, provider.Calls(), 1)
}

func TestGenerateRetriesOnlyMissingKinds(t *testing.T) {
	var prompts []string
	provider := llmtest.NewProvider(func(req llm.GenerateRequest) (string, error) {
		prompts = append(prompts, req.Prompt)
		if len(prompts) == 1 {
			bad := validCase(model.VariantEdge)
			bad.Steps = nil
			return respondWith(validCase(model.VariantPositive), bad), nil
		}
		return respondWith(validCase(model.VariantNegative), validCase(model.VariantEdge)), nil
	})

	g := New(Options{Provider: provider, MaxAttempts: 2, Workers: 1, Now: func() time.Time { return fixedNow }})
	res, err := g.Generate(context.Background(), requirement("REQ-002"))
	require.NoError(t, err)
	assert.Nil(t, res.Gap)
	assert.Len(t, res.TestCases, 3)

	require.Len(t, prompts, 2)
	assert.Equal(t, model.VariantKinds, kindsRequested(prompts[0]))
	assert.Equal(t, []model.VariantKind{model.VariantNegative, model.VariantEdge}, kindsRequested(prompts[1]))
}

func TestGenerateRetryWithResponseCache(t *testing.T) {
	calls := 0
	provider := llmtest.NewProvider(func(req llm.GenerateRequest) (string, error) {
		calls++
		if calls == 1 {
			return "Here are some ideas for testing encryption.", nil
		}
		return respondWith(validCase(model.VariantPositive), validCase(model.VariantNegative), validCase(model.VariantEdge)), nil
	})
	c := cache.NewMemoryCache(time.Minute, time.Minute)
	wrapped := llm.WrapProvider(provider, llm.Middleware{Cache: c})

	res, err := newGenerator(wrapped, 2).Generate(context.Background(), requirement("REQ-006"))
	require.NoError(t, err)
	assert.Nil(t, res.Gap)
	assert.Len(t, res.TestCases, 3)
	assert.Equal(t, 2, calls)

	// The accepted answer is now cached, the prose never was
	res, err = newGenerator(wrapped, 2).Generate(context.Background(), requirement("REQ-006"))
	require.NoError(t, err)
	assert.Len(t, res.TestCases, 3)
	assert.Equal(t, 2, calls)
}

func TestGenerateNumericEnumsFallBack(t *testing.T) {
	provider := llmtest.NewProvider(func(req llm.GenerateRequest) (string, error) {
		return `{"test_cases": [{"kind": "positive", "title": "T", "steps": ["a"],
			"expected_result": "ok", "priority": 1, "severity": 2, "type": 3}]}`, nil
	})

	res, err := newGenerator(provider, 1).Generate(context.Background(), requirement("REQ-007"))
	require.NoError(t, err)
	require.Len(t, res.TestCases, 1)
	tc := res.TestCases[0]
	assert.Equal(t, model.PriorityHigh, tc.Priority)
	assert.Equal(t, model.SeverityCritical, tc.Severity)
	assert.Equal(t, model.CategorySecurity, tc.Type)
}

func TestGenerateRecordsGapAfterAttempts(t *testing.T) {
	provider := llmtest.NewProvider(func(req llm.GenerateRequest) (string, error) {
		return respondWith(validCase(model.VariantPositive)), nil
	})

	res, err := newGenerator(provider, 2).Generate(context.Background(), requirement("REQ-003"))
	require.NoError(t, err)
	require.Len(t, res.TestCases, 1)
	require.NotNil(t, res.Gap)
	assert.Equal(t, "REQ-003", res.Gap.RequirementID)
	assert.Equal(t, []model.VariantKind{model.VariantNegative, model.VariantEdge}, res.Gap.MissingKinds)
	assert.Contains(t, res.Gap.Reason, "missing after 2 attempts")
	assert.Len(t, provider.Calls(), 2)
}

func TestGenerateNothingUsable(t *testing.T) {
	provider := llmtest.NewProvider(func(req llm.GenerateRequest) (string, error) {
		return "I'm sorry, I can't do that.", nil
	})

	_, err := newGenerator(provider, 3).Generate(context.Background(), requirement("REQ-004"))
	require.Error(t, err)
	assert.True(t, model.IsSchemaMismatch(err))
	assert.Len(t, provider.Calls(), 3)
}

func TestGenerateProviderErrorStopsRetrying(t *testing.T) {
	calls := 0
	provider := llmtest.NewProvider(func(req llm.GenerateRequest) (string, error) {
		calls++
		if calls == 1 {
			return respondWith(validCase(model.VariantPositive), validCase(model.VariantNegative)), nil
		}
		return "", &model.TransientError{Provider: "fake", StatusCode: 503, Err: errors.New("unavailable")}
	})

	res, err := newGenerator(provider, 3).Generate(context.Background(), requirement("REQ-005"))
	require.NoError(t, err)
	assert.Len(t, res.TestCases, 2)
	require.NotNil(t, res.Gap)
	assert.Equal(t, []model.VariantKind{model.VariantEdge}, res.Gap.MissingKinds)
	assert.Contains(t, res.Gap.Reason, "unavailable")
	assert.Equal(t, 2, calls)
}

func TestParseCasesShapes(t *testing.T) {
	tests := map[string]struct {
		text string
		want int
	}{
		"wrapped":      {text: `{"test_cases": [{"kind": "Positive"}, {"kind": "Edge"}]}`, want: 2},
		"bare array":   {text: "```json\n[{\"kind\": \"Negative\"}]\n```", want: 1},
		"single case":  {text: `Here you go: {"kind": "boundary", "title": "x"}`, want: 1},
		"cases alias":  {text: `{"cases": [{"variant": "happy path"}]}`, want: 1},
		"type as kind": {text: `[{"type": "Negative"}]`, want: 1},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			cases, err := parseCases(tt.text)
			require.NoError(t, err)
			require.Len(t, cases, tt.want)
			_, ok := cases[0].kind()
			assert.True(t, ok)
		})
	}

	_, err := parseCases(`{"answer": 42}`)
	assert.Error(t, err)
}

func TestCaseResponseLenientFields(t *testing.T) {
	var c caseResponse
	require.NoError(t, json.Unmarshal([]byte(`{
		"kind": "Positive",
		"title": "T",
		"steps": "Do the thing",
		"expected_result": ["Saved", "Logged"],
		"test_data": "plain"
	}`), &c))

	assert.True(t, c.valid())
	assert.Equal(t, map[string]any{"value": "plain"}, c.testData())
	assert.Equal(t, model.FlexString("Saved; Logged"), c.ExpectedResult)
}

func TestRunOrdersAndCountsGaps(t *testing.T) {
	provider := llmtest.NewProvider(func(req llm.GenerateRequest) (string, error) {
		if strings.Contains(req.Prompt, "Requirement ID: REQ-010") {
			return "no json here", nil
		}
		var cases []fakeCase
		for _, k := range kindsRequested(req.Prompt) {
			cases = append(cases, validCase(k))
		}
		return respondWith(cases...), nil
	})

	reqs := make([]model.EnrichedRequirement, 10)
	for i := range reqs {
		reqs[i] = requirement(fmt.Sprintf("REQ-%03d", i+1))
	}

	cases, gaps, stats, err := newGenerator(provider, 2).Run(context.Background(), reqs)
	require.NoError(t, err)
	require.Len(t, cases, 27)

	assert.Equal(t, "TC-REQ-001-POS", cases[0].TestID)
	assert.Equal(t, "TC-REQ-001-NEG", cases[1].TestID)
	assert.Equal(t, "TC-REQ-001-EDGE", cases[2].TestID)
	assert.Equal(t, "TC-REQ-009-EDGE", cases[26].TestID)

	require.Len(t, gaps, 1)
	assert.Equal(t, "REQ-010", gaps[0].RequirementID)
	assert.Equal(t, model.VariantKinds, gaps[0].MissingKinds)

	assert.Equal(t, 10, stats.Total)
	assert.Equal(t, 9, stats.Succeeded)
	assert.Equal(t, 1, stats.Skipped)
	assert.True(t, stats.Partial())
}

func TestRunWithoutProvider(t *testing.T) {
	_, _, _, err := New(Options{}).Run(context.Background(), []model.EnrichedRequirement{requirement("REQ-001")})
	assert.Error(t, err)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	provider := llmtest.NewProvider(func(req llm.GenerateRequest) (string, error) { return "", nil })
	_, _, _, err := newGenerator(provider, 1).Run(ctx, []model.EnrichedRequirement{requirement("REQ-001")})
	assert.ErrorIs(t, err, context.Canceled)
}
