// Package validate asks a model whether each generated test case actually
// exercises its parent requirement. Verdicts are advisory: nothing is removed,
// negative verdicts are only counted as flagged by the coverage stage.
package validate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/reqtrace/internal/llm"
	"github.com/ppiankov/reqtrace/internal/model"
	"github.com/ppiankov/reqtrace/internal/prompt"
	"github.com/ppiankov/reqtrace/internal/worker"
)

// StageName is the pipeline name of this stage
const StageName = "validate"

var schema = llm.SchemaHint{Name: "validation_result", JSON: true}

// ErrUnknownRequirement is returned for a test case whose parent is not in the requirement set
var ErrUnknownRequirement = errors.New("unknown parent requirement")

// Validator checks test cases against their requirements concurrently
type Validator struct {
	provider   llm.Provider
	prompts    *prompt.Set
	maxWorkers int
	logger     *zap.Logger
}

// NewValidator creates a new validator
func NewValidator(provider llm.Provider, prompts *prompt.Set, maxWorkers int, logger *zap.Logger) *Validator {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	if prompts == nil {
		prompts = prompt.MustDefault()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Validator{
		provider:   provider,
		prompts:    prompts,
		maxWorkers: maxWorkers,
		logger:     logger,
	}
}

// Run validates every test case against its parent. Results come back in
// test case order; records that could not be validated are left out and
// counted in the stats.
func (v *Validator) Run(ctx context.Context, cases []model.TestCase, reqs []model.EnrichedRequirement) ([]model.ValidationResult, model.StageStats, error) {
	stats := model.NewStageStats(StageName, len(cases))
	if v.provider == nil {
		return nil, stats, errors.New("validate: no LLM provider configured")
	}

	parents := make(map[string]model.EnrichedRequirement, len(reqs))
	for _, r := range reqs {
		parents[r.RequirementID] = r
	}

	outcomes := worker.Map(ctx, v.maxWorkers, cases, func(ctx context.Context, tc model.TestCase) (model.ValidationResult, error) {
		parent, ok := parents[tc.RequirementID]
		if !ok {
			return model.ValidationResult{}, fmt.Errorf("%s: %w %q", tc.TestID, ErrUnknownRequirement, tc.RequirementID)
		}
		return v.Validate(ctx, parent, tc)
	})
	if err := ctx.Err(); err != nil {
		return nil, stats, err
	}

	results := make([]model.ValidationResult, 0, len(cases))
	flagged := 0
	for i, o := range outcomes {
		stats.Record(cases[i].TestID, o.Err)
		if o.Err != nil {
			v.logger.Warn("Test case not validated",
				zap.String("test_id", cases[i].TestID),
				zap.Error(o.Err),
			)
			continue
		}
		if !o.Value.Relevant {
			flagged++
		}
		results = append(results, o.Value)
	}

	v.logger.Info("Validation complete",
		zap.Int("validated", len(results)),
		zap.Int("flagged", flagged),
	)

	return results, stats, nil
}

// Validate asks the model about one test case
func (v *Validator) Validate(ctx context.Context, req model.EnrichedRequirement, tc model.TestCase) (model.ValidationResult, error) {
	p, err := v.prompts.Render(prompt.Validate, prompt.ValidateData{Requirement: req, TestCase: tc})
	if err != nil {
		return model.ValidationResult{}, err
	}

	resp, err := v.provider.Generate(ctx, llm.GenerateRequest{
		System: p.System,
		Prompt: p.User,
		Schema: schema,
		Accept: func(text string) error { _, err := decode(text); return err },
	})
	if err != nil {
		return model.ValidationResult{}, err
	}

	verdict, err := decode(resp.Text)
	if err != nil {
		return model.ValidationResult{}, &model.SchemaMismatchError{Stage: StageName, RecordID: tc.TestID, Err: err}
	}

	return model.ValidationResult{
		TestID:        tc.TestID,
		RequirementID: tc.RequirementID,
		Relevant:      bool(*verdict.Relevant),
		Confidence:    clampConfidence(verdict.Confidence),
		Rationale:     strings.TrimSpace(string(verdict.Rationale)),
		Model:         resp.Model,
	}, nil
}

type response struct {
	Relevant   *flexBool        `json:"relevant"`
	Confidence flexNumber       `json:"confidence"`
	Rationale  model.FlexString `json:"rationale"`
}

// flexBool accepts true/false as well as "yes"/"no" style strings
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	var v bool
	if err := json.Unmarshal(data, &v); err == nil {
		*b = flexBool(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("expected boolean: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "relevant", "y":
		*b = true
	case "false", "no", "not relevant", "irrelevant", "n":
		*b = false
	default:
		return fmt.Errorf("expected boolean, got %q", s)
	}
	return nil
}

// flexNumber accepts 85, 85.5, "85" and "85%"; 0-1 fractions are scaled to 0-100
type flexNumber float64

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*n = flexNumber(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("expected number: %w", err)
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	if s == "" {
		*n = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("expected number, got %q", s)
	}
	*n = flexNumber(f)
	return nil
}

func clampConfidence(n flexNumber) int {
	f := float64(n)
	if f > 0 && f <= 1 {
		f *= 100
	}
	switch {
	case f < 0:
		return 0
	case f > 100:
		return 100
	}
	return int(f + 0.5)
}

// decode requires the relevant verdict; confidence and rationale are lenient
func decode(text string) (response, error) {
	verdict, err := llm.DecodeJSON[response](text)
	if err == nil && verdict.Relevant == nil {
		err = errors.New("missing relevant field")
	}
	return verdict, err
}
