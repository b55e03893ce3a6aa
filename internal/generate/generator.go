// Package generate produces one Positive, one Negative and one Edge test case
// per requirement, re-asking the model for whatever kinds are still missing.
package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/reqtrace/internal/llm"
	"github.com/ppiankov/reqtrace/internal/model"
	"github.com/ppiankov/reqtrace/internal/prompt"
	"github.com/ppiankov/reqtrace/internal/worker"
)

// StageName is the pipeline name of this stage
const StageName = "generate"

var schema = llm.SchemaHint{Name: "test_cases", JSON: true}

// Options configures a Generator
type Options struct {
	Provider    llm.Provider
	Prompts     *prompt.Set
	MaxAttempts int // requests per requirement, including the first
	Workers     int
	Logger      *zap.Logger
	Now         func() time.Time
}

// Generator turns categorized requirements into test cases
type Generator struct {
	opts Options
}

// New creates a generator
func New(opts Options) *Generator {
	if opts.Prompts == nil {
		opts.Prompts = prompt.MustDefault()
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Generator{opts: opts}
}

// Result is the output for one requirement
type Result struct {
	TestCases []model.TestCase     // in VariantKinds order
	Gap       *model.GenerationGap // nil when every kind was produced
}

// Run generates test cases for every requirement. Test cases come back in
// requirement order, then Positive, Negative, Edge.
func (g *Generator) Run(ctx context.Context, reqs []model.EnrichedRequirement) ([]model.TestCase, []model.GenerationGap, model.StageStats, error) {
	stats := model.NewStageStats(StageName, len(reqs))
	if g.opts.Provider == nil {
		return nil, nil, stats, errors.New("generate: no LLM provider configured")
	}

	outcomes := worker.Map(ctx, g.opts.Workers, reqs, g.Generate)
	if err := ctx.Err(); err != nil {
		return nil, nil, stats, err
	}

	cases := make([]model.TestCase, 0, len(reqs)*len(model.VariantKinds))
	gaps := []model.GenerationGap{}

	for i, o := range outcomes {
		id := reqs[i].RequirementID
		if o.Err != nil {
			stats.Record(id, o.Err)
			gaps = append(gaps, model.GenerationGap{
				RequirementID: id,
				MissingKinds:  append([]model.VariantKind(nil), model.VariantKinds...),
				Reason:        o.Err.Error(),
			})
			g.opts.Logger.Warn("No test cases generated",
				zap.String("requirement_id", id),
				zap.Error(o.Err),
			)
			continue
		}

		stats.Record(id, nil)
		cases = append(cases, o.Value.TestCases...)
		if o.Value.Gap != nil {
			gaps = append(gaps, *o.Value.Gap)
			g.opts.Logger.Warn("Incomplete test case set",
				zap.String("requirement_id", id),
				zap.Any("missing_kinds", o.Value.Gap.MissingKinds),
				zap.String("reason", o.Value.Gap.Reason),
			)
		}
	}

	return cases, gaps, stats, nil
}

// Generate asks for all missing kinds, up to MaxAttempts times. It fails only
// when no test case at all could be produced.
func (g *Generator) Generate(ctx context.Context, req model.EnrichedRequirement) (Result, error) {
	found := make(map[model.VariantKind]model.TestCase, len(model.VariantKinds))
	var lastErr error

	for attempt := 1; attempt <= g.opts.MaxAttempts; attempt++ {
		missing := missingKinds(found)
		if len(missing) == 0 {
			break
		}

		cases, err := g.request(ctx, req, missing)
		if err != nil {
			lastErr = err
			// Model errors were already retried by the middleware
			if !model.IsSchemaMismatch(err) {
				break
			}
			continue
		}

		added := 0
		for _, c := range cases {
			kind, ok := c.kind()
			if !ok || !c.valid() {
				continue
			}
			if _, have := found[kind]; have {
				continue
			}
			found[kind] = g.buildTestCase(req, kind, c)
			added++
		}
		if added == 0 {
			lastErr = &model.SchemaMismatchError{
				Stage:    StageName,
				RecordID: req.RequirementID,
				Err:      fmt.Errorf("no valid test case for %s", joinKinds(missing)),
			}
		}

		g.opts.Logger.Debug("Generation attempt",
			zap.String("requirement_id", req.RequirementID),
			zap.Int("attempt", attempt),
			zap.Int("added", added),
		)
	}

	if len(found) == 0 {
		if lastErr == nil {
			lastErr = errors.New("no test cases generated")
		}
		return Result{}, lastErr
	}

	result := Result{TestCases: make([]model.TestCase, 0, len(found))}
	for _, k := range model.VariantKinds {
		if tc, ok := found[k]; ok {
			result.TestCases = append(result.TestCases, tc)
		}
	}

	if missing := missingKinds(found); len(missing) > 0 {
		reason := fmt.Sprintf("missing after %d attempts", g.opts.MaxAttempts)
		if lastErr != nil {
			reason = fmt.Sprintf("%s: %v", reason, lastErr)
		}
		result.Gap = &model.GenerationGap{
			RequirementID: req.RequirementID,
			MissingKinds:  missing,
			Reason:        reason,
		}
	}

	return result, nil
}

func (g *Generator) request(ctx context.Context, req model.EnrichedRequirement, kinds []model.VariantKind) ([]caseResponse, error) {
	p, err := g.opts.Prompts.Render(prompt.Generate, prompt.NewGenerateData(req, kinds))
	if err != nil {
		return nil, err
	}

	resp, err := g.opts.Provider.Generate(ctx, llm.GenerateRequest{
		System: p.System,
		Prompt: p.User,
		Schema: schema,
		Accept: func(text string) error { return acceptCases(text, kinds) },
	})
	if err != nil {
		return nil, err
	}

	cases, err := parseCases(resp.Text)
	if err != nil {
		return nil, &model.SchemaMismatchError{Stage: StageName, RecordID: req.RequirementID, Err: err}
	}
	return cases, nil
}

func (g *Generator) buildTestCase(req model.EnrichedRequirement, kind model.VariantKind, c caseResponse) model.TestCase {
	title := strings.TrimSpace(string(c.Title))
	if title == "" {
		title = fmt.Sprintf("%s: %s", kind, req.Title)
	}

	priority, ok := model.ParsePriority(string(c.Priority))
	if !ok {
		priority = req.Priority
	}
	severity, ok := model.ParseSeverity(string(c.Severity))
	if !ok {
		severity = req.Severity
	}
	category, ok := model.ParseCategory(string(c.Type))
	if !ok {
		category = req.Category
	}
	if category == "" {
		category = model.CategoryFunctional
	}

	return model.TestCase{
		TestID:          model.TestCaseID(req.RequirementID, kind),
		RequirementID:   req.RequirementID,
		Kind:            kind,
		Title:           title,
		Description:     strings.TrimSpace(string(c.Description)),
		Preconditions:   cleanList(c.Preconditions),
		Steps:           cleanList(c.Steps),
		TestData:        c.testData(),
		ExpectedResult:  strings.TrimSpace(string(c.ExpectedResult)),
		Postconditions:  cleanList(c.Postconditions),
		Priority:        priority,
		Severity:        severity,
		Type:            category,
		ComplianceTag:   strings.Join(req.Regulations, ", "),
		ExecutionStatus: model.ExecutionStatusNotExecuted,
		Owner:           model.DefaultOwner,
		CreatedAt:       g.opts.Now(),
	}
}

func missingKinds(found map[model.VariantKind]model.TestCase) []model.VariantKind {
	var missing []model.VariantKind
	for _, k := range model.VariantKinds {
		if _, ok := found[k]; !ok {
			missing = append(missing, k)
		}
	}
	return missing
}

func joinKinds(kinds []model.VariantKind) string {
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = string(k)
	}
	return strings.Join(parts, ", ")
}
