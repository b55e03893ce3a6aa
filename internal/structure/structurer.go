// Package structure maps raw statements to structured requirements with one
// model call per statement.
package structure

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/reqtrace/internal/llm"
	"github.com/ppiankov/reqtrace/internal/model"
	"github.com/ppiankov/reqtrace/internal/prompt"
	"github.com/ppiankov/reqtrace/internal/worker"
)

// StageName is the pipeline name of this stage
const StageName = "structure"

const titleFallbackWords = 8

var schema = llm.SchemaHint{Name: "structured_requirement", JSON: true}

// response is the lenient shape of the model's answer
type response struct {
	Title              model.FlexString  `json:"title"`
	Description        model.FlexString  `json:"description"`
	Priority           model.FlexString  `json:"priority"`
	Severity           model.FlexString  `json:"severity"`
	Actors             model.FlexStrings `json:"actors"`
	AcceptanceCriteria model.FlexStrings `json:"acceptance_criteria"`
	DataType           model.FlexString  `json:"data_type"`
	Dependencies       model.FlexStrings `json:"dependencies"`
}

func (r response) empty() bool {
	return r.Title == "" && r.Description == "" && r.Priority == "" && r.Severity == "" &&
		len(r.Actors) == 0 && len(r.AcceptanceCriteria) == 0
}

// Structurer turns RawStatements into StructuredRequirements
type Structurer struct {
	provider llm.Provider
	prompts  *prompt.Set
	workers  int
	logger   *zap.Logger
}

// New creates a structurer. A nil prompt set uses the built-in templates.
func New(provider llm.Provider, prompts *prompt.Set, workers int, logger *zap.Logger) *Structurer {
	if prompts == nil {
		prompts = prompt.MustDefault()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Structurer{provider: provider, prompts: prompts, workers: workers, logger: logger}
}

// Run structures every statement concurrently, keeping input order. Records
// that fail are counted in the stats and left out of the output.
func (s *Structurer) Run(ctx context.Context, stmts []model.RawStatement) ([]model.StructuredRequirement, model.StageStats, error) {
	stats := model.NewStageStats(StageName, len(stmts))
	if s.provider == nil {
		return nil, stats, errors.New("structure: no LLM provider configured")
	}

	outcomes := worker.Map(ctx, s.workers, stmts, s.Structure)
	if err := ctx.Err(); err != nil {
		return nil, stats, err
	}

	out := make([]model.StructuredRequirement, 0, len(stmts))
	for i, o := range outcomes {
		id := stmts[i].RequirementID
		stats.Record(id, o.Err)
		if o.Err != nil {
			s.logger.Warn("Requirement not structured",
				zap.String("requirement_id", id),
				zap.Error(o.Err),
			)
			continue
		}
		out = append(out, o.Value)
	}

	return out, stats, nil
}

// Structure makes one model call for stmt and normalizes the answer
func (s *Structurer) Structure(ctx context.Context, stmt model.RawStatement) (model.StructuredRequirement, error) {
	p, err := s.prompts.Render(prompt.Structure, prompt.NewStructureData(stmt))
	if err != nil {
		return model.StructuredRequirement{}, err
	}

	resp, err := s.provider.Generate(ctx, llm.GenerateRequest{
		System: p.System,
		Prompt: p.User,
		Schema: schema,
		Accept: func(text string) error { _, err := decode(text); return err },
	})
	if err != nil {
		return model.StructuredRequirement{}, err
	}

	parsed, err := decode(resp.Text)
	if err != nil {
		return model.StructuredRequirement{}, &model.SchemaMismatchError{Stage: StageName, RecordID: stmt.RequirementID, Err: err}
	}

	s.logger.Debug("Structured requirement",
		zap.String("requirement_id", stmt.RequirementID),
		zap.String("model", resp.Model),
		zap.Int("tokens", resp.TokensUsed),
		zap.Bool("cached", resp.Cached),
	)

	return normalize(stmt, parsed, resp.Model), nil
}

// normalize applies defaults and membership checks to a decoded response
func normalize(stmt model.RawStatement, r response, modelName string) model.StructuredRequirement {
	req := model.StructuredRequirement{
		RequirementID:      stmt.RequirementID,
		StatementID:        stmt.ID,
		Statement:          stmt.Text,
		Source:             stmt.Source,
		Title:              strings.TrimSpace(string(r.Title)),
		Description:        strings.TrimSpace(string(r.Description)),
		Actors:             cleanList(r.Actors),
		AcceptanceCriteria: cleanList(r.AcceptanceCriteria),
		DataType:           strings.TrimSpace(string(r.DataType)),
		Dependencies:       cleanDependencies(r.Dependencies, stmt.RequirementID),
		Model:              modelName,
	}

	if req.Title == "" {
		req.Title = firstWords(stmt.Text, titleFallbackWords)
	}
	if req.Description == "" {
		req.Description = stmt.Text
	}

	raw := strings.TrimSpace(string(r.Priority))
	if p, ok := model.ParsePriority(raw); ok {
		req.Priority = p
	} else {
		req.Priority = model.DefaultPriority
		req.AddFlag(defaultedFlag("priority", raw))
	}

	raw = strings.TrimSpace(string(r.Severity))
	if sev, ok := model.ParseSeverity(raw); ok {
		req.Severity = sev
	} else {
		req.Severity = model.DefaultSeverity
		req.AddFlag(defaultedFlag("severity", raw))
	}

	return req
}

func decode(text string) (response, error) {
	parsed, err := llm.DecodeJSON[response](text)
	if err == nil && parsed.empty() {
		err = errors.New("no requirement fields in response")
	}
	return parsed, err
}

// defaultedFlag records the value a field was defaulted from
func defaultedFlag(field, raw string) string {
	if raw == "" {
		raw = "<missing>"
	}
	return fmt.Sprintf("%s_defaulted:%s", field, raw)
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// cleanDependencies drops blanks, self references and duplicates
func cleanDependencies(deps []string, self string) []string {
	seen := map[string]bool{self: true}
	var out []string
	for _, d := range deps {
		d = strings.ToUpper(strings.TrimSpace(d))
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}

func firstWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}
