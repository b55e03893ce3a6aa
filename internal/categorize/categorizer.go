// Package categorize assigns each requirement one category and an embedding.
// The classification call and the embedding call run concurrently.
package categorize

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/reqtrace/internal/llm"
	"github.com/ppiankov/reqtrace/internal/model"
	"github.com/ppiankov/reqtrace/internal/prompt"
	"github.com/ppiankov/reqtrace/internal/vectorstore"
	"github.com/ppiankov/reqtrace/internal/worker"
)

// StageName is the pipeline name of this stage
const StageName = "categorize"

var schema = llm.SchemaHint{Name: "category", JSON: true}

type response struct {
	Category  model.FlexString `json:"category"`
	Rationale model.FlexString `json:"rationale"`
}

// Options configures a Categorizer
type Options struct {
	Provider   llm.Provider
	Embedder   llm.Embedder      // nil skips embeddings
	Store      vectorstore.Store // nil skips persistence
	Prompts    *prompt.Set
	Dimensions int // expected embedding length, 0 = accept any
	Workers    int
	Logger     *zap.Logger
}

// Categorizer classifies and embeds enriched requirements
type Categorizer struct {
	opts Options
}

// New creates a categorizer
func New(opts Options) *Categorizer {
	if opts.Prompts == nil {
		opts.Prompts = prompt.MustDefault()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Categorizer{opts: opts}
}

// EmbeddingError reports a requirement that was classified but could not be
// embedded or stored. Categorize returns the classified requirement with it.
type EmbeddingError struct {
	RequirementID string
	Err           error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embed %s: %v", e.RequirementID, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// embeddingFailedPrefix marks requirements that carry no embedding because
// the embedding call or the vector store failed
const embeddingFailedPrefix = "embedding_failed:"

// Run categorizes every requirement, keeping input order. A record whose
// classification fails is left out of the output; a record whose embedding
// fails is kept with an embedding_failed flag. Both count against the stats.
func (c *Categorizer) Run(ctx context.Context, reqs []model.EnrichedRequirement) ([]model.EnrichedRequirement, model.StageStats, error) {
	stats := model.NewStageStats(StageName, len(reqs))
	if c.opts.Provider == nil {
		return nil, stats, errors.New("categorize: no LLM provider configured")
	}

	outcomes := worker.Map(ctx, c.opts.Workers, reqs, c.Categorize)
	if err := ctx.Err(); err != nil {
		return nil, stats, err
	}

	out := make([]model.EnrichedRequirement, 0, len(reqs))
	for i, o := range outcomes {
		id := reqs[i].RequirementID
		stats.Record(id, o.Err)

		var embedErr *EmbeddingError
		switch {
		case o.Err == nil:
			out = append(out, o.Value)
		case errors.As(o.Err, &embedErr):
			c.opts.Logger.Warn("Requirement categorized without embedding",
				zap.String("requirement_id", id),
				zap.Error(embedErr.Err),
			)
			out = append(out, o.Value)
		default:
			c.opts.Logger.Warn("Requirement not categorized",
				zap.String("requirement_id", id),
				zap.Error(o.Err),
			)
		}
	}

	return out, stats, nil
}

// Categorize classifies and embeds one requirement. Fields already set by
// an earlier run are kept.
func (c *Categorizer) Categorize(ctx context.Context, req model.EnrichedRequirement) (model.EnrichedRequirement, error) {
	var (
		category  model.Category
		rationale string
		flag      string
		vector    []float32
		embedErr  error
	)

	g, gctx := errgroup.WithContext(ctx)

	if req.Category == "" {
		g.Go(func() error {
			var err error
			category, rationale, flag, err = c.classify(gctx, req)
			return err
		})
	}

	// An embedding failure must not cancel the classification call
	if c.opts.Embedder != nil && len(req.Embedding) == 0 {
		g.Go(func() error {
			vector, embedErr = c.embed(gctx, req)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return model.EnrichedRequirement{}, err
	}

	if category != "" {
		req.Category = category
		req.CategoryRationale = rationale
		if flag != "" {
			req.AddFlag(flag)
		}
	}
	if vector != nil {
		req.Embedding = vector
		req.EmbeddingModel = c.opts.Embedder.Model()
	}

	if embedErr == nil && c.opts.Store != nil && len(req.Embedding) > 0 {
		if err := c.opts.Store.Upsert(ctx, req.RequirementID, req.Embedding); err != nil {
			embedErr = fmt.Errorf("store embedding: %w", err)
		}
	}

	if embedErr != nil {
		req.AddFlag(embeddingFailedPrefix + failureReason(embedErr))
		return req, &EmbeddingError{RequirementID: req.RequirementID, Err: embedErr}
	}
	req.Flags = dropFlags(req.Flags, embeddingFailedPrefix)

	c.opts.Logger.Debug("Categorized requirement",
		zap.String("requirement_id", req.RequirementID),
		zap.String("category", string(req.Category)),
		zap.Int("embedding_dims", len(req.Embedding)),
	)

	return req, nil
}

func (c *Categorizer) classify(ctx context.Context, req model.EnrichedRequirement) (model.Category, string, string, error) {
	p, err := c.opts.Prompts.Render(prompt.Categorize, prompt.CategorizeData{
		Requirement: req,
		Categories:  model.Categories,
	})
	if err != nil {
		return "", "", "", err
	}

	resp, err := c.opts.Provider.Generate(ctx, llm.GenerateRequest{
		System: p.System,
		Prompt: p.User,
		Schema: schema,
		Accept: func(text string) error { _, err := llm.DecodeJSON[response](text); return err },
	})
	if err != nil {
		return "", "", "", err
	}

	parsed, err := llm.DecodeJSON[response](resp.Text)
	if err != nil {
		return "", "", "", &model.SchemaMismatchError{Stage: StageName, RecordID: req.RequirementID, Err: err}
	}

	raw := strings.TrimSpace(string(parsed.Category))
	rationale := strings.TrimSpace(string(parsed.Rationale))
	if cat, ok := model.ParseCategory(raw); ok {
		return cat, rationale, "", nil
	}
	return model.CategoryFunctional, rationale, "category_defaulted:" + raw, nil
}

func (c *Categorizer) embed(ctx context.Context, req model.EnrichedRequirement) ([]float32, error) {
	vector, err := c.opts.Embedder.Embed(ctx, req.SearchText())
	if err != nil {
		return nil, err
	}
	if len(vector) == 0 {
		return nil, &model.SchemaMismatchError{Stage: StageName, RecordID: req.RequirementID, Err: errors.New("empty embedding")}
	}
	if c.opts.Dimensions > 0 && len(vector) != c.opts.Dimensions {
		return nil, &model.SchemaMismatchError{
			Stage:    StageName,
			RecordID: req.RequirementID,
			Err:      fmt.Errorf("embedding has %d dimensions, want %d", len(vector), c.opts.Dimensions),
		}
	}
	return vector, nil
}

// failureReason condenses an embedding error into a flag value
func failureReason(err error) string {
	switch {
	case model.IsSchemaMismatch(err):
		return "schema_mismatch"
	case model.IsPermanent(err):
		return "permanent"
	case model.IsTransient(err):
		return "transient"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case strings.HasPrefix(err.Error(), "store embedding"):
		return "store"
	}
	return "error"
}

// dropFlags removes the flags starting with prefix. It returns nil when no
// flag is left, keeping the field omitted from artifacts.
func dropFlags(flags []string, prefix string) []string {
	var kept []string
	for _, f := range flags {
		if !strings.HasPrefix(f, prefix) {
			kept = append(kept, f)
		}
	}
	return kept
}
