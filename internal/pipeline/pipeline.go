// Package pipeline runs the stages over JSON artifacts: each stage reads the
// previous artifact, runs, and atomically writes its own.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ppiankov/reqtrace/internal/artifact"
	"github.com/ppiankov/reqtrace/internal/cache"
	"github.com/ppiankov/reqtrace/internal/categorize"
	"github.com/ppiankov/reqtrace/internal/coverage"
	"github.com/ppiankov/reqtrace/internal/enrich"
	"github.com/ppiankov/reqtrace/internal/extract"
	"github.com/ppiankov/reqtrace/internal/generate"
	"github.com/ppiankov/reqtrace/internal/llm"
	"github.com/ppiankov/reqtrace/internal/model"
	"github.com/ppiankov/reqtrace/internal/prompt"
	"github.com/ppiankov/reqtrace/internal/regulation"
	"github.com/ppiankov/reqtrace/internal/structure"
	"github.com/ppiankov/reqtrace/internal/validate"
	"github.com/ppiankov/reqtrace/internal/vectorstore"
	"github.com/ppiankov/reqtrace/internal/worker"
)

// Default artifact names used by RunAll
const (
	FileRequirements   = "requirements.json"
	FileStructured     = "structured_requirements.json"
	FileEnriched       = "enriched_requirements.json"
	FileCategorized    = "categorized_requirements.json"
	FileTestCases      = "test_cases.json"
	FileValidation     = "validation_results.json"
	FileTraceability   = "traceability_matrix.json"
	FileTraceabilityMD = "traceability_matrix.md"
	FileRunSummary     = "run_summary.json"
	gapsSuffix         = "gaps"
)

// Stages lists the stage names in execution order
var Stages = []string{
	extract.StageName,
	structure.StageName,
	enrich.StageName,
	categorize.StageName,
	generate.StageName,
	validate.StageName,
	coverage.StageName,
}

// Pipeline holds what the stages share: config, prompts, the regulation
// catalog and the wrapped model clients
type Pipeline struct {
	config  *model.Config
	logger  *zap.Logger
	prompts *prompt.Set
	catalog *regulation.Catalog

	limiter  *worker.Limiter
	cache    cache.Cache
	provider llm.Provider
	embedder llm.Embedder

	// Overridable in tests
	newProvider func(ctx context.Context, cfg llm.Config) (llm.Provider, error)
	newEmbedder func(ctx context.Context, cfg llm.Config) (llm.Embedder, error)
	now         func() time.Time
}

// NewPipeline creates a new pipeline with the given configuration. Model
// clients are created on first use so that deterministic stages run without
// credentials.
func NewPipeline(cfg *model.Config, logger *zap.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	prompts, err := prompt.NewSet(cfg.Prompts)
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}

	catalog := regulation.Default()
	if cfg.Enrichment.RegulationsFile != "" {
		catalog, err = regulation.Load(cfg.Enrichment.RegulationsFile)
		if err != nil {
			return nil, fmt.Errorf("load regulation catalog: %w", err)
		}
	}

	p := &Pipeline{
		config:      cfg,
		logger:      logger,
		prompts:     prompts,
		catalog:     catalog,
		limiter:     worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize),
		newProvider: llm.NewProvider,
		newEmbedder: llm.NewEmbedder,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for name, rps := range cfg.RateLimiting.Providers {
		p.limiter.SetRate(name, rps, cfg.RateLimiting.BurstSize)
	}
	if cfg.Cache.Enabled {
		p.cache = cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL)
	}

	return p, nil
}

// Catalog returns the regulation catalog in use
func (p *Pipeline) Catalog() *regulation.Catalog {
	return p.catalog
}

func (p *Pipeline) middleware(scope string) llm.Middleware {
	return llm.Middleware{
		Limiter:    p.limiter,
		Retry:      llm.RetryPolicyFromModel(p.config.Retry),
		Cache:      p.cache,
		Logger:     p.logger,
		CacheScope: scope,
	}
}

// llmProvider builds the wrapped generation provider once
func (p *Pipeline) llmProvider(ctx context.Context) (llm.Provider, error) {
	if p.provider != nil {
		return p.provider, nil
	}

	base, err := p.newProvider(ctx, llm.ConfigFromModel(*p.config))
	if err != nil {
		return nil, fmt.Errorf("create LLM provider: %w", err)
	}
	if base == nil {
		return nil, errors.New("no LLM provider configured (set llm.provider or --provider)")
	}

	p.provider = llm.WrapProvider(base, p.middleware(p.config.LLM.Model))
	p.logger.Debug("LLM provider ready",
		zap.String("provider", base.Name()),
		zap.String("model", p.config.LLM.Model),
	)
	return p.provider, nil
}

// llmEmbedder builds the wrapped embedder once
func (p *Pipeline) llmEmbedder(ctx context.Context) (llm.Embedder, error) {
	if p.embedder != nil {
		return p.embedder, nil
	}

	base, err := p.newEmbedder(ctx, llm.EmbeddingConfigFromModel(*p.config))
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	p.embedder = llm.WrapEmbedder(base, p.middleware(base.Model()))
	return p.embedder, nil
}

// Parse extracts requirement statements from inputs into output
func (p *Pipeline) Parse(ctx context.Context, inputs []string, output string) (model.StageStats, error) {
	fetcher := extract.NewFetcherFromConfig(p.config.Fetch,
		worker.NewLimiter(p.config.RateLimiting.RequestsPerSecond, p.config.RateLimiting.BurstSize))
	parser := extract.NewParser(fetcher, p.logger)

	stmts, stats, err := parser.Parse(ctx, inputs...)
	if err != nil {
		return stats, err
	}
	return stats, p.write(output, stmts)
}

// Structure maps raw statements to structured requirements
func (p *Pipeline) Structure(ctx context.Context, input, output string) (model.StageStats, error) {
	stmts, err := artifact.ReadJSON[[]model.RawStatement](input)
	if err != nil {
		return model.NewStageStats(structure.StageName, 0), err
	}

	provider, err := p.llmProvider(ctx)
	if err != nil {
		return model.NewStageStats(structure.StageName, len(stmts)), err
	}

	reqs, stats, err := structure.New(provider, p.prompts, p.config.Concurrency.Workers, p.logger).Run(ctx, stmts)
	if err != nil {
		return stats, err
	}
	return stats, p.write(output, reqs)
}

// Enrich tags regulations and normalizes actors and actions. The input may be
// structured or already enriched requirements.
func (p *Pipeline) Enrich(ctx context.Context, input, output string) (model.StageStats, error) {
	reqs, err := readRequirements(input)
	if err != nil {
		return model.NewStageStats(enrich.StageName, 0), err
	}

	e, err := enrich.New(p.catalog, p.config.Enrichment, p.logger)
	if err != nil {
		return model.NewStageStats(enrich.StageName, len(reqs)), err
	}

	out, stats, err := e.Run(ctx, reqs)
	if err != nil {
		return stats, err
	}
	return stats, p.write(output, out)
}

// Categorize classifies and embeds requirements, upserting vectors into the
// vector store when it is enabled
func (p *Pipeline) Categorize(ctx context.Context, input, output string) (stats model.StageStats, err error) {
	reqs, err := artifact.ReadJSON[[]model.EnrichedRequirement](input)
	if err != nil {
		return model.NewStageStats(categorize.StageName, 0), err
	}
	stats = model.NewStageStats(categorize.StageName, len(reqs))

	provider, err := p.llmProvider(ctx)
	if err != nil {
		return stats, err
	}
	embedder, err := p.llmEmbedder(ctx)
	if err != nil {
		return stats, err
	}

	var store vectorstore.Store
	if p.config.VectorStore.Enabled {
		store, err = vectorstore.Open(p.config.VectorStore)
		if err != nil {
			return stats, fmt.Errorf("open vector store: %w", err)
		}
		defer func() {
			if closeErr := store.Close(); closeErr != nil && err == nil {
				err = fmt.Errorf("close vector store: %w", closeErr)
			}
		}()
	}

	c := categorize.New(categorize.Options{
		Provider:   provider,
		Embedder:   embedder,
		Store:      store,
		Prompts:    p.prompts,
		Dimensions: p.config.Embedding.Dimensions,
		Workers:    p.config.Concurrency.Workers,
		Logger:     p.logger,
	})

	out, stats, err := c.Run(ctx, reqs)
	if err != nil {
		return stats, err
	}
	return stats, p.write(output, out)
}

// Generate writes test cases to output and generation gaps to its sidecar
func (p *Pipeline) Generate(ctx context.Context, input, output string) (model.StageStats, error) {
	reqs, err := artifact.ReadJSON[[]model.EnrichedRequirement](input)
	if err != nil {
		return model.NewStageStats(generate.StageName, 0), err
	}

	provider, err := p.llmProvider(ctx)
	if err != nil {
		return model.NewStageStats(generate.StageName, len(reqs)), err
	}

	g := generate.New(generate.Options{
		Provider:    provider,
		Prompts:     p.prompts,
		MaxAttempts: p.config.Generation.MaxAttempts,
		Workers:     p.config.Concurrency.Workers,
		Logger:      p.logger,
		Now:         p.now,
	})

	cases, gaps, stats, err := g.Run(ctx, reqs)
	if err != nil {
		return stats, err
	}
	if err := p.write(output, cases); err != nil {
		return stats, err
	}
	return stats, p.write(artifact.SidecarPath(output, gapsSuffix), gaps)
}

// Validate asks the model whether each test case exercises its requirement
func (p *Pipeline) Validate(ctx context.Context, casesPath, reqsPath, output string) (model.StageStats, error) {
	cases, err := artifact.ReadJSON[[]model.TestCase](casesPath)
	if err != nil {
		return model.NewStageStats(validate.StageName, 0), err
	}
	reqs, err := artifact.ReadJSON[[]model.EnrichedRequirement](reqsPath)
	if err != nil {
		return model.NewStageStats(validate.StageName, len(cases)), err
	}

	provider, err := p.llmProvider(ctx)
	if err != nil {
		return model.NewStageStats(validate.StageName, len(cases)), err
	}

	results, stats, err := validate.NewValidator(provider, p.prompts, p.config.Concurrency.Workers, p.logger).Run(ctx, cases, reqs)
	if err != nil {
		return stats, err
	}
	return stats, p.write(output, results)
}

// Coverage builds the traceability matrix. validationPath and markdownPath
// are optional.
func (p *Pipeline) Coverage(ctx context.Context, casesPath, reqsPath, validationPath, output, markdownPath string) (model.CoverageReport, model.StageStats, error) {
	stats := model.NewStageStats(coverage.StageName, 0)

	cases, err := artifact.ReadJSON[[]model.TestCase](casesPath)
	if err != nil {
		return model.CoverageReport{}, stats, err
	}
	reqs, err := readRequirements(reqsPath)
	if err != nil {
		return model.CoverageReport{}, stats, err
	}
	stats.Total = len(reqs)

	var validation []model.ValidationResult
	if validationPath != "" {
		validation, err = artifact.ReadJSON[[]model.ValidationResult](validationPath)
		if err != nil {
			return model.CoverageReport{}, stats, err
		}
	}

	if err := ctx.Err(); err != nil {
		return model.CoverageReport{}, stats, err
	}

	report, err := coverage.NewAccountant().Calculate(reqs, cases, validation)
	if err != nil {
		return model.CoverageReport{}, stats, err
	}
	stats.Succeeded = len(reqs)

	if err := p.write(output, report); err != nil {
		return report, stats, err
	}
	if markdownPath != "" {
		if err := writeMarkdown(markdownPath, report); err != nil {
			return report, stats, err
		}
	}

	p.logger.Info("Coverage computed",
		zap.Int("requirements", report.TotalRequirements),
		zap.Int("test_cases", report.TotalTestCases),
		zap.Int("gaps", report.Gaps),
		zap.Float64("coverage_percent", report.CoveragePercent),
	)

	return report, stats, nil
}

// RunAll runs every stage in order, writing default-named artifacts to
// outDir. It stops at the first stage-level error; the summary covers the
// stages that ran.
func (p *Pipeline) RunAll(ctx context.Context, inputs []string, outDir string, markdown bool) (model.RunSummary, error) {
	summary := model.RunSummary{
		RunID:     uuid.NewString(),
		Inputs:    inputs,
		StartedAt: p.now(),
	}
	path := func(name string) string { return filepath.Join(outDir, name) }

	logger := p.logger.With(zap.String("run_id", summary.RunID))
	steps := []struct {
		name string
		run  func() (model.StageStats, error)
	}{
		{extract.StageName, func() (model.StageStats, error) {
			return p.Parse(ctx, inputs, path(FileRequirements))
		}},
		{structure.StageName, func() (model.StageStats, error) {
			return p.Structure(ctx, path(FileRequirements), path(FileStructured))
		}},
		{enrich.StageName, func() (model.StageStats, error) {
			return p.Enrich(ctx, path(FileStructured), path(FileEnriched))
		}},
		{categorize.StageName, func() (model.StageStats, error) {
			return p.Categorize(ctx, path(FileEnriched), path(FileCategorized))
		}},
		{generate.StageName, func() (model.StageStats, error) {
			return p.Generate(ctx, path(FileCategorized), path(FileTestCases))
		}},
		{validate.StageName, func() (model.StageStats, error) {
			return p.Validate(ctx, path(FileTestCases), path(FileCategorized), path(FileValidation))
		}},
		{coverage.StageName, func() (model.StageStats, error) {
			md := ""
			if markdown {
				md = path(FileTraceabilityMD)
			}
			_, stats, err := p.Coverage(ctx, path(FileTestCases), path(FileCategorized), path(FileValidation), path(FileTraceability), md)
			return stats, err
		}},
	}

	for _, step := range steps {
		logger.Info("Stage started", zap.String("stage", step.name))
		started := time.Now()

		stats, err := step.run()
		stats.Stage = step.name
		summary.Stages = append(summary.Stages, stats)

		if err != nil {
			summary.FinishedAt = p.now()
			return summary, fmt.Errorf("%s: %w", step.name, err)
		}

		logger.Info("Stage finished",
			zap.String("stage", step.name),
			zap.Int("succeeded", stats.Succeeded),
			zap.Int("skipped", stats.Skipped),
			zap.Int("failed", stats.Failed),
			zap.Duration("elapsed", time.Since(started)),
		)
	}

	summary.FinishedAt = p.now()
	p.logCacheStats(logger)
	if err := p.write(path(FileRunSummary), summary); err != nil {
		return summary, err
	}
	return summary, nil
}

func (p *Pipeline) logCacheStats(logger *zap.Logger) {
	lc, ok := p.cache.(*cache.LayeredCache)
	if !ok {
		return
	}
	stats := lc.Stats()
	logger.Info("Model cache",
		zap.Int64("memory_hits", stats.MemoryHits),
		zap.Int64("disk_hits", stats.DiskHits),
		zap.Int64("misses", stats.Misses),
	)
}

func (p *Pipeline) write(path string, v any) error {
	if err := artifact.WriteJSON(path, v); err != nil {
		return err
	}
	p.logger.Debug("Wrote artifact", zap.String("path", path))
	return nil
}
