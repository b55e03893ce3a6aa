package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/reqtrace/internal/artifact"
	"github.com/ppiankov/reqtrace/internal/model"
	"github.com/ppiankov/reqtrace/internal/pipeline"
)

var (
	pipelineInputs    []string
	pipelineOutputDir string
	pipelineMarkdown  bool
)

// pipelineCmd represents the pipeline command
var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run every stage from documents to the traceability matrix",
	Long: `Pipeline runs parse, structure, enrich, categorize, generate, validate and
coverage in order, writing each artifact under --output-dir with its default
name plus run_summary.json.

Example:
  reqtrace pipeline --input policy.docx --output-dir ./out --provider openai
  reqtrace pipeline --input ./docs --input https://example.com/policy.html --markdown`,
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(pipelineCmd)

	pipelineCmd.Flags().StringSliceVarP(&pipelineInputs, "input", "i", nil, "document file, directory or URL (repeatable)")
	pipelineCmd.Flags().StringVarP(&pipelineOutputDir, "output-dir", "o", "./reqtrace-out", "output directory for artifacts")
	pipelineCmd.Flags().BoolVar(&pipelineMarkdown, "markdown", false, "also write traceability_matrix.md")
	_ = pipelineCmd.MarkFlagRequired("input")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg, logger, err := settings()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := commandContext()
	defer cancel()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  reqtrace Pipeline\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Inputs:       %s\n", strings.Join(pipelineInputs, ", "))
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", pipelineOutputDir)
	fmt.Fprintf(os.Stderr, "  LLM:          %s/%s\n", orNone(cfg.LLM.Provider), orNone(cfg.LLM.Model))
	fmt.Fprintf(os.Stderr, "  Embeddings:   %s\n", orNone(cfg.Embedding.Provider))
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", cfg.Concurrency.Workers)
	fmt.Fprintf(os.Stderr, "  Cache:        %v\n", cfg.Cache.Enabled)
	fmt.Fprintf(os.Stderr, "\n")

	p, err := pipeline.NewPipeline(cfg, logger)
	if err != nil {
		return err
	}

	summary, runErr := p.RunAll(ctx, pipelineInputs, pipelineOutputDir, pipelineMarkdown)
	pipeline.RenderSummary(os.Stderr, "Pipeline Complete", summary.Stages)
	if runErr != nil {
		return runErr
	}

	report, err := artifact.ReadJSON[model.CoverageReport](filepath.Join(pipelineOutputDir, pipeline.FileTraceability))
	if err == nil {
		pipeline.RenderCoverage(os.Stderr, report)
	}
	fmt.Fprintf(os.Stderr, "  Run:     %s\n", summary.RunID)
	fmt.Fprintf(os.Stderr, "  Output:  %s\n\n", pipelineOutputDir)

	if summary.Partial() && cfg.Output.FailOnPartial {
		return errPartial
	}
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
