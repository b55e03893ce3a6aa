package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/reqtrace/internal/categorize"
	"github.com/ppiankov/reqtrace/internal/coverage"
	"github.com/ppiankov/reqtrace/internal/enrich"
	"github.com/ppiankov/reqtrace/internal/extract"
	"github.com/ppiankov/reqtrace/internal/generate"
	"github.com/ppiankov/reqtrace/internal/model"
	"github.com/ppiankov/reqtrace/internal/pipeline"
	"github.com/ppiankov/reqtrace/internal/structure"
	"github.com/ppiankov/reqtrace/internal/validate"
)

var (
	runInputs       []string
	runOutput       string
	runRequirements string
	runValidation   string
	runMarkdown     bool
)

// defaultOutputs names the artifact a stage writes when --output is omitted
var defaultOutputs = map[string]string{
	extract.StageName:    pipeline.FileRequirements,
	structure.StageName:  pipeline.FileStructured,
	enrich.StageName:     pipeline.FileEnriched,
	categorize.StageName: pipeline.FileCategorized,
	generate.StageName:   pipeline.FileTestCases,
	validate.StageName:   pipeline.FileValidation,
	coverage.StageName:   pipeline.FileTraceability,
}

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <stage>",
	Short: "Run a single pipeline stage",
	Long: `Run one stage over its input artifact and write its output artifact.

Stages and their inputs:
  parse       document file, directory or http(s) URL (repeat --input for several)
  structure   requirements.json
  enrich      structured_requirements.json
  categorize  enriched_requirements.json
  generate    categorized_requirements.json (also writes <output>.gaps.json)
  validate    test_cases.json, with --requirements categorized_requirements.json
  coverage    test_cases.json, with --requirements and optional --validation

Example:
  reqtrace run parse --input policy.docx --output requirements.json
  reqtrace run structure -i requirements.json -o structured_requirements.json --provider openai
  reqtrace run coverage -i test_cases.json --requirements categorized_requirements.json --markdown`,
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: pipeline.Stages,
	RunE:      runStage,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringSliceVarP(&runInputs, "input", "i", nil, "input artifact, document, directory or URL")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "output artifact path (default: the stage's artifact name)")
	runCmd.Flags().StringVar(&runRequirements, "requirements", "", "requirements artifact (validate, coverage)")
	runCmd.Flags().StringVar(&runValidation, "validation", "", "validation results artifact (coverage, optional)")
	runCmd.Flags().BoolVar(&runMarkdown, "markdown", false, "also write a Markdown traceability matrix (coverage)")
	_ = runCmd.MarkFlagRequired("input")
}

func runStage(cmd *cobra.Command, args []string) error {
	stage := args[0]

	cfg, logger, err := settings()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := commandContext()
	defer cancel()

	p, err := pipeline.NewPipeline(cfg, logger)
	if err != nil {
		return err
	}

	output := runOutput
	if output == "" {
		output = defaultOutputs[stage]
	}

	if stage != extract.StageName && len(runInputs) != 1 {
		return fmt.Errorf("%s takes exactly one --input artifact", stage)
	}
	if (stage == validate.StageName || stage == coverage.StageName) && runRequirements == "" {
		return fmt.Errorf("%s requires --requirements", stage)
	}

	if cfg.Output.Verbose {
		fmt.Fprintf(os.Stderr, "Stage:  %s\n", stage)
		fmt.Fprintf(os.Stderr, "Input:  %s\n", strings.Join(runInputs, ", "))
		fmt.Fprintf(os.Stderr, "Output: %s\n\n", output)
	}

	var (
		stats  model.StageStats
		report *model.CoverageReport
	)

	switch stage {
	case extract.StageName:
		stats, err = p.Parse(ctx, runInputs, output)
	case structure.StageName:
		stats, err = p.Structure(ctx, runInputs[0], output)
	case enrich.StageName:
		stats, err = p.Enrich(ctx, runInputs[0], output)
	case categorize.StageName:
		stats, err = p.Categorize(ctx, runInputs[0], output)
	case generate.StageName:
		stats, err = p.Generate(ctx, runInputs[0], output)
	case validate.StageName:
		stats, err = p.Validate(ctx, runInputs[0], runRequirements, output)
	case coverage.StageName:
		markdownPath := ""
		if runMarkdown {
			markdownPath = strings.TrimSuffix(output, filepath.Ext(output)) + ".md"
		}
		var r model.CoverageReport
		r, stats, err = p.Coverage(ctx, runInputs[0], runRequirements, runValidation, output, markdownPath)
		report = &r
	}
	stats.Stage = stage

	pipeline.RenderSummary(os.Stderr, "Stage Complete", []model.StageStats{stats})
	if err != nil {
		return fmt.Errorf("%s failed: %w", stage, err)
	}
	if report != nil {
		pipeline.RenderCoverage(os.Stderr, *report)
	}

	fmt.Fprintf(os.Stderr, "✓ Wrote %s\n", output)

	if stats.Partial() && cfg.Output.FailOnPartial {
		return errPartial
	}
	return nil
}
