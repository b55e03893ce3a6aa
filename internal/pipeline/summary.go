package pipeline

import (
	"fmt"
	"io"

	"github.com/ppiankov/reqtrace/internal/model"
)

const rule = "═══════════════════════════════════════════════════════════"

// RenderSummary prints per-stage record counts for humans
func RenderSummary(w io.Writer, title string, stages []model.StageStats) {
	_, _ = fmt.Fprintf(w, "\n%s\n  %s\n%s\n\n", rule, title, rule)
	_, _ = fmt.Fprintf(w, "  %-12s %8s %10s %8s %8s\n", "Stage", "Total", "Succeeded", "Skipped", "Failed")

	for _, s := range stages {
		_, _ = fmt.Fprintf(w, "  %-12s %8d %10d %8d %8d\n", s.Stage, s.Total, s.Succeeded, s.Skipped, s.Failed)
	}
	_, _ = fmt.Fprintln(w)

	for _, s := range stages {
		for _, e := range s.Errors {
			_, _ = fmt.Fprintf(w, "  ✗ %s %s (%s): %s\n", s.Stage, e.RecordID, e.Outcome, e.Error)
		}
	}
}

// RenderCoverage prints the headline numbers of a coverage report
func RenderCoverage(w io.Writer, report model.CoverageReport) {
	_, _ = fmt.Fprintf(w, "  Requirements:  %d\n", report.TotalRequirements)
	_, _ = fmt.Fprintf(w, "  Test cases:    %d\n", report.TotalTestCases)
	_, _ = fmt.Fprintf(w, "  Covered:       %d (%.2f%%)\n", report.Covered, report.CoveragePercent)
	_, _ = fmt.Fprintf(w, "  Incomplete:    %d\n", report.Incomplete)
	_, _ = fmt.Fprintf(w, "  Gaps:          %d\n", report.Gaps)
	_, _ = fmt.Fprintf(w, "  Flagged:       %d\n", report.FlaggedTestCases)
	_, _ = fmt.Fprintln(w)
}
