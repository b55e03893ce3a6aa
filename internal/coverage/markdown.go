package coverage

import (
	"fmt"
	"io"
	"strings"

	"github.com/ppiankov/reqtrace/internal/model"
)

// RenderMarkdown writes the report as a Markdown traceability matrix
func RenderMarkdown(w io.Writer, report model.CoverageReport) error {
	var b strings.Builder

	b.WriteString("# Traceability Matrix\n\n")
	b.WriteString("## Summary\n\n")
	fmt.Fprintf(&b, "- **Requirements:** %d\n", report.TotalRequirements)
	fmt.Fprintf(&b, "- **Test cases:** %d\n", report.TotalTestCases)
	fmt.Fprintf(&b, "- **Covered:** %d (%.2f%%)\n", report.Covered, report.CoveragePercent)
	fmt.Fprintf(&b, "- **Incomplete:** %d\n", report.Incomplete)
	fmt.Fprintf(&b, "- **Gaps:** %d\n", report.Gaps)
	fmt.Fprintf(&b, "- **Flagged test cases:** %d\n", report.FlaggedTestCases)

	if len(report.GapIDs) > 0 {
		fmt.Fprintf(&b, "\nRequirements without test cases: %s\n", strings.Join(report.GapIDs, ", "))
	}

	b.WriteString("\n## Requirements\n\n")
	b.WriteString("| Requirement | Title | Status | Test Cases | Missing Kinds | Flagged | Regulations |\n")
	b.WriteString("|---|---|---|---|---|---|---|\n")

	for _, rec := range report.Records {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %d | %s |\n",
			cell(rec.RequirementID),
			cell(rec.Title),
			Status(rec),
			orDash(strings.Join(rec.TestCaseIDs, ", ")),
			orDash(joinKinds(rec.MissingKinds)),
			rec.Flagged,
			orDash(cell(strings.Join(rec.Regulations, ", "))),
		)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// cell keeps free text from breaking the table row
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func joinKinds(kinds []model.VariantKind) string {
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = string(k)
	}
	return strings.Join(parts, ", ")
}
