// Package coverage builds the traceability matrix: which test cases trace to
// which requirement, which variant kinds are missing and how many cases the
// validator flagged.
package coverage

import (
	"fmt"
	"math"

	"github.com/ppiankov/reqtrace/internal/model"
)

// StageName is the pipeline name of this stage
const StageName = "coverage"

// Coverage status labels used in the rendered matrix
const (
	StatusCovered    = "Covered"
	StatusIncomplete = "Incomplete"
	StatusMissing    = "Missing"
)

// Accountant aggregates test cases per requirement. It makes no model calls.
type Accountant struct{}

// NewAccountant creates a new accountant
func NewAccountant() *Accountant {
	return &Accountant{}
}

// Calculate builds the coverage report. Records follow requirement order and
// test case ids within a record follow test case order. Validation results
// for test cases not in cases are ignored.
func (a *Accountant) Calculate(reqs []model.EnrichedRequirement, cases []model.TestCase, validation []model.ValidationResult) (model.CoverageReport, error) {
	index := make(map[string]int, len(reqs))
	records := make([]model.CoverageRecord, len(reqs))

	for i, r := range reqs {
		if _, dup := index[r.RequirementID]; dup {
			return model.CoverageReport{}, &model.AggregationError{
				Reason: fmt.Sprintf("duplicate requirement id %q", r.RequirementID),
			}
		}
		index[r.RequirementID] = i
		records[i] = model.CoverageRecord{
			RequirementID: r.RequirementID,
			Title:         r.Title,
			TestCaseIDs:   []string{},
			Kinds:         []model.VariantKind{},
			MissingKinds:  []model.VariantKind{},
			Regulations:   r.Regulations,
		}
	}

	owner := make(map[string]int, len(cases))
	kinds := make([]map[model.VariantKind]bool, len(reqs))

	for _, tc := range cases {
		i, ok := index[tc.RequirementID]
		if !ok {
			return model.CoverageReport{}, &model.AggregationError{
				Reason: fmt.Sprintf("test case %s references unknown requirement %q", tc.TestID, tc.RequirementID),
			}
		}
		rec := &records[i]
		rec.TestCaseIDs = append(rec.TestCaseIDs, tc.TestID)
		rec.Count++
		if kinds[i] == nil {
			kinds[i] = make(map[model.VariantKind]bool, len(model.VariantKinds))
		}
		kinds[i][tc.Kind] = true
		owner[tc.TestID] = i
	}

	report := model.CoverageReport{
		TotalRequirements: len(reqs),
		TotalTestCases:    len(cases),
		GapIDs:            []string{},
		Records:           records,
	}

	for _, v := range validation {
		if v.Relevant {
			continue
		}
		i, ok := owner[v.TestID]
		if !ok {
			continue
		}
		records[i].Flagged++
		report.FlaggedTestCases++
	}

	for i := range records {
		rec := &records[i]
		rec.Covered = rec.Count > 0
		for _, k := range model.VariantKinds {
			if kinds[i][k] {
				rec.Kinds = append(rec.Kinds, k)
			} else {
				rec.MissingKinds = append(rec.MissingKinds, k)
			}
		}

		switch {
		case !rec.Covered:
			report.Gaps++
			report.GapIDs = append(report.GapIDs, rec.RequirementID)
		case len(rec.MissingKinds) > 0:
			report.Covered++
			report.Incomplete++
		default:
			report.Covered++
		}
	}

	report.CoveragePercent = percent(report.Covered, report.TotalRequirements)

	return report, nil
}

// Status labels a record for display
func Status(rec model.CoverageRecord) string {
	switch {
	case !rec.Covered:
		return StatusMissing
	case len(rec.MissingKinds) > 0:
		return StatusIncomplete
	}
	return StatusCovered
}

// percent is part/total*100 rounded to two decimals; 0 when total is 0
func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*10000) / 100
}
