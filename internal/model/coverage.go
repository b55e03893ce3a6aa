package model

// CoverageRecord is one row of the traceability matrix
type CoverageRecord struct {
	RequirementID string        `json:"requirement_id"`
	Title         string        `json:"title,omitempty"`
	TestCaseIDs   []string      `json:"test_case_ids"`
	Count         int           `json:"count"`
	Covered       bool          `json:"covered"` // Count > 0
	Kinds         []VariantKind `json:"kinds"`
	MissingKinds  []VariantKind `json:"missing_kinds"`
	Flagged       int           `json:"flagged"` // Test cases with a negative relevance verdict
	Regulations   []string      `json:"regulations,omitempty"`
}

// CoverageReport is the traceability matrix plus its totals
type CoverageReport struct {
	TotalRequirements int              `json:"total_requirements"`
	TotalTestCases    int              `json:"total_test_cases"`
	Covered           int              `json:"covered"`
	Gaps              int              `json:"gaps"`
	GapIDs            []string         `json:"gap_ids"`
	Incomplete        int              `json:"incomplete"` // Covered but missing at least one kind
	FlaggedTestCases  int              `json:"flagged_test_cases"`
	CoveragePercent   float64          `json:"coverage_percent"`
	Records           []CoverageRecord `json:"records"`
}
