package artifact

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ppiankov/reqtrace/internal/model"
)

func TestRoundTrip_EnrichedRequirements(t *testing.T) {
	path := filepath.Join(t.TempDir(), "enriched_requirements.json")

	want := []model.EnrichedRequirement{
		{
			StructuredRequirement: model.StructuredRequirement{
				RequirementID:      "REQ-001",
				StatementID:        "6f1c2b1e-8d0a-4b52-9a51-0c7f1c7e3a10",
				Statement:          "The system shall encrypt PHI at rest.",
				Title:              "Encrypt PHI at rest",
				Description:        "Protected health information must be encrypted when stored.",
				Priority:           model.PriorityHigh,
				Severity:           model.SeverityCritical,
				Actors:             []string{"system"},
				AcceptanceCriteria: []string{"AES-256 is used for stored PHI"},
			},
			Regulations:       []string{"HIPAA"},
			NormalizedActors:  []string{"system"},
			NormalizedActions: []string{"encrypt"},
			Category:          model.CategorySecurity,
			Embedding:         []float32{0.25, -0.5, 1},
			EmbeddingModel:    "hash-256",
		},
	}

	if err := WriteJSON(path, want); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	got, err := ReadJSON[[]model.EnrichedRequirement](path)
	if err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRoundTrip_TestCases(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test_cases.json")
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	want := []model.TestCase{
		{
			TestID:          model.TestCaseID("REQ-001", model.VariantPositive),
			RequirementID:   "REQ-001",
			Kind:            model.VariantPositive,
			Title:           "Stored PHI is encrypted",
			Preconditions:   []string{"Database is empty"},
			Steps:           []string{"Store a patient record", "Inspect the raw table"},
			TestData:        map[string]any{"patient_id": "P-1", "retries": float64(3)},
			ExpectedResult:  "Ciphertext only",
			Priority:        model.PriorityHigh,
			Severity:        model.SeverityCritical,
			Type:            model.CategorySecurity,
			ComplianceTag:   "HIPAA",
			ExecutionStatus: model.ExecutionStatusNotExecuted,
			Owner:           model.DefaultOwner,
			CreatedAt:       created,
		},
	}

	if err := WriteJSON(path, want); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	got, err := ReadJSON[[]model.TestCase](path)
	if err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteJSON_Format(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.json")

	if err := WriteJSON(path, map[string]string{"a": "<b>"}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(data), "{\n  \"a\": \"<b>\"\n}\n"; got != want {
		t.Errorf("unexpected encoding:\n%q\nwant\n%q", got, want)
	}
}

func TestWriteJSON_ReplacesAndLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")

	if err := WriteJSON(path, []int{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	if err := WriteJSON(path, []int{4}); err != nil {
		t.Fatal(err)
	}

	got, err := ReadJSON[[]int](path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{4}, got); diff != "" {
		t.Errorf("artifact not replaced (-want +got):\n%s", diff)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestReadJSON_Errors(t *testing.T) {
	if _, err := ReadJSON[[]int](filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadJSON[[]int](bad); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestSidecarPath(t *testing.T) {
	tests := map[string]string{
		"out/test_cases.json": "out/test_cases.gaps.json",
		"test_cases":          "test_cases.gaps.json",
	}
	for in, want := range tests {
		if got := SidecarPath(in, "gaps"); got != want {
			t.Errorf("SidecarPath(%q) = %q, want %q", in, got, want)
		}
	}
}
