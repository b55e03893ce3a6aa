package model

import "time"

// RecordError describes why a single record did not make it through a stage
type RecordError struct {
	RecordID string `json:"record_id"`
	Outcome  string `json:"outcome"` // "skipped" or "failed"
	Error    string `json:"error"`
}

// StageStats counts record outcomes for one stage run
type StageStats struct {
	Stage     string        `json:"stage"`
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Errors    []RecordError `json:"errors,omitempty"`
}

// NewStageStats starts counting for a stage over total records
func NewStageStats(stage string, total int) StageStats {
	return StageStats{Stage: stage, Total: total}
}

// Record classifies err for recordID: nil counts as success, permanent and
// schema errors as skipped, anything else as failed.
func (s *StageStats) Record(recordID string, err error) {
	switch {
	case err == nil:
		s.Succeeded++
	case IsPermanent(err) || IsSchemaMismatch(err):
		s.Skipped++
		s.Errors = append(s.Errors, RecordError{RecordID: recordID, Outcome: "skipped", Error: err.Error()})
	default:
		s.Failed++
		s.Errors = append(s.Errors, RecordError{RecordID: recordID, Outcome: "failed", Error: err.Error()})
	}
}

// Partial reports whether some records were skipped or failed
func (s StageStats) Partial() bool {
	return s.Skipped > 0 || s.Failed > 0
}

// RunSummary is written next to the artifacts of a full pipeline run
type RunSummary struct {
	RunID      string       `json:"run_id"`
	Inputs     []string     `json:"inputs"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Stages     []StageStats `json:"stages"`
}

// Partial reports whether any stage had skipped or failed records
func (s RunSummary) Partial() bool {
	for _, st := range s.Stages {
		if st.Partial() {
			return true
		}
	}
	return false
}
