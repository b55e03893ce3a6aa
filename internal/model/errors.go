package model

import (
	"errors"
	"fmt"
)

// InputError reports an unreadable or unsupported source. Never retried.
type InputError struct {
	Source string
	Err    error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("input %s: %v", e.Source, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// TransientError is a model or store failure worth retrying (timeouts, 429, 5xx)
type TransientError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: transient error (%d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: transient error: %v", e.Provider, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError is a model failure that retrying cannot fix (bad request, auth, quota)
type PermanentError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *PermanentError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: permanent error (%d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: permanent error: %v", e.Provider, e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// SchemaMismatchError means a model response did not fit the expected structure
type SchemaMismatchError struct {
	Stage    string
	RecordID string
	Err      error
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("%s %s: response does not match schema: %v", e.Stage, e.RecordID, e.Err)
}

func (e *SchemaMismatchError) Unwrap() error { return e.Err }

// AggregationError signals a broken pipeline invariant found while aggregating
type AggregationError struct {
	Reason string
}

func (e *AggregationError) Error() string {
	return "aggregation invariant violated: " + e.Reason
}

// IsTransient reports whether err (or anything it wraps) is a TransientError
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsPermanent reports whether err is a PermanentError
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// IsSchemaMismatch reports whether err is a SchemaMismatchError
func IsSchemaMismatch(err error) bool {
	var se *SchemaMismatchError
	return errors.As(err, &se)
}
