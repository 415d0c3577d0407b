package domain

import (
	"errors"
	"fmt"
)

// FetchError reports a failed API fetch. Transient errors (network, timeout)
// are retryable by the scheduler; permanent ones (bad status, bad body) are
// surfaced as run failure.
type FetchError struct {
	Transient  bool
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("fetch: %v", e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsTransientFetch reports whether err is a retryable fetch failure.
func IsTransientFetch(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Transient
}

// SchemaError reports a payload missing or malforming a required field.
// No write happens after a SchemaError.
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema: field %q %s", e.Field, e.Reason)
}

// SinkError wraps a failed sink write and names which sink failed. Sink
// writes are independent: one SinkError never suppresses the other sink's
// attempt.
type SinkError struct {
	Sink string // "postgres" or "csv"
	Err  error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink %s: %v", e.Sink, e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }

// VersioningError reports a failed versioning step. Soft: logged and recorded
// in run stats, never propagated as run failure.
type VersioningError struct {
	Step string // "dvc" or "git"
	Err  error
}

func (e *VersioningError) Error() string {
	return fmt.Sprintf("versioning %s: %v", e.Step, e.Err)
}

func (e *VersioningError) Unwrap() error { return e.Err }
