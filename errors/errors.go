// Package errors implements the taxonomy from spec §7, grounded on the
// teacher's backend.BackendError (backend/errors.go): a small struct per
// error kind carrying the operation, enough context to act on the error,
// and an Unwrap so callers can still use errors.Is/errors.As.
package errors

import (
	stderrors "errors"
	"fmt"
)

// NetworkError marks an adapter call that failed because the remote was
// unreachable (spec §7's Network bucket). The change log entry is
// retained; the next tick retries.
type NetworkError struct {
	Operation string
	Table     string
	Err       error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s(%s): network error: %v", e.Operation, e.Table, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsNetworkError reports whether err (or anything it wraps) is a
// *NetworkError, the predicate surfaced on State.ApiError (spec §6.2).
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return stderrors.As(err, &ne)
}

// ServerError marks a definite rejection (4xx/5xx other than "not found")
// from add/update/remove. The entry remains queued for retry.
type ServerError struct {
	Operation string
	Table     string
	LocalID   string
	Status    int
	Err       error
}

func (e *ServerError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s(%s/%s): server rejected with status %d: %v", e.Operation, e.Table, e.LocalID, e.Status, e.Err)
	}
	return fmt.Sprintf("%s(%s/%s): server rejected: %v", e.Operation, e.Table, e.LocalID, e.Err)
}

func (e *ServerError) Unwrap() error { return e.Err }

// MissingRecordError marks a definite "not found" response to an update,
// handled per §4.7's strategy rather than surfaced as an apiError.
type MissingRecordError struct {
	Table   string
	ID      any
	LocalID string
}

func (e *MissingRecordError) Error() string {
	return fmt.Sprintf("%s: remote record %v not found (local %s)", e.Table, e.ID, e.LocalID)
}

// StoreError wraps a failure from the local store, propagated to the
// caller of the host API with no internal recovery attempted (spec §7).
type StoreError struct {
	Operation string
	Err       error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Operation, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// ProgrammerError is a fatal, synchronous misuse of the engine's contract
// (a missing adapter method, a schema violation, a _localId absent on
// raw.Add). Per spec §7 these are not retried: callers are expected to
// treat them as a panic-worthy bug, not a recoverable sync failure.
type ProgrammerError struct {
	Reason string
}

func (e *ProgrammerError) Error() string {
	return fmt.Sprintf("programmer error: %s", e.Reason)
}

// NewNetworkError builds a *NetworkError.
func NewNetworkError(operation, table string, err error) *NetworkError {
	return &NetworkError{Operation: operation, Table: table, Err: err}
}

// NewServerError builds a *ServerError.
func NewServerError(operation, table, localID string, status int, err error) *ServerError {
	return &ServerError{Operation: operation, Table: table, LocalID: localID, Status: status, Err: err}
}

// NewStoreError builds a *StoreError.
func NewStoreError(operation string, err error) *StoreError {
	return &StoreError{Operation: operation, Err: err}
}
