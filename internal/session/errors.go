package session

import (
	"errors"
	"fmt"
)

// Sentinel errors forming the failure taxonomy shared by the store and the
// recovery orchestrator. The orchestrator treats ErrInvalidIDFormat,
// ErrNotFound, ErrExpired, and ErrStoreUnavailable identically (fall through
// to the next recovery layer); they stay distinct for observability.
var (
	// ErrInvalidIDFormat means the session id matched none of the
	// recognized prefix patterns. It is returned before any backend call.
	ErrInvalidIDFormat = errors.New("invalid session id format")

	// ErrNotFound means the backend was reachable but holds no record
	// for a well-formed id.
	ErrNotFound = errors.New("session not found")

	// ErrExpired means a record exists but its age exceeds the TTL.
	ErrExpired = errors.New("session expired")

	// ErrStoreUnavailable wraps any infrastructure failure (connection,
	// timeout, corrupt payload) so callers never see raw backend errors.
	ErrStoreUnavailable = errors.New("session store unavailable")

	// ErrMirrorEmpty means the browser-local mirror had nothing under any
	// of its fixed keys.
	ErrMirrorEmpty = errors.New("local mirror empty")
)

// ValidationError indicates a required field was missing or malformed at
// save time. It is surfaced to the caller synchronously and never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s %s", e.Field, e.Message)
}

// Unavailable wraps err as an ErrStoreUnavailable while preserving the
// underlying cause for logs.
func Unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// Recoverable reports whether err is one of the lookup failures the
// recovery orchestrator converts into a fallback step.
func Recoverable(err error) bool {
	return errors.Is(err, ErrInvalidIDFormat) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrExpired) ||
		errors.Is(err, ErrStoreUnavailable)
}
