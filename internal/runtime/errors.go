package runtime

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned for unknown run identifiers or agent names.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState is returned when an operation is not valid for the
	// run's current status. The run is left unchanged.
	ErrInvalidState = errors.New("invalid state")
	// ErrInvalidInput is returned for malformed requests.
	ErrInvalidInput = errors.New("invalid input")
	// ErrCancelled is returned by Advance when the run was cancelled while
	// the agent was executing.
	ErrCancelled = errors.New("run cancelled")
	// ErrResumeDenied is returned when the resume policy rejects a signal.
	ErrResumeDenied = errors.New("resume denied")
)

// ExecutionError wraps an unhandled error raised by agent logic.
type ExecutionError struct {
	RunID string
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("run %s: execution failed: %v", e.RunID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Kind classifies errors for transports.
type Kind string

const (
	KindNotFound         Kind = "not_found"
	KindInvalidState     Kind = "invalid_state"
	KindInvalidInput     Kind = "invalid_input"
	KindExecutionFailure Kind = "execution_failure"
	KindCancelled        Kind = "cancelled"
	KindResumeDenied     Kind = "resume_denied"
	KindInternal         Kind = "internal"
)

// KindOf returns the kind of err, or KindInternal when unclassified.
func KindOf(err error) Kind {
	var execErr *ExecutionError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &execErr):
		return KindExecutionFailure
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidState):
		return KindInvalidState
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, ErrResumeDenied):
		return KindResumeDenied
	}
	return KindInternal
}
