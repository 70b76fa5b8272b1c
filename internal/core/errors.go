package core

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors for handling decisions.
type ErrorCategory string

const (
	ErrCatValidation ErrorCategory = "validation" // malformed input, bad identifier
	ErrCatNotFound   ErrorCategory = "not_found"  // resource or eligible agent missing
	ErrCatConflict   ErrorCategory = "conflict"   // concurrent modification
	ErrCatState      ErrorCategory = "state"      // persistence or rollback failure
	ErrCatExecution  ErrorCategory = "execution"  // workflow or indexing failure
	ErrCatTimeout    ErrorCategory = "timeout"    // phase deadline exceeded
)

// DomainError is the structured error type used across the engine.
type DomainError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Retryable bool
	Cause     error
	Details   map[string]interface{}
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *DomainError) Unwrap() error { return e.Cause }

// Is matches on category and code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Category == t.Category && e.Code == t.Code
}

// WithCause wraps an underlying error.
func (e *DomainError) WithCause(cause error) *DomainError {
	e.Cause = cause
	return e
}

// WithDetail adds contextual information.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ErrInvalidInput reports a malformed directive, pagination, or identifier.
func ErrInvalidInput(code, message string) *DomainError {
	return &DomainError{Category: ErrCatValidation, Code: code, Message: message}
}

// ErrNoEligibleAgent reports that selection found no capable agent.
func ErrNoEligibleAgent(message string) *DomainError {
	return &DomainError{Category: ErrCatNotFound, Code: "NO_ELIGIBLE_AGENT", Message: message}
}

// ErrNotFound reports a missing resource.
func ErrNotFound(code, message string) *DomainError {
	return &DomainError{Category: ErrCatNotFound, Code: code, Message: message}
}

// ErrConflict reports a lost optimistic-concurrency race. Callers must not
// retry silently.
func ErrConflict(message string) *DomainError {
	return &DomainError{Category: ErrCatConflict, Code: "CONCURRENT_MODIFICATION", Message: message}
}

// ErrPersistence wraps an underlying store failure.
func ErrPersistence(message string, cause error) *DomainError {
	return &DomainError{Category: ErrCatState, Code: "PERSISTENCE", Message: message, Retryable: true, Cause: cause}
}

// ErrWorkflow reports a failed workflow execution.
func ErrWorkflow(message string, cause error) *DomainError {
	return &DomainError{Category: ErrCatExecution, Code: "WORKFLOW", Message: message, Cause: cause}
}

// ErrIndexing reports a per-file indexing failure. Collected per batch,
// never aborts the batch.
func ErrIndexing(path string, cause error) *DomainError {
	e := &DomainError{Category: ErrCatExecution, Code: "INDEXING", Message: "indexing failed", Cause: cause}
	return e.WithDetail("path", path)
}

// ErrRollback reports that artifact restoration after a failed replace
// itself failed. The original error still surfaces; this one is logged.
func ErrRollback(path string, cause error) *DomainError {
	e := &DomainError{Category: ErrCatState, Code: "ROLLBACK", Message: "artifact restoration failed", Cause: cause}
	return e.WithDetail("path", path)
}

// ErrTimeout reports a phase deadline.
func ErrTimeout(message string) *DomainError {
	return &DomainError{Category: ErrCatTimeout, Code: "TIMEOUT", Message: message, Retryable: true}
}

// IsConflict reports whether err is an optimistic-concurrency conflict.
func IsConflict(err error) bool {
	var de *DomainError
	return errors.As(err, &de) && de.Category == ErrCatConflict
}

// IsNoEligibleAgent reports whether err is a failed agent selection.
func IsNoEligibleAgent(err error) bool {
	var de *DomainError
	return errors.As(err, &de) && de.Code == "NO_ELIGIBLE_AGENT"
}
