package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is checks against the typed errors below
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidOperation   = errors.New("invalid operation")
	ErrConflictRetryable  = errors.New("conflicting concurrent write")
	ErrFatalInconsistency = errors.New("fatal inconsistency")
	ErrForbidden          = errors.New("forbidden")
)

// Reasons carried by InvalidOperationError
const (
	ReasonSelfMerge           = "self-merge"
	ReasonSourceClaimed       = "source already claimed"
	ReasonTargetNotClaimed    = "target not claimed"
	ReasonUnresolvedConflicts = "unresolved conflicts"
)

// NotFoundError is returned when a referenced record does not exist
type NotFoundError struct {
	Kind string // student, account, class, ...
	Role string // optional: source, target
	ID   string
}

func (e *NotFoundError) Error() string {
	if e.Role != "" {
		return fmt.Sprintf("%s %s not found: %s", e.Role, e.Kind, e.ID)
	}
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// InvalidOperationError is returned when a request violates a precondition
type InvalidOperationError struct {
	Reason string
	Detail string
}

func (e *InvalidOperationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("invalid operation: %s (%s)", e.Reason, e.Detail)
	}
	return fmt.Sprintf("invalid operation: %s", e.Reason)
}

func (e *InvalidOperationError) Is(target error) bool { return target == ErrInvalidOperation }

// ConflictRetryableError is returned when the store rejected the transaction
// because of a concurrent conflicting write. The whole operation may be retried.
type ConflictRetryableError struct {
	Op  string
	Err error
}

func (e *ConflictRetryableError) Error() string {
	return fmt.Sprintf("%s: conflicting concurrent write, retry: %v", e.Op, e.Err)
}

func (e *ConflictRetryableError) Unwrap() error { return e.Err }

func (e *ConflictRetryableError) Is(target error) bool { return target == ErrConflictRetryable }

// FatalInconsistencyError marks a store-level defect detected inside a
// transaction, such as a reference to a student that no catalog relation covers.
// The transaction is never committed when this is returned.
type FatalInconsistencyError struct {
	Op  string
	Err error
}

func (e *FatalInconsistencyError) Error() string {
	return fmt.Sprintf("fatal inconsistency during %s: %v", e.Op, e.Err)
}

func (e *FatalInconsistencyError) Unwrap() error { return e.Err }

func (e *FatalInconsistencyError) Is(target error) bool { return target == ErrFatalInconsistency }

// AbortedError is returned when the transaction was cancelled or timed out.
// It unwraps to context.Canceled or context.DeadlineExceeded.
type AbortedError struct {
	Op  string
	Err error
}

func (e *AbortedError) Error() string {
	return fmt.Sprintf("%s aborted: %v", e.Op, e.Err)
}

func (e *AbortedError) Unwrap() error { return e.Err }

// ForbiddenError is returned by the authorization gate
type ForbiddenError struct {
	ActorUUID string
	Role      AccountRole
}

func (e *ForbiddenError) Error() string {
	if e.ActorUUID == "" {
		return "an authorized actor is required for this operation"
	}
	return fmt.Sprintf("actor %s with role %q may not perform this operation", e.ActorUUID, e.Role)
}

func (e *ForbiddenError) Is(target error) bool { return target == ErrForbidden }

// ETagMismatchError is returned when an etag doesn't match
type ETagMismatchError struct {
	Expected int64
	Actual   int64
}

func (e *ETagMismatchError) Error() string {
	return fmt.Sprintf("etag mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// CheckETag validates an etag against the current value
func CheckETag(expected, actual int64) error {
	if expected != actual {
		return &ETagMismatchError{Expected: expected, Actual: actual}
	}
	return nil
}
