package record

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for common operations.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("record: entity not found")

	// ErrUntracked is returned when an operation requires a tracked entity
	// that the session does not know about.
	ErrUntracked = errors.New("record: entity is not tracked")
)

// NotFoundError represents an error when an entity is not found.
type NotFoundError struct {
	label string
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("record: %s not found", e.label)
}

// Is reports whether the target error matches NotFoundError.
// This allows errors.Is(notFoundErr, ErrNotFound) to return true.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// Label returns the entity label.
func (e *NotFoundError) Label() string {
	return e.label
}

// NewNotFoundError returns a new NotFoundError for the given entity label.
func NewNotFoundError(label string) *NotFoundError {
	return &NotFoundError{label: label}
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// EntityError reports a registration problem with a value handed to the
// session: not a pointer to a struct, or a type missing from the registry.
type EntityError struct {
	msg string
	val any
}

// Error returns the error string.
func (e *EntityError) Error() string {
	return fmt.Sprintf("record: %s (got %T)", e.msg, e.val)
}

// NewEntityError returns a new EntityError.
func NewEntityError(msg string, val any) *EntityError {
	return &EntityError{msg: msg, val: val}
}

// IsEntityError returns true if the error is an EntityError.
func IsEntityError(err error) bool {
	if err == nil {
		return false
	}
	var e *EntityError
	return errors.As(err, &e)
}

// RollbackError wraps the error that triggered a rollback together with a
// rollback failure.
type RollbackError struct {
	Cause error // Error that triggered the rollback.
	Err   error // Error returned by the rollback itself.
}

// Error returns the error string.
func (e *RollbackError) Error() string {
	return fmt.Sprintf("record: rolling back after %v: %v", e.Cause, e.Err)
}

// Unwrap returns the error that triggered the rollback.
func (e *RollbackError) Unwrap() error {
	return e.Cause
}
