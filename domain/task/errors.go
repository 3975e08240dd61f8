package task

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for task operations.
var (
	// ErrInvalidID is returned when a task id is not a well-formed UUID.
	ErrInvalidID = errors.New("invalid task id format")

	// ErrNotFound is returned when no task with the id exists for the caller.
	ErrNotFound = errors.New("task not found")

	// ErrForbidden is returned when the task exists but belongs to another user.
	ErrForbidden = errors.New("access denied: task belongs to another user")
)

// FieldError describes one invalid field of a submission.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationError carries every field error of one submission, in field order.
type ValidationError struct {
	Fields []FieldError `json:"errors"`
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Error())
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// StoreError wraps a failure of the underlying task store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("task store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// WrapStoreError wraps err as a StoreError unless it is nil or already a
// domain error that callers must see unchanged.
func WrapStoreError(op string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsStoreError reports whether err is a StoreError.
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
