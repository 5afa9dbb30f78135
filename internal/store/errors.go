package store

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("already exists")
	ErrNotFound   = errors.New("not found")
	ErrStore      = errors.New("store unavailable")
)

// HTTPError is implemented by every error the adapters return so the HTTP
// layer can map them without knowing the concrete types.
type HTTPError interface {
	error
	StatusCode() int
}

// ValidationError reports missing or malformed caller input.
type ValidationError struct {
	Resource string
	Err      error
}

func NewValidationError(resource string, err error) *ValidationError {
	return &ValidationError{Resource: resource, Err: err}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Resource, e.Err)
}

func (e *ValidationError) Unwrap() error        { return e.Err }
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
func (e *ValidationError) StatusCode() int      { return http.StatusBadRequest }

// ConflictError reports a value already claimed in a uniqueness index.
type ConflictError struct {
	Resource string
	Field    string
	Value    string
}

func NewConflictError(resource, field, value string) *ConflictError {
	return &ConflictError{Resource: resource, Field: field, Value: value}
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s with %s %q %v", e.Resource, e.Field, e.Value, ErrConflict)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }
func (e *ConflictError) StatusCode() int      { return http.StatusBadRequest }

// NotFoundError reports that no record exists under the derived key. A key
// that was deleted and one that never existed are indistinguishable.
type NotFoundError struct {
	Resource string
	ID       int64
}

func NewNotFoundError(resource string, id int64) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d %v", e.Resource, e.ID, ErrNotFound)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }
func (e *NotFoundError) StatusCode() int      { return http.StatusNotFound }

// StoreError wraps a failed key-value operation. Its text may carry backend
// details and must not be shown to callers.
type StoreError struct {
	Resource string
	Op       string
	Err      error
}

func NewStoreError(resource, op string, err error) *StoreError {
	return &StoreError{Resource: resource, Op: op, Err: err}
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Resource, e.Op, e.Err)
}

func (e *StoreError) Unwrap() error        { return e.Err }
func (e *StoreError) Is(target error) bool { return target == ErrStore }
func (e *StoreError) StatusCode() int      { return http.StatusInternalServerError }
