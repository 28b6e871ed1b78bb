package application

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/example/activity-store/internal/persistence"
)

var (
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrUserAlreadyExists is returned when a username or email is already taken.
	ErrUserAlreadyExists = errors.New("application: user already exists")
	// ErrAlreadyExists is returned when a client supplied identifier is already registered.
	ErrAlreadyExists = errors.New("application: already exists")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	// Message, when set, replaces the generated summary.
	Message     string
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if v.Message != "" {
		return v.Message
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}

	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+v.FieldErrors[field])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

// invalidField builds a validation error for a single field whose message is
// also the error text.
func invalidField(field, message string) *ValidationError {
	return &ValidationError{
		Message:     message,
		FieldErrors: map[string]string{field: message},
	}
}

// StoreError reports a failure of the backing store: pool exhaustion, I/O
// errors or stored data that could not be decoded.
type StoreError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return fmt.Sprintf("application: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// mapRepoError translates persistence errors into the application taxonomy.
// Errors that already belong to it pass through unchanged.
func mapRepoError(op string, err error) error {
	if err == nil {
		return nil
	}

	var vErr *ValidationError
	var sErr *StoreError
	switch {
	case errors.As(err, &vErr), errors.As(err, &sErr):
		return err
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrUserAlreadyExists):
		return err
	case errors.Is(err, persistence.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, persistence.ErrDuplicate):
		return fmt.Errorf("%w: %v", ErrAlreadyExists, err)
	}
	return &StoreError{Op: op, Err: err}
}
