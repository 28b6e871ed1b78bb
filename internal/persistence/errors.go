package persistence

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a unique or primary key constraint is violated.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrForeignKeyViolation is returned when a referenced record is missing.
	ErrForeignKeyViolation = errors.New("persistence: foreign key violation")
	// ErrConstraintViolation is returned for other constraint failures.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrInvalidBlob is returned when a stored blob does not match its schema.
	ErrInvalidBlob = errors.New("persistence: invalid blob")
)

// PoolError reports that a connection could not be obtained from, or opened
// by, the connection pool.
type PoolError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *PoolError) Error() string {
	return fmt.Sprintf("persistence: pool %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *PoolError) Unwrap() error {
	return e.Err
}

// DecodeError reports a stored row whose blob column could not be decoded.
type DecodeError struct {
	Table string
	RowID int64
	Err   error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("persistence: decode %s row %d: %v", e.Table, e.RowID, e.Err)
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}
