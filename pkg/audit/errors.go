package audit

import (
	"errors"
	"fmt"
)

// ErrLogHalted is returned by appends after corruption has been observed.
// A halted log requires manual intervention; it never resumes on its own.
var ErrLogHalted = errors.New("audit log halted after corruption")

// CorruptLogError reports an out-of-order or non-contiguous sequence number.
// It is the one unrecoverable condition in the engine: once observed, the log
// refuses further appends and processing must halt for manual intervention.
type CorruptLogError struct {
	// Expected is the sequence number that should have been observed.
	Expected uint64

	// Got is the sequence number actually observed.
	Got uint64
}

// Error implements the error interface.
func (e *CorruptLogError) Error() string {
	return fmt.Sprintf("audit log corrupt: expected sequence %d, got %d", e.Expected, e.Got)
}

// StorageError wraps a failure in an audit storage backend.
type StorageError struct {
	// Backend is the backend name ("memory", "sqlite").
	Backend string

	// Op is the operation that failed ("append", "range", "open").
	Op string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("audit storage %s: %s: %v", e.Backend, e.Op, e.Cause)
	}
	return fmt.Sprintf("audit storage %s: %s", e.Backend, e.Op)
}

// Unwrap returns the underlying cause.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a StorageError for the given backend and operation.
func NewStorageError(backend, op string, cause error) *StorageError {
	return &StorageError{Backend: backend, Op: op, Cause: cause}
}
