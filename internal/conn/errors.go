package conn

import (
	"errors"
	"fmt"
)

// ConnectionError reports that the database could not be opened or reached.
// Always fatal: callers must surface it immediately, never retry silently
// or fall back to a degraded store.
type ConnectionError struct {
	// Path is the database location that failed.
	Path string

	// Err is the underlying driver error.
	Err error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("database unreachable at %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying driver error.
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsConnectionError returns true if the error is a connection failure.
// Uses errors.As to handle wrapped errors.
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}
