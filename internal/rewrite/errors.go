package rewrite

import (
	"errors"
	"fmt"
)

// RejectedError reports a statement the rewriter could not confidently
// scope to the tenant's namespace. The statement was NOT executed: running
// it unscoped could read or write another tenant's rows.
type RejectedError struct {
	// Query is the offending statement text.
	Query string

	// Reason describes why classification failed.
	Reason string

	// Table names the out-of-vocabulary table, when that was the cause.
	Table string
}

// Error implements the error interface.
func (e *RejectedError) Error() string {
	return fmt.Sprintf("statement rejected: %s", e.Reason)
}

// IsRejected returns true if the error is a rewrite rejection.
// Uses errors.As to handle wrapped errors.
func IsRejected(err error) bool {
	var re *RejectedError
	return errors.As(err, &re)
}
