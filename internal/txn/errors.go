package txn

import (
	"errors"
	"fmt"
)

// StateError reports an operation attempted in a scope state that forbids
// it: a write in an aborted scope, a commit with no open transaction, or a
// begin before the undo log was attached.
type StateError struct {
	// Op is the attempted operation.
	Op string

	// State is the scope state at the time.
	State State

	// Reason describes the violation.
	Reason string
}

// Error implements the error interface.
func (e *StateError) Error() string {
	return fmt.Sprintf("%s in %s scope: %s", e.Op, e.State, e.Reason)
}

// IsStateError returns true if the error is a transaction state violation.
// Uses errors.As to handle wrapped errors.
func IsStateError(err error) bool {
	var se *StateError
	return errors.As(err, &se)
}

// MemoryUndoLog is a minimal in-process undo log, useful for hosts that
// manage undo themselves and for tests.
type MemoryUndoLog struct {
	changes []Change
}

// Append implements UndoLog.
func (l *MemoryUndoLog) Append(change Change) error {
	l.changes = append(l.changes, change)
	return nil
}

// Changes returns the recorded mutations in append order.
func (l *MemoryUndoLog) Changes() []Change {
	return l.changes
}
