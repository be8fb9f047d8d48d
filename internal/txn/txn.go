// Package txn maps the host's transaction and undo-log expectations onto
// connection-level begin/commit/rollback.
//
// The host nests begin() calls freely; only the outermost scope issues a
// real BEGIN/COMMIT/ROLLBACK. A change-tracking undo log must be attached
// before the first transaction; a missing one is an explicit error rather
// than a silent no-op, because the host's undo machinery depends on it.
package txn

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/ancestore/ancestore/internal/conn"
)

// State is the transaction scope's lifecycle position.
type State int

const (
	// StateIdle means no transaction is open.
	StateIdle State = iota

	// StateActive means statements are executing inside an open scope.
	StateActive

	// StateAborted means a statement failed inside the scope; every
	// further statement is rejected until the scope unwinds, mirroring
	// the engine's own post-error statement rejection.
	StateAborted
)

// String returns the state name for diagnostics.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ChangeKind classifies one recorded mutation.
type ChangeKind string

// The three mutation kinds the undo log tracks.
const (
	ChangeAdd    ChangeKind = "add"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
)

// Change is one recorded mutation: the table, the record handle, and the
// document bytes before and after.
type Change struct {
	Kind   ChangeKind
	Table  string
	Handle string
	Old    []byte
	New    []byte
}

// UndoLog is the auxiliary change-tracking collaborator the host requires.
// Implementations are supplied by the host; the core only appends.
type UndoLog interface {
	Append(change Change) error
}

// Manager owns one tenant connection's transaction scope.
// Not safe for concurrent use: the tenant model is one caller, one
// connection, one in-flight statement.
type Manager struct {
	conn  *conn.Conn
	undo  UndoLog
	tx    *sql.Tx
	id    string
	depth int
	state State
}

// NewManager creates a transaction manager over the tenant connection.
func NewManager(c *conn.Conn) *Manager {
	return &Manager{conn: c, state: StateIdle}
}

// AttachUndoLog installs the change-tracking collaborator.
// Must happen before the first Begin.
func (m *Manager) AttachUndoLog(u UndoLog) {
	m.undo = u
}

// State returns the current scope state.
func (m *Manager) State() State {
	return m.state
}

// InTransaction reports whether a scope is open.
func (m *Manager) InTransaction() bool {
	return m.depth > 0
}

// Begin opens a transaction scope. Nested calls increment a depth counter
// and reuse the underlying transaction.
func (m *Manager) Begin(ctx context.Context) error {
	if m.undo == nil {
		return &StateError{Op: "begin", State: m.state,
			Reason: "undo log not attached; the change-tracking collaborator must be initialized before the first transaction"}
	}
	if m.state == StateAborted {
		return &StateError{Op: "begin", State: m.state, Reason: "scope already aborted"}
	}

	if m.depth == 0 {
		tx, err := m.conn.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		m.tx = tx
		m.id = uuid.NewString()
		m.state = StateActive
	}
	m.depth++
	return nil
}

// ID returns the identifier of the open transaction scope, or empty when
// idle. Undo-log entries and diagnostics key off it.
func (m *Manager) ID() string {
	if m.depth == 0 {
		return ""
	}
	return m.id
}

// Commit closes one scope level. Only the outermost call issues COMMIT.
// Committing an aborted scope rolls back instead and reports the error.
func (m *Manager) Commit(ctx context.Context) error {
	if m.depth == 0 {
		return &StateError{Op: "commit", State: m.state, Reason: "no open transaction"}
	}

	m.depth--
	if m.depth > 0 {
		return nil
	}

	tx := m.tx
	m.tx = nil

	if m.state == StateAborted {
		_ = tx.Rollback()
		m.state = StateIdle
		return &StateError{Op: "commit", State: StateAborted,
			Reason: "a statement failed inside this transaction; all writes were rolled back"}
	}

	if err := tx.Commit(); err != nil {
		m.state = StateIdle
		return fmt.Errorf("commit transaction: %w", err)
	}
	m.state = StateIdle
	return nil
}

// Abort unwinds one scope level. The underlying ROLLBACK happens when the
// outermost level unwinds; inner aborts poison the scope so the enclosing
// commit cannot succeed. Partial application of a multi-statement commit
// is forbidden.
func (m *Manager) Abort(ctx context.Context) error {
	if m.depth == 0 {
		return &StateError{Op: "abort", State: m.state, Reason: "no open transaction"}
	}

	m.depth--
	m.state = StateAborted
	if m.depth > 0 {
		return nil
	}

	tx := m.tx
	m.tx = nil
	m.state = StateIdle
	if err := tx.Rollback(); err != nil {
		return fmt.Errorf("rollback transaction: %w", err)
	}
	return nil
}

// Execute runs a statement in the current scope: inside the transaction
// when one is open, in autocommit mode otherwise. A failing statement
// inside an open scope marks it aborted; later statements in that scope
// fail immediately without touching the database.
func (m *Manager) Execute(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if m.state == StateAborted {
		return nil, &StateError{Op: "execute", State: m.state,
			Reason: "transaction already aborted; statement not attempted"}
	}

	if m.tx != nil {
		res, err := m.tx.ExecContext(ctx, query, args...)
		if err != nil {
			m.state = StateAborted
			return nil, err
		}
		return res, nil
	}

	return m.conn.Execute(ctx, query, args...)
}

// Query runs a row-returning statement in the current scope. Like Execute,
// a failure inside an open scope marks it aborted.
func (m *Manager) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if m.state == StateAborted {
		return nil, &StateError{Op: "query", State: m.state,
			Reason: "transaction already aborted; statement not attempted"}
	}
	if m.tx != nil {
		rows, err := m.tx.QueryContext(ctx, query, args...)
		if err != nil {
			m.state = StateAborted
			return nil, err
		}
		return rows, nil
	}
	return m.conn.Query(ctx, query, args...)
}

// QueryRow runs a statement expected to return at most one row. Reads are
// statements too: an aborted scope rejects them like any other attempt.
func (m *Manager) QueryRow(ctx context.Context, query string, args ...any) (*sql.Row, error) {
	if m.state == StateAborted {
		return nil, &StateError{Op: "query", State: m.state,
			Reason: "transaction already aborted; statement not attempted"}
	}
	if m.tx != nil {
		return m.tx.QueryRowContext(ctx, query, args...), nil
	}
	return m.conn.QueryRow(ctx, query, args...), nil
}

// Record appends one mutation to the undo log.
func (m *Manager) Record(change Change) error {
	if m.undo == nil {
		return &StateError{Op: "record", State: m.state, Reason: "undo log not attached"}
	}
	return m.undo.Append(change)
}
