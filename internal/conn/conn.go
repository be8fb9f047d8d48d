// Package conn owns the physical SQLite session for one open tenant.
//
// Every tenant gets exactly one connection with at most one in-flight
// statement. Statement ordering is call order; there is no batching or
// reordering, because later writes (reference edges) depend on earlier
// ones (the row they reference) existing.
package conn

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Conn wraps the tenant's database session.
// Uses SQLite with WAL mode for concurrent read access across tenants.
type Conn struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at the given path.
//
// The session is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention between tenants
//   - Foreign key enforcement
//
// A failure to open or reach the database surfaces as *ConnectionError.
// There is no retry and no degraded fallback store.
func Open(path string) (*Conn, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, &ConnectionError{Path: path, Err: err}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &ConnectionError{Path: path, Err: err}
	}

	// One writer per tenant. A single connection also guarantees that
	// BEGIN/COMMIT issued through Execute bind to the same session.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, &ConnectionError{Path: path, Err: err}
	}

	return &Conn{db: db}, nil
}

// Close closes the tenant's session.
func (c *Conn) Close() error {
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

// Execute runs a statement that returns no rows.
func (c *Conn) Execute(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.db.ExecContext(ctx, query, args...)
}

// Query runs a statement and returns the resulting rows.
// Callers are responsible for closing the returned rows.
func (c *Conn) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.db.QueryContext(ctx, query, args...)
}

// QueryRow runs a statement expected to return at most one row.
func (c *Conn) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return c.db.QueryRowContext(ctx, query, args...)
}

// Begin starts an underlying database transaction.
func (c *Conn) Begin(ctx context.Context) (*sql.Tx, error) {
	return c.db.BeginTx(ctx, nil)
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer Conn methods when available.
func (c *Conn) DB() *sql.DB {
	return c.db
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}
