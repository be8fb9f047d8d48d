// Package store is the per-entity-type CRUD surface of ancestore.
//
// A Store is one open tenant: one connection, one transaction scope, one
// rewriter carrying the tenant's table prefix. Every statement, the
// store's own and any raw SQL the external caller supplies, passes
// through the rewriter before reaching the connection, so a tenant can
// never touch another tenant's rows, only the shared unprefixed tables.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/ancestore/ancestore/internal/config"
	"github.com/ancestore/ancestore/internal/conn"
	"github.com/ancestore/ancestore/internal/rewrite"
	"github.com/ancestore/ancestore/internal/schema"
	"github.com/ancestore/ancestore/internal/txn"
)

// Store is one open tenant.
type Store struct {
	cfg  config.Config
	conn *conn.Conn
	rw   *rewrite.Rewriter
	tm   *txn.Manager
	log  *slog.Logger
}

// Open validates the tenant config, opens (or creates) the database,
// ensures the tenant's schema, and returns the store.
//
// Schema creation is lazy and idempotent; opening an existing tenant
// verifies its schema-version marker and fails on an ahead-of-build
// revision. Tenant tables are never dropped here or anywhere else in the
// core; destructive operations are deliberately excluded.
func Open(ctx context.Context, cfg config.Config, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Directory, 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	c, err := conn.Open(cfg.DatabasePath())
	if err != nil {
		return nil, err
	}

	rw := rewrite.New(cfg.TablePrefix(), schema.PrefixedTables(), schema.SharedTables())

	if err := schema.NewManager(c, rw, log).Ensure(ctx); err != nil {
		c.Close()
		return nil, err
	}

	return &Store{
		cfg:  cfg,
		conn: c,
		rw:   rw,
		tm:   txn.NewManager(c),
		log:  log,
	}, nil
}

// Close releases the tenant's connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// AttachUndoLog installs the host's change-tracking collaborator.
// Required before the first transaction.
func (s *Store) AttachUndoLog(u txn.UndoLog) {
	s.tm.AttachUndoLog(u)
}

// BeginTransaction opens a (possibly nested) transaction scope.
func (s *Store) BeginTransaction(ctx context.Context) error {
	return s.tm.Begin(ctx)
}

// CommitTransaction closes one scope level; the outermost level commits.
func (s *Store) CommitTransaction(ctx context.Context) error {
	return s.tm.Commit(ctx)
}

// AbortTransaction unwinds one scope level, rolling back the underlying
// transaction when the outermost level unwinds.
func (s *Store) AbortTransaction(ctx context.Context) error {
	return s.tm.Abort(ctx)
}

// Execute runs one caller-supplied statement scoped to this tenant.
// This is the compatibility surface for the external storage interface,
// which emits raw SQL text against bare table names.
func (s *Store) Execute(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.exec(ctx, query, args...)
}

// Query runs one caller-supplied row-returning statement scoped to this
// tenant. Callers are responsible for closing the returned rows.
func (s *Store) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.query(ctx, query, args...)
}

// Of returns the entity set for a kind.
func (s *Store) Of(kind schema.Kind) (*EntitySet, error) {
	if !schema.ValidKind(kind) {
		return nil, fmt.Errorf("unknown entity kind %q", kind)
	}
	return &EntitySet{store: s, kind: kind}, nil
}

// of is the unchecked accessor for the fixed kinds below.
func (s *Store) of(kind schema.Kind) *EntitySet {
	return &EntitySet{store: s, kind: kind}
}

// Person returns the person entity set.
func (s *Store) Person() *EntitySet { return s.of(schema.KindPerson) }

// Family returns the family entity set.
func (s *Store) Family() *EntitySet { return s.of(schema.KindFamily) }

// Event returns the event entity set.
func (s *Store) Event() *EntitySet { return s.of(schema.KindEvent) }

// Place returns the place entity set.
func (s *Store) Place() *EntitySet { return s.of(schema.KindPlace) }

// Source returns the source entity set.
func (s *Store) Source() *EntitySet { return s.of(schema.KindSource) }

// Citation returns the citation entity set.
func (s *Store) Citation() *EntitySet { return s.of(schema.KindCitation) }

// Repository returns the repository entity set.
func (s *Store) Repository() *EntitySet { return s.of(schema.KindRepository) }

// Media returns the media entity set.
func (s *Store) Media() *EntitySet { return s.of(schema.KindMedia) }

// Note returns the note entity set.
func (s *Store) Note() *EntitySet { return s.of(schema.KindNote) }

// Tag returns the tag entity set.
func (s *Store) Tag() *EntitySet { return s.of(schema.KindTag) }

// exec rewrites and executes one statement in the current scope.
func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	scoped, err := s.rw.Rewrite(query)
	if err != nil {
		return nil, err
	}
	return s.tm.Execute(ctx, scoped, args...)
}

// query rewrites and runs one row-returning statement.
func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	scoped, err := s.rw.Rewrite(query)
	if err != nil {
		return nil, err
	}
	return s.tm.Query(ctx, scoped, args...)
}

// queryRow rewrites and runs one single-row statement.
func (s *Store) queryRow(ctx context.Context, query string, args ...any) (*sql.Row, error) {
	scoped, err := s.rw.Rewrite(query)
	if err != nil {
		return nil, err
	}
	return s.tm.QueryRow(ctx, scoped, args...)
}

// requireTransaction rejects mutations outside a transaction scope.
func (s *Store) requireTransaction(op string) error {
	if !s.tm.InTransaction() {
		return &txn.StateError{Op: op, State: s.tm.State(),
			Reason: "records are mutated only inside a transaction scope"}
	}
	return nil
}
