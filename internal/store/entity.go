package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ancestore/ancestore/internal/schema"
	"github.com/ancestore/ancestore/internal/serial"
	"github.com/ancestore/ancestore/internal/txn"
)

// EntitySet is the uniform operation surface for one entity kind.
type EntitySet struct {
	store *Store
	kind  schema.Kind
}

// Kind returns the entity kind this set operates on.
func (e *EntitySet) Kind() schema.Kind {
	return e.kind
}

// Add inserts a new record. The handle must not exist yet; a duplicate
// fails on the primary key, unlike Commit which upserts.
// Must run inside a transaction scope.
func (e *EntitySet) Add(ctx context.Context, obj any) error {
	if err := e.store.requireTransaction("add " + string(e.kind)); err != nil {
		return err
	}

	handle, doc, err := serial.ToStorage(obj)
	if err != nil {
		return err
	}

	q := fmt.Sprintf("INSERT INTO %s (handle, json_data, change_time) VALUES (?, ?, ?)", e.kind)
	if _, err := e.store.exec(ctx, q, handle, string(doc.Raw()), time.Now().Unix()); err != nil {
		return fmt.Errorf("add %s %s: %w", e.kind, handle, err)
	}

	if err := e.afterWrite(ctx, handle, doc); err != nil {
		return err
	}

	return e.store.tm.Record(txn.Change{
		Kind: txn.ChangeAdd, Table: string(e.kind), Handle: handle, New: doc.Raw(),
	})
}

// Commit inserts or updates the record keyed by its handle. The object's
// outbound reference edges are recomputed and replaced in the same
// transaction, so backlink queries are always consistent with the last
// successful commit.
func (e *EntitySet) Commit(ctx context.Context, obj any) error {
	if err := e.store.requireTransaction("commit " + string(e.kind)); err != nil {
		return err
	}

	handle, doc, err := serial.ToStorage(obj)
	if err != nil {
		return err
	}

	old, existed, err := e.rawByHandle(ctx, handle)
	if err != nil {
		return err
	}

	q := fmt.Sprintf(`INSERT INTO %s (handle, json_data, change_time) VALUES (?, ?, ?)
ON CONFLICT (handle) DO UPDATE SET json_data = excluded.json_data, change_time = excluded.change_time`, e.kind)
	if _, err := e.store.exec(ctx, q, handle, string(doc.Raw()), time.Now().Unix()); err != nil {
		return fmt.Errorf("commit %s %s: %w", e.kind, handle, err)
	}

	if err := e.afterWrite(ctx, handle, doc); err != nil {
		return err
	}

	change := txn.Change{Kind: txn.ChangeAdd, Table: string(e.kind), Handle: handle, New: doc.Raw()}
	if existed {
		change.Kind = txn.ChangeUpdate
		change.Old = old
	}
	return e.store.tm.Record(change)
}

// Remove deletes the record and its outbound reference edges in the same
// transaction. Removing an absent handle is a no-op, matching the
// defined-absence convention of Get.
func (e *EntitySet) Remove(ctx context.Context, handle string) error {
	if err := e.store.requireTransaction("remove " + string(e.kind)); err != nil {
		return err
	}

	old, existed, err := e.rawByHandle(ctx, handle)
	if err != nil {
		return err
	}
	if !existed {
		return nil
	}

	q := fmt.Sprintf("DELETE FROM %s WHERE handle = ?", e.kind)
	if _, err := e.store.exec(ctx, q, handle); err != nil {
		return fmt.Errorf("remove %s %s: %w", e.kind, handle, err)
	}

	if err := e.store.deleteReferences(ctx, handle, e.kind); err != nil {
		return err
	}

	return e.store.tm.Record(txn.Change{
		Kind: txn.ChangeDelete, Table: string(e.kind), Handle: handle, Old: old,
	})
}

// Get returns the record for a handle.
//
// A handle that was never written yields (zero, false, nil): defined
// absence, not an error. This holds uniformly for every kind; no lookup
// raises merely because the handle is missing.
func (e *EntitySet) Get(ctx context.Context, handle string) (serial.Document, bool, error) {
	raw, existed, err := e.rawByHandle(ctx, handle)
	if err != nil || !existed {
		return serial.Document{}, false, err
	}

	doc, err := serial.FromStorage(raw)
	if err != nil {
		return serial.Document{}, false, fmt.Errorf("get %s %s: %w", e.kind, handle, err)
	}
	return doc, true, nil
}

// Has reports whether a handle exists without decoding the document.
func (e *EntitySet) Has(ctx context.Context, handle string) (bool, error) {
	_, existed, err := e.rawByHandle(ctx, handle)
	return existed, err
}

// Count returns the number of records of this kind.
func (e *EntitySet) Count(ctx context.Context) (int, error) {
	row, err := e.store.queryRow(ctx, fmt.Sprintf("SELECT count(*) FROM %s", e.kind))
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", e.kind, err)
	}
	return n, nil
}

// Iterate returns a lazy cursor over every record of this kind, ordered
// by handle for determinism. Each call opens a fresh cursor; the caller
// must Close it.
func (e *EntitySet) Iterate(ctx context.Context) (*Iterator, error) {
	rows, err := e.store.query(ctx,
		fmt.Sprintf("SELECT handle, json_data FROM %s ORDER BY handle", e.kind))
	if err != nil {
		return nil, err
	}
	return &Iterator{rows: rows}, nil
}

// Handles returns every handle of this kind, ordered.
func (e *EntitySet) Handles(ctx context.Context) ([]string, error) {
	rows, err := e.store.query(ctx,
		fmt.Sprintf("SELECT handle FROM %s ORDER BY handle", e.kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var handles []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("scan handle: %w", err)
		}
		handles = append(handles, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate handles: %w", err)
	}
	return handles, nil
}

// UpdateDerivedColumns is the externally-imposed "now write the typed
// columns" step of the storage interface. It is a deliberate no-op: the
// derived columns are generated by the engine from json_data, atomically
// within the same statement as every document write, and are read-only to
// application code.
func (e *EntitySet) UpdateDerivedColumns(ctx context.Context, handle string) error {
	return nil
}

// afterWrite replaces reference edges and maintains the shared tables
// after a successful document write, inside the same transaction.
func (e *EntitySet) afterWrite(ctx context.Context, handle string, doc serial.Document) error {
	if err := e.store.replaceReferences(ctx, handle, e.kind, doc); err != nil {
		return err
	}
	if e.kind == schema.KindPerson {
		if err := e.store.recordSurnames(ctx, doc); err != nil {
			return err
		}
	}
	return nil
}

// rawByHandle fetches the stored document bytes for a handle.
func (e *EntitySet) rawByHandle(ctx context.Context, handle string) ([]byte, bool, error) {
	row, err := e.store.queryRow(ctx,
		fmt.Sprintf("SELECT json_data FROM %s WHERE handle = ?", e.kind), handle)
	if err != nil {
		return nil, false, err
	}

	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read %s %s: %w", e.kind, handle, err)
	}
	return raw, true, nil
}

// Iterator is a lazy cursor over one entity kind.
type Iterator struct {
	rows   *sql.Rows
	handle string
	doc    serial.Document
	err    error
}

// Next advances to the next record, returning false at the end or on
// error. Check Err after the loop.
func (it *Iterator) Next() bool {
	if it.err != nil || !it.rows.Next() {
		return false
	}

	var raw []byte
	if err := it.rows.Scan(&it.handle, &raw); err != nil {
		it.err = err
		return false
	}
	doc, err := serial.FromStorage(raw)
	if err != nil {
		it.err = err
		return false
	}
	it.doc = doc
	return true
}

// Handle returns the current record's handle.
func (it *Iterator) Handle() string {
	return it.handle
}

// Document returns the current record's document.
func (it *Iterator) Document() serial.Document {
	return it.doc
}

// Err returns the first error encountered while iterating.
func (it *Iterator) Err() error {
	if it.err != nil {
		return it.err
	}
	return it.rows.Err()
}

// Close releases the cursor.
func (it *Iterator) Close() error {
	return it.rows.Close()
}
