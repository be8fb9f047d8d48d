package store

import (
	"context"
	"fmt"

	"github.com/ancestore/ancestore/internal/schema"
	"github.com/ancestore/ancestore/internal/serial"
)

// Backlink names one record that refers to a queried handle.
type Backlink struct {
	Handle string
	Kind   schema.Kind
}

// replaceReferences rebuilds the outbound reference edges for one record
// from its document, inside the caller's transaction. Delete-then-insert
// keeps the edge set an exact function of the last committed document.
func (s *Store) replaceReferences(ctx context.Context, handle string, kind schema.Kind, doc serial.Document) error {
	if err := s.deleteReferences(ctx, handle, kind); err != nil {
		return err
	}

	for _, rp := range schema.RefPaths(kind) {
		for _, target := range doc.Strings(rp.Path) {
			// The same handle can be reachable through two paths
			// (a child who is also the father); the primary key
			// dedupes.
			_, err := s.exec(ctx, `INSERT INTO reference (obj_handle, obj_class, ref_handle, ref_class)
VALUES (?, ?, ?, ?) ON CONFLICT DO NOTHING`,
				handle, string(kind), target, string(rp.Target))
			if err != nil {
				return fmt.Errorf("write reference %s -> %s: %w", handle, target, err)
			}
		}
	}
	return nil
}

// deleteReferences drops every outbound edge of one record.
func (s *Store) deleteReferences(ctx context.Context, handle string, kind schema.Kind) error {
	_, err := s.exec(ctx, "DELETE FROM reference WHERE obj_handle = ? AND obj_class = ?",
		handle, string(kind))
	if err != nil {
		return fmt.Errorf("delete references of %s %s: %w", kind, handle, err)
	}
	return nil
}

// Backlinks returns every record referring to the given handle, ordered
// by referencing handle. The reference table is indexed on the referenced
// side, so this never scans the entity tables.
func (s *Store) Backlinks(ctx context.Context, handle string) ([]Backlink, error) {
	rows, err := s.query(ctx, `SELECT obj_handle, obj_class FROM reference
WHERE ref_handle = ? ORDER BY obj_handle, obj_class`, handle)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []Backlink
	for rows.Next() {
		var bl Backlink
		var class string
		if err := rows.Scan(&bl.Handle, &class); err != nil {
			return nil, fmt.Errorf("scan backlink: %w", err)
		}
		bl.Kind = schema.Kind(class)
		links = append(links, bl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backlinks: %w", err)
	}
	return links, nil
}

// References returns the outbound edges of one record, ordered by target.
func (s *Store) References(ctx context.Context, handle string, kind schema.Kind) ([]Backlink, error) {
	rows, err := s.query(ctx, `SELECT ref_handle, ref_class FROM reference
WHERE obj_handle = ? AND obj_class = ? ORDER BY ref_handle, ref_class`, handle, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []Backlink
	for rows.Next() {
		var r Backlink
		var class string
		if err := rows.Scan(&r.Handle, &class); err != nil {
			return nil, fmt.Errorf("scan reference: %w", err)
		}
		r.Kind = schema.Kind(class)
		refs = append(refs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate references: %w", err)
	}
	return refs, nil
}
