package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ancestore/ancestore/internal/serial"
)

// Shared tables are the one place mutation crosses tenants: every write
// here uses insert-or-update-on-conflict so two tenants committing the
// same row concurrently never silently lose one side's update; the last
// committed write wins.

// SetNameGroup maps a name to its grouping, shared across all tenants.
func (s *Store) SetNameGroup(ctx context.Context, name, grouping string) error {
	_, err := s.exec(ctx, `INSERT INTO name_group (name, grouping) VALUES (?, ?)
ON CONFLICT (name) DO UPDATE SET grouping = excluded.grouping`,
		serial.NormalizeName(name), grouping)
	if err != nil {
		return fmt.Errorf("set name group %q: %w", name, err)
	}
	return nil
}

// NameGroup returns the grouping for a name, with defined absence.
func (s *Store) NameGroup(ctx context.Context, name string) (string, bool, error) {
	row, err := s.queryRow(ctx, "SELECT grouping FROM name_group WHERE name = ?",
		serial.NormalizeName(name))
	if err != nil {
		return "", false, err
	}

	var grouping string
	if err := row.Scan(&grouping); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read name group %q: %w", name, err)
	}
	return grouping, true, nil
}

// Surnames returns the shared surname index, ordered.
func (s *Store) Surnames(ctx context.Context) ([]string, error) {
	rows, err := s.query(ctx, "SELECT surname FROM surname ORDER BY surname")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan surname: %w", err)
		}
		names = append(names, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate surnames: %w", err)
	}
	return names, nil
}

// recordSurnames upserts every surname of a committed person into the
// shared surname index. Names are NFC-normalized so two encodings of the
// same surname share one row across tenants.
func (s *Store) recordSurnames(ctx context.Context, doc serial.Document) error {
	for _, name := range doc.Strings("$.primary_name.surname_list[*].surname") {
		_, err := s.exec(ctx, `INSERT INTO surname (surname, usage_count) VALUES (?, 1)
ON CONFLICT (surname) DO UPDATE SET usage_count = usage_count + 1`,
			serial.NormalizeName(name))
		if err != nil {
			return fmt.Errorf("record surname %q: %w", name, err)
		}
	}
	return nil
}
