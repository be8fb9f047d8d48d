package schema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ancestore/ancestore/internal/conn"
	"github.com/ancestore/ancestore/internal/rewrite"
)

// Schema version tracking:
// 1 - Initial schema (entity tables, reference, metadata, shared tables)
// 2 - Added per-table change_time index
const currentSchemaVersion = 2

// versionKey is the metadata row holding the tenant's schema revision.
const versionKey = "schema_version"

// Manager creates and verifies one tenant's table set.
//
// Plain CREATE TABLE / CREATE INDEX statements are routed through the
// tenant's rewriter, the same path the external caller's statements take,
// so schema creation exercises the same scoping guarantees.
// Statement shapes outside the rewriter's vocabulary (virtual tables,
// triggers) are built pre-qualified and executed directly.
type Manager struct {
	conn *conn.Conn
	rw   *rewrite.Rewriter
	log  *slog.Logger
}

// NewManager creates a schema manager for one tenant connection.
func NewManager(c *conn.Conn, rw *rewrite.Rewriter, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{conn: c, rw: rw, log: log}
}

// Ensure idempotently creates the tenant's full table set and verifies the
// stored schema revision.
//
// For every entity kind it creates: handle primary key, the non-null
// json_data document column, the generated derived columns, change_time,
// and indexes (one per derived column plus one over the full document).
// It then creates the reference and metadata support tables, the shared
// unprefixed tables, and finally attempts the optional full-text indexes.
//
// A stored revision below the expected one is migrated forward (additive
// changes only). A stored revision above the expected one is fatal: the
// database was written by a newer version and must not be touched.
func (m *Manager) Ensure(ctx context.Context) error {
	if err := m.preflightVersion(ctx); err != nil {
		return err
	}

	for _, kind := range Kinds {
		for _, stmt := range EntityDDL(kind) {
			if err := m.execRewritten(ctx, stmt); err != nil {
				return fmt.Errorf("create %s: %w", kind, err)
			}
		}
	}

	for _, stmt := range SupportDDL() {
		if err := m.execRewritten(ctx, stmt); err != nil {
			return fmt.Errorf("create support tables: %w", err)
		}
	}

	// Shared tables pass through the rewriter unprefixed.
	for _, stmt := range SharedDDL() {
		if err := m.execRewritten(ctx, stmt); err != nil {
			return fmt.Errorf("create shared tables: %w", err)
		}
	}

	if err := m.checkVersion(ctx); err != nil {
		return err
	}

	m.ensureSearchIndexes(ctx)
	return nil
}

// execRewritten scopes one statement to the tenant and executes it.
func (m *Manager) execRewritten(ctx context.Context, stmt string) error {
	scoped, err := m.rw.Rewrite(stmt)
	if err != nil {
		return err
	}
	_, err = m.conn.Execute(ctx, scoped)
	return err
}

// EntityDDL renders the CREATE statements for one entity table.
func EntityDDL(kind Kind) []string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", kind)
	b.WriteString("    handle TEXT PRIMARY KEY,\n")
	b.WriteString("    json_data TEXT NOT NULL,\n")
	b.WriteString("    change_time INTEGER NOT NULL")
	for _, col := range DerivedColumns(kind) {
		fmt.Fprintf(&b, ",\n    %s %s GENERATED ALWAYS AS (json_extract(json_data, '%s')) VIRTUAL",
			col.Name, col.SQLType, col.JSONPath)
	}
	b.WriteString("\n)")

	stmts := []string{b.String()}
	for _, col := range DerivedColumns(kind) {
		stmts = append(stmts, fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s (%s)", kind, col.Name, kind, col.Name))
	}
	// Generic index over the full document for containment scans.
	stmts = append(stmts, fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS idx_%s_json_data ON %s (json_data)", kind, kind))
	stmts = append(stmts, fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS idx_%s_change_time ON %s (change_time)", kind, kind))
	return stmts
}

// SupportDDL renders the reference-edge and metadata tables.
func SupportDDL() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS reference (
    obj_handle TEXT NOT NULL,
    obj_class TEXT NOT NULL,
    ref_handle TEXT NOT NULL,
    ref_class TEXT NOT NULL,
    PRIMARY KEY (obj_handle, obj_class, ref_handle, ref_class)
)`,
		"CREATE INDEX IF NOT EXISTS idx_reference_ref ON reference (ref_handle, ref_class)",
		`CREATE TABLE IF NOT EXISTS metadata (
    setting TEXT PRIMARY KEY,
    value TEXT NOT NULL
)`,
	}
}

// SharedDDL renders the unprefixed cross-tenant tables.
func SharedDDL() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS surname (
    surname TEXT PRIMARY KEY,
    usage_count INTEGER NOT NULL DEFAULT 0
)`,
		`CREATE TABLE IF NOT EXISTS name_group (
    name TEXT PRIMARY KEY,
    grouping TEXT NOT NULL
)`,
	}
}

// preflightVersion rejects an ahead-of-build tenant before any DDL runs,
// so a fatal version mismatch leaves the database exactly as found. A
// fresh tenant has no metadata table yet and passes through.
func (m *Manager) preflightVersion(ctx context.Context) error {
	var n int
	row := m.conn.QueryRow(ctx,
		"SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?",
		m.rw.Prefix()+MetadataTable)
	if err := row.Scan(&n); err != nil {
		return fmt.Errorf("inspect schema: %w", err)
	}
	if n == 0 {
		return nil
	}

	stored, ok, err := m.storedVersion(ctx)
	if err != nil {
		return err
	}
	if ok && stored > currentSchemaVersion {
		return &VersionError{Stored: stored, Expected: currentSchemaVersion}
	}
	return nil
}

// storedVersion reads the tenant's recorded schema revision, reporting
// whether one exists.
func (m *Manager) storedVersion(ctx context.Context) (int, bool, error) {
	query, err := m.rw.Rewrite("SELECT value FROM metadata WHERE setting = ?")
	if err != nil {
		return 0, false, err
	}

	var stored int
	row := m.conn.QueryRow(ctx, query, versionKey)
	if err := row.Scan(&stored); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("read schema version: %w", err)
	}
	return stored, true, nil
}

// checkVersion compares the stored schema revision against the expected
// one, initializing it for a fresh tenant and migrating forward when the
// difference is purely additive.
func (m *Manager) checkVersion(ctx context.Context) error {
	stored, ok, err := m.storedVersion(ctx)
	if err != nil {
		return err
	}
	if !ok {
		// Fresh tenant: record the current revision.
		insert, rerr := m.rw.Rewrite("INSERT INTO metadata (setting, value) VALUES (?, ?) ON CONFLICT (setting) DO NOTHING")
		if rerr != nil {
			return rerr
		}
		if _, err := m.conn.Execute(ctx, insert, versionKey, fmt.Sprint(currentSchemaVersion)); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return nil
	}

	switch {
	case stored == currentSchemaVersion:
		return nil
	case stored > currentSchemaVersion:
		return &VersionError{Stored: stored, Expected: currentSchemaVersion}
	default:
		return m.migrate(ctx, stored)
	}
}

// migrate applies additive migrations from the stored revision forward.
func (m *Manager) migrate(ctx context.Context, stored int) error {
	if stored < 2 {
		if err := m.migrateToV2(ctx); err != nil {
			return err
		}
	}

	update, err := m.rw.Rewrite("UPDATE metadata SET value = ? WHERE setting = ?")
	if err != nil {
		return err
	}
	if _, err := m.conn.Execute(ctx, update, fmt.Sprint(currentSchemaVersion), versionKey); err != nil {
		return fmt.Errorf("update schema version: %w", err)
	}
	return nil
}

// migrateToV2 adds the change_time index for databases created at v1.
// New databases get it from EntityDDL, but existing tenants need it added
// explicitly. CREATE INDEX IF NOT EXISTS is a no-op when present.
func (m *Manager) migrateToV2(ctx context.Context) error {
	for _, kind := range Kinds {
		stmt := fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS idx_%s_change_time ON %s (change_time)", kind, kind)
		if err := m.execRewritten(ctx, stmt); err != nil {
			return fmt.Errorf("migrate to v2: %w", err)
		}
	}
	return nil
}

// ensureSearchIndexes attempts the optional FTS5 trigram index per entity
// table. The FTS module and trigram tokenizer are compile-time options of
// the SQLite build; when unavailable the index is skipped with a warning
// and base functionality continues unchanged.
//
// The virtual table is external-content over the entity table and kept in
// step by triggers, so the index, like the derived columns, is maintained
// by the engine rather than by application writes.
func (m *Manager) ensureSearchIndexes(ctx context.Context) {
	prefix := m.rw.Prefix()
	for _, kind := range Kinds {
		table := prefix + string(kind)
		fts := table + "_fts"

		stmt := fmt.Sprintf(
			"CREATE VIRTUAL TABLE IF NOT EXISTS %s USING fts5(json_data, content='%s', content_rowid='rowid', tokenize='trigram')",
			fts, table)
		if _, err := m.conn.Execute(ctx, stmt); err != nil {
			m.log.Warn("full-text index unavailable, continuing without it",
				"table", table, "err", err)
			return
		}

		triggers := []string{
			fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS %s_ai AFTER INSERT ON %s BEGIN
    INSERT INTO %s (rowid, json_data) VALUES (new.rowid, new.json_data);
END`, fts, table, fts),
			fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS %s_ad AFTER DELETE ON %s BEGIN
    INSERT INTO %s (%s, rowid, json_data) VALUES ('delete', old.rowid, old.json_data);
END`, fts, table, fts, fts),
			fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS %s_au AFTER UPDATE ON %s BEGIN
    INSERT INTO %s (%s, rowid, json_data) VALUES ('delete', old.rowid, old.json_data);
    INSERT INTO %s (rowid, json_data) VALUES (new.rowid, new.json_data);
END`, fts, table, fts, fts, fts),
		}
		for _, trg := range triggers {
			if _, err := m.conn.Execute(ctx, trg); err != nil {
				m.log.Warn("full-text trigger creation failed, continuing without index",
					"table", table, "err", err)
				return
			}
		}
	}
}
