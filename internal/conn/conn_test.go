package conn

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	c, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer c.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_AppliesPragmas(t *testing.T) {
	c, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer c.Close()

	var mode string
	row := c.QueryRow(context.Background(), "PRAGMA journal_mode")
	if err := row.Scan(&mode); err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}

	var fk int
	row = c.QueryRow(context.Background(), "PRAGMA foreign_keys")
	if err := row.Scan(&fk); err != nil {
		t.Fatalf("query foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d, want 1", fk)
	}
}

func TestOpen_UnreachablePathFails(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "no", "such", "dir", "test.db"))
	if err == nil {
		t.Fatal("Open() should fail for an unreachable path")
	}
	if !IsConnectionError(err) {
		t.Errorf("want ConnectionError, got %v", err)
	}
}

func TestClose_Idempotent(t *testing.T) {
	c, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("first Close() failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close() failed: %v", err)
	}
}
