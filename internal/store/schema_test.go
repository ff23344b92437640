package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db")+"?_pragma=foreign_keys(1)")
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestInitSchema_Fresh(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := InitSchema(ctx, db); err != nil {
		t.Fatalf("InitSchema() error = %v", err)
	}
	version, err := getSchemaVersion(ctx, db)
	if err != nil {
		t.Fatalf("getSchemaVersion() error = %v", err)
	}
	if version != SchemaVersion {
		t.Errorf("version = %d, want %d", version, SchemaVersion)
	}

	for _, table := range []string{"runs", "run_variables", "schema_version"} {
		var name string
		err := db.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestInitSchema_Idempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := InitSchema(ctx, db); err != nil {
			t.Fatalf("InitSchema() pass %d error = %v", i, err)
		}
	}
}

func TestInitSchema_NewerVersion(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := InitSchema(ctx, db); err != nil {
		t.Fatalf("InitSchema() error = %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`, SchemaVersion+1); err != nil {
		t.Fatalf("insert version: %v", err)
	}
	err := InitSchema(ctx, db)
	if err == nil || !strings.Contains(err.Error(), "newer") {
		t.Errorf("InitSchema() error = %v, want a newer-version error", err)
	}
}

func TestInitSchema_OlderVersion(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := InitSchema(ctx, db); err != nil {
		t.Fatalf("InitSchema() error = %v", err)
	}
	if _, err := db.ExecContext(ctx, `UPDATE schema_version SET version = 0`); err != nil {
		t.Fatalf("update version: %v", err)
	}
	err := InitSchema(ctx, db)
	if err == nil || !strings.Contains(err.Error(), "not a run store version") {
		t.Errorf("InitSchema() error = %v, want an unsupported-version error", err)
	}
}

func TestValidateIntegrity(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if err := InitSchema(ctx, db); err != nil {
		t.Fatalf("InitSchema() error = %v", err)
	}
	if err := ValidateIntegrity(ctx, db); err != nil {
		t.Errorf("ValidateIntegrity() error = %v", err)
	}
}
