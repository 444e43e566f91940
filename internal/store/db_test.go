package store

import (
	"path/filepath"
	"testing"
)

func TestOpenMemory(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	if db.Path != ":memory:" {
		t.Errorf("Path = %q, want :memory:", db.Path)
	}
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "larder.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if db.Path != path {
		t.Errorf("Path = %q, want %q", db.Path, path)
	}
}

func TestSchemaVersion(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	v, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != 3 {
		t.Errorf("SchemaVersion = %d, want 3", v)
	}
}

func TestTablesExist(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	for _, table := range []string{"schema_versions", "runs", "actions"} {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}
}

func TestRunsConstraints(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	_, err = db.Exec(`
		INSERT INTO runs (run_id, source, started_at, finished_at)
		VALUES ('r1', 'file', 1000, 2000)
	`)
	if err != nil {
		t.Fatalf("valid insert failed: %v", err)
	}

	_, err = db.Exec(`
		INSERT INTO runs (run_id, source, started_at, finished_at)
		VALUES ('r2', 'carrier-pigeon', 1000, 2000)
	`)
	if err == nil {
		t.Error("expected error for invalid source, got nil")
	}
}

func TestActionsConstraints(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(`INSERT INTO runs (run_id, source, started_at, finished_at) VALUES ('r1', 'file', 1, 2)`); err != nil {
		t.Fatalf("insert run: %v", err)
	}

	tests := []struct {
		name string
		sql  string
	}{
		{"bad kind", `INSERT INTO actions (run_id, seq, ts_us, order_id, kind, target) VALUES ('r1', 0, 1, 'a', 'steal', 'shelf')`},
		{"bad target", `INSERT INTO actions (run_id, seq, ts_us, order_id, kind, target) VALUES ('r1', 0, 1, 'a', 'place', 'oven')`},
		{"unknown run", `INSERT INTO actions (run_id, seq, ts_us, order_id, kind, target) VALUES ('nope', 0, 1, 'a', 'place', 'shelf')`},
	}
	for _, tt := range tests {
		if _, err := db.Exec(tt.sql); err == nil {
			t.Errorf("%s: expected error, got nil", tt.name)
		}
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	if err := db.migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}

	v, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != 3 {
		t.Errorf("SchemaVersion after re-migrate = %d, want 3", v)
	}
}

func TestForeignKeysEnabled(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("PRAGMA foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d, want 1", fk)
	}
}
