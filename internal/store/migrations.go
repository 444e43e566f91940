package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "runs: one row per simulated service",
		SQL: `
CREATE TABLE runs (
    id           INTEGER PRIMARY KEY,
    run_id       TEXT NOT NULL UNIQUE,
    source       TEXT NOT NULL CHECK (source IN ('file', 'challenge', 'server')),
    test_id      TEXT,
    started_at   INTEGER NOT NULL,
    finished_at  INTEGER NOT NULL,
    orders       INTEGER NOT NULL DEFAULT 0,

    -- Pacing, microseconds
    rate_us      INTEGER NOT NULL DEFAULT 0,
    min_us       INTEGER NOT NULL DEFAULT 0,
    max_us       INTEGER NOT NULL DEFAULT 0,

    -- Ledger tallies
    placed       INTEGER NOT NULL DEFAULT 0,
    moved        INTEGER NOT NULL DEFAULT 0,
    picked_up    INTEGER NOT NULL DEFAULT 0,
    discarded    INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX idx_runs_started_at ON runs(started_at DESC);
`,
	},
	{
		Version:     2,
		Description: "actions: archived ledger entries per run",
		SQL: `
CREATE TABLE actions (
    id          INTEGER PRIMARY KEY,
    run_id      TEXT NOT NULL,
    seq         INTEGER NOT NULL,
    ts_us       INTEGER NOT NULL,
    order_id    TEXT NOT NULL,
    kind        TEXT NOT NULL CHECK (kind IN ('place', 'move', 'pickup', 'discard')),
    target      TEXT NOT NULL CHECK (target IN ('heater', 'cooler', 'freezer', 'shelf')),

    UNIQUE (run_id, seq),
    FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
);

CREATE INDEX idx_actions_order ON actions(order_id);
`,
	},
	{
		Version:     3,
		Description: "runs: grader verdict",
		SQL:         `ALTER TABLE runs ADD COLUMN verdict TEXT;`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
