package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lazypower/larder/internal/engine"
)

// Run sources.
const (
	SourceFile      = "file"
	SourceChallenge = "challenge"
	SourceServer    = "server"
)

// Tally counts ledger entries by kind.
type Tally struct {
	Placed    int `json:"placed"`
	Moved     int `json:"moved"`
	PickedUp  int `json:"picked_up"`
	Discarded int `json:"discarded"`
}

// TallyActions counts actions by kind.
func TallyActions(actions []engine.Action) Tally {
	var t Tally
	for _, a := range actions {
		switch a.Kind {
		case engine.Place:
			t.Placed++
		case engine.Move:
			t.Moved++
		case engine.Pickup:
			t.PickedUp++
		case engine.Discard:
			t.Discarded++
		}
	}
	return t
}

// Run is one archived service. Times are unix milliseconds; pacing is in
// microseconds.
type Run struct {
	RunID      string `json:"run_id"`
	Source     string `json:"source"`
	TestID     string `json:"test_id,omitempty"`
	StartedAt  int64  `json:"started_at"`
	FinishedAt int64  `json:"finished_at"`
	Orders     int    `json:"orders"`
	RateMicros int64  `json:"rate_us"`
	MinMicros  int64  `json:"min_us"`
	MaxMicros  int64  `json:"max_us"`
	Tally      Tally  `json:"tally"`
	Verdict    string `json:"verdict,omitempty"`
}

const runColumns = `run_id, source, test_id, started_at, finished_at, orders,
	rate_us, min_us, max_us, placed, moved, picked_up, discarded, verdict`

// SaveRun archives run and its ledger in one transaction. The tally is
// recomputed from actions.
func (db *DB) SaveRun(run *Run, actions []engine.Action) error {
	if run.RunID == "" {
		return errors.New("save run: missing run id")
	}
	run.Tally = TallyActions(actions)

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin save run: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.RunID, run.Source, nullable(run.TestID), run.StartedAt, run.FinishedAt, run.Orders,
		run.RateMicros, run.MinMicros, run.MaxMicros,
		run.Tally.Placed, run.Tally.Moved, run.Tally.PickedUp, run.Tally.Discarded,
		nullable(run.Verdict))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO actions (run_id, seq, ts_us, order_id, kind, target)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare actions: %w", err)
	}
	defer stmt.Close()

	for i, a := range actions {
		if _, err := stmt.Exec(run.RunID, i, a.Timestamp, a.ItemID, string(a.Kind), string(a.Target)); err != nil {
			return fmt.Errorf("insert action %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

// SetVerdict records the grader's response for a run.
func (db *DB) SetVerdict(runID, verdict string) error {
	result, err := db.Exec(`UPDATE runs SET verdict = ? WHERE run_id = ?`, verdict, runID)
	if err != nil {
		return fmt.Errorf("set verdict: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("no run found for %s", runID)
	}
	return nil
}

// GetRun returns a run by id, or nil if there is none.
func (db *DB) GetRun(runID string) (*Run, error) {
	row := db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// ListRuns returns the most recent runs, newest first.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	rows, err := db.Query(`
		SELECT `+runColumns+` FROM runs
		ORDER BY started_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// RunActions returns a run's archived ledger in its original order.
func (db *DB) RunActions(runID string) ([]engine.Action, error) {
	rows, err := db.Query(`
		SELECT ts_us, order_id, kind, target FROM actions
		WHERE run_id = ? ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("run actions: %w", err)
	}
	defer rows.Close()

	var actions []engine.Action
	for rows.Next() {
		var a engine.Action
		var kind, target string
		if err := rows.Scan(&a.Timestamp, &a.ItemID, &kind, &target); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		a.Kind = engine.Kind(kind)
		a.Target = engine.Location(target)
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var r Run
	var testID, verdict sql.NullString
	err := s.Scan(&r.RunID, &r.Source, &testID, &r.StartedAt, &r.FinishedAt, &r.Orders,
		&r.RateMicros, &r.MinMicros, &r.MaxMicros,
		&r.Tally.Placed, &r.Tally.Moved, &r.Tally.PickedUp, &r.Tally.Discarded, &verdict)
	if err != nil {
		return nil, err
	}
	r.TestID = testID.String
	r.Verdict = verdict.String
	return &r, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
