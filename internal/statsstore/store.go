// Package statsstore persists periodic snapshots of the Task Manager's
// statistics to an embedded SQLite database, giving operator tooling a
// durable history of task activity across
// process restarts (the in-memory statistics themselves are explicitly
// non-durable per spec §1's Non-goals — this is an optional, separate
// durability layer, not a replacement). Grounded on the teacher's
// modernc.org/sqlite usage pattern (internal/store/sqlite.go-style:
// sql.Open("sqlite", path), plain SQL, no ORM) as also shown in the pack's
// nevindra-oasis/memory/sqlite/sqlite.go.
package statsstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/guidemcp/gateway/internal/taskmanager"
)

// Store writes task-statistics snapshots to a SQLite file. The zero value
// is not usable; construct with Open.
type Store struct {
	db *sql.DB
}

// Open creates (if needed) and opens the snapshot database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("statsstore: open %s: %w", path, err)
	}

	const schema = `CREATE TABLE IF NOT EXISTS task_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		taken_at INTEGER NOT NULL,
		task_name TEXT NOT NULL,
		task_type TEXT NOT NULL,
		run_count INTEGER NOT NULL,
		peak_count INTEGER NOT NULL,
		total_timer_runs INTEGER NOT NULL
	)`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("statsstore: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Snapshot records one row per currently-known task in stats, stamped
// with takenAt.
func (s *Store) Snapshot(ctx context.Context, takenAt time.Time, stats taskmanager.Statistics) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("statsstore: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO task_snapshots
		(taken_at, task_name, task_type, run_count, peak_count, total_timer_runs)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("statsstore: prepare insert: %w", err)
	}
	defer stmt.Close()

	// Running already includes timer tasks, so exact repeats are skipped.
	seen := map[taskmanager.TaskStats]bool{}
	all := append(append([]taskmanager.TaskStats{}, stats.Running...), stats.Timers...)
	for _, ts := range all {
		if seen[ts] {
			continue
		}
		seen[ts] = true
		if _, err := stmt.ExecContext(ctx, takenAt.Unix(), ts.Name, ts.Type, ts.RunCount, stats.PeakCount, stats.TotalTimerRuns); err != nil {
			return fmt.Errorf("statsstore: insert snapshot for %s: %w", ts.Name, err)
		}
	}
	return tx.Commit()
}

// TaskRunHistory returns (takenAt, runCount) pairs recorded for taskName,
// oldest first. The doctor command does not read it; it reports only the
// store's path.
func (s *Store) TaskRunHistory(ctx context.Context, taskName string) ([]RunPoint, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT taken_at, run_count FROM task_snapshots
		WHERE task_name = ? ORDER BY taken_at ASC`, taskName)
	if err != nil {
		return nil, fmt.Errorf("statsstore: query history for %s: %w", taskName, err)
	}
	defer rows.Close()

	var points []RunPoint
	for rows.Next() {
		var takenAtUnix int64
		var runCount int
		if err := rows.Scan(&takenAtUnix, &runCount); err != nil {
			return nil, fmt.Errorf("statsstore: scan history row: %w", err)
		}
		points = append(points, RunPoint{TakenAt: time.Unix(takenAtUnix, 0).UTC(), RunCount: runCount})
	}
	return points, rows.Err()
}

// RunPoint is one recorded (time, run_count) observation for a task.
type RunPoint struct {
	TakenAt  time.Time
	RunCount int
}
