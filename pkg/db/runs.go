package db

import (
	"fmt"
	"time"
)

// Run is one recorded pipeline run.
type Run struct {
	ID               int64
	StartedAt        time.Time
	FinishedAt       time.Time
	Status           string
	Batches          int
	Discovered       int
	Extracted        int
	Dropped          int
	Stored           int
	Hits             int
	DispatchFailures int
}

// RunTotals are the counters written when a run finishes.
type RunTotals struct {
	Batches          int
	Discovered       int
	Extracted        int
	Dropped          int
	Stored           int
	Hits             int
	DispatchFailures int
}

// StartRun inserts a new run row and returns its ID.
func (db *DB) StartRun() (int64, error) {
	result, err := db.Exec(`INSERT INTO runs (status) VALUES ('running')`)
	if err != nil {
		return 0, fmt.Errorf("failed to start run: %w", err)
	}
	runID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run ID: %w", err)
	}
	return runID, nil
}

// FinishRun closes a run with its final status and counters.
func (db *DB) FinishRun(runID int64, status string, totals RunTotals) error {
	_, err := db.Exec(`
		UPDATE runs
		SET finished_at = CURRENT_TIMESTAMP, status = ?,
		    batches = ?, discovered = ?, extracted = ?, dropped = ?,
		    stored = ?, hits = ?, dispatch_failures = ?
		WHERE run_id = ?
	`, status, totals.Batches, totals.Discovered, totals.Extracted, totals.Dropped,
		totals.Stored, totals.Hits, totals.DispatchFailures, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// RecordItemEvent records one per-item outcome (extraction drop,
// dispatch failure, hit) for a run.
func (db *DB) RecordItemEvent(runID int64, url, phase, errorType string, success bool) error {
	_, err := db.Exec(`
		INSERT INTO item_events (run_id, url, phase, error_type, success)
		VALUES (?, ?, ?, ?, ?)
	`, runID, url, phase, errorType, success)
	if err != nil {
		return fmt.Errorf("failed to record item event: %w", err)
	}
	return nil
}

// RecentRuns returns the newest runs, most recent first.
func (db *DB) RecentRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := db.Query(`
		SELECT run_id, started_at, COALESCE(finished_at, started_at), status,
		       batches, discovered, extracted, dropped, stored, hits, dispatch_failures
		FROM runs
		ORDER BY run_id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Status,
			&r.Batches, &r.Discovered, &r.Extracted, &r.Dropped,
			&r.Stored, &r.Hits, &r.DispatchFailures); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
