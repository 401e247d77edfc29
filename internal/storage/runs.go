package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/attendance-engine/internal/common"
	"github.com/Veraticus/attendance-engine/internal/model"
)

// SaveRun creates or updates a reconciliation run.
func (s *SQLiteStorage) SaveRun(ctx context.Context, run model.ReconcileRun) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(run.ID, "run.ID"); err != nil {
		return err
	}

	var finished any
	if !run.FinishedAt.IsZero() {
		finished = formatTime(run.FinishedAt)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reconcile_runs (
			id, window_start, window_end, started_at, finished_at,
			keys_total, sessions_saved, keys_failed
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			finished_at = excluded.finished_at,
			keys_total = excluded.keys_total,
			sessions_saved = excluded.sessions_saved,
			keys_failed = excluded.keys_failed
	`, run.ID, formatDate(run.WindowStart), formatDate(run.WindowEnd), formatTime(run.StartedAt), finished,
		run.Keys, run.Sessions, run.Failed)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun returns a run by ID, or common.ErrNotFound.
func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (*model.ReconcileRun, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	var (
		run                    model.ReconcileRun
		windowStart, windowEnd string
		started                string
		finished               sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, window_start, window_end, started_at, finished_at,
			keys_total, sessions_saved, keys_failed
		FROM reconcile_runs WHERE id = ?
	`, id).Scan(&run.ID, &windowStart, &windowEnd, &started, &finished, &run.Keys, &run.Sessions, &run.Failed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	if run.WindowStart, err = parseDate(windowStart); err != nil {
		return nil, err
	}
	if run.WindowEnd, err = parseDate(windowEnd); err != nil {
		return nil, err
	}
	if run.StartedAt, err = parseTime(started); err != nil {
		return nil, err
	}
	if finished.Valid {
		if run.FinishedAt, err = parseTime(finished.String); err != nil {
			return nil, err
		}
	}
	return &run, nil
}

// SaveRunFailure records a key that failed during a run.
func (s *SQLiteStorage) SaveRunFailure(ctx context.Context, failure model.RunFailure) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(failure.RunID, "failure.RunID"); err != nil {
		return err
	}
	if err := validateString(failure.EmployeeCode, "failure.EmployeeCode"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO run_failures (run_id, employee_code, work_date, error, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id, employee_code, work_date) DO UPDATE SET
			error = excluded.error,
			created_at = excluded.created_at
	`, failure.RunID, failure.EmployeeCode, formatDate(failure.Date), failure.Error, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to save run failure: %w", err)
	}
	return nil
}

// GetRunFailures returns the failed keys of a run ordered by date and employee.
func (s *SQLiteStorage) GetRunFailures(ctx context.Context, runID string) ([]model.RunFailure, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(runID, "runID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, employee_code, work_date, error
		FROM run_failures
		WHERE run_id = ?
		ORDER BY work_date, employee_code
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run failures: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var failures []model.RunFailure
	for rows.Next() {
		var (
			f    model.RunFailure
			date string
		)
		if err := rows.Scan(&f.RunID, &f.EmployeeCode, &date, &f.Error); err != nil {
			return nil, fmt.Errorf("failed to scan run failure: %w", err)
		}
		if f.Date, err = parseDate(date); err != nil {
			return nil, err
		}
		failures = append(failures, f)
	}
	return failures, rows.Err()
}
