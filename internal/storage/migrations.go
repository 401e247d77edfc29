package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 5

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Raw punches and feed cursors",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS raw_punches (
					external_id TEXT PRIMARY KEY,
					employee_code TEXT NOT NULL,
					punched_at TEXT NOT NULL,
					terminal_id TEXT NOT NULL DEFAULT '',
					punch_state TEXT NOT NULL,
					source TEXT NOT NULL DEFAULT 'biometric',
					feed TEXT NOT NULL DEFAULT '',
					ingested_at TEXT NOT NULL
				)`,
				`CREATE INDEX idx_raw_punches_employee_time ON raw_punches(employee_code, punched_at)`,
				`CREATE INDEX idx_raw_punches_time ON raw_punches(punched_at)`,

				`CREATE TABLE IF NOT EXISTS sync_cursors (
					feed TEXT NOT NULL,
					window_start TEXT NOT NULL,
					window_end TEXT NOT NULL,
					page INTEGER NOT NULL DEFAULT 1,
					last_external_id TEXT NOT NULL DEFAULT '',
					records_processed INTEGER NOT NULL DEFAULT 0,
					records_total INTEGER NOT NULL DEFAULT 0,
					completed INTEGER NOT NULL DEFAULT 0,
					updated_at TEXT NOT NULL,
					PRIMARY KEY (feed, window_start, window_end)
				)`,
			)
		},
	},
	{
		Version:     2,
		Description: "Shift, employee and holiday roster",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS shifts (
					name TEXT PRIMARY KEY,
					start_minute INTEGER NOT NULL,
					end_minute INTEGER NOT NULL,
					grace_minutes INTEGER NOT NULL DEFAULT 30,
					departure_tolerance_minutes INTEGER NOT NULL DEFAULT 30,
					max_auto_overtime_hours REAL NOT NULL DEFAULT 3
				)`,
				`CREATE TABLE IF NOT EXISTS employees (
					code TEXT PRIMARY KEY,
					name TEXT NOT NULL DEFAULT '',
					department TEXT NOT NULL DEFAULT '',
					is_field_department INTEGER NOT NULL DEFAULT 0,
					time_zone TEXT NOT NULL DEFAULT '',
					shift_name TEXT REFERENCES shifts(name)
				)`,
				`CREATE INDEX idx_employees_shift ON employees(shift_name)`,
				`CREATE TABLE IF NOT EXISTS holidays (
					holiday_date TEXT PRIMARY KEY,
					name TEXT NOT NULL DEFAULT ''
				)`,
			)
		},
	},
	{
		Version:     3,
		Description: "Versioned attendance sessions",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`CREATE TABLE IF NOT EXISTS attendance_sessions (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					employee_code TEXT NOT NULL,
					work_date TEXT NOT NULL,
					session_sequence INTEGER NOT NULL,
					processing_version INTEGER NOT NULL,
					check_in TEXT NOT NULL,
					check_out TEXT,
					check_out_source TEXT NOT NULL DEFAULT '',
					arrival_status TEXT NOT NULL,
					departure_status TEXT NOT NULL,
					early_minutes INTEGER NOT NULL DEFAULT 0,
					late_minutes INTEGER NOT NULL DEFAULT 0,
					early_departure_minutes INTEGER NOT NULL DEFAULT 0,
					late_departure_minutes INTEGER NOT NULL DEFAULT 0,
					credited_hours REAL NOT NULL,
					overtime_hours REAL NOT NULL DEFAULT 0,
					overtime_approval_state TEXT NOT NULL DEFAULT 'none',
					suggested_hours REAL NOT NULL DEFAULT 0,
					interim TEXT NOT NULL DEFAULT '[]',
					notes TEXT NOT NULL DEFAULT '[]',
					created_at TEXT NOT NULL,
					UNIQUE (employee_code, work_date, session_sequence, processing_version)
				)`,
				`CREATE INDEX idx_sessions_day ON attendance_sessions(employee_code, work_date, processing_version)`,
				`CREATE INDEX idx_sessions_approval ON attendance_sessions(overtime_approval_state, work_date)`,

				// Points at the processing version readers must use for a day.
				`CREATE TABLE IF NOT EXISTS session_days (
					employee_code TEXT NOT NULL,
					work_date TEXT NOT NULL,
					processing_version INTEGER NOT NULL,
					updated_at TEXT NOT NULL,
					PRIMARY KEY (employee_code, work_date)
				)`,
			)
		},
	},
	{
		Version:     4,
		Description: "Punch-out scoring columns",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`ALTER TABLE attendance_sessions ADD COLUMN score_deduction REAL NOT NULL DEFAULT 0`,
				`ALTER TABLE attendance_sessions ADD COLUMN activity_score REAL NOT NULL DEFAULT 0`,
			)
		},
	},
	{
		Version:     5,
		Description: "Reconciliation runs and failures",
		Up: func(tx *sql.Tx) error {
			return execAll(tx,
				`ALTER TABLE attendance_sessions ADD COLUMN run_id TEXT NOT NULL DEFAULT ''`,
				`CREATE TABLE IF NOT EXISTS reconcile_runs (
					id TEXT PRIMARY KEY,
					window_start TEXT NOT NULL,
					window_end TEXT NOT NULL,
					started_at TEXT NOT NULL,
					finished_at TEXT,
					keys_total INTEGER NOT NULL DEFAULT 0,
					sessions_saved INTEGER NOT NULL DEFAULT 0,
					keys_failed INTEGER NOT NULL DEFAULT 0
				)`,
				`CREATE TABLE IF NOT EXISTS run_failures (
					run_id TEXT NOT NULL REFERENCES reconcile_runs(id),
					employee_code TEXT NOT NULL,
					work_date TEXT NOT NULL,
					error TEXT NOT NULL,
					created_at TEXT NOT NULL,
					PRIMARY KEY (run_id, employee_code, work_date)
				)`,
			)
		},
	},
}

func execAll(tx *sql.Tx, queries ...string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	// Get current version
	currentVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	// Apply migrations
	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		// Update version
		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	// Verify we're at the expected schema version
	finalVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
