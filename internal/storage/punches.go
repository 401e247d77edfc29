package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/attendance-engine/internal/common"
	"github.com/Veraticus/attendance-engine/internal/model"
	"github.com/Veraticus/attendance-engine/internal/service"
)

// SavePunchPage stores one feed page and the cursor that follows it in a
// single transaction. Punches whose external ID is already stored are
// skipped, so replaying a page never duplicates a punch.
func (s *SQLiteStorage) SavePunchPage(ctx context.Context, punches []model.RawPunchEvent, cursor model.SyncCursor) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validatePunches(punches); err != nil {
		return 0, err
	}
	if err := validateCursor(&cursor); err != nil {
		return 0, err
	}

	inserted := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR IGNORE INTO raw_punches (
				external_id, employee_code, punched_at, terminal_id,
				punch_state, source, feed, ingested_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		now := formatTime(time.Now())
		for _, p := range punches {
			res, err := stmt.ExecContext(ctx,
				p.ExternalID, p.EmployeeCode, formatTime(p.Timestamp), p.TerminalID,
				string(p.State), string(p.Source), cursor.Feed, now)
			if err != nil {
				return fmt.Errorf("failed to insert punch %s: %w", p.ExternalID, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to read affected rows: %w", err)
			}
			inserted += int(n)
		}

		return saveCursorTx(ctx, tx, cursor)
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func saveCursorTx(ctx context.Context, q queryable, c model.SyncCursor) error {
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now()
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO sync_cursors (
			feed, window_start, window_end, page, last_external_id,
			records_processed, records_total, completed, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(feed, window_start, window_end) DO UPDATE SET
			page = excluded.page,
			last_external_id = excluded.last_external_id,
			records_processed = excluded.records_processed,
			records_total = excluded.records_total,
			completed = excluded.completed,
			updated_at = excluded.updated_at
	`, c.Feed, formatTime(c.WindowStart), formatTime(c.WindowEnd), c.Page, c.LastExternalID,
		c.RecordsProcessed, c.RecordsTotal, c.Completed, formatTime(c.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save sync cursor: %w", err)
	}
	return nil
}

// GetSyncCursor returns the cursor for a feed window, or common.ErrNotFound.
func (s *SQLiteStorage) GetSyncCursor(ctx context.Context, feed string, start, end time.Time) (*model.SyncCursor, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(feed, "feed"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT feed, window_start, window_end, page, last_external_id,
			records_processed, records_total, completed, updated_at
		FROM sync_cursors
		WHERE feed = ? AND window_start = ? AND window_end = ?
	`, feed, formatTime(start), formatTime(end))

	c, err := scanCursor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sync cursor %s [%s, %s): %w", feed,
			start.Format(time.RFC3339), end.Format(time.RFC3339), common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListSyncCursors returns every cursor of a feed, newest window first.
func (s *SQLiteStorage) ListSyncCursors(ctx context.Context, feed string) ([]model.SyncCursor, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT feed, window_start, window_end, page, last_external_id,
			records_processed, records_total, completed, updated_at
		FROM sync_cursors
		WHERE feed = ? OR ? = ''
		ORDER BY window_start DESC
	`, feed, feed)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync cursors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var cursors []model.SyncCursor
	for rows.Next() {
		c, err := scanCursor(rows)
		if err != nil {
			return nil, err
		}
		cursors = append(cursors, *c)
	}
	return cursors, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCursor(row rowScanner) (*model.SyncCursor, error) {
	var (
		c                     model.SyncCursor
		start, end, updatedAt string
	)
	if err := row.Scan(&c.Feed, &start, &end, &c.Page, &c.LastExternalID,
		&c.RecordsProcessed, &c.RecordsTotal, &c.Completed, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan sync cursor: %w", err)
	}

	var err error
	if c.WindowStart, err = parseTime(start); err != nil {
		return nil, err
	}
	if c.WindowEnd, err = parseTime(end); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetPunches returns the punches in [filter.Start, filter.End) ordered by
// employee and time.
func (s *SQLiteStorage) GetPunches(ctx context.Context, filter service.PunchFilter) ([]model.RawPunchEvent, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateDateRange(filter.Start, filter.End); err != nil {
		return nil, err
	}

	query := `
		SELECT external_id, employee_code, punched_at, terminal_id, punch_state, source
		FROM raw_punches
		WHERE punched_at >= ? AND punched_at < ?`
	args := []any{formatTime(filter.Start), formatTime(filter.End)}

	if len(filter.EmployeeCodes) > 0 {
		query += ` AND employee_code IN (?` + strings.Repeat(",?", len(filter.EmployeeCodes)-1) + `)`
		for _, code := range filter.EmployeeCodes {
			args = append(args, code)
		}
	}
	query += ` ORDER BY employee_code, punched_at, external_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query punches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var punches []model.RawPunchEvent
	for rows.Next() {
		var (
			p             model.RawPunchEvent
			at            string
			state, source string
		)
		if err := rows.Scan(&p.ExternalID, &p.EmployeeCode, &at, &p.TerminalID, &state, &source); err != nil {
			return nil, fmt.Errorf("failed to scan punch: %w", err)
		}
		if p.Timestamp, err = parseTime(at); err != nil {
			return nil, err
		}
		p.State = model.ParsePunchState(state)
		p.Source = model.ParsePunchSource(source)
		punches = append(punches, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate punches: %w", err)
	}
	return punches, nil
}

// CountPunches returns the number of stored punches.
func (s *SQLiteStorage) CountPunches(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM raw_punches`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count punches: %w", err)
	}
	return count, nil
}
