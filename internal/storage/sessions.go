package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/attendance-engine/internal/model"
	"github.com/Veraticus/attendance-engine/internal/service"
)

// SaveDaySessions writes the sessions of one (employee, date) under the next
// processing version and points the day at it. Earlier versions stay in the
// table for audit; readers only ever see the latest. The assigned version is
// stamped onto the given sessions and returned.
func (s *SQLiteStorage) SaveDaySessions(ctx context.Context, key model.SessionKey, sessions []model.AttendanceSession) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateSessions(key, sessions); err != nil {
		return 0, err
	}

	var version int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var current int
		err := tx.QueryRowContext(ctx, `
			SELECT processing_version FROM session_days
			WHERE employee_code = ? AND work_date = ?
		`, key.EmployeeCode, formatDate(key.Date)).Scan(&current)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to read processing version: %w", err)
		}
		version = current + 1

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO attendance_sessions (
				employee_code, work_date, session_sequence, processing_version, run_id,
				check_in, check_out, check_out_source, arrival_status, departure_status,
				early_minutes, late_minutes, early_departure_minutes, late_departure_minutes,
				credited_hours, overtime_hours, overtime_approval_state, suggested_hours,
				score_deduction, activity_score, interim, notes, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		now := formatTime(time.Now())
		for i := range sessions {
			sess := &sessions[i]
			sess.ProcessingVersion = version

			interim, err := json.Marshal(nonNil(sess.Interim))
			if err != nil {
				return fmt.Errorf("failed to marshal interim punches: %w", err)
			}
			notes, err := json.Marshal(nonNil(sess.Notes))
			if err != nil {
				return fmt.Errorf("failed to marshal notes: %w", err)
			}

			_, err = stmt.ExecContext(ctx,
				sess.EmployeeCode, formatDate(sess.Date), sess.Sequence, version, sess.RunID,
				formatTime(sess.CheckIn), nullableTime(sess.CheckOut), string(sess.CheckOutSource),
				string(sess.ArrivalStatus), string(sess.DepartureStatus),
				sess.EarlyMinutes, sess.LateMinutes, sess.EarlyDepartureMinutes, sess.LateDepartureMinutes,
				sess.CreditedHours, sess.OvertimeHours, string(sess.OvertimeApprovalState), sess.SuggestedHours,
				sess.ScoreDeduction, sess.ActivityScore, string(interim), string(notes), now)
			if err != nil {
				return fmt.Errorf("failed to insert session %s #%d: %w", key, sess.Sequence, err)
			}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO session_days (employee_code, work_date, processing_version, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(employee_code, work_date) DO UPDATE SET
				processing_version = excluded.processing_version,
				updated_at = excluded.updated_at
		`, key.EmployeeCode, formatDate(key.Date), version, now)
		if err != nil {
			return fmt.Errorf("failed to advance processing version: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return version, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

const latestSessionsQuery = `
	SELECT a.employee_code, a.work_date, a.session_sequence, a.processing_version, a.run_id,
		a.check_in, a.check_out, a.check_out_source, a.arrival_status, a.departure_status,
		a.early_minutes, a.late_minutes, a.early_departure_minutes, a.late_departure_minutes,
		a.credited_hours, a.overtime_hours, a.overtime_approval_state, a.suggested_hours,
		a.score_deduction, a.activity_score, a.interim, a.notes
	FROM attendance_sessions a
	JOIN session_days d
		ON d.employee_code = a.employee_code
		AND d.work_date = a.work_date
		AND d.processing_version = a.processing_version`

// GetDaySessions returns the latest version of one day's sessions in
// sequence order. A day never processed yields an empty slice.
func (s *SQLiteStorage) GetDaySessions(ctx context.Context, key model.SessionKey) ([]model.AttendanceSession, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(key.EmployeeCode, "employeeCode"); err != nil {
		return nil, err
	}

	return s.querySessions(ctx, latestSessionsQuery+`
		WHERE a.employee_code = ? AND a.work_date = ?
		ORDER BY a.session_sequence
	`, key.EmployeeCode, formatDate(key.Date))
}

// GetSessions returns the latest sessions matching filter, ordered by date,
// employee and sequence.
func (s *SQLiteStorage) GetSessions(ctx context.Context, filter service.SessionFilter) ([]model.AttendanceSession, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateDateRange(filter.Start, filter.End); err != nil {
		return nil, err
	}

	query := latestSessionsQuery + `
		WHERE a.work_date >= ? AND a.work_date < ?`
	args := []any{formatDate(filter.Start), formatDate(filter.End)}

	if len(filter.EmployeeCodes) > 0 {
		query += ` AND a.employee_code IN (?` + strings.Repeat(",?", len(filter.EmployeeCodes)-1) + `)`
		for _, code := range filter.EmployeeCodes {
			args = append(args, code)
		}
	}
	if filter.ApprovalState != "" {
		query += ` AND a.overtime_approval_state = ?`
		args = append(args, string(filter.ApprovalState))
	}
	query += ` ORDER BY a.work_date, a.employee_code, a.session_sequence`

	return s.querySessions(ctx, query, args...)
}

// GetPendingApprovals returns sessions awaiting an overtime decision with a
// date in [start, end).
func (s *SQLiteStorage) GetPendingApprovals(ctx context.Context, start, end time.Time) ([]model.AttendanceSession, error) {
	return s.GetSessions(ctx, service.SessionFilter{
		Start:         start,
		End:           end,
		ApprovalState: model.OvertimePendingApproval,
	})
}

func (s *SQLiteStorage) querySessions(ctx context.Context, query string, args ...any) ([]model.AttendanceSession, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	sessions := []model.AttendanceSession{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return sessions, nil
}

func scanSession(row rowScanner) (*model.AttendanceSession, error) {
	var (
		sess                         model.AttendanceSession
		date, checkIn                string
		checkOut                     sql.NullString
		source, arrival, departure   string
		approval, interim, notesJSON string
	)
	err := row.Scan(
		&sess.EmployeeCode, &date, &sess.Sequence, &sess.ProcessingVersion, &sess.RunID,
		&checkIn, &checkOut, &source, &arrival, &departure,
		&sess.EarlyMinutes, &sess.LateMinutes, &sess.EarlyDepartureMinutes, &sess.LateDepartureMinutes,
		&sess.CreditedHours, &sess.OvertimeHours, &approval, &sess.SuggestedHours,
		&sess.ScoreDeduction, &sess.ActivityScore, &interim, &notesJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	if sess.Date, err = parseDate(date); err != nil {
		return nil, err
	}
	if sess.CheckIn, err = parseTime(checkIn); err != nil {
		return nil, err
	}
	if checkOut.Valid {
		out, err := parseTime(checkOut.String)
		if err != nil {
			return nil, err
		}
		sess.CheckOut = &out
	}
	if source != "" {
		sess.CheckOutSource = model.PunchSource(source)
	}
	sess.ArrivalStatus = model.ArrivalStatus(arrival)
	sess.DepartureStatus = model.DepartureStatus(departure)
	sess.OvertimeApprovalState = model.OvertimeApprovalState(approval)

	if err := json.Unmarshal([]byte(interim), &sess.Interim); err != nil {
		return nil, fmt.Errorf("failed to unmarshal interim punches: %w", err)
	}
	if err := json.Unmarshal([]byte(notesJSON), &sess.Notes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal notes: %w", err)
	}
	return &sess, nil
}

// GetDailyHours sums the latest credited hours per day for one employee in
// [from, to). Days without sessions are absent.
func (s *SQLiteStorage) GetDailyHours(ctx context.Context, employeeCode string, from, to time.Time) ([]model.DailyHours, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(employeeCode, "employeeCode"); err != nil {
		return nil, err
	}
	if err := validateDateRange(from, to); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT a.work_date, SUM(a.credited_hours)
		FROM attendance_sessions a
		JOIN session_days d
			ON d.employee_code = a.employee_code
			AND d.work_date = a.work_date
			AND d.processing_version = a.processing_version
		WHERE a.employee_code = ? AND a.work_date >= ? AND a.work_date < ?
		GROUP BY a.work_date
		ORDER BY a.work_date
	`, employeeCode, formatDate(from), formatDate(to))
	if err != nil {
		return nil, fmt.Errorf("failed to query daily hours: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var history []model.DailyHours
	for rows.Next() {
		var (
			day  string
			hour model.DailyHours
		)
		if err := rows.Scan(&day, &hour.Hours); err != nil {
			return nil, fmt.Errorf("failed to scan daily hours: %w", err)
		}
		if hour.Date, err = parseDate(day); err != nil {
			return nil, err
		}
		history = append(history, hour)
	}
	return history, rows.Err()
}
