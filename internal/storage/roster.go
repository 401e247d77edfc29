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

// SaveShift creates or updates a shift schedule.
func (s *SQLiteStorage) SaveShift(ctx context.Context, shift model.ShiftSchedule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateShift(&shift); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shifts (
			name, start_minute, end_minute, grace_minutes,
			departure_tolerance_minutes, max_auto_overtime_hours
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			start_minute = excluded.start_minute,
			end_minute = excluded.end_minute,
			grace_minutes = excluded.grace_minutes,
			departure_tolerance_minutes = excluded.departure_tolerance_minutes,
			max_auto_overtime_hours = excluded.max_auto_overtime_hours
	`, shift.Name, int(shift.Start), int(shift.End), shift.GracePeriodMinutes,
		shift.DepartureToleranceMinutes, shift.MaxAutoOvertimeHours)
	if err != nil {
		return fmt.Errorf("failed to save shift %s: %w", shift.Name, err)
	}
	return nil
}

// GetShifts returns every configured shift ordered by name.
func (s *SQLiteStorage) GetShifts(ctx context.Context) ([]model.ShiftSchedule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, start_minute, end_minute, grace_minutes,
			departure_tolerance_minutes, max_auto_overtime_hours
		FROM shifts
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query shifts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var shifts []model.ShiftSchedule
	for rows.Next() {
		var (
			shift      model.ShiftSchedule
			start, end int
		)
		if err := rows.Scan(&shift.Name, &start, &end, &shift.GracePeriodMinutes,
			&shift.DepartureToleranceMinutes, &shift.MaxAutoOvertimeHours); err != nil {
			return nil, fmt.Errorf("failed to scan shift: %w", err)
		}
		shift.Start, shift.End = model.ClockTime(start), model.ClockTime(end)
		shifts = append(shifts, shift)
	}
	return shifts, rows.Err()
}

// SaveEmployee creates or updates an employee. An assigned shift must
// already exist.
func (s *SQLiteStorage) SaveEmployee(ctx context.Context, employee model.Employee) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateEmployee(&employee); err != nil {
		return err
	}

	var shiftName any
	if employee.Shift != nil {
		shiftName = employee.Shift.Name
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if employee.Shift != nil {
			var exists bool
			err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM shifts WHERE name = ?)`,
				employee.Shift.Name).Scan(&exists)
			if err != nil {
				return fmt.Errorf("failed to check shift existence: %w", err)
			}
			if !exists {
				return fmt.Errorf("%w: shift %q for employee %s", common.ErrNotFound, employee.Shift.Name, employee.Code)
			}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO employees (code, name, department, is_field_department, time_zone, shift_name)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(code) DO UPDATE SET
				name = excluded.name,
				department = excluded.department,
				is_field_department = excluded.is_field_department,
				time_zone = excluded.time_zone,
				shift_name = excluded.shift_name
		`, employee.Code, employee.Name, employee.Department, employee.IsFieldDepartment,
			employee.TimeZone, shiftName)
		if err != nil {
			return fmt.Errorf("failed to save employee %s: %w", employee.Code, err)
		}
		return nil
	})
}

const employeeColumns = `
	e.code, e.name, e.department, e.is_field_department, e.time_zone,
	s.name, s.start_minute, s.end_minute, s.grace_minutes,
	s.departure_tolerance_minutes, s.max_auto_overtime_hours`

// GetEmployee returns one employee with its shift, or common.ErrNotFound.
func (s *SQLiteStorage) GetEmployee(ctx context.Context, code string) (*model.Employee, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(code, "code"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+employeeColumns+`
		FROM employees e
		LEFT JOIN shifts s ON s.name = e.shift_name
		WHERE e.code = ?
	`, code)

	employee, err := scanEmployee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("employee %s: %w", code, common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return employee, nil
}

// GetEmployees returns every employee ordered by code.
func (s *SQLiteStorage) GetEmployees(ctx context.Context) ([]model.Employee, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+employeeColumns+`
		FROM employees e
		LEFT JOIN shifts s ON s.name = e.shift_name
		ORDER BY e.code
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var employees []model.Employee
	for rows.Next() {
		employee, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, *employee)
	}
	return employees, rows.Err()
}

func scanEmployee(row rowScanner) (*model.Employee, error) {
	var (
		e             model.Employee
		shiftName     sql.NullString
		start, end    sql.NullInt64
		grace, depTol sql.NullInt64
		maxOvertime   sql.NullFloat64
	)
	if err := row.Scan(&e.Code, &e.Name, &e.Department, &e.IsFieldDepartment, &e.TimeZone,
		&shiftName, &start, &end, &grace, &depTol, &maxOvertime); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan employee: %w", err)
	}

	if shiftName.Valid {
		e.Shift = &model.ShiftSchedule{
			Name:                      shiftName.String,
			Start:                     model.ClockTime(start.Int64),
			End:                       model.ClockTime(end.Int64),
			GracePeriodMinutes:        int(grace.Int64),
			DepartureToleranceMinutes: int(depTol.Int64),
			MaxAutoOvertimeHours:      maxOvertime.Float64,
		}
	}
	return &e, nil
}

// SaveHoliday creates or renames a holiday.
func (s *SQLiteStorage) SaveHoliday(ctx context.Context, holiday model.Holiday) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if holiday.Date.IsZero() {
		return fmt.Errorf("%w: holiday date", ErrNilParameter)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO holidays (holiday_date, name) VALUES (?, ?)
		ON CONFLICT(holiday_date) DO UPDATE SET name = excluded.name
	`, formatDate(holiday.Date), holiday.Name)
	if err != nil {
		return fmt.Errorf("failed to save holiday: %w", err)
	}
	return nil
}

// IsHoliday reports whether the civil date is a holiday and its name.
func (s *SQLiteStorage) IsHoliday(ctx context.Context, date time.Time) (bool, string, error) {
	if err := validateContext(ctx); err != nil {
		return false, "", err
	}

	var name string
	err := s.db.QueryRowContext(ctx, `SELECT name FROM holidays WHERE holiday_date = ?`,
		formatDate(date)).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return false, "", nil
	}
	if err != nil {
		return false, "", fmt.Errorf("failed to check holiday: %w", err)
	}
	return true, name, nil
}
