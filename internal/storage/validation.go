// Package storage provides the SQLite persistence layer for punches, roster
// configuration, versioned attendance sessions and reconciliation runs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/attendance-engine/internal/model"
)

// Validation errors.
var (
	ErrNilContext       = errors.New("context cannot be nil")
	ErrEmptyString      = errors.New("string parameter cannot be empty")
	ErrNilParameter     = errors.New("parameter cannot be nil")
	ErrEmptySlice       = errors.New("slice cannot be empty")
	ErrInvalidDateRange = errors.New("start date must be before end date")
	ErrInvalidPunch     = errors.New("invalid punch")
	ErrInvalidShift     = errors.New("invalid shift")
	ErrInvalidEmployee  = errors.New("invalid employee")
	ErrInvalidSession   = errors.New("invalid attendance session")
	ErrInvalidCursor    = errors.New("invalid sync cursor")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateDateRange(start, end time.Time) error {
	if end.Before(start) {
		return fmt.Errorf("%w: end date %v is before start date %v", ErrInvalidDateRange, end, start)
	}
	return nil
}

// validatePunches validates a page of punches. An empty page is allowed:
// the cursor still has to advance past it.
func validatePunches(punches []model.RawPunchEvent) error {
	for i := range punches {
		if err := validatePunch(&punches[i]); err != nil {
			return fmt.Errorf("punch at index %d: %w", i, err)
		}
	}
	return nil
}

func validatePunch(p *model.RawPunchEvent) error {
	if strings.TrimSpace(p.ExternalID) == "" {
		return fmt.Errorf("%w: missing external ID", ErrInvalidPunch)
	}
	if strings.TrimSpace(p.EmployeeCode) == "" {
		return fmt.Errorf("%w: missing employee code", ErrInvalidPunch)
	}
	if p.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidPunch)
	}
	return nil
}

func validateCursor(c *model.SyncCursor) error {
	if strings.TrimSpace(c.Feed) == "" {
		return fmt.Errorf("%w: missing feed", ErrInvalidCursor)
	}
	if c.Page < 1 {
		return fmt.Errorf("%w: page %d", ErrInvalidCursor, c.Page)
	}
	return validateDateRange(c.WindowStart, c.WindowEnd)
}

func validateShift(shift *model.ShiftSchedule) error {
	if shift == nil {
		return fmt.Errorf("%w: shift", ErrNilParameter)
	}
	if strings.TrimSpace(shift.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidShift)
	}
	if shift.Start == shift.End {
		return fmt.Errorf("%w: %s has zero length", ErrInvalidShift, shift.Name)
	}
	if shift.Start < 0 || shift.Start >= 24*60 || shift.End < 0 || shift.End >= 24*60 {
		return fmt.Errorf("%w: %s clock times out of range", ErrInvalidShift, shift.Name)
	}
	if shift.MaxAutoOvertimeHours < 0 {
		return fmt.Errorf("%w: %s has negative overtime allowance", ErrInvalidShift, shift.Name)
	}
	return nil
}

func validateEmployee(employee *model.Employee) error {
	if employee == nil {
		return fmt.Errorf("%w: employee", ErrNilParameter)
	}
	if strings.TrimSpace(employee.Code) == "" {
		return fmt.Errorf("%w: missing code", ErrInvalidEmployee)
	}
	if employee.TimeZone != "" {
		if _, err := time.LoadLocation(employee.TimeZone); err != nil {
			return fmt.Errorf("%w: %s time zone %q: %v", ErrInvalidEmployee, employee.Code, employee.TimeZone, err)
		}
	}
	return nil
}

func validateSessions(key model.SessionKey, sessions []model.AttendanceSession) error {
	if err := validateString(key.EmployeeCode, "employeeCode"); err != nil {
		return err
	}
	if len(sessions) == 0 {
		return fmt.Errorf("%w: sessions", ErrEmptySlice)
	}
	for i := range sessions {
		s := &sessions[i]
		if s.EmployeeCode != key.EmployeeCode || !s.Date.Equal(key.Date) {
			return fmt.Errorf("%w: session %d belongs to %s, not %s", ErrInvalidSession, i, s.Key(), key)
		}
		if s.CheckIn.IsZero() {
			return fmt.Errorf("%w: session %d has no check-in", ErrInvalidSession, i)
		}
		if s.CreditedHours < 0 {
			return fmt.Errorf("%w: session %d has negative credited hours", ErrInvalidSession, i)
		}
	}
	return nil
}
