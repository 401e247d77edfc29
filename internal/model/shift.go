package model

import (
	"fmt"
	"time"
)

// DateLayout is the canonical textual form of a calendar day.
const DateLayout = "2006-01-02"

// ClockTime is a wall-clock time of day expressed in minutes after midnight.
type ClockTime int

// NewClockTime builds a ClockTime from hours and minutes.
func NewClockTime(hour, minute int) ClockTime {
	return ClockTime(hour*60 + minute)
}

// ParseClockTime parses "HH:MM".
func ParseClockTime(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	return NewClockTime(t.Hour(), t.Minute()), nil
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// On returns the instant this clock time falls on for the given civil date in loc.
func (c ClockTime) On(date time.Time, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), int(c)/60, int(c)%60, 0, 0, loc)
}

// CivilDate truncates t to its calendar day in t's own location and returns
// that day as midnight UTC, which is how dates are keyed throughout the engine.
func CivilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a DateLayout string into a civil date.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return d, nil
}

// ShiftSchedule is the configured working window for an employee.
type ShiftSchedule struct {
	Name                      string
	Start                     ClockTime
	End                       ClockTime
	GracePeriodMinutes        int
	DepartureToleranceMinutes int
	MaxAutoOvertimeHours      float64
}

// Wraps reports whether the shift ends on the day after it starts.
func (s ShiftSchedule) Wraps() bool {
	return s.End <= s.Start
}

// Duration is the scheduled length of the shift.
func (s ShiftSchedule) Duration() time.Duration {
	minutes := int(s.End) - int(s.Start)
	if s.Wraps() {
		minutes += 24 * 60
	}
	return time.Duration(minutes) * time.Minute
}

// ExpectedArrival is the scheduled start on the given shift day.
func (s ShiftSchedule) ExpectedArrival(date time.Time, loc *time.Location) time.Time {
	return s.Start.On(date, loc)
}

// ExpectedDeparture is the scheduled end for the shift that starts on date.
func (s ShiftSchedule) ExpectedDeparture(date time.Time, loc *time.Location) time.Time {
	end := s.End.On(date, loc)
	if s.Wraps() {
		end = s.End.On(date.AddDate(0, 0, 1), loc)
	}
	return end
}

// Employee is the configuration the engine reads for one person.
type Employee struct {
	Shift             *ShiftSchedule
	Code              string
	Name              string
	Department        string
	TimeZone          string
	IsFieldDepartment bool
}

// Location resolves the employee's time zone, falling back to fallback
// when the zone is empty or unknown.
func (e Employee) Location(fallback *time.Location) *time.Location {
	if e.TimeZone == "" {
		return fallback
	}
	loc, err := time.LoadLocation(e.TimeZone)
	if err != nil {
		return fallback
	}
	return loc
}

// Holiday is a non-working calendar day.
type Holiday struct {
	Date time.Time
	Name string
}
