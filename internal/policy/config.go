// Package policy holds the pure attendance policies: timing classification,
// the overtime cap, the smart overtime analyzer and punch-out scoring.
//
// Every function here takes its thresholds from Config and touches no
// storage, so tests can vary any threshold without production side effects.
package policy

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/Veraticus/attendance-engine/internal/common"
	"github.com/Veraticus/attendance-engine/internal/model"
)

// Config holds every tunable of the reconciliation policies.
type Config struct {
	DefaultTimeZone             string
	FieldDepartments            []string
	TerminalPriority            []string
	WeekendDays                 []time.Weekday
	DefaultShiftStart           model.ClockTime
	DefaultShiftEnd             model.ClockTime
	DefaultGraceMinutes         int
	DepartureToleranceMinutes   int
	HistoryLookbackDays         int
	HistoryMinOvertimeDays      int
	BusyPeriodDays              int
	SessionSplitGap             time.Duration
	DefaultMaxAutoOvertimeHours float64
	AbsoluteSessionCapHours     float64
	StandardHours               float64
	AutoApprovalThresholdHours  float64
	MaxAutoApproveOvertimeHours float64
	HardStopHours               float64
	FieldBaselineHours          float64
	HistoryOvertimeHours        float64
	HistoryCapHours             float64
	BusyPeriodExtraHours        float64
	ImplausibleElapsedHours     float64
	ImplausibleCapHours         float64
	DeductionPointsPerHour      float64
	ActivityPointsPerHour       float64
	ActivityScoreCap            float64
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		DefaultTimeZone:             "UTC",
		FieldDepartments:            []string{"field operations", "sales", "logistics", "site engineering", "security"},
		WeekendDays:                 []time.Weekday{time.Saturday, time.Sunday},
		DefaultShiftStart:           model.NewClockTime(9, 0),
		DefaultShiftEnd:             model.NewClockTime(17, 0),
		DefaultGraceMinutes:         30,
		DepartureToleranceMinutes:   30,
		HistoryLookbackDays:         30,
		HistoryMinOvertimeDays:      5,
		BusyPeriodDays:              3,
		SessionSplitGap:             4 * time.Hour,
		DefaultMaxAutoOvertimeHours: 3,
		AbsoluteSessionCapHours:     12,
		StandardHours:               8,
		AutoApprovalThresholdHours:  4,
		MaxAutoApproveOvertimeHours: 4,
		HardStopHours:               16,
		FieldBaselineHours:          10,
		HistoryOvertimeHours:        8,
		HistoryCapHours:             12,
		BusyPeriodExtraHours:        2,
		ImplausibleElapsedHours:     16,
		ImplausibleCapHours:         12,
		DeductionPointsPerHour:      2,
		ActivityPointsPerHour:       30,
		ActivityScoreCap:            240,
	}
}

// Validate rejects configurations the policies cannot run with.
func (c Config) Validate() error {
	if _, err := time.LoadLocation(c.DefaultTimeZone); err != nil {
		return fmt.Errorf("%w: default time zone %q: %v", common.ErrInvalidConfig, c.DefaultTimeZone, err)
	}
	if c.DefaultShiftStart == c.DefaultShiftEnd {
		return fmt.Errorf("%w: default shift has zero length", common.ErrInvalidConfig)
	}
	if c.DefaultGraceMinutes < 0 || c.DepartureToleranceMinutes < 0 {
		return fmt.Errorf("%w: tolerances must not be negative", common.ErrInvalidConfig)
	}
	if c.StandardHours <= 0 || c.AbsoluteSessionCapHours <= 0 || c.HardStopHours <= 0 {
		return fmt.Errorf("%w: standard hours, session cap and hard stop must be positive", common.ErrInvalidConfig)
	}
	if c.HardStopHours < c.AbsoluteSessionCapHours {
		return fmt.Errorf("%w: hard stop %.2fh is below the session cap %.2fh",
			common.ErrInvalidConfig, c.HardStopHours, c.AbsoluteSessionCapHours)
	}
	if c.DefaultMaxAutoOvertimeHours < 0 || c.MaxAutoApproveOvertimeHours < 0 || c.AutoApprovalThresholdHours < 0 {
		return fmt.Errorf("%w: overtime allowances must not be negative", common.ErrInvalidConfig)
	}
	if c.ActivityScoreCap < 0 || c.ActivityPointsPerHour < 0 || c.DeductionPointsPerHour < 0 {
		return fmt.Errorf("%w: score rates must not be negative", common.ErrInvalidConfig)
	}
	return nil
}

// Location resolves DefaultTimeZone, falling back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.DefaultTimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DefaultShift is the schedule used for employees without an assignment.
func (c Config) DefaultShift() model.ShiftSchedule {
	return model.ShiftSchedule{
		Name:                      "default",
		Start:                     c.DefaultShiftStart,
		End:                       c.DefaultShiftEnd,
		GracePeriodMinutes:        c.DefaultGraceMinutes,
		DepartureToleranceMinutes: c.DepartureToleranceMinutes,
		MaxAutoOvertimeHours:      c.DefaultMaxAutoOvertimeHours,
	}
}

// ResolveShift returns the shift to apply to an employee and whether it was
// actually assigned rather than defaulted. Unset tolerances on an assigned
// shift inherit the configured defaults.
func (c Config) ResolveShift(employee *model.Employee) (model.ShiftSchedule, bool) {
	if employee == nil || employee.Shift == nil {
		return c.DefaultShift(), false
	}
	shift := *employee.Shift
	if shift.GracePeriodMinutes < 0 {
		shift.GracePeriodMinutes = c.DefaultGraceMinutes
	}
	if shift.DepartureToleranceMinutes <= 0 {
		shift.DepartureToleranceMinutes = c.DepartureToleranceMinutes
	}
	if shift.MaxAutoOvertimeHours <= 0 {
		shift.MaxAutoOvertimeHours = c.DefaultMaxAutoOvertimeHours
	}
	return shift, true
}

// IsFieldDepartment reports whether the employee works a field/outdoor pattern.
func (c Config) IsFieldDepartment(employee model.Employee) bool {
	if employee.IsFieldDepartment {
		return true
	}
	dept := strings.ToLower(strings.TrimSpace(employee.Department))
	if dept == "" {
		return false
	}
	return slices.ContainsFunc(c.FieldDepartments, func(d string) bool {
		return strings.EqualFold(strings.TrimSpace(d), dept)
	})
}

// IsWeekend reports whether the civil date falls on a configured weekend day.
func (c Config) IsWeekend(date time.Time) bool {
	return slices.Contains(c.WeekendDays, date.Weekday())
}

// TerminalRank orders terminals by configured priority; lower is preferred
// and unlisted terminals rank after every listed one.
func (c Config) TerminalRank(terminalID string) int {
	if i := slices.Index(c.TerminalPriority, terminalID); i >= 0 {
		return i
	}
	return len(c.TerminalPriority)
}

// MaxCreditedHours is the anti-overbilling ceiling for a session:
// the larger of shift plus allowance and the absolute session cap.
func (c Config) MaxCreditedHours(shift model.ShiftSchedule) float64 {
	return math.Max(shift.Duration().Hours()+shift.MaxAutoOvertimeHours, c.AbsoluteSessionCapHours)
}

// floorHours converts a duration to hours, floored to hundredths so rounding
// never credits more than was measured.
func floorHours(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return math.Floor(d.Hours()*100+1e-9) / 100
}

// floorValue floors an hour or point figure to hundredths.
func floorValue(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return math.Floor(v*100+1e-9) / 100
}

func hoursDuration(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}
