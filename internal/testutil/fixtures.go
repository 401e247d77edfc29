package testutil

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Veraticus/attendance-engine/internal/model"
)

var punchSeq atomic.Int64

// DayShift is a 09:00-17:00 shift with a 15 minute grace and 3h allowance.
func DayShift() model.ShiftSchedule {
	return model.ShiftSchedule{
		Name:                      "day",
		Start:                     model.NewClockTime(9, 0),
		End:                       model.NewClockTime(17, 0),
		GracePeriodMinutes:        15,
		DepartureToleranceMinutes: 30,
		MaxAutoOvertimeHours:      3,
	}
}

// NightShift is a 22:00-06:00 shift that wraps past midnight.
func NightShift() model.ShiftSchedule {
	return model.ShiftSchedule{
		Name:                      "night",
		Start:                     model.NewClockTime(22, 0),
		End:                       model.NewClockTime(6, 0),
		GracePeriodMinutes:        10,
		DepartureToleranceMinutes: 30,
		MaxAutoOvertimeHours:      2,
	}
}

// Employee builds an office employee in UTC on the given shift.
func Employee(code string, shift model.ShiftSchedule) model.Employee {
	return model.Employee{
		Code:       code,
		Name:       "Employee " + code,
		Department: "Accounts",
		TimeZone:   "UTC",
		Shift:      &shift,
	}
}

// Punch builds a biometric punch with a unique external ID.
func Punch(employee string, at time.Time, state model.PunchState) model.RawPunchEvent {
	return model.RawPunchEvent{
		ExternalID:   fmt.Sprintf("ext-%06d", punchSeq.Add(1)),
		EmployeeCode: employee,
		Timestamp:    at,
		TerminalID:   "GATE-1",
		State:        state,
		Source:       model.SourceBiometric,
	}
}

// On returns hour:minute on the civil date day, in UTC.
func On(day time.Time, hour, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, time.UTC)
}
