package policy

import (
	"time"

	"github.com/Veraticus/attendance-engine/internal/model"
)

// workday is a Tuesday in the middle of the month, clear of weekends and busy periods.
var workday = time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return time.Date(workday.Year(), workday.Month(), workday.Day(), hour, minute, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time {
	return &t
}

func nineToFive() model.ShiftSchedule {
	return model.ShiftSchedule{
		Name:                      "day",
		Start:                     model.NewClockTime(9, 0),
		End:                       model.NewClockTime(17, 0),
		GracePeriodMinutes:        15,
		DepartureToleranceMinutes: 30,
		MaxAutoOvertimeHours:      3,
	}
}

func assignedContext(shift model.ShiftSchedule) ShiftContext {
	return ShiftContext{Date: workday, Location: time.UTC, Shift: shift, Assigned: true}
}
