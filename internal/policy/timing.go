package policy

import (
	"math"
	"time"

	"github.com/Veraticus/attendance-engine/internal/model"
)

// PunchTimes are the paired boundaries of one session.
type PunchTimes struct {
	CheckIn  time.Time
	CheckOut *time.Time
}

// ShiftContext places a shift on a concrete day and zone.
type ShiftContext struct {
	Date     time.Time
	Location *time.Location
	Shift    model.ShiftSchedule
	Assigned bool
}

// ExpectedArrival is the scheduled start instant.
func (sc ShiftContext) ExpectedArrival() time.Time {
	return sc.Shift.ExpectedArrival(sc.Date, sc.location())
}

// ExpectedDeparture is the scheduled end instant.
func (sc ShiftContext) ExpectedDeparture() time.Time {
	return sc.Shift.ExpectedDeparture(sc.Date, sc.location())
}

func (sc ShiftContext) location() *time.Location {
	if sc.Location == nil {
		return time.UTC
	}
	return sc.Location
}

// Timing is the outcome of the timing classifier.
type Timing struct {
	ExpectedArrival       time.Time
	ExpectedDeparture     time.Time
	Arrival               model.ArrivalStatus
	Departure             model.DepartureStatus
	EarlyMinutes          int
	LateMinutes           int
	EarlyDepartureMinutes int
	LateDepartureMinutes  int
}

// ClassifyTiming classifies arrival and departure independently.
func ClassifyTiming(punches PunchTimes, sc ShiftContext) Timing {
	t := Timing{
		ExpectedArrival:   sc.ExpectedArrival(),
		ExpectedDeparture: sc.ExpectedDeparture(),
	}

	t.Arrival, t.EarlyMinutes, t.LateMinutes = ClassifyArrival(punches.CheckIn, t.ExpectedArrival, sc.Shift.GracePeriodMinutes)

	if punches.CheckOut == nil {
		t.Departure = model.DepartureIncomplete
		return t
	}
	t.Departure, t.EarlyDepartureMinutes, t.LateDepartureMinutes = ClassifyDeparture(*punches.CheckOut, t.ExpectedDeparture, sc.Shift.DepartureToleranceMinutes)

	return t
}

// ClassifyArrival compares a check-in with the expected start. It returns the
// status with the minutes early or late; at most one of them is non-zero.
func ClassifyArrival(checkIn, expected time.Time, graceMinutes int) (model.ArrivalStatus, int, int) {
	diff := minutesBetween(expected, checkIn)
	switch {
	case diff < 0:
		return model.ArrivalEarly, -diff, 0
	case diff == 0:
		return model.ArrivalOnTime, 0, 0
	case diff <= graceMinutes:
		return model.ArrivalGrace, 0, 0
	default:
		return model.ArrivalLate, 0, diff
	}
}

// ClassifyDeparture compares a check-out with the expected end. It returns the
// status with the minutes early or late.
func ClassifyDeparture(checkOut, expected time.Time, toleranceMinutes int) (model.DepartureStatus, int, int) {
	diff := minutesBetween(expected, checkOut)
	switch {
	case diff < 0:
		return model.DepartureEarly, -diff, 0
	case diff <= toleranceMinutes:
		return model.DepartureOnTime, 0, 0
	default:
		return model.DepartureLate, 0, diff
	}
}

// minutesBetween is the whole minutes from a to b, floored so a punch a few
// seconds into a minute still counts as that minute.
func minutesBetween(a, b time.Time) int {
	return int(math.Floor(b.Sub(a).Minutes()))
}
