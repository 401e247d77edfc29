package policy

import (
	"fmt"
	"time"
)

// CapResult is the outcome of the overtime cap policy for one session.
type CapResult struct {
	ShiftEnd         time.Time
	AllowanceCeiling time.Time
	SessionCeiling   time.Time
	EffectiveCeiling time.Time
	Reasons          []string
	CreditedHours    float64
	ActualHours      float64
	ShiftHours       float64
	AllowanceHours   float64
	Capped           bool
	Measured         bool
}

// OvertimeHours is the credited time beyond the shift duration.
func (r CapResult) OvertimeHours() float64 {
	return floorValue(r.CreditedHours - r.ShiftHours)
}

// RawOvertimeHours is the measured time beyond the shift duration, before capping.
func (r CapResult) RawOvertimeHours() float64 {
	if !r.Measured {
		return 0
	}
	return floorValue(r.ActualHours - r.ShiftHours)
}

// MaxHours is the effective ceiling expressed in hours from check-in.
func (r CapResult) MaxHours(checkIn time.Time) float64 {
	return floorHours(r.EffectiveCeiling.Sub(checkIn))
}

// ApplyCap credits hours for a session without ever overbilling.
//
// The shift end is measured from arrival. Two ceilings exist: the overtime
// allowance beyond that end (A) and the absolute session cap from check-in
// (B). A measured check-out beyond A is capped at A. A missing check-out
// credits the shift duration, never the elapsed wall-clock time.
func ApplyCap(punches PunchTimes, sc ShiftContext, cfg Config) CapResult {
	shiftDuration := sc.Shift.Duration()
	if !sc.Assigned {
		shiftDuration = hoursDuration(cfg.StandardHours)
	}
	allowance := sc.Shift.MaxAutoOvertimeHours
	if allowance <= 0 {
		allowance = cfg.DefaultMaxAutoOvertimeHours
	}

	checkIn := punches.CheckIn
	r := CapResult{
		ShiftEnd:       checkIn.Add(shiftDuration),
		ShiftHours:     floorHours(shiftDuration),
		AllowanceHours: allowance,
	}
	r.AllowanceCeiling = r.ShiftEnd.Add(hoursDuration(allowance))
	r.SessionCeiling = checkIn.Add(hoursDuration(cfg.AbsoluteSessionCapHours))
	r.EffectiveCeiling = r.AllowanceCeiling
	if r.SessionCeiling.After(r.EffectiveCeiling) {
		r.EffectiveCeiling = r.SessionCeiling
	}

	checkOut := punches.CheckOut
	if checkOut != nil && !checkOut.After(checkIn) {
		r.Reasons = append(r.Reasons, fmt.Sprintf("check-out %s is not after check-in; treated as missing",
			checkOut.Format(time.RFC3339)))
		checkOut = nil
	}

	switch {
	case checkOut == nil:
		r.CreditedHours = r.ShiftHours
		if sc.Assigned {
			r.Reasons = append(r.Reasons, fmt.Sprintf(
				"missing check-out: credited shift duration %.2fh from arrival (policy default, not measured)",
				r.ShiftHours))
		} else {
			r.Reasons = append(r.Reasons, fmt.Sprintf(
				"missing check-out and no shift assigned: credited standard %.2fh (policy default, not measured)",
				r.ShiftHours))
		}

	case !checkOut.After(r.AllowanceCeiling):
		r.Measured = true
		r.ActualHours = floorHours(checkOut.Sub(checkIn))
		r.CreditedHours = r.ActualHours
		r.Reasons = append(r.Reasons, fmt.Sprintf("measured %.2fh: within overtime allowance", r.ActualHours))

	default:
		r.Measured = true
		r.Capped = true
		r.ActualHours = floorHours(checkOut.Sub(checkIn))
		r.CreditedHours = floorHours(r.AllowanceCeiling.Sub(checkIn))
		r.Reasons = append(r.Reasons, fmt.Sprintf(
			"capped: check-out %s exceeds allowance ceiling %s (shift %.2fh + %.2fh overtime); credited %.2fh instead of measured %.2fh",
			checkOut.In(sc.location()).Format("15:04"),
			r.AllowanceCeiling.In(sc.location()).Format("15:04"),
			r.ShiftHours, allowance, r.CreditedHours, r.ActualHours))
	}

	if !sc.Assigned {
		r.Reasons = append(r.Reasons, fmt.Sprintf("no shift assigned: default %s-%s schedule applied",
			sc.Shift.Start, sc.Shift.End))
	}

	return r
}

// OvertimeHours is the credited time beyond the shift, never negative.
func OvertimeHours(creditedHours, shiftHours float64) float64 {
	return floorValue(creditedHours - shiftHours)
}

// EnforceCeiling clamps credited hours to the session's effective ceiling.
// It reports whether a correction was needed.
func EnforceCeiling(creditedHours float64, checkIn time.Time, r CapResult) (float64, bool) {
	ceiling := r.MaxHours(checkIn)
	if creditedHours <= ceiling {
		return creditedHours, false
	}
	return ceiling, true
}
