package policy

import (
	"fmt"
	"math"
	"time"

	"github.com/Veraticus/attendance-engine/internal/model"
)

// OvertimeInput is everything the analyzer weighs for one long session.
type OvertimeInput struct {
	CheckIn     time.Time
	CheckOut    time.Time
	Shift       ShiftContext
	Employee    model.Employee
	HolidayName string
	History     []model.DailyHours
	Holiday     bool
}

// NeedsAnalysis reports whether measured overtime exceeds the auto-approval
// threshold and the session has to go through the analyzer.
func NeedsAnalysis(r CapResult, cfg Config) bool {
	return r.Measured && r.RawOvertimeHours() > cfg.AutoApprovalThresholdHours
}

// RequiresApproval applies the decision rule to a suggested ceiling.
func RequiresApproval(suggestedHours float64, cfg Config) bool {
	return suggestedHours-cfg.StandardHours > cfg.MaxAutoApproveOvertimeHours
}

// AnalyzeOvertime suggests how many hours a long session may be credited.
// The suggestion is a ceiling built up from the shift, department class,
// recent history and calendar, bounded by the hard stop.
func AnalyzeOvertime(in OvertimeInput, cfg Config) model.OvertimeDecision {
	d := model.OvertimeDecision{Confidence: model.ConfidenceHigh}
	elapsed := in.CheckOut.Sub(in.CheckIn).Hours()

	shift := in.Shift.Shift
	if in.Shift.Assigned {
		d.SuggestedHours = shift.Duration().Hours() + shift.MaxAutoOvertimeHours
		d.Justification = append(d.Justification, fmt.Sprintf(
			"shift %s-%s: %.2fh plus %.2fh allowance", shift.Start, shift.End,
			shift.Duration().Hours(), shift.MaxAutoOvertimeHours))
	} else {
		d.Confidence = model.ConfidenceMedium
		d.SuggestedHours = cfg.StandardHours + cfg.DefaultMaxAutoOvertimeHours
		d.Justification = append(d.Justification, fmt.Sprintf(
			"no shift assigned: standard %.2fh plus %.2fh allowance", cfg.StandardHours, cfg.DefaultMaxAutoOvertimeHours))
	}

	if cfg.IsFieldDepartment(in.Employee) && cfg.FieldBaselineHours > d.SuggestedHours {
		d.SuggestedHours = cfg.FieldBaselineHours
		d.Confidence = model.ConfidenceHigh
		d.Justification = append(d.Justification, fmt.Sprintf(
			"field department %q: baseline %.2fh", in.Employee.Department, cfg.FieldBaselineHours))
	}

	if avg, days, ok := historicalOvertime(in.History, cfg); ok {
		if avg > d.SuggestedHours {
			d.SuggestedHours = avg
			d.Confidence = model.ConfidenceHigh
		}
		d.Justification = append(d.Justification, fmt.Sprintf(
			"history: overtime on %d of last %d days, average %.2fh (cap %.2fh)",
			days, cfg.HistoryLookbackDays, avg, cfg.HistoryCapHours))
	}

	if isBusyPeriod(in.Shift.Date, cfg.BusyPeriodDays) && cfg.BusyPeriodExtraHours > 0 {
		d.SuggestedHours += cfg.BusyPeriodExtraHours
		d.Justification = append(d.Justification, fmt.Sprintf(
			"busy period (month edge): +%.2fh", cfg.BusyPeriodExtraHours))
	}

	if elapsed > cfg.ImplausibleElapsedHours {
		d.SuggestedHours = math.Min(d.SuggestedHours, cfg.ImplausibleCapHours)
		d.Confidence = model.ConfidenceLow
		d.Justification = append(d.Justification, fmt.Sprintf(
			"elapsed %.2fh exceeds %.2fh: likely forgotten punch-out, capped at %.2fh",
			elapsed, cfg.ImplausibleElapsedHours, cfg.ImplausibleCapHours))
	}

	offDay := in.Holiday || cfg.IsWeekend(in.Shift.Date)
	if offDay {
		d.SuggestedHours = math.Min(d.SuggestedHours, cfg.StandardHours)
		label := "weekend"
		if in.Holiday {
			label = "holiday"
			if in.HolidayName != "" {
				label = fmt.Sprintf("holiday %q", in.HolidayName)
			}
		}
		d.Justification = append(d.Justification, fmt.Sprintf(
			"%s session: capped at standard %.2fh, manual approval required", label, cfg.StandardHours))
	}

	if d.SuggestedHours > cfg.HardStopHours {
		d.SuggestedHours = cfg.HardStopHours
		d.Justification = append(d.Justification, fmt.Sprintf("hard stop: %.2fh", cfg.HardStopHours))
	}
	d.SuggestedHours = floorValue(d.SuggestedHours)

	d.ApprovalRequired = offDay || RequiresApproval(d.SuggestedHours, cfg)
	if d.ApprovalRequired {
		d.Justification = append(d.Justification, fmt.Sprintf(
			"approval required: suggested %.2fh, confidence %s", d.SuggestedHours, d.Confidence))
	} else {
		d.Justification = append(d.Justification, fmt.Sprintf(
			"auto-approved: %.2fh over standard is within %.2fh", d.SuggestedHours-cfg.StandardHours,
			cfg.MaxAutoApproveOvertimeHours))
	}

	return d
}

// Resolution is the credited outcome after the analyzer has spoken.
type Resolution struct {
	State         model.OvertimeApprovalState
	Note          string
	CreditedHours float64
}

// ResolveOvertime applies a decision to the capped result. A decision that
// needs approval leaves the capped figure untouched; otherwise hours up to the
// suggestion are credited, never beyond what was measured or the session ceiling.
func ResolveOvertime(checkIn time.Time, r CapResult, d model.OvertimeDecision) Resolution {
	if d.ApprovalRequired {
		return Resolution{
			State:         model.OvertimePendingApproval,
			CreditedHours: r.CreditedHours,
			Note: fmt.Sprintf("overtime pending approval: suggested %.2fh (%s confidence); %.2fh credited until reviewed",
				d.SuggestedHours, d.Confidence, r.CreditedHours),
		}
	}

	credited := math.Min(d.SuggestedHours, r.ActualHours)
	ceiling := r.MaxHours(checkIn)
	clamped := credited > ceiling
	credited = floorValue(math.Min(credited, ceiling))

	note := fmt.Sprintf("overtime auto-approved: credited %.2fh (%s confidence)", credited, d.Confidence)
	if clamped {
		note += fmt.Sprintf("; clamped to session ceiling %.2fh", ceiling)
	}
	return Resolution{
		State:         model.OvertimeAutoApproved,
		CreditedHours: credited,
		Note:          note,
	}
}

// historicalOvertime averages the overtime days in history when there are
// enough of them to call it a pattern.
func historicalOvertime(history []model.DailyHours, cfg Config) (float64, int, bool) {
	var total float64
	days := 0
	for _, h := range history {
		if h.Hours > cfg.HistoryOvertimeHours {
			total += h.Hours
			days++
		}
	}
	if days == 0 || days < cfg.HistoryMinOvertimeDays {
		return 0, days, false
	}
	return math.Min(total/float64(days), cfg.HistoryCapHours), days, true
}

// isBusyPeriod reports whether date is within the first or last n days of its month.
func isBusyPeriod(date time.Time, n int) bool {
	if n <= 0 {
		return false
	}
	lastDay := time.Date(date.Year(), date.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	return date.Day() <= n || date.Day() > lastDay-n
}
