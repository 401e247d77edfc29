package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/attendance-engine/internal/common"
	"github.com/Veraticus/attendance-engine/internal/model"
	"github.com/Veraticus/attendance-engine/internal/policy"
)

// LoadPolicy builds the policy configuration from the "policy" section.
// Keys that are not set keep their production default, and the result is
// validated before it is returned.
func LoadPolicy(v *viper.Viper) (policy.Config, error) {
	cfg := policy.DefaultConfig()

	if key := "policy.default_time_zone"; v.IsSet(key) {
		cfg.DefaultTimeZone = v.GetString(key)
	}
	if key := "policy.field_departments"; v.IsSet(key) {
		cfg.FieldDepartments = v.GetStringSlice(key)
	}
	if key := "policy.terminal_priority"; v.IsSet(key) {
		cfg.TerminalPriority = v.GetStringSlice(key)
	}
	if key := "policy.weekend_days"; v.IsSet(key) {
		days, err := parseWeekdays(v.GetStringSlice(key))
		if err != nil {
			return cfg, err
		}
		cfg.WeekendDays = days
	}

	for key, dst := range map[string]*model.ClockTime{
		"policy.default_shift_start": &cfg.DefaultShiftStart,
		"policy.default_shift_end":   &cfg.DefaultShiftEnd,
	} {
		if !v.IsSet(key) {
			continue
		}
		clock, err := model.ParseClockTime(v.GetString(key))
		if err != nil {
			return cfg, fmt.Errorf("%w: %s: %v", common.ErrInvalidConfig, key, err)
		}
		*dst = clock
	}

	for key, dst := range map[string]*int{
		"policy.default_grace_minutes":       &cfg.DefaultGraceMinutes,
		"policy.departure_tolerance_minutes": &cfg.DepartureToleranceMinutes,
		"policy.history_lookback_days":       &cfg.HistoryLookbackDays,
		"policy.history_min_overtime_days":   &cfg.HistoryMinOvertimeDays,
		"policy.busy_period_days":            &cfg.BusyPeriodDays,
	} {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}

	for key, dst := range map[string]*float64{
		"policy.default_max_auto_overtime_hours": &cfg.DefaultMaxAutoOvertimeHours,
		"policy.absolute_session_cap_hours":      &cfg.AbsoluteSessionCapHours,
		"policy.standard_hours":                  &cfg.StandardHours,
		"policy.auto_approval_threshold_hours":   &cfg.AutoApprovalThresholdHours,
		"policy.max_auto_approve_overtime_hours": &cfg.MaxAutoApproveOvertimeHours,
		"policy.hard_stop_hours":                 &cfg.HardStopHours,
		"policy.field_baseline_hours":            &cfg.FieldBaselineHours,
		"policy.history_overtime_hours":          &cfg.HistoryOvertimeHours,
		"policy.history_cap_hours":               &cfg.HistoryCapHours,
		"policy.busy_period_extra_hours":         &cfg.BusyPeriodExtraHours,
		"policy.implausible_elapsed_hours":       &cfg.ImplausibleElapsedHours,
		"policy.implausible_cap_hours":           &cfg.ImplausibleCapHours,
		"policy.deduction_points_per_hour":       &cfg.DeductionPointsPerHour,
		"policy.activity_points_per_hour":        &cfg.ActivityPointsPerHour,
		"policy.activity_score_cap":              &cfg.ActivityScoreCap,
	} {
		if v.IsSet(key) {
			*dst = v.GetFloat64(key)
		}
	}

	if key := "policy.session_split_gap"; v.IsSet(key) {
		cfg.SessionSplitGap = v.GetDuration(key)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func parseWeekdays(names []string) ([]time.Weekday, error) {
	days := make([]time.Weekday, 0, len(names))
	for _, name := range names {
		day, ok := weekdays[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("%w: unknown weekday %q", common.ErrInvalidConfig, name)
		}
		days = append(days, day)
	}
	return days, nil
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}
