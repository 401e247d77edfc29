package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/attendance-engine/internal/common"
	"github.com/Veraticus/attendance-engine/internal/model"
	"github.com/Veraticus/attendance-engine/internal/policy"
)

func viperFrom(t *testing.T, doc string) *viper.Viper {
	t.Helper()
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(doc)))
	return v
}

func TestLoadPolicyDefaults(t *testing.T) {
	cfg, err := LoadPolicy(viper.New())
	require.NoError(t, err)
	assert.Equal(t, policy.DefaultConfig(), cfg)
}

func TestLoadPolicyOverrides(t *testing.T) {
	v := viperFrom(t, `
policy:
  default_time_zone: Asia/Karachi
  terminal_priority: [MAIN-GATE, SIDE-GATE]
  weekend_days: [Friday, sat]
  default_shift_start: "08:30"
  default_shift_end: "16:30"
  default_grace_minutes: 10
  absolute_session_cap_hours: 13
  max_auto_approve_overtime_hours: 3.5
  session_split_gap: 3h
`)

	cfg, err := LoadPolicy(v)
	require.NoError(t, err)

	assert.Equal(t, "Asia/Karachi", cfg.DefaultTimeZone)
	assert.Equal(t, []string{"MAIN-GATE", "SIDE-GATE"}, cfg.TerminalPriority)
	assert.Equal(t, []time.Weekday{time.Friday, time.Saturday}, cfg.WeekendDays)
	assert.Equal(t, model.NewClockTime(8, 30), cfg.DefaultShiftStart)
	assert.Equal(t, model.NewClockTime(16, 30), cfg.DefaultShiftEnd)
	assert.Equal(t, 10, cfg.DefaultGraceMinutes)
	assert.Equal(t, 13.0, cfg.AbsoluteSessionCapHours)
	assert.Equal(t, 3.5, cfg.MaxAutoApproveOvertimeHours)
	assert.Equal(t, 3*time.Hour, cfg.SessionSplitGap)

	// Untouched keys keep their defaults.
	assert.Equal(t, 16.0, cfg.HardStopHours)
	assert.Equal(t, 240.0, cfg.ActivityScoreCap)
}

func TestLoadPolicyRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "unknown weekday", doc: "policy:\n  weekend_days: [funday]\n"},
		{name: "bad clock", doc: "policy:\n  default_shift_start: \"25:00\"\n"},
		{name: "bad zone", doc: "policy:\n  default_time_zone: Mars/Olympus\n"},
		{name: "hard stop below cap", doc: "policy:\n  hard_stop_hours: 10\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadPolicy(viperFrom(t, tt.doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrInvalidConfig)
		})
	}
}

func TestLoadFeedConfig(t *testing.T) {
	t.Setenv("PUNCH_FEED_TOKEN", "from-env")

	v := viperFrom(t, `
feed:
  url: https://terminals.example.com/api
  name: hq
  timeout: 10s
  requests_per_minute: 120
  retry:
    max_attempts: 7
    initial_delay: 250ms
`)

	cfg := LoadFeedConfig(v)
	assert.Equal(t, "https://terminals.example.com/api", cfg.BaseURL)
	assert.Equal(t, "from-env", cfg.Token)
	assert.Equal(t, "hq", cfg.Name)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, 120, cfg.RequestsPerMinute)

	retry := LoadRetryOptions(v)
	assert.Equal(t, 7, retry.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, retry.InitialDelay)
	assert.Equal(t, 30*time.Second, retry.MaxDelay)
	assert.Equal(t, 20, retry.MaxRateLimitWaits)
}
