package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/attendance-engine/internal/model"
	"github.com/Veraticus/attendance-engine/internal/policy"
	"github.com/Veraticus/attendance-engine/internal/testutil"
)

var day = time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC)

func punchOn(id string, hour, minute int, state model.PunchState, terminal string) model.RawPunchEvent {
	return model.RawPunchEvent{
		ExternalID:   id,
		EmployeeCode: "E1",
		Timestamp:    testutil.On(day, hour, minute),
		TerminalID:   terminal,
		State:        state,
		Source:       model.SourceBiometric,
	}
}

func TestPairFirstInLastOut(t *testing.T) {
	pairer := NewPairer(policy.DefaultConfig())

	punches := []model.RawPunchEvent{
		punchOn("c", 17, 5, model.PunchOut, "GATE-1"),
		punchOn("a", 8, 55, model.PunchIn, "GATE-1"),
		punchOn("b", 12, 30, model.PunchUnknown, "GATE-2"),
	}

	sessions := pairer.Pair(punches)
	require.Len(t, sessions, 1)

	sess := sessions[0]
	assert.Equal(t, 1, sess.Sequence)
	assert.Equal(t, "a", sess.CheckIn.ExternalID)
	require.NotNil(t, sess.CheckOut)
	assert.Equal(t, "c", sess.CheckOut.ExternalID)
	require.Len(t, sess.Interim, 1)
	assert.Equal(t, model.InterimCheckOut, sess.Interim[0].Kind)
	assert.Equal(t, "GATE-2", sess.Interim[0].TerminalID)
}

func TestPairIsOrderIndependent(t *testing.T) {
	pairer := NewPairer(policy.DefaultConfig())
	punches := []model.RawPunchEvent{
		punchOn("a", 9, 0, model.PunchIn, "GATE-1"),
		punchOn("b", 13, 0, model.PunchOut, "GATE-1"),
		punchOn("c", 13, 45, model.PunchIn, "GATE-1"),
		punchOn("d", 18, 0, model.PunchOut, "GATE-1"),
	}
	reversed := []model.RawPunchEvent{punches[3], punches[1], punches[2], punches[0]}

	assert.Equal(t, pairer.Pair(punches), pairer.Pair(reversed))
}

func TestPairFoldsSameSecondDuplicates(t *testing.T) {
	cfg := policy.DefaultConfig()
	cfg.TerminalPriority = []string{"MAIN", "SIDE"}
	pairer := NewPairer(cfg)

	side := punchOn("side-in", 9, 0, model.PunchIn, "SIDE")
	side.Timestamp = side.Timestamp.Add(300 * time.Millisecond)
	punches := []model.RawPunchEvent{
		side,
		punchOn("main-in", 9, 0, model.PunchIn, "MAIN"),
		punchOn("out", 17, 0, model.PunchOut, "MAIN"),
		punchOn("out-dup", 17, 0, model.PunchOut, "LOBBY"),
	}

	sessions := pairer.Pair(punches)
	require.Len(t, sessions, 1)
	assert.Equal(t, "main-in", sessions[0].CheckIn.ExternalID)
	require.NotNil(t, sessions[0].CheckOut)
	assert.Equal(t, "out", sessions[0].CheckOut.ExternalID)
	assert.Empty(t, sessions[0].Interim)

	require.Len(t, sessions[0].Notes, 2)
	assert.Contains(t, sessions[0].Notes[0], "side-in")
	assert.Contains(t, sessions[0].Notes[1], "out-dup")
}

func TestPairTrailingCheckInIsNotACheckOut(t *testing.T) {
	pairer := NewPairer(policy.DefaultConfig())
	sessions := pairer.Pair([]model.RawPunchEvent{
		punchOn("a", 9, 0, model.PunchIn, "GATE-1"),
		punchOn("b", 12, 0, model.PunchOut, "GATE-1"),
		punchOn("c", 12, 40, model.PunchIn, "GATE-1"),
	})

	require.Len(t, sessions, 1)
	assert.Nil(t, sessions[0].CheckOut)
	require.Len(t, sessions[0].Interim, 2)
	assert.Equal(t, model.InterimCheckOut, sessions[0].Interim[0].Kind)
	assert.Equal(t, model.InterimCheckIn, sessions[0].Interim[1].Kind)
	assert.Contains(t, sessions[0].Notes[0], "kept as interim")
}

func TestPairSinglePunch(t *testing.T) {
	sessions := NewPairer(policy.DefaultConfig()).Pair([]model.RawPunchEvent{
		punchOn("a", 9, 0, model.PunchOut, "GATE-1"),
	})
	require.Len(t, sessions, 1)
	assert.Equal(t, "a", sessions[0].CheckIn.ExternalID)
	assert.Nil(t, sessions[0].CheckOut)
}

func TestPairSplitsOnLongGap(t *testing.T) {
	pairer := NewPairer(policy.DefaultConfig())
	sessions := pairer.Pair([]model.RawPunchEvent{
		punchOn("a", 7, 0, model.PunchIn, "GATE-1"),
		punchOn("b", 11, 0, model.PunchOut, "GATE-1"),
		punchOn("c", 16, 0, model.PunchIn, "GATE-1"),
		punchOn("d", 20, 0, model.PunchOut, "GATE-1"),
	})

	require.Len(t, sessions, 2)
	assert.Equal(t, 1, sessions[0].Sequence)
	assert.Equal(t, "b", sessions[0].CheckOut.ExternalID)
	assert.Equal(t, 2, sessions[1].Sequence)
	assert.Equal(t, "c", sessions[1].CheckIn.ExternalID)
	assert.Equal(t, "d", sessions[1].CheckOut.ExternalID)
	assert.Contains(t, sessions[1].Notes[0], "5h0m0s gap")
}

func TestPairShortGapStaysOneSession(t *testing.T) {
	pairer := NewPairer(policy.DefaultConfig())
	sessions := pairer.Pair([]model.RawPunchEvent{
		punchOn("a", 9, 0, model.PunchIn, "GATE-1"),
		punchOn("b", 13, 0, model.PunchOut, "GATE-1"),
		punchOn("c", 14, 0, model.PunchIn, "GATE-1"),
		punchOn("d", 18, 0, model.PunchOut, "GATE-1"),
	})

	require.Len(t, sessions, 1)
	assert.Len(t, sessions[0].Interim, 2)
}

func TestPairEmpty(t *testing.T) {
	assert.Nil(t, NewPairer(policy.DefaultConfig()).Pair(nil))
}

func TestAssignDate(t *testing.T) {
	karachi, err := time.LoadLocation("Asia/Karachi")
	require.NoError(t, err)

	dayShift := testutil.DayShift()
	nightShift := testutil.NightShift()

	tests := []struct {
		at    time.Time
		want  time.Time
		loc   *time.Location
		name  string
		shift model.ShiftSchedule
	}{
		{
			name:  "day shift keeps the local date",
			shift: dayShift,
			loc:   time.UTC,
			at:    testutil.On(day, 8, 50),
			want:  day,
		},
		{
			name:  "local zone moves a late UTC punch to the next day",
			shift: dayShift,
			loc:   karachi,
			at:    testutil.On(day, 20, 0),
			want:  day.AddDate(0, 0, 1),
		},
		{
			name:  "night shift check-in belongs to its own day",
			shift: nightShift,
			loc:   time.UTC,
			at:    testutil.On(day, 21, 55),
			want:  day,
		},
		{
			name:  "night shift check-out after midnight belongs to the previous day",
			shift: nightShift,
			loc:   time.UTC,
			at:    testutil.On(day.AddDate(0, 0, 1), 6, 10),
			want:  day,
		},
		{
			name:  "night shift afternoon punch starts the next day",
			shift: nightShift,
			loc:   time.UTC,
			at:    testutil.On(day, 14, 0),
			want:  day,
		},
		{
			name:  "night shift punch just before the midpoint belongs to the previous day",
			shift: nightShift,
			loc:   time.UTC,
			at:    testutil.On(day, 13, 59),
			want:  day.AddDate(0, 0, -1),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AssignDate(tt.at, tt.shift, tt.loc))
		})
	}
}
