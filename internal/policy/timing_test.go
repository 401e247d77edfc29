package policy

import (
	"testing"
	"time"

	"github.com/Veraticus/attendance-engine/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestClassifyArrival(t *testing.T) {
	expected := at(9, 0)

	tests := []struct {
		name      string
		checkIn   time.Time
		want      model.ArrivalStatus
		wantEarly int
		wantLate  int
	}{
		{name: "early", checkIn: at(8, 40), want: model.ArrivalEarly, wantEarly: 20},
		{name: "exactly on time", checkIn: at(9, 0), want: model.ArrivalOnTime},
		{name: "seconds into the minute is on time", checkIn: at(9, 0).Add(40 * time.Second), want: model.ArrivalOnTime},
		{name: "inside grace", checkIn: at(9, 10), want: model.ArrivalGrace},
		{name: "grace boundary", checkIn: at(9, 15), want: model.ArrivalGrace},
		{name: "one minute past grace", checkIn: at(9, 16), want: model.ArrivalLate, wantLate: 16},
		{name: "very late", checkIn: at(11, 0), want: model.ArrivalLate, wantLate: 120},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, early, late := ClassifyArrival(tt.checkIn, expected, 15)
			assert.Equal(t, tt.want, status)
			assert.Equal(t, tt.wantEarly, early)
			assert.Equal(t, tt.wantLate, late)
		})
	}
}

func TestClassifyDeparture(t *testing.T) {
	expected := at(17, 0)

	tests := []struct {
		name      string
		checkOut  time.Time
		want      model.DepartureStatus
		wantEarly int
		wantLate  int
	}{
		{name: "early", checkOut: at(16, 15), want: model.DepartureEarly, wantEarly: 45},
		{name: "on time", checkOut: at(17, 0), want: model.DepartureOnTime},
		{name: "tolerance boundary", checkOut: at(17, 30), want: model.DepartureOnTime},
		{name: "late", checkOut: at(17, 31), want: model.DepartureLate, wantLate: 31},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, early, late := ClassifyDeparture(tt.checkOut, expected, 30)
			assert.Equal(t, tt.want, status)
			assert.Equal(t, tt.wantEarly, early)
			assert.Equal(t, tt.wantLate, late)
		})
	}
}

func TestClassifyTiming(t *testing.T) {
	t.Run("missing check-out is incomplete", func(t *testing.T) {
		timing := ClassifyTiming(PunchTimes{CheckIn: at(9, 5)}, assignedContext(nineToFive()))
		assert.Equal(t, model.ArrivalGrace, timing.Arrival)
		assert.Equal(t, model.DepartureIncomplete, timing.Departure)
	})

	t.Run("default shift when unassigned", func(t *testing.T) {
		cfg := DefaultConfig()
		shift, assigned := cfg.ResolveShift(nil)
		assert.False(t, assigned)

		sc := ShiftContext{Date: workday, Location: time.UTC, Shift: shift}
		timing := ClassifyTiming(PunchTimes{CheckIn: at(9, 30), CheckOut: ptr(at(17, 10))}, sc)
		assert.Equal(t, at(9, 0), timing.ExpectedArrival)
		assert.Equal(t, model.ArrivalGrace, timing.Arrival, "30 minute default grace")
		assert.Equal(t, model.DepartureOnTime, timing.Departure)
	})

	t.Run("night shift departs next morning", func(t *testing.T) {
		shift := model.ShiftSchedule{
			Start:                     model.NewClockTime(22, 0),
			End:                       model.NewClockTime(6, 0),
			GracePeriodMinutes:        10,
			DepartureToleranceMinutes: 30,
			MaxAutoOvertimeHours:      2,
		}
		next := at(6, 45).AddDate(0, 0, 1)
		timing := ClassifyTiming(PunchTimes{CheckIn: at(21, 50), CheckOut: &next}, assignedContext(shift))
		assert.Equal(t, model.ArrivalEarly, timing.Arrival)
		assert.Equal(t, 10, timing.EarlyMinutes)
		assert.Equal(t, model.DepartureLate, timing.Departure)
		assert.Equal(t, 45, timing.LateDepartureMinutes)
	})

	t.Run("employee zone moves the expected arrival", func(t *testing.T) {
		karachi, err := time.LoadLocation("Asia/Karachi")
		if err != nil {
			t.Skip("zoneinfo unavailable")
		}
		sc := ShiftContext{Date: workday, Location: karachi, Shift: nineToFive(), Assigned: true}
		// 04:00 UTC is 09:00 in Karachi.
		timing := ClassifyTiming(PunchTimes{CheckIn: at(4, 0)}, sc)
		assert.Equal(t, model.ArrivalOnTime, timing.Arrival)
	})
}
