package main

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/attendance-engine/internal/engine"
)

func rangeCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	addDateRangeFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestDateRange(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		name      string
		args      []string
		wantStart time.Time
		wantEnd   time.Time
		wantErr   string
	}{
		{name: "single day", args: []string{"--start", "2024-03-12"}, wantStart: day(12), wantEnd: day(13)},
		{name: "explicit end", args: []string{"--start", "2024-03-01", "--end", "2024-03-15"}, wantStart: day(1), wantEnd: day(15)},
		{name: "missing start", args: nil, wantErr: "--start is required"},
		{name: "bad format", args: []string{"--start", "12/03/2024"}, wantErr: "expected YYYY-MM-DD"},
		{name: "inverted", args: []string{"--start", "2024-03-12", "--end", "2024-03-12"}, wantErr: "must be after"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, err := dateRange(rangeCmd(t, tt.args...))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantEnd, end)
		})
	}
}

func TestReconcileArgs(t *testing.T) {
	req := engine.Request{
		Start:         time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		End:           time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC),
		EmployeeCodes: []string{"E100", "E200"},
	}
	assert.Equal(t, "--start 2024-03-01 --end 2024-03-08 --employee E100 --employee E200", reconcileArgs(req, ""))
	assert.Equal(t, "--retry-run abc", reconcileArgs(req, "abc"))
}

func TestSessionWindowDefaultsToLastWeek(t *testing.T) {
	start, end, err := sessionWindow(rangeCmd(t))
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, end.Sub(start))
	assert.True(t, end.After(time.Now().UTC()))
}
