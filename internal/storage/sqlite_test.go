package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/attendance-engine/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper function to create test storage.
func createTestStorage(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}

	return store, func() { _ = store.Close() }
}

var testDay = time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC)

func punchAt(id, employee string, hour, minute int, state model.PunchState) model.RawPunchEvent {
	return model.RawPunchEvent{
		ExternalID:   id,
		EmployeeCode: employee,
		Timestamp:    time.Date(2024, 3, 12, hour, minute, 0, 0, time.UTC),
		TerminalID:   "GATE-1",
		State:        state,
		Source:       model.SourceBiometric,
	}
}

func TestNewSQLiteStorage_RejectsEmptyPath(t *testing.T) {
	_, err := NewSQLiteStorage("  ")
	assert.ErrorIs(t, err, ErrEmptyString)
}

func TestMigrate(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	version, err := store.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, ExpectedSchemaVersion, version)

	// A second run is a no-op.
	require.NoError(t, store.Migrate(ctx))

	for _, table := range []string{"raw_punches", "sync_cursors", "shifts", "employees", "holidays",
		"attendance_sessions", "session_days", "reconcile_runs", "run_failures"} {
		var count int
		err := store.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name = ?`, table).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "table %s", table)
	}
}

func TestTimeFormatSortsLexically(t *testing.T) {
	a := formatTime(time.Date(2024, 3, 12, 9, 0, 5, 0, time.UTC))
	b := formatTime(time.Date(2024, 3, 12, 9, 0, 5, 500, time.UTC))
	c := formatTime(time.Date(2024, 3, 12, 9, 0, 6, 0, time.FixedZone("PKT", 5*3600)))

	assert.Less(t, a, b)
	assert.Less(t, c, a, "zoned instants are stored in UTC")

	parsed, err := parseTime(b)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(time.Date(2024, 3, 12, 9, 0, 5, 500, time.UTC)))
}
