// Package testutil provides test utilities for the attendance engine: an
// isolated, migrated database seeded with roster fixtures, and punch builders.
package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/attendance-engine/internal/model"
	"github.com/Veraticus/attendance-engine/internal/storage"
)

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// TestDBOptions provides configuration options for test database setup.
type TestDBOptions struct {
	CustomSetup func(context.Context, *storage.SQLiteStorage) error
	Shifts      []model.ShiftSchedule
	Employees   []model.Employee
	Holidays    []model.Holiday
}

// SetupTestDB creates a new in-memory test database seeded with the given
// roster. It automatically handles migrations and cleanup.
//
// Example:
//
//	db := testutil.SetupTestDB(t, testutil.TestDBOptions{
//		Shifts:    []model.ShiftSchedule{testutil.DayShift()},
//		Employees: []model.Employee{testutil.Employee("E1", testutil.DayShift())},
//	})
func SetupTestDB(t *testing.T, opts TestDBOptions) *TestDB {
	t.Helper()

	// Create in-memory SQLite storage
	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	// Register cleanup
	t.Cleanup(func() {
		_ = store.Close()
	})

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	for _, shift := range opts.Shifts {
		if err := store.SaveShift(ctx, shift); err != nil {
			t.Fatalf("failed to seed shift %q: %v", shift.Name, err)
		}
	}
	for _, employee := range opts.Employees {
		if err := store.SaveEmployee(ctx, employee); err != nil {
			t.Fatalf("failed to seed employee %q: %v", employee.Code, err)
		}
	}
	for _, holiday := range opts.Holidays {
		if err := store.SaveHoliday(ctx, holiday); err != nil {
			t.Fatalf("failed to seed holiday %q: %v", holiday.Name, err)
		}
	}

	if opts.CustomSetup != nil {
		if err := opts.CustomSetup(ctx, store); err != nil {
			t.Fatalf("custom setup failed: %v", err)
		}
	}

	return &TestDB{
		Storage: store,
		t:       t,
	}
}

// SeedPunches stores punches under a throwaway cursor.
func (db *TestDB) SeedPunches(punches ...model.RawPunchEvent) {
	db.t.Helper()
	if len(punches) == 0 {
		return
	}

	start, end := punches[0].Timestamp, punches[0].Timestamp
	for _, p := range punches {
		if p.Timestamp.Before(start) {
			start = p.Timestamp
		}
		if p.Timestamp.After(end) {
			end = p.Timestamp
		}
	}

	cursor := model.SyncCursor{Feed: "seed", WindowStart: start, WindowEnd: end, Page: 2, Completed: true}
	if _, err := db.Storage.SavePunchPage(context.Background(), punches, cursor); err != nil {
		db.t.Fatalf("failed to seed punches: %v", err)
	}
}
