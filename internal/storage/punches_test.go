package storage

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/attendance-engine/internal/common"
	"github.com/Veraticus/attendance-engine/internal/model"
	"github.com/Veraticus/attendance-engine/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCursor(page int, lastID string) model.SyncCursor {
	return model.SyncCursor{
		Feed:           "terminals",
		WindowStart:    testDay,
		WindowEnd:      testDay.AddDate(0, 0, 1),
		Page:           page,
		LastExternalID: lastID,
	}
}

func TestSavePunchPage_DeduplicatesByExternalID(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	page := []model.RawPunchEvent{
		punchAt("p1", "E1", 9, 0, model.PunchIn),
		punchAt("p2", "E1", 17, 0, model.PunchOut),
	}

	inserted, err := store.SavePunchPage(ctx, page, testCursor(2, "p2"))
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)

	// Replaying the page plus one new punch only inserts the new one.
	page = append(page, punchAt("p3", "E2", 9, 5, model.PunchIn))
	inserted, err = store.SavePunchPage(ctx, page, testCursor(2, "p3"))
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)

	count, err := store.CountPunches(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestSavePunchPage_AdvancesCursor(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	_, err := store.GetSyncCursor(ctx, "terminals", testDay, testDay.AddDate(0, 0, 1))
	assert.ErrorIs(t, err, common.ErrNotFound)

	cursor := testCursor(3, "p9")
	cursor.RecordsProcessed = 20
	cursor.RecordsTotal = 45
	_, err = store.SavePunchPage(ctx, []model.RawPunchEvent{punchAt("p9", "E1", 9, 0, model.PunchIn)}, cursor)
	require.NoError(t, err)

	got, err := store.GetSyncCursor(ctx, "terminals", testDay, testDay.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 3, got.Page)
	assert.Equal(t, "p9", got.LastExternalID)
	assert.Equal(t, 20, got.RecordsProcessed)
	assert.Equal(t, 45, got.RecordsTotal)
	assert.False(t, got.Completed)

	// An empty final page still moves the cursor.
	cursor.Page = 4
	cursor.Completed = true
	_, err = store.SavePunchPage(ctx, nil, cursor)
	require.NoError(t, err)

	cursors, err := store.ListSyncCursors(ctx, "")
	require.NoError(t, err)
	require.Len(t, cursors, 1)
	assert.True(t, cursors[0].Completed)
	assert.Equal(t, 4, cursors[0].Page)
}

func TestSavePunchPage_InvalidPunchCommitsNothing(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	bad := punchAt("", "E1", 9, 0, model.PunchIn)
	_, err := store.SavePunchPage(ctx, []model.RawPunchEvent{punchAt("p1", "E1", 8, 0, model.PunchIn), bad}, testCursor(2, "x"))
	require.ErrorIs(t, err, ErrInvalidPunch)

	count, err := store.CountPunches(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = store.GetSyncCursor(ctx, "terminals", testDay, testDay.AddDate(0, 0, 1))
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestGetPunches(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	mobile := punchAt("p4", "E2", 18, 0, model.PunchOut)
	mobile.Source = model.SourceMobile
	_, err := store.SavePunchPage(ctx, []model.RawPunchEvent{
		punchAt("p3", "E1", 17, 0, model.PunchOut),
		punchAt("p1", "E1", 9, 0, model.PunchIn),
		punchAt("p2", "E2", 8, 30, model.PunchIn),
		mobile,
	}, testCursor(2, "p4"))
	require.NoError(t, err)

	all, err := store.GetPunches(ctx, service.PunchFilter{Start: testDay, End: testDay.AddDate(0, 0, 1)})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, []string{"p1", "p3", "p2", "p4"},
		[]string{all[0].ExternalID, all[1].ExternalID, all[2].ExternalID, all[3].ExternalID})
	assert.Equal(t, model.SourceMobile, all[3].Source)
	assert.Equal(t, model.PunchOut, all[3].State)

	morning, err := store.GetPunches(ctx, service.PunchFilter{
		Start:         testDay,
		End:           testDay.Add(12 * time.Hour),
		EmployeeCodes: []string{"E1"},
	})
	require.NoError(t, err)
	require.Len(t, morning, 1)
	assert.Equal(t, "p1", morning[0].ExternalID)
	assert.True(t, morning[0].Timestamp.Equal(time.Date(2024, 3, 12, 9, 0, 0, 0, time.UTC)))

	_, err = store.GetPunches(ctx, service.PunchFilter{Start: testDay, End: testDay.Add(-time.Hour)})
	assert.ErrorIs(t, err, ErrInvalidDateRange)
}
