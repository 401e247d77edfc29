package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/attendance-engine/internal/common"
	"github.com/Veraticus/attendance-engine/internal/model"
	"github.com/Veraticus/attendance-engine/internal/service"
	"github.com/Veraticus/attendance-engine/internal/testutil"
)

// scriptedFeed serves fixed pages and injects errors per page.
type scriptedFeed struct {
	failures map[int][]error
	pages    [][]model.RawPunchEvent
	fetched  []int
	total    int
	mu       sync.Mutex
}

func newScriptedFeed(pageSize, records int) *scriptedFeed {
	f := &scriptedFeed{failures: map[int][]error{}, total: records}
	base := time.Date(2024, 3, 12, 8, 0, 0, 0, time.UTC)
	var page []model.RawPunchEvent
	for i := 0; i < records; i++ {
		page = append(page, model.RawPunchEvent{
			ExternalID:   fmt.Sprintf("evt-%03d", i),
			EmployeeCode: fmt.Sprintf("E%d", i%3),
			Timestamp:    base.Add(time.Duration(i) * time.Minute),
			TerminalID:   "GATE-1",
			State:        model.PunchIn,
			Source:       model.SourceBiometric,
		})
		if len(page) == pageSize {
			f.pages = append(f.pages, page)
			page = nil
		}
	}
	if len(page) > 0 {
		f.pages = append(f.pages, page)
	}
	return f
}

func (f *scriptedFeed) fail(page int, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[page] = append(f.failures[page], errs...)
}

func (f *scriptedFeed) Name() string { return "scripted" }

func (f *scriptedFeed) FetchPage(_ context.Context, req service.FeedRequest) (*service.FeedPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.fetched = append(f.fetched, req.Page)
	if errs := f.failures[req.Page]; len(errs) > 0 {
		f.failures[req.Page] = errs[1:]
		return nil, errs[0]
	}

	page := &service.FeedPage{Page: req.Page, TotalPages: len(f.pages), TotalRecords: f.total}
	if req.Page >= 1 && req.Page <= len(f.pages) {
		page.Punches = f.pages[req.Page-1]
	}
	return page, nil
}

func (f *scriptedFeed) fetchedPages() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.fetched...)
}

func fastOptions(attempts int) Options {
	return Options{
		PageSize: 10,
		Retry: service.RetryOptions{
			MaxAttempts:       attempts,
			InitialDelay:      time.Millisecond,
			MaxDelay:          2 * time.Millisecond,
			Multiplier:        2,
			MaxRateLimitWaits: 10,
		},
	}
}

var testWindow = Window{
	Start: time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC),
}

func storedIDs(t *testing.T, db *testutil.TestDB) map[string]int {
	t.Helper()
	punches, err := db.Storage.GetPunches(context.Background(), service.PunchFilter{
		Start: testWindow.Start,
		End:   testWindow.End,
	})
	require.NoError(t, err)
	ids := map[string]int{}
	for _, p := range punches {
		ids[p.ExternalID]++
	}
	return ids
}

func TestSyncFullWindow(t *testing.T) {
	db := testutil.SetupTestDB(t, testutil.TestDBOptions{})
	feed := newScriptedFeed(10, 45)

	var progress []int
	opts := fastOptions(3)
	opts.Progress = func(processed, _ int) { progress = append(progress, processed) }

	result, err := New(feed, db.Storage, opts).Sync(context.Background(), testWindow)
	require.NoError(t, err)

	assert.Equal(t, 5, result.Pages)
	assert.Equal(t, 45, result.Fetched)
	assert.Equal(t, 45, result.Inserted)
	assert.Zero(t, result.Duplicates)
	assert.True(t, result.Cursor.Completed)
	assert.Equal(t, "evt-044", result.Cursor.LastExternalID)
	assert.Equal(t, []int{10, 20, 30, 40, 45}, progress)
	assert.Len(t, storedIDs(t, db), 45)
}

func TestSyncResumesAfterRetriesExhausted(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t, testutil.TestDBOptions{})
	feed := newScriptedFeed(10, 50)
	outage := errors.New("connection reset")
	feed.fail(3, outage, outage, outage)

	_, err := New(feed, db.Storage, fastOptions(3)).Sync(ctx, testWindow)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrMaxRetries)

	cursor, err := db.Storage.GetSyncCursor(ctx, feed.Name(), testWindow.Start, testWindow.End)
	require.NoError(t, err)
	assert.Equal(t, 3, cursor.Page)
	assert.Equal(t, 20, cursor.RecordsProcessed)
	assert.Equal(t, "evt-019", cursor.LastExternalID)
	assert.False(t, cursor.Completed)
	assert.Len(t, storedIDs(t, db), 20)

	before := len(feed.fetchedPages())
	result, err := New(feed, db.Storage, fastOptions(3)).Sync(ctx, testWindow)
	require.NoError(t, err)

	assert.True(t, result.Resumed)
	assert.Equal(t, []int{3, 4, 5}, feed.fetchedPages()[before:])
	assert.Zero(t, result.Duplicates)

	ids := storedIDs(t, db)
	assert.Len(t, ids, 50)
	for id, n := range ids {
		assert.Equal(t, 1, n, "external ID %s stored more than once", id)
	}
}

func TestSyncRateLimitDoesNotConsumeAttempts(t *testing.T) {
	db := testutil.SetupTestDB(t, testutil.TestDBOptions{})
	feed := newScriptedFeed(10, 20)

	// Two failures plus five rate limits would exhaust three attempts if
	// rate limits counted against them.
	limited := &common.RateLimitError{RetryAfter: time.Millisecond}
	feed.fail(2, errors.New("timeout"), limited, limited, limited, errors.New("timeout"), limited, limited)

	result, err := New(feed, db.Storage, fastOptions(3)).Sync(context.Background(), testWindow)
	require.NoError(t, err)
	assert.True(t, result.Cursor.Completed)
	assert.Equal(t, 20, result.Inserted)
}

func TestSyncNonRetryableErrorStopsImmediately(t *testing.T) {
	db := testutil.SetupTestDB(t, testutil.TestDBOptions{})
	feed := newScriptedFeed(10, 20)
	feed.fail(1, &common.RetryableError{Err: common.ErrFeedRejected, Retryable: false})

	_, err := New(feed, db.Storage, fastOptions(5)).Sync(context.Background(), testWindow)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrFeedRejected)
	assert.Equal(t, []int{1}, feed.fetchedPages())
}

func TestSyncCountsOverlappingPagesAsDuplicates(t *testing.T) {
	db := testutil.SetupTestDB(t, testutil.TestDBOptions{})
	feed := newScriptedFeed(10, 20)
	// The feed repeats the tail of page 1 at the head of page 2.
	feed.pages[1] = append(append([]model.RawPunchEvent{}, feed.pages[0][8:]...), feed.pages[1]...)

	result, err := New(feed, db.Storage, fastOptions(3)).Sync(context.Background(), testWindow)
	require.NoError(t, err)
	assert.Equal(t, 22, result.Fetched)
	assert.Equal(t, 20, result.Inserted)
	assert.Equal(t, 2, result.Duplicates)
	assert.Len(t, storedIDs(t, db), 20)
}

func TestSyncCompletedWindowReturnsEarly(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t, testutil.TestDBOptions{})
	feed := newScriptedFeed(10, 15)

	_, err := New(feed, db.Storage, fastOptions(3)).Sync(ctx, testWindow)
	require.NoError(t, err)
	fetched := len(feed.fetchedPages())

	result, err := New(feed, db.Storage, fastOptions(3)).Sync(ctx, testWindow)
	require.NoError(t, err)
	assert.True(t, result.AlreadyComplete)
	assert.Equal(t, fetched, len(feed.fetchedPages()))
	assert.Equal(t, 15, result.Cursor.RecordsProcessed)
}

func TestSyncEmptyWindow(t *testing.T) {
	db := testutil.SetupTestDB(t, testutil.TestDBOptions{})
	feed := newScriptedFeed(10, 0)

	result, err := New(feed, db.Storage, fastOptions(3)).Sync(context.Background(), testWindow)
	require.NoError(t, err)
	assert.True(t, result.Cursor.Completed)
	assert.Equal(t, 1, result.Pages)
	assert.Zero(t, result.Fetched)
}

type wrongPageFeed struct{ *scriptedFeed }

func (f wrongPageFeed) FetchPage(ctx context.Context, req service.FeedRequest) (*service.FeedPage, error) {
	page, err := f.scriptedFeed.FetchPage(ctx, req)
	if err != nil {
		return nil, err
	}
	page.Page = req.Page + 1
	return page, nil
}

func TestSyncRejectsMismatchedPage(t *testing.T) {
	db := testutil.SetupTestDB(t, testutil.TestDBOptions{})
	feed := wrongPageFeed{newScriptedFeed(10, 20)}

	_, err := New(feed, db.Storage, fastOptions(3)).Sync(context.Background(), testWindow)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidPage)
	assert.Empty(t, storedIDs(t, db))
}

func TestSyncRejectsInvertedWindow(t *testing.T) {
	db := testutil.SetupTestDB(t, testutil.TestDBOptions{})
	_, err := New(newScriptedFeed(10, 1), db.Storage, fastOptions(3)).Sync(context.Background(),
		Window{Start: testWindow.End, End: testWindow.Start})
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}
