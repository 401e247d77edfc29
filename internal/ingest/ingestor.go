// Package ingest pulls raw punches from the terminal feed into storage,
// page by page, behind a durable cursor.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/attendance-engine/internal/common"
	"github.com/Veraticus/attendance-engine/internal/model"
	"github.com/Veraticus/attendance-engine/internal/service"
)

// ProgressFunc receives the running record count after each committed page.
type ProgressFunc func(processed, total int)

// Options configures an Ingestor.
type Options struct {
	Progress ProgressFunc
	Retry    service.RetryOptions
	PageSize int
}

// DefaultOptions returns the options used by the CLI.
func DefaultOptions() Options {
	return Options{
		Retry:    service.DefaultRetryOptions(),
		PageSize: 100,
	}
}

// Window is the time range a sync pulls, [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// SyncResult summarizes one Sync call.
type SyncResult struct {
	Cursor          model.SyncCursor
	Feed            string
	Pages           int
	Fetched         int
	Inserted        int
	Duplicates      int
	Resumed         bool
	AlreadyComplete bool
}

// Ingestor pulls one feed into a punch store.
type Ingestor struct {
	feed  service.PunchFeed
	store service.PunchStore
	opts  Options
}

// New creates an Ingestor.
func New(feed service.PunchFeed, store service.PunchStore, opts Options) *Ingestor {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultOptions().PageSize
	}
	return &Ingestor{feed: feed, store: store, opts: opts}
}

// Sync pulls every remaining page of the window. Each page is committed
// together with the advanced cursor, so a run that stops for any reason
// resumes at the first uncommitted page and never fetches a committed one
// again. When retries on a page run out, Sync returns an error wrapping
// common.ErrMaxRetries and leaves the cursor on that page.
func (i *Ingestor) Sync(ctx context.Context, w Window) (*SyncResult, error) {
	if !w.End.After(w.Start) {
		return nil, fmt.Errorf("%w: sync window end %s is not after start %s",
			common.ErrInvalidConfig, w.End.Format(time.RFC3339), w.Start.Format(time.RFC3339))
	}

	feedName := i.feed.Name()
	result := &SyncResult{Feed: feedName}

	cursor, err := i.store.GetSyncCursor(ctx, feedName, w.Start, w.End)
	switch {
	case errors.Is(err, common.ErrNotFound):
		cursor = &model.SyncCursor{Feed: feedName, WindowStart: w.Start, WindowEnd: w.End, Page: 1}
	case err != nil:
		return nil, fmt.Errorf("failed to load sync cursor: %w", err)
	default:
		result.Resumed = cursor.Page > 1
	}
	result.Cursor = *cursor

	if cursor.Completed {
		result.AlreadyComplete = true
		slog.Info("Sync window already complete",
			"feed", feedName,
			"start", w.Start,
			"end", w.End,
			"records", cursor.RecordsProcessed)
		return result, nil
	}

	if result.Resumed {
		slog.Info("Resuming sync from cursor",
			"feed", feedName,
			"page", cursor.Page,
			"last_external_id", cursor.LastExternalID,
			"records_processed", cursor.RecordsProcessed)
	}

	for {
		page, err := i.fetch(ctx, w, cursor.Page)
		if err != nil {
			return result, fmt.Errorf("sync of %s halted at page %d: %w", feedName, cursor.Page, err)
		}
		if page.Page != cursor.Page {
			return result, fmt.Errorf("sync of %s: %w: asked for page %d, got %d",
				feedName, common.ErrInvalidPage, cursor.Page, page.Page)
		}

		next := *cursor
		next.Page++
		next.RecordsProcessed += len(page.Punches)
		next.RecordsTotal = max(page.TotalRecords, next.RecordsProcessed)
		if n := len(page.Punches); n > 0 {
			next.LastExternalID = page.Punches[n-1].ExternalID
		}
		next.Completed = len(page.Punches) == 0 || cursor.Page >= page.TotalPages
		next.UpdatedAt = time.Now()

		inserted, err := i.store.SavePunchPage(ctx, page.Punches, next)
		if err != nil {
			return result, fmt.Errorf("sync of %s: failed to commit page %d: %w", feedName, cursor.Page, err)
		}

		cursor = &next
		result.Cursor = next
		result.Pages++
		result.Fetched += len(page.Punches)
		result.Inserted += inserted
		result.Duplicates += len(page.Punches) - inserted

		slog.Info("Committed feed page",
			"feed", feedName,
			"page", next.Page-1,
			"records", len(page.Punches),
			"inserted", inserted,
			"records_processed", next.RecordsProcessed,
			"records_total", next.RecordsTotal)
		if i.opts.Progress != nil {
			i.opts.Progress(next.RecordsProcessed, next.RecordsTotal)
		}

		if next.Completed {
			return result, nil
		}
	}
}

func (i *Ingestor) fetch(ctx context.Context, w Window, page int) (*service.FeedPage, error) {
	var fetched *service.FeedPage
	err := common.WithRetry(ctx, func() error {
		p, err := i.feed.FetchPage(ctx, service.FeedRequest{
			Start:    w.Start,
			End:      w.End,
			Page:     page,
			PageSize: i.opts.PageSize,
		})
		if err != nil {
			return err
		}
		fetched = p
		return nil
	}, i.opts.Retry)
	if err != nil {
		return nil, err
	}
	return fetched, nil
}
