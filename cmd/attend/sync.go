package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/attendance-engine/internal/cli"
	"github.com/Veraticus/attendance-engine/internal/config"
	"github.com/Veraticus/attendance-engine/internal/feed"
	"github.com/Veraticus/attendance-engine/internal/ingest"
	"github.com/Veraticus/attendance-engine/internal/model"
)

func syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Pull raw punches from the terminal feed",
		Long: `Pull every punch of a date window from the terminal feed into the local
database. Pages are committed together with a cursor, so an interrupted
or failed sync resumes where it stopped when run again with the same
window. Dates are civil days in the policy's default time zone.`,
		Example: `  attend sync --start 2024-03-01 --end 2024-04-01
  attend sync --start 2024-03-12`,
		RunE: runSync,
	}

	addDateRangeFlags(cmd)
	cmd.Flags().Int("page-size", 0, "records per feed page (default 100)")
	_ = cmd.MarkFlagRequired("start")

	cmd.AddCommand(syncStatusCmd())
	return cmd
}

func runSync(cmd *cobra.Command, _ []string) error {
	start, end, err := dateRange(cmd)
	if err != nil {
		return err
	}
	pol, err := loadPolicy()
	if err != nil {
		return err
	}
	loc := pol.Location()
	window := ingest.Window{
		Start: time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc),
		End:   time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, loc),
	}

	client, err := feed.NewClient(config.LoadFeedConfig(viper.GetViper()))
	if err != nil {
		return err
	}

	store, err := initStorage(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	out := cmd.OutOrStdout()
	hint := fmt.Sprintf("attend sync --start %s --end %s",
		start.Format(model.DateLayout), end.Format(model.DateLayout))
	handler := cli.NewInterruptHandler(out)
	ctx := handler.HandleInterrupts(cmd.Context(), "Sync", hint)

	bar := cli.NewProgressBar(out, 0, "Syncing punches")
	opts := ingest.DefaultOptions()
	opts.Retry = config.LoadRetryOptions(viper.GetViper())
	opts.Progress = cli.TrackProgress(bar)
	if size := viper.GetInt("feed.page_size"); size > 0 {
		opts.PageSize = size
	}
	if size, _ := cmd.Flags().GetInt("page-size"); size > 0 {
		opts.PageSize = size
	}

	slog.Info("Starting sync", "feed", client.Name(),
		"start", window.Start.Format(time.RFC3339), "end", window.End.Format(time.RFC3339))

	result, err := ingest.New(client, store, opts).Sync(ctx, window)
	_ = bar.Finish()
	fmt.Fprintln(out)
	if err != nil {
		if handler.WasInterrupted() {
			return nil
		}
		return fmt.Errorf("sync stopped: %w\n%s", err, cli.FormatInfo("Resume with: "+hint))
	}

	fmt.Fprintln(out, cli.FormatSyncResult(result))
	return nil
}

func syncStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show stored punch count and sync window cursors",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			feedName, _ := cmd.Flags().GetString("feed")
			cursors, err := store.ListSyncCursors(cmd.Context(), feedName)
			if err != nil {
				return err
			}
			stored, err := store.CountPunches(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSyncStatus(cursors, stored))
			return nil
		},
	}
	cmd.Flags().String("feed", "", "only show windows of this feed")
	return cmd
}
