package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/attendance-engine/internal/cli"
	"github.com/Veraticus/attendance-engine/internal/engine"
	"github.com/Veraticus/attendance-engine/internal/model"
)

func reconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Pair punches into sessions and apply attendance policy",
		Long: `Reconcile every employee-day with punches in the window. Each day is
written as a new processing version, so rerunning a window is safe and
replaces earlier results. Days that fail are recorded against the run
and can be retried alone with --retry-run.`,
		Example: `  attend reconcile --start 2024-03-01 --end 2024-04-01
  attend reconcile --start 2024-03-12 --employee E100 --employee E200
  attend reconcile --retry-run 3f1c9a52-...`,
		RunE: runReconcile,
	}

	addDateRangeFlags(cmd)
	cmd.Flags().StringSlice("employee", nil, "only reconcile these employee codes")
	cmd.Flags().Int("workers", 0, "concurrent days per chunk (default 4)")
	cmd.Flags().Int("chunk-size", 0, "days per chunk (default 100)")
	cmd.Flags().String("retry-run", "", "reprocess only the failed days of an earlier run")
	cmd.MarkFlagsMutuallyExclusive("retry-run", "start")
	cmd.MarkFlagsMutuallyExclusive("retry-run", "employee")

	return cmd
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	retryRun, _ := cmd.Flags().GetString("retry-run")

	var req engine.Request
	if retryRun == "" {
		start, end, err := dateRange(cmd)
		if err != nil {
			return err
		}
		employees, _ := cmd.Flags().GetStringSlice("employee")
		req = engine.Request{Start: start, End: end, EmployeeCodes: employees}
	}

	pol, err := loadPolicy()
	if err != nil {
		return err
	}

	store, err := initStorage(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	out := cmd.OutOrStdout()
	bar := cli.NewProgressBar(out, 0, "Reconciling")
	opts := engine.DefaultOptions()
	opts.Progress = cli.TrackProgress(bar)
	if workers := viper.GetInt("reconcile.workers"); workers > 0 {
		opts.Workers = workers
	}
	if size := viper.GetInt("reconcile.chunk_size"); size > 0 {
		opts.ChunkSize = size
	}
	if workers, _ := cmd.Flags().GetInt("workers"); workers > 0 {
		opts.Workers = workers
	}
	if size, _ := cmd.Flags().GetInt("chunk-size"); size > 0 {
		opts.ChunkSize = size
	}

	eng, err := engine.New(store, pol, opts)
	if err != nil {
		return err
	}

	hint := "attend reconcile " + reconcileArgs(req, retryRun)
	handler := cli.NewInterruptHandler(out)
	ctx := handler.HandleInterrupts(cmd.Context(), "Reconciliation", hint)

	var summary *engine.RunSummary
	if retryRun != "" {
		slog.Info("Retrying failed days", "run_id", retryRun)
		summary, err = eng.RetryFailures(ctx, retryRun)
	} else {
		slog.Info("Starting reconciliation",
			"start", req.Start.Format(model.DateLayout), "end", req.End.Format(model.DateLayout),
			"employees", len(req.EmployeeCodes))
		summary, err = eng.Reconcile(ctx, req)
	}
	_ = bar.Finish()
	fmt.Fprintln(out)
	if err != nil {
		if handler.WasInterrupted() {
			return nil
		}
		return err
	}

	if retryRun != "" && summary.Run.ID == "" {
		fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Run %s has no failed days to retry", retryRun)))
		return nil
	}

	fmt.Fprintln(out, cli.FormatRunSummary(summary))
	if summary.IsPartial() {
		return fmt.Errorf("%d employee-days failed in run %s", len(summary.Failures), summary.Run.ID)
	}
	return nil
}

func reconcileArgs(req engine.Request, retryRun string) string {
	if retryRun != "" {
		return "--retry-run " + retryRun
	}
	args := fmt.Sprintf("--start %s --end %s", req.Start.Format(model.DateLayout), req.End.Format(model.DateLayout))
	for _, code := range req.EmployeeCodes {
		args += " --employee " + code
	}
	return args
}
