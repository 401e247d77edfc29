package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/attendance-engine/internal/cli"
	"github.com/Veraticus/attendance-engine/internal/feed"
)

func feedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Terminal feed utilities",
	}
	cmd.AddCommand(feedServeCmd())
	return cmd
}

func feedServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored punches in the terminal feed format",
		Long: `Serve the punches in this database over HTTP using the terminal feed's
paginated format, so another instance can sync from this one.`,
		RunE: runFeedServe,
	}
	cmd.Flags().String("addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().String("token", "", "bearer token required by clients (default: feed.serve_token)")
	return cmd
}

func runFeedServe(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	token, _ := cmd.Flags().GetString("token")
	if token == "" {
		token = viper.GetString("feed.serve_token")
	}

	store, err := initStorage(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := cli.NewInterruptHandler(cmd.ErrOrStderr()).HandleInterrupts(cmd.Context(), "Feed server", "")
	srv := &http.Server{
		Addr:              addr,
		Handler:           feed.NewReplayServer(store, token).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Serving punch feed", "addr", addr, "auth", token != "")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("feed server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down feed server: %w", err)
	}
	return nil
}
