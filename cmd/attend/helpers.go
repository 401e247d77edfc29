package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/attendance-engine/internal/common"
	"github.com/Veraticus/attendance-engine/internal/config"
	"github.com/Veraticus/attendance-engine/internal/model"
	"github.com/Veraticus/attendance-engine/internal/policy"
	"github.com/Veraticus/attendance-engine/internal/service"
	"github.com/Veraticus/attendance-engine/internal/storage"
)

// databasePath resolves the configured database path.
func databasePath() string {
	if dbPath := viper.GetString("database.path"); dbPath != "" {
		return config.ExpandPath(dbPath)
	}
	return config.DefaultDatabasePath()
}

// initStorage opens the database and brings its schema up to date.
func initStorage(ctx context.Context) (service.Storage, error) {
	store, err := storage.NewSQLiteStorage(databasePath())
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// loadPolicy reads the policy section of the configuration.
func loadPolicy() (policy.Config, error) {
	cfg, err := config.LoadPolicy(viper.GetViper())
	if err != nil {
		return policy.Config{}, common.NewUserError("the policy configuration is invalid", err)
	}
	return cfg, nil
}

// dateFlag parses a YYYY-MM-DD flag as a UTC civil date.
func dateFlag(cmd *cobra.Command, name string) (time.Time, error) {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		return time.Time{}, fmt.Errorf("--%s is required", name)
	}
	d, err := time.Parse(model.DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s %q: expected YYYY-MM-DD", name, raw)
	}
	return d, nil
}

// dateRange reads --start and --end, defaulting --end to the day after
// --start so a single date selects one day.
func dateRange(cmd *cobra.Command) (time.Time, time.Time, error) {
	start, err := dateFlag(cmd, "start")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end := start.AddDate(0, 0, 1)
	if raw, _ := cmd.Flags().GetString("end"); raw != "" {
		if end, err = dateFlag(cmd, "end"); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("--end %s must be after --start %s",
			end.Format(model.DateLayout), start.Format(model.DateLayout))
	}
	return start, end, nil
}

func addDateRangeFlags(cmd *cobra.Command) {
	cmd.Flags().String("start", "", "first date (YYYY-MM-DD)")
	cmd.Flags().String("end", "", "date after the last one (YYYY-MM-DD, default: start + 1 day)")
}
