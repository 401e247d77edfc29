package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/attendance-engine/internal/cli"
	"github.com/Veraticus/attendance-engine/internal/service"
)

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect reconciled attendance sessions",
	}
	cmd.AddCommand(sessionsShowCmd())
	cmd.AddCommand(sessionsPendingCmd())
	return cmd
}

func sessionsShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the latest sessions of a window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			start, end, err := sessionWindow(cmd)
			if err != nil {
				return err
			}
			employees, _ := cmd.Flags().GetStringSlice("employee")
			verbose, _ := cmd.Flags().GetBool("verbose")

			pol, err := loadPolicy()
			if err != nil {
				return err
			}
			store, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			sessions, err := store.GetSessions(cmd.Context(), service.SessionFilter{
				Start:         start,
				End:           end,
				EmployeeCodes: employees,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSessions(sessions, pol.Location(), verbose))
			return nil
		},
	}
	addDateRangeFlags(cmd)
	cmd.Flags().StringSlice("employee", nil, "only show these employee codes")
	cmd.Flags().BoolP("verbose", "v", false, "show audit notes under each session")
	return cmd
}

func sessionsPendingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List sessions with overtime awaiting approval",
		RunE: func(cmd *cobra.Command, _ []string) error {
			start, end, err := sessionWindow(cmd)
			if err != nil {
				return err
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

			sessions, err := store.GetPendingApprovals(cmd.Context(), start, end)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatTitle(fmt.Sprintf("%d sessions awaiting overtime approval", len(sessions))))
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSessions(sessions, pol.Location(), true))
			return nil
		},
	}
	addDateRangeFlags(cmd)
	return cmd
}

// sessionWindow reads the date flags used by the session views; without
// --start it covers the last seven days.
func sessionWindow(cmd *cobra.Command) (time.Time, time.Time, error) {
	if raw, _ := cmd.Flags().GetString("start"); raw == "" {
		today := time.Now().UTC().Truncate(24 * time.Hour)
		return today.AddDate(0, 0, -6), today.AddDate(0, 0, 1), nil
	}
	return dateRange(cmd)
}
