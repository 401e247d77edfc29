package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/attendance-engine/internal/cli"
	"github.com/Veraticus/attendance-engine/internal/config"
)

func rosterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roster",
		Short: "Manage shifts, employees and holidays",
	}
	cmd.AddCommand(rosterLoadCmd())
	cmd.AddCommand(rosterListCmd())
	return cmd
}

func rosterLoadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load <file>",
		Short: "Load a roster YAML file",
		Long: `Create or update the shifts, employees and holidays listed in a roster
file. Entries already in the database and absent from the file are kept.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			roster, err := config.LoadRosterFile(args[0])
			if err != nil {
				return err
			}

			store, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			stats, err := config.ApplyRoster(cmd.Context(), store, roster)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf(
				"Loaded %d shifts, %d employees and %d holidays", stats.Shifts, stats.Employees, stats.Holidays)))
			return nil
		},
	}
}

func rosterListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List employees and their shifts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := initStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			employees, err := store.GetEmployees(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatEmployees(employees))
			return nil
		},
	}
}
