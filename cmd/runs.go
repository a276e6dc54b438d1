package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vedsharma/apibench/internal/storage"
)

func init() {
	runsCmd := &cobra.Command{
		Use:   "runs <request-id>",
		Short: "View the run history of a saved request",
		Args:  cobra.ExactArgs(1),
		Run:   runRunsList,
	}
	runsCmd.Flags().IntP("limit", "n", storage.DefaultRunLimit, "Number of runs to show")

	showCmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show full details of a run",
		Args:  cobra.ExactArgs(1),
		Run:   runRunsShow,
	}

	runsCmd.AddCommand(showCmd)
	rootCmd.AddCommand(runsCmd)
}

func runRunsList(cmd *cobra.Command, args []string) {
	a := current

	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		a.fatal("--limit must be positive", nil)
	}

	runs, err := a.store.ListRuns(context.Background(), args[0], limit)
	if err != nil {
		a.fatal("Failed to load runs", err)
	}
	a.printer.PrintRunList(runs)
}

func runRunsShow(cmd *cobra.Command, args []string) {
	a := current

	run, err := a.store.GetRun(context.Background(), args[0])
	if err != nil {
		a.fatal("Failed to load run", err)
	}
	if run == nil {
		a.fatal(fmt.Sprintf("Run with id %s not found", args[0]), nil)
	}
	a.printer.PrintRun(run)
}
