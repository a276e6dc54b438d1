package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/vedsharma/apibench/internal/execution"
	"github.com/vedsharma/apibench/internal/logger"
)

func init() {
	runCmd := &cobra.Command{
		Use:   "run <request-id>",
		Short: "Run a saved request and record the attempt",
		Long: `Run a saved request once. Every attempt is recorded in the request's
run history, whether the server answered or not.

The exit status is 1 when the run failed.`,
		Args: cobra.ExactArgs(1),
		Run:  runRun,
	}
	runCmd.Flags().Bool("json", false, "Print the result as JSON")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) {
	a := current

	var sink execution.Sink = a.printer
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		sink = execution.SinkFunc(func(r execution.Result) {
			if err := a.printer.PrintJSON(r); err != nil {
				a.log.Warnw("Failed to encode result", logger.FieldError, err)
			}
		})
	}

	orchestrator := execution.NewOrchestrator(a.store, a.newClient(), a.log,
		execution.WithAliases(a.store),
		execution.WithSink(sink),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if res := orchestrator.Run(ctx, args[0]); !res.OK() {
		stop()
		a.close()
		os.Exit(1)
	}
}
