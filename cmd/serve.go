package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vedsharma/apibench/internal/api"
	"github.com/vedsharma/apibench/internal/execution"
	"github.com/vedsharma/apibench/internal/playground"
)

func init() {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the workbench as a JSON API",
		Long: `Serve workspaces, collections, saved requests, run history and a
playground session over HTTP until interrupted.`,
		Args: cobra.NoArgs,
		Run:  runServe,
	}
	serveCmd.Flags().String("addr", "", "Listen address (overrides server.addr)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) {
	a := current

	addr := a.cfg.Server.Addr
	if flagAddr, _ := cmd.Flags().GetString("addr"); flagAddr != "" {
		addr = flagAddr
	}

	session := playground.NewSession(a.log, playground.WithAutosave(a.store, a.cfg.Autosave.Delay))
	defer session.Close()

	orchestrator := execution.NewOrchestrator(a.store, a.newClient(), a.log,
		execution.WithAliases(a.store),
		execution.WithSink(session),
	)

	handlers := api.NewHandlers(a.store, orchestrator, session, a.cfg.User.Name, a.log)
	server := api.NewServer(addr, handlers.Router(), a.log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := server.ListenAndServe(ctx)
	session.FlushAll()
	if err != nil {
		session.Close()
		a.fatal("Server failed", err)
	}
}
