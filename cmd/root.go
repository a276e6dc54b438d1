package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vedsharma/apibench/internal/config"
	"github.com/vedsharma/apibench/internal/errors"
	"github.com/vedsharma/apibench/internal/format"
	apihttp "github.com/vedsharma/apibench/internal/http"
	"github.com/vedsharma/apibench/internal/logger"
	"github.com/vedsharma/apibench/internal/storage"
)

// app is what every subcommand works with once the root pre-run has loaded
// configuration and opened the database
type app struct {
	cfg     *config.Config
	log     *zap.SugaredLogger
	store   *storage.SQLiteStorage
	printer *format.Printer
}

var (
	configPath string
	current    *app
)

var rootCmd = &cobra.Command{
	Use:   "apibench",
	Short: "An API testing workbench",
	Long: `apibench keeps saved HTTP requests in workspaces and collections,
runs them and records every attempt.

Examples:
  apibench workspace init
  apibench collection create "Users API"
  apibench request add <collection-id> "List users" GET https://api.example.com/users
  apibench run <request-id>
  apibench runs <request-id>
  apibench serve`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		current.close()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.apibench/apibench.toml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Show response headers")
}

func setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Options{Level: cfg.Log.Level, JSON: cfg.Log.JSON})
	if err != nil {
		return errors.Wrap(err, "failed to create logger")
	}

	store, err := storage.Open(cfg.Database.Path, log)
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}

	printer := format.NewPrinter(os.Stdout)
	printer.ShowHeaders, _ = cmd.Flags().GetBool("verbose")

	current = &app{cfg: cfg, log: log, store: store, printer: printer}
	return nil
}

func (a *app) close() {
	if a == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.log.Warnw("Failed to close database", logger.FieldError, err)
	}
	_ = a.log.Sync()
}

// newClient builds the dispatcher from the http section of the config
func (a *app) newClient() *apihttp.Client {
	return apihttp.NewClient(apihttp.Options{
		Timeout:                a.cfg.HTTP.Timeout,
		MaxResponseBytes:       a.cfg.HTTP.MaxResponseBytes,
		BlockMetadataEndpoints: a.cfg.HTTP.BlockMetadataEndpoints,
	}, a.log)
}

// fatal prints msg and exits. os.Exit skips the post-run hook, so the
// database is closed here.
func (a *app) fatal(msg string, err error) {
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	a.printer.PrintError(msg)
	a.close()
	os.Exit(1)
}
