// Package cli provides the command-line interface for histograph.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/raphaelgruber/histograph-go/internal/actions"
	"github.com/raphaelgruber/histograph-go/internal/client"
	"github.com/raphaelgruber/histograph-go/internal/config"
	"github.com/raphaelgruber/histograph-go/internal/db"
	"github.com/raphaelgruber/histograph-go/internal/metrics"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose   bool
	user      string
	remote    bool
	serverURL string

	// Global config and backend, set up by PersistentPreRunE
	cfg      config.Config
	logger   *slog.Logger
	closeLog func() error
	dbClient *db.Client
	backend  Backend
)

// offline commands need neither the database nor the server.
var offline = map[string]bool{
	"version":    true,
	"help":       true,
	"schema":     true,
	"completion": true,
}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "histograph",
	Short: "Audited mutations of the histograph entity graph",
	Long: `Histograph links entities (people, places, organisations) to the
multilingual resources they appear in.

Every change goes through an action: it is recorded in the audit log,
applied to the graph and then marked as performed.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if offline[cmd.Name()] {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		logger, closeLog = cliLogger(cfg)
		if user == "" {
			user = os.Getenv("USER")
		}

		if remote || serverURL != "" {
			url := serverURL
			if url == "" {
				url = cfg.ServerURL
			}
			backend = &remoteBackend{client: client.New(url, user)}
			return nil
		}

		ctx := context.Background()
		dbClient, err = db.NewClient(ctx, db.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}, logger, nil)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}

		if err := dbClient.InitSchema(ctx, cfg.Languages); err != nil {
			return fmt.Errorf("initialize schema: %w", err)
		}

		engine := actions.NewEngine(actions.Dependencies{
			Store:   dbClient,
			Audit:   dbClient,
			Metrics: metrics.NewCollector(),
			Logger:  logger,
		}, actions.Config{Languages: cfg.Languages, BatchSize: cfg.BulkBatchSize})
		backend = &localBackend{engine: engine, store: dbClient, user: user}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if dbClient != nil {
			if err := dbClient.Close(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
			}
		}
		if closeLog != nil {
			_ = closeLog()
		}
	},
}

// cliLogger logs JSON to the log file and, with --verbose, text to stderr.
func cliLogger(cfg config.Config) (*slog.Logger, func() error) {
	if verbose {
		return config.SetupLogger(cfg)
	}
	if cfg.LogFile == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() error { return nil }
	}
	file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() error { return nil }
	}
	handler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: cfg.LogLevel})
	return slog.New(handler).With("service", "histograph", "component", "cli"), file.Close
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&user, "user", "u", "", "identity recorded as performedBy (default $USER)")
	rootCmd.PersistentFlags().BoolVar(&remote, "remote", false, "send actions to the server at HISTOGRAPH_SERVER_URL instead of the database")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "server URL; implies --remote")

	// Add subcommands
	rootCmd.AddCommand(actionCmd)
	rootCmd.AddCommand(actionsCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(watchCmd)
}
