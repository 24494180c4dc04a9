// Package main provides the HTTP server for histograph actions.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raphaelgruber/histograph-go/internal/actions"
	"github.com/raphaelgruber/histograph-go/internal/config"
	"github.com/raphaelgruber/histograph-go/internal/db"
	"github.com/raphaelgruber/histograph-go/internal/events"
	"github.com/raphaelgruber/histograph-go/internal/metrics"
	"github.com/raphaelgruber/histograph-go/internal/server"
)

const version = "0.1.0"

func main() {
	wipeDB := flag.Bool("wipe", false, "wipe all data from database on startup (testing only)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger, cleanup := config.SetupLogger(cfg)
	defer cleanup()
	logger = logger.With("component", "server")

	logger.Info("histograph-server starting",
		"version", version,
		"port", cfg.ServerPort,
		"surrealdb_url", cfg.SurrealDBURL,
		"languages", cfg.Languages,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mc := metrics.NewCollector()

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	dbClient, err := db.NewClient(connectCtx, db.Config{
		URL:       cfg.SurrealDBURL,
		Namespace: cfg.SurrealDBNamespace,
		Database:  cfg.SurrealDBDatabase,
		Username:  cfg.SurrealDBUser,
		Password:  cfg.SurrealDBPass,
		AuthLevel: cfg.SurrealDBAuthLevel,
	}, logger, mc)
	cancel()
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		logger.Info("closing database connection")
		if err := dbClient.Close(context.Background()); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	if *wipeDB || os.Getenv("HISTOGRAPH_WIPE_DB") == "true" {
		if err := dbClient.WipeData(ctx); err != nil {
			logger.Error("failed to wipe database", "error", err)
			os.Exit(1)
		}
	}

	if err := dbClient.InitSchema(ctx, cfg.Languages); err != nil {
		logger.Error("failed to initialize database schema", "error", err)
		os.Exit(1)
	}

	hub := events.NewHub(logger)
	defer hub.Close()

	engine := actions.NewEngine(actions.Dependencies{
		Store:    dbClient,
		Audit:    dbClient,
		Notifier: hub,
		Metrics:  mc,
		Logger:   logger,
	}, actions.Config{Languages: cfg.Languages, BatchSize: cfg.BulkBatchSize})

	srv := server.New(server.Dependencies{
		Engine:  engine,
		Audit:   dbClient,
		Events:  hub,
		Metrics: mc,
		Logger:  logger,
	})

	logger.Info("API available", "url", fmt.Sprintf("http://localhost:%s/api/actions", cfg.ServerPort))
	if err := srv.Run(ctx, ":"+cfg.ServerPort); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
