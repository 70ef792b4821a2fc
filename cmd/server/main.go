// Package main implements the entry point for the FormSense API server,
// which accepts form image batches, extracts structured fields from them in
// the background, and exposes task status for polling clients.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/formsense/formsense-api/internal/config"
	"github.com/formsense/formsense-api/internal/platform/logger"
)

func main() {
	migrateCmd := flag.String("migrate", "",
		"run a migration command (up, down, status, version, create) and exit")
	migrationName := flag.String("migration-name", "",
		"name for a new migration when using -migrate create")
	flag.Parse()

	cfg, appLogger, err := initializeApp()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	if *migrateCmd != "" {
		if err := runMigrations(cfg, *migrateCmd, *migrationName); err != nil {
			appLogger.Error("migration failed", "command", *migrateCmd, "error", err)
			os.Exit(1)
		}
		appLogger.Info("migration completed", "command", *migrateCmd)
		return
	}

	ctx := context.Background()

	app, err := newApplication(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Error("failed to build application", "error", err)
		os.Exit(1)
	}

	if err := app.startHTTPServer(ctx, app.setupRouter()); err != nil {
		appLogger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

// initializeApp loads configuration and sets up structured logging.
func initializeApp() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	slog.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"extraction_provider", cfg.Extraction.Provider)

	return cfg, appLogger, nil
}
