package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/formsense/formsense-api/internal/config"
)

// migrationsDir is the filesystem location of the goose SQL migrations,
// relative to the working directory the server is launched from.
const migrationsDir = "migrations"

// runMigrations executes a goose migration command against the configured
// database.
func runMigrations(cfg *config.Config, command, migrationName string) error {
	db, err := goose.OpenDBWithDriver("pgx", cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var args []string
	if command == "create" {
		if migrationName == "" {
			return fmt.Errorf("create requires -migration-name")
		}
		args = append(args, migrationName, "sql")
	}

	if err := goose.RunContext(ctx, command, db, migrationsDir, args...); err != nil {
		return fmt.Errorf("migration command %q failed: %w", command, err)
	}
	return nil
}
