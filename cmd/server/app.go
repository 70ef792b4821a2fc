package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/formsense/formsense-api/internal/billing"
	"github.com/formsense/formsense-api/internal/config"
	"github.com/formsense/formsense-api/internal/extraction"
	"github.com/formsense/formsense-api/internal/platform/gemini"
	"github.com/formsense/formsense-api/internal/platform/postgres"
	"github.com/formsense/formsense-api/internal/service/auth"
	"github.com/formsense/formsense-api/internal/service/usage"
	"github.com/formsense/formsense-api/internal/task"
)

// application holds the fully wired server dependencies.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	scheduler        *task.Scheduler
	jwtService       auth.JWTService
	limiter          *usage.Limiter
	webhookProcessor *billing.WebhookProcessor
}

// newApplication builds the dependency graph: database, stores, extractor,
// scheduler and services.
func newApplication(ctx context.Context, cfg *config.Config, appLogger *slog.Logger) (*application, error) {
	db, err := setupAppDatabase(cfg, appLogger)
	if err != nil {
		return nil, err
	}

	subscriptionStore := postgres.NewPostgresSubscriptionStore(db, appLogger)
	usageStore := postgres.NewPostgresUsageStore(db, appLogger)

	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT service: %w", err)
	}

	extractor, err := selectExtractor(ctx, cfg, appLogger)
	if err != nil {
		return nil, err
	}

	scheduler := task.NewScheduler(
		task.NewMemoryTaskStore(),
		extractor,
		task.SchedulerConfig{
			ProcessingDelay: cfg.Task.ProcessingDelay,
			TaskTTL:         cfg.Task.TaskTTL,
		},
		appLogger,
	)

	return &application{
		config:           cfg,
		logger:           appLogger,
		db:               db,
		scheduler:        scheduler,
		jwtService:       jwtService,
		limiter:          usage.NewLimiter(usageStore, subscriptionStore, appLogger),
		webhookProcessor: billing.NewWebhookProcessor(subscriptionStore, appLogger),
	}, nil
}

// selectExtractor picks the extraction engine based on configuration.
func selectExtractor(ctx context.Context, cfg *config.Config, appLogger *slog.Logger) (task.Extractor, error) {
	switch cfg.Extraction.Provider {
	case "gemini":
		extractor, err := gemini.NewExtractor(ctx, appLogger, cfg.Extraction)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini extractor: %w", err)
		}
		return extractor, nil
	case "stub":
		return extraction.NewStubExtractor(), nil
	default:
		return nil, fmt.Errorf("unknown extraction provider %q", cfg.Extraction.Provider)
	}
}

// cleanup releases application resources in reverse dependency order.
func (app *application) cleanup() {
	app.scheduler.Stop()

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("failed to close database connection", "error", err)
		}
	}
}
