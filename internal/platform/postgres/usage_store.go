package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/formsense/formsense-api/internal/store"
	"github.com/google/uuid"
)

// PostgresUsageStore implements the store.UsageStore interface using a
// PostgreSQL database as the storage backend.
type PostgresUsageStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresUsageStore creates a new PostgreSQL implementation of the
// UsageStore interface. It accepts a database connection or transaction
// that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresUsageStore(db store.DBTX, logger *slog.Logger) *PostgresUsageStore {
	if db == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresUsageStore{
		db:     db,
		logger: logger.With(slog.String("component", "usage_store")),
	}
}

// Ensure PostgresUsageStore implements store.UsageStore
var _ store.UsageStore = (*PostgresUsageStore)(nil)

// GetPagesUsed implements store.UsageStore.GetPagesUsed.
// A missing row counts as zero usage, not an error.
func (s *PostgresUsageStore) GetPagesUsed(ctx context.Context, accountID uuid.UUID, period string) (int, error) {
	query := `
		SELECT pages_used
		FROM usage_periods
		WHERE account_id = $1 AND period = $2`

	var pages int
	err := s.db.QueryRowContext(ctx, query, accountID, period).Scan(&pages)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		s.logger.Error("failed to get usage",
			"account_id", accountID,
			"period", period,
			"error", err)
		return 0, fmt.Errorf("failed to get usage: %w", MapError(err))
	}

	return pages, nil
}

// AddPages implements store.UsageStore.AddPages. The increment is atomic at
// the database level so interleaved submissions cannot lose updates.
func (s *PostgresUsageStore) AddPages(ctx context.Context, accountID uuid.UUID, period string, pages int) error {
	query := `
		INSERT INTO usage_periods (account_id, period, pages_used)
		VALUES ($1, $2, $3)
		ON CONFLICT (account_id, period) DO UPDATE
		SET pages_used = usage_periods.pages_used + EXCLUDED.pages_used`

	_, err := s.db.ExecContext(ctx, query, accountID, period, pages)
	if err != nil {
		s.logger.Error("failed to record usage",
			"account_id", accountID,
			"period", period,
			"pages", pages,
			"error", err)
		return fmt.Errorf("failed to record usage: %w", MapError(err))
	}

	s.logger.Debug("usage recorded",
		"account_id", accountID,
		"period", period,
		"pages", pages)
	return nil
}
