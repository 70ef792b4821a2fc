package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/formsense/formsense-api/internal/store"
	"github.com/google/uuid"
)

// PostgresSubscriptionStore implements the store.SubscriptionStore interface
// using a PostgreSQL database as the storage backend.
type PostgresSubscriptionStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresSubscriptionStore creates a new PostgreSQL implementation of the
// SubscriptionStore interface. It accepts a database connection or transaction
// that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresSubscriptionStore(db store.DBTX, logger *slog.Logger) *PostgresSubscriptionStore {
	if db == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresSubscriptionStore{
		db:     db,
		logger: logger.With(slog.String("component", "subscription_store")),
	}
}

// Ensure PostgresSubscriptionStore implements store.SubscriptionStore
var _ store.SubscriptionStore = (*PostgresSubscriptionStore)(nil)

// Upsert implements store.SubscriptionStore.Upsert.
// The account id is the conflict key: a later webhook for the same account
// replaces the previous billing state.
func (s *PostgresSubscriptionStore) Upsert(ctx context.Context, sub *store.Subscription) error {
	query := `
		INSERT INTO subscriptions (account_id, paddle_subscription_id, plan_id, status, page_limit, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (account_id) DO UPDATE
		SET paddle_subscription_id = EXCLUDED.paddle_subscription_id,
		    plan_id = EXCLUDED.plan_id,
		    status = EXCLUDED.status,
		    page_limit = EXCLUDED.page_limit,
		    updated_at = EXCLUDED.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		sub.AccountID,
		sub.PaddleSubscriptionID,
		sub.PlanID,
		sub.Status,
		sub.PageLimit,
		sub.UpdatedAt,
	)
	if err != nil {
		s.logger.Error("failed to upsert subscription",
			"account_id", sub.AccountID,
			"error", err)
		return fmt.Errorf("failed to upsert subscription: %w", MapError(err))
	}

	s.logger.Debug("subscription upserted",
		"account_id", sub.AccountID,
		"plan_id", sub.PlanID,
		"status", sub.Status)
	return nil
}

// GetByAccountID implements store.SubscriptionStore.GetByAccountID.
// Returns store.ErrSubscriptionNotFound if the account has no subscription.
func (s *PostgresSubscriptionStore) GetByAccountID(ctx context.Context, accountID uuid.UUID) (*store.Subscription, error) {
	query := `
		SELECT account_id, paddle_subscription_id, plan_id, status, page_limit, updated_at
		FROM subscriptions
		WHERE account_id = $1`

	var sub store.Subscription
	err := s.db.QueryRowContext(ctx, query, accountID).Scan(
		&sub.AccountID,
		&sub.PaddleSubscriptionID,
		&sub.PlanID,
		&sub.Status,
		&sub.PageLimit,
		&sub.UpdatedAt,
	)
	if err != nil {
		mapped := MapError(err)
		if store.IsNotFoundError(mapped) {
			return nil, store.ErrSubscriptionNotFound
		}
		s.logger.Error("failed to get subscription",
			"account_id", accountID,
			"error", err)
		return nil, fmt.Errorf("failed to get subscription: %w", mapped)
	}

	return &sub, nil
}
