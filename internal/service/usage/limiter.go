// Package usage enforces per-account page quotas against the durable usage
// and subscription stores.
package usage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/formsense/formsense-api/internal/store"
	"github.com/google/uuid"
)

// FreePageLimit is the monthly page allowance for accounts without an
// active subscription.
const FreePageLimit = 50

// ErrLimitExceeded is returned when a submission would push the account
// past its monthly page allowance.
var ErrLimitExceeded = errors.New("usage limit exceeded")

// Limiter checks and records page consumption per account and billing period.
type Limiter struct {
	usageStore        store.UsageStore
	subscriptionStore store.SubscriptionStore
	logger            *slog.Logger
	timeFunc          func() time.Time // Injectable for testing
}

// NewLimiter creates a new Limiter.
func NewLimiter(usageStore store.UsageStore, subscriptionStore store.SubscriptionStore, logger *slog.Logger) *Limiter {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for Limiter")
	}

	return &Limiter{
		usageStore:        usageStore,
		subscriptionStore: subscriptionStore,
		logger:            logger.With(slog.String("component", "usage_limiter")),
		timeFunc:          time.Now,
	}
}

// Check returns ErrLimitExceeded when submitting pages more pages would push
// the account past its allowance for the current period. Other errors are
// store failures.
func (l *Limiter) Check(ctx context.Context, accountID uuid.UUID, pages int) error {
	limit, err := l.pageLimit(ctx, accountID)
	if err != nil {
		return err
	}

	period := l.currentPeriod()
	used, err := l.usageStore.GetPagesUsed(ctx, accountID, period)
	if err != nil {
		return fmt.Errorf("failed to check usage: %w", err)
	}

	if used+pages > limit {
		l.logger.Info("submission rejected by usage limit",
			"account_id", accountID,
			"period", period,
			"pages_used", used,
			"pages_requested", pages,
			"limit", limit)
		return fmt.Errorf("%w: %d of %d pages used this period", ErrLimitExceeded, used, limit)
	}

	return nil
}

// Record adds the consumed pages to the account's current period.
func (l *Limiter) Record(ctx context.Context, accountID uuid.UUID, pages int) error {
	return l.usageStore.AddPages(ctx, accountID, l.currentPeriod(), pages)
}

// pageLimit resolves the account's allowance: the subscription's limit for
// active plans, the free allowance otherwise.
func (l *Limiter) pageLimit(ctx context.Context, accountID uuid.UUID) (int, error) {
	sub, err := l.subscriptionStore.GetByAccountID(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrSubscriptionNotFound) {
			return FreePageLimit, nil
		}
		return 0, fmt.Errorf("failed to load subscription: %w", err)
	}

	if sub.Status != store.SubscriptionStatusActive {
		return FreePageLimit, nil
	}
	return sub.PageLimit, nil
}

// currentPeriod returns the calendar-month billing period, e.g. "2026-09".
func (l *Limiter) currentPeriod() string {
	return l.timeFunc().UTC().Format("2006-01")
}
