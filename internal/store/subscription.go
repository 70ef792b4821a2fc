package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus values mirror the Paddle subscription lifecycle.
const (
	SubscriptionStatusActive    = "active"
	SubscriptionStatusPastDue   = "past_due"
	SubscriptionStatusCancelled = "cancelled"
)

// Subscription is an account's billing state as reported by Paddle webhooks.
type Subscription struct {
	AccountID            uuid.UUID
	PaddleSubscriptionID string
	PlanID               string
	Status               string
	PageLimit            int
	UpdatedAt            time.Time
}

// SubscriptionStore persists billing state driven by webhook events.
// Version: 1.0
type SubscriptionStore interface {
	// Upsert inserts or replaces the subscription row for the account.
	Upsert(ctx context.Context, sub *Subscription) error

	// GetByAccountID returns the account's subscription.
	// Returns ErrSubscriptionNotFound if the account has none.
	GetByAccountID(ctx context.Context, accountID uuid.UUID) (*Subscription, error)
}
