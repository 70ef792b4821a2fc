package store

import (
	"context"

	"github.com/google/uuid"
)

// UsageStore tracks per-account page consumption by billing period.
// A period is a calendar month in "YYYY-MM" form.
// Version: 1.0
type UsageStore interface {
	// GetPagesUsed returns the pages consumed by the account in the period.
	// A missing row counts as zero usage, not an error.
	GetPagesUsed(ctx context.Context, accountID uuid.UUID, period string) (int, error)

	// AddPages atomically increments the account's usage for the period,
	// creating the row if needed.
	AddPages(ctx context.Context, accountID uuid.UUID, period string, pages int) error
}
