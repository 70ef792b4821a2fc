// Package billing processes Paddle webhook alerts and keeps the local
// subscription state in sync with the billing provider.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/formsense/formsense-api/internal/store"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Paddle classic alert names handled by this processor. Unknown alerts are
// acknowledged and ignored so Paddle does not retry them forever.
const (
	AlertSubscriptionCreated          = "subscription_created"
	AlertSubscriptionUpdated          = "subscription_updated"
	AlertSubscriptionCancelled        = "subscription_cancelled"
	AlertSubscriptionPaymentSucceeded = "subscription_payment_succeeded"
)

// ErrInvalidAlert indicates a webhook payload that fails validation and
// should not be retried by the provider.
var ErrInvalidAlert = errors.New("invalid alert")

// planPageLimits maps Paddle plan ids to monthly page allowances.
var planPageLimits = map[string]int{
	"starter": 500,
	"pro":     2000,
	"scale":   10000,
}

// defaultPlanPageLimit applies to plan ids this build does not know about,
// so a newly introduced plan degrades to a usable allowance instead of zero.
const defaultPlanPageLimit = 500

// Alert is a parsed Paddle webhook payload.
type Alert struct {
	AlertName      string    `validate:"required"`
	SubscriptionID string    `validate:"required"`
	PlanID         string    `validate:"required"`
	Status         string    `validate:"omitempty"`
	AccountID      uuid.UUID `validate:"required"`
}

// passthrough is the JSON blob FormSense attaches at checkout time so
// webhook alerts can be tied back to an account.
type passthrough struct {
	AccountID string `json:"account_id"`
}

// WebhookProcessor applies Paddle alerts to the subscription store.
type WebhookProcessor struct {
	subscriptions store.SubscriptionStore
	logger        *slog.Logger
	validate      *validator.Validate
	timeFunc      func() time.Time // Injectable for testing
}

// NewWebhookProcessor creates a new WebhookProcessor.
func NewWebhookProcessor(subscriptions store.SubscriptionStore, logger *slog.Logger) *WebhookProcessor {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for WebhookProcessor")
	}

	return &WebhookProcessor{
		subscriptions: subscriptions,
		logger:        logger.With(slog.String("component", "billing_webhook")),
		validate:      validator.New(),
		timeFunc:      time.Now,
	}
}

// ParseAlert decodes the form-encoded webhook body Paddle sends.
func ParseAlert(form url.Values) (*Alert, error) {
	var pt passthrough
	if raw := form.Get("passthrough"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &pt); err != nil {
			return nil, fmt.Errorf("malformed passthrough: %w", err)
		}
	}

	accountID, err := uuid.Parse(pt.AccountID)
	if err != nil {
		return nil, fmt.Errorf("passthrough has no valid account id: %w", err)
	}

	return &Alert{
		AlertName:      form.Get("alert_name"),
		SubscriptionID: form.Get("subscription_id"),
		PlanID:         form.Get("subscription_plan_id"),
		Status:         form.Get("status"),
		AccountID:      accountID,
	}, nil
}

// ProcessAlert validates the alert and applies it to the subscription store.
// Unknown alert names return nil so the provider stops retrying.
func (p *WebhookProcessor) ProcessAlert(ctx context.Context, alert *Alert) error {
	if err := p.validate.Struct(alert); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAlert, err)
	}

	var status string
	switch alert.AlertName {
	case AlertSubscriptionCreated, AlertSubscriptionPaymentSucceeded:
		status = store.SubscriptionStatusActive
	case AlertSubscriptionUpdated:
		status = mapPaddleStatus(alert.Status)
	case AlertSubscriptionCancelled:
		status = store.SubscriptionStatusCancelled
	default:
		p.logger.Info("ignoring unhandled alert",
			"alert_name", alert.AlertName,
			"account_id", alert.AccountID)
		return nil
	}

	sub := &store.Subscription{
		AccountID:            alert.AccountID,
		PaddleSubscriptionID: alert.SubscriptionID,
		PlanID:               alert.PlanID,
		Status:               status,
		PageLimit:            pageLimitForPlan(alert.PlanID),
		UpdatedAt:            p.timeFunc().UTC(),
	}

	if err := p.subscriptions.Upsert(ctx, sub); err != nil {
		return fmt.Errorf("failed to apply %s alert: %w", alert.AlertName, err)
	}

	p.logger.Info("subscription updated from webhook",
		"alert_name", alert.AlertName,
		"account_id", alert.AccountID,
		"plan_id", alert.PlanID,
		"status", status)
	return nil
}

// mapPaddleStatus normalizes Paddle's status vocabulary to ours.
func mapPaddleStatus(paddleStatus string) string {
	switch paddleStatus {
	case "active", "trialing":
		return store.SubscriptionStatusActive
	case "past_due", "paused":
		return store.SubscriptionStatusPastDue
	case "deleted":
		return store.SubscriptionStatusCancelled
	default:
		return store.SubscriptionStatusActive
	}
}

// pageLimitForPlan resolves the monthly allowance for a plan id.
func pageLimitForPlan(planID string) int {
	if limit, ok := planPageLimits[planID]; ok {
		return limit
	}
	return defaultPlanPageLimit
}
