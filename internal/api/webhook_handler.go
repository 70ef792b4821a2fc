package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/formsense/formsense-api/internal/api/shared"
	"github.com/formsense/formsense-api/internal/billing"
	"github.com/formsense/formsense-api/internal/platform/logger"
)

// WebhookHandler receives billing provider callbacks.
type WebhookHandler struct {
	processor *billing.WebhookProcessor
	logger    *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(processor *billing.WebhookProcessor, logger *slog.Logger) *WebhookHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for WebhookHandler")
	}

	return &WebhookHandler{
		processor: processor,
		logger:    logger.With(slog.String("component", "webhook_handler")),
	}
}

// HandlePaddleWebhook handles POST /api/webhooks/paddle requests. Paddle
// retries non-2xx responses, so only genuinely retryable failures (store
// errors) return 500; malformed alerts are rejected with 400.
func (h *WebhookHandler) HandlePaddleWebhook(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	if err := r.ParseForm(); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest,
			"Request must be form-encoded", err)
		return
	}

	alert, err := billing.ParseAlert(r.PostForm)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid webhook payload", err)
		return
	}

	if err := h.processor.ProcessAlert(r.Context(), alert); err != nil {
		if errors.Is(err, billing.ErrInvalidAlert) {
			// The wrapped validator message names the offending field;
			// expose only its sanitized form.
			shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
			return
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to process webhook", err)
		return
	}

	log.Debug("webhook processed", slog.String("alert_name", alert.AlertName))
	w.WriteHeader(http.StatusOK)
}
