// Package api provides HTTP handlers for the API.
package api

import (
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/formsense/formsense-api/internal/api/shared"
	"github.com/formsense/formsense-api/internal/domain"
	"github.com/formsense/formsense-api/internal/platform/logger"
	"github.com/formsense/formsense-api/internal/service/usage"
	"github.com/formsense/formsense-api/internal/task"
)

// maxUploadBytes bounds how much of a multipart submission is buffered in
// memory.
const maxUploadBytes = 32 << 20 // 32 MB

// imagePartPrefix marks the multipart parts that carry batch images. The
// remainder of the field name is the caller-chosen item id.
const imagePartPrefix = "image_"

// ExtractHandler handles batch extraction submissions.
type ExtractHandler struct {
	scheduler *task.Scheduler
	limiter   *usage.Limiter
	logger    *slog.Logger
}

// NewExtractHandler creates a new ExtractHandler.
func NewExtractHandler(scheduler *task.Scheduler, limiter *usage.Limiter, logger *slog.Logger) *ExtractHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for ExtractHandler")
	}

	return &ExtractHandler{
		scheduler: scheduler,
		limiter:   limiter,
		logger:    logger.With(slog.String("component", "extract_handler")),
	}
}

// SubmitBatch handles POST /api/extract requests. It validates the template
// and images, enqueues the background extraction, and returns the initial
// in_progress task snapshot. Extraction never happens on this request path.
func (h *ExtractHandler) SubmitBatch(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	accountID, ok := r.Context().Value(shared.AccountIDContextKey).(uuid.UUID)
	if !ok || accountID == uuid.Nil {
		log.Warn("account ID not found or invalid in request context")
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Account ID not found or invalid")
		return
	}

	tpl, items, err := parseSubmission(r)
	if err != nil {
		statusCode := MapErrorToStatusCode(err)
		shared.RespondWithErrorAndLog(w, r, statusCode, GetSafeErrorMessage(err), err)
		return
	}

	// One image counts as one page against the monthly allowance.
	if h.limiter != nil {
		if err := h.limiter.Check(r.Context(), accountID, len(items)); err != nil {
			statusCode := MapErrorToStatusCode(err)
			safeMessage := GetSafeErrorMessage(err)
			if statusCode == http.StatusInternalServerError {
				safeMessage = "Failed to check usage limits"
			}
			shared.RespondWithErrorAndLog(w, r, statusCode, safeMessage, err)
			return
		}
	}

	snapshot := h.scheduler.Submit(r.Context(), items, tpl)

	// Usage is recorded after the task exists so a store failure cannot
	// leave a charged-but-missing batch. The reverse (free batch on a
	// failed record) is the acceptable direction.
	if h.limiter != nil {
		if err := h.limiter.Record(r.Context(), accountID, len(items)); err != nil {
			log.Error("failed to record page usage",
				slog.String("account_id", accountID.String()),
				slog.String("task_id", snapshot.ID),
				slog.String("error", err.Error()))
		}
	}

	log.Info("batch submitted",
		slog.String("task_id", snapshot.ID),
		slog.String("account_id", accountID.String()),
		slog.Int("item_count", len(items)))

	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(snapshot))
}

// parseSubmission walks the multipart body part by part and returns the
// validated template plus the batch items in the order the client sent
// them. Results keep this order, so the map-backed MultipartForm (which
// loses it) is deliberately not used here.
func parseSubmission(r *http.Request) (*domain.Template, []domain.BatchItem, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: request must be multipart/form-data", domain.ErrInvalidFormat)
	}

	var (
		tplRaw []byte
		items  []domain.BatchItem
		total  int64
	)
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%w: malformed multipart body: %v", domain.ErrInvalidFormat, err)
		}

		name := part.FormName()
		switch {
		case name == "template":
			tplRaw, err = readPart(part, &total)

		case strings.HasPrefix(name, imagePartPrefix):
			itemID := strings.TrimPrefix(name, imagePartPrefix)
			if itemID == "" {
				err = fmt.Errorf("%w: image part has empty item id", domain.ErrValidation)
				break
			}
			var data []byte
			if data, err = readPart(part, &total); err != nil {
				break
			}
			if len(data) == 0 {
				err = fmt.Errorf("%w: image part %q is empty", domain.ErrValidation, part.FileName())
				break
			}
			items = append(items, domain.BatchItem{
				ID:    itemID,
				Name:  part.FileName(),
				Image: data,
			})

		default:
			// Unknown parts are skipped, not rejected.
			_, err = io.Copy(io.Discard, io.LimitReader(part, maxUploadBytes))
		}

		_ = part.Close()
		if err != nil {
			return nil, nil, err
		}
	}

	if tplRaw == nil {
		return nil, nil, fmt.Errorf("%w: missing template part", domain.ErrValidation)
	}
	tpl, err := domain.ParseTemplate(tplRaw)
	if err != nil {
		return nil, nil, err
	}
	if err := tpl.Validate(); err != nil {
		return nil, nil, err
	}

	// A submission with no image parts is rejected rather than creating an
	// instantly-complete empty task.
	if len(items) == 0 {
		return nil, nil, fmt.Errorf("%w: no image parts", domain.ErrValidation)
	}
	return tpl, items, nil
}

// readPart buffers one part, charging it against the whole-request size
// bound.
func readPart(part *multipart.Part, total *int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(part, maxUploadBytes-*total+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read part %q: %w", part.FormName(), err)
	}
	*total += int64(len(data))
	if *total > maxUploadBytes {
		return nil, fmt.Errorf("%w: request body exceeds %d bytes", domain.ErrValidation, maxUploadBytes)
	}
	return data, nil
}
