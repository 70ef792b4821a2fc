// Package extraction defines the interface to the field extraction engine.
// This interface serves as a boundary between the application core and
// external OCR/LLM services.
package extraction

import (
	"context"
	"errors"

	"github.com/formsense/formsense-api/internal/domain"
)

// Common errors returned by extraction implementations.
var (
	// ErrExtractionFailed is returned when field extraction fails for any general reason.
	ErrExtractionFailed = errors.New("failed to extract fields from image")

	// ErrInvalidResponse is returned when the engine's response cannot be parsed or is malformed.
	ErrInvalidResponse = errors.New("invalid response from extraction engine")

	// ErrContentBlocked is returned when the engine refuses the content due to safety filters.
	ErrContentBlocked = errors.New("content blocked by extraction engine safety filters")

	// ErrTransientFailure is returned for temporary errors that might resolve on retry.
	ErrTransientFailure = errors.New("transient error during extraction")

	// ErrInvalidConfig is returned when the extractor configuration is invalid.
	ErrInvalidConfig = errors.New("invalid extractor configuration")

	// ErrEmptyImage is returned when an item carries no image bytes.
	ErrEmptyImage = errors.New("image data cannot be empty")
)

// Extractor derives a field map from one submitted image according to a
// template.
type Extractor interface {
	// ExtractFields returns a value for every field the template declares.
	// A returned error marks the whole item as failed.
	ExtractFields(ctx context.Context, tpl *domain.Template, item domain.BatchItem) (map[string]string, error)
}
