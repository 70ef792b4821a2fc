package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/formsense/formsense-api/internal/config"
	"github.com/formsense/formsense-api/internal/domain"
	"github.com/formsense/formsense-api/internal/extraction"
	"google.golang.org/genai"
)

// baseRetryDelay is the starting delay for exponential backoff on
// transient API failures.
const baseRetryDelay = 2 * time.Second

// GeminiExtractor implements the extraction.Extractor interface using
// Google's Gemini API to extract template fields from form images.
type GeminiExtractor struct {
	// logger is used for structured logging
	logger *slog.Logger

	// config contains extraction-specific configuration
	config config.ExtractionConfig

	// client is the Gemini API client for making requests
	client *genai.Client

	// model is the name of the Gemini model to use
	model string
}

// NewExtractor creates a new GeminiExtractor with the provided dependencies.
//
// Parameters:
//   - ctx: Context for the operation, which can be used for cancellation
//   - logger: A structured logger for operation logging
//   - cfg: Extraction configuration containing API key and model name
//
// Returns:
//   - A properly initialized GeminiExtractor or an error if initialization fails
func NewExtractor(ctx context.Context, logger *slog.Logger, cfg config.ExtractionConfig) (*GeminiExtractor, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", extraction.ErrInvalidConfig)
	}

	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", extraction.ErrInvalidConfig)
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v",
			extraction.ErrInvalidConfig, err)
	}

	return &GeminiExtractor{
		logger: logger,
		config: cfg,
		client: client,
		model:  cfg.ModelName,
	}, nil
}

// ExtractFields extracts a value for every template field from the item's
// image. Transient API failures are retried with exponential backoff;
// permanent failures (blocked content, malformed responses) are returned
// immediately.
func (g *GeminiExtractor) ExtractFields(ctx context.Context, tpl *domain.Template, item domain.BatchItem) (map[string]string, error) {
	if len(item.Image) == 0 {
		return nil, extraction.ErrEmptyImage
	}

	prompt := buildPrompt(tpl)

	fields, err := g.callGeminiWithRetry(ctx, prompt, item)
	if err != nil {
		return nil, err
	}

	// Every declared field must be present; the model occasionally omits
	// fields it cannot find, so fill those with an empty value instead of
	// surfacing a partial map.
	for _, f := range tpl.Fields {
		if _, ok := fields[f.Name]; !ok {
			fields[f.Name] = ""
		}
	}

	return fields, nil
}

// buildPrompt renders the extraction instructions for one template.
func buildPrompt(tpl *domain.Template) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Extract the following fields from the attached %q form image.\n", tpl.Name)
	b.WriteString("Respond with a single JSON object mapping each field name to its extracted string value.\n")
	b.WriteString("Use an empty string for fields that are not present in the image.\nFields:\n")
	for _, f := range tpl.Fields {
		if f.Description != "" {
			fmt.Fprintf(&b, "- %s: %s\n", f.Name, f.Description)
		} else {
			fmt.Fprintf(&b, "- %s\n", f.Name)
		}
	}
	return b.String()
}

// callGeminiWithRetry makes a call to the Gemini API with exponential
// backoff retry logic. It attempts the call up to config.MaxRetries+1
// times, backing off with jitter between attempts for transient errors.
// Permanent errors are returned immediately without retrying.
func (g *GeminiExtractor) callGeminiWithRetry(ctx context.Context, prompt string, item domain.BatchItem) (map[string]string, error) {
	maxRetries := g.config.MaxRetries
	if maxRetries < 0 {
		g.logger.WarnContext(ctx, "invalid max retries value, using default", "max_retries", 3)
		maxRetries = 3
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(prompt),
			genai.NewPartFromBytes(item.Image, detectMIMEType(item.Name)),
		}, genai.RoleUser),
	}

	genConfig := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		g.logger.InfoContext(ctx, "making Gemini API call",
			"attempt", attempt+1,
			"max_attempts", maxRetries+1,
			"image_id", item.ID)

		fields, err, transient := g.callOnce(ctx, contents, genConfig)
		if err == nil {
			return fields, nil
		}
		lastErr = err

		g.logger.ErrorContext(ctx, "Gemini API call failed",
			"attempt", attempt+1,
			"error", err,
			"transient", transient)

		if !transient {
			return nil, err
		}

		if attempt == maxRetries {
			break
		}

		// Exponential backoff with jitter before the next attempt.
		delay := time.Duration(float64(baseRetryDelay) * math.Pow(2, float64(attempt)))
		delay += time.Duration(rng.Int63n(int64(time.Second)))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("%w: %v", extraction.ErrTransientFailure, lastErr)
}

// callOnce performs a single Gemini API call and classifies any failure as
// transient or permanent.
func (g *GeminiExtractor) callOnce(
	ctx context.Context,
	contents []*genai.Content,
	genConfig *genai.GenerateContentConfig,
) (map[string]string, error, bool) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, genConfig)
	if err != nil {
		// API-level errors (rate limits, 5xx) are assumed transient.
		return nil, fmt.Errorf("%w: %v", extraction.ErrTransientFailure, err), true
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no content generated", extraction.ErrInvalidResponse), false
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return nil, fmt.Errorf("%w: blocked by safety filters", extraction.ErrContentBlocked), false
	}
	if candidate.Content == nil {
		return nil, fmt.Errorf("%w: empty content in response", extraction.ErrInvalidResponse), false
	}

	text := resp.Text()
	var fields map[string]string
	if err := json.Unmarshal([]byte(text), &fields); err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON response: %v",
			extraction.ErrInvalidResponse, err), false
	}

	return fields, nil, false
}

// detectMIMEType guesses the image MIME type from the file name extension.
func detectMIMEType(name string) string {
	switch {
	case strings.HasSuffix(strings.ToLower(name), ".png"):
		return "image/png"
	case strings.HasSuffix(strings.ToLower(name), ".webp"):
		return "image/webp"
	case strings.HasSuffix(strings.ToLower(name), ".gif"):
		return "image/gif"
	default:
		return "image/jpeg"
	}
}
