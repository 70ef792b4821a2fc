package gemini

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/formsense/formsense-api/internal/config"
	"github.com/formsense/formsense-api/internal/domain"
	"github.com/formsense/formsense-api/internal/extraction"
	"github.com/stretchr/testify/assert"
)

func TestNewExtractor_Validation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name string
		cfg  config.ExtractionConfig
	}{
		{
			name: "missing_api_key",
			cfg:  config.ExtractionConfig{ModelName: "gemini-2.0-flash"},
		},
		{
			name: "missing_model_name",
			cfg:  config.ExtractionConfig{GeminiAPIKey: "test-key"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewExtractor(context.Background(), logger, tt.cfg)
			assert.ErrorIs(t, err, extraction.ErrInvalidConfig)
		})
	}

	t.Run("nil_logger", func(t *testing.T) {
		_, err := NewExtractor(context.Background(), nil, config.ExtractionConfig{
			GeminiAPIKey: "test-key",
			ModelName:    "gemini-2.0-flash",
		})
		assert.Error(t, err)
	})
}

func TestBuildPrompt(t *testing.T) {
	tpl := &domain.Template{
		Name: "Invoice",
		Fields: []domain.FieldDescriptor{
			{Name: "Total"},
			{Name: "Date", Description: "Issue date"},
		},
	}

	prompt := buildPrompt(tpl)

	assert.Contains(t, prompt, `"Invoice"`)
	assert.Contains(t, prompt, "- Total\n")
	assert.Contains(t, prompt, "- Date: Issue date\n")
	assert.Contains(t, prompt, "JSON object")
}

func TestDetectMIMEType(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{name: "scan.png", want: "image/png"},
		{name: "SCAN.PNG", want: "image/png"},
		{name: "photo.webp", want: "image/webp"},
		{name: "anim.gif", want: "image/gif"},
		{name: "invoice.jpg", want: "image/jpeg"},
		{name: "noextension", want: "image/jpeg"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, detectMIMEType(tt.name), tt.name)
	}
}
