package extraction

import (
	"context"
	"fmt"

	"github.com/formsense/formsense-api/internal/domain"
)

// StubExtractor returns deterministic sample values without calling any
// external service. It is the default engine: the extraction contract only
// requires plausible per-field values, and the stub keeps local development
// and tests hermetic.
type StubExtractor struct{}

// NewStubExtractor creates a StubExtractor.
func NewStubExtractor() *StubExtractor {
	return &StubExtractor{}
}

// ExtractFields returns a sample value for every field the template declares.
func (e *StubExtractor) ExtractFields(_ context.Context, tpl *domain.Template, item domain.BatchItem) (map[string]string, error) {
	if len(item.Image) == 0 {
		return nil, ErrEmptyImage
	}

	fields := make(map[string]string, len(tpl.Fields))
	for _, f := range tpl.Fields {
		fields[f.Name] = fmt.Sprintf("Sample %s (%s)", f.Name, item.Name)
	}
	return fields, nil
}
