package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Template-specific validation errors
var (
	// ErrTemplateNameEmpty is returned when a template has no name.
	ErrTemplateNameEmpty = errors.New("template name cannot be empty")

	// ErrTemplateNoFields is returned when a template declares no fields.
	ErrTemplateNoFields = errors.New("template must declare at least one field")

	// ErrTemplateFieldNameEmpty is returned when a field descriptor has no name.
	ErrTemplateFieldNameEmpty = errors.New("template field name cannot be empty")
)

// FieldDescriptor describes one field an extraction template asks for.
// The optional description is passed to the extraction engine as a hint.
type FieldDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Template defines the set of fields to extract from each submitted image.
type Template struct {
	Name   string            `json:"name"`
	Fields []FieldDescriptor `json:"fields"`
}

// ParseTemplate decodes the raw template JSON carried in a submission and
// validates it. Boundary validation is deliberately strict: a template with
// missing or unnamed fields fails here rather than propagating empty field
// names into the extraction results.
func ParseTemplate(raw []byte) (*Template, error) {
	var tpl Template
	if err := json.Unmarshal(raw, &tpl); err != nil {
		return nil, fmt.Errorf("%w: template is not valid JSON: %v", ErrInvalidFormat, err)
	}

	if err := tpl.Validate(); err != nil {
		return nil, err
	}

	return &tpl, nil
}

// Validate checks if the Template has valid data.
// Returns an error if any field fails validation.
func (t *Template) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("%w: %s", ErrValidation, ErrTemplateNameEmpty)
	}

	if len(t.Fields) == 0 {
		return fmt.Errorf("%w: %s", ErrValidation, ErrTemplateNoFields)
	}

	for i, f := range t.Fields {
		if f.Name == "" {
			return fmt.Errorf("%w: field %d: %s", ErrValidation, i, ErrTemplateFieldNameEmpty)
		}
	}

	return nil
}
