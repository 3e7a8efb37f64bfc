// internal/common/validation/schema.go
package validation

import (
	"fmt"
	"strings"

	apperrors "ops-notifications/internal/common/errors"

	"github.com/xeipuuv/gojsonschema"
)

// ValidationResult is the flattened outcome of a schema check.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Schema is a compiled JSON schema.
type Schema struct {
	name   string
	schema *gojsonschema.Schema
}

// MustCompile panics on an invalid schema; schemas are package constants.
func MustCompile(name, schemaJSON string) *Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		panic(fmt.Sprintf("compile schema %s: %v", name, err))
	}
	return &Schema{name: name, schema: s}
}

func (s *Schema) Name() string {
	return s.name
}

// ValidateJSON checks a raw JSON document, such as Zeebe job variables.
func (s *Schema) ValidateJSON(raw string) (*ValidationResult, error) {
	return s.validate(gojsonschema.NewStringLoader(raw))
}

// ValidateGo checks an already decoded value.
func (s *Schema) ValidateGo(v interface{}) (*ValidationResult, error) {
	return s.validate(gojsonschema.NewGoLoader(v))
}

func (s *Schema) validate(doc gojsonschema.JSONLoader) (*ValidationResult, error) {
	result, err := s.schema.Validate(doc)
	if err != nil {
		return nil, apperrors.NewParseError(err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return out, nil
}

// Check returns a VALIDATION_FAILED error listing every violation, or nil.
func (s *Schema) Check(raw string) error {
	result, err := s.ValidateJSON(raw)
	if err != nil {
		return err
	}
	if !result.Valid {
		return apperrors.NewValidationError(fmt.Sprintf("%s: %s", s.name, strings.Join(result.GetErrorMessages(), "; ")))
	}
	return nil
}

func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, e := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return messages
}

func (vr *ValidationResult) HasErrors(field string) bool {
	for _, e := range vr.Errors {
		if e.Field == field {
			return true
		}
	}
	return false
}
