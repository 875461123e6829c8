package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Error joins the individual failures into one message.
func (r *ValidationResult) Error() string {
	parts := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		parts[i] = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return strings.Join(parts, "; ")
}

// ValidateInput checks a decoded document against a JSON schema. An empty
// schema accepts everything.
func ValidateInput(input interface{}, schema map[string]interface{}) (*ValidationResult, error) {
	if len(schema) == 0 {
		return &ValidationResult{Valid: true}, nil
	}
	return validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(input))
}

// ValidateJSON checks a raw JSON document, such as job variables.
func ValidateJSON(raw string, schema map[string]interface{}) (*ValidationResult, error) {
	if len(schema) == 0 {
		return &ValidationResult{Valid: true}, nil
	}
	return validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewStringLoader(raw))
}

func validate(schema, document gojsonschema.JSONLoader) (*ValidationResult, error) {
	result, err := gojsonschema.Validate(schema, document)
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   fieldName(desc),
			Message: desc.Description(),
			Code:    errorCode(desc.Type()),
		})
	}
	sort.SliceStable(out.Errors, func(i, j int) bool { return out.Errors[i].Field < out.Errors[j].Field })
	return out, nil
}

// gojsonschema reports a missing required property on its parent; name the
// property itself instead.
func fieldName(desc gojsonschema.ResultError) string {
	if desc.Type() == "required" {
		if prop, ok := desc.Details()["property"].(string); ok {
			if desc.Field() == gojsonschema.STRING_ROOT_SCHEMA_PROPERTY {
				return prop
			}
			return desc.Field() + "." + prop
		}
	}
	return desc.Field()
}

func errorCode(kind string) string {
	switch kind {
	case "required":
		return "REQUIRED_FIELD_MISSING"
	case "invalid_type":
		return "INVALID_TYPE"
	case "additional_property_not_allowed":
		return "EXTRA_FIELD"
	case "enum":
		return "INVALID_ENUM_VALUE"
	case "string_gte":
		return "MIN_LENGTH_VIOLATION"
	case "string_lte":
		return "MAX_LENGTH_VIOLATION"
	case "number_gte", "number_gt":
		return "MIN_VALUE_VIOLATION"
	case "number_lte", "number_lt":
		return "MAX_VALUE_VIOLATION"
	case "pattern":
		return "PATTERN_MISMATCH"
	default:
		return strings.ToUpper(kind)
	}
}
