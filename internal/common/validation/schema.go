// internal/common/validation/schema.go
package validation

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// ValidateDocument validates a decoded JSON document against a JSON schema
// expressed as a Go map. Returns a single error aggregating every violation
// so a malformed unit can be rejected with one log line.
func ValidateDocument(doc, schema map[string]interface{}) error {
	schemaLoader := gojsonschema.NewGoLoader(schema)
	documentLoader := gojsonschema.NewGoLoader(doc)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("data validation failed: %v", errs)
	}

	return nil
}

// ObjectSchema builds the common "object with required string fields" schema
// used by the worker input payloads.
func ObjectSchema(required ...string) map[string]interface{} {
	props := make(map[string]interface{}, len(required))
	for _, field := range required {
		props[field] = map[string]interface{}{"type": "string", "minLength": 1}
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}
