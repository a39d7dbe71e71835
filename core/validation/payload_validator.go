package validation

import (
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/xeipuuv/gojsonschema"
)

// SchemaPathEnvVar names an optional JSON schema file that transaction
// payloads must validate against at admission.
const SchemaPathEnvVar = "TX_SCHEMA_PATH"

// SchemaValidator validates transaction payloads against a compiled JSON
// schema. It satisfies mempool.PayloadValidator.
type SchemaValidator struct {
	schema *gojsonschema.Schema
}

// NewSchemaValidator compiles the schema at the given path.
func NewSchemaValidator(schemaPath string) (*SchemaValidator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewReferenceLoader("file://" + schemaPath))
	if err != nil {
		return nil, fmt.Errorf("compile payload schema: %w", err)
	}
	return &SchemaValidator{schema: schema}, nil
}

// FromEnv builds a validator from TX_SCHEMA_PATH, or returns nil when the
// variable is unset (payloads stay opaque in that case).
func FromEnv() (*SchemaValidator, error) {
	path := os.Getenv(SchemaPathEnvVar)
	if path == "" {
		return nil, nil
	}
	return NewSchemaValidator(path)
}

// Validate checks a raw payload against the schema. It also rejects
// payloads that are not valid UTF-8, since the schema layer expects JSON.
func (v *SchemaValidator) Validate(payload []byte) error {
	if !utf8.Valid(payload) {
		return fmt.Errorf("payload is not valid UTF-8")
	}
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		errStr := ""
		for _, e := range result.Errors() {
			errStr += e.String() + "; "
		}
		return fmt.Errorf("payload failed schema validation: %s", errStr)
	}
	return nil
}
