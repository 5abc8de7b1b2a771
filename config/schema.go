package config

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/c360/prioring/errors"
)

//go:embed schema/config.schema.json
var schemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

// Schema returns the JSON Schema every configuration layer must satisfy.
func Schema() []byte {
	return append([]byte(nil), schemaJSON...)
}

func compiledSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	})
	return schema, schemaErr
}

// validateSchema checks one raw layer against the embedded schema
func validateSchema(raw map[string]any) error {
	s, err := compiledSchema()
	if err != nil {
		return errors.WrapFatal(err, "Loader", "validateSchema", "compile schema")
	}

	result, err := s.Validate(gojsonschema.NewGoLoader(raw))
	if err != nil {
		return errors.WrapInvalid(err, "Loader", "validateSchema", "validate layer")
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
	}
	return errors.WrapInvalid(
		fmt.Errorf("%w: schema validation failed: %s", errors.ErrInvalidConfig, strings.Join(msgs, "; ")),
		"Loader", "validateSchema", "validate layer")
}
