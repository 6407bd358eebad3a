package config

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/c360/cvsync/errors"
)

//go:embed schema.json
var layerSchema []byte

var layerSchemaLoader = gojsonschema.NewBytesLoader(layerSchema)

// validateLayer checks one raw configuration file against the layer schema.
// Unknown keys are rejected so a misspelt field does not silently fall back
// to its default.
func validateLayer(data []byte) error {
	result, err := gojsonschema.Validate(layerSchemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
	}
	return fmt.Errorf("%w: %s", errors.ErrInvalidConfig, strings.Join(msgs, "; "))
}
