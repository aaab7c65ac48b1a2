package action

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// SchemaFor reflects a typed parameter struct (one of the per-kind structs
// in params.go) into a map[string]any JSON
// Schema suitable for embedding in a per-model prompt, using reflector
// settings that inline everything and derive required-ness from tags.
func SchemaFor[T any]() (map[string]any, error) {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}
	schema := reflector.Reflect(new(T))

	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("action: marshal schema: %w", err)
	}
	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("action: unmarshal schema: %w", err)
	}
	delete(result, "$schema")
	delete(result, "$id")
	return result, nil
}
