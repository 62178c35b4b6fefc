package llms

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// SchemaFor generates a JSON schema map from a Go type using struct tags.
//
// Supported tags:
//   - json:"name" - field name
//   - jsonschema:"required" - explicitly mark as required
//   - jsonschema:"description=..." - field description
//   - jsonschema:"enum=a,enum=b" - allowed values
func SchemaFor[T any]() (map[string]interface{}, error) {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}

	schema := reflector.Reflect(new(T))

	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	var schemaMap map[string]interface{}
	if err := json.Unmarshal(data, &schemaMap); err != nil {
		return nil, fmt.Errorf("failed to convert schema to map: %w", err)
	}

	delete(schemaMap, "$schema")
	delete(schemaMap, "$id")

	return schemaMap, nil
}

// MustSchemaFor is SchemaFor for package-level schema variables; it panics
// on reflection failure, which can only come from a broken type definition.
func MustSchemaFor[T any]() map[string]interface{} {
	schema, err := SchemaFor[T]()
	if err != nil {
		panic(err)
	}
	return schema
}
