package llms

import (
	"testing"
)

type schemaTestPlan struct {
	Action    string `json:"action" jsonschema:"required,enum=click,enum=finish"`
	Rationale string `json:"rationale,omitempty" jsonschema:"description=One sentence explaining the choice"`
	Done      bool   `json:"done" jsonschema:"required"`
}

func TestSchemaFor(t *testing.T) {
	schema, err := SchemaFor[schemaTestPlan]()
	if err != nil {
		t.Fatalf("SchemaFor() error = %v, want nil", err)
	}

	if schema["type"] != "object" {
		t.Errorf("type = %v, want object", schema["type"])
	}
	if _, ok := schema["$schema"]; ok {
		t.Error("Expected $schema to be stripped")
	}

	props, ok := schema["properties"].(map[string]interface{})
	if !ok {
		t.Fatalf("properties = %T, want object", schema["properties"])
	}
	for _, name := range []string{"action", "rationale", "done"} {
		if _, ok := props[name]; !ok {
			t.Errorf("Expected property %q", name)
		}
	}

	action, ok := props["action"].(map[string]interface{})
	if !ok {
		t.Fatalf("action property = %T, want object", props["action"])
	}
	if enum, ok := action["enum"].([]interface{}); !ok || len(enum) != 2 {
		t.Errorf("action enum = %v, want two values", action["enum"])
	}

	required, ok := schema["required"].([]interface{})
	if !ok {
		t.Fatalf("required = %T, want array", schema["required"])
	}
	found := map[string]bool{}
	for _, r := range required {
		if rs, ok := r.(string); ok {
			found[rs] = true
		}
	}
	if !found["action"] || !found["done"] {
		t.Errorf("required = %v, want action and done", required)
	}
	if found["rationale"] {
		t.Errorf("required = %v, rationale should be optional", required)
	}
}

func TestMustSchemaFor(t *testing.T) {
	schema := MustSchemaFor[schemaTestPlan]()
	if schema["type"] != "object" {
		t.Errorf("type = %v, want object", schema["type"])
	}
}
