package streams

import "fmt"

// Event types carried on the quiz streams.
const (
	EventSolveRequested = "quiz.solve"
	EventChainCompleted = "quiz.completed"
	// RequestSolve validates the body of POST /solve.
	RequestSolve = "http.solve"

	VersionV1 = "v1"
)

// Definition describes a schema entry managed by the registry.
type Definition struct {
	EventType string
	Version   string
	Schema    []byte
}

var baseDefinitions = []Definition{
	{
		EventType: RequestSolve,
		Version:   VersionV1,
		Schema: []byte(`{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["email", "secret", "url"],
  "properties": {
    "email": {"type": "string"},
    "secret": {"type": "string"},
    "url": {"type": "string"}
  }
}`),
	},
	{
		EventType: EventSolveRequested,
		Version:   VersionV1,
		Schema: []byte(`{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["run_id", "url", "requested_at"],
  "properties": {
    "run_id": {"type": "string", "minLength": 1},
    "url": {"type": "string"},
    "requested_at": {"type": "string"}
  },
  "additionalProperties": false
}`),
	},
	{
		EventType: EventChainCompleted,
		Version:   VersionV1,
		Schema: []byte(`{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["run_id", "url", "total_solved", "results"],
  "properties": {
    "run_id": {"type": "string", "minLength": 1},
    "url": {"type": "string"},
    "total_solved": {"type": "integer", "minimum": 0, "maximum": 20},
    "results": {
      "type": "array",
      "maxItems": 20,
      "items": {
        "type": "object",
        "required": ["url"],
        "properties": {
          "url": {"type": "string"},
          "question": {"type": "string"},
          "correct": {"type": "boolean"},
          "reason": {"type": ["string", "null"]},
          "error": {"type": "string"}
        }
      }
    }
  }
}`),
	},
}

// RegisterBaseSchemas loads every built-in definition into reg.
func RegisterBaseSchemas(reg *SchemaRegistry) error {
	for _, def := range baseDefinitions {
		if err := reg.Register(def.EventType, def.Version, def.Schema); err != nil {
			return fmt.Errorf("register %s@%s: %w", def.EventType, def.Version, err)
		}
	}
	return nil
}

// NewBaseRegistry returns a registry with every built-in schema loaded.
func NewBaseRegistry() (*SchemaRegistry, error) {
	reg := NewSchemaRegistry()
	if err := RegisterBaseSchemas(reg); err != nil {
		return nil, err
	}
	return reg, nil
}
