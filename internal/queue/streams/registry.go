package streams

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// SchemaRegistry holds compiled JSON Schemas keyed by event type and version.
// It validates both stream payloads and inbound HTTP bodies.
type SchemaRegistry struct {
	mu      sync.RWMutex
	schemas map[string]*jsonschema.Schema
}

func NewSchemaRegistry() *SchemaRegistry {
	return &SchemaRegistry{schemas: make(map[string]*jsonschema.Schema)}
}

func schemaKey(eventType, version string) string { return eventType + "@" + version }

// Register compiles schemaBytes for eventType/version, replacing any previous
// registration.
func (r *SchemaRegistry) Register(eventType, version string, schemaBytes []byte) error {
	if eventType == "" || version == "" {
		return fmt.Errorf("event type and version must be provided")
	}
	key := schemaKey(eventType, version)
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(key+".json", bytes.NewReader(schemaBytes)); err != nil {
		return fmt.Errorf("add schema %s: %w", key, err)
	}
	compiled, err := compiler.Compile(key + ".json")
	if err != nil {
		return fmt.Errorf("compile schema %s: %w", key, err)
	}
	r.mu.Lock()
	r.schemas[key] = compiled
	r.mu.Unlock()
	return nil
}

// ValidationError lists every schema violation found in a payload.
type ValidationError struct {
	Key    string
	Issues []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s payload invalid: %s", e.Key, strings.Join(e.Issues, "; "))
}

// Validate checks payload against the schema registered for eventType/version.
// Schema violations are reported as *ValidationError.
func (r *SchemaRegistry) Validate(eventType, version string, payload []byte) error {
	key := schemaKey(eventType, version)
	r.mu.RLock()
	schema, ok := r.schemas[key]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no schema registered for %s", key)
	}

	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	err := schema.Validate(doc)
	if err == nil {
		return nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return fmt.Errorf("validate %s: %w", key, err)
	}
	return &ValidationError{Key: key, Issues: issues(verr)}
}

// issues flattens the leaf causes of a validation error into
// "location: message" strings.
func issues(verr *jsonschema.ValidationError) []string {
	var out []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			out = append(out, loc+": "+e.Message)
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(verr)
	sort.Strings(out)
	return out
}
