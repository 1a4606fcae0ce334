package envelope

import (
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// SchemaValidator compiles and caches a JSON Schema (Draft 2020-12) per
// agent, used to validate the raw LLM output before it is handed to scope
// evaluation.
type SchemaValidator struct {
	mu      sync.Mutex
	schemas map[string]*jsonschema.Schema
}

// NewSchemaValidator creates an empty schema cache.
func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{schemas: make(map[string]*jsonschema.Schema)}
}

// Validate compiles schemaJSON for agentName on first use (subsequent
// calls for the same agent reuse the compiled schema) and validates
// output against it.
func (v *SchemaValidator) Validate(agentName, schemaJSON string, output map[string]interface{}) error {
	if schemaJSON == "" {
		return nil
	}

	v.mu.Lock()
	compiled, ok := v.schemas[agentName]
	if !ok {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		url := fmt.Sprintf("mem://envelope/%s.schema.json", agentName)
		if err := c.AddResource(url, strings.NewReader(schemaJSON)); err != nil {
			v.mu.Unlock()
			return fmt.Errorf("load schema for %s: %w", agentName, err)
		}
		var err error
		compiled, err = c.Compile(url)
		if err != nil {
			v.mu.Unlock()
			return fmt.Errorf("compile schema for %s: %w", agentName, err)
		}
		v.schemas[agentName] = compiled
	}
	v.mu.Unlock()

	return compiled.Validate(output)
}
