package tooling

import (
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/philo-groves/fiddlesticks/internal/toolerr"
)

// schemaCache compiles and memoizes a tool's JSON Schema by name, since
// argument validation runs on every invocation but a tool's input_schema
// never changes after registration.
type schemaCache struct {
	mu    sync.Mutex
	byTag map[string]*jsonschema.Schema
}

func newSchemaCache() *schemaCache {
	return &schemaCache{byTag: make(map[string]*jsonschema.Schema)}
}

func (c *schemaCache) compile(name, schemaJSON string) (*jsonschema.Schema, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.byTag[name]; ok {
		return s, nil
	}
	url := "tool://" + name + "/input_schema.json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, strings.NewReader(schemaJSON)); err != nil {
		return nil, err
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, err
	}
	c.byTag[name] = schema
	return schema, nil
}

// ValidateArguments checks argsJSON against the tool's declared
// input_schema, when one is present. A tool with an empty input_schema
// skips validation (schema is advisory-only for such tools).
func (c *schemaCache) ValidateArguments(name, inputSchema, argsJSON string) error {
	if strings.TrimSpace(inputSchema) == "" {
		return nil
	}
	schema, err := c.compile(name, inputSchema)
	if err != nil {
		return toolerr.InvalidArguments("tool '" + name + "' has an invalid input_schema: " + err.Error())
	}
	value, err := ParseJSONValue(argsJSON)
	if err != nil {
		return err
	}
	if err := schema.Validate(value); err != nil {
		return toolerr.InvalidArguments("arguments for tool '" + name + "' failed schema validation: " + err.Error())
	}
	return nil
}
