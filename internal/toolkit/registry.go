package toolkit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Registry holds every Tool a running process knows how to dispatch,
// keyed by name, plus the compiled JSON schema used to validate
// incoming arguments before Execute ever runs — catching a malformed
// tool call from the model before it reaches a real side effect.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	schemas map[string]*jsonschema.Schema
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:   make(map[string]Tool),
		schemas: make(map[string]*jsonschema.Schema),
	}
}

// Register compiles t's schema and adds it under t.Name(). A second
// registration under the same name replaces the first, matching how a
// sub-assistant's tool set can be reloaded by Agent Factory's
// background refresh without restarting the process.
func (r *Registry) Register(t Tool) error {
	compiler := jsonschema.NewCompiler()
	schemaName := t.Name() + ".json"
	if err := compiler.AddResource(schemaName, bytes.NewReader(t.Schema())); err != nil {
		return fmt.Errorf("add schema resource for tool %s: %w", t.Name(), err)
	}
	schema, err := compiler.Compile(schemaName)
	if err != nil {
		return fmt.Errorf("compile schema for tool %s: %w", t.Name(), err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
	r.schemas[t.Name()] = schema
	return nil
}

// Get returns the tool registered under name, if any.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns every registered tool name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// Invoke validates params against the tool's compiled schema and, if
// valid, executes it. A schema violation is returned as an error, not
// a Result{IsError: true} — it indicates the LLM produced a
// structurally invalid call, which the agent graph's tool-loop step
// retries with the validation error fed back as context rather than
// recording it as a tool-level failure.
func (r *Registry) Invoke(ctx context.Context, name string, params []byte) (*Result, error) {
	r.mu.RLock()
	tool, ok := r.tools[name]
	schema := r.schemas[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown tool: %s", name)
	}

	var decoded any
	if len(params) > 0 {
		if err := json.Unmarshal(params, &decoded); err != nil {
			return nil, fmt.Errorf("tool %s: params not valid json: %w", name, err)
		}
		if err := schema.Validate(decoded); err != nil {
			return nil, fmt.Errorf("tool %s: params failed schema validation: %w", name, err)
		}
	}

	return tool.Execute(ctx, params)
}
