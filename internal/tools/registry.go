// Package tools holds the server-side tools agents may call.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/xiaot623/docsagent/internal/domain"
)

// ExecutorFunc defines a server-side tool executor. The returned output is
// fed back to the model as the tool result.
type ExecutorFunc func(ctx context.Context, args json.RawMessage) (json.RawMessage, error)

// Definition couples the schema a model sees with its executor.
type Definition struct {
	Spec domain.ToolSpec
	Exec ExecutorFunc
}

// Registry stores tool definitions keyed by tool name.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		defs: make(map[string]Definition),
	}
}

// Register adds a new tool.
func (r *Registry) Register(def Definition) error {
	if def.Spec.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if def.Exec == nil {
		return fmt.Errorf("executor is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[def.Spec.Name]; exists {
		return fmt.Errorf("executor already registered for %s", def.Spec.Name)
	}
	r.defs[def.Spec.Name] = def
	return nil
}

// MustRegister adds a tool or panics.
func (r *Registry) MustRegister(def Definition) {
	if err := r.Register(def); err != nil {
		panic(err)
	}
}

// Execute runs the executor for the tool name.
func (r *Registry) Execute(ctx context.Context, toolName string, args json.RawMessage) (json.RawMessage, error) {
	if toolName == "" {
		return nil, fmt.Errorf("tool name is required")
	}
	r.mu.RLock()
	def, ok := r.defs[toolName]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no executor registered for %s", toolName)
	}
	return def.Exec(ctx, args)
}

// Specs returns the specs of the named tools. Unknown names are reported.
func (r *Registry) Specs(names []string) ([]domain.ToolSpec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]domain.ToolSpec, 0, len(names))
	for _, name := range names {
		def, ok := r.defs[name]
		if !ok {
			return nil, fmt.Errorf("unknown tool %s", name)
		}
		specs = append(specs, def.Spec)
	}
	return specs, nil
}

// Names lists registered tools in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
