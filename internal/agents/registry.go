// Package agents holds the registry of agent definitions a deployment runs.
package agents

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/xiaot623/docsagent/internal/domain"
)

//go:embed agents.yaml
var defaultDefinitions []byte

// Registry resolves agent ids to definitions. It is immutable once built.
type Registry struct {
	agents    map[string]domain.AgentDefinition
	order     []string
	defaultID string
}

// New builds a registry. The default agent and every hand-off target must be
// among defs.
func New(defaultID string, defs ...domain.AgentDefinition) (*Registry, error) {
	r := &Registry{
		agents:    make(map[string]domain.AgentDefinition, len(defs)),
		defaultID: defaultID,
	}
	for _, def := range defs {
		if def.ID == "" {
			return nil, fmt.Errorf("agent id is required")
		}
		if _, exists := r.agents[def.ID]; exists {
			return nil, fmt.Errorf("agent %s defined twice", def.ID)
		}
		r.agents[def.ID] = def
		r.order = append(r.order, def.ID)
	}
	if _, ok := r.agents[defaultID]; !ok {
		return nil, fmt.Errorf("default agent %q is not defined", defaultID)
	}
	for _, def := range defs {
		for _, target := range def.Handoffs {
			if _, ok := r.agents[target]; !ok {
				return nil, fmt.Errorf("agent %s hands off to unknown agent %q", def.ID, target)
			}
		}
	}
	return r, nil
}

type file struct {
	DefaultAgent string                   `yaml:"default_agent"`
	Agents       []domain.AgentDefinition `yaml:"agents"`
}

// Parse builds a registry from YAML.
func Parse(data []byte) (*Registry, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse agent definitions: %w", err)
	}
	return New(f.DefaultAgent, f.Agents...)
}

// LoadFile reads definitions from path, or the built-in definitions when
// path is empty.
func LoadFile(path string) (*Registry, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read agent definitions: %w", err)
	}
	return Parse(data)
}

// Default returns the built-in triage/support registry.
func Default() (*Registry, error) {
	return Parse(defaultDefinitions)
}

// Resolve returns the definition of id.
func (r *Registry) Resolve(id string) (domain.AgentDefinition, bool) {
	def, ok := r.agents[id]
	return def, ok
}

// DefaultAgentID is the agent that owns a fresh conversation.
func (r *Registry) DefaultAgentID() string {
	return r.defaultID
}

// List returns all definitions in declaration order.
func (r *Registry) List() []domain.AgentDefinition {
	out := make([]domain.AgentDefinition, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.agents[id])
	}
	return out
}
