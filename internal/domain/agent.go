package domain

// AgentDefinition describes one agent known to the registry.
type AgentDefinition struct {
	ID           string      `json:"id" yaml:"id"`
	Description  string      `json:"description,omitempty" yaml:"description"`
	Instructions string      `json:"instructions,omitempty" yaml:"instructions"`
	Model        ModelConfig `json:"model" yaml:"model"`
	Tools        []string    `json:"tools,omitempty" yaml:"tools"`
	Handoffs     []string    `json:"handoffs,omitempty" yaml:"handoffs"`
	StopAtTools  []string    `json:"stop_at_tools,omitempty" yaml:"stop_at_tools"`
	// Endpoint is used by the remote runner; empty means the runner's default.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint"`
}

// ModelConfig selects the chat model backing an agent.
type ModelConfig struct {
	Provider    string   `json:"provider" yaml:"provider"`
	Name        string   `json:"name" yaml:"name"`
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature"`
	MaxTokens   int      `json:"max_tokens,omitempty" yaml:"max_tokens"`
}

// StopsAt reports whether calling tool ends the agent's run.
func (a AgentDefinition) StopsAt(tool string) bool {
	for _, name := range a.StopAtTools {
		if name == tool {
			return true
		}
	}
	return false
}

// CanHandoffTo reports whether target is a declared hand-off of the agent.
func (a AgentDefinition) CanHandoffTo(target string) bool {
	for _, name := range a.Handoffs {
		if name == target {
			return true
		}
	}
	return false
}
