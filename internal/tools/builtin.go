package tools

import (
	"github.com/xiaot623/docsagent/internal/config"
)

// NewBuiltinRegistry registers the tools the default agents use.
func NewBuiltinRegistry(cfg config.ToolsConfig) *Registry {
	r := NewRegistry()
	r.MustRegister(NewWandbot(cfg.WandbotBaseURL).Definition())
	r.MustRegister(NewTicketTool(cfg).Definition())
	return r
}
