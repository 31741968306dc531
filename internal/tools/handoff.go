package tools

import (
	"strings"

	"github.com/xiaot623/docsagent/internal/domain"
	"github.com/xiaot623/docsagent/internal/segment"
)

const handoffPrefix = "transfer_to_"

// HandoffToolName is the name of the tool that transfers to agentID.
func HandoffToolName(agentID string) string {
	return handoffPrefix + agentID
}

// HandoffTarget returns the agent a hand-off tool transfers to.
func HandoffTarget(toolName string) (string, bool) {
	if !strings.HasPrefix(toolName, handoffPrefix) {
		return "", false
	}
	target := strings.TrimPrefix(toolName, handoffPrefix)
	return target, target != ""
}

// HandoffSpec describes the hand-off tool for target.
func HandoffSpec(target domain.AgentDefinition) domain.ToolSpec {
	desc := "Handoff to the " + target.ID + " agent to handle the request."
	if target.Description != "" {
		desc += " " + target.Description
	}
	return domain.ToolSpec{
		Name:        HandoffToolName(target.ID),
		Description: desc,
		Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
	}
}

// HandoffOutput is the result payload of a completed hand-off.
func HandoffOutput(agentID string) map[string]string {
	return map[string]string{segment.TargetField: agentID}
}
