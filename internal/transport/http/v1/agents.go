package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ListAgents lists the configured agents.
// GET /v1/agents
func (h *Handler) ListAgents(c echo.Context) error {
	agents := h.service.ListAgents()

	agentList := make([]map[string]interface{}, len(agents))
	for i, a := range agents {
		agentList[i] = map[string]interface{}{
			"agent_id":    a.ID,
			"description": a.Description,
			"tools":       a.Tools,
			"handoffs":    a.Handoffs,
			"model":       a.Model.Provider + "/" + a.Model.Name,
		}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"agents": agentList,
	})
}
