package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/docsagent/internal/errx"
)

// GetConversation returns the stored state of a conversation. Unknown ids
// yield the default state.
// GET /v1/conversations/:conversation_id
func (h *Handler) GetConversation(c echo.Context) error {
	state, err := h.service.GetConversation(c.Request().Context(), c.Param("conversation_id"))
	if err != nil {
		return errorJSON(c, errx.StatusOf(err), err.Error())
	}
	return c.JSON(http.StatusOK, state)
}
