package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/docsagent/internal/domain"
	"github.com/xiaot623/docsagent/internal/errx"
	"github.com/xiaot623/docsagent/internal/logx"
)

// PostTurn runs one chat turn.
// POST /docs-agent
//
// Turn failures after the conversation id is known still answer 200 with
// has_error set, so the caller can retry on the same conversation.
func (h *Handler) PostTurn(c echo.Context) error {
	var req domain.TurnRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}

	resp, err := h.service.HandleTurn(c.Request().Context(), req)
	if resp == nil {
		if err == nil {
			return errorJSON(c, http.StatusInternalServerError, errx.SystemErrorMessage)
		}
		return errorJSON(c, errx.StatusOf(err), err.Error())
	}
	if err != nil {
		logx.Debug().Err(err).Str("conversation_id", resp.ConversationID).Msg("turn answered with error")
	}
	return c.JSON(http.StatusOK, resp)
}
