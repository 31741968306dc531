// Package http provides the HTTP server for the docs agent.
package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/xiaot623/docsagent/internal/service"
	v1 "github.com/xiaot623/docsagent/internal/transport/http/v1"
	"github.com/xiaot623/docsagent/internal/transport/ws"
)

// NewServer creates and configures the HTTP server. chat may be nil to
// leave the websocket endpoint out.
func NewServer(svc *service.Service, chat *ws.Server) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(echo.WrapMiddleware(otelhttp.NewMiddleware("docsagent")))

	// Handlers
	v1Handler := v1.NewHandler(svc)

	// Register Routes
	v1Handler.RegisterRoutes(e)
	if chat != nil {
		e.GET("/ws", chat.HandleWebSocket)
	}

	return e
}
