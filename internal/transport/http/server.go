// Package http provides the HTTP server implementation for the await service.
package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/xiaot623/gogo/await/internal/service"
	v1 "github.com/xiaot623/gogo/await/internal/transport/http/v1"
	"github.com/xiaot623/gogo/await/internal/transport/ws"
)

// NewServer creates and configures the public HTTP server: the REST API,
// the SSE event stream and the per-run WebSocket endpoint.
func NewServer(svc *service.Service, wsServer *ws.Server) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	v1Handler := v1.NewHandler(svc)
	v1Handler.RegisterRoutes(e)

	if wsServer != nil {
		e.GET("/v1/runs/:run_id/ws", wsServer.HandleWebSocket)
	}

	return e
}
