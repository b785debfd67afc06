// Package v1 provides the /v1 HTTP handlers.
package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/xiaot623/gogo/await/internal/domain"
	"github.com/xiaot623/gogo/await/internal/runtime"
	"github.com/xiaot623/gogo/await/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service) *Handler {
	return &Handler{
		service: service,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Run API
	e.POST("/v1/runs", h.CreateRun)
	e.GET("/v1/runs", h.ListRuns)
	e.GET("/v1/runs/:run_id", h.GetRun)
	e.POST("/v1/runs/:run_id/resume", h.ResumeRun)
	e.POST("/v1/runs/:run_id/cancel", h.CancelRun)
	e.GET("/v1/runs/:run_id/events", h.GetRunEvents)
	e.GET("/v1/runs/:run_id/events/stream", h.StreamRunEvents)

	// Agent API
	e.GET("/v1/agents", h.ListAgents)
	e.GET("/v1/agents/:name", h.GetAgent)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

// StatusFor maps an error to its HTTP status code.
func StatusFor(err error) int {
	switch runtime.KindOf(err) {
	case runtime.KindNotFound:
		return http.StatusNotFound
	case runtime.KindInvalidState:
		return http.StatusConflict
	case runtime.KindInvalidInput:
		return http.StatusBadRequest
	case runtime.KindResumeDenied:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

func respondError(c echo.Context, err error) error {
	return c.JSON(StatusFor(err), domain.ErrorResponse{
		Error: err.Error(),
		Kind:  string(runtime.KindOf(err)),
	})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, domain.ErrorResponse{
		Error: msg,
		Kind:  string(runtime.KindInvalidInput),
	})
}
