package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/xiaot623/gogo/await/internal/domain"
)

// ListAgents lists the registered agents.
// GET /v1/agents
func (h *Handler) ListAgents(c echo.Context) error {
	return c.JSON(http.StatusOK, domain.ListAgentsResponse{
		Agents: h.service.ListAgents(),
	})
}

// GetAgent gets a specific agent by name.
// GET /v1/agents/:name
func (h *Handler) GetAgent(c echo.Context) error {
	agent, err := h.service.GetAgent(c.Param("name"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, agent)
}
