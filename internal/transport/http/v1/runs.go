package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/xiaot623/gogo/await/internal/domain"
)

// CreateRun starts a run of an agent.
// POST /v1/runs
func (h *Handler) CreateRun(c echo.Context) error {
	ctx := c.Request().Context()

	var req domain.StartRunRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.AgentName == "" {
		return badRequest(c, "agent_name is required")
	}
	if req.Input.IsEmpty() {
		return badRequest(c, "input.parts is required")
	}

	run, err := h.service.StartRun(ctx, req)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusCreated, run)
}

// ListRuns lists runs, optionally filtered by status.
// GET /v1/runs?status=
func (h *Handler) ListRuns(c echo.Context) error {
	ctx := c.Request().Context()
	status := domain.RunStatus(c.QueryParam("status"))

	runs, err := h.service.ListRuns(ctx, status)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, domain.ListRunsResponse{Runs: runs})
}

// GetRun returns a run snapshot.
// GET /v1/runs/:run_id
func (h *Handler) GetRun(c echo.Context) error {
	ctx := c.Request().Context()

	run, err := h.service.GetRun(ctx, c.Param("run_id"))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, run)
}

// ResumeRun submits a resume signal for an awaiting run.
// POST /v1/runs/:run_id/resume
func (h *Handler) ResumeRun(c echo.Context) error {
	ctx := c.Request().Context()
	runID := c.Param("run_id")

	var req domain.ResumeRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Message.IsEmpty() {
		return badRequest(c, "message.parts is required")
	}

	run, err := h.service.Resume(ctx, runID, req)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, run)
}

// CancelRun cancels a run. Cancelling a finished run is a no-op.
// POST /v1/runs/:run_id/cancel
func (h *Handler) CancelRun(c echo.Context) error {
	ctx := c.Request().Context()
	runID := c.Param("run_id")

	var req domain.CancelRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	run, err := h.service.CancelRun(ctx, runID, req.Reason)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, run)
}
