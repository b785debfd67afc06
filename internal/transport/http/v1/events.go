package v1

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/xiaot623/gogo/await/internal/domain"
)

// GetRunEvents retrieves persisted events for a run.
// GET /v1/runs/:run_id/events?after_seq=&types=&limit=
func (h *Handler) GetRunEvents(c echo.Context) error {
	runID := c.Param("run_id")
	limit := 100
	if l := c.QueryParam("limit"); l != "" {
		val, err := strconv.Atoi(l)
		if err != nil || val < 0 {
			return badRequest(c, "invalid limit")
		}
		limit = val
	}
	afterSeq := int64(0)
	if s := c.QueryParam("after_seq"); s != "" {
		val, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return badRequest(c, "invalid after_seq")
		}
		afterSeq = val
	}
	var types []string
	if t := c.QueryParam("types"); t != "" {
		for _, typ := range strings.Split(t, ",") {
			if typ = strings.TrimSpace(typ); typ != "" {
				types = append(types, typ)
			}
		}
	}

	ctx := c.Request().Context()

	events, err := h.service.GetRunEvents(ctx, runID, afterSeq, types, limit)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, domain.ListEventsResponse{Events: events})
}

// StreamRunEvents streams events for a run via SSE.
// GET /v1/runs/:run_id/events/stream
//
// The first event is the latest one already published for the run. The
// stream ends after the run's terminal event.
func (h *Handler) StreamRunEvents(c echo.Context) error {
	ctx := c.Request().Context()
	runID := c.Param("run_id")

	events, err := h.service.Subscribe(ctx, runID)
	if err != nil {
		return respondError(c, err)
	}

	// Set SSE headers
	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Flush()

	for event := range events {
		if err := sendSSEEvent(c, event); err != nil {
			log.Printf("ERROR: failed to send SSE event: %v", err)
			return nil
		}
		if event.Type.IsTerminal() {
			log.Printf("INFO: run %s reached terminal state: %s", runID, event.Status)
		}
	}
	return nil
}

// sendSSEEvent sends a single event in SSE format.
func sendSSEEvent(c echo.Context, event domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	w := c.Response()
	if _, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", event.Seq, event.Type, data); err != nil {
		return err
	}
	w.Flush()
	return nil
}
