// Package client provides an HTTP and WebSocket client for the await API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/xiaot623/gogo/await/internal/domain"
)

// Client is an HTTP client for the await API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Kind       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("await error (%d %s): %s", e.StatusCode, e.Kind, e.Message)
	}
	return fmt.Sprintf("await error (%d): %s", e.StatusCode, e.Message)
}

// StartRun calls POST /v1/runs.
func (c *Client) StartRun(ctx context.Context, agentName, text string) (*domain.Run, error) {
	req := domain.StartRunRequest{
		AgentName: agentName,
		Input:     domain.NewTextMessage(domain.RoleUser, text),
	}
	var run domain.Run
	if err := c.do(ctx, http.MethodPost, "/v1/runs", req, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// GetRun calls GET /v1/runs/:run_id.
func (c *Client) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	var run domain.Run
	if err := c.do(ctx, http.MethodGet, "/v1/runs/"+url.PathEscape(runID), nil, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns calls GET /v1/runs.
func (c *Client) ListRuns(ctx context.Context, status domain.RunStatus) ([]*domain.Run, error) {
	path := "/v1/runs"
	if status != "" {
		path += "?status=" + url.QueryEscape(string(status))
	}
	var resp domain.ListRunsResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Runs, nil
}

// Resume calls POST /v1/runs/:run_id/resume.
func (c *Client) Resume(ctx context.Context, runID string, req domain.ResumeRequest) (*domain.Run, error) {
	var run domain.Run
	if err := c.do(ctx, http.MethodPost, "/v1/runs/"+url.PathEscape(runID)+"/resume", req, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// Cancel calls POST /v1/runs/:run_id/cancel.
func (c *Client) Cancel(ctx context.Context, runID, reason string) (*domain.Run, error) {
	var run domain.Run
	if err := c.do(ctx, http.MethodPost, "/v1/runs/"+url.PathEscape(runID)+"/cancel", domain.CancelRequest{Reason: reason}, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// GetEvents calls GET /v1/runs/:run_id/events.
func (c *Client) GetEvents(ctx context.Context, runID string, afterSeq int64, types []string, limit int) ([]domain.Event, error) {
	q := url.Values{}
	if afterSeq > 0 {
		q.Set("after_seq", strconv.FormatInt(afterSeq, 10))
	}
	if len(types) > 0 {
		q.Set("types", strings.Join(types, ","))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/v1/runs/" + url.PathEscape(runID) + "/events"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp domain.ListEventsResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// ListAgents calls GET /v1/agents.
func (c *Client) ListAgents(ctx context.Context) ([]domain.AgentInfo, error) {
	var resp domain.ListAgentsResponse
	if err := c.do(ctx, http.MethodGet, "/v1/agents", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Agents, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
		var errResp domain.ErrorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			apiErr.Message = errResp.Error
			apiErr.Kind = errResp.Kind
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
