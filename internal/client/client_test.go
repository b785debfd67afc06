package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/await/internal/agents"
	"github.com/xiaot623/gogo/await/internal/config"
	"github.com/xiaot623/gogo/await/internal/domain"
	"github.com/xiaot623/gogo/await/internal/policy"
	"github.com/xiaot623/gogo/await/internal/runtime"
	"github.com/xiaot623/gogo/await/internal/service"
	httpserver "github.com/xiaot623/gogo/await/internal/transport/http"
	"github.com/xiaot623/gogo/await/internal/transport/ws"
	"github.com/xiaot623/gogo/await/tests/helpers"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	cfg := &config.Config{
		ResumeMode:     config.ResumeModeSync,
		PingInterval:   time.Second,
		WriteTimeout:   time.Second,
		ReadTimeout:    5 * time.Second,
		MaxMessageSize: 65536,
	}
	db := helpers.NewTestSQLiteStore(t)
	reg := runtime.NewRegistry()
	require.NoError(t, agents.RegisterBuiltins(reg))
	policyEngine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	require.NoError(t, err)
	svc := service.New(db, runtime.NewController(reg, runtime.WithStore(db)), cfg, policyEngine)

	srv := httptest.NewServer(httpserver.NewServer(svc, ws.NewServer(cfg, svc)))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL + "/")
}

func TestClientRunLifecycle(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	agentList, err := c.ListAgents(ctx)
	require.NoError(t, err)
	assert.Len(t, agentList, 2)

	run, err := c.StartRun(ctx, agents.PasswordGeneratorName, "Generate a password")
	require.NoError(t, err)
	require.Equal(t, domain.RunStatusAwaiting, run.Status)

	awaiting, err := c.ListRuns(ctx, domain.RunStatusAwaiting)
	require.NoError(t, err)
	assert.Len(t, awaiting, 1)

	run, err = c.Resume(ctx, run.RunID, domain.ResumeRequest{
		AwaitID: run.Await.AwaitID,
		Message: domain.NewTextMessage(domain.RoleUser, "yes"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, run.Status)

	got, err := c.GetRun(ctx, run.RunID)
	require.NoError(t, err)
	assert.Equal(t, run.Output, got.Output)

	events, err := c.GetEvents(ctx, run.RunID, 2, []string{string(domain.EventTypeRunCompleted)}, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)

	cancelled, err := c.Cancel(ctx, run.RunID, "late")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, cancelled.Status)
}

func TestClientErrors(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	_, err := c.GetRun(ctx, "run_missing")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, string(runtime.KindNotFound), apiErr.Kind)

	run, err := c.StartRun(ctx, agents.EchoName, "hi")
	require.NoError(t, err)
	_, err = c.Resume(ctx, run.RunID, domain.ResumeRequest{Message: domain.NewTextMessage(domain.RoleUser, "yes")})
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
}

func TestWatchResumesOverSocket(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	run, err := c.StartRun(ctx, agents.PasswordGeneratorName, "Generate a password")
	require.NoError(t, err)

	w, err := c.Watch(run.RunID)
	require.NoError(t, err)
	defer w.Close()

	var final domain.EventType
	for {
		frame, ok, err := w.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		if frame.Event == nil {
			continue
		}
		if frame.Event.Type == domain.EventTypeRunAwaiting {
			var payload domain.RunAwaitingPayload
			require.NoError(t, jsonUnmarshal(frame.Event.Payload, &payload))
			require.NoError(t, w.Resume(payload.Await.AwaitID, "no"))
		}
		final = frame.Event.Type
	}
	assert.Equal(t, domain.EventTypeRunCompleted, final)
}

func jsonUnmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}
