package main

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/await/internal/agents"
	"github.com/xiaot623/gogo/await/internal/client"
	"github.com/xiaot623/gogo/await/internal/config"
	"github.com/xiaot623/gogo/await/internal/domain"
	"github.com/xiaot623/gogo/await/internal/policy"
	"github.com/xiaot623/gogo/await/internal/runtime"
	"github.com/xiaot623/gogo/await/internal/service"
	httpserver "github.com/xiaot623/gogo/await/internal/transport/http"
	"github.com/xiaot623/gogo/await/internal/transport/ws"
	"github.com/xiaot623/gogo/await/tests/helpers"
)

func newTestClient(t *testing.T, cfg *config.Config) *client.Client {
	t.Helper()
	db := helpers.NewTestSQLiteStore(t)
	reg := runtime.NewRegistry()
	require.NoError(t, agents.RegisterBuiltins(reg))
	policyEngine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	require.NoError(t, err)
	svc := service.New(db, runtime.NewController(reg, runtime.WithStore(db)), cfg, policyEngine)

	srv := httptest.NewServer(httpserver.NewServer(svc, ws.NewServer(cfg, svc)))
	t.Cleanup(srv.Close)
	return client.NewClient(srv.URL)
}

func watchAsync(c *client.Client, runID string, interactive bool, in io.Reader, out io.Writer) <-chan error {
	errc := make(chan error, 1)
	go func() {
		errc <- watchRun(c, runID, interactive, in, out)
	}()
	return errc
}

func waitWatch(t *testing.T, errc <-chan error) {
	t.Helper()
	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not finish")
	}
}

func TestWatchInteractiveSurvivesSlowAnswer(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, &config.Config{
		ResumeMode:     config.ResumeModeSync,
		PingInterval:   50 * time.Millisecond,
		WriteTimeout:   time.Second,
		ReadTimeout:    200 * time.Millisecond,
		MaxMessageSize: 65536,
	})

	run, err := c.StartRun(ctx, agents.PasswordGeneratorName, "Generate a password")
	require.NoError(t, err)
	require.Equal(t, domain.RunStatusAwaiting, run.Status)

	stdin, typist := io.Pipe()
	t.Cleanup(func() { typist.Close() })
	var out bytes.Buffer
	errc := watchAsync(c, run.RunID, true, stdin, &out)

	// Answer well after the server's read timeout.
	time.Sleep(600 * time.Millisecond)
	_, err = io.WriteString(typist, "yes\n")
	require.NoError(t, err)

	waitWatch(t, errc)

	got, err := c.GetRun(ctx, run.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, got.Status)
	assert.Contains(t, out.String(), agents.PasswordPrompt)
	assert.Contains(t, out.String(), string(domain.EventTypeRunCompleted))
}

func TestWatchCancelsWhenInputCloses(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, &config.Config{ResumeMode: config.ResumeModeSync, MaxMessageSize: 65536})

	run, err := c.StartRun(ctx, agents.PasswordGeneratorName, "Generate a password")
	require.NoError(t, err)

	stdin, typist := io.Pipe()
	var out bytes.Buffer
	errc := watchAsync(c, run.RunID, true, stdin, &out)

	require.NoError(t, typist.Close())

	waitWatch(t, errc)

	got, err := c.GetRun(ctx, run.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCancelled, got.Status)
	assert.Contains(t, out.String(), "reason: input closed")
}

func TestWatchNonInteractiveEndsWithRun(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, &config.Config{ResumeMode: config.ResumeModeSync, MaxMessageSize: 65536})

	run, err := c.StartRun(ctx, agents.EchoName, "hello")
	require.NoError(t, err)

	var out bytes.Buffer
	waitWatch(t, watchAsync(c, run.RunID, false, nil, &out))
	assert.Contains(t, out.String(), "hello")
}
