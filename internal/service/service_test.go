package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/await/internal/agents"
	"github.com/xiaot623/gogo/await/internal/config"
	"github.com/xiaot623/gogo/await/internal/domain"
	"github.com/xiaot623/gogo/await/internal/policy"
	"github.com/xiaot623/gogo/await/internal/runtime"
	"github.com/xiaot623/gogo/await/tests/helpers"
)

func newTestService(t *testing.T, cfg *config.Config) *Service {
	t.Helper()
	ctx := context.Background()
	db := helpers.NewTestSQLiteStore(t)

	reg := runtime.NewRegistry()
	if err := agents.RegisterBuiltins(reg); err != nil {
		t.Fatalf("RegisterBuiltins failed: %v", err)
	}
	controller := runtime.NewController(reg, runtime.WithStore(db))

	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	if cfg == nil {
		cfg = &config.Config{ResumeMode: config.ResumeModeSync}
	}
	return New(db, controller, cfg, policyEngine)
}

func text(s string) domain.Message {
	return domain.NewTextMessage(domain.RoleUser, s)
}

func TestPasswordFlowSync(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	run, err := svc.StartRun(ctx, domain.StartRunRequest{AgentName: agents.PasswordGeneratorName, Input: text("Generate a password")})
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusAwaiting, run.Status)
	require.NotNil(t, run.Await)
	assert.Equal(t, agents.PasswordPrompt, run.Await.Message.Text())

	run, err = svc.Resume(ctx, run.RunID, domain.ResumeRequest{AwaitID: run.Await.AwaitID, Message: text("yes"), SubmittedBy: "alice"})
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, run.Status)
	require.Len(t, run.Output, 1)
	assert.Len(t, run.Output[0].Text(), agents.PasswordLength)

	events, err := svc.GetRunEvents(ctx, run.RunID, 0, nil, 0)
	require.NoError(t, err)
	var types []domain.EventType
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []domain.EventType{
		domain.EventTypeRunCreated,
		domain.EventTypeRunInProgress,
		domain.EventTypeRunAwaiting,
		domain.EventTypeRunInProgress,
		domain.EventTypeMessageCompleted,
		domain.EventTypeRunCompleted,
	}, types)

	var resumed domain.RunInProgressPayload
	require.NoError(t, json.Unmarshal(events[3].Payload, &resumed))
	assert.Equal(t, "alice", resumed.SubmittedBy)
	assert.NotEmpty(t, resumed.ResumedAwaitID)

	after, err := svc.GetRunEvents(ctx, run.RunID, 4, []string{string(domain.EventTypeRunCompleted)}, 10)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, int64(6), after[0].Seq)
}

func TestPasswordFlowAsync(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &config.Config{ResumeMode: config.ResumeModeAsync})

	run, err := svc.StartRun(ctx, domain.StartRunRequest{AgentName: agents.PasswordGeneratorName, Input: text("Generate a password")})
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCreated, run.Status)
	svc.Wait()

	run, err = svc.GetRun(ctx, run.RunID)
	require.NoError(t, err)
	require.Equal(t, domain.RunStatusAwaiting, run.Status)

	_, err = svc.Resume(ctx, run.RunID, domain.ResumeRequest{Message: text("no")})
	require.NoError(t, err)
	svc.Wait()

	run, err = svc.GetRun(ctx, run.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, run.Status)
	require.Len(t, run.Output, 1)
	assert.Equal(t, agents.PasswordDeclined, run.Output[0].Text())
}

func TestResumeValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	_, err := svc.Resume(ctx, "run_missing", domain.ResumeRequest{Message: text("yes")})
	assert.Equal(t, runtime.KindNotFound, runtime.KindOf(err))

	run, err := svc.StartRun(ctx, domain.StartRunRequest{AgentName: agents.EchoName, Input: text("hi")})
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, run.Status)

	_, err = svc.Resume(ctx, run.RunID, domain.ResumeRequest{Message: text("yes")})
	assert.ErrorIs(t, err, runtime.ErrInvalidState)

	run, err = svc.StartRun(ctx, domain.StartRunRequest{AgentName: agents.PasswordGeneratorName, Input: text("pw")})
	require.NoError(t, err)

	_, err = svc.Resume(ctx, run.RunID, domain.ResumeRequest{})
	assert.ErrorIs(t, err, runtime.ErrInvalidInput)

	_, err = svc.Resume(ctx, run.RunID, domain.ResumeRequest{Message: text("   ")})
	assert.ErrorIs(t, err, runtime.ErrResumeDenied)

	got, err := svc.GetRun(ctx, run.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusAwaiting, got.Status)
}

func TestStartRunValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	_, err := svc.StartRun(ctx, domain.StartRunRequest{Input: text("hi")})
	assert.ErrorIs(t, err, runtime.ErrInvalidInput)

	_, err = svc.StartRun(ctx, domain.StartRunRequest{AgentName: agents.EchoName})
	assert.ErrorIs(t, err, runtime.ErrInvalidInput)

	_, err = svc.StartRun(ctx, domain.StartRunRequest{AgentName: "unknown", Input: text("hi")})
	assert.ErrorIs(t, err, runtime.ErrNotFound)
}

func TestCancelRun(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	run, err := svc.StartRun(ctx, domain.StartRunRequest{AgentName: agents.PasswordGeneratorName, Input: text("pw")})
	require.NoError(t, err)

	run, err = svc.CancelRun(ctx, run.RunID, "user_cancelled")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCancelled, run.Status)

	run, err = svc.CancelRun(ctx, run.RunID, "again")
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCancelled, run.Status)

	_, err = svc.Resume(ctx, run.RunID, domain.ResumeRequest{Message: text("yes")})
	assert.ErrorIs(t, err, runtime.ErrInvalidState)

	events, err := svc.GetRunEvents(ctx, run.RunID, 0, []string{string(domain.EventTypeRunCancelled)}, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestListRunsAndAgents(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, nil)

	_, err := svc.StartRun(ctx, domain.StartRunRequest{AgentName: agents.EchoName, Input: text("a")})
	require.NoError(t, err)
	_, err = svc.StartRun(ctx, domain.StartRunRequest{AgentName: agents.PasswordGeneratorName, Input: text("b")})
	require.NoError(t, err)

	all, err := svc.ListRuns(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	awaiting, err := svc.ListRuns(ctx, domain.RunStatusAwaiting)
	require.NoError(t, err)
	require.Len(t, awaiting, 1)
	assert.Equal(t, agents.PasswordGeneratorName, awaiting[0].AgentName)

	_, err = svc.ListRuns(ctx, "sleeping")
	assert.ErrorIs(t, err, runtime.ErrInvalidInput)

	list := svc.ListAgents()
	require.Len(t, list, 2)
	assert.Equal(t, agents.EchoName, list[0].Name)

	info, err := svc.GetAgent(agents.PasswordGeneratorName)
	require.NoError(t, err)
	assert.NotEmpty(t, info.Description)

	_, err = svc.GetAgent("missing")
	assert.ErrorIs(t, err, runtime.ErrNotFound)
}

func TestSubscribeStreamsUntilTerminal(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	svc := newTestService(t, nil)

	run, err := svc.StartRun(ctx, domain.StartRunRequest{AgentName: agents.PasswordGeneratorName, Input: text("pw")})
	require.NoError(t, err)

	stream, err := svc.Subscribe(ctx, run.RunID)
	require.NoError(t, err)

	first := <-stream
	assert.Equal(t, domain.EventTypeRunAwaiting, first.Type)

	_, err = svc.Resume(ctx, run.RunID, domain.ResumeRequest{Message: text("yes")})
	require.NoError(t, err)

	var last domain.Event
	for ev := range stream {
		last = ev
	}
	assert.Equal(t, domain.EventTypeRunCompleted, last.Type)
}

func TestRecoverRunsAfterRestart(t *testing.T) {
	ctx := context.Background()
	db := helpers.NewTestSQLiteStore(t)
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	require.NoError(t, err)
	cfg := &config.Config{ResumeMode: config.ResumeModeSync}

	newService := func() *Service {
		reg := runtime.NewRegistry()
		require.NoError(t, agents.RegisterBuiltins(reg))
		return New(db, runtime.NewController(reg, runtime.WithStore(db)), cfg, policyEngine)
	}

	first := newService()
	run, err := first.StartRun(ctx, domain.StartRunRequest{AgentName: agents.PasswordGeneratorName, Input: text("Generate a password")})
	require.NoError(t, err)
	require.Equal(t, domain.RunStatusAwaiting, run.Status)

	second := newService()
	n, err := second.RecoverRuns(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := second.GetRun(ctx, run.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCancelled, got.Status)

	awaiting, err := second.ListRuns(ctx, domain.RunStatusAwaiting)
	require.NoError(t, err)
	assert.Empty(t, awaiting)

	_, err = second.Resume(ctx, run.RunID, domain.ResumeRequest{Message: text("yes")})
	assert.ErrorIs(t, err, runtime.ErrInvalidState)

	events, err := second.GetRunEvents(ctx, run.RunID, 0, nil, 0)
	require.NoError(t, err)
	last := events[len(events)-1]
	assert.Equal(t, domain.EventTypeRunCancelled, last.Type)
	var payload domain.RunCancelledPayload
	require.NoError(t, json.Unmarshal(last.Payload, &payload))
	assert.Equal(t, "server_restart", payload.Reason)

	n, err = second.RecoverRuns(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
