package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/xiaot623/gogo/await/internal/domain"
	"github.com/xiaot623/gogo/await/internal/runtime"
)

// StartRun creates a run and drives it to its first suspension point or
// completion.
func (s *Service) StartRun(ctx context.Context, req domain.StartRunRequest) (*domain.Run, error) {
	if req.AgentName == "" {
		return nil, fmt.Errorf("%w: agent_name is required", runtime.ErrInvalidInput)
	}
	if req.Input.IsEmpty() {
		return nil, fmt.Errorf("%w: input.parts is required", runtime.ErrInvalidInput)
	}

	run, err := s.controller.StartRun(ctx, req.AgentName, req.Input)
	if err != nil {
		return nil, err
	}
	log.Printf("INFO: run %s created for agent %s", run.RunID, run.AgentName)

	return s.dispatch(ctx, run)
}

// CancelRun cancels a run. Cancelling a finished run returns it unchanged.
func (s *Service) CancelRun(ctx context.Context, runID string, reason string) (*domain.Run, error) {
	run, err := s.controller.Cancel(ctx, runID, reason)
	if err != nil {
		return nil, err
	}
	log.Printf("INFO: run %s cancel requested (reason=%q, status=%s)", runID, reason, run.Status)
	return run, nil
}

// dispatch drives the run on the request goroutine in sync mode, otherwise
// in the background, and returns the latest snapshot.
func (s *Service) dispatch(ctx context.Context, run *domain.Run) (*domain.Run, error) {
	if !s.config.SyncResume() {
		s.drives.Add(1)
		go func() {
			defer s.drives.Done()
			s.drive(context.WithoutCancel(ctx), run.RunID)
		}()
		return run, nil
	}

	s.drive(ctx, run.RunID)
	return s.controller.GetRun(ctx, run.RunID)
}

// drive advances the run once. Failures are recorded on the run itself, so
// they are only logged here.
func (s *Service) drive(ctx context.Context, runID string) {
	y, err := s.controller.Advance(ctx, runID)
	var execErr *runtime.ExecutionError
	switch {
	case err == nil && y.Await != nil:
		log.Printf("INFO: run %s awaiting (await_id=%s)", runID, y.Await.AwaitID)
	case err == nil:
		log.Printf("INFO: run %s completed", runID)
	case errors.As(err, &execErr):
		log.Printf("WARN: run %s failed: %v", runID, execErr.Err)
	case errors.Is(err, runtime.ErrCancelled):
		log.Printf("INFO: run %s cancelled while executing", runID)
	default:
		log.Printf("ERROR: failed to advance run %s: %v", runID, err)
	}
}

const reasonServerRestart = "server_restart"

// RecoverRuns cancels runs a previous process left unfinished in the store.
// Their agents did not survive the restart, so they can never resume.
func (s *Service) RecoverRuns(ctx context.Context) (int, error) {
	n, err := s.controller.Reconcile(ctx, reasonServerRestart)
	if err != nil {
		return n, fmt.Errorf("failed to reconcile stored runs: %w", err)
	}
	if n > 0 {
		log.Printf("INFO: cancelled %d runs left unfinished by a previous process", n)
	}
	return n, nil
}
