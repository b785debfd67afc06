package service

import (
	"context"
	"fmt"

	"github.com/xiaot623/gogo/await/internal/domain"
	"github.com/xiaot623/gogo/await/internal/runtime"
)

func (s *Service) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	return s.controller.GetRun(ctx, runID)
}

// ListRuns returns runs from the store, which also holds runs evicted from
// memory, falling back to the controller when no store is configured.
func (s *Service) ListRuns(ctx context.Context, status domain.RunStatus) ([]*domain.Run, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", runtime.ErrInvalidInput, status)
	}
	if s.store == nil {
		return s.controller.ListRuns(status), nil
	}
	runs, err := s.store.ListRuns(ctx, status, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

func (s *Service) ListAgents() []domain.AgentInfo {
	return s.controller.Agents().List()
}

func (s *Service) GetAgent(name string) (*domain.AgentInfo, error) {
	agent, ok := s.controller.Agents().Get(name)
	if !ok {
		return nil, fmt.Errorf("agent %s: %w", name, runtime.ErrNotFound)
	}
	return &domain.AgentInfo{Name: agent.Name(), Description: agent.Description()}, nil
}

func (s *Service) GetRunEvents(ctx context.Context, runID string, afterSeq int64, types []string, limit int) ([]domain.Event, error) {
	if _, err := s.controller.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	if s.store == nil {
		return []domain.Event{}, nil
	}
	events, err := s.store.GetEvents(ctx, runID, afterSeq, types, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get run events: %w", err)
	}
	return events, nil
}

// Subscribe streams a run's lifecycle events until its terminal event.
func (s *Service) Subscribe(ctx context.Context, runID string) (<-chan domain.Event, error) {
	return s.controller.Subscribe(ctx, runID)
}
