// Package store defines the storage interface and its SQLite implementation.
package store

import (
	"context"

	"github.com/xiaot623/gogo/await/internal/domain"
)

// Store defines the interface for data persistence.
type Store interface {
	// Run operations
	SaveRun(ctx context.Context, run *domain.Run) error
	GetRun(ctx context.Context, runID string) (*domain.Run, error)
	ListRuns(ctx context.Context, status domain.RunStatus, limit int) ([]*domain.Run, error)

	// Event operations
	CreateEvent(ctx context.Context, event *domain.Event) error
	GetEvents(ctx context.Context, runID string, afterSeq int64, types []string, limit int) ([]domain.Event, error)
	GetLastEvent(ctx context.Context, runID string) (*domain.Event, error)

	Close() error
}
