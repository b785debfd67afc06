// Package domain defines the core domain models for the await service.
package domain

// RunStatus represents the status of a run.
type RunStatus string

const (
	RunStatusCreated    RunStatus = "created"
	RunStatusInProgress RunStatus = "in_progress"
	RunStatusAwaiting   RunStatus = "awaiting"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusFailed     RunStatus = "failed"
	RunStatusCancelled  RunStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are possible.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		return true
	}
	return false
}

// Valid reports whether s is a known status.
func (s RunStatus) Valid() bool {
	switch s {
	case RunStatusCreated, RunStatusInProgress, RunStatusAwaiting,
		RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		return true
	}
	return false
}

// EventType represents the type of a lifecycle event.
type EventType string

const (
	EventTypeRunCreated       EventType = "run.created"
	EventTypeRunInProgress    EventType = "run.in_progress"
	EventTypeRunAwaiting      EventType = "run.awaiting"
	EventTypeRunCompleted     EventType = "run.completed"
	EventTypeRunFailed        EventType = "run.failed"
	EventTypeRunCancelled     EventType = "run.cancelled"
	EventTypeMessageCompleted EventType = "message.completed"
)

// IsTerminal reports whether the event closes a run's stream.
func (t EventType) IsTerminal() bool {
	switch t {
	case EventTypeRunCompleted, EventTypeRunFailed, EventTypeRunCancelled:
		return true
	}
	return false
}

// Message roles.
const (
	RoleUser  = "user"
	RoleAgent = "agent"
)

// Content types used by message parts.
const (
	ContentTypeText = "text/plain"
	ContentTypeJSON = "application/json"
)
