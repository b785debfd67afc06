package domain

import (
	"encoding/json"
	"time"
)

// AwaitSignal is produced by an agent to suspend and request external input.
type AwaitSignal struct {
	AwaitID   string    `json:"await_id"`
	Message   Message   `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// ResumeSignal answers the outstanding AwaitSignal of a run.
type ResumeSignal struct {
	RunID       string  `json:"run_id"`
	AwaitID     string  `json:"await_id,omitempty"`
	Message     Message `json:"message"`
	SubmittedBy string  `json:"submitted_by,omitempty"`
}

// RunError describes why a run failed.
type RunError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Run represents a single execution of an agent against an input.
type Run struct {
	RunID      string       `json:"run_id"`
	AgentName  string       `json:"agent_name"`
	Status     RunStatus    `json:"status"`
	Input      Message      `json:"input"`
	Output     []Message    `json:"output"`
	Await      *AwaitSignal `json:"await,omitempty"`
	Error      *RunError    `json:"error,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
}

// Clone returns a deep copy safe to hand out of the controller.
func (r *Run) Clone() *Run {
	if r == nil {
		return nil
	}
	out := *r
	out.Input = r.Input.Clone()
	out.Output = CloneMessages(r.Output)
	if out.Output == nil {
		out.Output = []Message{}
	}
	if r.Await != nil {
		aw := *r.Await
		aw.Message = r.Await.Message.Clone()
		out.Await = &aw
	}
	if r.Error != nil {
		e := *r.Error
		out.Error = &e
	}
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		out.FinishedAt = &t
	}
	return &out
}

// Event is a lifecycle notification for a single run.
type Event struct {
	EventID string          `json:"event_id"`
	RunID   string          `json:"run_id"`
	Seq     int64           `json:"seq"`
	Ts      int64           `json:"ts"` // Unix milliseconds
	Type    EventType       `json:"type"`
	Status  RunStatus       `json:"status"`
	Payload json.RawMessage `json:"payload,omitempty"`
}
