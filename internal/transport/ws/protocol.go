package ws

import "github.com/xiaot623/gogo/await/internal/domain"

// Message types from client to server
const (
	TypeResume = "resume"
	TypeCancel = "cancel"
)

// Message types from server to client
const (
	TypeEvent = "event"
	TypeAck   = "ack"
	TypeError = "error"
)

// Error codes
const (
	ErrorCodeInvalidMessage = "invalid_message"
)

// BaseMessage contains common fields for all messages.
type BaseMessage struct {
	Type      string `json:"type"`
	Ts        int64  `json:"ts"`
	RequestID string `json:"request_id,omitempty"`
	RunID     string `json:"run_id,omitempty"`
}

// ResumeMessage is sent by the client to answer the run's await.
type ResumeMessage struct {
	BaseMessage
	AwaitID     string         `json:"await_id,omitempty"`
	Message     domain.Message `json:"message"`
	SubmittedBy string         `json:"submitted_by,omitempty"`
}

// CancelMessage is sent by the client to cancel the run.
type CancelMessage struct {
	BaseMessage
	Reason string `json:"reason,omitempty"`
}

// EventMessage carries a lifecycle event to the client.
type EventMessage struct {
	BaseMessage
	Event domain.Event `json:"event"`
}

// AckMessage confirms a client request with the resulting run snapshot.
type AckMessage struct {
	BaseMessage
	Run *domain.Run `json:"run"`
}

// ErrorMessage reports a failed client request.
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"code"`
	Message string `json:"message"`
}
