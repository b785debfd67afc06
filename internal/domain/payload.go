package domain

// RunCreatedPayload is the payload for run.created events.
type RunCreatedPayload struct {
	AgentName string  `json:"agent_name"`
	Input     Message `json:"input"`
}

// RunInProgressPayload is the payload for run.in_progress events.
type RunInProgressPayload struct {
	ResumedAwaitID string `json:"resumed_await_id,omitempty"`
	SubmittedBy    string `json:"submitted_by,omitempty"`
}

// RunAwaitingPayload is the payload for run.awaiting events.
type RunAwaitingPayload struct {
	Await AwaitSignal `json:"await"`
}

// MessageCompletedPayload is the payload for message.completed events.
type MessageCompletedPayload struct {
	Index   int     `json:"index"`
	Message Message `json:"message"`
}

// RunCompletedPayload is the payload for run.completed events.
type RunCompletedPayload struct {
	Final  Message   `json:"final"`
	Output []Message `json:"output"`
}

// RunFailedPayload is the payload for run.failed events.
type RunFailedPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RunCancelledPayload is the payload for run.cancelled events.
type RunCancelledPayload struct {
	Reason string `json:"reason,omitempty"`
}
