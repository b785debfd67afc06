package domain

// StartRunRequest represents the request to start a run.
type StartRunRequest struct {
	AgentName string  `json:"agent_name"`
	Input     Message `json:"input"`
}

// ResumeRequest represents a resume signal submitted by an external party.
type ResumeRequest struct {
	AwaitID     string  `json:"await_id,omitempty"`
	Message     Message `json:"message"`
	SubmittedBy string  `json:"submitted_by,omitempty"`
}

// CancelRequest represents a cancellation request.
type CancelRequest struct {
	Reason string `json:"reason,omitempty"`
}

// AgentInfo describes a registered agent.
type AgentInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ListRunsResponse represents the response for listing runs.
type ListRunsResponse struct {
	Runs []*Run `json:"runs"`
}

// ListAgentsResponse represents the response for listing agents.
type ListAgentsResponse struct {
	Agents []AgentInfo `json:"agents"`
}

// ListEventsResponse represents the response for listing run events.
type ListEventsResponse struct {
	Events []Event `json:"events"`
}

// ErrorResponse is the JSON body returned for failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
