package agents

import (
	"github.com/xiaot623/gogo/await/internal/domain"
	"github.com/xiaot623/gogo/await/internal/runtime"
)

const EchoName = "echo"

// NewEcho returns an agent that replies with its input.
func NewEcho() runtime.Agent {
	return runtime.AgentFunc{
		AgentName:        EchoName,
		AgentDescription: "Replies with the input message.",
		Fn: func(ac *runtime.Context, input domain.Message) (domain.Message, error) {
			out := input.Clone()
			out.Role = domain.RoleAgent
			return out, nil
		},
	}
}
