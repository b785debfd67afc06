package runtime

import (
	"context"

	"github.com/xiaot623/gogo/await/internal/domain"
)

// Agent is user-supplied logic executed once per run.
//
// Run may suspend any number of times by calling ac.Await, which returns the
// message carried by the resume signal that unblocked it. Intermediate
// output can be published with ac.Emit. The returned message becomes the
// run's final output; a non-nil error fails the run.
//
// Await and Emit must be called from the goroutine that invoked Run.
type Agent interface {
	Name() string
	Description() string
	Run(ac *Context, input domain.Message) (domain.Message, error)
}

// AgentFunc adapts a function to the Agent interface.
type AgentFunc struct {
	AgentName        string
	AgentDescription string
	Fn               func(ac *Context, input domain.Message) (domain.Message, error)
}

func (f AgentFunc) Name() string        { return f.AgentName }
func (f AgentFunc) Description() string { return f.AgentDescription }

func (f AgentFunc) Run(ac *Context, input domain.Message) (domain.Message, error) {
	return f.Fn(ac, input)
}

// Context is the execution context handed to an agent. It is cancelled when
// the run is cancelled.
type Context struct {
	context.Context
	runID string
	exec  *execution
}

// RunID returns the identifier of the run being executed.
func (c *Context) RunID() string {
	return c.runID
}

// Await suspends the agent until a resume signal is submitted for the run and
// returns the resume message. It returns the context error if the run is
// cancelled while suspended.
func (c *Context) Await(msg domain.Message) (domain.Message, error) {
	if msg.Role == "" {
		msg.Role = domain.RoleAgent
	}
	return c.exec.suspend(step{kind: stepAwait, message: msg})
}

// Emit appends an intermediate message to the run output.
func (c *Context) Emit(msg domain.Message) error {
	if msg.Role == "" {
		msg.Role = domain.RoleAgent
	}
	_, err := c.exec.suspend(step{kind: stepEmit, message: msg})
	return err
}
