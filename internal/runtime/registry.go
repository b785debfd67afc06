package runtime

import (
	"fmt"
	"sort"
	"sync"

	"github.com/xiaot623/gogo/await/internal/domain"
)

// Registry stores agents keyed by name.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]Agent
}

// NewRegistry creates an empty agent registry.
func NewRegistry() *Registry {
	return &Registry{
		agents: make(map[string]Agent),
	}
}

// Register adds a new agent.
func (r *Registry) Register(agent Agent) error {
	if agent == nil {
		return fmt.Errorf("agent is required")
	}
	name := agent.Name()
	if name == "" {
		return fmt.Errorf("agent name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.agents[name]; exists {
		return fmt.Errorf("agent already registered for %s", name)
	}
	r.agents[name] = agent
	return nil
}

// MustRegister adds an agent or panics.
func (r *Registry) MustRegister(agent Agent) {
	if err := r.Register(agent); err != nil {
		panic(err)
	}
}

// Get returns the agent registered under name.
func (r *Registry) Get(name string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	agent, ok := r.agents[name]
	return agent, ok
}

// List returns descriptions of all agents ordered by name.
func (r *Registry) List() []domain.AgentInfo {
	r.mu.RLock()
	out := make([]domain.AgentInfo, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, domain.AgentInfo{Name: a.Name(), Description: a.Description()})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
