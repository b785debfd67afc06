// Package runtime implements the run controller: the await/resume state
// machine, the agent execution context and the per-run event stream.
package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xiaot623/gogo/await/internal/domain"
)

// Store persists run snapshots and the event log. Persistence is
// best-effort: failures are logged and never roll back a transition.
type Store interface {
	SaveRun(ctx context.Context, run *domain.Run) error
	GetRun(ctx context.Context, runID string) (*domain.Run, error)
	ListRuns(ctx context.Context, status domain.RunStatus, limit int) ([]*domain.Run, error)
	CreateEvent(ctx context.Context, event *domain.Event) error
	GetLastEvent(ctx context.Context, runID string) (*domain.Event, error)
}

// Yield is the outcome of one Advance: the run either suspended on an
// await signal or finished with a final message.
type Yield struct {
	Await *domain.AwaitSignal `json:"await,omitempty"`
	Final *domain.Message     `json:"final,omitempty"`
}

// Controller tracks run lifecycles across suspension and resumption.
// Methods are safe for concurrent use; each run is serialized by its own
// lock and runs share no mutable state.
type Controller struct {
	agents *Registry
	store  Store
	broker *Broker
	now    func() time.Time

	mu   sync.RWMutex
	runs map[string]*entry

	// storedMu serializes writes to runs that exist only in the store.
	storedMu sync.Mutex
}

type entry struct {
	mu      sync.Mutex
	run     *domain.Run
	exec    *execution
	seq     int64
	pending *domain.Message
	driving bool
}

// Option configures a Controller.
type Option func(c *Controller)

// WithStore persists runs and events to s.
func WithStore(s Store) Option {
	return func(c *Controller) { c.store = s }
}

// WithBroker uses b for event delivery instead of a private broker.
func WithBroker(b *Broker) Option {
	return func(c *Controller) { c.broker = b }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// NewController creates a controller executing agents from the registry.
func NewController(agents *Registry, opts ...Option) *Controller {
	c := &Controller{
		agents: agents,
		broker: NewBroker(),
		now:    time.Now,
		runs:   make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Agents returns the registry the controller executes agents from.
func (c *Controller) Agents() *Registry {
	return c.agents
}

// StartRun creates a run of the named agent in the created status.
func (c *Controller) StartRun(ctx context.Context, agentName string, input domain.Message) (*domain.Run, error) {
	if agentName == "" {
		return nil, fmt.Errorf("%w: agent_name is required", ErrInvalidInput)
	}
	if input.IsEmpty() {
		return nil, fmt.Errorf("%w: input message must have at least one part", ErrInvalidInput)
	}
	agent, ok := c.agents.Get(agentName)
	if !ok {
		return nil, fmt.Errorf("agent %s: %w", agentName, ErrNotFound)
	}

	if input.Role == "" {
		input.Role = domain.RoleUser
	}
	now := c.now()
	run := &domain.Run{
		RunID:     "run_" + uuid.New().String(),
		AgentName: agentName,
		Status:    domain.RunStatusCreated,
		Input:     input.Clone(),
		Output:    []domain.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	e := &entry{
		run:  run,
		exec: newExecution(run.RunID, agent, input),
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	c.mu.Lock()
	c.runs[run.RunID] = e
	c.mu.Unlock()

	c.persist(ctx, e)
	c.emit(ctx, e, domain.EventTypeRunCreated, domain.RunCreatedPayload{
		AgentName: agentName,
		Input:     run.Input,
	})

	return run.Clone(), nil
}

// Advance drives the run's agent until it awaits, completes or fails.
// It is valid for a freshly created run and for a run that was resumed.
func (c *Controller) Advance(ctx context.Context, runID string) (*Yield, error) {
	e, err := c.active(ctx, runID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.driving {
		e.mu.Unlock()
		return nil, fmt.Errorf("run %s is already advancing: %w", runID, ErrInvalidState)
	}
	switch e.run.Status {
	case domain.RunStatusCreated:
		if err := c.transition(ctx, e, domain.RunStatusInProgress); err != nil {
			e.mu.Unlock()
			return nil, err
		}
		c.emit(ctx, e, domain.EventTypeRunInProgress, domain.RunInProgressPayload{})
	case domain.RunStatusInProgress:
	default:
		status := e.run.Status
		e.mu.Unlock()
		return nil, fmt.Errorf("cannot advance run %s in status %s: %w", runID, status, ErrInvalidState)
	}
	e.driving = true
	value := e.pending
	e.pending = nil
	e.mu.Unlock()

	for {
		s, err := e.exec.next(value)
		value = nil

		e.mu.Lock()
		if err != nil || e.run.Status.IsTerminal() {
			e.driving = false
			e.mu.Unlock()
			return nil, fmt.Errorf("run %s: %w", runID, ErrCancelled)
		}

		switch s.kind {
		case stepEmit:
			c.appendOutput(ctx, e, s.message)
			e.mu.Unlock()
			continue

		case stepAwait:
			y, err := c.suspend(ctx, e, s.message)
			e.driving = false
			e.mu.Unlock()
			return y, err

		default:
			y, err := c.finish(ctx, e, s)
			e.driving = false
			e.mu.Unlock()
			return y, err
		}
	}
}

// suspend records the await signal; caller holds e.mu.
func (c *Controller) suspend(ctx context.Context, e *entry, msg domain.Message) (*Yield, error) {
	aw := &domain.AwaitSignal{
		AwaitID:   "await_" + uuid.New().String(),
		Message:   msg.Clone(),
		CreatedAt: c.now(),
	}
	e.run.Await = aw
	if err := c.transition(ctx, e, domain.RunStatusAwaiting); err != nil {
		e.run.Await = nil
		return nil, err
	}
	c.emit(ctx, e, domain.EventTypeRunAwaiting, domain.RunAwaitingPayload{Await: *aw})

	out := *aw
	out.Message = aw.Message.Clone()
	return &Yield{Await: &out}, nil
}

// finish applies the agent's return; caller holds e.mu.
func (c *Controller) finish(ctx context.Context, e *entry, s step) (*Yield, error) {
	if s.err != nil {
		e.run.Error = &domain.RunError{
			Code:    string(KindExecutionFailure),
			Message: s.err.Error(),
		}
		if err := c.transition(ctx, e, domain.RunStatusFailed); err != nil {
			return nil, err
		}
		c.emit(ctx, e, domain.EventTypeRunFailed, domain.RunFailedPayload{
			Code:    e.run.Error.Code,
			Message: e.run.Error.Message,
		})
		return nil, &ExecutionError{RunID: e.run.RunID, Err: s.err}
	}

	final := s.message.Clone()
	if final.Role == "" {
		final.Role = domain.RoleAgent
	}
	if !final.IsEmpty() {
		c.appendOutput(ctx, e, final)
	}
	if err := c.transition(ctx, e, domain.RunStatusCompleted); err != nil {
		return nil, err
	}
	c.emit(ctx, e, domain.EventTypeRunCompleted, domain.RunCompletedPayload{
		Final:  final,
		Output: e.run.Output,
	})
	return &Yield{Final: &final}, nil
}

// SubmitResume unblocks an awaiting run. The resume message becomes the
// return value of the agent's pending Await on the next Advance.
func (c *Controller) SubmitResume(ctx context.Context, runID string, sig domain.ResumeSignal) (*domain.Run, error) {
	e, err := c.active(ctx, runID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.run.Status != domain.RunStatusAwaiting || e.run.Await == nil {
		return nil, fmt.Errorf("run %s is %s, not awaiting: %w", runID, e.run.Status, ErrInvalidState)
	}
	if sig.AwaitID != "" && sig.AwaitID != e.run.Await.AwaitID {
		return nil, fmt.Errorf("resume references await %s but run %s awaits %s: %w",
			sig.AwaitID, runID, e.run.Await.AwaitID, ErrInvalidState)
	}
	if sig.Message.IsEmpty() {
		return nil, fmt.Errorf("%w: resume message must have at least one part", ErrInvalidInput)
	}

	awaitID := e.run.Await.AwaitID
	msg := sig.Message.Clone()
	if msg.Role == "" {
		msg.Role = domain.RoleUser
	}

	e.run.Await = nil
	if err := c.transition(ctx, e, domain.RunStatusInProgress); err != nil {
		return nil, err
	}
	e.pending = &msg
	c.emit(ctx, e, domain.EventTypeRunInProgress, domain.RunInProgressPayload{
		ResumedAwaitID: awaitID,
		SubmittedBy:    sig.SubmittedBy,
	})

	return e.run.Clone(), nil
}

// Cancel moves a non-terminal run to cancelled and stops its agent.
// Cancelling a terminal run is a no-op.
func (c *Controller) Cancel(ctx context.Context, runID string, reason string) (*domain.Run, error) {
	e, err := c.lookup(runID)
	if err != nil {
		if c.store == nil {
			return nil, err
		}
		return c.cancelStored(ctx, runID, reason)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.run.Status.IsTerminal() {
		return e.run.Clone(), nil
	}

	e.run.Await = nil
	e.pending = nil
	if err := c.transition(ctx, e, domain.RunStatusCancelled); err != nil {
		return nil, err
	}
	e.exec.stop()
	c.emit(ctx, e, domain.EventTypeRunCancelled, domain.RunCancelledPayload{Reason: reason})

	return e.run.Clone(), nil
}

// CancelAwait cancels the run only while it is still suspended on awaitID.
// It reports whether the run was cancelled.
func (c *Controller) CancelAwait(ctx context.Context, runID, awaitID, reason string) (bool, error) {
	e, err := c.lookup(runID)
	if err != nil {
		return false, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.run.Status != domain.RunStatusAwaiting || e.run.Await == nil || e.run.Await.AwaitID != awaitID {
		return false, nil
	}

	e.run.Await = nil
	e.pending = nil
	if err := c.transition(ctx, e, domain.RunStatusCancelled); err != nil {
		return false, err
	}
	e.exec.stop()
	c.emit(ctx, e, domain.EventTypeRunCancelled, domain.RunCancelledPayload{Reason: reason})
	return true, nil
}

// Subscribe streams lifecycle events of a run, starting with the most
// recent one. The stream ends after the terminal event. A run that is no
// longer held in memory yields only its last recorded event.
func (c *Controller) Subscribe(ctx context.Context, runID string) (<-chan domain.Event, error) {
	if _, err := c.lookup(runID); err != nil {
		if c.store == nil {
			return nil, err
		}
		last, serr := c.store.GetLastEvent(ctx, runID)
		if serr != nil {
			return nil, fmt.Errorf("failed to get last event: %w", serr)
		}
		if last == nil {
			return nil, err
		}
		out := make(chan domain.Event, 1)
		out <- *last
		close(out)
		return out, nil
	}
	return c.broker.Subscribe(ctx, runID), nil
}

// Reconcile cancels stored runs that are unfinished but not held by this
// controller, such as runs left behind by a previous process. Their agents
// are gone, so they can never be resumed. Returns the number cancelled.
func (c *Controller) Reconcile(ctx context.Context, reason string) (int, error) {
	if c.store == nil {
		return 0, nil
	}

	cancelled := 0
	for _, status := range []domain.RunStatus{
		domain.RunStatusCreated,
		domain.RunStatusInProgress,
		domain.RunStatusAwaiting,
	} {
		runs, err := c.store.ListRuns(ctx, status, 0)
		if err != nil {
			return cancelled, fmt.Errorf("failed to list %s runs: %w", status, err)
		}
		for _, run := range runs {
			if _, err := c.lookup(run.RunID); err == nil {
				continue
			}
			if _, err := c.cancelStored(ctx, run.RunID, reason); err != nil {
				return cancelled, err
			}
			cancelled++
		}
	}
	return cancelled, nil
}

// GetRun returns a snapshot of the run.
func (c *Controller) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	e, err := c.lookup(runID)
	if err != nil {
		if stored := c.stored(ctx, runID); stored != nil {
			return stored, nil
		}
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.run.Clone(), nil
}

// ListRuns returns snapshots of in-memory runs ordered by creation time.
// An empty status matches every run.
func (c *Controller) ListRuns(status domain.RunStatus) []*domain.Run {
	c.mu.RLock()
	entries := make([]*entry, 0, len(c.runs))
	for _, e := range c.runs {
		entries = append(entries, e)
	}
	c.mu.RUnlock()

	out := make([]*domain.Run, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if status == "" || e.run.Status == status {
			out = append(out, e.run.Clone())
		}
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Evict drops terminal runs that finished before cutoff from memory. They
// stay retrievable from the store. Returns the number of evicted runs.
func (c *Controller) Evict(cutoff time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := 0
	for id, e := range c.runs {
		e.mu.Lock()
		done := e.run.Status.IsTerminal() && e.run.FinishedAt != nil && e.run.FinishedAt.Before(cutoff)
		e.mu.Unlock()
		if done {
			delete(c.runs, id)
			c.broker.Forget(id)
			evicted++
		}
	}
	return evicted
}

func (c *Controller) lookup(runID string) (*entry, error) {
	c.mu.RLock()
	e, ok := c.runs[runID]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	return e, nil
}

// active returns the in-memory entry of runID. A run known only to the
// store is reported as ErrInvalidState since it can no longer advance.
func (c *Controller) active(ctx context.Context, runID string) (*entry, error) {
	e, err := c.lookup(runID)
	if err == nil {
		return e, nil
	}
	if stored := c.stored(ctx, runID); stored != nil {
		return nil, fmt.Errorf("run %s is %s and no longer active: %w", runID, stored.Status, ErrInvalidState)
	}
	return nil, err
}

// cancelStored cancels a run that exists only in the store. Its event log
// continues from the last recorded sequence number and nothing is
// published, since no subscriber can be attached to it.
func (c *Controller) cancelStored(ctx context.Context, runID, reason string) (*domain.Run, error) {
	c.storedMu.Lock()
	defer c.storedMu.Unlock()

	run, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	if run == nil {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	if run.Status.IsTerminal() {
		return run, nil
	}

	last, err := c.store.GetLastEvent(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get last event of run %s: %w", runID, err)
	}
	e := &entry{run: run}
	if last != nil {
		e.seq = last.Seq
	}

	run.Await = nil
	if err := c.transition(ctx, e, domain.RunStatusCancelled); err != nil {
		return nil, err
	}
	c.record(ctx, e, domain.EventTypeRunCancelled, domain.RunCancelledPayload{Reason: reason})
	log.Printf("INFO: cancelled stored run %s (reason=%q)", runID, reason)

	return run.Clone(), nil
}

func (c *Controller) stored(ctx context.Context, runID string) *domain.Run {
	if c.store == nil {
		return nil
	}
	run, err := c.store.GetRun(ctx, runID)
	if err != nil {
		log.Printf("WARN: failed to load run %s from store: %v", runID, err)
		return nil
	}
	return run
}

// transition changes the run status; caller holds e.mu.
func (c *Controller) transition(ctx context.Context, e *entry, to domain.RunStatus) error {
	from := e.run.Status
	if !CanTransition(from, to) {
		return fmt.Errorf("run %s cannot move from %s to %s: %w", e.run.RunID, from, to, ErrInvalidState)
	}

	now := c.now()
	e.run.Status = to
	e.run.UpdatedAt = now
	if to.IsTerminal() {
		e.run.FinishedAt = &now
	}
	c.persist(ctx, e)
	return nil
}

// appendOutput adds msg to the run output; caller holds e.mu.
func (c *Controller) appendOutput(ctx context.Context, e *entry, msg domain.Message) {
	msg = msg.Clone()
	if msg.Role == "" {
		msg.Role = domain.RoleAgent
	}
	e.run.Output = append(e.run.Output, msg)
	e.run.UpdatedAt = c.now()
	c.persist(ctx, e)
	c.emit(ctx, e, domain.EventTypeMessageCompleted, domain.MessageCompletedPayload{
		Index:   len(e.run.Output) - 1,
		Message: msg,
	})
}

func (c *Controller) persist(ctx context.Context, e *entry) {
	if c.store == nil {
		return
	}
	if err := c.store.SaveRun(context.WithoutCancel(ctx), e.run); err != nil {
		log.Printf("ERROR: failed to save run %s: %v", e.run.RunID, err)
	}
}

// emit records and publishes an event; caller holds e.mu so events of one
// run are published in transition order.
func (c *Controller) emit(ctx context.Context, e *entry, eventType domain.EventType, payload interface{}) {
	c.broker.Publish(c.record(ctx, e, eventType, payload))
}

// record assigns the next sequence number and appends the event to the
// store's log.
func (c *Controller) record(ctx context.Context, e *entry, eventType domain.EventType, payload interface{}) domain.Event {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		log.Printf("ERROR: failed to marshal %s payload: %v", eventType, err)
	}

	e.seq++
	event := domain.Event{
		EventID: "evt_" + uuid.New().String(),
		RunID:   e.run.RunID,
		Seq:     e.seq,
		Ts:      c.now().UnixMilli(),
		Type:    eventType,
		Status:  e.run.Status,
		Payload: payloadBytes,
	}

	if c.store != nil {
		if err := c.store.CreateEvent(context.WithoutCancel(ctx), &event); err != nil {
			log.Printf("ERROR: failed to record %s event for run %s: %v", eventType, e.run.RunID, err)
		}
	}
	return event
}
