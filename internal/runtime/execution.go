package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/xiaot623/gogo/await/internal/domain"
)

type stepKind int

const (
	stepAwait stepKind = iota
	stepEmit
	stepDone
)

// step is what the agent goroutine hands back to the controller.
type step struct {
	kind    stepKind
	message domain.Message
	err     error
}

var errExecutionFinished = errors.New("execution already finished")

// execution runs one agent invocation on its own goroutine. Control is
// handed back and forth over unbuffered channels so that the agent and the
// controller never run at the same time.
type execution struct {
	runID string
	agent Agent
	input domain.Message

	ctx    context.Context
	cancel context.CancelFunc

	resume chan domain.Message
	yield  chan step

	// Only touched by the goroutine driving the run (serialized by the
	// controller's per-run driving flag).
	started  bool
	finished bool
}

func newExecution(runID string, agent Agent, input domain.Message) *execution {
	ctx, cancel := context.WithCancel(context.Background())
	return &execution{
		runID:  runID,
		agent:  agent,
		input:  input.Clone(),
		ctx:    ctx,
		cancel: cancel,
		resume: make(chan domain.Message),
		yield:  make(chan step),
	}
}

// next hands control to the agent, injecting value as the result of its
// pending suspension point, and blocks until the agent yields again.
func (e *execution) next(value *domain.Message) (step, error) {
	if e.finished {
		return step{}, errExecutionFinished
	}

	if !e.started {
		e.started = true
		go e.run()
	} else {
		var v domain.Message
		if value != nil {
			v = value.Clone()
		}
		select {
		case e.resume <- v:
		case <-e.ctx.Done():
			return step{}, ErrCancelled
		}
	}

	select {
	case s := <-e.yield:
		if s.kind == stepDone {
			e.finished = true
		}
		return s, nil
	case <-e.ctx.Done():
		return step{}, ErrCancelled
	}
}

// stop cancels the execution context; a suspended agent returns from Await
// with context.Canceled.
func (e *execution) stop() {
	e.cancel()
}

func (e *execution) run() {
	ac := &Context{Context: e.ctx, runID: e.runID, exec: e}
	final, err := e.invoke(ac)

	select {
	case e.yield <- step{kind: stepDone, message: final, err: err}:
	case <-e.ctx.Done():
	}
	e.cancel()
}

func (e *execution) invoke(ac *Context) (msg domain.Message, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("agent %s panicked: %v", e.agent.Name(), r)
		}
	}()
	return e.agent.Run(ac, e.input.Clone())
}

// suspend is called on the agent goroutine.
func (e *execution) suspend(s step) (domain.Message, error) {
	select {
	case e.yield <- s:
	case <-e.ctx.Done():
		return domain.Message{}, e.ctx.Err()
	}

	select {
	case v := <-e.resume:
		return v, nil
	case <-e.ctx.Done():
		return domain.Message{}, e.ctx.Err()
	}
}
