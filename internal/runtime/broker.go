package runtime

import (
	"context"
	"sync"

	"github.com/xiaot623/gogo/await/internal/domain"
)

// Broker fans lifecycle events out to per-run observers.
//
// Every subscriber owns an unbounded queue drained by its own goroutine, so
// publishing never blocks on a slow reader and events for a run are
// delivered in publication order.
type Broker struct {
	mu   sync.Mutex
	last map[string]domain.Event
	subs map[string]map[*subscriber]struct{}
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{
		last: make(map[string]domain.Event),
		subs: make(map[string]map[*subscriber]struct{}),
	}
}

// Publish delivers ev to all current subscribers of its run. A terminal
// event closes those subscriptions once drained.
func (b *Broker) Publish(ev domain.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.last[ev.RunID] = ev
	for sub := range b.subs[ev.RunID] {
		sub.push(ev)
	}
	if ev.Type.IsTerminal() {
		delete(b.subs, ev.RunID)
	}
}

// Subscribe returns a stream of events for runID. The latest event already
// published for the run is delivered first. The channel is closed after the
// terminal event or when ctx is done.
func (b *Broker) Subscribe(ctx context.Context, runID string) <-chan domain.Event {
	sub := newSubscriber()

	b.mu.Lock()
	if last, ok := b.last[runID]; ok {
		sub.push(last)
	}
	if !sub.isClosed() {
		if b.subs[runID] == nil {
			b.subs[runID] = make(map[*subscriber]struct{})
		}
		b.subs[runID][sub] = struct{}{}
	}
	b.mu.Unlock()

	go sub.pump(ctx, func() { b.remove(runID, sub) })
	return sub.out
}

// Forget drops the broker's state for runID.
func (b *Broker) Forget(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.last, runID)
}

// SubscriberCount returns the number of live subscriptions for runID.
func (b *Broker) SubscriberCount(runID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[runID])
}

func (b *Broker) remove(runID string, sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if subs, ok := b.subs[runID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(b.subs, runID)
		}
	}
}

type subscriber struct {
	mu     sync.Mutex
	queue  []domain.Event
	closed bool
	notify chan struct{}
	out    chan domain.Event
}

func newSubscriber() *subscriber {
	return &subscriber{
		notify: make(chan struct{}, 1),
		out:    make(chan domain.Event),
	}
}

func (s *subscriber) push(ev domain.Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, ev)
	if ev.Type.IsTerminal() {
		s.closed = true
	}
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *subscriber) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *subscriber) pump(ctx context.Context, done func()) {
	defer close(s.out)
	defer done()

	for {
		s.mu.Lock()
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, ev := range batch {
			select {
			case s.out <- ev:
			case <-ctx.Done():
				return
			}
		}

		s.mu.Lock()
		finished := s.closed && len(s.queue) == 0
		pending := len(s.queue) > 0
		s.mu.Unlock()

		if finished {
			return
		}
		if pending {
			continue
		}

		select {
		case <-s.notify:
		case <-ctx.Done():
			return
		}
	}
}
