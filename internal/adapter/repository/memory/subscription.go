package memory

import (
	"context"
	"sync"

	"github.com/iho/sagaledger/internal/domain"
	"github.com/iho/sagaledger/internal/usecase"
)

// subscription is a processor bound to one stream kind. Events are queued in
// an unbounded mailbox so that appending never blocks on a slow subscriber,
// and are handed to the processor one at a time in append order.
type subscription struct {
	kind      domain.StreamKind
	processor usecase.Processor

	mu    sync.Mutex
	queue []domain.Event
	wake  chan struct{}
	done  chan struct{}
}

func newSubscription(kind domain.StreamKind, processor usecase.Processor) *subscription {
	return &subscription{
		kind:      kind,
		processor: processor,
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

func (s *subscription) name() string {
	return s.processor.Name()
}

func (s *subscription) enqueue(evt domain.Event) {
	s.mu.Lock()
	s.queue = append(s.queue, evt)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscription) next() (domain.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		return domain.Event{}, false
	}
	evt := s.queue[0]
	s.queue[0] = domain.Event{}
	s.queue = s.queue[1:]
	return evt, true
}

// drain discards undelivered events and returns how many there were.
func (s *subscription) drain() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.queue)
	s.queue = nil
	return n
}

func (s *subscription) stopped() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// tracker counts scheduled deliveries that have not finished yet.
type tracker struct {
	mu      sync.Mutex
	pending int
	idle    chan struct{}
}

func newTracker() *tracker {
	idle := make(chan struct{})
	close(idle)
	return &tracker{idle: idle}
}

func (t *tracker) add() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pending == 0 {
		t.idle = make(chan struct{})
	}
	t.pending++
}

func (t *tracker) done(n int) {
	if n <= 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pending == 0 {
		return
	}
	t.pending -= n
	if t.pending <= 0 {
		t.pending = 0
		close(t.idle)
	}
}

func (t *tracker) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

// wait blocks until no delivery is pending or ctx is done.
func (t *tracker) wait(ctx context.Context) error {
	t.mu.Lock()
	idle := t.idle
	t.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
