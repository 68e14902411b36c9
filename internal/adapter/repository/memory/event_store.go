package memory

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/iho/sagaledger/internal/domain"
	"github.com/iho/sagaledger/internal/infrastructure/metrics"
	"github.com/iho/sagaledger/internal/usecase"
)

// ErrorHandler is called when a subscriber fails to process an event.
type ErrorHandler func(subscriber string, event domain.Event, err error)

// Config for EventStore.
type Config struct {
	Logger      *zerolog.Logger
	Metrics     *metrics.Metrics // optional
	IDGenerator usecase.IDGenerator
	Clock       func() time.Time
	OnError     ErrorHandler // defaults to logging the failure
}

// EventStore is an in-memory, append-only event store. Stream ids are
// allocated from one counter shared by all kinds, starting at 1.
//
// Subscribers are notified asynchronously: every append is queued for each
// subscriber of the stream's kind while the store lock is held, so a
// subscriber observes events in the order they were appended.
type EventStore struct {
	mu      sync.RWMutex
	streams []streamRecord // indexed by id-1
	events  []domain.Event // every event, in append order
	subs    map[domain.StreamKind][]*subscription
	closed  bool

	pending *tracker
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc

	idGen   usecase.IDGenerator
	clock   func() time.Time
	logger  zerolog.Logger
	metrics *metrics.Metrics
	onError ErrorHandler
}

type streamRecord struct {
	kind      domain.StreamKind
	id        domain.StreamID
	positions []int // positions[r-1] is the index of revision r in events
}

var _ usecase.EventStore = (*EventStore)(nil)

// ulidIDs is the default event id source. Ids made within one process sort in
// creation order.
type ulidIDs struct{}

func (ulidIDs) Generate() string { return ulid.Make().String() }

// NewEventStore creates a new EventStore.
func NewEventStore(cfg Config) *EventStore {
	if cfg.Logger == nil {
		nop := zerolog.Nop()
		cfg.Logger = &nop
	}
	if cfg.IDGenerator == nil {
		cfg.IDGenerator = ulidIDs{}
	}
	if cfg.Clock == nil {
		cfg.Clock = func() time.Time { return time.Now().UTC() }
	}

	s := &EventStore{
		subs:    make(map[domain.StreamKind][]*subscription),
		pending: newTracker(),
		idGen:   cfg.IDGenerator,
		clock:   cfg.Clock,
		logger:  *cfg.Logger,
		metrics: cfg.Metrics,
		onError: cfg.OnError,
	}
	s.ctx, s.cancel = context.WithCancel(s.logger.WithContext(context.Background()))

	if s.onError == nil {
		s.onError = s.logFailure
	}

	return s
}

// CreateStream allocates a new stream of the given kind and appends initial as
// its first event.
func (s *EventStore) CreateStream(_ context.Context, kind domain.StreamKind, initial domain.Payload) (domain.StreamID, error) {
	payload, err := domain.CheckPayload(kind, initial)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, domain.ErrStoreClosed
	}

	id := domain.StreamID(len(s.streams) + 1)
	s.streams = append(s.streams, streamRecord{kind: kind, id: id})

	s.logger.Debug().
		Str("kind", string(kind)).
		Int64("stream_id", int64(id)).
		Msg("stream created")
	s.metrics.StreamCreated(string(kind))

	s.appendLocked(&s.streams[id-1], payload)

	return id, nil
}

// AppendEvent appends payload to the stream. expectedRevision must be exactly
// one past the stream's latest revision, otherwise nothing is appended and
// ErrConcurrencyConflict is returned.
func (s *EventStore) AppendEvent(_ context.Context, kind domain.StreamKind, id domain.StreamID, expectedRevision domain.Revision, payload domain.Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.ErrStoreClosed
	}

	rec, err := s.lookupLocked(kind, id)
	if err != nil {
		return err
	}

	payload, err = domain.CheckPayload(kind, payload)
	if err != nil {
		return err
	}

	next := domain.Revision(len(rec.positions) + 1)
	if expectedRevision != next {
		s.logger.Warn().
			Str("kind", string(kind)).
			Int64("stream_id", int64(id)).
			Int64("expected_revision", int64(expectedRevision)).
			Int64("next_revision", int64(next)).
			Msg("concurrency conflict")
		s.metrics.ConcurrencyConflict(string(kind))

		return fmt.Errorf("%w: stream %s expected revision %d, next is %d",
			domain.ErrConcurrencyConflict, domain.Stream{Kind: kind, ID: id}, expectedRevision, next)
	}

	s.appendLocked(rec, payload)
	return nil
}

// GetEvents returns a copy of the stream's events in revision order.
func (s *EventStore) GetEvents(_ context.Context, kind domain.StreamKind, id domain.StreamID) ([]domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, err := s.lookupLocked(kind, id)
	if err != nil {
		return nil, err
	}

	events := make([]domain.Event, len(rec.positions))
	for i, pos := range rec.positions {
		events[i] = s.events[pos]
	}
	return events, nil
}

// Streams lists every stream in creation order.
func (s *EventStore) Streams(_ context.Context) []domain.Stream {
	s.mu.RLock()
	defer s.mu.RUnlock()

	streams := make([]domain.Stream, len(s.streams))
	for i, rec := range s.streams {
		streams[i] = domain.Stream{Kind: rec.kind, ID: rec.id}
	}
	return streams
}

// ReadAll returns every event in the store in global append order.
func (s *EventStore) ReadAll(_ context.Context) []domain.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]domain.Event, len(s.events))
	copy(events, s.events)
	return events
}

// Subscribe registers processor for every event appended to streams of kind
// from now on. Each subscription is served by its own goroutine.
func (s *EventStore) Subscribe(kind domain.StreamKind, processor usecase.Processor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.ErrStoreClosed
	}

	sub := newSubscription(kind, processor)
	s.subs[kind] = append(s.subs[kind], sub)

	s.wg.Add(1)
	go s.run(sub)

	s.logger.Debug().
		Str("kind", string(kind)).
		Str("subscriber", sub.name()).
		Msg("subscriber registered")

	return nil
}

// Pending returns the number of scheduled deliveries that have not finished.
func (s *EventStore) Pending() int {
	return s.pending.count()
}

// WaitIdle blocks until every scheduled delivery, including those scheduled by
// subscribers while it waits, has finished.
func (s *EventStore) WaitIdle(ctx context.Context) error {
	return s.pending.wait(ctx)
}

// Close stops all subscribers. Deliveries in progress are allowed to finish;
// queued ones are dropped. Appends after Close fail with ErrStoreClosed.
func (s *EventStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true

	var subs []*subscription
	for _, kindSubs := range s.subs {
		subs = append(subs, kindSubs...)
	}
	s.mu.Unlock()

	s.cancel()
	for _, sub := range subs {
		close(sub.done)
	}
	s.wg.Wait()

	dropped := 0
	for _, sub := range subs {
		dropped += sub.drain()
	}
	if dropped > 0 {
		s.logger.Warn().Int("dropped", dropped).Msg("undelivered events dropped on close")
	}
	s.metrics.DeliveryDropped(dropped)
	s.pending.done(dropped)

	return nil
}

func (s *EventStore) lookupLocked(kind domain.StreamKind, id domain.StreamID) (*streamRecord, error) {
	if id < 1 || int(id) > len(s.streams) || s.streams[id-1].kind != kind {
		return nil, fmt.Errorf("%w: %s", domain.ErrStreamNotFound, domain.Stream{Kind: kind, ID: id})
	}
	return &s.streams[id-1], nil
}

func (s *EventStore) appendLocked(rec *streamRecord, payload domain.Payload) {
	evt := domain.Event{
		ID:         s.idGen.Generate(),
		StreamID:   rec.id,
		Kind:       rec.kind,
		Revision:   domain.Revision(len(rec.positions) + 1),
		Payload:    payload,
		RecordedAt: s.clock(),
	}

	rec.positions = append(rec.positions, len(s.events))
	s.events = append(s.events, evt)

	s.logger.Debug().
		Str("event_id", evt.ID).
		Str("kind", string(evt.Kind)).
		Int64("stream_id", int64(evt.StreamID)).
		Int64("revision", int64(evt.Revision)).
		Str("event_type", string(evt.Type())).
		Msg("event appended")
	s.metrics.EventAppended(string(evt.Kind), string(evt.Type()))

	for _, sub := range s.subs[evt.Kind] {
		s.pending.add()
		s.metrics.DeliveryScheduled()
		sub.enqueue(evt)
	}
}

func (s *EventStore) run(sub *subscription) {
	defer s.wg.Done()

	for {
		if sub.stopped() {
			return
		}

		evt, ok := sub.next()
		if !ok {
			select {
			case <-sub.wake:
				continue
			case <-sub.done:
				return
			}
		}

		s.deliver(sub, evt)
	}
}

func (s *EventStore) deliver(sub *subscription, evt domain.Event) {
	defer s.pending.done(1)

	start := time.Now()
	err := s.invoke(sub, evt)
	s.metrics.DeliveryHandled(sub.name(), time.Since(start), err)

	if err != nil {
		s.onError(sub.name(), evt, err)
	}
}

// invoke runs the processor, turning a panic into an error so one bad event
// does not take the subscription down.
func (s *EventStore) invoke(sub *subscription, evt domain.Event) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error().
				Str("subscriber", sub.name()).
				Interface("panic", rec).
				Str("stack", string(debug.Stack())).
				Msg("panic recovered in subscriber")
			err = fmt.Errorf("subscriber %s panicked: %v", sub.name(), rec)
		}
	}()

	return sub.processor.Process(s.ctx, evt)
}

func (s *EventStore) logFailure(subscriber string, evt domain.Event, err error) {
	s.logger.Error().
		Err(err).
		Str("subscriber", subscriber).
		Str("kind", string(evt.Kind)).
		Int64("stream_id", int64(evt.StreamID)).
		Int64("revision", int64(evt.Revision)).
		Str("event_type", string(evt.Type())).
		Msg("subscriber failed to process event")
}
