package blackboard

import (
	"context"
	"sync"
)

// Subscription delivers blackboard events of the selected kinds, in log order.
// Caller must call Close() when done, or cancel the context passed to Subscribe.
//
// Each subscription owns an unbounded queue that the blackboard appends to
// while holding its lock; a dedicated goroutine drains the queue into the
// Events() channel. A slow consumer therefore never blocks mutations and
// never loses events, and consumers may call back into the blackboard freely.
type Subscription struct {
	board  *Blackboard
	kinds  map[EventKind]bool // empty means all kinds
	events chan Event
	cancel context.CancelFunc
	once   sync.Once

	mu     sync.Mutex
	queue  []Event
	wake   chan struct{}
	closed bool
}

// Subscribe registers a subscription for future events of the given kinds.
// With no kinds, every event is delivered. The subscription ends when ctx is
// cancelled or Close is called, after which Events() is closed.
func (b *Blackboard) Subscribe(ctx context.Context, kinds ...EventKind) *Subscription {
	return b.subscribe(ctx, -1, kinds)
}

// SubscribeFrom is Subscribe with replay: events already in the log with Seq
// greater than afterSeq are delivered first, followed by live events, with no
// gap or duplicate between the two.
func (b *Blackboard) SubscribeFrom(ctx context.Context, afterSeq int64, kinds ...EventKind) *Subscription {
	if afterSeq < 0 {
		afterSeq = 0
	}
	return b.subscribe(ctx, afterSeq, kinds)
}

// subscribe creates and registers a subscription. A negative afterSeq skips replay.
func (b *Blackboard) subscribe(ctx context.Context, afterSeq int64, kinds []EventKind) *Subscription {
	subCtx, cancel := context.WithCancel(ctx)

	s := &Subscription{
		board:  b,
		kinds:  make(map[EventKind]bool, len(kinds)),
		events: make(chan Event),
		cancel: cancel,
		wake:   make(chan struct{}, 1),
	}
	for _, k := range kinds {
		s.kinds[k] = true
	}

	b.mu.Lock()
	if afterSeq >= 0 && afterSeq < int64(len(b.events)) {
		for _, e := range b.events[afterSeq:] {
			s.enqueue(e.clone())
		}
	}
	b.subs = append(b.subs, s)
	b.mu.Unlock()

	go s.pump(subCtx)

	return s
}

// Events returns the channel of delivered events.
// The channel is closed when the subscription ends.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Close stops the subscription and discards undelivered events. Implements io.Closer.
// Safe to call multiple times - subsequent calls are no-ops.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// Backlog returns the number of queued events not yet handed to the consumer.
func (s *Subscription) Backlog() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *Subscription) matches(kind EventKind) bool {
	return len(s.kinds) == 0 || s.kinds[kind]
}

// enqueue is called with the blackboard lock held and must never block.
func (s *Subscription) enqueue(e Event) {
	if !s.matches(e.Kind) {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, e)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription) pump(ctx context.Context) {
	defer close(s.events)
	defer s.board.unsubscribe(s)

	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-ctx.Done():
				s.markClosed()
				return
			case <-s.wake:
				continue
			}
		}
		next := s.queue[0]
		s.queue[0] = Event{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			s.markClosed()
			return
		case s.events <- next:
		}
	}
}

func (s *Subscription) markClosed() {
	s.mu.Lock()
	s.closed = true
	s.queue = nil
	s.mu.Unlock()
}

func (b *Blackboard) unsubscribe(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subs {
		if sub == s {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// Subscribers returns the number of active subscriptions.
func (b *Blackboard) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
