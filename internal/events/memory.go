package events

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const subscriberBuffer = 16

// MemoryBus is an in-process Bus for single-node deployments and tests.
type MemoryBus struct {
	mu     sync.Mutex
	subs   map[string]map[chan Event]struct{}
	closed bool
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: map[string]map[chan Event]struct{}{}}
}

func (b *MemoryBus) Publish(_ context.Context, learnerID string, e Event) error {
	e.LearnerID = learnerID
	if e.At.IsZero() {
		e.At = time.Now()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[learnerID] {
		select {
		case ch <- e:
		default:
			slog.Warn("event subscriber is full; dropping", "learner", learnerID, "kind", e.Kind)
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, learnerID string) (<-chan Event, error) {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, nil
	}
	if b.subs[learnerID] == nil {
		b.subs[learnerID] = map[chan Event]struct{}{}
	}
	b.subs[learnerID][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.remove(learnerID, ch)
	}()
	return ch, nil
}

func (b *MemoryBus) remove(learnerID string, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[learnerID][ch]; !ok {
		return
	}
	delete(b.subs[learnerID], ch)
	if len(b.subs[learnerID]) == 0 {
		delete(b.subs, learnerID)
	}
	close(ch)
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for learner, set := range b.subs {
		for ch := range set {
			close(ch)
		}
		delete(b.subs, learner)
	}
	return nil
}
