package playback

import (
	"context"
	"slices"
	"sync"
)

// CommandBus carries commands to the controller in submission order.
type CommandBus struct {
	ch   chan Command
	done chan struct{}
	once sync.Once
}

// NewCommandBus creates a bus holding up to backlog pending commands.
func NewCommandBus(backlog int) *CommandBus {
	return &CommandBus{
		ch:   make(chan Command, max(backlog, 1)),
		done: make(chan struct{}),
	}
}

// Submit queues cmd, waiting for room if the backlog is full.
func (b *CommandBus) Submit(ctx context.Context, cmd Command) error {
	select {
	case <-b.done:
		return ErrBusClosed
	default:
	}
	select {
	case b.ch <- cmd:
		return nil
	case <-b.done:
		return ErrBusClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySubmit queues cmd without waiting.
func (b *CommandBus) TrySubmit(cmd Command) error {
	select {
	case <-b.done:
		return ErrBusClosed
	default:
	}
	select {
	case b.ch <- cmd:
		return nil
	default:
		return ErrBusFull
	}
}

// Close rejects further submissions. Pending commands are discarded.
func (b *CommandBus) Close() {
	b.once.Do(func() { close(b.done) })
}

// EventBus fans events out to subscribers and keeps the latest Snapshot.
type EventBus struct {
	mu     sync.RWMutex
	subs   []*Subscription
	snap   Snapshot
	gen    uint64
	closed bool
}

// NewEventBus creates an event bus.
func NewEventBus() *EventBus {
	return &EventBus{snap: Snapshot{Index: -1, Volume: 1}}
}

// Subscribe creates a new event subscription. Subscribing to a closed bus
// returns a subscription whose Done channel is already closed.
func (b *EventBus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := newSubscription()
	if b.closed {
		sub.close()
		return sub
	}
	b.subs = append(b.subs, sub)
	return sub
}

// Unsubscribe removes sub and closes its Done channel.
func (b *EventBus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := slices.Index(b.subs, sub)
	if i < 0 {
		return
	}
	b.subs = slices.Delete(b.subs, i, i+1)
	sub.close()
}

// Snapshot returns the latest view of the controller.
func (b *EventBus) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s := b.snap
	s.Queue = slices.Clone(s.Queue)
	return s
}

// Generation returns the current generation.
func (b *EventBus) Generation() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.gen
}

func (b *EventBus) setGeneration(gen uint64) {
	b.mu.Lock()
	b.gen = max(b.gen, gen)
	b.snap.Generation = b.gen
	b.mu.Unlock()
}

func (b *EventBus) update(fn func(*Snapshot)) {
	b.mu.Lock()
	fn(&b.snap)
	b.mu.Unlock()
}

// publish delivers ev unless it belongs to an older generation.
func (b *EventBus) publish(gen uint64, ev any) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed || gen < b.gen {
		return false
	}
	for _, sub := range b.subs {
		sub.deliver(ev)
	}
	return true
}

// Close closes every subscription.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subs {
		sub.close()
	}
	b.subs = nil
}
