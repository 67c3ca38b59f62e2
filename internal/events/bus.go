// Package events is a lightweight in-process pub-sub used where no external
// broker carries change notifications.
package events

import "sync"

// Bus fans each published event out to every subscriber's buffered channel.
// Publishing never blocks: a subscriber whose buffer is full misses the event.
type Bus[T any] struct {
	mu     sync.RWMutex
	subs   map[int]chan T
	next   int
	buffer int
	closed bool
}

// NewBus creates a bus whose subscriptions buffer up to buffer events.
func NewBus[T any](buffer int) *Bus[T] {
	if buffer <= 0 {
		buffer = 1
	}
	return &Bus[T]{subs: make(map[int]chan T), buffer: buffer}
}

// Publish attempts to enqueue evt for every subscriber without blocking.
// Returns the number of subscribers that received it.
func (b *Bus[T]) Publish(evt T) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	delivered := 0
	for _, ch := range b.subs {
		select {
		case ch <- evt:
			delivered++
		default:
		}
	}
	return delivered
}

// Subscribe returns a read-only channel for consumers and a cancel func that
// closes it. On a closed bus the channel is already closed.
func (b *Bus[T]) Subscribe() (<-chan T, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan T, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.next
	b.next++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

// Close closes every subscription. Later publishes are dropped.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
