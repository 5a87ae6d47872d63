// Package events provides the in-process publish/subscribe primitive shared by
// the local store, the section store and the field service.
package events

import (
	"slices"
	"sync"
)

// Bus fans a value out to every subscriber in subscription order. Values are
// delivered one at a time in publish order. A handler may publish on the same
// bus; the value is delivered once the current one has reached every handler.
type Bus[T any] struct {
	mu       sync.Mutex
	nextID   uint64
	handlers []subscription[T]
	queue    []T
	draining bool
}

type subscription[T any] struct {
	id uint64
	fn func(T)
}

// Subscribe registers fn and returns a function that removes it. The returned
// function is safe to call more than once.
func (b *Bus[T]) Subscribe(fn func(T)) func() {
	if fn == nil {
		return func() {}
	}
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers = append(b.handlers, subscription[T]{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

// Publish queues value and, unless another call is already delivering,
// delivers the queue before returning. When a handler panics the values still
// queued are dropped and the panic propagates to the delivering caller.
func (b *Bus[T]) Publish(value T) {
	b.mu.Lock()
	b.queue = append(b.queue, value)
	if b.draining {
		b.mu.Unlock()
		return
	}
	b.draining = true

	defer func() {
		if r := recover(); r != nil {
			b.mu.Lock()
			b.queue = nil
			b.draining = false
			b.mu.Unlock()
			panic(r)
		}
	}()

	for len(b.queue) > 0 {
		var zero T
		next := b.queue[0]
		b.queue[0] = zero
		b.queue = b.queue[1:]
		handlers := slices.Clone(b.handlers)
		b.mu.Unlock()

		for _, h := range handlers {
			h.fn(next)
		}
		b.mu.Lock()
	}
	b.queue = nil
	b.draining = false
	b.mu.Unlock()
}

// Len reports the number of active subscribers.
func (b *Bus[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers)
}

func (b *Bus[T]) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, h := range b.handlers {
		if h.id == id {
			b.handlers = append(b.handlers[:i:i], b.handlers[i+1:]...)
			return
		}
	}
}
