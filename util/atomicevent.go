package util

import (
	"sync"
)

// AtomicEvent keeps only the most recent value of a stream of updates
// and signals its arrival on a channel with capacity one. A slow reader
// skips intermediate values but never misses the latest one.
type AtomicEvent[T any] struct {
	mu     sync.Mutex
	value  T
	seq    uint64
	notify chan struct{}
}

func NewAtomicEvent[T any]() *AtomicEvent[T] {
	return &AtomicEvent[T]{
		notify: make(chan struct{}, 1),
	}
}

// Send stores event as the latest value. It never blocks.
func (ae *AtomicEvent[T]) Send(event T) {
	ae.mu.Lock()
	defer ae.mu.Unlock()

	ae.value = event
	ae.seq++

	select {
	case ae.notify <- struct{}{}:
	default:
		// a notification is already pending
	}
}

// Channel returns the notification channel for use in select statements.
func (ae *AtomicEvent[T]) Channel() <-chan struct{} {
	return ae.notify
}

func (ae *AtomicEvent[T]) Value() T {
	ae.mu.Lock()
	defer ae.mu.Unlock()
	return ae.value
}

// Sent reports how many values have been sent so far.
func (ae *AtomicEvent[T]) Sent() uint64 {
	ae.mu.Lock()
	defer ae.mu.Unlock()
	return ae.seq
}

// HasPending checks without consuming whether a notification waits.
func (ae *AtomicEvent[T]) HasPending() bool {
	return len(ae.notify) > 0
}
