// Package tasks carries the concurrency contract shared by the
// reconciliation and migration layers: a bounded worker pool for I/O-bound
// work, an observable single-slot value for delivering results, and a loading
// flag whose final false is the authoritative "done" signal.
package tasks

import "sync"

// Value is an observable single slot. Publishing replaces whatever the
// observer has not consumed yet: latest value wins, history is not queued.
type Value[T any] struct {
	mu  sync.Mutex
	set bool
	v   T
	ch  chan T
}

func NewValue[T any]() *Value[T] {
	return &Value[T]{ch: make(chan T, 1)}
}

// Publish stores v as the current value and makes it available on Updates,
// displacing any undelivered previous value.
func (s *Value[T]) Publish(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v = v
	s.set = true
	// Drop the stale queued value, if any, then queue the new one.
	select {
	case <-s.ch:
	default:
	}
	s.ch <- v
}

// Get returns the current value and whether one was ever published.
func (s *Value[T]) Get() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v, s.set
}

// Updates delivers published values. A receiver that stops listening simply
// misses intermediate values; it never blocks a publisher.
func (s *Value[T]) Updates() <-chan T {
	return s.ch
}
