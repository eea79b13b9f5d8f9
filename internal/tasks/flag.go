package tasks

import "sync"

// Flag is a loading indicator shared by overlapping operations. Observers may
// see an interleaved false→true→false sequence while work overlaps; only the
// final false (all operations and their continuations finished) is
// authoritative, which the counter guarantees.
type Flag struct {
	mu      sync.Mutex
	pending int
	value   *Value[bool]
}

func NewFlag() *Flag {
	return &Flag{value: NewValue[bool]()}
}

// Begin marks an operation as started. Call before any I/O.
func (f *Flag) Begin() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending++
	f.value.Publish(true)
}

// End marks an operation and its continuations as finished. The flag goes
// false only when no operation remains pending.
func (f *Flag) End() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending > 0 {
		f.pending--
	}
	if f.pending == 0 {
		f.value.Publish(false)
	}
}

// Loading reports whether any operation is pending.
func (f *Flag) Loading() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending > 0
}

// Updates exposes the observable flag transitions.
func (f *Flag) Updates() <-chan bool {
	return f.value.Updates()
}
