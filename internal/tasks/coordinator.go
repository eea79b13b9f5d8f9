package tasks

import (
	"context"
	"errors"
	"sync"

	"github.com/hisname/photuris/internal/logging"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("coordinator closed")

// Coordinator runs I/O-bound work on a bounded worker pool, keeping it off
// the interactive loop. Submitted work receives a context that is never
// cancelled by the submitter: abandoning interest in a result means "stop
// observing", not "abort in-flight work", so local-store mutations always run
// to completion.
type Coordinator struct {
	queue chan func(ctx context.Context)
	wg    sync.WaitGroup
	log   logging.Logger

	mu     sync.Mutex
	closed bool
}

// NewCoordinator starts workers goroutines draining the task queue.
func NewCoordinator(workers int, log logging.Logger) *Coordinator {
	if workers < 1 {
		workers = 1
	}
	c := &Coordinator{
		queue: make(chan func(ctx context.Context), workers*4),
		log:   log,
	}
	for i := 0; i < workers; i++ {
		c.wg.Add(1)
		go c.worker()
	}
	return c
}

func (c *Coordinator) worker() {
	defer c.wg.Done()
	for fn := range c.queue {
		c.run(fn)
	}
}

func (c *Coordinator) run(fn func(ctx context.Context)) {
	defer func() {
		if p := recover(); p != nil {
			c.log.Error(context.Background(), "task panicked", "panic", p)
		}
	}()
	fn(context.Background())
}

// Submit queues fn for execution on the pool. Blocks when the queue is full.
func (c *Coordinator) Submit(fn func(ctx context.Context)) error {
	// The lock is held across the send so Close cannot close the queue
	// between the check and the enqueue.
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.queue <- fn
	return nil
}

// Close stops accepting new work and waits for queued work to finish.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	close(c.queue)
	c.wg.Wait()
}
