// Package worker provides a bounded pool for blocking filesystem and
// process work, keeping request handlers from stalling each other when the
// workspace sits on slow storage.
package worker

import (
	"context"
	"errors"
	"sync"
)

var ErrPoolClosed = errors.New("worker pool is closed")

type task struct {
	fn   func() error
	done chan error
}

// Pool runs submitted tasks on a fixed number of goroutines.
type Pool struct {
	tasks chan task
	quit  chan struct{}

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New starts a pool of size workers. Size must be at least one.
func New(size int) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{
		tasks: make(chan task),
		quit:  make(chan struct{}),
	}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case t := <-p.tasks:
			t.done <- t.fn()
		case <-p.quit:
			return
		}
	}
}

// Submit runs fn on a pool worker and blocks until it finishes. Context
// cancellation abandons the wait; the task itself may still run to
// completion on its worker.
func (p *Pool) Submit(ctx context.Context, fn func() error) error {
	t := task{fn: fn, done: make(chan error, 1)}

	select {
	case p.tasks <- t:
	case <-p.quit:
		return ErrPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting tasks and waits for the workers to exit.
func (p *Pool) Close() {
	p.closeOnce.Do(func() { close(p.quit) })
	p.wg.Wait()
}
