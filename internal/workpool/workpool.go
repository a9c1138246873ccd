// Package workpool runs blocking calls on a fixed set of worker goroutines
// so callers on the polling path can wait on them with a context.
package workpool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("workpool closed")

// Pool is a fixed-size worker pool.
type Pool struct {
	jobs   chan func()
	stop   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
	logger *zap.Logger
}

// New starts a pool with the given number of workers (at least one).
func New(workers int, logger *zap.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	p := &Pool{
		jobs:   make(chan func()),
		stop:   make(chan struct{}),
		logger: logger,
	}
	for w := 0; w < workers; w++ {
		p.wg.Add(1)
		go p.worker(w)
	}
	logger.Debug("workpool started", zap.Int("workers", workers))
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stop:
			return
		case job := <-p.jobs:
			job()
		}
	}
}

// Close stops the workers and waits for running jobs to finish.
func (p *Pool) Close() {
	p.once.Do(func() {
		close(p.stop)
	})
	p.wg.Wait()
}

// Future is the pending result of a submitted call.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Wait blocks until the call finishes or ctx is done. A call abandoned
// through ctx keeps running on its worker.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Submit queues fn on the pool. It blocks until a worker accepts the job,
// ctx is done, or the pool is closed; in the latter two cases the returned
// future resolves immediately with the error.
func Submit[T any](ctx context.Context, p *Pool, fn func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	job := func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("workpool job panicked", zap.Any("panic", r))
				f.err = fmt.Errorf("workpool job panicked: %v", r)
			}
		}()
		f.value, f.err = fn()
	}

	select {
	case p.jobs <- job:
	case <-ctx.Done():
		f.err = ctx.Err()
		close(f.done)
	case <-p.stop:
		f.err = ErrClosed
		close(f.done)
	}
	return f
}

// Do submits fn and waits for its result.
func Do[T any](ctx context.Context, p *Pool, fn func() (T, error)) (T, error) {
	return Submit(ctx, p, fn).Wait(ctx)
}

// DoOrRelease is Do for calls that acquire a resource. When ctx ends before
// the result is taken, a value that arrives later is passed to release.
func DoOrRelease[T any](ctx context.Context, p *Pool, fn func() (T, error), release func(T)) (T, error) {
	f := Submit(ctx, p, fn)
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
	}
	go func() {
		<-f.done
		if f.err == nil {
			release(f.value)
		}
	}()
	var zero T
	return zero, ctx.Err()
}
