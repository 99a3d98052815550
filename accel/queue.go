// Package accel serializes every model invocation onto one OS thread.
package accel

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"go.uber.org/zap"
)

var (
	ErrTimeout = errors.New("accel: invocation timed out")
	ErrClosed  = errors.New("accel: queue closed")
)

type job struct {
	fn     func() error
	result chan error
}

// Queue runs jobs one at a time on a single worker goroutine. A caller that
// gives up waiting does not cancel its job; later jobs queue behind it.
type Queue struct {
	jobs   chan job
	done   chan struct{}
	logger *zap.Logger

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

func New(logger *zap.Logger, depth int) *Queue {
	if depth < 1 {
		depth = 1
	}
	q := &Queue{
		jobs:   make(chan job, depth),
		done:   make(chan struct{}),
		logger: logger.Named("accel"),
	}
	go q.run()
	return q
}

func (q *Queue) run() {
	defer close(q.done)
	// delegates are bound to the thread that created them on some platforms
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	q.logger.Debug("worker started")
	for j := range q.jobs {
		j.result <- q.invoke(j.fn)
	}
	q.logger.Debug("worker stopped")
}

func (q *Queue) invoke(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("invocation panic recovered", zap.Any("panic", r))
			err = fmt.Errorf("accel: panic: %v", r)
		}
	}()
	return fn()
}

// Do runs fn on the worker and waits for it or for ctx.
func (q *Queue) Do(ctx context.Context, fn func() error) error {
	j := job{fn: fn, result: make(chan error, 1)}

	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return ErrClosed
	}
	select {
	case q.jobs <- j:
		q.mu.RUnlock()
	case <-ctx.Done():
		q.mu.RUnlock()
		return wrapCtx(ctx.Err())
	}

	select {
	case err := <-j.result:
		return err
	case <-ctx.Done():
		return wrapCtx(ctx.Err())
	}
}

func wrapCtx(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

// Close stops accepting jobs and waits for queued ones to finish.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		close(q.jobs)
		q.mu.Unlock()
	})
	<-q.done
}
