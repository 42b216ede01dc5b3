package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Tasks runs request side effects after the response is written and lets
// shutdown wait for them
type Tasks struct {
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
	log     *zap.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewTasks bounds every task by timeout
func NewTasks(timeout time.Duration, log *zap.Logger) *Tasks {
	ctx, cancel := context.WithCancel(context.Background())
	return &Tasks{
		ctx:     ctx,
		cancel:  cancel,
		timeout: timeout,
		log:     log.With(zap.String("worker", "tasks")),
	}
}

// Go starts fn unless Shutdown was already called
func (t *Tasks) Go(name string, fn func(ctx context.Context)) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		t.log.Warn("Task dropped during shutdown", zap.String("task", name))
		return
	}
	t.wg.Add(1)
	t.mu.Unlock()

	go func() {
		defer t.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				t.log.Error("Task panicked", zap.String("task", name), zap.Any("panic", rec))
			}
		}()

		ctx, cancel := context.WithTimeout(t.ctx, t.timeout)
		defer cancel()
		fn(ctx)
	}()
}

// Shutdown refuses new tasks and waits for running ones. When ctx ends
// first the remaining tasks are cancelled and ctx.Err is returned.
func (t *Tasks) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.cancel()
		return nil
	case <-ctx.Done():
		t.cancel()
		t.log.Warn("Shutdown left tasks running", zap.Error(ctx.Err()))
		return ctx.Err()
	}
}
