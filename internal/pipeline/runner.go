package pipeline

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"studio/internal/infra"
)

// Task is one background order execution. Done closes when it finishes.
type Task struct {
	orderID string
	done    chan struct{}
	err     error
}

func newTask(orderID string) *Task {
	return &Task{orderID: orderID, done: make(chan struct{})}
}

func (t *Task) OrderID() string { return t.orderID }

// Done is closed once the task has finished.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the task finishes or ctx ends.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the task's result. It is nil until Done is closed.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

func (t *Task) finish(err error) {
	t.err = err
	close(t.done)
}

// Runner executes tasks in the background with at most N running at once.
// Tasks run on a context detached from the spawner's, so a finished HTTP
// request never cancels the order it created.
type Runner struct {
	sem    *semaphore.Weighted
	base   context.Context
	wg     sync.WaitGroup
	logger *infra.Logger
}

func NewRunner(concurrency int, logger *infra.Logger) *Runner {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Runner{
		sem:    semaphore.NewWeighted(int64(concurrency)),
		base:   context.Background(),
		logger: infra.OrDiscard(logger),
	}
}

// Spawn schedules fn and returns immediately.
func (r *Runner) Spawn(orderID string, fn func(ctx context.Context, orderID string) error) *Task {
	task := newTask(orderID)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		task.finish(r.run(orderID, fn))
	}()
	return task
}

func (r *Runner) run(orderID string, fn func(ctx context.Context, orderID string) error) (err error) {
	if err := r.sem.Acquire(r.base, 1); err != nil {
		return err
	}
	defer r.sem.Release(1)
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().Str("order_id", orderID).Interface("panic", rec).Msg("pipeline: task panicked")
			err = fmt.Errorf("pipeline: task panicked: %v", rec)
		}
	}()
	return fn(r.base, orderID)
}

// Drain waits for every spawned task to finish or ctx to end.
func (r *Runner) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
