package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunnerBoundsConcurrency(t *testing.T) {
	runner := NewRunner(2, nil)
	var (
		running atomic.Int32
		peak    atomic.Int32
	)
	fn := func(ctx context.Context, id string) error {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		running.Add(-1)
		return nil
	}
	for i := 0; i < 8; i++ {
		runner.Spawn("o", fn)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := runner.Drain(ctx); err != nil {
		t.Fatalf("Drain error: %v", err)
	}
	if peak.Load() > 2 {
		t.Fatalf("peak concurrency = %d, want <= 2", peak.Load())
	}
}

func TestTaskSignalsCompletion(t *testing.T) {
	runner := NewRunner(1, nil)
	release := make(chan struct{})
	want := errors.New("boom")
	task := runner.Spawn("o-1", func(ctx context.Context, id string) error {
		<-release
		return want
	})

	if task.Err() != nil {
		t.Fatalf("Err before completion = %v, want nil", task.Err())
	}
	short, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := task.Wait(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait error = %v, want DeadlineExceeded", err)
	}

	close(release)
	<-task.Done()
	if !errors.Is(task.Err(), want) || task.OrderID() != "o-1" {
		t.Fatalf("task = %v, %q", task.Err(), task.OrderID())
	}
}

func TestRunnerRecoversPanics(t *testing.T) {
	runner := NewRunner(1, nil)
	task := runner.Spawn("o-1", func(ctx context.Context, id string) error {
		panic("unexpected")
	})
	if err := task.Wait(context.Background()); err == nil {
		t.Fatalf("Wait error = nil, want panic error")
	}
}
