package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"studio/internal/bootstrap"
	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/pipeline"
	"studio/internal/queue"
)

const popTimeout = 5 * time.Second

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.ExecutionMode != infra.ExecutionQueue {
		logger.Fatal().Str("mode", cfg.ExecutionMode).Msg("worker: EXECUTION_MODE must be queue")
	}

	stack, err := bootstrap.Build(ctx, cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to build pipeline")
	}
	defer stack.Close()

	rdb, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: redis connection failed")
	}
	defer rdb.Close()

	q := queue.NewRedisQueue(rdb, queue.DefaultKey)
	manager := stack.Manager(q)

	reconciler := queue.NewReconciler(queue.ReconcilerOptions{
		Store:    stack.Store,
		Queue:    q,
		Locker:   infra.NewLocker(rdb),
		Interval: cfg.WorkerReconcileInterval,
		Grace:    cfg.WorkerReconcileGrace,
		Logger:   &logger,
	})
	go reconciler.Run(ctx)

	runner := pipeline.NewRunner(cfg.ExecutionConcurrency, &logger)
	// A slot is held from pop until the execution ends, so ids stay in Redis
	// while every runner slot is busy.
	slots := make(chan struct{}, cfg.ExecutionConcurrency)
	logger.Info().Int("concurrency", cfg.ExecutionConcurrency).Msg("worker: started")

	for ctx.Err() == nil {
		select {
		case slots <- struct{}{}:
		case <-ctx.Done():
			continue
		}
		orderID, err := q.Pop(ctx, popTimeout)
		if err != nil || orderID == "" {
			<-slots
			if err != nil && ctx.Err() == nil {
				logger.Error().Err(err).Msg("worker: pop failed")
				sleep(ctx, time.Second)
			}
			continue
		}
		task := runner.Spawn(orderID, manager.Execute)
		go func() {
			defer func() { <-slots }()
			report(task, logger)
		}()
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := runner.Drain(drainCtx); err != nil {
		logger.Warn().Err(err).Msg("worker: in-flight orders still running at exit")
	}
	logger.Info().Msg("worker: stopped")
}

// report logs how an execution ended. A lost claim means another worker
// already took the order.
func report(task *pipeline.Task, logger infra.Logger) {
	<-task.Done()
	err := task.Err()
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrInvalidTransition):
		logger.Debug().Str("order_id", task.OrderID()).Msg("worker: order already claimed")
	case errors.Is(err, domain.ErrNotFound):
		logger.Warn().Str("order_id", task.OrderID()).Msg("worker: queued order does not exist")
	default:
		logger.Info().Err(err).Str("order_id", task.OrderID()).Msg("worker: order finished with failure")
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
