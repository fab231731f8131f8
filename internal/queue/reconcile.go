package queue

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"

	"studio/internal/infra"
	"studio/internal/orders"
)

// Requeuer puts order ids back on the queue.
type Requeuer interface {
	Requeue(ctx context.Context, orderIDs ...string) error
}

// Reconciler re-queues orders that stayed pending past a grace period, for
// example because a push was lost. Only the holder of a Redis lock runs a
// pass, so several workers may run Reconcilers at once.
type Reconciler struct {
	store    orders.Store
	queue    Requeuer
	locker   *redislock.Client
	lockKey  string
	interval time.Duration
	grace    time.Duration
	batch    int
	now      func() time.Time
	logger   *infra.Logger

	// requeued remembers when this process last pushed each id.
	requeued map[string]time.Time
}

// ReconcilerOptions configures a Reconciler.
type ReconcilerOptions struct {
	Store    orders.Store
	Queue    Requeuer
	Locker   *redislock.Client
	Interval time.Duration
	Grace    time.Duration
	Logger   *infra.Logger
}

func NewReconciler(opts ReconcilerOptions) *Reconciler {
	interval := opts.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	grace := opts.Grace
	if grace <= 0 {
		grace = time.Minute
	}
	return &Reconciler{
		store:    opts.Store,
		queue:    opts.Queue,
		locker:   opts.Locker,
		lockKey:  "lock:orders:reconcile",
		interval: interval,
		grace:    grace,
		batch:    200,
		now:      time.Now,
		logger:   infra.OrDiscard(opts.Logger),
		requeued: make(map[string]time.Time),
	}
}

// Run ticks until ctx ends.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.lead(ctx)
		}
	}
}

func (r *Reconciler) lead(ctx context.Context) {
	if r.locker == nil {
		r.tick(ctx)
		return
	}
	lock, err := r.locker.Obtain(ctx, r.lockKey, r.interval, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return
	}
	if err != nil {
		r.logger.Warn().Err(err).Msg("reconcile: lock error")
		return
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			r.logger.Warn().Err(err).Msg("reconcile: release lock")
		}
	}()
	r.tick(ctx)
}

// tick runs one pass and reports how many orders were re-queued. An id
// pushed less than grace ago is skipped: its copy is still waiting for a
// worker.
func (r *Reconciler) tick(ctx context.Context) int {
	now := r.now()
	cutoff := now.Add(-r.grace)
	for id, at := range r.requeued {
		if !at.After(cutoff) {
			delete(r.requeued, id)
		}
	}

	stale, err := r.store.StalePending(ctx, cutoff, r.batch)
	if err != nil {
		r.logger.Error().Err(err).Msg("reconcile: list stale pending orders")
		return 0
	}
	ids := make([]string, 0, len(stale))
	for _, id := range stale {
		if _, recent := r.requeued[id]; !recent {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return 0
	}
	if err := r.queue.Requeue(ctx, ids...); err != nil {
		r.logger.Error().Err(err).Int("count", len(ids)).Msg("reconcile: requeue")
		return 0
	}
	for _, id := range ids {
		r.requeued[id] = now
	}
	r.logger.Info().Int("count", len(ids)).Int("skipped", len(stale)-len(ids)).Msg("reconcile: requeued stale pending orders")
	return len(ids)
}
