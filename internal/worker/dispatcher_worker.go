package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aydin-o/go-teamdesk/internal/domain"
	"github.com/aydin-o/go-teamdesk/internal/repository"
	"github.com/aydin-o/go-teamdesk/internal/service"
	"github.com/aydin-o/go-teamdesk/internal/utils"
)

// dispatchLockKey coordinates sweeps between instances through Redis.
const (
	dispatchLockKey = "teamdesk:dispatch_lock"
	dispatchLockTTL = 30 * time.Second
)

// LockClient is the subset of the Redis client the dispatch lock needs.
type LockClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	Get(ctx context.Context, key string, dest interface{}) error
	Del(ctx context.Context, keys ...string) error
}

// DispatcherWorker periodically sweeps the outbox and relays unpublished
// events to subscribers through the worker pool. Only one instance sweeps at
// a time; the others skip the cycle when the Redis lock is held.
type DispatcherWorker struct {
	dispatcherSvc *service.DispatcherService
	pool          *Pool
	locks         LockClient
	instanceID    string
	ticker        *time.Ticker
	stopChan      chan struct{}
	running       bool
}

// NewDispatcherWorker creates a new dispatcher worker. pool may be nil, in
// which case batches are delivered serially. redisClient may be nil, in which
// case sweeps run unlocked.
func NewDispatcherWorker(dispatcherSvc *service.DispatcherService, pool *Pool, redisClient *repository.RedisClient) *DispatcherWorker {
	w := &DispatcherWorker{
		dispatcherSvc: dispatcherSvc,
		pool:          pool,
		instanceID:    uuid.New().String(),
		stopChan:      make(chan struct{}),
		running:       false,
	}
	if redisClient != nil {
		w.locks = redisClient
	}
	return w
}

// Start begins the dispatch processing loop.
func (w *DispatcherWorker) Start(interval time.Duration) {
	if w.running {
		utils.Warn("dispatcher worker is already running")
		return
	}

	w.running = true
	w.ticker = time.NewTicker(interval)

	utils.Info("starting event dispatcher worker", slog.String("interval", interval.String()))

	go w.processLoop()
}

// Stop gracefully stops the dispatcher worker.
func (w *DispatcherWorker) Stop(ctx context.Context) error {
	if !w.running {
		return nil
	}

	utils.Info("stopping event dispatcher worker")

	// Signal stop
	close(w.stopChan)

	// Stop ticker
	if w.ticker != nil {
		w.ticker.Stop()
	}

	// Wait for graceful shutdown or context timeout
	done := make(chan struct{})
	go func() {
		for w.running {
			time.Sleep(100 * time.Millisecond)
		}
		close(done)
	}()

	select {
	case <-done:
		utils.Info("event dispatcher worker stopped gracefully")
		return nil
	case <-ctx.Done():
		utils.Warn("event dispatcher worker stop timed out")
		return ctx.Err()
	}
}

// processLoop runs the main sweep loop.
func (w *DispatcherWorker) processLoop() {
	defer func() {
		w.running = false
	}()

	for {
		select {
		case <-w.ticker.C:
			w.sweepWithLock()
		case <-w.stopChan:
			return
		}
	}
}

// sweepWithLock runs one sweep if this instance acquires the dispatch lock.
// A sweep that ran without the lock (no Redis, or Redis unreachable) must not
// release it: the lock may belong to another instance.
func (w *DispatcherWorker) sweepWithLock() {
	ctx := context.Background()

	run, locked := w.tryAcquireLock(ctx)
	if !run {
		utils.Debug("another instance is dispatching, skipping this cycle")
		return
	}
	if locked {
		defer w.releaseLock(ctx)
	}

	w.sweep(ctx)
}

// sweep fetches unpublished events, fans aggregate batches out to the pool
// and marks delivered events published.
func (w *DispatcherWorker) sweep(ctx context.Context) {
	batches, err := w.dispatcherSvc.NextBatches(ctx)
	if err != nil {
		utils.Error("failed to fetch outbox batches", slog.String("error", err.Error()))
		return
	}
	if len(batches) == 0 {
		return
	}

	var published []uuid.UUID
	if w.pool != nil && !w.pool.IsStopped() {
		published = w.runThroughPool(ctx, batches)
	} else {
		published = w.runSerially(ctx, batches)
	}

	if err := w.dispatcherSvc.MarkDispatched(ctx, published); err != nil {
		utils.Error("failed to mark events published", slog.String("error", err.Error()))
		return
	}
	w.dispatcherSvc.RefreshBacklogGauge(ctx)

	utils.Info("dispatch sweep completed",
		slog.Int("batches", len(batches)),
		slog.Int("events_published", len(published)),
	)
}

// runThroughPool delivers batches concurrently, one job per aggregate.
func (w *DispatcherWorker) runThroughPool(ctx context.Context, batches [][]*domain.Event) []uuid.UUID {
	jobs := make([]*DispatchJob, 0, len(batches))
	for _, batch := range batches {
		job := NewDispatchJob(ctx, batch)
		jobs = append(jobs, job)
		w.pool.SubmitJob(job)
	}

	var published []uuid.UUID
	for _, job := range jobs {
		select {
		case result := <-job.ResponseChan:
			if result.Success {
				published = append(published, result.Published...)
			}
		case <-time.After(dispatchLockTTL):
			utils.Warn("dispatch job timed out",
				slog.String("job_id", job.ID.String()),
				slog.String("aggregate_id", job.AggregateID.String()),
			)
		}
	}
	return published
}

// runSerially delivers batches one after another without the pool.
func (w *DispatcherWorker) runSerially(ctx context.Context, batches [][]*domain.Event) []uuid.UUID {
	var published []uuid.UUID
	for _, batch := range batches {
		if err := w.dispatcherSvc.DeliverBatch(ctx, batch); err != nil {
			utils.Error("batch delivery failed",
				slog.String("aggregate_id", batch[0].AggregateID.String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		for _, event := range batch {
			published = append(published, event.ID)
		}
	}
	return published
}

// tryAcquireLock attempts to acquire the dispatch lock in Redis. run reports
// whether this instance should sweep; locked reports whether it actually
// holds the lock and must release it afterwards.
func (w *DispatcherWorker) tryAcquireLock(ctx context.Context) (run, locked bool) {
	if w.locks == nil {
		return true, false
	}

	acquired, err := w.locks.SetNX(ctx, dispatchLockKey, w.instanceID, dispatchLockTTL)
	if err != nil {
		utils.Warn("failed to acquire dispatch lock, proceeding without it", slog.String("error", err.Error()))
		return true, false
	}
	return acquired, acquired
}

// releaseLock releases the dispatch lock if this instance still holds it. A
// sweep that outlived the TTL may find the lock reacquired by another
// instance; deleting it then would break that instance's exclusivity.
func (w *DispatcherWorker) releaseLock(ctx context.Context) {
	if w.locks == nil {
		return
	}

	var holder string
	if err := w.locks.Get(ctx, dispatchLockKey, &holder); err != nil {
		return
	}
	if holder != w.instanceID {
		utils.Warn("dispatch lock no longer held by this instance, leaving it",
			slog.String("holder", holder),
		)
		return
	}

	if err := w.locks.Del(ctx, dispatchLockKey); err != nil {
		utils.Warn("failed to release dispatch lock", slog.String("error", err.Error()))
	}
}
