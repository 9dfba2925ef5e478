package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/aydin-o/go-teamdesk/internal/domain"
	"github.com/aydin-o/go-teamdesk/internal/utils"
)

// EventDeliverer defines the delivery operation the pool needs. The dispatcher
// service satisfies it.
type EventDeliverer interface {
	DeliverBatch(ctx context.Context, events []*domain.Event) error
}

// Pool manages a pool of workers that deliver event batches concurrently.
// One job holds one aggregate's events, so per-aggregate order is preserved
// no matter how many workers run.
type Pool struct {
	jobQueue      *JobQueue
	deliverer     EventDeliverer
	workers       []*Worker
	wg            sync.WaitGroup
	stopped       chan struct{}
	jobsProcessed int64
	mu            sync.RWMutex
}

// Worker represents a single worker in the pool.
type Worker struct {
	id        int
	jobQueue  *JobQueue
	deliverer EventDeliverer
	stopped   chan struct{}
}

// Stats represents worker pool statistics.
type Stats struct {
	ActiveWorkers int   `json:"active_workers"`
	JobsProcessed int64 `json:"jobs_processed"`
	QueueSize     int   `json:"queue_size"`
}

// NewPool creates a new worker pool.
func NewPool(jobQueue *JobQueue, deliverer EventDeliverer) *Pool {
	return &Pool{
		jobQueue:  jobQueue,
		deliverer: deliverer,
		stopped:   make(chan struct{}),
	}
}

// Start starts the specified number of workers.
func (wp *Pool) Start(numWorkers int) {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	utils.Info("starting dispatch worker pool",
		slog.Int("num_workers", numWorkers),
	)

	for i := 0; i < numWorkers; i++ {
		worker := &Worker{
			id:        i + 1,
			jobQueue:  wp.jobQueue,
			deliverer: wp.deliverer,
			stopped:   make(chan struct{}),
		}

		wp.workers = append(wp.workers, worker)

		wp.wg.Add(1)
		go worker.start(&wp.wg, &wp.jobsProcessed)
	}
}

// Stop gracefully stops all workers.
func (wp *Pool) Stop(ctx context.Context) error {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	utils.Info("stopping dispatch worker pool",
		slog.Int("active_workers", len(wp.workers)),
	)

	// Close quit channel to signal workers to stop
	close(wp.jobQueue.QuitChan)
	for _, worker := range wp.workers {
		close(worker.stopped)
	}

	// Wait for all workers to finish or context timeout
	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		utils.Info("dispatch worker pool stopped gracefully")
	case <-ctx.Done():
		utils.Warn("dispatch worker pool shutdown timed out")
		return ctx.Err()
	}

	close(wp.stopped)
	return nil
}

// SubmitJob submits a job to the worker pool.
func (wp *Pool) SubmitJob(job *DispatchJob) {
	select {
	case wp.jobQueue.SubmitChan <- job:
		utils.Debug("dispatch job submitted",
			slog.String("job_id", job.ID.String()),
			slog.String("aggregate_id", job.AggregateID.String()),
		)
	default:
		// Queue is full; the batch stays unpublished and the next sweep retries
		result := job.ToResult(nil, fmt.Errorf("job queue is full"))
		select {
		case job.ResponseChan <- result:
		default:
			utils.Warn("could not send job result - response channel full",
				slog.String("job_id", job.ID.String()),
			)
		}
	}
}

// GetStats returns current worker pool statistics.
func (wp *Pool) GetStats() Stats {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	return Stats{
		ActiveWorkers: len(wp.workers),
		JobsProcessed: atomic.LoadInt64(&wp.jobsProcessed),
		QueueSize:     len(wp.jobQueue.SubmitChan),
	}
}

// IsStopped returns whether the worker pool has been stopped.
func (wp *Pool) IsStopped() bool {
	select {
	case <-wp.stopped:
		return true
	default:
		return false
	}
}

// start begins processing jobs for a worker.
func (w *Worker) start(wg *sync.WaitGroup, jobsProcessed *int64) {
	defer wg.Done()

	for {
		select {
		case job := <-w.jobQueue.SubmitChan:
			w.processJob(job, jobsProcessed)

		case <-w.stopped:
			utils.Debug("dispatch worker stopped",
				slog.Int("worker_id", w.id),
			)
			return
		}
	}
}

// processJob delivers one aggregate's batch and reports the result.
func (w *Worker) processJob(job *DispatchJob, jobsProcessed *int64) {
	startTime := time.Now()

	err := w.deliverer.DeliverBatch(job.Ctx, job.Events)

	var result *DispatchJobResult
	if err != nil {
		utils.Error("batch delivery failed",
			slog.String("job_id", job.ID.String()),
			slog.String("aggregate_id", job.AggregateID.String()),
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(startTime)),
		)
		result = job.ToResult(nil, err)
	} else {
		published := make([]uuid.UUID, 0, len(job.Events))
		for _, event := range job.Events {
			published = append(published, event.ID)
		}
		result = job.ToResult(published, nil)
	}

	// Send result back via response channel
	select {
	case job.ResponseChan <- result:
		atomic.AddInt64(jobsProcessed, 1)
	case <-time.After(5 * time.Second):
		utils.Warn("timeout sending job result",
			slog.String("job_id", job.ID.String()),
		)
	}
}
