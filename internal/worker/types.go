// Package worker provides background workers for event dispatch and
// delegation expiry.
package worker

import (
	"context"

	"github.com/google/uuid"

	"github.com/aydin-o/go-teamdesk/internal/domain"
)

// DispatchJob carries one aggregate's batch of unpublished events through the
// worker pool. Events within a job are in sequence order; jobs for different
// aggregates run concurrently.
type DispatchJob struct {
	ID           uuid.UUID               `json:"id"`
	AggregateID  uuid.UUID               `json:"aggregate_id"`
	Events       []*domain.Event         `json:"events"`
	ResponseChan chan *DispatchJobResult `json:"-"` // Channel for job results
	Ctx          context.Context         `json:"-"` // Context for cancellation
}

// DispatchJobResult represents the outcome of delivering one batch.
type DispatchJobResult struct {
	JobID     uuid.UUID   `json:"job_id"`
	Published []uuid.UUID `json:"published,omitempty"`
	Error     error       `json:"error,omitempty"`
	Success   bool        `json:"success"`
}

// JobQueue represents the channels for job submission and control.
type JobQueue struct {
	SubmitChan chan *DispatchJob // Channel for submitting jobs
	QuitChan   chan struct{}     // Channel for graceful shutdown
}

// NewJobQueue creates a new job queue with the specified buffer size.
func NewJobQueue(bufferSize int) *JobQueue {
	return &JobQueue{
		SubmitChan: make(chan *DispatchJob, bufferSize),
		QuitChan:   make(chan struct{}),
	}
}

// NewDispatchJob creates a new dispatch job with a unique ID and response channel.
func NewDispatchJob(ctx context.Context, events []*domain.Event) *DispatchJob {
	job := &DispatchJob{
		ID:           uuid.New(),
		Events:       events,
		ResponseChan: make(chan *DispatchJobResult, 1),
		Ctx:          ctx,
	}
	if len(events) > 0 {
		job.AggregateID = events[0].AggregateID
	}
	return job
}

// ToResult creates a job result from the current job state.
func (j *DispatchJob) ToResult(published []uuid.UUID, err error) *DispatchJobResult {
	return &DispatchJobResult{
		JobID:     j.ID,
		Published: published,
		Error:     err,
		Success:   err == nil,
	}
}
