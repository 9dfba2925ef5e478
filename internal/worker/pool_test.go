package worker

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aydin-o/go-teamdesk/internal/domain"
)

// recordingDeliverer records delivered batches and can fail selected aggregates.
type recordingDeliverer struct {
	mu      sync.Mutex
	batches map[uuid.UUID][]int64
	failFor map[uuid.UUID]bool
}

func newRecordingDeliverer() *recordingDeliverer {
	return &recordingDeliverer{
		batches: make(map[uuid.UUID][]int64),
		failFor: make(map[uuid.UUID]bool),
	}
}

func (d *recordingDeliverer) DeliverBatch(_ context.Context, events []*domain.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	agg := events[0].AggregateID
	if d.failFor[agg] {
		return fmt.Errorf("delivery refused")
	}
	for _, e := range events {
		d.batches[agg] = append(d.batches[agg], e.Seq)
	}
	return nil
}

func poolEvent(t *testing.T, seq int64, aggregateID uuid.UUID) *domain.Event {
	t.Helper()
	event, err := domain.NewEvent(domain.AggregateUser, aggregateID, domain.EventUserUpdated, map[string]any{}, nil)
	require.NoError(t, err)
	event.Seq = seq
	return event
}

func TestPoolDeliversBatchesAndReportsResults(t *testing.T) {
	deliverer := newRecordingDeliverer()
	queue := NewJobQueue(10)
	pool := NewPool(queue, deliverer)
	pool.Start(3)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, pool.Stop(ctx))
	}()

	aggA := uuid.New()
	aggB := uuid.New()

	jobA := NewDispatchJob(context.Background(), []*domain.Event{
		poolEvent(t, 1, aggA),
		poolEvent(t, 3, aggA),
	})
	jobB := NewDispatchJob(context.Background(), []*domain.Event{
		poolEvent(t, 2, aggB),
	})

	pool.SubmitJob(jobA)
	pool.SubmitJob(jobB)

	resultA := <-jobA.ResponseChan
	resultB := <-jobB.ResponseChan

	assert.True(t, resultA.Success)
	assert.Len(t, resultA.Published, 2)
	assert.True(t, resultB.Success)
	assert.Len(t, resultB.Published, 1)

	deliverer.mu.Lock()
	defer deliverer.mu.Unlock()
	assert.Equal(t, []int64{1, 3}, deliverer.batches[aggA], "batch order must survive concurrent delivery")
	assert.Equal(t, []int64{2}, deliverer.batches[aggB])
}

func TestPoolFailedDeliveryReportsError(t *testing.T) {
	deliverer := newRecordingDeliverer()
	agg := uuid.New()
	deliverer.failFor[agg] = true

	queue := NewJobQueue(1)
	pool := NewPool(queue, deliverer)
	pool.Start(1)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, pool.Stop(ctx))
	}()

	job := NewDispatchJob(context.Background(), []*domain.Event{poolEvent(t, 1, agg)})
	pool.SubmitJob(job)

	result := <-job.ResponseChan
	assert.False(t, result.Success)
	assert.Error(t, result.Error)
	assert.Empty(t, result.Published)
}

func TestPoolRejectsWhenQueueFull(t *testing.T) {
	// No workers started: the queue fills up immediately.
	queue := NewJobQueue(1)
	pool := NewPool(queue, newRecordingDeliverer())

	first := NewDispatchJob(context.Background(), []*domain.Event{poolEvent(t, 1, uuid.New())})
	second := NewDispatchJob(context.Background(), []*domain.Event{poolEvent(t, 2, uuid.New())})

	pool.SubmitJob(first)
	pool.SubmitJob(second)

	result := <-second.ResponseChan
	assert.False(t, result.Success)
	assert.Error(t, result.Error)
}
