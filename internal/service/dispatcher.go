package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/aydin-o/go-teamdesk/internal/domain"
	"github.com/aydin-o/go-teamdesk/internal/repository"
	"github.com/aydin-o/go-teamdesk/internal/utils"
)

// Subscriber consumes a batch of published events for one aggregate, in
// sequence order. Delivery is at least once: a subscriber error leaves the
// batch unpublished and it is retried on the next sweep.
type Subscriber func(ctx context.Context, events []*domain.Event) error

// namedSubscriber pairs a subscriber with a name for logging.
type namedSubscriber struct {
	name string
	fn   Subscriber
}

// DispatcherService relays committed outbox events to subscribers. Events of
// one aggregate are always delivered in sequence order; different aggregates
// may be delivered concurrently by the dispatch workers.
type DispatcherService struct {
	repos     *repository.Repositories
	metrics   *utils.MetricsCollector
	batchSize int

	mu          sync.RWMutex
	subscribers []namedSubscriber
}

// defaultDispatchBatch limits how many outbox rows one sweep fetches.
const defaultDispatchBatch = 200

// NewDispatcherService creates a new dispatcher service.
func NewDispatcherService(repos *repository.Repositories, metrics *utils.MetricsCollector) *DispatcherService {
	return &DispatcherService{
		repos:     repos,
		metrics:   metrics,
		batchSize: defaultDispatchBatch,
	}
}

// Subscribe registers a subscriber for all published events. Subscribers run
// in registration order for every batch.
func (s *DispatcherService) Subscribe(name string, fn Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, namedSubscriber{name: name, fn: fn})
}

// NextBatches fetches unpublished events and groups them per aggregate,
// preserving sequence order within each group and across the groups of one
// aggregate.
func (s *DispatcherService) NextBatches(ctx context.Context) ([][]*domain.Event, error) {
	events, err := s.repos.Outbox.FetchUnpublished(ctx, s.batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unpublished events: %w", err)
	}
	if len(events) == 0 {
		return nil, nil
	}

	groups := make(map[uuid.UUID][]*domain.Event)
	var order []uuid.UUID
	for _, event := range events {
		if _, ok := groups[event.AggregateID]; !ok {
			order = append(order, event.AggregateID)
		}
		groups[event.AggregateID] = append(groups[event.AggregateID], event)
	}

	batches := make([][]*domain.Event, 0, len(order))
	for _, id := range order {
		batches = append(batches, groups[id])
	}
	return batches, nil
}

// DeliverBatch runs every subscriber over one aggregate's batch. The first
// subscriber error aborts the batch; it stays unpublished.
func (s *DispatcherService) DeliverBatch(ctx context.Context, events []*domain.Event) error {
	s.mu.RLock()
	subscribers := s.subscribers
	s.mu.RUnlock()

	for _, sub := range subscribers {
		if err := sub.fn(ctx, events); err != nil {
			return fmt.Errorf("subscriber %s failed: %w", sub.name, err)
		}
	}
	return nil
}

// MarkDispatched stamps delivered events as published and updates metrics.
func (s *DispatcherService) MarkDispatched(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.repos.Outbox.MarkPublished(ctx, ids); err != nil {
		return fmt.Errorf("failed to mark events published: %w", err)
	}
	if s.metrics != nil {
		s.metrics.AddEventsDispatched(len(ids))
	}
	return nil
}

// RefreshBacklogGauge updates the outbox backlog metric.
func (s *DispatcherService) RefreshBacklogGauge(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	backlog, err := s.repos.Outbox.Backlog(ctx)
	if err != nil {
		utils.Error("failed to read outbox backlog", slog.String("error", err.Error()))
		return
	}
	s.metrics.SetOutboxBacklog(backlog)
}

// Dispatch runs one serial sweep: fetch, deliver batch by batch, mark
// published. It returns the number of events dispatched. The dispatch workers
// use the batch methods directly for concurrent delivery; this entry point
// serves single-instance deployments and tests.
func (s *DispatcherService) Dispatch(ctx context.Context) (int, error) {
	tracer := otel.Tracer("go-teamdesk")
	ctx, span := tracer.Start(ctx, "outbox.dispatch", oteltrace.WithSpanKind(oteltrace.SpanKindInternal))
	defer span.End()

	start := time.Now()

	batches, err := s.NextBatches(ctx)
	if err != nil {
		return 0, err
	}

	dispatched := 0
	for _, batch := range batches {
		if err := s.DeliverBatch(ctx, batch); err != nil {
			utils.Error("batch delivery failed",
				slog.String("aggregate_id", batch[0].AggregateID.String()),
				slog.String("error", err.Error()),
			)
			continue
		}

		ids := eventIDs(batch)
		if err := s.MarkDispatched(ctx, ids); err != nil {
			return dispatched, err
		}
		dispatched += len(ids)
	}

	span.SetAttributes(
		attribute.Int("outbox.batches", len(batches)),
		attribute.Int("outbox.dispatched", dispatched),
	)

	if s.metrics != nil && dispatched > 0 {
		s.metrics.ObserveDispatchDuration(time.Since(start))
	}
	s.RefreshBacklogGauge(ctx)

	return dispatched, nil
}

func eventIDs(events []*domain.Event) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	return ids
}
