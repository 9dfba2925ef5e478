package uow

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/aydin-o/go-teamdesk/internal/domain"
	"github.com/aydin-o/go-teamdesk/internal/utils"
)

// ErrDone is returned when Commit or Rollback is called on a completed unit of work.
var ErrDone = errors.New("unit of work already completed")

// EventAppender persists events into the outbox within an open transaction.
type EventAppender interface {
	AppendTx(ctx context.Context, tx pgx.Tx, events []*domain.Event) error
}

// TxBeginner starts database transactions. *pgxpool.Pool satisfies it.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Manager creates units of work bound to a database, a handler bus and an outbox.
type Manager struct {
	db      TxBeginner
	bus     *Bus
	outbox  EventAppender
	metrics *utils.MetricsCollector
}

// SetMetricsCollector enables event publication counting.
func (m *Manager) SetMetricsCollector(metrics *utils.MetricsCollector) {
	m.metrics = metrics
}

// NewManager creates a unit of work manager.
func NewManager(db TxBeginner, bus *Bus, outbox EventAppender) *Manager {
	return &Manager{
		db:     db,
		bus:    bus,
		outbox: outbox,
	}
}

// Bus returns the handler registry used by units of work from this manager.
func (m *Manager) Bus() *Bus {
	return m.bus
}

// Begin opens a new unit of work with its own transaction and change tracker.
func (m *Manager) Begin(ctx context.Context) (*UnitOfWork, error) {
	tx, err := m.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &UnitOfWork{
		tx:      tx,
		bus:     m.bus,
		outbox:  m.outbox,
		metrics: m.metrics,
		tracker: domain.NewTracker(),
	}, nil
}

// RunInTx executes fn inside a unit of work and commits it. If fn returns an
// error the unit of work is rolled back and the error returned unchanged.
func (m *Manager) RunInTx(ctx context.Context, fn func(ctx context.Context, u *UnitOfWork) error) error {
	u, err := m.Begin(ctx)
	if err != nil {
		return err
	}

	if err := fn(ctx, u); err != nil {
		_ = u.Rollback(ctx)
		return err
	}

	return u.Commit(ctx)
}

// UnitOfWork scopes entity writes, change tracking and domain event
// publication to a single database transaction. It is single-use and not safe
// for concurrent use.
type UnitOfWork struct {
	tx      pgx.Tx
	bus     *Bus
	outbox  EventAppender
	metrics *utils.MetricsCollector
	tracker *domain.Tracker
	events  []*domain.Event
	done    bool
}

// Tx returns the live transaction for repository calls within this scope.
func (u *UnitOfWork) Tx() pgx.Tx {
	return u.tx
}

// Track captures a snapshot of an entity for later change detection.
func (u *UnitOfWork) Track(entity domain.Snapshotter) {
	u.tracker.Track(entity)
}

// Changes returns the change set of an entity against its tracked snapshot.
func (u *UnitOfWork) Changes(entity domain.Snapshotter) domain.ChangeSet {
	return u.tracker.Changes(entity)
}

// Record buffers an event for publication on commit. Events publish in the
// order they were recorded.
func (u *UnitOfWork) Record(event *domain.Event) {
	u.events = append(u.events, event)
}

// RecordNew builds an event from the payload and buffers it.
func (u *UnitOfWork) RecordNew(aggregateType domain.AggregateType, aggregateID uuid.UUID, eventType domain.EventType, payload any, metadata *domain.EventMetadata) error {
	event, err := domain.NewEvent(aggregateType, aggregateID, eventType, payload, metadata)
	if err != nil {
		return err
	}
	u.Record(event)
	return nil
}

// Pending returns the number of buffered events.
func (u *UnitOfWork) Pending() int {
	return len(u.events)
}

// Commit delivers buffered events to in-scope handlers in FIFO order, appends
// them to the outbox and commits the transaction. A handler error rolls the
// whole transaction back: entity writes, outbox rows and every side effect a
// handler performed through the transaction are all undone.
//
// Handlers may record further events; those are delivered after the events
// already in the buffer, preserving overall recording order.
func (u *UnitOfWork) Commit(ctx context.Context) error {
	if u.done {
		return ErrDone
	}
	u.done = true

	// Queue-drain loop: handlers can append to u.events while we iterate.
	for i := 0; i < len(u.events); i++ {
		event := u.events[i]
		for _, handler := range u.bus.handlersFor(event.EventType) {
			if err := handler(ctx, event, u.tx); err != nil {
				_ = u.tx.Rollback(ctx)
				return fmt.Errorf("event handler failed for %s: %w", event.EventType, err)
			}
		}
	}

	if len(u.events) > 0 && u.outbox != nil {
		if err := u.outbox.AppendTx(ctx, u.tx, u.events); err != nil {
			_ = u.tx.Rollback(ctx)
			return fmt.Errorf("failed to append events to outbox: %w", err)
		}
	}

	if err := u.tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit unit of work: %w", err)
	}

	if u.metrics != nil && len(u.events) > 0 {
		u.metrics.AddEventsPublished(len(u.events))
	}

	return nil
}

// Rollback aborts the transaction and discards the event buffer.
func (u *UnitOfWork) Rollback(ctx context.Context) error {
	if u.done {
		return ErrDone
	}
	u.done = true
	u.events = nil

	if err := u.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to roll back unit of work: %w", err)
	}

	return nil
}
