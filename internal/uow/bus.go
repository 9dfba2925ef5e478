// Package uow implements the unit of work: a transactional scope that collects
// domain events and publishes them in FIFO order when the transaction commits.
package uow

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"

	"github.com/aydin-o/go-teamdesk/internal/domain"
)

// Handler processes an event during commit, inside the live transaction. Any
// writes the handler performs through tx are rolled back together with the
// rest of the unit of work if a later handler fails.
type Handler func(ctx context.Context, event *domain.Event, tx pgx.Tx) error

// Bus is the registry of in-scope event handlers. Subscriptions are expected
// at startup; delivery happens on every commit.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

// NewBus creates an empty handler registry.
func NewBus() *Bus {
	return &Bus{handlers: make(map[string][]Handler)}
}

// Subscribe registers a handler for an event type. Handlers for the same type
// run in subscription order.
func (b *Bus) Subscribe(eventType domain.EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[string(eventType)] = append(b.handlers[string(eventType)], handler)
}

// handlersFor returns the handlers registered for an event type.
func (b *Bus) handlersFor(eventType string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.handlers[eventType]
}
