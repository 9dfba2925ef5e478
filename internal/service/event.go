package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/aydin-o/go-teamdesk/internal/domain"
	"github.com/aydin-o/go-teamdesk/internal/repository"
)

// eventService implements the EventService interface over the outbox table.
type eventService struct {
	repos *repository.Repositories
}

// NewEventService creates a new event query service.
func NewEventService(repos *repository.Repositories) EventService {
	return &eventService{repos: repos}
}

// List retrieves outbox events with filtering, in sequence order.
func (s *eventService) List(ctx context.Context, filter *domain.EventFilter) ([]*domain.Event, error) {
	if filter == nil {
		filter = &domain.EventFilter{}
	}
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}

	events, err := s.repos.Outbox.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

// Count returns the number of events matching the filter.
func (s *eventService) Count(ctx context.Context, filter *domain.EventFilter) (int, error) {
	if filter == nil {
		filter = &domain.EventFilter{}
	}
	return s.repos.Outbox.Count(ctx, filter)
}

// Backlog returns the number of unpublished events.
func (s *eventService) Backlog(ctx context.Context) (int, error) {
	return s.repos.Outbox.Backlog(ctx)
}

// metadataFromContext builds event metadata from request-scoped context values
// set by the HTTP middleware. actorID is the authenticated caller, not the
// token subject.
func metadataFromContext(ctx context.Context, actorID uuid.UUID) *domain.EventMetadata {
	return &domain.EventMetadata{
		CorrelationID: getCorrelationID(ctx),
		ActorID:       actorID.String(),
		UserAgent:     getUserAgent(ctx),
		IP:            getClientIP(ctx),
	}
}

// Helper functions to extract context values
func getCorrelationID(ctx context.Context) string {
	if requestID, ok := ctx.Value("request_id").(string); ok {
		return requestID
	}
	return uuid.New().String()
}

func getUserAgent(ctx context.Context) string {
	if userAgent, ok := ctx.Value("user_agent").(string); ok {
		return userAgent
	}
	return ""
}

func getClientIP(ctx context.Context) string {
	if clientIP, ok := ctx.Value("client_ip").(string); ok {
		return clientIP
	}
	return ""
}
