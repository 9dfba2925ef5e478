package v1

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/aydin-o/go-teamdesk/internal/api/middleware"
	"github.com/aydin-o/go-teamdesk/internal/domain"
)

// handleListEvents exposes the event log to admins for debugging and
// projection replay.
func (r *Router) handleListEvents(w http.ResponseWriter, req *http.Request) {
	authMiddleware := middleware.AuthMiddleware(r.jwtManager)
	adminMiddleware := middleware.RequireAdmin

	finalHandler := authMiddleware(adminMiddleware(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		filter, err := parseEventFilter(req)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		events, err := r.services.Event.List(req.Context(), filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to list events")
			return
		}

		total, err := r.services.Event.Count(req.Context(), filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to count events")
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"events": events,
			"total":  total,
			"limit":  filter.Limit,
			"offset": filter.Offset,
		})
	})))

	finalHandler.ServeHTTP(w, req)
}

// handleListAudit exposes the audit trail to admins. Every entry carries the
// actor that performed the action, which for delegated sessions differs from
// the subject.
func (r *Router) handleListAudit(w http.ResponseWriter, req *http.Request) {
	authMiddleware := middleware.AuthMiddleware(r.jwtManager)
	adminMiddleware := middleware.RequireAdmin

	finalHandler := authMiddleware(adminMiddleware(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		filter, err := parseAuditFilter(req)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		logs, err := r.repos.Audit.List(req.Context(), filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to list audit logs")
			return
		}

		total, err := r.repos.Audit.Count(req.Context(), filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to count audit logs")
			return
		}

		responses := make([]domain.AuditLogResponse, len(logs))
		for i, log := range logs {
			responses[i] = log.ToResponse()
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"audit_logs": responses,
			"total":      total,
			"limit":      filter.Limit,
			"offset":     filter.Offset,
		})
	})))

	finalHandler.ServeHTTP(w, req)
}

func parseEventFilter(req *http.Request) (*domain.EventFilter, error) {
	limit, offset, err := parsePagination(req)
	if err != nil {
		return nil, err
	}

	filter := &domain.EventFilter{
		AggregateType: req.URL.Query().Get("aggregate_type"),
		EventType:     req.URL.Query().Get("event_type"),
		Limit:         limit,
		Offset:        offset,
	}

	if filter.AggregateID, err = parseUUIDQuery(req, "aggregate_id"); err != nil {
		return nil, err
	}
	if filter.Since, err = parseTimeQuery(req, "since"); err != nil {
		return nil, err
	}
	if filter.Until, err = parseTimeQuery(req, "until"); err != nil {
		return nil, err
	}

	return filter, nil
}

func parseAuditFilter(req *http.Request) (*domain.AuditLogFilter, error) {
	limit, offset, err := parsePagination(req)
	if err != nil {
		return nil, err
	}

	filter := &domain.AuditLogFilter{
		EntityType: req.URL.Query().Get("entity_type"),
		Action:     req.URL.Query().Get("action"),
		Limit:      limit,
		Offset:     offset,
	}

	if filter.EntityID, err = parseUUIDQuery(req, "entity_id"); err != nil {
		return nil, err
	}
	if filter.ActorID, err = parseUUIDQuery(req, "actor_id"); err != nil {
		return nil, err
	}
	if filter.Since, err = parseTimeQuery(req, "since"); err != nil {
		return nil, err
	}
	if filter.Until, err = parseTimeQuery(req, "until"); err != nil {
		return nil, err
	}

	return filter, nil
}

func parseUUIDQuery(req *http.Request, name string) (*uuid.UUID, error) {
	raw := req.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s", name)
	}
	return &id, nil
}

func parseTimeQuery(req *http.Request, name string) (*time.Time, error) {
	raw := req.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be RFC 3339", name)
	}
	return &t, nil
}
