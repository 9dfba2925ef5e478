package v1

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/aydin-o/go-teamdesk/internal/api/middleware"
	"github.com/aydin-o/go-teamdesk/internal/domain"
)

// handleGrantDelegation issues a new delegation. Only direct sessions may
// grant: a delegated token cannot hand out further delegations.
func (r *Router) handleGrantDelegation(w http.ResponseWriter, req *http.Request) {
	authMiddleware := middleware.AuthMiddleware(r.jwtManager)
	directMiddleware := middleware.RequireDirectSession

	finalHandler := authMiddleware(directMiddleware(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		delegatorID, ok := currentUserID(req)
		if !ok {
			writeError(w, http.StatusUnauthorized, "User not authenticated")
			return
		}

		handler := middleware.ValidateJSON(func(w http.ResponseWriter, req *http.Request, body *domain.CreateDelegationRequest) {
			delegation, err := r.services.Delegation.Grant(req.Context(), delegatorID, body)
			if err != nil {
				writeDelegationError(w, err)
				return
			}

			writeJSON(w, http.StatusCreated, delegation)
		})

		handler.ServeHTTP(w, req)
	})))

	finalHandler.ServeHTTP(w, req)
}

// handleListIssuedDelegations lists delegations the caller has granted.
func (r *Router) handleListIssuedDelegations(w http.ResponseWriter, req *http.Request) {
	r.listDelegations(w, req, r.services.Delegation.ListIssued)
}

// handleListReceivedDelegations lists delegations granted to the caller.
func (r *Router) handleListReceivedDelegations(w http.ResponseWriter, req *http.Request) {
	r.listDelegations(w, req, r.services.Delegation.ListReceived)
}

func (r *Router) listDelegations(w http.ResponseWriter, req *http.Request, list func(ctx context.Context, userID uuid.UUID, includeInactive bool) ([]*domain.DelegationResponse, error)) {
	authMiddleware := middleware.AuthMiddleware(r.jwtManager)

	finalHandler := authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		userID, ok := currentUserID(req)
		if !ok {
			writeError(w, http.StatusUnauthorized, "User not authenticated")
			return
		}

		includeInactive := req.URL.Query().Get("include_inactive") == "true"

		delegations, err := list(req.Context(), userID, includeInactive)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to list delegations")
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"delegations": delegations})
	}))

	finalHandler.ServeHTTP(w, req)
}

// handleRevokeDelegation revokes an active delegation. Either the delegator
// or the delegate may revoke.
func (r *Router) handleRevokeDelegation(w http.ResponseWriter, req *http.Request) {
	authMiddleware := middleware.AuthMiddleware(r.jwtManager)

	finalHandler := authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		userID, ok := currentUserID(req)
		if !ok {
			writeError(w, http.StatusUnauthorized, "User not authenticated")
			return
		}

		actorID, _ := currentActorID(req)

		delegationID, ok := parseIDParam(w, req, "id")
		if !ok {
			return
		}

		if err := r.services.Delegation.Revoke(req.Context(), delegationID, userID, actorID); err != nil {
			writeDelegationError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"message": "Delegation revoked"})
	}))

	finalHandler.ServeHTTP(w, req)
}

// writeDelegationError maps service errors to HTTP statuses.
func writeDelegationError(w http.ResponseWriter, err error) {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "delegate not found"):
		writeError(w, http.StatusNotFound, "Delegate user not found")
	case strings.Contains(msg, "delegation not found"):
		writeError(w, http.StatusNotFound, "Delegation not found")
	case strings.Contains(msg, "only a party"):
		writeError(w, http.StatusForbidden, "Not a party to this delegation")
	case strings.Contains(msg, "already covers"):
		writeError(w, http.StatusConflict, "An overlapping delegation already exists")
	default:
		writeError(w, http.StatusBadRequest, msg)
	}
}
