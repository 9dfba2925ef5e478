package v1

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/aydin-o/go-teamdesk/internal/api/middleware"
	"github.com/aydin-o/go-teamdesk/internal/domain"
)

// handleGetMe returns the authenticated user's own profile. In a delegated
// session this is the subject, i.e. the delegator.
func (r *Router) handleGetMe(w http.ResponseWriter, req *http.Request) {
	authMiddleware := middleware.AuthMiddleware(r.jwtManager)

	finalHandler := authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		userID, ok := currentUserID(req)
		if !ok {
			writeError(w, http.StatusUnauthorized, "User not authenticated")
			return
		}

		user, err := r.services.User.GetByID(req.Context(), userID)
		if err != nil {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}

		writeJSON(w, http.StatusOK, user)
	}))

	finalHandler.ServeHTTP(w, req)
}

// handleUpdateMe updates the authenticated user's own profile. Role changes
// are not allowed here.
func (r *Router) handleUpdateMe(w http.ResponseWriter, req *http.Request) {
	authMiddleware := middleware.AuthMiddleware(r.jwtManager)

	finalHandler := authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		userID, ok := currentUserID(req)
		if !ok {
			writeError(w, http.StatusUnauthorized, "User not authenticated")
			return
		}
		actorID, _ := currentActorID(req)

		handler := middleware.ValidateJSON(func(w http.ResponseWriter, req *http.Request, body *domain.UpdateUserRequest) {
			if body.Role != "" || body.IsActive != nil {
				writeError(w, http.StatusForbidden, "Cannot change role or active flag on own profile")
				return
			}

			user, err := r.services.User.Update(req.Context(), userID, actorID, body)
			if err != nil {
				writeError(w, http.StatusBadRequest, "Failed to update profile")
				return
			}

			writeJSON(w, http.StatusOK, user)
		})

		handler.ServeHTTP(w, req)
	}))

	finalHandler.ServeHTTP(w, req)
}

// handleListUsers handles listing users with pagination (admin only).
func (r *Router) handleListUsers(w http.ResponseWriter, req *http.Request) {
	authMiddleware := middleware.AuthMiddleware(r.jwtManager)
	adminMiddleware := middleware.RequireAdmin

	finalHandler := authMiddleware(adminMiddleware(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		limit, offset, err := parsePagination(req)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		users, err := r.services.User.List(req.Context(), limit, offset)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to list users")
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"users":  users,
			"limit":  limit,
			"offset": offset,
		})
	})))

	finalHandler.ServeHTTP(w, req)
}

// handleGetUser handles getting a specific user by ID (admin only).
func (r *Router) handleGetUser(w http.ResponseWriter, req *http.Request) {
	authMiddleware := middleware.AuthMiddleware(r.jwtManager)
	adminMiddleware := middleware.RequireAdmin

	finalHandler := authMiddleware(adminMiddleware(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		userID, ok := parseIDParam(w, req, "id")
		if !ok {
			return
		}

		user, err := r.services.User.GetByID(req.Context(), userID)
		if err != nil {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}

		writeJSON(w, http.StatusOK, user)
	})))

	finalHandler.ServeHTTP(w, req)
}

// handleUpdateUser handles updating a user (admin only).
func (r *Router) handleUpdateUser(w http.ResponseWriter, req *http.Request) {
	authMiddleware := middleware.AuthMiddleware(r.jwtManager)
	adminMiddleware := middleware.RequireAdmin

	finalHandler := authMiddleware(adminMiddleware(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		userID, ok := parseIDParam(w, req, "id")
		if !ok {
			return
		}
		actorID, _ := currentActorID(req)

		handler := middleware.ValidateJSON(func(w http.ResponseWriter, req *http.Request, body *domain.UpdateUserRequest) {
			user, err := r.services.User.Update(req.Context(), userID, actorID, body)
			if err != nil {
				if strings.Contains(err.Error(), "not found") {
					writeError(w, http.StatusNotFound, "User not found")
					return
				}
				writeError(w, http.StatusBadRequest, "Failed to update user")
				return
			}

			writeJSON(w, http.StatusOK, user)
		})

		handler.ServeHTTP(w, req)
	})))

	finalHandler.ServeHTTP(w, req)
}

// handleDeleteUser handles deactivating a user (admin only).
func (r *Router) handleDeleteUser(w http.ResponseWriter, req *http.Request) {
	authMiddleware := middleware.AuthMiddleware(r.jwtManager)
	adminMiddleware := middleware.RequireAdmin

	finalHandler := authMiddleware(adminMiddleware(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		userID, ok := parseIDParam(w, req, "id")
		if !ok {
			return
		}
		actorID, _ := currentActorID(req)

		if err := r.services.User.Delete(req.Context(), userID, actorID); err != nil {
			if strings.Contains(err.Error(), "not found") {
				writeError(w, http.StatusNotFound, "User not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "Failed to delete user")
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"message": "User deactivated"})
	})))

	finalHandler.ServeHTTP(w, req)
}

// parseIDParam parses a UUID path parameter, writing the error response itself.
func parseIDParam(w http.ResponseWriter, req *http.Request, name string) (uuid.UUID, bool) {
	raw := req.PathValue(name)
	if raw == "" {
		writeError(w, http.StatusBadRequest, "Missing "+name+" parameter")
		return uuid.Nil, false
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid "+name+" format")
		return uuid.Nil, false
	}
	return id, true
}

var errPagination = errors.New("limit and offset must be non-negative integers")

// parsePagination parses limit and offset query parameters.
func parsePagination(req *http.Request) (limit, offset int, err error) {
	if raw := req.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return 0, 0, errPagination
		}
	}
	if raw := req.URL.Query().Get("offset"); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return 0, 0, errPagination
		}
	}
	return limit, offset, nil
}
