// Package v1 provides version 1 of the HTTP API.
package v1

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/aydin-o/go-teamdesk/internal/api/middleware"
	"github.com/aydin-o/go-teamdesk/internal/auth"
	"github.com/aydin-o/go-teamdesk/internal/domain"
	"github.com/aydin-o/go-teamdesk/internal/repository"
	"github.com/aydin-o/go-teamdesk/internal/service"
	"github.com/aydin-o/go-teamdesk/internal/utils"
)

// Router holds the dependencies needed for v1 API routes.
type Router struct {
	repos      *repository.Repositories
	services   *service.Services
	jwtManager *auth.JWTManager
}

// NewRouter creates a new v1 API router.
func NewRouter(repos *repository.Repositories, services *service.Services, jwtManager *auth.JWTManager) *Router {
	return &Router{
		repos:      repos,
		services:   services,
		jwtManager: jwtManager,
	}
}

// RegisterRoutes registers all v1 API routes on the provided mux.
func (r *Router) RegisterRoutes(mux *http.ServeMux) {
	// Health/ping endpoint
	mux.HandleFunc("GET /api/v1/ping", r.handlePing)

	// Auth routes
	mux.HandleFunc("POST /api/v1/auth/register", r.handleRegister)
	mux.HandleFunc("POST /api/v1/auth/login", r.handleLogin)
	mux.HandleFunc("POST /api/v1/auth/refresh", r.handleRefresh)
	mux.HandleFunc("POST /api/v1/auth/impersonate", r.handleImpersonate)
	mux.HandleFunc("POST /api/v1/auth/drop-impersonation", r.handleDropImpersonation)

	// User routes
	mux.HandleFunc("GET /api/v1/users/me", r.handleGetMe)
	mux.HandleFunc("PUT /api/v1/users/me", r.handleUpdateMe)
	mux.HandleFunc("GET /api/v1/users", r.handleListUsers)
	mux.HandleFunc("GET /api/v1/users/{id}", r.handleGetUser)
	mux.HandleFunc("PUT /api/v1/users/{id}", r.handleUpdateUser)
	mux.HandleFunc("DELETE /api/v1/users/{id}", r.handleDeleteUser)

	// Project routes
	mux.HandleFunc("POST /api/v1/projects", r.handleCreateProject)
	mux.HandleFunc("GET /api/v1/projects", r.handleListProjects)
	mux.HandleFunc("GET /api/v1/projects/{id}", r.handleGetProject)
	mux.HandleFunc("PUT /api/v1/projects/{id}", r.handleUpdateProject)
	mux.HandleFunc("DELETE /api/v1/projects/{id}", r.handleDeleteProject)
	mux.HandleFunc("POST /api/v1/projects/{id}/members/{userID}", r.handleAddMember)
	mux.HandleFunc("DELETE /api/v1/projects/{id}/members/{userID}", r.handleRemoveMember)
	mux.HandleFunc("PUT /api/v1/projects/{id}/tags", r.handleSetTags)

	// Delegation routes
	mux.HandleFunc("POST /api/v1/delegations", r.handleGrantDelegation)
	mux.HandleFunc("GET /api/v1/delegations/issued", r.handleListIssuedDelegations)
	mux.HandleFunc("GET /api/v1/delegations/received", r.handleListReceivedDelegations)
	mux.HandleFunc("DELETE /api/v1/delegations/{id}", r.handleRevokeDelegation)

	// Event and audit routes (admin only)
	mux.HandleFunc("GET /api/v1/events", r.handleListEvents)
	mux.HandleFunc("GET /api/v1/audit", r.handleListAudit)
}

// handlePing responds to ping requests for testing connectivity.
func (r *Router) handlePing(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"message":"pong"}`))
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": message, "code": status})
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		utils.Error("failed to encode response", "error", err.Error())
	}
}

// currentUserID extracts the authenticated subject's ID from the request.
func currentUserID(req *http.Request) (uuid.UUID, bool) {
	claims, ok := middleware.GetUserFromContext(req.Context())
	if !ok {
		return uuid.Nil, false
	}
	return claims.UserID, true
}

// currentActorID extracts the ID of the user actually driving the request;
// for delegated sessions this differs from the subject.
func currentActorID(req *http.Request) (uuid.UUID, bool) {
	claims, ok := middleware.GetUserFromContext(req.Context())
	if !ok {
		return uuid.Nil, false
	}
	return claims.Actor(), true
}

// handleRegister handles user registration.
func (r *Router) handleRegister(w http.ResponseWriter, req *http.Request) {
	handler := middleware.ValidateJSON(func(w http.ResponseWriter, req *http.Request, body *domain.CreateUserRequest) {
		userResponse, err := r.services.Auth.Register(req.Context(), body)
		if err != nil {
			switch {
			case err.Error() == "email already registered":
				writeError(w, http.StatusConflict, "Email already registered")
			case err.Error() == "username already taken":
				writeError(w, http.StatusConflict, "Username already taken")
			default:
				writeError(w, http.StatusBadRequest, "Registration failed")
			}
			return
		}

		writeJSON(w, http.StatusCreated, userResponse)
	})

	handler.ServeHTTP(w, req)
}

// handleLogin handles user login.
func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	handler := middleware.ValidateJSON(func(w http.ResponseWriter, req *http.Request, body *domain.LoginRequest) {
		loginResponse, err := r.services.Auth.Login(req.Context(), body.Email, body.Password)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}

		writeJSON(w, http.StatusOK, loginResponse)
	})

	handler.ServeHTTP(w, req)
}

// handleRefresh handles access token refresh.
func (r *Router) handleRefresh(w http.ResponseWriter, req *http.Request) {
	handler := middleware.ValidateJSON(func(w http.ResponseWriter, req *http.Request, body *domain.RefreshRequest) {
		tokenResponse, err := r.services.Auth.RefreshToken(req.Context(), body.RefreshToken)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid refresh token")
			return
		}

		writeJSON(w, http.StatusOK, tokenResponse)
	})

	handler.ServeHTTP(w, req)
}

// handleImpersonate starts a delegated session. Delegated tokens cannot be
// used to impersonate again.
func (r *Router) handleImpersonate(w http.ResponseWriter, req *http.Request) {
	authMiddleware := middleware.AuthMiddleware(r.jwtManager)

	finalHandler := authMiddleware(middleware.RequireDirectSession(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		actorID, ok := currentUserID(req)
		if !ok {
			writeError(w, http.StatusUnauthorized, "User not authenticated")
			return
		}

		handler := middleware.ValidateJSON(func(w http.ResponseWriter, req *http.Request, body *domain.ImpersonateRequest) {
			impersonation, err := r.services.Auth.Impersonate(req.Context(), actorID, body.DelegationID)
			if err != nil {
				switch {
				case strings.Contains(err.Error(), "not found"):
					writeError(w, http.StatusNotFound, "Delegation not found")
				case strings.Contains(err.Error(), "does not name you"):
					writeError(w, http.StatusForbidden, "Delegation does not name you as delegate")
				default:
					writeError(w, http.StatusForbidden, "Delegation is not usable")
				}
				return
			}

			writeJSON(w, http.StatusOK, impersonation)
		})

		handler.ServeHTTP(w, req)
	})))

	finalHandler.ServeHTTP(w, req)
}

// handleDropImpersonation ends a delegated session and returns tokens for the
// actor's own identity.
func (r *Router) handleDropImpersonation(w http.ResponseWriter, req *http.Request) {
	authMiddleware := middleware.AuthMiddleware(r.jwtManager)

	finalHandler := authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		claims, ok := middleware.GetUserFromContext(req.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "User not authenticated")
			return
		}
		if !claims.IsDelegated() {
			writeError(w, http.StatusBadRequest, "Not in a delegated session")
			return
		}

		loginResponse, err := r.services.Auth.DropImpersonation(req.Context(), claims.Actor(), *claims.DelegationID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to end delegated session")
			return
		}

		writeJSON(w, http.StatusOK, loginResponse)
	}))

	finalHandler.ServeHTTP(w, req)
}
