package v1

import (
	"net/http"
	"strings"

	"github.com/aydin-o/go-teamdesk/internal/api/middleware"
	"github.com/aydin-o/go-teamdesk/internal/domain"
)

// handleCreateProject handles creating a project. In a delegated session the
// project is owned by the subject, with the actor recorded in the audit trail.
func (r *Router) handleCreateProject(w http.ResponseWriter, req *http.Request) {
	authMiddleware := middleware.AuthMiddleware(r.jwtManager)

	finalHandler := authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ownerID, ok := currentUserID(req)
		if !ok {
			writeError(w, http.StatusUnauthorized, "User not authenticated")
			return
		}
		actorID, _ := currentActorID(req)

		handler := middleware.ValidateJSON(func(w http.ResponseWriter, req *http.Request, body *domain.CreateProjectRequest) {
			project, err := r.services.Project.Create(req.Context(), ownerID, actorID, body)
			if err != nil {
				writeError(w, http.StatusBadRequest, "Failed to create project")
				return
			}

			writeJSON(w, http.StatusCreated, project)
		})

		handler.ServeHTTP(w, req)
	}))

	finalHandler.ServeHTTP(w, req)
}

// handleListProjects lists projects the user owns or is a member of.
func (r *Router) handleListProjects(w http.ResponseWriter, req *http.Request) {
	authMiddleware := middleware.AuthMiddleware(r.jwtManager)

	finalHandler := authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		userID, ok := currentUserID(req)
		if !ok {
			writeError(w, http.StatusUnauthorized, "User not authenticated")
			return
		}

		limit, offset, err := parsePagination(req)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		projects, err := r.services.Project.List(req.Context(), userID, limit, offset)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to list projects")
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"projects": projects,
			"limit":    limit,
			"offset":   offset,
		})
	}))

	finalHandler.ServeHTTP(w, req)
}

// handleGetProject retrieves a single project with members and tags.
func (r *Router) handleGetProject(w http.ResponseWriter, req *http.Request) {
	authMiddleware := middleware.AuthMiddleware(r.jwtManager)

	finalHandler := authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		userID, ok := currentUserID(req)
		if !ok {
			writeError(w, http.StatusUnauthorized, "User not authenticated")
			return
		}

		projectID, ok := parseIDParam(w, req, "id")
		if !ok {
			return
		}

		project, err := r.services.Project.GetByID(req.Context(), projectID, userID)
		if err != nil {
			writeError(w, http.StatusNotFound, "Project not found")
			return
		}

		writeJSON(w, http.StatusOK, project)
	}))

	finalHandler.ServeHTTP(w, req)
}

// handleUpdateProject updates a project's scalar fields.
func (r *Router) handleUpdateProject(w http.ResponseWriter, req *http.Request) {
	authMiddleware := middleware.AuthMiddleware(r.jwtManager)

	finalHandler := authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		userID, ok := currentUserID(req)
		if !ok {
			writeError(w, http.StatusUnauthorized, "User not authenticated")
			return
		}

		actorID, _ := currentActorID(req)

		projectID, ok := parseIDParam(w, req, "id")
		if !ok {
			return
		}

		handler := middleware.ValidateJSON(func(w http.ResponseWriter, req *http.Request, body *domain.UpdateProjectRequest) {
			project, err := r.services.Project.Update(req.Context(), projectID, userID, actorID, body)
			if err != nil {
				writeProjectError(w, err)
				return
			}

			writeJSON(w, http.StatusOK, project)
		})

		handler.ServeHTTP(w, req)
	}))

	finalHandler.ServeHTTP(w, req)
}

// handleDeleteProject deletes a project.
func (r *Router) handleDeleteProject(w http.ResponseWriter, req *http.Request) {
	authMiddleware := middleware.AuthMiddleware(r.jwtManager)

	finalHandler := authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		userID, ok := currentUserID(req)
		if !ok {
			writeError(w, http.StatusUnauthorized, "User not authenticated")
			return
		}

		actorID, _ := currentActorID(req)

		projectID, ok := parseIDParam(w, req, "id")
		if !ok {
			return
		}

		if err := r.services.Project.Delete(req.Context(), projectID, userID, actorID); err != nil {
			writeProjectError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"message": "Project deleted"})
	}))

	finalHandler.ServeHTTP(w, req)
}

// handleAddMember adds a user to a project. The role comes from the request
// body and defaults to viewer.
func (r *Router) handleAddMember(w http.ResponseWriter, req *http.Request) {
	authMiddleware := middleware.AuthMiddleware(r.jwtManager)

	finalHandler := authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		userID, ok := currentUserID(req)
		if !ok {
			writeError(w, http.StatusUnauthorized, "User not authenticated")
			return
		}

		actorID, _ := currentActorID(req)

		projectID, ok := parseIDParam(w, req, "id")
		if !ok {
			return
		}
		memberID, ok := parseIDParam(w, req, "userID")
		if !ok {
			return
		}

		handler := middleware.ValidateJSON(func(w http.ResponseWriter, req *http.Request, body *domain.AddMemberRequest) {
			if err := r.services.Project.AddMember(req.Context(), projectID, userID, actorID, memberID, body.Role); err != nil {
				writeProjectError(w, err)
				return
			}

			writeJSON(w, http.StatusCreated, map[string]any{"message": "Member added"})
		})

		handler.ServeHTTP(w, req)
	}))

	finalHandler.ServeHTTP(w, req)
}

// handleRemoveMember removes a user from a project.
func (r *Router) handleRemoveMember(w http.ResponseWriter, req *http.Request) {
	authMiddleware := middleware.AuthMiddleware(r.jwtManager)

	finalHandler := authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		userID, ok := currentUserID(req)
		if !ok {
			writeError(w, http.StatusUnauthorized, "User not authenticated")
			return
		}

		actorID, _ := currentActorID(req)

		projectID, ok := parseIDParam(w, req, "id")
		if !ok {
			return
		}
		memberID, ok := parseIDParam(w, req, "userID")
		if !ok {
			return
		}

		if err := r.services.Project.RemoveMember(req.Context(), projectID, userID, actorID, memberID); err != nil {
			writeProjectError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"message": "Member removed"})
	}))

	finalHandler.ServeHTTP(w, req)
}

// handleSetTags replaces a project's tag set.
func (r *Router) handleSetTags(w http.ResponseWriter, req *http.Request) {
	authMiddleware := middleware.AuthMiddleware(r.jwtManager)

	finalHandler := authMiddleware(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		userID, ok := currentUserID(req)
		if !ok {
			writeError(w, http.StatusUnauthorized, "User not authenticated")
			return
		}

		actorID, _ := currentActorID(req)

		projectID, ok := parseIDParam(w, req, "id")
		if !ok {
			return
		}

		handler := middleware.ValidateJSON(func(w http.ResponseWriter, req *http.Request, body *domain.SetTagsRequest) {
			project, err := r.services.Project.SetTags(req.Context(), projectID, userID, actorID, body.Tags)
			if err != nil {
				writeProjectError(w, err)
				return
			}

			writeJSON(w, http.StatusOK, project)
		})

		handler.ServeHTTP(w, req)
	}))

	finalHandler.ServeHTTP(w, req)
}

// writeProjectError maps service errors to HTTP statuses.
func writeProjectError(w http.ResponseWriter, err error) {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "not found"):
		writeError(w, http.StatusNotFound, "Project not found")
	case strings.Contains(msg, "only the owner"), strings.Contains(msg, "viewers cannot"):
		writeError(w, http.StatusForbidden, "Insufficient project permissions")
	case strings.Contains(msg, "already a member"):
		writeError(w, http.StatusConflict, "User is already a member")
	default:
		writeError(w, http.StatusBadRequest, msg)
	}
}
