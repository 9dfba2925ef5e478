// Package service defines interfaces for business logic services.
package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/aydin-o/go-teamdesk/internal/domain"
	"github.com/aydin-o/go-teamdesk/internal/utils"
)

// AuthService defines the interface for authentication operations.
type AuthService interface {
	// Register creates a new user account.
	Register(ctx context.Context, req *domain.CreateUserRequest) (*domain.UserResponse, error)

	// Login authenticates a user and returns tokens.
	Login(ctx context.Context, email, password string) (*LoginResponse, error)

	// RefreshToken generates a new access token from a refresh token.
	RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error)

	// Impersonate starts a delegated session: the actor receives an access
	// token whose subject is the delegator of the given delegation.
	Impersonate(ctx context.Context, actorID, delegationID uuid.UUID) (*ImpersonationResponse, error)

	// DropImpersonation ends a delegated session by issuing fresh tokens for
	// the actor's own identity.
	DropImpersonation(ctx context.Context, actorID, delegationID uuid.UUID) (*LoginResponse, error)

	// ValidateToken validates an access token and returns user info.
	ValidateToken(ctx context.Context, token string) (*domain.UserResponse, error)
}

// UserService defines the interface for user management operations.
type UserService interface {
	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.UserResponse, error)

	// List retrieves users with pagination (admin only).
	List(ctx context.Context, limit, offset int) ([]*domain.UserResponse, error)

	// Update updates user information.
	Update(ctx context.Context, id uuid.UUID, actorID uuid.UUID, req *domain.UpdateUserRequest) (*domain.UserResponse, error)

	// Delete deactivates a user account.
	Delete(ctx context.Context, id uuid.UUID, actorID uuid.UUID) error
}

// ProjectService defines the interface for project operations. All writes run
// inside a unit of work so domain events commit together with the data.
type ProjectService interface {
	// Create creates a new project owned by the given user. actorID is the
	// user actually driving the request; it differs from the owner in a
	// delegated session and is what lands in audit rows and event metadata.
	Create(ctx context.Context, ownerID, actorID uuid.UUID, req *domain.CreateProjectRequest) (*domain.ProjectResponse, error)

	// GetByID retrieves a project visible to the requesting user.
	GetByID(ctx context.Context, id, requestingUserID uuid.UUID) (*domain.ProjectResponse, error)

	// List retrieves projects the user owns or is a member of.
	List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.ProjectResponse, error)

	// Update updates a project's scalar fields.
	Update(ctx context.Context, id, requestingUserID, actorID uuid.UUID, req *domain.UpdateProjectRequest) (*domain.ProjectResponse, error)

	// Delete deletes a project.
	Delete(ctx context.Context, id, requestingUserID, actorID uuid.UUID) error

	// AddMember adds a user to the project.
	AddMember(ctx context.Context, projectID, requestingUserID, actorID, memberID uuid.UUID, role string) error

	// RemoveMember removes a user from the project.
	RemoveMember(ctx context.Context, projectID, requestingUserID, actorID, memberID uuid.UUID) error

	// SetTags replaces the project's tag set.
	SetTags(ctx context.Context, projectID, requestingUserID, actorID uuid.UUID, tags []string) (*domain.ProjectResponse, error)
}

// DelegationService defines the interface for identity delegation operations.
type DelegationService interface {
	// Grant creates a new delegation from the delegator to another user.
	Grant(ctx context.Context, delegatorID uuid.UUID, req *domain.CreateDelegationRequest) (*domain.DelegationResponse, error)

	// Revoke revokes an active delegation. Either party may revoke. The
	// permission check runs against requestingUserID; actorID is what the
	// audit trail records.
	Revoke(ctx context.Context, id, requestingUserID, actorID uuid.UUID) error

	// ListIssued retrieves delegations granted by the user.
	ListIssued(ctx context.Context, delegatorID uuid.UUID, includeInactive bool) ([]*domain.DelegationResponse, error)

	// ListReceived retrieves delegations granted to the user.
	ListReceived(ctx context.Context, delegateID uuid.UUID, includeInactive bool) ([]*domain.DelegationResponse, error)

	// ExpireDue marks delegations whose window has ended as expired.
	ExpireDue(ctx context.Context) (int, error)

	// SetMetricsCollector enables the active delegations gauge.
	SetMetricsCollector(metrics *utils.MetricsCollector)
}

// EventService defines the interface for querying the event outbox.
type EventService interface {
	// List retrieves outbox events with filtering (admin only).
	List(ctx context.Context, filter *domain.EventFilter) ([]*domain.Event, error)

	// Count returns the number of events matching the filter.
	Count(ctx context.Context, filter *domain.EventFilter) (int, error)

	// Backlog returns the number of unpublished events.
	Backlog(ctx context.Context) (int, error)
}

// Services aggregates all service interfaces.
type Services struct {
	Auth       AuthService
	User       UserService
	Project    ProjectService
	Delegation DelegationService
	Event      EventService
	Dispatcher *DispatcherService
	Cache      CacheService
}
