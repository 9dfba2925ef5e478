package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/aydin-o/go-teamdesk/internal/domain"
	"github.com/aydin-o/go-teamdesk/internal/repository"
	"github.com/aydin-o/go-teamdesk/internal/uow"
	"github.com/aydin-o/go-teamdesk/internal/utils"
)

// userService implements the UserService interface.
type userService struct {
	repos *repository.Repositories
	uow   *uow.Manager
	cache CacheService
}

// NewUserService creates a new user service.
func NewUserService(repos *repository.Repositories, uowManager *uow.Manager, cache CacheService) UserService {
	return &userService{
		repos: repos,
		uow:   uowManager,
		cache: cache,
	}
}

// GetByID retrieves a user by ID, cache first.
func (s *userService) GetByID(ctx context.Context, id uuid.UUID) (*domain.UserResponse, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetCachedUser(ctx, id); err == nil && cached != nil {
			return cached, nil
		}
	}

	user, err := s.repos.Users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.CacheUser(ctx, user); err != nil {
			utils.Error("failed to cache user", "user_id", id.String(), "error", err.Error())
		}
	}

	response := user.ToResponse()
	return &response, nil
}

// List retrieves users with pagination.
func (s *userService) List(ctx context.Context, limit, offset int) ([]*domain.UserResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	users, err := s.repos.Users.ListPaginated(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	responses := make([]*domain.UserResponse, 0, len(users))
	for _, user := range users {
		response := user.ToResponse()
		responses = append(responses, &response)
	}
	return responses, nil
}

// Update updates user information. The row update, the UserUpdated event and
// the audit entry commit atomically; if nothing actually changed no event is
// recorded.
func (s *userService) Update(ctx context.Context, id uuid.UUID, actorID uuid.UUID, req *domain.UpdateUserRequest) (*domain.UserResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var updated *domain.User
	err := s.uow.RunInTx(ctx, func(ctx context.Context, u *uow.UnitOfWork) error {
		user, err := s.repos.Users.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("user not found: %w", err)
		}

		u.Track(user)

		if req.Email != "" {
			user.Email = strings.ToLower(req.Email)
		}
		if req.Username != "" {
			user.Username = req.Username
		}
		if req.Role != "" {
			user.Role = req.Role
		}
		if req.IsActive != nil {
			user.IsActive = *req.IsActive
		}

		if err := user.Validate(); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}

		cs := u.Changes(user)
		if cs.IsEmpty() {
			updated = user
			return nil
		}

		if err := s.repos.Users.UpdateTx(ctx, u.Tx(), user); err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}

		if err := u.RecordNew(domain.AggregateUser, user.ID, domain.EventUserUpdated, &domain.UserUpdatedEvent{
			UserID:  user.ID,
			OldData: cs.OldFields(),
			NewData: cs.NewFields(),
		}, metadataFromContext(ctx, actorID)); err != nil {
			return err
		}

		if err := s.repos.Audit.LogTx(ctx, u.Tx(), string(domain.EntityUser), user.ID, &actorID, string(domain.ActionUpdated), cs.NewFields()); err != nil {
			return err
		}

		updated = user
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.InvalidateUserRelatedCache(ctx, id); err != nil {
			utils.Error("failed to invalidate user cache", "user_id", id.String(), "error", err.Error())
		}
	}

	response := updated.ToResponse()
	return &response, nil
}

// Delete deactivates a user account.
func (s *userService) Delete(ctx context.Context, id uuid.UUID, actorID uuid.UUID) error {
	err := s.uow.RunInTx(ctx, func(ctx context.Context, u *uow.UnitOfWork) error {
		if _, err := s.repos.Users.GetByID(ctx, id); err != nil {
			return fmt.Errorf("user not found: %w", err)
		}

		if err := s.repos.Users.DeleteTx(ctx, u.Tx(), id); err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}

		if err := u.RecordNew(domain.AggregateUser, id, domain.EventUserDeleted, &domain.UserDeletedEvent{
			UserID: id,
		}, metadataFromContext(ctx, actorID)); err != nil {
			return err
		}

		return s.repos.Audit.LogTx(ctx, u.Tx(), string(domain.EntityUser), id, &actorID, string(domain.ActionDeleted), nil)
	})
	if err != nil {
		return err
	}

	if s.cache != nil {
		if err := s.cache.InvalidateUserRelatedCache(ctx, id); err != nil {
			utils.Error("failed to invalidate user cache", "user_id", id.String(), "error", err.Error())
		}
	}

	return nil
}
