package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aydin-o/go-teamdesk/internal/auth"
	"github.com/aydin-o/go-teamdesk/internal/domain"
	"github.com/aydin-o/go-teamdesk/internal/repository"
	"github.com/aydin-o/go-teamdesk/internal/uow"
	"github.com/aydin-o/go-teamdesk/internal/utils"
)

// LoginResponse represents a successful login.
type LoginResponse struct {
	User         *domain.UserResponse `json:"user"`
	AccessToken  string               `json:"access_token"`
	RefreshToken string               `json:"refresh_token"`
	ExpiresIn    int                  `json:"expires_in"`
}

// TokenResponse represents a refreshed access token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// ImpersonationResponse represents a started delegated session. Subject is the
// identity the token acts as; the actor stays the authenticated caller.
type ImpersonationResponse struct {
	AccessToken  string               `json:"access_token"`
	ExpiresIn    int                  `json:"expires_in"`
	Subject      *domain.UserResponse `json:"subject"`
	DelegationID uuid.UUID            `json:"delegation_id"`
}

// authService implements the AuthService interface.
type authService struct {
	repos      *repository.Repositories
	jwtManager *auth.JWTManager
	uow        *uow.Manager
	cache      CacheService
}

// NewAuthService creates a new authentication service.
func NewAuthService(repos *repository.Repositories, jwtManager *auth.JWTManager, uowManager *uow.Manager, cache CacheService) AuthService {
	return &authService{
		repos:      repos,
		jwtManager: jwtManager,
		uow:        uowManager,
		cache:      cache,
	}
}

// Register creates a new user account. The user row, the UserRegistered event
// and the audit entry commit atomically.
func (s *authService) Register(ctx context.Context, req *domain.CreateUserRequest) (*domain.UserResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	// Check if email already exists
	existingUser, err := s.repos.Users.GetByEmail(ctx, req.Email)
	if err == nil && existingUser != nil {
		return nil, fmt.Errorf("email already registered")
	}

	// Check if username already exists
	existingUser, err = s.repos.Users.GetByUsername(ctx, req.Username)
	if err == nil && existingUser != nil {
		return nil, fmt.Errorf("username already taken")
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	role := req.Role
	if role == "" {
		role = string(domain.RoleUser)
	}

	user := &domain.User{
		Username:     req.Username,
		Email:        strings.ToLower(req.Email),
		PasswordHash: hashedPassword,
		Role:         role,
		IsActive:     true,
	}

	err = s.uow.RunInTx(ctx, func(ctx context.Context, u *uow.UnitOfWork) error {
		if err := s.repos.Users.CreateTx(ctx, u.Tx(), user); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		if err := u.RecordNew(domain.AggregateUser, user.ID, domain.EventUserRegistered, &domain.UserRegisteredEvent{
			UserID:   user.ID,
			Email:    user.Email,
			Username: user.Username,
			Role:     user.Role,
		}, metadataFromContext(ctx, user.ID)); err != nil {
			return err
		}

		auditDetails := map[string]interface{}{
			"username": user.Username,
			"email":    user.Email,
			"role":     user.Role,
		}
		return s.repos.Audit.LogTx(ctx, u.Tx(), string(domain.EntityUser), user.ID, &user.ID, string(domain.ActionCreated), auditDetails)
	})
	if err != nil {
		return nil, err
	}

	response := user.ToResponse()
	return &response, nil
}

// Login authenticates a user and returns tokens.
func (s *authService) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	user, err := s.repos.Users.GetByEmail(ctx, strings.ToLower(email))
	if err != nil {
		return nil, fmt.Errorf("invalid email or password")
	}

	if !auth.ComparePassword(user.PasswordHash, password) {
		return nil, fmt.Errorf("invalid email or password")
	}

	tokenPair, err := s.jwtManager.GenerateTokenPair(user.ID, user.Username, user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tokens: %w", err)
	}

	// Best effort: a cold cache only costs a database read later
	if s.cache != nil {
		if err := s.cache.CacheUser(ctx, user); err != nil {
			utils.Error("failed to cache user on login", "user_id", user.ID.String(), "error", err.Error())
		}
	}

	userResponse := user.ToResponse()
	return &LoginResponse{
		User:         &userResponse,
		AccessToken:  tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
		ExpiresIn:    int(tokenPair.ExpiresIn),
	}, nil
}

// RefreshToken generates a new access token from a refresh token.
func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	newAccessToken, err := s.jwtManager.RefreshAccessToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", err)
	}

	return &TokenResponse{
		AccessToken: newAccessToken,
		ExpiresIn:   int(auth.AccessTokenDuration.Seconds()),
	}, nil
}

// Impersonate starts a delegated session. The caller must hold a usable
// delegation naming them as delegate; the issued token's subject is the
// delegator while the actor claim keeps pointing at the caller.
func (s *authService) Impersonate(ctx context.Context, actorID, delegationID uuid.UUID) (*ImpersonationResponse, error) {
	delegation, err := s.repos.Delegations.GetByID(ctx, delegationID)
	if err != nil {
		return nil, fmt.Errorf("delegation not found: %w", err)
	}

	if delegation.DelegateID != actorID {
		return nil, fmt.Errorf("delegation does not name you as delegate")
	}
	if !delegation.UsableAt(time.Now()) {
		return nil, fmt.Errorf("delegation is not usable")
	}

	delegator, err := s.repos.Users.GetByID(ctx, delegation.DelegatorID)
	if err != nil {
		return nil, fmt.Errorf("delegator not found: %w", err)
	}
	if !delegator.IsActive {
		return nil, fmt.Errorf("delegator account is inactive")
	}

	token, err := s.jwtManager.GenerateDelegatedToken(&auth.DelegatedSubject{
		UserID:   delegator.ID,
		Username: delegator.Username,
		Email:    delegator.Email,
		Role:     delegator.Role,
	}, actorID, delegation.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate delegated token: %w", err)
	}

	auditDetails := map[string]interface{}{
		"delegation_id": delegation.ID,
		"delegator_id":  delegation.DelegatorID,
	}
	if err := s.repos.Audit.Log(ctx, string(domain.EntityDelegation), delegation.ID, &actorID, string(domain.ActionImpersonated), auditDetails); err != nil {
		utils.Error("failed to log impersonation audit",
			"delegation_id", delegation.ID.String(),
			"actor_id", actorID.String(),
			"error", err.Error(),
		)
	}

	subject := delegator.ToResponse()
	return &ImpersonationResponse{
		AccessToken:  token,
		ExpiresIn:    int(auth.DelegatedTokenDuration.Seconds()),
		Subject:      &subject,
		DelegationID: delegation.ID,
	}, nil
}

// DropImpersonation ends a delegated session. The actor gets a fresh token
// pair for their own identity.
func (s *authService) DropImpersonation(ctx context.Context, actorID, delegationID uuid.UUID) (*LoginResponse, error) {
	actor, err := s.repos.Users.GetByID(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("actor not found: %w", err)
	}

	tokenPair, err := s.jwtManager.GenerateTokenPair(actor.ID, actor.Username, actor.Email, actor.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tokens: %w", err)
	}

	auditDetails := map[string]interface{}{
		"delegation_id": delegationID,
	}
	if err := s.repos.Audit.Log(ctx, string(domain.EntityDelegation), delegationID, &actorID, string(domain.ActionImpersonationDropped), auditDetails); err != nil {
		utils.Error("failed to log impersonation drop audit",
			"delegation_id", delegationID.String(),
			"error", err.Error(),
		)
	}

	actorResponse := actor.ToResponse()
	return &LoginResponse{
		User:         &actorResponse,
		AccessToken:  tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
		ExpiresIn:    int(tokenPair.ExpiresIn),
	}, nil
}

// ValidateToken validates an access token and returns user info.
func (s *authService) ValidateToken(ctx context.Context, token string) (*domain.UserResponse, error) {
	claims, err := s.jwtManager.ValidateAccessToken(token)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	// Get fresh user data from database
	user, err := s.repos.Users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}

	response := user.ToResponse()
	return &response, nil
}
