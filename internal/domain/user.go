// Package domain contains the core business entities and types.
package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// User represents a user of the workspace.
type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"` // Never expose password hash
	Role         string    `json:"role" db:"role"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
	IsActive     bool      `json:"is_active" db:"is_active"`
}

// UserRole defines valid user roles.
type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

// CreateUserRequest represents the data needed to create a new user.
type CreateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

// UpdateUserRequest represents the data that can be updated for a user.
type UpdateUserRequest struct {
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	Role     string `json:"role,omitempty"`
	IsActive *bool  `json:"is_active,omitempty"`
}

// LoginRequest represents the data needed for user login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest represents the data needed for token refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// UserResponse represents a user in API responses (without sensitive data).
type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	IsActive  bool      `json:"is_active"`
}

// ToResponse converts a User to a UserResponse.
func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
		IsActive:  u.IsActive,
	}
}

// emailRegex is a simple email validation pattern.
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Validate validates the user fields.
func (u *User) Validate() error {
	if strings.TrimSpace(u.Username) == "" {
		return fmt.Errorf("username is required")
	}
	if len(u.Username) < 3 || len(u.Username) > 32 {
		return fmt.Errorf("username must be between 3 and 32 characters")
	}
	if !emailRegex.MatchString(u.Email) {
		return fmt.Errorf("invalid email format")
	}
	if u.Role != string(RoleUser) && u.Role != string(RoleAdmin) {
		return fmt.Errorf("invalid role: %s", u.Role)
	}
	return nil
}

// Validate validates a create user request.
func (r *CreateUserRequest) Validate() error {
	if strings.TrimSpace(r.Username) == "" {
		return fmt.Errorf("username is required")
	}
	if len(r.Username) < 3 || len(r.Username) > 32 {
		return fmt.Errorf("username must be between 3 and 32 characters")
	}
	if !emailRegex.MatchString(r.Email) {
		return fmt.Errorf("invalid email format")
	}
	if len(r.Password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}
	if r.Role != "" && r.Role != string(RoleUser) && r.Role != string(RoleAdmin) {
		return fmt.Errorf("invalid role: %s", r.Role)
	}
	return nil
}

// Validate validates an update user request.
func (r *UpdateUserRequest) Validate() error {
	if r.Email != "" && !emailRegex.MatchString(r.Email) {
		return fmt.Errorf("invalid email format")
	}
	if r.Username != "" && (len(r.Username) < 3 || len(r.Username) > 32) {
		return fmt.Errorf("username must be between 3 and 32 characters")
	}
	if r.Role != "" && r.Role != string(RoleUser) && r.Role != string(RoleAdmin) {
		return fmt.Errorf("invalid role: %s", r.Role)
	}
	return nil
}

// Validate validates a login request.
func (r *LoginRequest) Validate() error {
	if !emailRegex.MatchString(r.Email) {
		return fmt.Errorf("invalid email format")
	}
	if r.Password == "" {
		return fmt.Errorf("password is required")
	}
	return nil
}

// Validate validates a refresh request.
func (r *RefreshRequest) Validate() error {
	if r.RefreshToken == "" {
		return fmt.Errorf("refresh token is required")
	}
	return nil
}

// Snapshot returns the scalar fields tracked for change detection.
func (u *User) Snapshot() map[string]any {
	return map[string]any{
		"username":  u.Username,
		"email":     u.Email,
		"role":      u.Role,
		"is_active": u.IsActive,
	}
}

// Links returns the navigation collections of a user. Users have none.
func (u *User) Links() map[string][]uuid.UUID {
	return nil
}

// EntityID returns the aggregate identity of the user.
func (u *User) EntityID() uuid.UUID {
	return u.ID
}

// EntityType returns the aggregate type of the user.
func (u *User) EntityType() AggregateType {
	return AggregateUser
}
