package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditLog represents an audit log entry. ActorID records who actually
// performed the action; during a delegated session it differs from the
// subject whose identity the action was performed under.
type AuditLog struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	EntityType string          `json:"entity_type" db:"entity_type"`
	EntityID   uuid.UUID       `json:"entity_id" db:"entity_id"`
	ActorID    *uuid.UUID      `json:"actor_id,omitempty" db:"actor_id"`
	Action     string          `json:"action" db:"action"`
	Details    json.RawMessage `json:"details,omitempty" db:"details"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

// EntityType defines valid entity types for audit logs.
type EntityType string

const (
	// EntityUser represents the user entity type for audit logs
	EntityUser EntityType = "user"
	// EntityProject represents the project entity type for audit logs
	EntityProject EntityType = "project"
	// EntityDelegation represents the delegation entity type for audit logs
	EntityDelegation EntityType = "delegation"
)

// AuditAction defines common audit actions.
type AuditAction string

const (
	// ActionCreated represents a create action for audit logs
	ActionCreated AuditAction = "created"
	// ActionUpdated represents an update action for audit logs
	ActionUpdated AuditAction = "updated"
	// ActionDeleted represents a delete action for audit logs
	ActionDeleted AuditAction = "deleted"
	// ActionGranted represents a delegation grant for audit logs
	ActionGranted AuditAction = "granted"
	// ActionRevoked represents a delegation revocation for audit logs
	ActionRevoked AuditAction = "revoked"
	// ActionImpersonated represents the start of a delegated session
	ActionImpersonated AuditAction = "impersonated"
	// ActionImpersonationDropped represents the end of a delegated session
	ActionImpersonationDropped AuditAction = "impersonation_dropped"
)

// AuditLogFilter represents filtering options for audit log queries.
type AuditLogFilter struct {
	EntityType string     `json:"entity_type,omitempty"`
	EntityID   *uuid.UUID `json:"entity_id,omitempty"`
	ActorID    *uuid.UUID `json:"actor_id,omitempty"`
	Action     string     `json:"action,omitempty"`
	Since      *time.Time `json:"since,omitempty"`
	Until      *time.Time `json:"until,omitempty"`
	Limit      int        `json:"limit,omitempty"`
	Offset     int        `json:"offset,omitempty"`
}

// AuditLogResponse represents an audit log in API responses.
type AuditLogResponse struct {
	ID         uuid.UUID       `json:"id"`
	EntityType string          `json:"entity_type"`
	EntityID   uuid.UUID       `json:"entity_id"`
	ActorID    *uuid.UUID      `json:"actor_id,omitempty"`
	Action     string          `json:"action"`
	Details    json.RawMessage `json:"details,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ToResponse converts an AuditLog to an AuditLogResponse.
func (a *AuditLog) ToResponse() AuditLogResponse {
	return AuditLogResponse{
		ID:         a.ID,
		EntityType: a.EntityType,
		EntityID:   a.EntityID,
		ActorID:    a.ActorID,
		Action:     a.Action,
		Details:    a.Details,
		CreatedAt:  a.CreatedAt,
	}
}
