package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DelegationStatus defines valid delegation statuses.
type DelegationStatus string

const (
	DelegationActive  DelegationStatus = "active"
	DelegationRevoked DelegationStatus = "revoked"
	DelegationExpired DelegationStatus = "expired"
)

// Delegation represents a grant by one user (the delegator) allowing another
// user (the delegate) to act with the delegator's identity inside a time window.
type Delegation struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	DelegatorID uuid.UUID  `json:"delegator_id" db:"delegator_id"`
	DelegateID  uuid.UUID  `json:"delegate_id" db:"delegate_id"`
	Note        string     `json:"note,omitempty" db:"note"`
	Status      string     `json:"status" db:"status"`
	StartsAt    time.Time  `json:"starts_at" db:"starts_at"`
	EndsAt      time.Time  `json:"ends_at" db:"ends_at"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// CreateDelegationRequest represents the data needed to grant a delegation.
type CreateDelegationRequest struct {
	DelegateID uuid.UUID `json:"delegate_id"`
	Note       string    `json:"note,omitempty"`
	StartsAt   time.Time `json:"starts_at"`
	EndsAt     time.Time `json:"ends_at"`
}

// ImpersonateRequest represents the data needed to start an impersonated session.
type ImpersonateRequest struct {
	DelegationID uuid.UUID `json:"delegation_id"`
}

// DelegationResponse represents a delegation in API responses.
type DelegationResponse struct {
	ID          uuid.UUID  `json:"id"`
	DelegatorID uuid.UUID  `json:"delegator_id"`
	DelegateID  uuid.UUID  `json:"delegate_id"`
	Note        string     `json:"note,omitempty"`
	Status      string     `json:"status"`
	StartsAt    time.Time  `json:"starts_at"`
	EndsAt      time.Time  `json:"ends_at"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ToResponse converts a Delegation to a DelegationResponse.
func (d *Delegation) ToResponse() DelegationResponse {
	return DelegationResponse{
		ID:          d.ID,
		DelegatorID: d.DelegatorID,
		DelegateID:  d.DelegateID,
		Note:        d.Note,
		Status:      d.Status,
		StartsAt:    d.StartsAt,
		EndsAt:      d.EndsAt,
		RevokedAt:   d.RevokedAt,
		CreatedAt:   d.CreatedAt,
	}
}

// Validate validates the delegation fields.
func (d *Delegation) Validate() error {
	if d.DelegatorID == uuid.Nil {
		return fmt.Errorf("delegator is required")
	}
	if d.DelegateID == uuid.Nil {
		return fmt.Errorf("delegate is required")
	}
	if d.DelegatorID == d.DelegateID {
		return fmt.Errorf("cannot delegate to yourself")
	}
	if !d.EndsAt.After(d.StartsAt) {
		return fmt.Errorf("delegation must end after it starts")
	}
	switch DelegationStatus(d.Status) {
	case DelegationActive, DelegationRevoked, DelegationExpired:
		return nil
	default:
		return fmt.Errorf("invalid delegation status: %s", d.Status)
	}
}

// Validate validates a create delegation request.
func (r *CreateDelegationRequest) Validate() error {
	if r.DelegateID == uuid.Nil {
		return fmt.Errorf("delegate_id is required")
	}
	if r.StartsAt.IsZero() || r.EndsAt.IsZero() {
		return fmt.Errorf("starts_at and ends_at are required")
	}
	if !r.EndsAt.After(r.StartsAt) {
		return fmt.Errorf("delegation must end after it starts")
	}
	if len(r.Note) > 256 {
		return fmt.Errorf("note must be at most 256 characters")
	}
	return nil
}

// Validate validates an impersonate request.
func (r *ImpersonateRequest) Validate() error {
	if r.DelegationID == uuid.Nil {
		return fmt.Errorf("delegation_id is required")
	}
	return nil
}

// UsableAt reports whether the delegation permits impersonation at the given
// instant: it must be active and the instant must fall inside the window.
func (d *Delegation) UsableAt(at time.Time) bool {
	if d.Status != string(DelegationActive) {
		return false
	}
	return !at.Before(d.StartsAt) && at.Before(d.EndsAt)
}

// Snapshot returns the scalar fields tracked for change detection.
func (d *Delegation) Snapshot() map[string]any {
	return map[string]any{
		"delegator_id": d.DelegatorID,
		"delegate_id":  d.DelegateID,
		"note":         d.Note,
		"status":       d.Status,
		"starts_at":    d.StartsAt,
		"ends_at":      d.EndsAt,
	}
}

// Links returns the navigation collections of a delegation. Delegations have none.
func (d *Delegation) Links() map[string][]uuid.UUID {
	return nil
}

// EntityID returns the aggregate identity of the delegation.
func (d *Delegation) EntityID() uuid.UUID {
	return d.ID
}

// EntityType returns the aggregate type of the delegation.
func (d *Delegation) EntityType() AggregateType {
	return AggregateDelegation
}
