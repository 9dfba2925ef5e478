package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

// jsonCodec is used for event payload (de)serialization on the hot path.
var jsonCodec = jsoniter.ConfigCompatibleWithStandardLibrary

// Event represents a domain event stored in the transactional outbox. Seq is
// assigned by the database on insert and defines the global publication order.
type Event struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	Seq           int64      `json:"seq" db:"seq"`
	AggregateType string     `json:"aggregate_type" db:"aggregate_type"`
	AggregateID   uuid.UUID  `json:"aggregate_id" db:"aggregate_id"`
	EventType     string     `json:"event_type" db:"event_type"`
	Payload       []byte     `json:"payload" db:"payload"`
	Metadata      []byte     `json:"metadata,omitempty" db:"metadata"`
	RecordedAt    time.Time  `json:"recorded_at" db:"recorded_at"`
	PublishedAt   *time.Time `json:"published_at,omitempty" db:"published_at"`
}

// AggregateType defines valid aggregate types.
type AggregateType string

const (
	AggregateUser       AggregateType = "user"
	AggregateProject    AggregateType = "project"
	AggregateDelegation AggregateType = "delegation"
)

// EventType defines valid event types.
type EventType string

const (
	// User events
	EventUserRegistered EventType = "UserRegistered"
	EventUserUpdated    EventType = "UserUpdated"
	EventUserDeleted    EventType = "UserDeleted"

	// Project events
	EventProjectCreated       EventType = "ProjectCreated"
	EventProjectUpdated       EventType = "ProjectUpdated"
	EventProjectDeleted       EventType = "ProjectDeleted"
	EventProjectMemberAdded   EventType = "ProjectMemberAdded"
	EventProjectMemberRemoved EventType = "ProjectMemberRemoved"
	EventProjectTagsChanged   EventType = "ProjectTagsChanged"

	// Delegation events
	EventDelegationGranted EventType = "DelegationGranted"
	EventDelegationRevoked EventType = "DelegationRevoked"
	EventDelegationExpired EventType = "DelegationExpired"
)

// UserRegisteredEvent carries the data of a new registration.
type UserRegisteredEvent struct {
	UserID   uuid.UUID `json:"user_id"`
	Email    string    `json:"email"`
	Username string    `json:"username"`
	Role     string    `json:"role"`
}

// UserUpdatedEvent carries old and new scalar field values of an updated user.
type UserUpdatedEvent struct {
	UserID  uuid.UUID      `json:"user_id"`
	OldData map[string]any `json:"old_data"`
	NewData map[string]any `json:"new_data"`
}

// UserDeletedEvent carries the identity of a deactivated user.
type UserDeletedEvent struct {
	UserID uuid.UUID `json:"user_id"`
}

// ProjectCreatedEvent carries the data of a new project.
type ProjectCreatedEvent struct {
	ProjectID uuid.UUID `json:"project_id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Name      string    `json:"name"`
	Tags      []string  `json:"tags,omitempty"`
}

// ProjectUpdatedEvent carries old and new scalar field values of an updated
// project. It is only emitted when scalar fields changed; membership or tag
// changes alone do not produce it.
type ProjectUpdatedEvent struct {
	ProjectID uuid.UUID      `json:"project_id"`
	OldData   map[string]any `json:"old_data"`
	NewData   map[string]any `json:"new_data"`
}

// ProjectDeletedEvent carries the identity of a deleted project.
type ProjectDeletedEvent struct {
	ProjectID uuid.UUID `json:"project_id"`
	OwnerID   uuid.UUID `json:"owner_id"`
}

// ProjectMemberAddedEvent carries a membership addition.
type ProjectMemberAddedEvent struct {
	ProjectID uuid.UUID `json:"project_id"`
	UserID    uuid.UUID `json:"user_id"`
	Role      string    `json:"role"`
}

// ProjectMemberRemovedEvent carries a membership removal.
type ProjectMemberRemovedEvent struct {
	ProjectID uuid.UUID `json:"project_id"`
	UserID    uuid.UUID `json:"user_id"`
}

// ProjectTagsChangedEvent carries a tag set replacement.
type ProjectTagsChangedEvent struct {
	ProjectID   uuid.UUID   `json:"project_id"`
	AddedIDs    []uuid.UUID `json:"added_ids,omitempty"`
	RemovedIDs  []uuid.UUID `json:"removed_ids,omitempty"`
	CurrentTags []string    `json:"current_tags"`
}

// DelegationGrantedEvent carries a new delegation grant.
type DelegationGrantedEvent struct {
	DelegationID uuid.UUID `json:"delegation_id"`
	DelegatorID  uuid.UUID `json:"delegator_id"`
	DelegateID   uuid.UUID `json:"delegate_id"`
	StartsAt     time.Time `json:"starts_at"`
	EndsAt       time.Time `json:"ends_at"`
}

// DelegationRevokedEvent carries a delegation revocation.
type DelegationRevokedEvent struct {
	DelegationID uuid.UUID `json:"delegation_id"`
	DelegatorID  uuid.UUID `json:"delegator_id"`
	DelegateID   uuid.UUID `json:"delegate_id"`
	RevokedBy    uuid.UUID `json:"revoked_by"`
}

// DelegationExpiredEvent carries an automatic delegation expiry.
type DelegationExpiredEvent struct {
	DelegationID uuid.UUID `json:"delegation_id"`
	DelegatorID  uuid.UUID `json:"delegator_id"`
	DelegateID   uuid.UUID `json:"delegate_id"`
	EndedAt      time.Time `json:"ended_at"`
}

// EventMetadata carries request-scoped context alongside an event. ActorID is
// the authenticated user who actually performed the action, which differs from
// the subject during a delegated session.
type EventMetadata struct {
	CorrelationID string         `json:"correlation_id,omitempty"`
	ActorID       string         `json:"actor_id,omitempty"`
	UserAgent     string         `json:"user_agent,omitempty"`
	IP            string         `json:"ip,omitempty"`
	Extra         map[string]any `json:"extra,omitempty"`
}

// NewEvent creates a new outbox event with a serialized payload.
func NewEvent(aggregateType AggregateType, aggregateID uuid.UUID, eventType EventType, payload any, metadata *EventMetadata) (*Event, error) {
	payloadBytes, err := jsonCodec.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}

	var metadataBytes []byte
	if metadata != nil {
		metadataBytes, err = jsonCodec.Marshal(metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal event metadata: %w", err)
		}
	}

	return &Event{
		ID:            uuid.New(),
		AggregateType: string(aggregateType),
		AggregateID:   aggregateID,
		EventType:     string(eventType),
		Payload:       payloadBytes,
		Metadata:      metadataBytes,
		RecordedAt:    time.Now(),
	}, nil
}

// UnmarshalPayload deserializes the event payload into the provided target.
func (e *Event) UnmarshalPayload(target any) error {
	return jsonCodec.Unmarshal(e.Payload, target)
}

// UnmarshalMetadata deserializes the event metadata.
func (e *Event) UnmarshalMetadata() (*EventMetadata, error) {
	if len(e.Metadata) == 0 {
		return nil, nil
	}

	var metadata EventMetadata
	if err := jsonCodec.Unmarshal(e.Metadata, &metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event metadata: %w", err)
	}

	return &metadata, nil
}

// EventFilter represents filtering options for outbox event queries.
type EventFilter struct {
	AggregateType string     `json:"aggregate_type,omitempty"`
	AggregateID   *uuid.UUID `json:"aggregate_id,omitempty"`
	EventType     string     `json:"event_type,omitempty"`
	Since         *time.Time `json:"since,omitempty"`
	Until         *time.Time `json:"until,omitempty"`
	Limit         int        `json:"limit,omitempty"`
	Offset        int        `json:"offset,omitempty"`
}
