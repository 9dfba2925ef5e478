package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestUserMarshalUnmarshal(t *testing.T) {
	user := User{
		ID:       uuid.New(),
		Username: "testuser",
		Email:    "test@example.com",
		Role:     "user",
	}

	// Marshal to JSON
	data, err := json.Marshal(user)
	if err != nil {
		t.Fatalf("Failed to marshal user: %v", err)
	}

	// Unmarshal from JSON
	var unmarshaled User
	err = json.Unmarshal(data, &unmarshaled)
	if err != nil {
		t.Fatalf("Failed to unmarshal user: %v", err)
	}

	if user.ID != unmarshaled.ID {
		t.Errorf("ID mismatch: %v != %v", user.ID, unmarshaled.ID)
	}
	if user.Username != unmarshaled.Username {
		t.Errorf("Username mismatch: %v != %v", user.Username, unmarshaled.Username)
	}
	if user.Email != unmarshaled.Email {
		t.Errorf("Email mismatch: %v != %v", user.Email, unmarshaled.Email)
	}
}

func TestUserValidation(t *testing.T) {
	tests := []struct {
		name    string
		user    User
		wantErr bool
	}{
		{
			name: "valid user",
			user: User{Username: "validuser", Email: "valid@example.com", Role: "user"},
		},
		{
			name:    "empty username",
			user:    User{Username: "", Email: "valid@example.com", Role: "user"},
			wantErr: true,
		},
		{
			name:    "short username",
			user:    User{Username: "ab", Email: "valid@example.com", Role: "user"},
			wantErr: true,
		},
		{
			name:    "invalid email",
			user:    User{Username: "validuser", Email: "not-an-email", Role: "user"},
			wantErr: true,
		},
		{
			name:    "invalid role",
			user:    User{Username: "validuser", Email: "valid@example.com", Role: "superadmin"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.user.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestProjectValidation(t *testing.T) {
	owner := uuid.New()

	tests := []struct {
		name    string
		project Project
		wantErr bool
	}{
		{
			name:    "valid project",
			project: Project{OwnerID: owner, Name: "Roadmap", Status: "active"},
		},
		{
			name:    "empty name",
			project: Project{OwnerID: owner, Name: "  ", Status: "active"},
			wantErr: true,
		},
		{
			name:    "invalid status",
			project: Project{OwnerID: owner, Name: "Roadmap", Status: "paused"},
			wantErr: true,
		},
		{
			name:    "missing owner",
			project: Project{Name: "Roadmap", Status: "active"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.project.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDelegationValidation(t *testing.T) {
	delegator := uuid.New()
	delegate := uuid.New()
	now := time.Now()

	t.Run("valid delegation", func(t *testing.T) {
		d := Delegation{
			DelegatorID: delegator,
			DelegateID:  delegate,
			Status:      string(DelegationActive),
			StartsAt:    now,
			EndsAt:      now.Add(24 * time.Hour),
		}
		if err := d.Validate(); err != nil {
			t.Errorf("Expected valid delegation, got error: %v", err)
		}
	})

	t.Run("self delegation rejected", func(t *testing.T) {
		d := Delegation{
			DelegatorID: delegator,
			DelegateID:  delegator,
			Status:      string(DelegationActive),
			StartsAt:    now,
			EndsAt:      now.Add(24 * time.Hour),
		}
		if err := d.Validate(); err == nil {
			t.Error("Expected error for self delegation")
		}
	})

	t.Run("window must end after start", func(t *testing.T) {
		d := Delegation{
			DelegatorID: delegator,
			DelegateID:  delegate,
			Status:      string(DelegationActive),
			StartsAt:    now,
			EndsAt:      now,
		}
		if err := d.Validate(); err == nil {
			t.Error("Expected error for empty window")
		}
	})
}

func TestDelegationUsableAt(t *testing.T) {
	now := time.Now()
	d := Delegation{
		DelegatorID: uuid.New(),
		DelegateID:  uuid.New(),
		Status:      string(DelegationActive),
		StartsAt:    now.Add(-time.Hour),
		EndsAt:      now.Add(time.Hour),
	}

	if !d.UsableAt(now) {
		t.Error("Delegation should be usable inside its window")
	}
	if d.UsableAt(now.Add(2 * time.Hour)) {
		t.Error("Delegation should not be usable after its window")
	}
	if d.UsableAt(now.Add(-2 * time.Hour)) {
		t.Error("Delegation should not be usable before its window")
	}

	d.Status = string(DelegationRevoked)
	if d.UsableAt(now) {
		t.Error("Revoked delegation should not be usable")
	}
}

func TestNewEventSerializesPayload(t *testing.T) {
	projectID := uuid.New()
	payload := &ProjectCreatedEvent{
		ProjectID: projectID,
		OwnerID:   uuid.New(),
		Name:      "Roadmap",
	}

	event, err := NewEvent(AggregateProject, projectID, EventProjectCreated, payload, &EventMetadata{
		CorrelationID: "corr-1",
		ActorID:       uuid.New().String(),
	})
	if err != nil {
		t.Fatalf("Failed to create event: %v", err)
	}

	if event.EventType != string(EventProjectCreated) {
		t.Errorf("Expected event type %s, got %s", EventProjectCreated, event.EventType)
	}
	if event.PublishedAt != nil {
		t.Error("New events must not be marked published")
	}

	var decoded ProjectCreatedEvent
	if err := event.UnmarshalPayload(&decoded); err != nil {
		t.Fatalf("Failed to unmarshal payload: %v", err)
	}
	if decoded.ProjectID != projectID {
		t.Errorf("ProjectID mismatch: %v != %v", decoded.ProjectID, projectID)
	}

	metadata, err := event.UnmarshalMetadata()
	if err != nil {
		t.Fatalf("Failed to unmarshal metadata: %v", err)
	}
	if metadata.CorrelationID != "corr-1" {
		t.Errorf("Expected correlation ID corr-1, got %s", metadata.CorrelationID)
	}
}
