package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ProjectStatus defines valid project statuses.
type ProjectStatus string

const (
	ProjectActive   ProjectStatus = "active"
	ProjectArchived ProjectStatus = "archived"
)

// MemberRole defines valid roles within a project.
type MemberRole string

const (
	MemberViewer     MemberRole = "viewer"
	MemberEditor     MemberRole = "editor"
	MemberMaintainer MemberRole = "maintainer"
)

// Project represents a collaborative project. Members and Tags are navigation
// collections backed by link tables; changing them alone does not count as a
// modification of the project itself.
type Project struct {
	ID          uuid.UUID `json:"id" db:"id"`
	OwnerID     uuid.UUID `json:"owner_id" db:"owner_id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	Status      string    `json:"status" db:"status"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`

	Members []ProjectMember `json:"members,omitempty" db:"-"`
	Tags    []Tag           `json:"tags,omitempty" db:"-"`
}

// ProjectMember represents a membership link between a project and a user.
type ProjectMember struct {
	ProjectID uuid.UUID `json:"project_id" db:"project_id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Role      string    `json:"role" db:"role"`
	AddedAt   time.Time `json:"added_at" db:"added_at"`
}

// Tag represents a label attached to projects via a link table.
type Tag struct {
	ID   uuid.UUID `json:"id" db:"id"`
	Name string    `json:"name" db:"name"`
}

// CreateProjectRequest represents the data needed to create a project.
type CreateProjectRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// UpdateProjectRequest represents the data that can be updated for a project.
type UpdateProjectRequest struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
}

// AddMemberRequest represents the data needed to add a project member.
type AddMemberRequest struct {
	Role string `json:"role,omitempty"`
}

// SetTagsRequest represents the data needed to replace a project's tags.
type SetTagsRequest struct {
	Tags []string `json:"tags"`
}

// ProjectResponse represents a project in API responses.
type ProjectResponse struct {
	ID          uuid.UUID       `json:"id"`
	OwnerID     uuid.UUID       `json:"owner_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Members     []ProjectMember `json:"members,omitempty"`
	Tags        []Tag           `json:"tags,omitempty"`
}

// ToResponse converts a Project to a ProjectResponse.
func (p *Project) ToResponse() ProjectResponse {
	return ProjectResponse{
		ID:          p.ID,
		OwnerID:     p.OwnerID,
		Name:        p.Name,
		Description: p.Description,
		Status:      p.Status,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
		Members:     p.Members,
		Tags:        p.Tags,
	}
}

// Validate validates the project fields.
func (p *Project) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("project name is required")
	}
	if len(p.Name) > 128 {
		return fmt.Errorf("project name must be at most 128 characters")
	}
	if p.Status != string(ProjectActive) && p.Status != string(ProjectArchived) {
		return fmt.Errorf("invalid project status: %s", p.Status)
	}
	if p.OwnerID == uuid.Nil {
		return fmt.Errorf("project owner is required")
	}
	return nil
}

// Validate validates a create project request.
func (r *CreateProjectRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("project name is required")
	}
	if len(r.Name) > 128 {
		return fmt.Errorf("project name must be at most 128 characters")
	}
	for _, tag := range r.Tags {
		if strings.TrimSpace(tag) == "" {
			return fmt.Errorf("tags must not be empty")
		}
	}
	return nil
}

// Validate validates an update project request.
func (r *UpdateProjectRequest) Validate() error {
	if r.Name != "" && len(r.Name) > 128 {
		return fmt.Errorf("project name must be at most 128 characters")
	}
	if r.Status != "" && r.Status != string(ProjectActive) && r.Status != string(ProjectArchived) {
		return fmt.Errorf("invalid project status: %s", r.Status)
	}
	return nil
}

// Validate validates an add member request.
func (r *AddMemberRequest) Validate() error {
	switch MemberRole(r.Role) {
	case MemberViewer, MemberEditor, MemberMaintainer:
		return nil
	case "":
		return nil // defaults to viewer
	default:
		return fmt.Errorf("invalid member role: %s", r.Role)
	}
}

// Validate validates a set tags request.
func (r *SetTagsRequest) Validate() error {
	for _, tag := range r.Tags {
		if strings.TrimSpace(tag) == "" {
			return fmt.Errorf("tags must not be empty")
		}
	}
	return nil
}

// HasMember reports whether the given user is a member of the project.
func (p *Project) HasMember(userID uuid.UUID) bool {
	for _, m := range p.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// MemberRoleOf returns the role of the given member, if present.
func (p *Project) MemberRoleOf(userID uuid.UUID) (string, bool) {
	for _, m := range p.Members {
		if m.UserID == userID {
			return m.Role, true
		}
	}
	return "", false
}

// Snapshot returns the scalar fields tracked for change detection. Navigation
// collections are intentionally excluded.
func (p *Project) Snapshot() map[string]any {
	return map[string]any{
		"owner_id":    p.OwnerID,
		"name":        p.Name,
		"description": p.Description,
		"status":      p.Status,
	}
}

// Links returns the navigation collections of the project keyed by relation name.
func (p *Project) Links() map[string][]uuid.UUID {
	memberIDs := make([]uuid.UUID, 0, len(p.Members))
	for _, m := range p.Members {
		memberIDs = append(memberIDs, m.UserID)
	}
	tagIDs := make([]uuid.UUID, 0, len(p.Tags))
	for _, t := range p.Tags {
		tagIDs = append(tagIDs, t.ID)
	}
	return map[string][]uuid.UUID{
		RelationMembers: memberIDs,
		RelationTags:    tagIDs,
	}
}

// EntityID returns the aggregate identity of the project.
func (p *Project) EntityID() uuid.UUID {
	return p.ID
}

// EntityType returns the aggregate type of the project.
func (p *Project) EntityType() AggregateType {
	return AggregateProject
}

// Navigation relation names used in change sets.
const (
	RelationMembers = "members"
	RelationTags    = "tags"
)
