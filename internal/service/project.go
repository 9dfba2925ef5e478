package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aydin-o/go-teamdesk/internal/domain"
	"github.com/aydin-o/go-teamdesk/internal/repository"
	"github.com/aydin-o/go-teamdesk/internal/uow"
	"github.com/aydin-o/go-teamdesk/internal/utils"
)

// projectService implements the ProjectService interface. Every write runs in
// a unit of work: the rows, the recorded events and the audit entry commit or
// roll back together.
//
// Membership and tag links are navigation collections. Changing them records
// the specific relation event (ProjectMemberAdded, ProjectTagsChanged, ...) but
// never a ProjectUpdated event; that one is reserved for scalar field changes.
type projectService struct {
	repos *repository.Repositories
	uow   *uow.Manager
	cache CacheService
}

// NewProjectService creates a new project service.
func NewProjectService(repos *repository.Repositories, uowManager *uow.Manager, cache CacheService) ProjectService {
	return &projectService{
		repos: repos,
		uow:   uowManager,
		cache: cache,
	}
}

// Create creates a new project owned by the given user. In a delegated
// session ownerID is the subject and actorID the real user; audit rows and
// event metadata always carry the actor.
func (s *projectService) Create(ctx context.Context, ownerID, actorID uuid.UUID, req *domain.CreateProjectRequest) (*domain.ProjectResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	project := &domain.Project{
		OwnerID:     ownerID,
		Name:        req.Name,
		Description: req.Description,
		Status:      string(domain.ProjectActive),
	}

	err := s.uow.RunInTx(ctx, func(ctx context.Context, u *uow.UnitOfWork) error {
		if err := s.repos.Projects.CreateTx(ctx, u.Tx(), project); err != nil {
			return fmt.Errorf("failed to create project: %w", err)
		}

		if len(req.Tags) > 0 {
			tags, err := s.repos.Projects.ReplaceTagsTx(ctx, u.Tx(), project.ID, req.Tags)
			if err != nil {
				return fmt.Errorf("failed to set project tags: %w", err)
			}
			project.Tags = tags
		}

		if err := u.RecordNew(domain.AggregateProject, project.ID, domain.EventProjectCreated, &domain.ProjectCreatedEvent{
			ProjectID: project.ID,
			OwnerID:   ownerID,
			Name:      project.Name,
			Tags:      tagNames(project.Tags),
		}, metadataFromContext(ctx, actorID)); err != nil {
			return err
		}

		auditDetails := map[string]interface{}{
			"name": project.Name,
			"tags": tagNames(project.Tags),
		}
		return s.repos.Audit.LogTx(ctx, u.Tx(), string(domain.EntityProject), project.ID, &actorID, string(domain.ActionCreated), auditDetails)
	})
	if err != nil {
		return nil, err
	}

	response := project.ToResponse()
	return &response, nil
}

// GetByID retrieves a project visible to the requesting user.
func (s *projectService) GetByID(ctx context.Context, id, requestingUserID uuid.UUID) (*domain.ProjectResponse, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetCachedProject(ctx, id); err == nil && cached != nil {
			if !s.visibleTo(cached, requestingUserID) {
				return nil, fmt.Errorf("project not found")
			}
			return cached, nil
		}
	}

	project, err := s.repos.Projects.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("project not found: %w", err)
	}

	if project.OwnerID != requestingUserID && !project.HasMember(requestingUserID) {
		return nil, fmt.Errorf("project not found")
	}

	if s.cache != nil {
		if err := s.cache.CacheProject(ctx, project); err != nil {
			utils.Error("failed to cache project", "project_id", id.String(), "error", err.Error())
		}
	}

	response := project.ToResponse()
	return &response, nil
}

// List retrieves projects the user owns or is a member of.
func (s *projectService) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.ProjectResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	projects, err := s.repos.Projects.ListForUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	responses := make([]*domain.ProjectResponse, 0, len(projects))
	for _, project := range projects {
		response := project.ToResponse()
		responses = append(responses, &response)
	}
	return responses, nil
}

// Update updates a project's scalar fields. ProjectUpdated carries the old and
// new values of exactly the fields that changed.
func (s *projectService) Update(ctx context.Context, id, requestingUserID, actorID uuid.UUID, req *domain.UpdateProjectRequest) (*domain.ProjectResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var updated *domain.Project
	err := s.uow.RunInTx(ctx, func(ctx context.Context, u *uow.UnitOfWork) error {
		project, err := s.repos.Projects.GetByIDTx(ctx, u.Tx(), id)
		if err != nil {
			return fmt.Errorf("project not found: %w", err)
		}
		if !s.canManage(project, requestingUserID) {
			return fmt.Errorf("only the owner or a maintainer can update a project")
		}

		u.Track(project)

		if req.Name != "" {
			project.Name = req.Name
		}
		if req.Description != "" {
			project.Description = req.Description
		}
		if req.Status != "" {
			project.Status = req.Status
		}

		if err := project.Validate(); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}

		cs := u.Changes(project)
		if cs.IsEmpty() {
			updated = project
			return nil
		}

		project.UpdatedAt = time.Now()
		if err := s.repos.Projects.UpdateTx(ctx, u.Tx(), project); err != nil {
			return fmt.Errorf("failed to update project: %w", err)
		}

		if !cs.SuppressUpdate() {
			if err := u.RecordNew(domain.AggregateProject, project.ID, domain.EventProjectUpdated, &domain.ProjectUpdatedEvent{
				ProjectID: project.ID,
				OldData:   cs.OldFields(),
				NewData:   cs.NewFields(),
			}, metadataFromContext(ctx, actorID)); err != nil {
				return err
			}
		}

		if err := s.repos.Audit.LogTx(ctx, u.Tx(), string(domain.EntityProject), project.ID, &actorID, string(domain.ActionUpdated), cs.NewFields()); err != nil {
			return err
		}

		updated = project
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateProject(ctx, id)
	response := updated.ToResponse()
	return &response, nil
}

// Delete deletes a project. Only the owner may delete.
func (s *projectService) Delete(ctx context.Context, id, requestingUserID, actorID uuid.UUID) error {
	err := s.uow.RunInTx(ctx, func(ctx context.Context, u *uow.UnitOfWork) error {
		project, err := s.repos.Projects.GetByIDTx(ctx, u.Tx(), id)
		if err != nil {
			return fmt.Errorf("project not found: %w", err)
		}
		if project.OwnerID != requestingUserID {
			return fmt.Errorf("only the owner can delete a project")
		}

		if err := s.repos.Projects.DeleteTx(ctx, u.Tx(), id); err != nil {
			return fmt.Errorf("failed to delete project: %w", err)
		}

		if err := u.RecordNew(domain.AggregateProject, id, domain.EventProjectDeleted, &domain.ProjectDeletedEvent{
			ProjectID: id,
			OwnerID:   project.OwnerID,
		}, metadataFromContext(ctx, actorID)); err != nil {
			return err
		}

		return s.repos.Audit.LogTx(ctx, u.Tx(), string(domain.EntityProject), id, &actorID, string(domain.ActionDeleted), nil)
	})
	if err != nil {
		return err
	}

	s.invalidateProject(ctx, id)
	return nil
}

// AddMember adds a user to the project. The membership is a navigation link:
// it records ProjectMemberAdded but no ProjectUpdated.
func (s *projectService) AddMember(ctx context.Context, projectID, requestingUserID, actorID, memberID uuid.UUID, role string) error {
	if role == "" {
		role = string(domain.MemberViewer)
	}
	addReq := domain.AddMemberRequest{Role: role}
	if err := addReq.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	err := s.uow.RunInTx(ctx, func(ctx context.Context, u *uow.UnitOfWork) error {
		project, err := s.repos.Projects.GetByIDTx(ctx, u.Tx(), projectID)
		if err != nil {
			return fmt.Errorf("project not found: %w", err)
		}
		if !s.canManage(project, requestingUserID) {
			return fmt.Errorf("only the owner or a maintainer can manage members")
		}
		if memberID == project.OwnerID {
			return fmt.Errorf("the owner is not a member")
		}
		if project.HasMember(memberID) {
			return fmt.Errorf("user is already a member")
		}

		member, err := s.repos.Users.GetByID(ctx, memberID)
		if err != nil {
			return fmt.Errorf("user not found: %w", err)
		}
		if !member.IsActive {
			return fmt.Errorf("cannot add an inactive user")
		}

		u.Track(project)

		link := &domain.ProjectMember{
			ProjectID: projectID,
			UserID:    memberID,
			Role:      role,
		}
		if err := s.repos.Projects.AddMemberTx(ctx, u.Tx(), link); err != nil {
			return fmt.Errorf("failed to add member: %w", err)
		}
		project.Members = append(project.Members, *link)

		cs := u.Changes(project)
		if err := u.RecordNew(domain.AggregateProject, projectID, domain.EventProjectMemberAdded, &domain.ProjectMemberAddedEvent{
			ProjectID: projectID,
			UserID:    memberID,
			Role:      role,
		}, metadataFromContext(ctx, actorID)); err != nil {
			return err
		}
		if !cs.SuppressUpdate() {
			if err := u.RecordNew(domain.AggregateProject, projectID, domain.EventProjectUpdated, &domain.ProjectUpdatedEvent{
				ProjectID: projectID,
				OldData:   cs.OldFields(),
				NewData:   cs.NewFields(),
			}, metadataFromContext(ctx, actorID)); err != nil {
				return err
			}
		}

		auditDetails := map[string]interface{}{
			"member_id": memberID,
			"role":      role,
		}
		return s.repos.Audit.LogTx(ctx, u.Tx(), string(domain.EntityProject), projectID, &actorID, string(domain.ActionUpdated), auditDetails)
	})
	if err != nil {
		return err
	}

	s.invalidateProject(ctx, projectID)
	return nil
}

// RemoveMember removes a user from the project.
func (s *projectService) RemoveMember(ctx context.Context, projectID, requestingUserID, actorID, memberID uuid.UUID) error {
	err := s.uow.RunInTx(ctx, func(ctx context.Context, u *uow.UnitOfWork) error {
		project, err := s.repos.Projects.GetByIDTx(ctx, u.Tx(), projectID)
		if err != nil {
			return fmt.Errorf("project not found: %w", err)
		}
		// Members may remove themselves; anyone else needs manage rights
		if memberID != requestingUserID && !s.canManage(project, requestingUserID) {
			return fmt.Errorf("only the owner or a maintainer can manage members")
		}
		if !project.HasMember(memberID) {
			return fmt.Errorf("user is not a member")
		}

		u.Track(project)

		if err := s.repos.Projects.RemoveMemberTx(ctx, u.Tx(), projectID, memberID); err != nil {
			return fmt.Errorf("failed to remove member: %w", err)
		}
		remaining := project.Members[:0]
		for _, m := range project.Members {
			if m.UserID != memberID {
				remaining = append(remaining, m)
			}
		}
		project.Members = remaining

		cs := u.Changes(project)
		if err := u.RecordNew(domain.AggregateProject, projectID, domain.EventProjectMemberRemoved, &domain.ProjectMemberRemovedEvent{
			ProjectID: projectID,
			UserID:    memberID,
		}, metadataFromContext(ctx, actorID)); err != nil {
			return err
		}
		if !cs.SuppressUpdate() {
			if err := u.RecordNew(domain.AggregateProject, projectID, domain.EventProjectUpdated, &domain.ProjectUpdatedEvent{
				ProjectID: projectID,
				OldData:   cs.OldFields(),
				NewData:   cs.NewFields(),
			}, metadataFromContext(ctx, actorID)); err != nil {
				return err
			}
		}

		auditDetails := map[string]interface{}{
			"member_id": memberID,
		}
		return s.repos.Audit.LogTx(ctx, u.Tx(), string(domain.EntityProject), projectID, &actorID, string(domain.ActionUpdated), auditDetails)
	})
	if err != nil {
		return err
	}

	s.invalidateProject(ctx, projectID)
	return nil
}

// SetTags replaces the project's tag set. ProjectTagsChanged carries the link
// diff against the tracked snapshot.
func (s *projectService) SetTags(ctx context.Context, projectID, requestingUserID, actorID uuid.UUID, tags []string) (*domain.ProjectResponse, error) {
	setReq := domain.SetTagsRequest{Tags: tags}
	if err := setReq.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var updated *domain.Project
	err := s.uow.RunInTx(ctx, func(ctx context.Context, u *uow.UnitOfWork) error {
		project, err := s.repos.Projects.GetByIDTx(ctx, u.Tx(), projectID)
		if err != nil {
			return fmt.Errorf("project not found: %w", err)
		}
		if project.OwnerID != requestingUserID {
			if role, ok := project.MemberRoleOf(requestingUserID); !ok || role == string(domain.MemberViewer) {
				return fmt.Errorf("viewers cannot change tags")
			}
		}

		u.Track(project)

		resolved, err := s.repos.Projects.ReplaceTagsTx(ctx, u.Tx(), projectID, tags)
		if err != nil {
			return fmt.Errorf("failed to replace tags: %w", err)
		}
		project.Tags = resolved

		cs := u.Changes(project)
		if link, ok := cs.Links[domain.RelationTags]; ok {
			if err := u.RecordNew(domain.AggregateProject, projectID, domain.EventProjectTagsChanged, &domain.ProjectTagsChangedEvent{
				ProjectID:   projectID,
				AddedIDs:    link.Added,
				RemovedIDs:  link.Removed,
				CurrentTags: tagNames(resolved),
			}, metadataFromContext(ctx, actorID)); err != nil {
				return err
			}
		}
		if !cs.SuppressUpdate() {
			if err := u.RecordNew(domain.AggregateProject, projectID, domain.EventProjectUpdated, &domain.ProjectUpdatedEvent{
				ProjectID: projectID,
				OldData:   cs.OldFields(),
				NewData:   cs.NewFields(),
			}, metadataFromContext(ctx, actorID)); err != nil {
				return err
			}
		}

		auditDetails := map[string]interface{}{
			"tags": tagNames(resolved),
		}
		if err := s.repos.Audit.LogTx(ctx, u.Tx(), string(domain.EntityProject), projectID, &actorID, string(domain.ActionUpdated), auditDetails); err != nil {
			return err
		}

		updated = project
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateProject(ctx, projectID)
	response := updated.ToResponse()
	return &response, nil
}

// canManage reports whether the user may change the project or its members.
func (s *projectService) canManage(project *domain.Project, userID uuid.UUID) bool {
	if project.OwnerID == userID {
		return true
	}
	role, ok := project.MemberRoleOf(userID)
	return ok && role == string(domain.MemberMaintainer)
}

// visibleTo mirrors the ownership check for cached responses.
func (s *projectService) visibleTo(project *domain.ProjectResponse, userID uuid.UUID) bool {
	if project.OwnerID == userID {
		return true
	}
	for _, m := range project.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

func (s *projectService) invalidateProject(ctx context.Context, projectID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateProjectCache(ctx, projectID); err != nil {
		utils.Error("failed to invalidate project cache", "project_id", projectID.String(), "error", err.Error())
	}
}

func tagNames(tags []domain.Tag) []string {
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		names = append(names, t.Name)
	}
	return names
}
