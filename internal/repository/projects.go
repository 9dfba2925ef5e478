package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aydin-o/go-teamdesk/internal/domain"
)

// projectsRepo implements the ProjectsRepo interface.
type projectsRepo struct {
	db *pgxpool.Pool
}

// NewProjectsRepo creates a new projects repository.
func NewProjectsRepo(db *pgxpool.Pool) ProjectsRepo {
	return &projectsRepo{db: db}
}

const projectColumns = `id, owner_id, name, description, status, created_at, updated_at`

// CreateTx creates a new project within a transaction.
func (r *projectsRepo) CreateTx(ctx context.Context, tx DBTX, project *domain.Project) error {
	query := `
		INSERT INTO projects (id, owner_id, name, description, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	now := time.Now()
	if project.ID == uuid.Nil {
		project.ID = uuid.New()
	}
	if project.Status == "" {
		project.Status = string(domain.ProjectActive)
	}
	project.CreatedAt = now
	project.UpdatedAt = now

	_, err := tx.Exec(ctx, query, project.ID, project.OwnerID, project.Name, project.Description, project.Status, project.CreatedAt, project.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	return nil
}

// GetByID retrieves a project with its members and tags loaded.
func (r *projectsRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	return r.GetByIDTx(ctx, r.db, id)
}

// GetByIDTx retrieves a project within a transaction, with links loaded.
func (r *projectsRepo) GetByIDTx(ctx context.Context, tx DBTX, id uuid.UUID) (*domain.Project, error) {
	query := `
		SELECT ` + projectColumns + `
		FROM projects
		WHERE id = $1`

	var project domain.Project
	err := tx.QueryRow(ctx, query, id).Scan(
		&project.ID,
		&project.OwnerID,
		&project.Name,
		&project.Description,
		&project.Status,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	if project.Members, err = r.loadMembers(ctx, tx, id); err != nil {
		return nil, err
	}
	if project.Tags, err = r.loadTags(ctx, tx, id); err != nil {
		return nil, err
	}

	return &project, nil
}

// ListForUser retrieves projects the user owns or is a member of.
func (r *projectsRepo) ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Project, error) {
	query := `
		SELECT DISTINCT p.id, p.owner_id, p.name, p.description, p.status, p.created_at, p.updated_at
		FROM projects p
		LEFT JOIN project_members pm ON pm.project_id = p.id
		WHERE p.owner_id = $1 OR pm.user_id = $1
		ORDER BY p.created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*domain.Project
	for rows.Next() {
		var project domain.Project
		if err := rows.Scan(
			&project.ID,
			&project.OwnerID,
			&project.Name,
			&project.Description,
			&project.Status,
			&project.CreatedAt,
			&project.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, &project)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}

	return projects, nil
}

// UpdateTx updates a project's scalar columns within a transaction.
func (r *projectsRepo) UpdateTx(ctx context.Context, tx DBTX, project *domain.Project) error {
	query := `
		UPDATE projects
		SET name = $2, description = $3, status = $4, updated_at = $5
		WHERE id = $1`

	project.UpdatedAt = time.Now()

	tag, err := tx.Exec(ctx, query, project.ID, project.Name, project.Description, project.Status, project.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("project %s: %w", project.ID, ErrNotFound)
	}

	return nil
}

// DeleteTx deletes a project and its links within a transaction.
func (r *projectsRepo) DeleteTx(ctx context.Context, tx DBTX, id uuid.UUID) error {
	// Link tables cascade via foreign keys; delete the root row.
	tag, err := tx.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("project %s: %w", id, ErrNotFound)
	}

	return nil
}

// AddMemberTx inserts a membership link within a transaction.
func (r *projectsRepo) AddMemberTx(ctx context.Context, tx DBTX, member *domain.ProjectMember) error {
	query := `
		INSERT INTO project_members (project_id, user_id, role, added_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (project_id, user_id) DO UPDATE SET role = EXCLUDED.role`

	if member.Role == "" {
		member.Role = string(domain.MemberViewer)
	}
	member.AddedAt = time.Now()

	_, err := tx.Exec(ctx, query, member.ProjectID, member.UserID, member.Role, member.AddedAt)
	if err != nil {
		return fmt.Errorf("failed to add project member: %w", err)
	}

	return nil
}

// RemoveMemberTx deletes a membership link within a transaction.
func (r *projectsRepo) RemoveMemberTx(ctx context.Context, tx DBTX, projectID, userID uuid.UUID) error {
	tag, err := tx.Exec(ctx, `DELETE FROM project_members WHERE project_id = $1 AND user_id = $2`, projectID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove project member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("project member: %w", ErrNotFound)
	}

	return nil
}

// ReplaceTagsTx replaces the project's tag set within a transaction, creating
// missing tags, and returns the resolved tag rows.
func (r *projectsRepo) ReplaceTagsTx(ctx context.Context, tx DBTX, projectID uuid.UUID, names []string) ([]domain.Tag, error) {
	tags := make([]domain.Tag, 0, len(names))
	seen := make(map[string]struct{}, len(names))

	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		var tag domain.Tag
		err := tx.QueryRow(ctx, `
			INSERT INTO tags (id, name)
			VALUES ($1, $2)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id, name`, uuid.New(), name).Scan(&tag.ID, &tag.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert tag %q: %w", name, err)
		}
		tags = append(tags, tag)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM project_tags WHERE project_id = $1`, projectID); err != nil {
		return nil, fmt.Errorf("failed to clear project tags: %w", err)
	}

	for _, tag := range tags {
		if _, err := tx.Exec(ctx, `
			INSERT INTO project_tags (project_id, tag_id)
			VALUES ($1, $2)`, projectID, tag.ID); err != nil {
			return nil, fmt.Errorf("failed to link tag %q: %w", tag.Name, err)
		}
	}

	return tags, nil
}

// CountForUser returns the number of projects visible to the user.
func (r *projectsRepo) CountForUser(ctx context.Context, userID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(DISTINCT p.id)
		FROM projects p
		LEFT JOIN project_members pm ON pm.project_id = p.id
		WHERE p.owner_id = $1 OR pm.user_id = $1`

	var count int
	if err := r.db.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count projects: %w", err)
	}
	return count, nil
}

// loadMembers loads the membership links of a project.
func (r *projectsRepo) loadMembers(ctx context.Context, tx DBTX, projectID uuid.UUID) ([]domain.ProjectMember, error) {
	rows, err := tx.Query(ctx, `
		SELECT project_id, user_id, role, added_at
		FROM project_members
		WHERE project_id = $1
		ORDER BY added_at ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project members: %w", err)
	}
	defer rows.Close()

	var members []domain.ProjectMember
	for rows.Next() {
		var m domain.ProjectMember
		if err := rows.Scan(&m.ProjectID, &m.UserID, &m.Role, &m.AddedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project member: %w", err)
		}
		members = append(members, m)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating project members: %w", err)
	}

	return members, nil
}

// loadTags loads the tags linked to a project.
func (r *projectsRepo) loadTags(ctx context.Context, tx DBTX, projectID uuid.UUID) ([]domain.Tag, error) {
	rows, err := tx.Query(ctx, `
		SELECT t.id, t.name
		FROM tags t
		JOIN project_tags pt ON pt.tag_id = t.id
		WHERE pt.project_id = $1
		ORDER BY t.name ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project tags: %w", err)
	}
	defer rows.Close()

	var tags []domain.Tag
	for rows.Next() {
		var t domain.Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, t)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tags: %w", err)
	}

	return tags, nil
}
