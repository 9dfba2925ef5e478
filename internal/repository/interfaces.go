// Package repository defines interfaces for data access.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/aydin-o/go-teamdesk/internal/domain"
)

// DBTX is the subset of pgx operations repositories need. Both *pgxpool.Pool
// and pgx.Tx satisfy it, so the Tx-suffixed methods run inside a unit of work
// while plain methods run on the pool.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UsersRepo defines the interface for user data operations.
type UsersRepo interface {
	// Create creates a new user.
	Create(ctx context.Context, user *domain.User) error

	// CreateTx creates a new user within a transaction.
	CreateTx(ctx context.Context, tx DBTX, user *domain.User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// GetByEmail retrieves a user by email.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// GetByUsername retrieves a user by username.
	GetByUsername(ctx context.Context, username string) (*domain.User, error)

	// UpdateTx updates an existing user within a transaction.
	UpdateTx(ctx context.Context, tx DBTX, user *domain.User) error

	// DeleteTx deactivates a user within a transaction.
	DeleteTx(ctx context.Context, tx DBTX, id uuid.UUID) error

	// ListPaginated retrieves users with pagination.
	ListPaginated(ctx context.Context, limit, offset int) ([]*domain.User, error)

	// Count returns the total number of users.
	Count(ctx context.Context) (int, error)
}

// ProjectsRepo defines the interface for project data operations, including
// the member and tag link tables.
type ProjectsRepo interface {
	// CreateTx creates a new project within a transaction.
	CreateTx(ctx context.Context, tx DBTX, project *domain.Project) error

	// GetByID retrieves a project with its members and tags loaded.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error)

	// GetByIDTx retrieves a project within a transaction, with links loaded.
	GetByIDTx(ctx context.Context, tx DBTX, id uuid.UUID) (*domain.Project, error)

	// ListForUser retrieves projects the user owns or is a member of.
	ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Project, error)

	// UpdateTx updates a project's scalar columns within a transaction.
	UpdateTx(ctx context.Context, tx DBTX, project *domain.Project) error

	// DeleteTx deletes a project and its links within a transaction.
	DeleteTx(ctx context.Context, tx DBTX, id uuid.UUID) error

	// AddMemberTx inserts a membership link within a transaction.
	AddMemberTx(ctx context.Context, tx DBTX, member *domain.ProjectMember) error

	// RemoveMemberTx deletes a membership link within a transaction.
	RemoveMemberTx(ctx context.Context, tx DBTX, projectID, userID uuid.UUID) error

	// ReplaceTagsTx replaces the project's tag set within a transaction,
	// creating missing tags, and returns the resolved tag rows.
	ReplaceTagsTx(ctx context.Context, tx DBTX, projectID uuid.UUID, names []string) ([]domain.Tag, error)

	// CountForUser returns the number of projects visible to the user.
	CountForUser(ctx context.Context, userID uuid.UUID) (int, error)
}

// DelegationsRepo defines the interface for identity delegation operations.
type DelegationsRepo interface {
	// CreateTx creates a new delegation within a transaction.
	CreateTx(ctx context.Context, tx DBTX, delegation *domain.Delegation) error

	// GetByID retrieves a delegation by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Delegation, error)

	// ListIssued retrieves delegations granted by a user.
	ListIssued(ctx context.Context, delegatorID uuid.UUID, includeInactive bool) ([]*domain.Delegation, error)

	// ListReceived retrieves delegations granted to a user.
	ListReceived(ctx context.Context, delegateID uuid.UUID, includeInactive bool) ([]*domain.Delegation, error)

	// HasActiveOverlap reports whether an active delegation between the pair
	// overlaps the given window.
	HasActiveOverlap(ctx context.Context, delegatorID, delegateID uuid.UUID, startsAt, endsAt time.Time) (bool, error)

	// HasActiveOverlapTx is the transactional variant used by Grant. It
	// serializes concurrent grants for the same pair with an advisory
	// transaction lock before checking, so the answer stays true until the
	// transaction ends.
	HasActiveOverlapTx(ctx context.Context, tx DBTX, delegatorID, delegateID uuid.UUID, startsAt, endsAt time.Time) (bool, error)

	// RevokeTx marks a delegation revoked within a transaction.
	RevokeTx(ctx context.Context, tx DBTX, id uuid.UUID, revokedAt time.Time) error

	// ListDue retrieves active delegations whose window has ended.
	ListDue(ctx context.Context, asOf time.Time, limit int) ([]*domain.Delegation, error)

	// CountActive returns the number of delegations currently active.
	CountActive(ctx context.Context) (int, error)

	// MarkExpiredTx marks a delegation expired within a transaction.
	MarkExpiredTx(ctx context.Context, tx DBTX, id uuid.UUID) error
}

// OutboxRepo defines the interface for the transactional event outbox.
type OutboxRepo interface {
	// AppendTx appends events within an open transaction, preserving order.
	// The database assigns each event its global sequence number.
	AppendTx(ctx context.Context, tx pgx.Tx, events []*domain.Event) error

	// FetchUnpublished retrieves unpublished events in sequence order.
	FetchUnpublished(ctx context.Context, limit int) ([]*domain.Event, error)

	// MarkPublished stamps the given events as published.
	MarkPublished(ctx context.Context, ids []uuid.UUID) error

	// List retrieves events with filtering, in sequence order.
	List(ctx context.Context, filter *domain.EventFilter) ([]*domain.Event, error)

	// Count returns the number of events matching the filter.
	Count(ctx context.Context, filter *domain.EventFilter) (int, error)

	// Backlog returns the number of unpublished events.
	Backlog(ctx context.Context) (int, error)
}

// AuditRepo defines the interface for audit log operations.
type AuditRepo interface {
	// Log creates a new audit log entry.
	Log(ctx context.Context, entityType string, entityID uuid.UUID, actorID *uuid.UUID, action string, details any) error

	// LogTx creates a new audit log entry within a transaction.
	LogTx(ctx context.Context, tx DBTX, entityType string, entityID uuid.UUID, actorID *uuid.UUID, action string, details any) error

	// GetByID retrieves an audit log by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.AuditLog, error)

	// List retrieves audit logs with filtering.
	List(ctx context.Context, filter *domain.AuditLogFilter) ([]*domain.AuditLog, error)

	// Count returns the total number of audit logs matching the filter.
	Count(ctx context.Context, filter *domain.AuditLogFilter) (int, error)
}

// Repositories aggregates all repository interfaces.
type Repositories struct {
	Users       UsersRepo
	Projects    ProjectsRepo
	Delegations DelegationsRepo
	Outbox      OutboxRepo
	Audit       AuditRepo
}
