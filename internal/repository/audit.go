package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aydin-o/go-teamdesk/internal/domain"
)

// auditRepo implements the AuditRepo interface.
type auditRepo struct {
	db *pgxpool.Pool
}

// NewAuditRepo creates a new audit repository.
func NewAuditRepo(db *pgxpool.Pool) AuditRepo {
	return &auditRepo{db: db}
}

// Log creates a new audit log entry.
func (r *auditRepo) Log(ctx context.Context, entityType string, entityID uuid.UUID, actorID *uuid.UUID, action string, details any) error {
	return r.LogTx(ctx, r.db, entityType, entityID, actorID, action, details)
}

// LogTx creates a new audit log entry within a transaction.
func (r *auditRepo) LogTx(ctx context.Context, tx DBTX, entityType string, entityID uuid.UUID, actorID *uuid.UUID, action string, details any) error {
	query := `
		INSERT INTO audit_logs (id, entity_type, entity_id, actor_id, action, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	id := uuid.New()
	createdAt := time.Now()

	// Convert details to JSONB
	var detailsJSON []byte
	var err error

	if details != nil {
		detailsJSON, err = json.Marshal(details)
		if err != nil {
			return fmt.Errorf("failed to marshal audit details: %w", err)
		}
	}

	_, err = tx.Exec(ctx, query, id, entityType, entityID, actorID, action, detailsJSON, createdAt)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}

	return nil
}

// GetByID retrieves an audit log by ID.
func (r *auditRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.AuditLog, error) {
	query := `
		SELECT id, entity_type, entity_id, actor_id, action, details, created_at
		FROM audit_logs
		WHERE id = $1`

	var auditLog domain.AuditLog
	err := r.db.QueryRow(ctx, query, id).Scan(
		&auditLog.ID,
		&auditLog.EntityType,
		&auditLog.EntityID,
		&auditLog.ActorID,
		&auditLog.Action,
		&auditLog.Details,
		&auditLog.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("audit log %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get audit log: %w", err)
	}

	return &auditLog, nil
}

// List retrieves audit logs with filtering.
func (r *auditRepo) List(ctx context.Context, filter *domain.AuditLogFilter) ([]*domain.AuditLog, error) {
	ds := pgDialect.From("audit_logs").
		Select(goqu.C("id"), goqu.C("entity_type"), goqu.C("entity_id"), goqu.C("actor_id"),
			goqu.C("action"), goqu.C("details"), goqu.C("created_at")).
		Order(goqu.C("created_at").Desc())

	ds = applyAuditFilter(ds, filter)

	if filter != nil {
		if filter.Limit > 0 {
			ds = ds.Limit(uint(filter.Limit))
		}
		if filter.Offset > 0 {
			ds = ds.Offset(uint(filter.Offset))
		}
	}

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build audit query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	var logs []*domain.AuditLog
	for rows.Next() {
		var auditLog domain.AuditLog
		if err := rows.Scan(
			&auditLog.ID,
			&auditLog.EntityType,
			&auditLog.EntityID,
			&auditLog.ActorID,
			&auditLog.Action,
			&auditLog.Details,
			&auditLog.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		logs = append(logs, &auditLog)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit logs: %w", err)
	}

	return logs, nil
}

// Count returns the total number of audit logs matching the filter.
func (r *auditRepo) Count(ctx context.Context, filter *domain.AuditLogFilter) (int, error) {
	ds := pgDialect.From("audit_logs").Select(goqu.COUNT(goqu.Star()))
	ds = applyAuditFilter(ds, filter)

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return 0, fmt.Errorf("failed to build audit count query: %w", err)
	}

	var count int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	return count, nil
}

// applyAuditFilter translates the filter into WHERE clauses.
func applyAuditFilter(ds *goqu.SelectDataset, filter *domain.AuditLogFilter) *goqu.SelectDataset {
	if filter == nil {
		return ds
	}
	if filter.EntityType != "" {
		ds = ds.Where(goqu.C("entity_type").Eq(filter.EntityType))
	}
	if filter.EntityID != nil {
		ds = ds.Where(goqu.C("entity_id").Eq(filter.EntityID.String()))
	}
	if filter.ActorID != nil {
		ds = ds.Where(goqu.C("actor_id").Eq(filter.ActorID.String()))
	}
	if filter.Action != "" {
		ds = ds.Where(goqu.C("action").Eq(filter.Action))
	}
	if filter.Since != nil {
		ds = ds.Where(goqu.C("created_at").Gte(*filter.Since))
	}
	if filter.Until != nil {
		ds = ds.Where(goqu.C("created_at").Lt(*filter.Until))
	}
	return ds
}
