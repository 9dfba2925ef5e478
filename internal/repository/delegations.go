package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aydin-o/go-teamdesk/internal/domain"
)

// delegationsRepo implements the DelegationsRepo interface.
type delegationsRepo struct {
	db *pgxpool.Pool
}

// NewDelegationsRepo creates a new delegations repository.
func NewDelegationsRepo(db *pgxpool.Pool) DelegationsRepo {
	return &delegationsRepo{db: db}
}

const delegationColumns = `id, delegator_id, delegate_id, note, status, starts_at, ends_at, revoked_at, created_at`

// CreateTx creates a new delegation within a transaction.
func (r *delegationsRepo) CreateTx(ctx context.Context, tx DBTX, delegation *domain.Delegation) error {
	query := `
		INSERT INTO delegations (id, delegator_id, delegate_id, note, status, starts_at, ends_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	if delegation.ID == uuid.Nil {
		delegation.ID = uuid.New()
	}
	if delegation.Status == "" {
		delegation.Status = string(domain.DelegationActive)
	}
	delegation.CreatedAt = time.Now()

	_, err := tx.Exec(ctx, query,
		delegation.ID,
		delegation.DelegatorID,
		delegation.DelegateID,
		delegation.Note,
		delegation.Status,
		delegation.StartsAt,
		delegation.EndsAt,
		delegation.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create delegation: %w", err)
	}

	return nil
}

// GetByID retrieves a delegation by ID.
func (r *delegationsRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Delegation, error) {
	query := `
		SELECT ` + delegationColumns + `
		FROM delegations
		WHERE id = $1`

	var d domain.Delegation
	err := r.db.QueryRow(ctx, query, id).Scan(
		&d.ID,
		&d.DelegatorID,
		&d.DelegateID,
		&d.Note,
		&d.Status,
		&d.StartsAt,
		&d.EndsAt,
		&d.RevokedAt,
		&d.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("delegation %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get delegation: %w", err)
	}

	return &d, nil
}

// ListIssued retrieves delegations granted by a user.
func (r *delegationsRepo) ListIssued(ctx context.Context, delegatorID uuid.UUID, includeInactive bool) ([]*domain.Delegation, error) {
	return r.list(ctx, "delegator_id", delegatorID, includeInactive)
}

// ListReceived retrieves delegations granted to a user.
func (r *delegationsRepo) ListReceived(ctx context.Context, delegateID uuid.UUID, includeInactive bool) ([]*domain.Delegation, error) {
	return r.list(ctx, "delegate_id", delegateID, includeInactive)
}

func (r *delegationsRepo) list(ctx context.Context, column string, userID uuid.UUID, includeInactive bool) ([]*domain.Delegation, error) {
	query := `
		SELECT ` + delegationColumns + `
		FROM delegations
		WHERE ` + column + ` = $1`
	if !includeInactive {
		query += ` AND status = 'active'`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list delegations: %w", err)
	}
	defer rows.Close()

	var delegations []*domain.Delegation
	for rows.Next() {
		var d domain.Delegation
		if err := rows.Scan(
			&d.ID,
			&d.DelegatorID,
			&d.DelegateID,
			&d.Note,
			&d.Status,
			&d.StartsAt,
			&d.EndsAt,
			&d.RevokedAt,
			&d.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan delegation: %w", err)
		}
		delegations = append(delegations, &d)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating delegations: %w", err)
	}

	return delegations, nil
}

// HasActiveOverlap reports whether an active delegation between the pair
// overlaps the given window.
func (r *delegationsRepo) HasActiveOverlap(ctx context.Context, delegatorID, delegateID uuid.UUID, startsAt, endsAt time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM delegations
			WHERE delegator_id = $1
			  AND delegate_id = $2
			  AND status = 'active'
			  AND starts_at < $4
			  AND ends_at > $3
		)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, delegatorID, delegateID, startsAt, endsAt).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check delegation overlap: %w", err)
	}
	return exists, nil
}

// HasActiveOverlapTx is the transactional overlap check used by Grant. It
// first takes an advisory transaction lock on the delegator/delegate pair so
// two concurrent grants for the same pair serialize; the lock is held until
// the transaction commits or rolls back.
func (r *delegationsRepo) HasActiveOverlapTx(ctx context.Context, tx DBTX, delegatorID, delegateID uuid.UUID, startsAt, endsAt time.Time) (bool, error) {
	lockQuery := `SELECT pg_advisory_xact_lock(hashtextextended($1 || ':' || $2, 0))`
	if _, err := tx.Exec(ctx, lockQuery, delegatorID.String(), delegateID.String()); err != nil {
		return false, fmt.Errorf("failed to lock delegation pair: %w", err)
	}

	query := `
		SELECT EXISTS (
			SELECT 1
			FROM delegations
			WHERE delegator_id = $1
			  AND delegate_id = $2
			  AND status = 'active'
			  AND starts_at < $4
			  AND ends_at > $3
		)`

	var exists bool
	if err := tx.QueryRow(ctx, query, delegatorID, delegateID, startsAt, endsAt).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check delegation overlap: %w", err)
	}
	return exists, nil
}

// RevokeTx marks a delegation revoked within a transaction.
func (r *delegationsRepo) RevokeTx(ctx context.Context, tx DBTX, id uuid.UUID, revokedAt time.Time) error {
	query := `
		UPDATE delegations
		SET status = 'revoked', revoked_at = $2
		WHERE id = $1 AND status = 'active'`

	tag, err := tx.Exec(ctx, query, id, revokedAt)
	if err != nil {
		return fmt.Errorf("failed to revoke delegation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("active delegation %s: %w", id, ErrNotFound)
	}

	return nil
}

// ListDue retrieves active delegations whose window has ended.
func (r *delegationsRepo) ListDue(ctx context.Context, asOf time.Time, limit int) ([]*domain.Delegation, error) {
	query := `
		SELECT ` + delegationColumns + `
		FROM delegations
		WHERE status = 'active' AND ends_at <= $1
		ORDER BY ends_at ASC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, asOf, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list due delegations: %w", err)
	}
	defer rows.Close()

	var delegations []*domain.Delegation
	for rows.Next() {
		var d domain.Delegation
		if err := rows.Scan(
			&d.ID,
			&d.DelegatorID,
			&d.DelegateID,
			&d.Note,
			&d.Status,
			&d.StartsAt,
			&d.EndsAt,
			&d.RevokedAt,
			&d.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan delegation: %w", err)
		}
		delegations = append(delegations, &d)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating due delegations: %w", err)
	}

	return delegations, nil
}

// CountActive returns the number of delegations currently active.
func (r *delegationsRepo) CountActive(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM delegations WHERE status = 'active'`

	var count int
	if err := r.db.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count active delegations: %w", err)
	}

	return count, nil
}

// MarkExpiredTx marks a delegation expired within a transaction.
func (r *delegationsRepo) MarkExpiredTx(ctx context.Context, tx DBTX, id uuid.UUID) error {
	query := `
		UPDATE delegations
		SET status = 'expired'
		WHERE id = $1 AND status = 'active'`

	tag, err := tx.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to expire delegation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("active delegation %s: %w", id, ErrNotFound)
	}

	return nil
}
