package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	// Registers the postgres dialect used for dynamic queries.
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aydin-o/go-teamdesk/internal/domain"
)

// pgDialect builds dynamic SQL for the filtered listing endpoints.
var pgDialect = goqu.Dialect("postgres")

// outboxRepo implements the OutboxRepo interface. The outbox table carries a
// bigserial seq column; insertion order within and across transactions is the
// publication order.
type outboxRepo struct {
	db *pgxpool.Pool
}

// NewOutboxRepo creates a new outbox repository.
func NewOutboxRepo(db *pgxpool.Pool) OutboxRepo {
	return &outboxRepo{db: db}
}

const outboxColumns = `id, seq, aggregate_type, aggregate_id, event_type, payload, metadata, recorded_at, published_at`

// AppendTx appends events within an open transaction, preserving order.
func (r *outboxRepo) AppendTx(ctx context.Context, tx pgx.Tx, events []*domain.Event) error {
	query := `
		INSERT INTO outbox_events (id, aggregate_type, aggregate_id, event_type, payload, metadata, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING seq`

	for _, event := range events {
		if event.RecordedAt.IsZero() {
			event.RecordedAt = time.Now()
		}
		err := tx.QueryRow(ctx, query,
			event.ID,
			event.AggregateType,
			event.AggregateID,
			event.EventType,
			event.Payload,
			event.Metadata,
			event.RecordedAt,
		).Scan(&event.Seq)
		if err != nil {
			return fmt.Errorf("failed to append event %s: %w", event.EventType, err)
		}
	}

	return nil
}

// FetchUnpublished retrieves unpublished events in sequence order.
func (r *outboxRepo) FetchUnpublished(ctx context.Context, limit int) ([]*domain.Event, error) {
	query := `
		SELECT ` + outboxColumns + `
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY seq ASC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unpublished events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// MarkPublished stamps the given events as published.
func (r *outboxRepo) MarkPublished(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := r.db.Exec(ctx, `
		UPDATE outbox_events
		SET published_at = $2
		WHERE id = ANY($1) AND published_at IS NULL`, ids, time.Now())
	if err != nil {
		return fmt.Errorf("failed to mark events published: %w", err)
	}

	return nil
}

// List retrieves events with filtering, in sequence order.
func (r *outboxRepo) List(ctx context.Context, filter *domain.EventFilter) ([]*domain.Event, error) {
	ds := pgDialect.From("outbox_events").
		Select(goqu.C("id"), goqu.C("seq"), goqu.C("aggregate_type"), goqu.C("aggregate_id"),
			goqu.C("event_type"), goqu.C("payload"), goqu.C("metadata"), goqu.C("recorded_at"), goqu.C("published_at")).
		Order(goqu.C("seq").Asc())

	ds = applyEventFilter(ds, filter)

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
		return nil, fmt.Errorf("failed to build event query: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// Count returns the number of events matching the filter.
func (r *outboxRepo) Count(ctx context.Context, filter *domain.EventFilter) (int, error) {
	ds := pgDialect.From("outbox_events").Select(goqu.COUNT(goqu.Star()))
	ds = applyEventFilter(ds, filter)

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return 0, fmt.Errorf("failed to build event count query: %w", err)
	}

	var count int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}

	return count, nil
}

// Backlog returns the number of unpublished events.
func (r *outboxRepo) Backlog(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_events WHERE published_at IS NULL`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count outbox backlog: %w", err)
	}
	return count, nil
}

// applyEventFilter translates the filter into WHERE clauses.
func applyEventFilter(ds *goqu.SelectDataset, filter *domain.EventFilter) *goqu.SelectDataset {
	if filter == nil {
		return ds
	}
	if filter.AggregateType != "" {
		ds = ds.Where(goqu.C("aggregate_type").Eq(filter.AggregateType))
	}
	if filter.AggregateID != nil {
		ds = ds.Where(goqu.C("aggregate_id").Eq(filter.AggregateID.String()))
	}
	if filter.EventType != "" {
		ds = ds.Where(goqu.C("event_type").Eq(filter.EventType))
	}
	if filter.Since != nil {
		ds = ds.Where(goqu.C("recorded_at").Gte(*filter.Since))
	}
	if filter.Until != nil {
		ds = ds.Where(goqu.C("recorded_at").Lt(*filter.Until))
	}
	return ds
}

// scanEvents scans outbox rows into domain events.
func scanEvents(rows pgx.Rows) ([]*domain.Event, error) {
	var events []*domain.Event
	for rows.Next() {
		var event domain.Event
		if err := rows.Scan(
			&event.ID,
			&event.Seq,
			&event.AggregateType,
			&event.AggregateID,
			&event.EventType,
			&event.Payload,
			&event.Metadata,
			&event.RecordedAt,
			&event.PublishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}
