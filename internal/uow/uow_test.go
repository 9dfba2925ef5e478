package uow

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aydin-o/go-teamdesk/internal/domain"
)

// fakeTx implements pgx.Tx without a database. Only Commit and Rollback carry
// behavior; the query methods are never reached in these tests.
type fakeTx struct {
	committed  bool
	rolledBack bool
	commitErr  error
}

func (t *fakeTx) Begin(_ context.Context) (pgx.Tx, error) { return t, nil }

func (t *fakeTx) Commit(_ context.Context) error {
	if t.commitErr != nil {
		return t.commitErr
	}
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(_ context.Context) error {
	t.rolledBack = true
	return nil
}

func (t *fakeTx) CopyFrom(_ context.Context, _ pgx.Identifier, _ []string, _ pgx.CopyFromSource) (int64, error) {
	return 0, nil
}

func (t *fakeTx) SendBatch(_ context.Context, _ *pgx.Batch) pgx.BatchResults { return nil }

func (t *fakeTx) LargeObjects() pgx.LargeObjects { return pgx.LargeObjects{} }

func (t *fakeTx) Prepare(_ context.Context, _, _ string) (*pgconn.StatementDescription, error) {
	return nil, nil
}

func (t *fakeTx) Exec(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (t *fakeTx) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
	return nil, nil
}

func (t *fakeTx) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row { return nil }

func (t *fakeTx) Conn() *pgx.Conn { return nil }

// fakeBeginner hands out a single fakeTx so tests can inspect it afterwards.
type fakeBeginner struct {
	tx *fakeTx
}

func (b *fakeBeginner) Begin(_ context.Context) (pgx.Tx, error) { return b.tx, nil }

// fakeOutbox records appended events and can be told to fail.
type fakeOutbox struct {
	appended  []*domain.Event
	appendErr error
}

func (o *fakeOutbox) AppendTx(_ context.Context, _ pgx.Tx, events []*domain.Event) error {
	if o.appendErr != nil {
		return o.appendErr
	}
	o.appended = append(o.appended, events...)
	return nil
}

func mustEvent(t *testing.T, eventType domain.EventType) *domain.Event {
	t.Helper()
	event, err := domain.NewEvent(domain.AggregateProject, uuid.New(), eventType, map[string]any{"k": "v"}, nil)
	require.NoError(t, err)
	return event
}

func newTestManager(tx *fakeTx, outbox *fakeOutbox) *Manager {
	return NewManager(&fakeBeginner{tx: tx}, NewBus(), outbox)
}

func TestCommitDeliversEventsInFIFOOrder(t *testing.T) {
	tx := &fakeTx{}
	outbox := &fakeOutbox{}
	m := newTestManager(tx, outbox)

	var delivered []string
	record := func(ctx context.Context, e *domain.Event, _ pgx.Tx) error {
		delivered = append(delivered, e.EventType)
		return nil
	}
	m.Bus().Subscribe(domain.EventProjectCreated, record)
	m.Bus().Subscribe(domain.EventProjectMemberAdded, record)
	m.Bus().Subscribe(domain.EventProjectUpdated, record)

	u, err := m.Begin(context.Background())
	require.NoError(t, err)

	u.Record(mustEvent(t, domain.EventProjectCreated))
	u.Record(mustEvent(t, domain.EventProjectMemberAdded))
	u.Record(mustEvent(t, domain.EventProjectUpdated))

	require.NoError(t, u.Commit(context.Background()))

	assert.Equal(t, []string{
		string(domain.EventProjectCreated),
		string(domain.EventProjectMemberAdded),
		string(domain.EventProjectUpdated),
	}, delivered)
	assert.True(t, tx.committed)
	assert.Len(t, outbox.appended, 3)
	assert.Equal(t, string(domain.EventProjectCreated), outbox.appended[0].EventType)
}

func TestCommitRollsBackWhenHandlerFails(t *testing.T) {
	tx := &fakeTx{}
	outbox := &fakeOutbox{}
	m := newTestManager(tx, outbox)

	var sideEffects []string
	m.Bus().Subscribe(domain.EventProjectCreated, func(_ context.Context, _ *domain.Event, _ pgx.Tx) error {
		sideEffects = append(sideEffects, "created")
		return nil
	})
	handlerErr := errors.New("handler refused the event")
	m.Bus().Subscribe(domain.EventProjectMemberAdded, func(_ context.Context, _ *domain.Event, _ pgx.Tx) error {
		return handlerErr
	})

	u, err := m.Begin(context.Background())
	require.NoError(t, err)

	u.Record(mustEvent(t, domain.EventProjectCreated))
	u.Record(mustEvent(t, domain.EventProjectMemberAdded))

	err = u.Commit(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, handlerErr)

	assert.True(t, tx.rolledBack, "transaction must be rolled back on handler failure")
	assert.False(t, tx.committed)
	assert.Empty(t, outbox.appended, "no event may reach the outbox when commit fails")
	// The first handler did run; its durable side effects live in the
	// transaction and are undone with it.
	assert.Equal(t, []string{"created"}, sideEffects)
}

func TestCommitRollsBackWhenOutboxAppendFails(t *testing.T) {
	tx := &fakeTx{}
	outbox := &fakeOutbox{appendErr: errors.New("outbox unavailable")}
	m := newTestManager(tx, outbox)

	u, err := m.Begin(context.Background())
	require.NoError(t, err)
	u.Record(mustEvent(t, domain.EventProjectCreated))

	err = u.Commit(context.Background())
	require.Error(t, err)
	assert.True(t, tx.rolledBack)
	assert.False(t, tx.committed)
}

func TestHandlersMayCascadeEvents(t *testing.T) {
	tx := &fakeTx{}
	outbox := &fakeOutbox{}
	m := newTestManager(tx, outbox)

	u, err := m.Begin(context.Background())
	require.NoError(t, err)

	var delivered []string
	m.Bus().Subscribe(domain.EventProjectCreated, func(ctx context.Context, _ *domain.Event, _ pgx.Tx) error {
		delivered = append(delivered, "created")
		// Cascade: the handler records a follow-up event in the same scope.
		return u.RecordNew(domain.AggregateProject, uuid.New(), domain.EventProjectTagsChanged, map[string]any{}, nil)
	})
	m.Bus().Subscribe(domain.EventProjectTagsChanged, func(_ context.Context, _ *domain.Event, _ pgx.Tx) error {
		delivered = append(delivered, "tags-changed")
		return nil
	})

	u.Record(mustEvent(t, domain.EventProjectCreated))
	require.NoError(t, u.Commit(context.Background()))

	assert.Equal(t, []string{"created", "tags-changed"}, delivered)
	assert.Len(t, outbox.appended, 2, "cascaded events belong to the same outbox batch")
}

func TestUnitOfWorkIsSingleUse(t *testing.T) {
	tx := &fakeTx{}
	m := newTestManager(tx, &fakeOutbox{})

	u, err := m.Begin(context.Background())
	require.NoError(t, err)

	require.NoError(t, u.Commit(context.Background()))
	assert.ErrorIs(t, u.Commit(context.Background()), ErrDone)
	assert.ErrorIs(t, u.Rollback(context.Background()), ErrDone)
}

func TestRollbackDiscardsBufferedEvents(t *testing.T) {
	tx := &fakeTx{}
	outbox := &fakeOutbox{}
	m := newTestManager(tx, outbox)

	u, err := m.Begin(context.Background())
	require.NoError(t, err)

	u.Record(mustEvent(t, domain.EventProjectCreated))
	require.Equal(t, 1, u.Pending())

	require.NoError(t, u.Rollback(context.Background()))

	assert.True(t, tx.rolledBack)
	assert.Zero(t, u.Pending())
	assert.Empty(t, outbox.appended)
}

func TestRunInTxCommitsOnSuccessAndRollsBackOnError(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		tx := &fakeTx{}
		outbox := &fakeOutbox{}
		m := newTestManager(tx, outbox)

		err := m.RunInTx(context.Background(), func(_ context.Context, u *UnitOfWork) error {
			u.Record(mustEvent(t, domain.EventUserRegistered))
			return nil
		})
		require.NoError(t, err)
		assert.True(t, tx.committed)
		assert.Len(t, outbox.appended, 1)
	})

	t.Run("error", func(t *testing.T) {
		tx := &fakeTx{}
		outbox := &fakeOutbox{}
		m := newTestManager(tx, outbox)

		opErr := errors.New("operation failed")
		err := m.RunInTx(context.Background(), func(_ context.Context, u *UnitOfWork) error {
			u.Record(mustEvent(t, domain.EventUserRegistered))
			return opErr
		})
		assert.ErrorIs(t, err, opErr)
		assert.True(t, tx.rolledBack)
		assert.False(t, tx.committed)
		assert.Empty(t, outbox.appended)
	})
}

func TestChangeTrackingThroughUnitOfWork(t *testing.T) {
	tx := &fakeTx{}
	m := newTestManager(tx, &fakeOutbox{})

	u, err := m.Begin(context.Background())
	require.NoError(t, err)

	p := &domain.Project{
		ID:      uuid.New(),
		OwnerID: uuid.New(),
		Name:    "Roadmap",
		Status:  string(domain.ProjectActive),
	}
	u.Track(p)

	p.Members = append(p.Members, domain.ProjectMember{UserID: uuid.New(), Role: string(domain.MemberViewer)})

	cs := u.Changes(p)
	assert.True(t, cs.SuppressUpdate())
	assert.True(t, cs.HasLinkChanges())
}
