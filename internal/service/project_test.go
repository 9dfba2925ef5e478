package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aydin-o/go-teamdesk/internal/domain"
	"github.com/aydin-o/go-teamdesk/internal/repository"
	"github.com/aydin-o/go-teamdesk/internal/uow"
)

// txStub implements pgx.Tx without a database. Commit and Rollback track
// flags; the query methods are never reached through the fake repositories.
type txStub struct {
	committed  bool
	rolledBack bool
}

func (t *txStub) Begin(_ context.Context) (pgx.Tx, error) { return t, nil }
func (t *txStub) Commit(_ context.Context) error          { t.committed = true; return nil }
func (t *txStub) Rollback(_ context.Context) error        { t.rolledBack = true; return nil }
func (t *txStub) CopyFrom(_ context.Context, _ pgx.Identifier, _ []string, _ pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *txStub) SendBatch(_ context.Context, _ *pgx.Batch) pgx.BatchResults { return nil }
func (t *txStub) LargeObjects() pgx.LargeObjects                             { return pgx.LargeObjects{} }
func (t *txStub) Prepare(_ context.Context, _, _ string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *txStub) Exec(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (t *txStub) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *txStub) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row { return nil }
func (t *txStub) Conn() *pgx.Conn                                        { return nil }

type txStubBeginner struct {
	tx *txStub
}

func (b *txStubBeginner) Begin(_ context.Context) (pgx.Tx, error) { return b.tx, nil }

// recordingOutbox captures every event the unit of work appends.
type recordingOutbox struct {
	appended []*domain.Event
}

func (o *recordingOutbox) AppendTx(_ context.Context, _ pgx.Tx, events []*domain.Event) error {
	o.appended = append(o.appended, events...)
	return nil
}

func (o *recordingOutbox) eventTypes() []string {
	types := make([]string, 0, len(o.appended))
	for _, e := range o.appended {
		types = append(types, e.EventType)
	}
	return types
}

// auditEntry is one captured audit write.
type auditEntry struct {
	entityType string
	entityID   uuid.UUID
	actorID    *uuid.UUID
	action     string
}

type recordingAuditRepo struct {
	repository.AuditRepo
	entries []auditEntry
}

func (r *recordingAuditRepo) LogTx(_ context.Context, _ repository.DBTX, entityType string, entityID uuid.UUID, actorID *uuid.UUID, action string, _ any) error {
	r.entries = append(r.entries, auditEntry{entityType: entityType, entityID: entityID, actorID: actorID, action: action})
	return nil
}

// stubProjectsRepo serves a single project and accepts every write.
type stubProjectsRepo struct {
	repository.ProjectsRepo
	project *domain.Project
}

func (r *stubProjectsRepo) CreateTx(_ context.Context, _ repository.DBTX, project *domain.Project) error {
	if project.ID == uuid.Nil {
		project.ID = uuid.New()
	}
	project.CreatedAt = time.Now()
	project.UpdatedAt = project.CreatedAt
	r.project = project
	return nil
}

func (r *stubProjectsRepo) GetByIDTx(_ context.Context, _ repository.DBTX, _ uuid.UUID) (*domain.Project, error) {
	return r.project, nil
}

func (r *stubProjectsRepo) UpdateTx(_ context.Context, _ repository.DBTX, _ *domain.Project) error {
	return nil
}

func (r *stubProjectsRepo) DeleteTx(_ context.Context, _ repository.DBTX, _ uuid.UUID) error {
	return nil
}

func (r *stubProjectsRepo) AddMemberTx(_ context.Context, _ repository.DBTX, _ *domain.ProjectMember) error {
	return nil
}

func (r *stubProjectsRepo) RemoveMemberTx(_ context.Context, _ repository.DBTX, _, _ uuid.UUID) error {
	return nil
}

func (r *stubProjectsRepo) ReplaceTagsTx(_ context.Context, _ repository.DBTX, _ uuid.UUID, names []string) ([]domain.Tag, error) {
	tags := make([]domain.Tag, 0, len(names))
	for _, name := range names {
		tags = append(tags, domain.Tag{ID: uuid.New(), Name: name})
	}
	return tags, nil
}

type projectHarness struct {
	svc    ProjectService
	tx     *txStub
	outbox *recordingOutbox
	audit  *recordingAuditRepo
}

func newProjectHarness(project *domain.Project, users map[uuid.UUID]*domain.User) *projectHarness {
	tx := &txStub{}
	outbox := &recordingOutbox{}
	audit := &recordingAuditRepo{}
	repos := &repository.Repositories{
		Users:    &fakeUsersRepo{users: users},
		Projects: &stubProjectsRepo{project: project},
		Audit:    audit,
	}
	manager := uow.NewManager(&txStubBeginner{tx: tx}, uow.NewBus(), outbox)
	return &projectHarness{
		svc:    NewProjectService(repos, manager, nil),
		tx:     tx,
		outbox: outbox,
		audit:  audit,
	}
}

func activeProject(ownerID uuid.UUID) *domain.Project {
	return &domain.Project{
		ID:      uuid.New(),
		OwnerID: ownerID,
		Name:    "Roadmap",
		Status:  string(domain.ProjectActive),
	}
}

// In a delegated session the subject owns the data but the audit trail and
// event metadata must name the user actually at the keyboard.
func TestProjectWritesRecordTheActor(t *testing.T) {
	subjectID := uuid.New()
	actorID := uuid.New()

	t.Run("create", func(t *testing.T) {
		h := newProjectHarness(nil, nil)

		created, err := h.svc.Create(context.Background(), subjectID, actorID, &domain.CreateProjectRequest{Name: "Roadmap"})
		require.NoError(t, err)
		assert.Equal(t, subjectID, created.OwnerID, "ownership stays with the subject")

		require.Len(t, h.audit.entries, 1)
		require.NotNil(t, h.audit.entries[0].actorID)
		assert.Equal(t, actorID, *h.audit.entries[0].actorID, "audit must record the actor, not the subject")

		require.Len(t, h.outbox.appended, 1)
		md, err := h.outbox.appended[0].UnmarshalMetadata()
		require.NoError(t, err)
		require.NotNil(t, md)
		assert.Equal(t, actorID.String(), md.ActorID)
	})

	t.Run("update", func(t *testing.T) {
		h := newProjectHarness(activeProject(subjectID), nil)

		_, err := h.svc.Update(context.Background(), uuid.New(), subjectID, actorID, &domain.UpdateProjectRequest{Name: "Renamed"})
		require.NoError(t, err)

		require.Len(t, h.audit.entries, 1)
		require.NotNil(t, h.audit.entries[0].actorID)
		assert.Equal(t, actorID, *h.audit.entries[0].actorID)

		require.Len(t, h.outbox.appended, 1)
		md, err := h.outbox.appended[0].UnmarshalMetadata()
		require.NoError(t, err)
		assert.Equal(t, actorID.String(), md.ActorID)
	})

	t.Run("delete", func(t *testing.T) {
		h := newProjectHarness(activeProject(subjectID), nil)

		require.NoError(t, h.svc.Delete(context.Background(), uuid.New(), subjectID, actorID))

		require.Len(t, h.audit.entries, 1)
		require.NotNil(t, h.audit.entries[0].actorID)
		assert.Equal(t, actorID, *h.audit.entries[0].actorID)
	})
}

// Membership and tag links are navigation collections: changing them records
// the relation event and nothing else.
func TestNavigationChangesDoNotRecordProjectUpdated(t *testing.T) {
	ownerID := uuid.New()
	memberID := uuid.New()
	member := &domain.User{ID: memberID, Username: "member", IsActive: true}

	t.Run("adding a member", func(t *testing.T) {
		h := newProjectHarness(activeProject(ownerID), map[uuid.UUID]*domain.User{memberID: member})

		err := h.svc.AddMember(context.Background(), uuid.New(), ownerID, ownerID, memberID, "")
		require.NoError(t, err)

		assert.Equal(t, []string{string(domain.EventProjectMemberAdded)}, h.outbox.eventTypes())
		assert.True(t, h.tx.committed)
	})

	t.Run("removing a member", func(t *testing.T) {
		project := activeProject(ownerID)
		project.Members = []domain.ProjectMember{{ProjectID: project.ID, UserID: memberID, Role: string(domain.MemberViewer)}}
		h := newProjectHarness(project, nil)

		err := h.svc.RemoveMember(context.Background(), project.ID, ownerID, ownerID, memberID)
		require.NoError(t, err)

		assert.Equal(t, []string{string(domain.EventProjectMemberRemoved)}, h.outbox.eventTypes())
	})

	t.Run("replacing tags", func(t *testing.T) {
		h := newProjectHarness(activeProject(ownerID), nil)

		_, err := h.svc.SetTags(context.Background(), uuid.New(), ownerID, ownerID, []string{"infra", "q3"})
		require.NoError(t, err)

		assert.Equal(t, []string{string(domain.EventProjectTagsChanged)}, h.outbox.eventTypes())
	})

	t.Run("scalar change still records the update event", func(t *testing.T) {
		h := newProjectHarness(activeProject(ownerID), nil)

		_, err := h.svc.Update(context.Background(), uuid.New(), ownerID, ownerID, &domain.UpdateProjectRequest{Description: "now with details"})
		require.NoError(t, err)

		assert.Equal(t, []string{string(domain.EventProjectUpdated)}, h.outbox.eventTypes())
	})
}
