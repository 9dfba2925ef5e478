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

// delegationService implements the DelegationService interface.
type delegationService struct {
	repos     *repository.Repositories
	uow       *uow.Manager
	cache     CacheService
	metrics   *utils.MetricsCollector
	maxWindow time.Duration
}

// NewDelegationService creates a new delegation service. maxWindow caps how
// long a single delegation may last.
func NewDelegationService(repos *repository.Repositories, uowManager *uow.Manager, cache CacheService, maxWindow time.Duration) DelegationService {
	return &delegationService{
		repos:     repos,
		uow:       uowManager,
		cache:     cache,
		maxWindow: maxWindow,
	}
}

// SetMetricsCollector enables the active delegations gauge.
func (s *delegationService) SetMetricsCollector(metrics *utils.MetricsCollector) {
	s.metrics = metrics
}

// Grant creates a new delegation. The row, the DelegationGranted event and the
// audit entry commit atomically.
func (s *delegationService) Grant(ctx context.Context, delegatorID uuid.UUID, req *domain.CreateDelegationRequest) (*domain.DelegationResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	if req.DelegateID == delegatorID {
		return nil, fmt.Errorf("cannot delegate to yourself")
	}
	if s.maxWindow > 0 && req.EndsAt.Sub(req.StartsAt) > s.maxWindow {
		return nil, fmt.Errorf("delegation window exceeds the maximum of %s", s.maxWindow)
	}
	if req.EndsAt.Before(time.Now()) {
		return nil, fmt.Errorf("delegation window is already in the past")
	}

	delegate, err := s.repos.Users.GetByID(ctx, req.DelegateID)
	if err != nil {
		return nil, fmt.Errorf("delegate not found: %w", err)
	}
	if !delegate.IsActive {
		return nil, fmt.Errorf("cannot delegate to an inactive user")
	}

	// Cheap early rejection; the authoritative check runs again inside the
	// transaction under a pair lock.
	overlap, err := s.repos.Delegations.HasActiveOverlap(ctx, delegatorID, req.DelegateID, req.StartsAt, req.EndsAt)
	if err != nil {
		return nil, fmt.Errorf("failed to check delegation overlap: %w", err)
	}
	if overlap {
		return nil, fmt.Errorf("an active delegation to this user already covers part of that window")
	}

	delegation := &domain.Delegation{
		DelegatorID: delegatorID,
		DelegateID:  req.DelegateID,
		Note:        req.Note,
		Status:      string(domain.DelegationActive),
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
	}

	err = s.uow.RunInTx(ctx, func(ctx context.Context, u *uow.UnitOfWork) error {
		// Re-check under the pair lock: a concurrent grant that committed
		// after the pool check would otherwise slip through.
		overlap, err := s.repos.Delegations.HasActiveOverlapTx(ctx, u.Tx(), delegatorID, req.DelegateID, req.StartsAt, req.EndsAt)
		if err != nil {
			return fmt.Errorf("failed to check delegation overlap: %w", err)
		}
		if overlap {
			return fmt.Errorf("an active delegation to this user already covers part of that window")
		}

		if err := s.repos.Delegations.CreateTx(ctx, u.Tx(), delegation); err != nil {
			return fmt.Errorf("failed to create delegation: %w", err)
		}

		if err := u.RecordNew(domain.AggregateDelegation, delegation.ID, domain.EventDelegationGranted, &domain.DelegationGrantedEvent{
			DelegationID: delegation.ID,
			DelegatorID:  delegation.DelegatorID,
			DelegateID:   delegation.DelegateID,
			StartsAt:     delegation.StartsAt,
			EndsAt:       delegation.EndsAt,
		}, metadataFromContext(ctx, delegatorID)); err != nil {
			return err
		}

		auditDetails := map[string]interface{}{
			"delegate_id": delegation.DelegateID,
			"starts_at":   delegation.StartsAt,
			"ends_at":     delegation.EndsAt,
		}
		return s.repos.Audit.LogTx(ctx, u.Tx(), string(domain.EntityDelegation), delegation.ID, &delegatorID, string(domain.ActionGranted), auditDetails)
	})
	if err != nil {
		return nil, err
	}

	s.invalidateDelegations(ctx, delegation.DelegatorID, delegation.DelegateID)
	response := delegation.ToResponse()
	return &response, nil
}

// Revoke revokes an active delegation. Either party may revoke it. actorID
// is the user actually driving the request and is what the audit trail and
// event metadata record.
func (s *delegationService) Revoke(ctx context.Context, id, requestingUserID, actorID uuid.UUID) error {
	var delegation *domain.Delegation
	err := s.uow.RunInTx(ctx, func(ctx context.Context, u *uow.UnitOfWork) error {
		var err error
		delegation, err = s.repos.Delegations.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("delegation not found: %w", err)
		}
		if delegation.DelegatorID != requestingUserID && delegation.DelegateID != requestingUserID {
			return fmt.Errorf("only a party to the delegation can revoke it")
		}
		if delegation.Status != string(domain.DelegationActive) {
			return fmt.Errorf("delegation is not active")
		}

		if err := s.repos.Delegations.RevokeTx(ctx, u.Tx(), id, time.Now()); err != nil {
			return fmt.Errorf("failed to revoke delegation: %w", err)
		}

		if err := u.RecordNew(domain.AggregateDelegation, id, domain.EventDelegationRevoked, &domain.DelegationRevokedEvent{
			DelegationID: id,
			DelegatorID:  delegation.DelegatorID,
			DelegateID:   delegation.DelegateID,
			RevokedBy:    requestingUserID,
		}, metadataFromContext(ctx, actorID)); err != nil {
			return err
		}

		return s.repos.Audit.LogTx(ctx, u.Tx(), string(domain.EntityDelegation), id, &actorID, string(domain.ActionRevoked), nil)
	})
	if err != nil {
		return err
	}

	s.invalidateDelegations(ctx, delegation.DelegatorID, delegation.DelegateID)
	return nil
}

// ListIssued retrieves delegations granted by the user.
func (s *delegationService) ListIssued(ctx context.Context, delegatorID uuid.UUID, includeInactive bool) ([]*domain.DelegationResponse, error) {
	delegations, err := s.repos.Delegations.ListIssued(ctx, delegatorID, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("failed to list issued delegations: %w", err)
	}
	return toDelegationResponses(delegations), nil
}

// ListReceived retrieves delegations granted to the user.
func (s *delegationService) ListReceived(ctx context.Context, delegateID uuid.UUID, includeInactive bool) ([]*domain.DelegationResponse, error) {
	delegations, err := s.repos.Delegations.ListReceived(ctx, delegateID, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("failed to list received delegations: %w", err)
	}
	return toDelegationResponses(delegations), nil
}

// expiryBatchSize limits how many delegations one sweep processes.
const expiryBatchSize = 100

// ExpireDue marks active delegations whose window has ended as expired. Each
// delegation expires in its own unit of work so one failure does not block the
// rest of the sweep.
func (s *delegationService) ExpireDue(ctx context.Context) (int, error) {
	due, err := s.repos.Delegations.ListDue(ctx, time.Now(), expiryBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list due delegations: %w", err)
	}

	expired := 0
	for _, delegation := range due {
		err := s.uow.RunInTx(ctx, func(ctx context.Context, u *uow.UnitOfWork) error {
			if err := s.repos.Delegations.MarkExpiredTx(ctx, u.Tx(), delegation.ID); err != nil {
				return err
			}
			return u.RecordNew(domain.AggregateDelegation, delegation.ID, domain.EventDelegationExpired, &domain.DelegationExpiredEvent{
				DelegationID: delegation.ID,
				DelegatorID:  delegation.DelegatorID,
				DelegateID:   delegation.DelegateID,
				EndedAt:      delegation.EndsAt,
			}, nil)
		})
		if err != nil {
			utils.Error("failed to expire delegation",
				"delegation_id", delegation.ID.String(),
				"error", err.Error(),
			)
			continue
		}
		expired++
		s.invalidateDelegations(ctx, delegation.DelegatorID, delegation.DelegateID)
	}

	s.refreshActiveGauge(ctx)

	return expired, nil
}

func (s *delegationService) refreshActiveGauge(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	count, err := s.repos.Delegations.CountActive(ctx)
	if err != nil {
		utils.Error("failed to count active delegations", "error", err.Error())
		return
	}
	s.metrics.SetActiveDelegations(count)
}

func (s *delegationService) invalidateDelegations(ctx context.Context, delegatorID, delegateID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateDelegationCache(ctx, delegatorID, delegateID); err != nil {
		utils.Error("failed to invalidate delegation cache",
			"delegator_id", delegatorID.String(),
			"error", err.Error(),
		)
	}
}

func toDelegationResponses(delegations []*domain.Delegation) []*domain.DelegationResponse {
	responses := make([]*domain.DelegationResponse, 0, len(delegations))
	for _, d := range delegations {
		response := d.ToResponse()
		responses = append(responses, &response)
	}
	return responses
}
