package returns

import (
	"context"

	"github.com/google/uuid"
	"github.com/returnhub/backend/internal/domain/returns"
	"github.com/returnhub/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// LifecycleService handles everything after submission: reads, status
// transitions, admin overrides, and timeline comments. Every mutation goes
// through optimistic locking on the aggregate version; a concurrent write
// surfaces as CONCURRENT_MODIFICATION and the caller retries with fresh
// state.
type LifecycleService struct {
	repo           returns.ReturnRequestRepository
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewLifecycleService creates a new LifecycleService
func NewLifecycleService(repo returns.ReturnRequestRepository, logger *zap.Logger) *LifecycleService {
	return &LifecycleService{
		repo:   repo,
		logger: logger,
	}
}

// SetEventPublisher sets the event publisher for cross-context integration
func (s *LifecycleService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// GetByID retrieves a return request with its full timeline
func (s *LifecycleService) GetByID(ctx context.Context, tenantID, requestID uuid.UUID) (*ReturnRequestResponse, error) {
	rr, err := s.repo.FindByIDForTenant(ctx, tenantID, requestID)
	if err != nil {
		return nil, err
	}
	response := ToReturnRequestResponse(rr, true)
	return &response, nil
}

// List retrieves return requests for a tenant with optional status filtering
// and pagination
func (s *LifecycleService) List(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]ReturnRequestListItemResponse, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	requests, err := s.repo.FindAllForTenant(ctx, tenantID, filter.Status, shared.Filter{
		Page:     filter.Page,
		PageSize: filter.PageSize,
		OrderBy:  "created_at",
		OrderDir: "desc",
	})
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.CountForTenant(ctx, tenantID, filter.Status)
	if err != nil {
		return nil, 0, err
	}

	items := make([]ReturnRequestListItemResponse, len(requests))
	for i := range requests {
		items[i] = ToReturnRequestListItemResponse(&requests[i])
	}
	return items, total, nil
}

// StatusCounts reports per-status totals for the tenant dashboard
func (s *LifecycleService) StatusCounts(ctx context.Context, tenantID uuid.UUID) (*StatusCountsResponse, error) {
	counts, err := s.repo.CountByStatus(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	var total int64
	for _, n := range counts {
		total += n
	}
	return &StatusCountsResponse{Counts: counts, Total: total}, nil
}

// Transition applies a status change by target name. Same-state requests are
// idempotent no-ops that skip the write entirely, so duplicate webhook
// deliveries neither bump the version nor grow the audit log.
func (s *LifecycleService) Transition(ctx context.Context, tenantID, requestID uuid.UUID, actor returns.Actor, req TransitionRequest) (*ReturnRequestResponse, error) {
	return s.mutate(ctx, tenantID, requestID, func(rr *returns.ReturnRequest) error {
		return rr.Transition(req.Target, actor, req.Note)
	})
}

// ApplyOverride records a human decision superseding the automatic verdict
func (s *LifecycleService) ApplyOverride(ctx context.Context, tenantID, requestID uuid.UUID, actor returns.Actor, req OverrideRequest) (*ReturnRequestResponse, error) {
	return s.mutate(ctx, tenantID, requestID, func(rr *returns.ReturnRequest) error {
		return rr.ApplyOverride(returns.AdminOverride{
			Approved: req.Approved,
			Note:     req.Note,
			Tags:     req.Tags,
		}, actor)
	})
}

// AppendComment adds a timeline comment without a status change
func (s *LifecycleService) AppendComment(ctx context.Context, tenantID, requestID uuid.UUID, actor returns.Actor, req CommentRequest) (*ReturnRequestResponse, error) {
	return s.mutate(ctx, tenantID, requestID, func(rr *returns.ReturnRequest) error {
		return rr.AppendComment(actor, req.Text, req.Internal)
	})
}

// mutate loads the aggregate, applies the change, and persists it under the
// version observed at load time
func (s *LifecycleService) mutate(ctx context.Context, tenantID, requestID uuid.UUID, apply func(*returns.ReturnRequest) error) (*ReturnRequestResponse, error) {
	rr, err := s.repo.FindByIDForTenant(ctx, tenantID, requestID)
	if err != nil {
		return nil, err
	}
	expectedVersion := rr.Version
	auditLenBefore := len(rr.AuditLog)

	if err := apply(rr); err != nil {
		return nil, err
	}

	if len(rr.AuditLog) == auditLenBefore {
		// Idempotent no-op, nothing to persist
		response := ToReturnRequestResponse(rr, true)
		return &response, nil
	}

	if err := s.repo.SaveWithLock(ctx, rr, expectedVersion); err != nil {
		return nil, err
	}

	s.logger.Info("Return request updated",
		zap.String("tenant_id", tenantID.String()),
		zap.String("request_number", rr.RequestNumber),
		zap.String("status", rr.Status.String()),
		zap.String("action", rr.LastAuditEvent().Action))

	s.publishEvents(ctx, rr)

	response := ToReturnRequestResponse(rr, true)
	return &response, nil
}

func (s *LifecycleService) publishEvents(ctx context.Context, rr *returns.ReturnRequest) {
	if s.eventPublisher == nil {
		return
	}
	for _, event := range rr.GetDomainEvents() {
		if err := s.eventPublisher.Publish(ctx, event); err != nil {
			s.logger.Warn("Failed to publish domain event",
				zap.String("event_type", event.EventType()), zap.Error(err))
		}
	}
	rr.ClearDomainEvents()
}
