package returns

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/returnhub/backend/internal/domain/returns"
	"github.com/returnhub/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// DefaultDedupWindow bounds how long a duplicate submission maps back to the
// originally created request
const DefaultDedupWindow = 10 * time.Minute

// SubmissionService orchestrates return request creation: order lookup and
// verification, eligibility intersection, policy evaluation, deduplication,
// and the initial auto-decision. Each step either fully succeeds or the
// submission fails as a whole with a specific error; no partial request is
// ever persisted.
type SubmissionService struct {
	repo           returns.ReturnRequestRepository
	orderFacts     returns.OrderFactsProvider
	policies       returns.PolicyStore
	dedup          shared.DedupStore
	dedupWindow    time.Duration
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewSubmissionService creates a new SubmissionService
func NewSubmissionService(
	repo returns.ReturnRequestRepository,
	orderFacts returns.OrderFactsProvider,
	policies returns.PolicyStore,
	dedup shared.DedupStore,
	logger *zap.Logger,
) *SubmissionService {
	return &SubmissionService{
		repo:        repo,
		orderFacts:  orderFacts,
		policies:    policies,
		dedup:       dedup,
		dedupWindow: DefaultDedupWindow,
		logger:      logger,
	}
}

// SetDedupWindow overrides the duplicate-detection window
func (s *SubmissionService) SetDedupWindow(window time.Duration) {
	if window > 0 {
		s.dedupWindow = window
	}
}

// SetEventPublisher sets the event publisher for cross-context integration
func (s *SubmissionService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// Submit processes a return submission end to end. Failure checks run in a
// fixed order so clients see stable error codes: order lookup and email
// verification first, then item eligibility, then evidence, then policy
// evaluation. A duplicate submission inside the dedup window returns the
// previously created request instead of a new one.
//
// The admin channel may skip email verification (empty email) and may carry
// an override decision that supersedes the automatic verdict. The customer
// portal gets neither.
func (s *SubmissionService) Submit(ctx context.Context, tenantID uuid.UUID, req SubmitReturnRequest) (*ReturnRequestResponse, error) {
	if req.Channel != returns.ChannelAdmin {
		if req.Email == "" {
			return nil, shared.NewDomainError(returns.CodeInvalidReturnRequest, "Email is required")
		}
		if req.AdminOverride != nil {
			return nil, shared.NewDomainError(returns.CodeForbidden,
				"Admin override is only accepted on the admin channel")
		}
	}

	facts, err := s.orderFacts.Lookup(ctx, tenantID, req.OrderNumber, req.Email)
	if err != nil {
		return nil, err
	}

	items, err := s.buildItems(facts, req.Items)
	if err != nil {
		return nil, err
	}

	policy, err := s.policies.ActivePolicy(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if missing := returns.MissingEvidence(policy, items); len(missing) > 0 {
		return nil, returns.NewEvidenceRequiredError(missing)
	}

	eval, err := returns.Evaluate(policy, items, req.PreferredOutcome)
	if err != nil {
		s.logger.Error("Policy evaluation failed",
			zap.String("tenant_id", tenantID.String()),
			zap.String("order_number", req.OrderNumber),
			zap.Error(err))
		return nil, err
	}

	requestNumber, err := s.repo.GenerateRequestNumber(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	rr, err := returns.NewReturnRequest(
		tenantID, requestNumber, req.Channel, facts.Ref(), items,
		req.PreferredOutcome, req.ReturnMethod, req.StoreLocationID,
		req.CustomerNote, req.SubmittedBy,
	)
	if err != nil {
		return nil, err
	}
	rr.SetEvaluation(eval.Breakdown, *policy)

	switch {
	case req.AdminOverride != nil:
		if err := rr.ApplyOverride(returns.AdminOverride{
			Approved: req.AdminOverride.Approved,
			Note:     req.AdminOverride.Note,
			Tags:     req.AdminOverride.Tags,
		}, req.SubmittedBy); err != nil {
			return nil, err
		}
	case len(eval.Blocked) > 0:
		if err := rr.Deny(returns.SystemActor(),
			"Items blocked by return policy: "+strings.Join(eval.Blocked, ", ")); err != nil {
			return nil, err
		}
	case eval.AutoApprove:
		if err := rr.ApproveAutomatically(); err != nil {
			return nil, err
		}
	}

	dedupKey := submissionFingerprint(tenantID, facts.OrderID, req)
	existing, acquired, err := s.dedup.Reserve(ctx, dedupKey, rr.ID.String(), s.dedupWindow)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return s.resolveDuplicate(ctx, tenantID, existing)
	}

	if err := s.repo.Create(ctx, rr); err != nil {
		// Free the reservation so a retry is not answered with a request
		// that never landed
		if relErr := s.dedup.Release(ctx, dedupKey); relErr != nil {
			s.logger.Warn("Failed to release dedup reservation",
				zap.String("key", dedupKey), zap.Error(relErr))
		}
		return nil, err
	}

	s.logger.Info("Return request submitted",
		zap.String("tenant_id", tenantID.String()),
		zap.String("request_number", rr.RequestNumber),
		zap.String("order_number", rr.Order.OrderNumber),
		zap.String("status", rr.Status.String()),
		zap.Bool("auto_approved", rr.AutoApproved),
		zap.String("final_amount", rr.Refund.FinalAmount.String()))

	s.publishEvents(ctx, rr)

	response := ToReturnRequestResponse(rr, true)
	return &response, nil
}

// buildItems intersects the requested lines against provider-reported
// eligibility. All offending lines are collected so the customer sees every
// problem at once instead of fixing them one by one.
func (s *SubmissionService) buildItems(facts *returns.OrderFacts, inputs []SubmitReturnItemInput) ([]returns.ReturnLineItem, error) {
	var ineligible []string
	items := make([]returns.ReturnLineItem, 0, len(inputs))
	for _, in := range inputs {
		line := facts.Line(in.FulfillmentLineID)
		if line == nil || line.FinalSale || in.Quantity > line.EligibleQuantity {
			ineligible = append(ineligible, in.FulfillmentLineID)
			continue
		}
		item, err := returns.NewReturnLineItem(*line, in.Quantity, in.Reason, in.Note, in.Photos)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	if len(ineligible) > 0 {
		return nil, returns.NewItemNotEligibleError(ineligible)
	}
	return items, nil
}

// Duplicate resolution may race the winning submission's insert: the dedup
// reservation is taken before the row commits, so a losing caller retries a
// few times before giving up.
const (
	duplicateLookupAttempts = 5
	duplicateLookupBackoff  = 50 * time.Millisecond
)

// resolveDuplicate loads the request created by the first submission in the
// dedup window and returns it flagged as a duplicate
func (s *SubmissionService) resolveDuplicate(ctx context.Context, tenantID uuid.UUID, existingID string) (*ReturnRequestResponse, error) {
	id, err := uuid.Parse(existingID)
	if err != nil {
		return nil, shared.NewDomainError("DUPLICATE_RESOLUTION_FAILED", "Stored duplicate reference is invalid")
	}
	var rr *returns.ReturnRequest
	for attempt := 1; ; attempt++ {
		rr, err = s.repo.FindByIDForTenant(ctx, tenantID, id)
		if err == nil {
			break
		}
		if !errors.Is(err, shared.ErrNotFound) || attempt == duplicateLookupAttempts {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(duplicateLookupBackoff):
		}
	}
	s.logger.Info("Duplicate submission mapped to existing request",
		zap.String("tenant_id", tenantID.String()),
		zap.String("request_number", rr.RequestNumber))
	response := ToReturnRequestResponse(rr, true)
	response.Duplicate = true
	return &response, nil
}

func (s *SubmissionService) publishEvents(ctx context.Context, rr *returns.ReturnRequest) {
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

// submissionFingerprint canonicalizes the parts of a submission that define
// "the same return": tenant, order, the submitter's email, and the requested
// lines with quantities. Photo URLs, notes and the preferred outcome do not
// change identity.
func submissionFingerprint(tenantID uuid.UUID, orderID string, req SubmitReturnRequest) string {
	lines := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, fmt.Sprintf("%s:%d:%s", item.FulfillmentLineID, item.Quantity, item.Reason))
	}
	sort.Strings(lines)
	canonical := fmt.Sprintf("%s|%s|%s|%s", tenantID, orderID, strings.ToLower(req.Email), strings.Join(lines, ","))
	sum := sha256.Sum256([]byte(canonical))
	return "returns:dedup:" + hex.EncodeToString(sum[:])
}
