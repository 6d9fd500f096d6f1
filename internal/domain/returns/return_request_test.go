package returns

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/returnhub/backend/internal/domain/shared"
)

// Helper to build a minimal eligible line
func eligibleLine(lineID string, qty int, price int64) EligibleLineItem {
	return EligibleLineItem{
		FulfillmentLineID: lineID,
		SKU:               "SKU-" + lineID,
		Title:             "Item " + lineID,
		UnitPrice:         decimal.NewFromInt(price),
		UnitTax:           decimal.NewFromInt(price).Div(decimal.NewFromInt(10)),
		EligibleQuantity:  qty,
	}
}

// Helper to create a request in REQUESTED state
func createTestReturnRequest(t *testing.T) *ReturnRequest {
	tenantID := uuid.New()

	item, err := NewReturnLineItem(eligibleLine("line-1", 3, 40), 2, ReasonChangedMind, "", nil)
	require.NoError(t, err)

	rr, err := NewReturnRequest(
		tenantID,
		"RR-2026-00001",
		ChannelCustomerPortal,
		OrderRef{OrderID: "ord_1", OrderNumber: "1001", CustomerEmail: "a@example.com"},
		[]ReturnLineItem{*item},
		OutcomeRefundOriginal,
		MethodPrepaidLabel,
		nil,
		"",
		CustomerActor(),
	)
	require.NoError(t, err)
	return rr
}

func TestNewReturnRequest(t *testing.T) {
	t.Run("creates request in requested state with initial audit entry", func(t *testing.T) {
		rr := createTestReturnRequest(t)

		assert.Equal(t, StatusRequested, rr.Status)
		assert.Equal(t, "RR-2026-00001", rr.RequestNumber)
		require.Len(t, rr.AuditLog, 1)
		assert.Equal(t, 1, rr.AuditLog[0].Seq)
		assert.Equal(t, AuditActionRequested, rr.AuditLog[0].Action)
		assert.Equal(t, CustomerActor(), rr.AuditLog[0].Actor)
		require.Len(t, rr.Items, 1)
		assert.Equal(t, rr.ID, rr.Items[0].ReturnRequestID)
		assert.Len(t, rr.GetDomainEvents(), 1)
	})

	t.Run("fails with empty request number", func(t *testing.T) {
		item, _ := NewReturnLineItem(eligibleLine("line-1", 1, 10), 1, ReasonOther, "", nil)
		_, err := NewReturnRequest(uuid.New(), "", ChannelCustomerPortal, OrderRef{},
			[]ReturnLineItem{*item}, OutcomeRefundOriginal, MethodCustomerShips, nil, "", CustomerActor())
		assert.Error(t, err)
	})

	t.Run("fails with no items", func(t *testing.T) {
		_, err := NewReturnRequest(uuid.New(), "RR-1", ChannelCustomerPortal, OrderRef{},
			nil, OutcomeRefundOriginal, MethodCustomerShips, nil, "", CustomerActor())
		assert.Error(t, err)
	})

	t.Run("fails when quantity exceeds eligible quantity", func(t *testing.T) {
		_, err := NewReturnLineItem(eligibleLine("line-1", 1, 10), 2, ReasonOther, "", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "line-1")
	})

	t.Run("in-store method requires a store location", func(t *testing.T) {
		item, _ := NewReturnLineItem(eligibleLine("line-1", 1, 10), 1, ReasonOther, "", nil)
		_, err := NewReturnRequest(uuid.New(), "RR-1", ChannelCustomerPortal, OrderRef{},
			[]ReturnLineItem{*item}, OutcomeRefundOriginal, MethodInStore, nil, "", CustomerActor())
		assert.Error(t, err)

		loc := uuid.New()
		_, err = NewReturnRequest(uuid.New(), "RR-1", ChannelCustomerPortal, OrderRef{},
			[]ReturnLineItem{*item}, OutcomeRefundOriginal, MethodInStore, &loc, "", CustomerActor())
		assert.NoError(t, err)
	})
}

func TestStatusCanTransitionTo(t *testing.T) {
	allowed := map[Status][]Status{
		StatusRequested:   {StatusApproved, StatusDenied, StatusRejected, StatusArchived},
		StatusApproved:    {StatusLabelIssued, StatusInTransit, StatusRejected, StatusArchived},
		StatusLabelIssued: {StatusInTransit, StatusArchived},
		StatusInTransit:   {StatusReceived, StatusArchived},
		StatusReceived:    {StatusResolved, StatusArchived},
		StatusDenied:      {},
		StatusResolved:    {},
		StatusRejected:    {},
		StatusArchived:    {},
	}
	all := []Status{StatusRequested, StatusApproved, StatusDenied, StatusLabelIssued,
		StatusInTransit, StatusReceived, StatusResolved, StatusRejected, StatusArchived}

	for from, targets := range allowed {
		legal := make(map[Status]bool)
		for _, s := range targets {
			legal[s] = true
		}
		for _, to := range all {
			if from == to {
				continue
			}
			assert.Equal(t, legal[to], from.CanTransitionTo(to),
				"%s -> %s", from, to)
		}
	}
}

func TestReturnRequestTransitions(t *testing.T) {
	admin := AdminActor(uuid.New())

	t.Run("full happy path through resolution", func(t *testing.T) {
		rr := createTestReturnRequest(t)

		require.NoError(t, rr.Approve(admin, "looks fine"))
		require.NoError(t, rr.IssueLabel(SystemActor()))
		require.NoError(t, rr.MarkInTransit(SystemActor(), "carrier scan"))
		require.NoError(t, rr.MarkReceived(admin))
		require.NoError(t, rr.Resolve(admin, "refund executed"))

		assert.Equal(t, StatusResolved, rr.Status)
		assert.True(t, rr.IsTerminal())
		assert.NotNil(t, rr.DecidedAt)
		assert.NotNil(t, rr.ResolvedAt)
		// submission + five transitions
		assert.Len(t, rr.AuditLog, 6)
		for i, e := range rr.AuditLog {
			assert.Equal(t, i+1, e.Seq)
		}
	})

	t.Run("same-state transition is an idempotent no-op", func(t *testing.T) {
		rr := createTestReturnRequest(t)
		require.NoError(t, rr.Approve(admin, ""))
		auditLen := len(rr.AuditLog)

		require.NoError(t, rr.Approve(admin, "again"))
		assert.Equal(t, StatusApproved, rr.Status)
		assert.Len(t, rr.AuditLog, auditLen)
	})

	t.Run("illegal transition is refused", func(t *testing.T) {
		rr := createTestReturnRequest(t)
		err := rr.MarkReceived(admin)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "REQUESTED")
		assert.Contains(t, err.Error(), "RECEIVED")
		assert.Equal(t, StatusRequested, rr.Status)
	})

	t.Run("terminal states refuse further transitions", func(t *testing.T) {
		rr := createTestReturnRequest(t)
		require.NoError(t, rr.Deny(admin, "window elapsed"))
		assert.Error(t, rr.Approve(admin, ""))
		assert.Error(t, rr.Archive(admin, ""))
	})

	t.Run("reject reverses an approved request with a note", func(t *testing.T) {
		rr := createTestReturnRequest(t)
		require.NoError(t, rr.Approve(admin, ""))

		assert.Error(t, rr.Reject(admin, ""))
		require.NoError(t, rr.Reject(admin, "fraud signal"))
		assert.Equal(t, StatusRejected, rr.Status)
	})

	t.Run("archive closes any non-terminal state", func(t *testing.T) {
		rr := createTestReturnRequest(t)
		require.NoError(t, rr.Approve(admin, ""))
		require.NoError(t, rr.Archive(admin, "customer went silent"))
		assert.Equal(t, StatusArchived, rr.Status)
		assert.NotNil(t, rr.ArchivedAt)
	})
}

func TestLabelGating(t *testing.T) {
	admin := AdminActor(uuid.New())

	newRequest := func(t *testing.T, method ReturnMethod) *ReturnRequest {
		item, err := NewReturnLineItem(eligibleLine("line-1", 1, 25), 1, ReasonOther, "", nil)
		require.NoError(t, err)
		rr, err := NewReturnRequest(uuid.New(), "RR-1", ChannelCustomerPortal, OrderRef{},
			[]ReturnLineItem{*item}, OutcomeRefundOriginal, method, nil, "", CustomerActor())
		require.NoError(t, err)
		require.NoError(t, rr.Approve(admin, ""))
		return rr
	}

	t.Run("label methods must issue a label before transit", func(t *testing.T) {
		rr := newRequest(t, MethodPrepaidLabel)
		assert.Error(t, rr.MarkInTransit(SystemActor(), ""))
		require.NoError(t, rr.IssueLabel(SystemActor()))
		require.NoError(t, rr.MarkInTransit(SystemActor(), ""))
	})

	t.Run("customer-ships skips the label step", func(t *testing.T) {
		rr := newRequest(t, MethodCustomerShips)
		assert.Error(t, rr.IssueLabel(SystemActor()))
		require.NoError(t, rr.MarkInTransit(SystemActor(), "tracking added"))
	})
}

func TestEvidenceGate(t *testing.T) {
	t.Run("approval is blocked while required photos are missing", func(t *testing.T) {
		item, err := NewReturnLineItem(eligibleLine("line-1", 1, 30), 1, ReasonDamagedDefective, "", nil)
		require.NoError(t, err)
		rr, err := NewReturnRequest(uuid.New(), "RR-1", ChannelCustomerPortal, OrderRef{},
			[]ReturnLineItem{*item}, OutcomeRefundOriginal, MethodCustomerShips, nil, "", CustomerActor())
		require.NoError(t, err)
		rr.SetEvaluation(RefundBreakdown{}, PolicySnapshot{
			Currency:        "USD",
			EvidenceReasons: []ReasonCode{ReasonDamagedDefective},
		})

		err = rr.Approve(AdminActor(uuid.New()), "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "line-1")
		assert.Equal(t, StatusRequested, rr.Status)

		err = rr.ApproveAutomatically()
		assert.Error(t, err)
	})

	t.Run("approval passes once photos are attached", func(t *testing.T) {
		item, err := NewReturnLineItem(eligibleLine("line-1", 1, 30), 1, ReasonDamagedDefective, "",
			[]string{"https://cdn.example.com/p1.jpg"})
		require.NoError(t, err)
		rr, err := NewReturnRequest(uuid.New(), "RR-1", ChannelCustomerPortal, OrderRef{},
			[]ReturnLineItem{*item}, OutcomeRefundOriginal, MethodCustomerShips, nil, "", CustomerActor())
		require.NoError(t, err)
		rr.SetEvaluation(RefundBreakdown{}, PolicySnapshot{
			Currency:        "USD",
			EvidenceReasons: []ReasonCode{ReasonDamagedDefective},
		})

		assert.NoError(t, rr.Approve(AdminActor(uuid.New()), ""))
	})
}

func TestApplyOverride(t *testing.T) {
	admin := AdminActor(uuid.New())

	t.Run("requires a justification note", func(t *testing.T) {
		rr := createTestReturnRequest(t)
		err := rr.ApplyOverride(AdminOverride{Approved: true}, admin)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "justification")
		assert.False(t, rr.HasOverride())
	})

	t.Run("approving override moves to approved and records the note", func(t *testing.T) {
		rr := createTestReturnRequest(t)
		err := rr.ApplyOverride(AdminOverride{
			Approved: true,
			Note:     "loyal customer, waiving fee dispute",
			Tags:     []string{"goodwill"},
		}, admin)
		require.NoError(t, err)

		assert.Equal(t, StatusApproved, rr.Status)
		assert.True(t, rr.HasOverride())
		assert.False(t, rr.AutoApproved)
		last := rr.LastAuditEvent()
		require.NotNil(t, last)
		assert.Equal(t, AuditActionOverrideApplied, last.Action)
		assert.Equal(t, "loyal customer, waiving fee dispute", last.Detail)
	})

	t.Run("denying override moves to denied", func(t *testing.T) {
		rr := createTestReturnRequest(t)
		require.NoError(t, rr.ApplyOverride(AdminOverride{Approved: false, Note: "fraud pattern"}, admin))
		assert.Equal(t, StatusDenied, rr.Status)
	})

	t.Run("override obeys transition legality", func(t *testing.T) {
		rr := createTestReturnRequest(t)
		require.NoError(t, rr.Deny(admin, ""))
		err := rr.ApplyOverride(AdminOverride{Approved: true, Note: "second thoughts"}, admin)
		assert.Error(t, err)
	})
}

func TestTransitionDispatch(t *testing.T) {
	admin := AdminActor(uuid.New())

	t.Run("dispatches to the named transition", func(t *testing.T) {
		rr := createTestReturnRequest(t)
		require.NoError(t, rr.Transition(StatusApproved, admin, "ok"))
		require.NoError(t, rr.Transition(StatusLabelIssued, SystemActor(), ""))
		require.NoError(t, rr.Transition(StatusInTransit, SystemActor(), ""))
		require.NoError(t, rr.Transition(StatusReceived, admin, ""))
		require.NoError(t, rr.Transition(StatusResolved, admin, "done"))
		assert.Equal(t, StatusResolved, rr.Status)
	})

	t.Run("rejects unknown target status", func(t *testing.T) {
		rr := createTestReturnRequest(t)
		assert.Error(t, rr.Transition(Status("SHIPPED"), admin, ""))
	})

	t.Run("rejecting via dispatch requires a note", func(t *testing.T) {
		rr := createTestReturnRequest(t)
		assert.Error(t, rr.Transition(StatusRejected, admin, ""))
		assert.NoError(t, rr.Transition(StatusRejected, admin, "duplicate claim"))
	})

	t.Run("customer cannot approve a request held for review", func(t *testing.T) {
		rr := createTestReturnRequest(t)
		ceiling := decimal.NewFromInt(50)
		rr.SetEvaluation(RefundBreakdown{ItemTotal: decimal.NewFromInt(500), FinalAmount: decimal.NewFromInt(500)},
			PolicySnapshot{AutoApprovalCeiling: &ceiling})

		err := rr.Transition(StatusApproved, CustomerActor(), "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not permitted")
		assert.Equal(t, StatusRequested, rr.Status)
		assert.False(t, rr.AutoApproved)
	})

	t.Run("customer cannot drive fulfillment or closure", func(t *testing.T) {
		for _, target := range []Status{StatusDenied, StatusReceived, StatusResolved,
			StatusRejected, StatusArchived, StatusLabelIssued, StatusInTransit} {
			rr := createTestReturnRequest(t)
			err := rr.Transition(target, CustomerActor(), "note")
			require.Error(t, err, "target %s", target)
			var derr *shared.DomainError
			require.ErrorAs(t, err, &derr)
			assert.Equal(t, CodeForbidden, derr.Code)
		}
	})

	t.Run("system cannot make decisions, only shipment signals", func(t *testing.T) {
		rr := createTestReturnRequest(t)
		err := rr.Transition(StatusApproved, SystemActor(), "")
		require.Error(t, err)
		var derr *shared.DomainError
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, CodeForbidden, derr.Code)
		assert.Equal(t, StatusRequested, rr.Status)
	})
}

func TestAppendComment(t *testing.T) {
	t.Run("appends timeline entries without changing status", func(t *testing.T) {
		rr := createTestReturnRequest(t)
		require.NoError(t, rr.AppendComment(CustomerActor(), "when will this ship?", false))
		require.NoError(t, rr.AppendComment(AdminActor(uuid.New()), "flagged for review", true))

		assert.Equal(t, StatusRequested, rr.Status)
		require.Len(t, rr.AuditLog, 3)
		assert.Equal(t, AuditActionComment, rr.AuditLog[1].Action)
		assert.Equal(t, AuditActionInternalComment, rr.AuditLog[2].Action)
	})

	t.Run("allowed in terminal states", func(t *testing.T) {
		rr := createTestReturnRequest(t)
		require.NoError(t, rr.Deny(AdminActor(uuid.New()), ""))
		assert.NoError(t, rr.AppendComment(SystemActor(), "refund provider callback received late", false))
	})

	t.Run("empty text is refused", func(t *testing.T) {
		rr := createTestReturnRequest(t)
		assert.Error(t, rr.AppendComment(CustomerActor(), "", false))
	})
}

func TestActor(t *testing.T) {
	id := uuid.New()
	assert.True(t, AdminActor(id).IsAdmin())
	assert.False(t, SystemActor().IsAdmin())
	assert.False(t, CustomerActor().IsAdmin())
	assert.Contains(t, AdminActor(id).String(), id.String())
}
