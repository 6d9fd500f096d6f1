package returns

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/returnhub/backend/internal/domain/shared"
	"github.com/returnhub/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Status represents the lifecycle state of a return request
type Status string

const (
	StatusRequested   Status = "REQUESTED"    // Submitted, awaiting decision
	StatusApproved    Status = "APPROVED"     // Approved automatically or by admin
	StatusDenied      Status = "DENIED"       // Denied at decision time
	StatusLabelIssued Status = "LABEL_ISSUED" // Shipping label generated
	StatusInTransit   Status = "IN_TRANSIT"   // Items on their way back
	StatusReceived    Status = "RECEIVED"     // Physical receipt confirmed
	StatusResolved    Status = "RESOLVED"     // Refund/exchange fulfilled
	StatusRejected    Status = "REJECTED"     // Post-hoc administrative reversal
	StatusArchived    Status = "ARCHIVED"     // Administrative close, no business outcome
)

// IsValid checks if the status is a known Status
func (s Status) IsValid() bool {
	switch s {
	case StatusRequested, StatusApproved, StatusDenied, StatusLabelIssued,
		StatusInTransit, StatusReceived, StatusResolved, StatusRejected, StatusArchived:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether the status admits no further transitions
func (s Status) IsTerminal() bool {
	switch s {
	case StatusDenied, StatusResolved, StatusRejected, StatusArchived:
		return true
	}
	return false
}

// CanTransitionTo checks if the status can transition to the target status.
// Any non-terminal status may be archived administratively.
func (s Status) CanTransitionTo(target Status) bool {
	if target == StatusArchived {
		return !s.IsTerminal()
	}
	switch s {
	case StatusRequested:
		return target == StatusApproved || target == StatusDenied || target == StatusRejected
	case StatusApproved:
		return target == StatusLabelIssued || target == StatusInTransit || target == StatusRejected
	case StatusLabelIssued:
		return target == StatusInTransit
	case StatusInTransit:
		return target == StatusReceived
	case StatusReceived:
		return target == StatusResolved
	}
	return false
}

// Channel identifies where a submission originated
type Channel string

const (
	ChannelCustomerPortal Channel = "CUSTOMER_PORTAL"
	ChannelAdmin          Channel = "ADMIN"
)

// IsValid checks if the channel is known
func (c Channel) IsValid() bool {
	return c == ChannelCustomerPortal || c == ChannelAdmin
}

// PreferredOutcome is what the customer wants back
type PreferredOutcome string

const (
	OutcomeRefundOriginal PreferredOutcome = "REFUND_ORIGINAL"
	OutcomeStoreCredit    PreferredOutcome = "STORE_CREDIT"
	OutcomeExchange       PreferredOutcome = "EXCHANGE"
	OutcomeReplacement    PreferredOutcome = "REPLACEMENT"
)

// IsValid checks if the outcome is known
func (o PreferredOutcome) IsValid() bool {
	switch o {
	case OutcomeRefundOriginal, OutcomeStoreCredit, OutcomeExchange, OutcomeReplacement:
		return true
	}
	return false
}

// IsMonetary reports whether the outcome pays money (or credit) out
func (o PreferredOutcome) IsMonetary() bool {
	return o == OutcomeRefundOriginal || o == OutcomeStoreCredit
}

// ReturnMethod is how the items travel back to the merchant
type ReturnMethod string

const (
	MethodPrepaidLabel  ReturnMethod = "PREPAID_LABEL"
	MethodQRDropoff     ReturnMethod = "QR_DROPOFF"
	MethodInStore       ReturnMethod = "IN_STORE"
	MethodCustomerShips ReturnMethod = "CUSTOMER_SHIPS"
)

// IsValid checks if the return method is known
func (m ReturnMethod) IsValid() bool {
	switch m {
	case MethodPrepaidLabel, MethodQRDropoff, MethodInStore, MethodCustomerShips:
		return true
	}
	return false
}

// RequiresLabel reports whether the method needs a shippable label
func (m ReturnMethod) RequiresLabel() bool {
	return m == MethodPrepaidLabel || m == MethodQRDropoff
}

// OrderRef is the denormalized order snapshot captured at submission time.
// It is never refreshed; later order edits do not retroactively change an
// already-created return.
type OrderRef struct {
	OrderID       string               `gorm:"type:varchar(64);not null;index" json:"order_id"`
	OrderNumber   string               `gorm:"type:varchar(64);not null" json:"order_number"`
	CustomerEmail string               `gorm:"type:varchar(255)" json:"customer_email"`
	OrderTotal    decimal.Decimal      `gorm:"type:decimal(12,2)" json:"order_total"`
	Currency      valueobject.Currency `gorm:"type:varchar(3)" json:"currency"`
}

// ReturnLineItem is one returnable unit within the request
type ReturnLineItem struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ReturnRequestID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"return_request_id"`
	FulfillmentLineID string          `gorm:"type:varchar(64);not null" json:"fulfillment_line_id"`
	SKU               string          `gorm:"type:varchar(64)" json:"sku"`
	Title             string          `gorm:"type:varchar(255)" json:"title"`
	UnitPrice         decimal.Decimal `gorm:"type:decimal(12,2)" json:"unit_price"`
	UnitTax           decimal.Decimal `gorm:"type:decimal(12,2)" json:"unit_tax"`
	Quantity          int             `gorm:"not null" json:"quantity"`
	EligibleQuantity  int             `gorm:"not null" json:"eligible_quantity"`
	Reason            ReasonCode      `gorm:"type:varchar(32);not null" json:"reason"`
	Note              string          `gorm:"type:text" json:"note,omitempty"`
	Photos            pq.StringArray  `gorm:"type:text[]" json:"photos,omitempty"`
	Tags              pq.StringArray  `gorm:"type:text[]" json:"tags,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// NewReturnLineItem builds a line item from an eligible order line
func NewReturnLineItem(eligible EligibleLineItem, quantity int, reason ReasonCode, note string, photos []string) (*ReturnLineItem, error) {
	if quantity < 1 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Requested quantity must be at least 1")
	}
	if quantity > eligible.EligibleQuantity {
		return nil, NewItemNotEligibleError([]string{eligible.FulfillmentLineID})
	}
	if !reason.IsValid() {
		return nil, shared.NewDomainErrorf("INVALID_REASON", "Unknown return reason: %s", reason)
	}
	now := time.Now()
	return &ReturnLineItem{
		ID:                uuid.New(),
		FulfillmentLineID: eligible.FulfillmentLineID,
		SKU:               eligible.SKU,
		Title:             eligible.Title,
		UnitPrice:         eligible.UnitPrice,
		UnitTax:           eligible.UnitTax,
		Quantity:          quantity,
		EligibleQuantity:  eligible.EligibleQuantity,
		Reason:            reason,
		Note:              note,
		Photos:            photos,
		Tags:              eligible.Tags,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// Contribution returns the item's refund contribution (unit price x quantity)
func (i *ReturnLineItem) Contribution() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// TaxContribution returns the item's tax refund contribution
func (i *ReturnLineItem) TaxContribution() decimal.Decimal {
	return i.UnitTax.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// HasPhotos reports whether photo evidence is attached
func (i *ReturnLineItem) HasPhotos() bool {
	return len(i.Photos) > 0
}

// RefundBreakdown is the server-computed money result of a submission.
// final_amount = item_total + tax_refund + incentive - discount - return_fee,
// clamped to >= 0. Client-submitted estimates are never persisted.
type RefundBreakdown struct {
	ItemTotal   decimal.Decimal      `gorm:"type:decimal(12,2)" json:"item_total"`
	TaxRefund   decimal.Decimal      `gorm:"type:decimal(12,2)" json:"tax_refund"`
	Discount    decimal.Decimal      `gorm:"type:decimal(12,2)" json:"discount"`
	Incentive   decimal.Decimal      `gorm:"type:decimal(12,2)" json:"incentive"`
	ReturnFee   decimal.Decimal      `gorm:"type:decimal(12,2)" json:"return_fee"`
	FinalAmount decimal.Decimal      `gorm:"type:decimal(12,2)" json:"final_amount"`
	Currency    valueobject.Currency `gorm:"type:varchar(3)" json:"currency"`
}

// FinalMoney returns the final amount as a Money value object, falling back
// to the default currency for breakdowns that predate evaluation.
func (b RefundBreakdown) FinalMoney() valueobject.Money {
	currency := b.Currency
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}
	m, _ := valueobject.NewMoney(b.FinalAmount, currency)
	return m
}

// AdminOverride is a human decision that supersedes the automatic verdict.
// A non-empty justification note is mandatory.
type AdminOverride struct {
	Approved bool
	Note     string
	Tags     []string
}

// ReturnRequest is the aggregate root owning the lifecycle of one return
// from creation to terminal resolution. It is mutated only through the
// transition methods below; every committed transition appends exactly one
// audit event.
type ReturnRequest struct {
	shared.TenantAggregateRoot
	RequestNumber    string           `gorm:"type:varchar(50);not null;uniqueIndex:idx_returns_tenant_number,composite:tenant_id"`
	Channel          Channel          `gorm:"type:varchar(32);not null"`
	Order            OrderRef         `gorm:"embedded;embeddedPrefix:order_"`
	Items            []ReturnLineItem `gorm:"foreignKey:ReturnRequestID"`
	PreferredOutcome PreferredOutcome `gorm:"type:varchar(32);not null"`
	ReturnMethod     ReturnMethod     `gorm:"type:varchar(32);not null"`
	StoreLocationID  *uuid.UUID       `gorm:"type:uuid"`
	CustomerNote     string           `gorm:"type:text"`
	Refund           RefundBreakdown  `gorm:"embedded;embeddedPrefix:refund_"`
	Policy           PolicySnapshot   `gorm:"type:jsonb"`
	Status           Status           `gorm:"type:varchar(32);not null;index"`
	AutoApproved     bool             `gorm:"not null;default:false"`
	OverrideApproved *bool            `gorm:""`
	OverrideNote     string           `gorm:"type:text"`
	OverrideTags     pq.StringArray   `gorm:"type:text[]"`
	AuditLog         []AuditEvent     `gorm:"foreignKey:ReturnRequestID"`
	DecidedAt        *time.Time
	ResolvedAt       *time.Time
	ArchivedAt       *time.Time
}

// NewReturnRequest creates a return request in the initial REQUESTED state.
// Items must already be intersected against provider-reported eligibility;
// quantity bounds are still re-verified here, not trusted from client state.
func NewReturnRequest(
	tenantID uuid.UUID,
	requestNumber string,
	channel Channel,
	order OrderRef,
	items []ReturnLineItem,
	outcome PreferredOutcome,
	method ReturnMethod,
	storeLocationID *uuid.UUID,
	customerNote string,
	submitter Actor,
) (*ReturnRequest, error) {
	if requestNumber == "" {
		return nil, shared.NewDomainError(CodeInvalidReturnRequest, "Request number cannot be empty")
	}
	if !channel.IsValid() {
		return nil, shared.NewDomainErrorf(CodeInvalidReturnRequest, "Unknown channel: %s", channel)
	}
	if !outcome.IsValid() {
		return nil, shared.NewDomainErrorf(CodeInvalidReturnRequest, "Unknown preferred outcome: %s", outcome)
	}
	if !method.IsValid() {
		return nil, shared.NewDomainErrorf(CodeInvalidReturnRequest, "Unknown return method: %s", method)
	}
	if method == MethodInStore && storeLocationID == nil {
		return nil, shared.NewDomainError(CodeInvalidReturnRequest, "In-store returns require a store location")
	}
	if len(items) == 0 {
		return nil, shared.NewDomainError(CodeInvalidReturnRequest, "A return request needs at least one item")
	}
	for i := range items {
		if items[i].Quantity < 1 || items[i].Quantity > items[i].EligibleQuantity {
			return nil, NewItemNotEligibleError([]string{items[i].FulfillmentLineID})
		}
	}

	rr := &ReturnRequest{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		RequestNumber:       requestNumber,
		Channel:             channel,
		Order:               order,
		Items:               make([]ReturnLineItem, 0, len(items)),
		PreferredOutcome:    outcome,
		ReturnMethod:        method,
		StoreLocationID:     storeLocationID,
		CustomerNote:        customerNote,
		Status:              StatusRequested,
	}
	for i := range items {
		items[i].ReturnRequestID = rr.ID
		rr.Items = append(rr.Items, items[i])
	}

	rr.appendAudit(submitter, AuditActionRequested, "Return request submitted")
	rr.AddDomainEvent(NewReturnRequestedEvent(rr))

	return rr, nil
}

// SetEvaluation records the computed refund breakdown and the policy
// snapshot it was computed from. Called once by the orchestrator before the
// initial decision transition.
func (r *ReturnRequest) SetEvaluation(breakdown RefundBreakdown, policy PolicySnapshot) {
	r.Refund = breakdown
	r.Policy = policy
	r.Touch()
}

// HasOverride reports whether an admin override was applied
func (r *ReturnRequest) HasOverride() bool {
	return r.OverrideApproved != nil
}

// IsTerminal reports whether the request reached a terminal state
func (r *ReturnRequest) IsTerminal() bool {
	return r.Status.IsTerminal()
}

// guard validates a transition, treating a same-state re-application as an
// idempotent no-op (duplicate carrier webhooks deliver the same signal more
// than once). Returns (noop, error).
func (r *ReturnRequest) guard(target Status) (bool, error) {
	if r.Status == target {
		return true, nil
	}
	if !r.Status.CanTransitionTo(target) {
		return false, NewIllegalTransitionError(r.Status, target)
	}
	return false, nil
}

func (r *ReturnRequest) commit(target Status, actor Actor, action, detail string) {
	now := time.Now()
	r.Status = target
	switch target {
	case StatusApproved, StatusDenied:
		r.DecidedAt = &now
	case StatusResolved:
		r.ResolvedAt = &now
	case StatusArchived:
		r.ArchivedAt = &now
	}
	r.UpdatedAt = now
	r.appendAudit(actor, action, detail)
	r.AddDomainEvent(NewStatusChangedEvent(r, target, actor))
}

// ApproveAutomatically applies the evaluator's auto-approval verdict.
// Only the system may auto-approve; the evidence gate is re-checked so a
// request with missing required photos can never leave REQUESTED approved.
func (r *ReturnRequest) ApproveAutomatically() error {
	noop, err := r.guard(StatusApproved)
	if err != nil || noop {
		return err
	}
	if missing := r.missingEvidence(); len(missing) > 0 {
		return NewEvidenceRequiredError(missing)
	}
	r.AutoApproved = true
	r.commit(StatusApproved, SystemActor(), AuditActionAutoApproved,
		"Approved automatically under policy ceiling")
	return nil
}

// Approve records an explicit admin approval
func (r *ReturnRequest) Approve(actor Actor, note string) error {
	noop, err := r.guard(StatusApproved)
	if err != nil || noop {
		return err
	}
	if missing := r.missingEvidence(); len(missing) > 0 {
		return NewEvidenceRequiredError(missing)
	}
	r.AutoApproved = false
	r.commit(StatusApproved, actor, AuditActionApproved, note)
	return nil
}

// Deny records a denial at decision time
func (r *ReturnRequest) Deny(actor Actor, detail string) error {
	noop, err := r.guard(StatusDenied)
	if err != nil || noop {
		return err
	}
	r.commit(StatusDenied, actor, AuditActionDenied, detail)
	return nil
}

// ApplyOverride supersedes the automatic verdict with a human decision.
// The override must carry a non-empty justification note; it remains subject
// to the same transition legality rules as any other decision.
func (r *ReturnRequest) ApplyOverride(override AdminOverride, actor Actor) error {
	if override.Note == "" {
		return NewMissingJustificationError()
	}
	target := StatusDenied
	if override.Approved {
		target = StatusApproved
	}
	noop, err := r.guard(target)
	if err != nil || noop {
		return err
	}
	approved := override.Approved
	r.AutoApproved = false
	r.OverrideApproved = &approved
	r.OverrideNote = override.Note
	r.OverrideTags = override.Tags
	r.commit(target, actor, AuditActionOverrideApplied, override.Note)
	return nil
}

// IssueLabel marks the shipping label as generated. Only return methods that
// ship a label pass this guard; in-store and customer-ships returns go
// straight to IN_TRANSIT.
func (r *ReturnRequest) IssueLabel(actor Actor) error {
	noop, err := r.guard(StatusLabelIssued)
	if err != nil || noop {
		return err
	}
	if !r.ReturnMethod.RequiresLabel() {
		return NewIllegalTransitionError(r.Status, StatusLabelIssued)
	}
	r.commit(StatusLabelIssued, actor, AuditActionLabelIssued, "Return label issued")
	return nil
}

// MarkInTransit records a carrier tracking event or an explicit merchant
// mark. Label methods must issue a label first.
func (r *ReturnRequest) MarkInTransit(actor Actor, detail string) error {
	noop, err := r.guard(StatusInTransit)
	if err != nil || noop {
		return err
	}
	if r.Status == StatusApproved && r.ReturnMethod.RequiresLabel() {
		return NewIllegalTransitionError(r.Status, StatusInTransit)
	}
	r.commit(StatusInTransit, actor, AuditActionInTransit, detail)
	return nil
}

// MarkReceived records explicit merchant confirmation of physical receipt
func (r *ReturnRequest) MarkReceived(actor Actor) error {
	noop, err := r.guard(StatusReceived)
	if err != nil || noop {
		return err
	}
	r.commit(StatusReceived, actor, AuditActionReceived, "Returned items received")
	return nil
}

// Resolve records that the refund/exchange fulfillment was confirmed
func (r *ReturnRequest) Resolve(actor Actor, detail string) error {
	noop, err := r.guard(StatusResolved)
	if err != nil || noop {
		return err
	}
	r.commit(StatusResolved, actor, AuditActionResolved, detail)
	return nil
}

// Reject records a post-hoc administrative reversal. Requires a note.
func (r *ReturnRequest) Reject(actor Actor, note string) error {
	if note == "" {
		return NewMissingJustificationError()
	}
	noop, err := r.guard(StatusRejected)
	if err != nil || noop {
		return err
	}
	r.commit(StatusRejected, actor, AuditActionRejected, note)
	return nil
}

// Archive closes the request administratively without a business outcome
func (r *ReturnRequest) Archive(actor Actor, note string) error {
	noop, err := r.guard(StatusArchived)
	if err != nil || noop {
		return err
	}
	r.commit(StatusArchived, actor, AuditActionArchived, note)
	return nil
}

// Transition dispatches a generic target-status request to the matching
// guarded method. Decision, confirmation and closure targets are admin-only;
// shipment signals also accept the system actor (carrier webhooks). Customers
// never drive status through this path, so auto-approval stays reachable only
// from the submission orchestrator.
func (r *ReturnRequest) Transition(target Status, actor Actor, note string) error {
	if !target.IsValid() {
		return shared.NewDomainErrorf(CodeInvalidReturnRequest, "Unknown target status: %s", target)
	}
	switch target {
	case StatusLabelIssued, StatusInTransit:
		if !actor.IsAdmin() && !actor.IsSystem() {
			return NewActorNotPermittedError(target)
		}
	default:
		if !actor.IsAdmin() {
			return NewActorNotPermittedError(target)
		}
	}
	switch target {
	case StatusApproved:
		return r.Approve(actor, note)
	case StatusDenied:
		return r.Deny(actor, note)
	case StatusLabelIssued:
		return r.IssueLabel(actor)
	case StatusInTransit:
		return r.MarkInTransit(actor, note)
	case StatusReceived:
		return r.MarkReceived(actor)
	case StatusResolved:
		return r.Resolve(actor, note)
	case StatusRejected:
		return r.Reject(actor, note)
	case StatusArchived:
		return r.Archive(actor, note)
	default:
		return NewIllegalTransitionError(r.Status, target)
	}
}

// AppendComment appends a timeline entry without a status change. Permitted
// even in terminal states (late comments for compliance).
func (r *ReturnRequest) AppendComment(actor Actor, text string, internal bool) error {
	if text == "" {
		return shared.NewDomainError(CodeInvalidReturnRequest, "Comment text cannot be empty")
	}
	action := AuditActionComment
	if internal {
		action = AuditActionInternalComment
	}
	r.appendAudit(actor, action, text)
	r.Touch()
	return nil
}

// missingEvidence lists line IDs whose reason demands photos that are absent
func (r *ReturnRequest) missingEvidence() []string {
	var missing []string
	for i := range r.Items {
		if r.Policy.RequiresEvidence(r.Items[i].Reason) && !r.Items[i].HasPhotos() {
			missing = append(missing, r.Items[i].FulfillmentLineID)
		}
	}
	return missing
}

// appendAudit assigns the next monotonic sequence number and appends.
// AuditLog is append-only; nothing else touches it.
func (r *ReturnRequest) appendAudit(actor Actor, action, detail string) {
	seq := len(r.AuditLog) + 1
	r.AuditLog = append(r.AuditLog, newAuditEvent(r.ID, seq, actor, action, detail))
}

// LastAuditEvent returns the most recent timeline entry
func (r *ReturnRequest) LastAuditEvent() *AuditEvent {
	if len(r.AuditLog) == 0 {
		return nil
	}
	return &r.AuditLog[len(r.AuditLog)-1]
}

// GetItem returns an item by fulfillment line ID
func (r *ReturnRequest) GetItem(fulfillmentLineID string) *ReturnLineItem {
	for i := range r.Items {
		if r.Items[i].FulfillmentLineID == fulfillmentLineID {
			return &r.Items[i]
		}
	}
	return nil
}

// ItemCount returns the number of line items
func (r *ReturnRequest) ItemCount() int {
	return len(r.Items)
}
