package returns

import (
	"github.com/google/uuid"
	"github.com/returnhub/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Aggregate type constant for ReturnRequest
const AggregateTypeReturnRequest = "ReturnRequest"

// Event type constants for ReturnRequest
const (
	EventTypeReturnRequested   = "ReturnRequested"
	EventTypeReturnApproved    = "ReturnApproved"
	EventTypeReturnDenied      = "ReturnDenied"
	EventTypeReturnLabelIssued = "ReturnLabelIssued"
	EventTypeReturnInTransit   = "ReturnInTransit"
	EventTypeReturnReceived    = "ReturnReceived"
	EventTypeReturnResolved    = "ReturnResolved"
	EventTypeReturnRejected    = "ReturnRejected"
	EventTypeReturnArchived    = "ReturnArchived"
)

// ReturnItemInfo represents item information for events
type ReturnItemInfo struct {
	ItemID            uuid.UUID       `json:"item_id"`
	FulfillmentLineID string          `json:"fulfillment_line_id"`
	SKU               string          `json:"sku"`
	Title             string          `json:"title"`
	Quantity          int             `json:"quantity"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	Reason            ReasonCode      `json:"reason"`
}

func itemInfos(items []ReturnLineItem) []ReturnItemInfo {
	infos := make([]ReturnItemInfo, len(items))
	for i, item := range items {
		infos[i] = ReturnItemInfo{
			ItemID:            item.ID,
			FulfillmentLineID: item.FulfillmentLineID,
			SKU:               item.SKU,
			Title:             item.Title,
			Quantity:          item.Quantity,
			UnitPrice:         item.UnitPrice,
			Reason:            item.Reason,
		}
	}
	return infos
}

// ReturnRequestedEvent is raised when a new return request is submitted
type ReturnRequestedEvent struct {
	shared.BaseDomainEvent
	RequestID        uuid.UUID        `json:"request_id"`
	RequestNumber    string           `json:"request_number"`
	OrderID          string           `json:"order_id"`
	OrderNumber      string           `json:"order_number"`
	Channel          Channel          `json:"channel"`
	PreferredOutcome PreferredOutcome `json:"preferred_outcome"`
	ReturnMethod     ReturnMethod     `json:"return_method"`
	Items            []ReturnItemInfo `json:"items"`
}

// NewReturnRequestedEvent creates a new ReturnRequestedEvent
func NewReturnRequestedEvent(rr *ReturnRequest) *ReturnRequestedEvent {
	return &ReturnRequestedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeReturnRequested, AggregateTypeReturnRequest, rr.ID, rr.TenantID),
		RequestID:        rr.ID,
		RequestNumber:    rr.RequestNumber,
		OrderID:          rr.Order.OrderID,
		OrderNumber:      rr.Order.OrderNumber,
		Channel:          rr.Channel,
		PreferredOutcome: rr.PreferredOutcome,
		ReturnMethod:     rr.ReturnMethod,
		Items:            itemInfos(rr.Items),
	}
}

// EventType returns the event type name
func (e *ReturnRequestedEvent) EventType() string {
	return EventTypeReturnRequested
}

// ReturnStatusChangedEvent is raised for every committed lifecycle
// transition. The event type reflects the target status so subscribers can
// filter (refund execution listens for ReturnApproved, notification for all).
type ReturnStatusChangedEvent struct {
	shared.BaseDomainEvent
	RequestID     uuid.UUID       `json:"request_id"`
	RequestNumber string          `json:"request_number"`
	OrderNumber   string          `json:"order_number"`
	NewStatus     Status          `json:"new_status"`
	Actor         Actor           `json:"actor"`
	AutoApproved  bool            `json:"auto_approved"`
	FinalAmount   decimal.Decimal `json:"final_amount"`
}

// NewStatusChangedEvent creates a ReturnStatusChangedEvent for the target status
func NewStatusChangedEvent(rr *ReturnRequest, target Status, actor Actor) *ReturnStatusChangedEvent {
	return &ReturnStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(statusEventType(target), AggregateTypeReturnRequest, rr.ID, rr.TenantID),
		RequestID:       rr.ID,
		RequestNumber:   rr.RequestNumber,
		OrderNumber:     rr.Order.OrderNumber,
		NewStatus:       target,
		Actor:           actor,
		AutoApproved:    rr.AutoApproved,
		FinalAmount:     rr.Refund.FinalAmount,
	}
}

func statusEventType(target Status) string {
	switch target {
	case StatusApproved:
		return EventTypeReturnApproved
	case StatusDenied:
		return EventTypeReturnDenied
	case StatusLabelIssued:
		return EventTypeReturnLabelIssued
	case StatusInTransit:
		return EventTypeReturnInTransit
	case StatusReceived:
		return EventTypeReturnReceived
	case StatusResolved:
		return EventTypeReturnResolved
	case StatusRejected:
		return EventTypeReturnRejected
	case StatusArchived:
		return EventTypeReturnArchived
	default:
		return "ReturnStatusChanged"
	}
}
