package returns

import (
	"time"

	"github.com/google/uuid"
	"github.com/returnhub/backend/internal/domain/returns"
	"github.com/shopspring/decimal"
)

// ==================== Submission DTOs ====================

// SubmitReturnRequest is the customer-facing submission payload. Any money
// figures a client sends are ignored; the breakdown is always recomputed
// server-side. Email is optional at the binding layer because admin-channel
// submissions may skip order/email verification; the service enforces it for
// the customer portal.
type SubmitReturnRequest struct {
	OrderNumber      string                   `json:"order_number" binding:"required,min=1,max=64"`
	Email            string                   `json:"email" binding:"omitempty,email"`
	Items            []SubmitReturnItemInput  `json:"items" binding:"required,min=1,dive"`
	PreferredOutcome returns.PreferredOutcome `json:"preferred_outcome" binding:"required"`
	ReturnMethod     returns.ReturnMethod     `json:"return_method" binding:"required"`
	StoreLocationID  *uuid.UUID               `json:"store_location_id"`
	CustomerNote     string                   `json:"customer_note" binding:"max=2000"`
	AdminOverride    *SubmitOverrideInput     `json:"admin_override"`
	Channel          returns.Channel          `json:"-"`
	SubmittedBy      returns.Actor            `json:"-"`
}

// SubmitOverrideInput carries an admin decision made at submission time,
// superseding the automatic verdict. Only accepted on the admin channel.
type SubmitOverrideInput struct {
	Approved bool     `json:"approved"`
	Note     string   `json:"note" binding:"max=2000"`
	Tags     []string `json:"tags" binding:"max=10"`
}

// SubmitReturnItemInput is one requested line in a submission
type SubmitReturnItemInput struct {
	FulfillmentLineID string             `json:"fulfillment_line_id" binding:"required,min=1,max=64"`
	Quantity          int                `json:"quantity" binding:"required,min=1"`
	Reason            returns.ReasonCode `json:"reason" binding:"required"`
	Note              string             `json:"note" binding:"max=1000"`
	Photos            []string           `json:"photos" binding:"max=10,dive,url"`
}

// TransitionRequest asks for a status change on an existing request
type TransitionRequest struct {
	Target returns.Status `json:"target" binding:"required"`
	Note   string         `json:"note" binding:"max=2000"`
}

// OverrideRequest applies an admin decision that supersedes the automatic verdict
type OverrideRequest struct {
	Approved bool     `json:"approved"`
	Note     string   `json:"note" binding:"required,min=1,max=2000"`
	Tags     []string `json:"tags" binding:"max=10"`
}

// CommentRequest appends a timeline comment
type CommentRequest struct {
	Text     string `json:"text" binding:"required,min=1,max=4000"`
	Internal bool   `json:"internal"`
}

// ListFilter narrows a tenant's return request listing
type ListFilter struct {
	Status   *returns.Status `form:"status"`
	Page     int             `form:"page"`
	PageSize int             `form:"page_size"`
}

// ==================== Response DTOs ====================

// ReturnItemResponse represents a line item in API responses
type ReturnItemResponse struct {
	ID                uuid.UUID          `json:"id"`
	FulfillmentLineID string             `json:"fulfillment_line_id"`
	SKU               string             `json:"sku"`
	Title             string             `json:"title"`
	UnitPrice         decimal.Decimal    `json:"unit_price"`
	UnitTax           decimal.Decimal    `json:"unit_tax"`
	Quantity          int                `json:"quantity"`
	Reason            returns.ReasonCode `json:"reason"`
	Note              string             `json:"note,omitempty"`
	Photos            []string           `json:"photos,omitempty"`
}

// RefundBreakdownResponse represents the computed money result
type RefundBreakdownResponse struct {
	ItemTotal   decimal.Decimal `json:"item_total"`
	TaxRefund   decimal.Decimal `json:"tax_refund"`
	Discount    decimal.Decimal `json:"discount"`
	Incentive   decimal.Decimal `json:"incentive"`
	ReturnFee   decimal.Decimal `json:"return_fee"`
	FinalAmount decimal.Decimal `json:"final_amount"`
	Currency    string          `json:"currency"`
	// Display is the final amount formatted with its currency, e.g. "64.79 USD"
	Display string `json:"display"`
}

// AuditEventResponse represents one timeline entry
type AuditEventResponse struct {
	Seq       int       `json:"seq"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ReturnRequestResponse represents a full return request in API responses
type ReturnRequestResponse struct {
	ID               uuid.UUID                `json:"id"`
	RequestNumber    string                   `json:"request_number"`
	Status           returns.Status           `json:"status"`
	Channel          returns.Channel          `json:"channel"`
	OrderNumber      string                   `json:"order_number"`
	CustomerEmail    string                   `json:"customer_email"`
	PreferredOutcome returns.PreferredOutcome `json:"preferred_outcome"`
	ReturnMethod     returns.ReturnMethod     `json:"return_method"`
	StoreLocationID  *uuid.UUID               `json:"store_location_id,omitempty"`
	CustomerNote     string                   `json:"customer_note,omitempty"`
	Items            []ReturnItemResponse     `json:"items"`
	Refund           RefundBreakdownResponse  `json:"refund"`
	AutoApproved     bool                     `json:"auto_approved"`
	OverrideApproved *bool                    `json:"override_approved,omitempty"`
	OverrideNote     string                   `json:"override_note,omitempty"`
	AuditLog         []AuditEventResponse     `json:"audit_log,omitempty"`
	Duplicate        bool                     `json:"duplicate,omitempty"`
	CreatedAt        time.Time                `json:"created_at"`
	UpdatedAt        time.Time                `json:"updated_at"`
	DecidedAt        *time.Time               `json:"decided_at,omitempty"`
	ResolvedAt       *time.Time               `json:"resolved_at,omitempty"`
	Version          int                      `json:"version"`
}

// ReturnRequestListItemResponse is the compact listing shape
type ReturnRequestListItemResponse struct {
	ID            uuid.UUID       `json:"id"`
	RequestNumber string          `json:"request_number"`
	Status        returns.Status  `json:"status"`
	OrderNumber   string          `json:"order_number"`
	CustomerEmail string          `json:"customer_email"`
	ItemCount     int             `json:"item_count"`
	FinalAmount   decimal.Decimal `json:"final_amount"`
	AutoApproved  bool            `json:"auto_approved"`
	CreatedAt     time.Time       `json:"created_at"`
}

// StatusCountsResponse reports per-status totals for a tenant
type StatusCountsResponse struct {
	Counts map[returns.Status]int64 `json:"counts"`
	Total  int64                    `json:"total"`
}

// ToReturnRequestResponse converts a domain aggregate to a response DTO
func ToReturnRequestResponse(rr *returns.ReturnRequest, includeAudit bool) ReturnRequestResponse {
	items := make([]ReturnItemResponse, len(rr.Items))
	for i, item := range rr.Items {
		items[i] = ReturnItemResponse{
			ID:                item.ID,
			FulfillmentLineID: item.FulfillmentLineID,
			SKU:               item.SKU,
			Title:             item.Title,
			UnitPrice:         item.UnitPrice,
			UnitTax:           item.UnitTax,
			Quantity:          item.Quantity,
			Reason:            item.Reason,
			Note:              item.Note,
			Photos:            item.Photos,
		}
	}

	resp := ReturnRequestResponse{
		ID:               rr.ID,
		RequestNumber:    rr.RequestNumber,
		Status:           rr.Status,
		Channel:          rr.Channel,
		OrderNumber:      rr.Order.OrderNumber,
		CustomerEmail:    rr.Order.CustomerEmail,
		PreferredOutcome: rr.PreferredOutcome,
		ReturnMethod:     rr.ReturnMethod,
		StoreLocationID:  rr.StoreLocationID,
		CustomerNote:     rr.CustomerNote,
		Items:            items,
		Refund: RefundBreakdownResponse{
			ItemTotal:   rr.Refund.ItemTotal,
			TaxRefund:   rr.Refund.TaxRefund,
			Discount:    rr.Refund.Discount,
			Incentive:   rr.Refund.Incentive,
			ReturnFee:   rr.Refund.ReturnFee,
			FinalAmount: rr.Refund.FinalAmount,
			Currency:    string(rr.Refund.Currency),
			Display:     rr.Refund.FinalMoney().String(),
		},
		AutoApproved:     rr.AutoApproved,
		OverrideApproved: rr.OverrideApproved,
		OverrideNote:     rr.OverrideNote,
		CreatedAt:        rr.CreatedAt,
		UpdatedAt:        rr.UpdatedAt,
		DecidedAt:        rr.DecidedAt,
		ResolvedAt:       rr.ResolvedAt,
		Version:          rr.Version,
	}
	if includeAudit {
		resp.AuditLog = make([]AuditEventResponse, len(rr.AuditLog))
		for i, e := range rr.AuditLog {
			resp.AuditLog[i] = AuditEventResponse{
				Seq:       e.Seq,
				Actor:     e.Actor.String(),
				Action:    e.Action,
				Detail:    e.Detail,
				CreatedAt: e.CreatedAt,
			}
		}
	}
	return resp
}

// ToReturnRequestListItemResponse converts an aggregate to the listing shape
func ToReturnRequestListItemResponse(rr *returns.ReturnRequest) ReturnRequestListItemResponse {
	return ReturnRequestListItemResponse{
		ID:            rr.ID,
		RequestNumber: rr.RequestNumber,
		Status:        rr.Status,
		OrderNumber:   rr.Order.OrderNumber,
		CustomerEmail: rr.Order.CustomerEmail,
		ItemCount:     rr.ItemCount(),
		FinalAmount:   rr.Refund.FinalAmount,
		AutoApproved:  rr.AutoApproved,
		CreatedAt:     rr.CreatedAt,
	}
}
