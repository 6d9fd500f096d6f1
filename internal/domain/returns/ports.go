package returns

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/returnhub/backend/internal/domain/shared"
	"github.com/returnhub/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// EligibleLineItem is one returnable line as reported by the order system
// of record. EligibleQuantity is the remaining returnable quantity after
// prior returns.
type EligibleLineItem struct {
	FulfillmentLineID string
	SKU               string
	Title             string
	UnitPrice         decimal.Decimal
	UnitTax           decimal.Decimal
	EligibleQuantity  int
	Tags              []string
	FinalSale         bool
}

// OrderFacts is the authoritative order state fetched at submission time
type OrderFacts struct {
	OrderID       string
	OrderNumber   string
	CustomerEmail string
	OrderTotal    decimal.Decimal
	Currency      valueobject.Currency
	FulfilledAt   *time.Time
	Lines         []EligibleLineItem
}

// Ref snapshots the facts into the denormalized form stored on the request
func (f OrderFacts) Ref() OrderRef {
	return OrderRef{
		OrderID:       f.OrderID,
		OrderNumber:   f.OrderNumber,
		CustomerEmail: f.CustomerEmail,
		OrderTotal:    f.OrderTotal,
		Currency:      f.Currency,
	}
}

// Line returns the eligible line with the given fulfillment line ID
func (f OrderFacts) Line(fulfillmentLineID string) *EligibleLineItem {
	for i := range f.Lines {
		if f.Lines[i].FulfillmentLineID == fulfillmentLineID {
			return &f.Lines[i]
		}
	}
	return nil
}

// OrderFactsProvider looks up live order state from the commerce platform.
// Lookup must return ErrOrderNotFound when the order does not exist for the
// tenant and ErrEmailMismatch when it exists but the email does not match;
// the caller maps both to the same client-facing failure.
type OrderFactsProvider interface {
	Lookup(ctx context.Context, tenantID uuid.UUID, orderNumber, email string) (*OrderFacts, error)
}

// PolicyStore resolves the active policy snapshot for a tenant
type PolicyStore interface {
	ActivePolicy(ctx context.Context, tenantID uuid.UUID) (*PolicySnapshot, error)
}

// ReturnRequestRepository persists return request aggregates
type ReturnRequestRepository interface {
	// Create persists a new aggregate with its items and audit log in one
	// transaction
	Create(ctx context.Context, rr *ReturnRequest) error

	// FindByIDForTenant loads the aggregate with items and audit log,
	// scoped to the tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*ReturnRequest, error)

	// FindAllForTenant lists requests for the tenant, optionally filtered
	// by status
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, status *Status, filter shared.Filter) ([]ReturnRequest, error)

	// CountForTenant counts requests matching the filter
	CountForTenant(ctx context.Context, tenantID uuid.UUID, status *Status) (int64, error)

	// SaveWithLock persists a mutated aggregate with optimistic locking on
	// its version and appends any new audit events in the same transaction.
	// Returns shared.ErrConcurrencyConflict when the stored version moved.
	SaveWithLock(ctx context.Context, rr *ReturnRequest, expectedVersion int) error

	// CountByStatus returns per-status counts for the tenant
	CountByStatus(ctx context.Context, tenantID uuid.UUID) (map[Status]int64, error)

	// GenerateRequestNumber produces the next human-readable request number
	// for the tenant
	GenerateRequestNumber(ctx context.Context, tenantID uuid.UUID) (string, error)
}
