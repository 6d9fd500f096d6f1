package orderfacts

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/returnhub/backend/internal/domain/returns"
	"github.com/returnhub/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// StaticProvider serves order facts from an in-memory fixture set. It is
// for local development and tests only; config validation rejects it in
// production.
type StaticProvider struct {
	mu     sync.RWMutex
	orders map[string]*returns.OrderFacts // keyed by orderNumber
}

// NewStaticProvider creates an empty static provider
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{
		orders: make(map[string]*returns.OrderFacts),
	}
}

// NewStaticProviderWithFixtures creates a static provider pre-loaded with a
// small demo order set
func NewStaticProviderWithFixtures() *StaticProvider {
	p := NewStaticProvider()
	fulfilled := time.Now().AddDate(0, 0, -7)
	p.AddOrder(&returns.OrderFacts{
		OrderID:       "ord_demo_1001",
		OrderNumber:   "1001",
		CustomerEmail: "demo@example.com",
		OrderTotal:    decimal.NewFromFloat(86.97),
		Currency:      valueobject.Currency("USD"),
		FulfilledAt:   &fulfilled,
		Lines: []returns.EligibleLineItem{
			{
				FulfillmentLineID: "ffl_1",
				SKU:               "SHOE-TRAIL-42",
				Title:             "Trail Running Shoes",
				UnitPrice:         decimal.NewFromFloat(59.99),
				UnitTax:           decimal.NewFromFloat(4.80),
				EligibleQuantity:  1,
				Tags:              []string{"footwear"},
			},
			{
				FulfillmentLineID: "ffl_2",
				SKU:               "SOCK-WOOL-M",
				Title:             "Wool Socks",
				UnitPrice:         decimal.NewFromFloat(8.99),
				UnitTax:           decimal.NewFromFloat(0.72),
				EligibleQuantity:  3,
				Tags:              []string{"apparel"},
			},
			{
				FulfillmentLineID: "ffl_3",
				SKU:               "GIFT-CARD-25",
				Title:             "Gift Card",
				UnitPrice:         decimal.NewFromFloat(25.00),
				UnitTax:           decimal.Zero,
				EligibleQuantity:  1,
				FinalSale:         true,
			},
		},
	})
	return p
}

// AddOrder registers an order fixture
func (p *StaticProvider) AddOrder(facts *returns.OrderFacts) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orders[facts.OrderNumber] = facts
}

// Lookup returns the fixture for the order number when the email matches.
// Email comparison is case-insensitive; an empty email skips verification
// (admin-channel submissions). Tenant is ignored because fixtures are shared
// across dev tenants.
func (p *StaticProvider) Lookup(ctx context.Context, tenantID uuid.UUID, orderNumber, email string) (*returns.OrderFacts, error) {
	p.mu.RLock()
	facts, ok := p.orders[orderNumber]
	p.mu.RUnlock()

	if !ok {
		return nil, returns.ErrOrderNotFound
	}
	if email != "" && !strings.EqualFold(facts.CustomerEmail, email) {
		return nil, returns.ErrEmailMismatch
	}

	// Hand out a copy so callers cannot mutate the fixture
	clone := *facts
	clone.Lines = make([]returns.EligibleLineItem, len(facts.Lines))
	copy(clone.Lines, facts.Lines)
	return &clone, nil
}

// Ensure StaticProvider implements OrderFactsProvider
var _ returns.OrderFactsProvider = (*StaticProvider)(nil)
