package orderfacts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/returnhub/backend/internal/domain/returns"
	"github.com/returnhub/backend/internal/domain/shared/valueobject"
	"github.com/returnhub/backend/internal/infrastructure/config"
	"github.com/shopspring/decimal"
)

// maxResponseSize is the maximum allowed response size from the order API (10MB)
const maxResponseSize = 10 * 1024 * 1024

// HTTPProvider fetches order facts from the commerce platform's order API.
// The platform is the system of record: eligible quantities it reports
// already account for prior returns.
type HTTPProvider struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
}

// NewHTTPProvider creates a provider from the orders configuration
func NewHTTPProvider(cfg *config.OrdersConfig) (*HTTPProvider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("orderfacts: base URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPProvider{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiToken: cfg.APIToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// orderFactsResponse is the wire shape returned by the order API
type orderFactsResponse struct {
	OrderID       string              `json:"order_id"`
	OrderNumber   string              `json:"order_number"`
	CustomerEmail string              `json:"customer_email"`
	OrderTotal    decimal.Decimal     `json:"order_total"`
	Currency      string              `json:"currency"`
	FulfilledAt   *time.Time          `json:"fulfilled_at"`
	Lines         []orderLineResponse `json:"lines"`
}

type orderLineResponse struct {
	FulfillmentLineID string          `json:"fulfillment_line_id"`
	SKU               string          `json:"sku"`
	Title             string          `json:"title"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	UnitTax           decimal.Decimal `json:"unit_tax"`
	EligibleQuantity  int             `json:"eligible_quantity"`
	Tags              []string        `json:"tags"`
	FinalSale         bool            `json:"final_sale"`
}

// Lookup fetches live order facts for a tenant's order. The verification
// email is matched case-insensitively by the platform; a mismatch comes
// back as HTTP 403 and is mapped to ErrEmailMismatch. An empty email omits
// the parameter and the platform skips verification (admin submissions).
func (p *HTTPProvider) Lookup(ctx context.Context, tenantID uuid.UUID, orderNumber, email string) (*returns.OrderFacts, error) {
	endpoint := fmt.Sprintf("%s/v1/tenants/%s/orders/%s/return-eligibility",
		p.baseURL, tenantID, url.PathEscape(orderNumber))
	if email != "" {
		endpoint += "?email=" + url.QueryEscape(email)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("orderfacts: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if p.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiToken)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("orderfacts: order lookup failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("orderfacts: failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, returns.ErrOrderNotFound
	case resp.StatusCode == http.StatusForbidden:
		return nil, returns.ErrEmailMismatch
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("orderfacts: order API returned HTTP %d", resp.StatusCode)
	}

	var wire orderFactsResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("orderfacts: failed to decode response: %w", err)
	}

	return wire.toDomain(), nil
}

func (r *orderFactsResponse) toDomain() *returns.OrderFacts {
	facts := &returns.OrderFacts{
		OrderID:       r.OrderID,
		OrderNumber:   r.OrderNumber,
		CustomerEmail: r.CustomerEmail,
		OrderTotal:    r.OrderTotal,
		Currency:      valueobject.Currency(r.Currency),
		FulfilledAt:   r.FulfilledAt,
		Lines:         make([]returns.EligibleLineItem, 0, len(r.Lines)),
	}
	for _, line := range r.Lines {
		facts.Lines = append(facts.Lines, returns.EligibleLineItem{
			FulfillmentLineID: line.FulfillmentLineID,
			SKU:               line.SKU,
			Title:             line.Title,
			UnitPrice:         line.UnitPrice,
			UnitTax:           line.UnitTax,
			EligibleQuantity:  line.EligibleQuantity,
			Tags:              line.Tags,
			FinalSale:         line.FinalSale,
		})
	}
	return facts
}

// Ensure HTTPProvider implements OrderFactsProvider
var _ returns.OrderFactsProvider = (*HTTPProvider)(nil)
