package cache

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/returnhub/backend/internal/domain/returns"
)

// CachedOrderFactsProvider wraps an OrderFactsProvider with a very short
// in-process cache. It absorbs the double-lookup pattern of a customer
// previewing and then immediately submitting a return, without letting order
// state go meaningfully stale. Lookup failures are never cached.
type CachedOrderFactsProvider struct {
	inner returns.OrderFactsProvider
	cache *gocache.Cache
}

// NewCachedOrderFactsProvider creates a caching wrapper with the given TTL
func NewCachedOrderFactsProvider(inner returns.OrderFactsProvider, ttl time.Duration) *CachedOrderFactsProvider {
	return &CachedOrderFactsProvider{
		inner: inner,
		cache: gocache.New(ttl, 2*ttl),
	}
}

// Lookup returns order facts for the tenant, served from cache within the TTL
func (p *CachedOrderFactsProvider) Lookup(ctx context.Context, tenantID uuid.UUID, orderNumber, email string) (*returns.OrderFacts, error) {
	key := tenantID.String() + "|" + orderNumber + "|" + strings.ToLower(email)
	if cached, found := p.cache.Get(key); found {
		facts := cached.(returns.OrderFacts)
		return &facts, nil
	}

	facts, err := p.inner.Lookup(ctx, tenantID, orderNumber, email)
	if err != nil {
		return nil, err
	}
	p.cache.SetDefault(key, *facts)
	return facts, nil
}

// Ensure CachedOrderFactsProvider implements OrderFactsProvider
var _ returns.OrderFactsProvider = (*CachedOrderFactsProvider)(nil)
