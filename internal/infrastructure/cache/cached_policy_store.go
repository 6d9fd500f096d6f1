package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/returnhub/backend/internal/domain/returns"
)

// CachedPolicyStore wraps a PolicyStore with a short-lived in-process cache.
// Policy edits are infrequent but every submission needs the active policy,
// so a small TTL removes a query from the hot path. The TTL is capped short
// enough that a stale-policy window stays within the configured bound.
type CachedPolicyStore struct {
	inner returns.PolicyStore
	cache *gocache.Cache
}

// NewCachedPolicyStore creates a caching wrapper with the given TTL
func NewCachedPolicyStore(inner returns.PolicyStore, ttl time.Duration) *CachedPolicyStore {
	return &CachedPolicyStore{
		inner: inner,
		cache: gocache.New(ttl, 2*ttl),
	}
}

// ActivePolicy returns the tenant's active policy snapshot, served from
// cache within the TTL
func (s *CachedPolicyStore) ActivePolicy(ctx context.Context, tenantID uuid.UUID) (*returns.PolicySnapshot, error) {
	key := tenantID.String()
	if cached, found := s.cache.Get(key); found {
		snapshot := cached.(returns.PolicySnapshot)
		return &snapshot, nil
	}

	policy, err := s.inner.ActivePolicy(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	// Store by value so cached snapshots cannot be mutated by callers
	s.cache.SetDefault(key, *policy)
	return policy, nil
}

// Invalidate drops the cached policy for a tenant, used after policy edits
func (s *CachedPolicyStore) Invalidate(tenantID uuid.UUID) {
	s.cache.Delete(tenantID.String())
}

// Ensure CachedPolicyStore implements PolicyStore
var _ returns.PolicyStore = (*CachedPolicyStore)(nil)
