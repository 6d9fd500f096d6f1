package cache

import (
	"context"
	"sync"
	"time"

	"github.com/returnhub/backend/internal/domain/shared"
)

// reservation is a stored dedup value with expiration
type reservation struct {
	value     string
	expiresAt time.Time
}

// InMemoryDedupStore implements shared.DedupStore using an in-memory map.
// Suitable for single-instance deployments and testing.
type InMemoryDedupStore struct {
	mu        sync.Mutex
	entries   map[string]reservation
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryDedupStore creates a new in-memory dedup store. It starts a
// background goroutine to clean up expired reservations.
func NewInMemoryDedupStore() *InMemoryDedupStore {
	store := &InMemoryDedupStore{
		entries:  make(map[string]reservation),
		stopChan: make(chan struct{}),
	}

	store.wg.Add(1)
	go store.cleanupLoop()

	return store
}

// Reserve claims key for value unless a live reservation already holds it
func (s *InMemoryDedupStore) Reserve(ctx context.Context, key, value string, ttl time.Duration) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, exists := s.entries[key]; exists && time.Now().Before(r.expiresAt) {
		return r.value, false, nil
	}

	s.entries[key] = reservation{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	return "", true, nil
}

// Release drops a reservation
func (s *InMemoryDedupStore) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (s *InMemoryDedupStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

func (s *InMemoryDedupStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *InMemoryDedupStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, r := range s.entries {
		if now.After(r.expiresAt) {
			delete(s.entries, key)
		}
	}
}

// Ensure InMemoryDedupStore implements DedupStore
var _ shared.DedupStore = (*InMemoryDedupStore)(nil)
