package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/returnhub/backend/internal/domain/shared"
)

// RedisDedupStore implements shared.DedupStore using Redis. Suitable for
// distributed deployments where multiple instances must agree on which
// submission arrived first.
type RedisDedupStore struct {
	client *redis.Client
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisDedupStore creates a new Redis-backed dedup store
func NewRedisDedupStore(cfg RedisConfig) (*RedisDedupStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisDedupStore{client: client}, nil
}

// NewRedisDedupStoreWithClient creates a store with an existing Redis client.
// Useful for testing or when sharing a client across components.
func NewRedisDedupStoreWithClient(client *redis.Client) *RedisDedupStore {
	return &RedisDedupStore{client: client}
}

// Reserve atomically claims key via SETNX. When the key is already held the
// first writer's value is fetched and returned so the caller can resolve the
// original resource.
func (s *RedisDedupStore) Reserve(ctx context.Context, key, value string, ttl time.Duration) (string, bool, error) {
	acquired, err := s.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to reserve dedup key: %w", err)
	}
	if acquired {
		return "", true, nil
	}

	existing, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// The holder expired between SETNX and GET; claim it now
			return s.Reserve(ctx, key, value, ttl)
		}
		return "", false, fmt.Errorf("failed to read dedup key: %w", err)
	}
	return existing, false, nil
}

// Release drops a reservation
func (s *RedisDedupStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to release dedup key: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (s *RedisDedupStore) Close() error {
	return s.client.Close()
}

// GetClient returns the underlying Redis client (for testing/monitoring)
func (s *RedisDedupStore) GetClient() *redis.Client {
	return s.client
}

// Ensure RedisDedupStore implements DedupStore
var _ shared.DedupStore = (*RedisDedupStore)(nil)
