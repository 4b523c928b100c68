package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/erpsync/backend/internal/domain/shared"
)

// RedisMarkerStore implements shared.MarkerStore on Redis. Suitable for
// deployments where several sync processes share the marker cache.
type RedisMarkerStore struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisMarkerStore creates a Redis-backed marker store and verifies the
// connection before returning it.
func NewRedisMarkerStore(cfg RedisConfig) (*RedisMarkerStore, error) {
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

	return &RedisMarkerStore{
		client:    client,
		keyPrefix: "marker:",
	}, nil
}

// NewRedisMarkerStoreWithClient creates a store over an existing client.
// Useful for testing or when sharing a client across components.
func NewRedisMarkerStoreWithClient(client *redis.Client, keyPrefix string) *RedisMarkerStore {
	if keyPrefix == "" {
		keyPrefix = "marker:"
	}
	return &RedisMarkerStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// MarkProcessed sets the marker key with a TTL. SETNX keeps the operation
// atomic: true means newly marked, false means it was already set.
func (s *RedisMarkerStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	result, err := s.client.SetNX(ctx, s.keyPrefix+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to set marker: %w", err)
	}
	return result, nil
}

// IsProcessed checks whether the marker key is set
func (s *RedisMarkerStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	exists, err := s.client.Exists(ctx, s.keyPrefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check marker: %w", err)
	}
	return exists > 0, nil
}

// Clear removes the marker key
func (s *RedisMarkerStore) Clear(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to clear marker: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (s *RedisMarkerStore) Close() error {
	return s.client.Close()
}

// GetClient returns the underlying Redis client (for testing/monitoring)
func (s *RedisMarkerStore) GetClient() *redis.Client {
	return s.client
}

var _ shared.MarkerStore = (*RedisMarkerStore)(nil)
