package cas

import (
	"context"
	"fmt"

	redisWrapper "github.com/lyzr/flowr/common/redis"
	"github.com/redis/go-redis/v9"
)

// RedisStore stores job traces in Redis under a "cas:<hash>" key, with no
// expiry: Put always writes without a TTL. No caching layer sits in front: every Get queries
// Redis directly, matching the teacher's "always fresh" CAS discipline.
type RedisStore struct {
	client *redisWrapper.Client
	ttl    int64 // seconds; 0 means no expiry
}

// NewRedisStore creates a Redis-backed Store with no key expiry.
func NewRedisStore(redisClient *redis.Client, logger redisWrapper.Logger) *RedisStore {
	return &RedisStore{client: redisWrapper.NewClient(redisClient, logger)}
}

func (s *RedisStore) Put(ctx context.Context, data []byte, mediaType string) (string, error) {
	casID := HashOf(data)
	key := fmt.Sprintf("cas:%s", casID)
	if err := s.client.SetWithExpiry(ctx, key, string(data), 0); err != nil {
		return "", fmt.Errorf("cas: redis put: %w", err)
	}
	return casID, nil
}

func (s *RedisStore) Get(ctx context.Context, casID string) ([]byte, error) {
	key := fmt.Sprintf("cas:%s", casID)
	data, err := s.client.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("cas: redis get %s: %w", casID, err)
	}
	return []byte(data), nil
}
