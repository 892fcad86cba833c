package store

import (
	"context"
	"fmt"
	"time"

	"github.com/layer-3/pairsync/ports"
	"github.com/redis/go-redis/v9"
)

// RedisStore is a Redis ChannelRegistry shared by every instance using the
// same relay.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a new Redis registry.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "pairsync:channel:",
	}
}

var _ ports.ChannelRegistry = (*RedisStore)(nil)

// Reserve claims a channel with SET NX and an expiry.
func (s *RedisStore) Reserve(ctx context.Context, channel string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.prefix+channel, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to reserve channel: %w", err)
	}
	return ok, nil
}

// IsReserved checks whether a channel is reserved in Redis.
func (s *RedisStore) IsReserved(ctx context.Context, channel string) (bool, error) {
	val, err := s.client.Exists(ctx, s.prefix+channel).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check channel reservation: %w", err)
	}
	return val > 0, nil
}
