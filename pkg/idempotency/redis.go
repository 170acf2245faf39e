package idempotency

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/filehorizon/filehorizon/internal/logger"
)

// RedisStore is the distributed idempotency gate. The claim is one atomic
// SET key "1" NX EX <ttl>; the replica whose SET succeeds wins.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore wraps a shared Redis client. prefix namespaces keys and may
// be empty. The client is not closed by this store.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// TryMarkProcessed claims the key with SET NX EX. Store errors return false.
func (s *RedisStore) TryMarkProcessed(ctx context.Context, key string, ttl time.Duration) bool {
	if key == "" {
		return false
	}

	won, err := s.client.SetNX(ctx, s.prefix+key, "1", clampTTL(ttl)).Result()
	if err != nil {
		logger.Warn("idempotency claim failed, treating as already processed",
			logger.KeyIdentityKey, key,
			logger.KeyError, err.Error())
		return false
	}
	return won
}

// Close leaves the shared client open.
func (s *RedisStore) Close() error {
	return nil
}
