// Package idempotency backs retry-safe CreateBooking/CancelBooking with a
// Redis claim per client-supplied key.
package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-booking/internal/logger"
)

type Store struct {
	Client *redis.Client
	TTL    time.Duration
	Logger *logger.Logger
}

func NewStore(client *redis.Client, ttl time.Duration, log *logger.Logger) *Store {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Store{Client: client, TTL: ttl, Logger: log}
}

// Claim atomically binds key to value via SETNX. If the key was already
// claimed, the original value is returned with claimed=false so the caller
// can replay the first request's outcome.
func (s *Store) Claim(ctx context.Context, key, value string) (string, bool, error) {
	redisKey := "idem:" + key

	ok, err := s.Client.SetNX(ctx, redisKey, value, s.TTL).Result()
	if err != nil {
		return "", false, fmt.Errorf("claim idempotency key: %w", err)
	}
	if ok {
		return value, true, nil
	}

	existing, err := s.Client.Get(ctx, redisKey).Result()
	if err != nil {
		return "", false, fmt.Errorf("read idempotency key: %w", err)
	}
	s.Logger.Debug("IDEM", fmt.Sprintf("key %s already claimed by %s", key, existing))
	return existing, false, nil
}

// Release frees a claimed key so the operation can be retried with it.
func (s *Store) Release(ctx context.Context, key string) error {
	if err := s.Client.Del(ctx, "idem:"+key).Err(); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}
