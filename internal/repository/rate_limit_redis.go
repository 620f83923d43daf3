package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/harsha-e/unipass-api/internal/models"
)

// RedisRateLimitStore keeps counters in Redis using atomic INCR, so the
// ceiling holds exactly even under concurrent calls from one actor.
type RedisRateLimitStore struct {
	client *redis.Client
}

// NewRedisRateLimitStore constructs the store.
func NewRedisRateLimitStore(client *redis.Client) *RedisRateLimitStore {
	return &RedisRateLimitStore{client: client}
}

// Take admits or denies one action for the actor within the window.
func (s *RedisRateLimitStore) Take(ctx context.Context, actorID, action string, window time.Duration, ceiling int) (bool, error) {
	key := "rl:" + models.RateLimitKey(actorID, action)

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("incr rate limit counter: %w", err)
	}
	if count == 1 {
		if err := s.client.PExpire(ctx, key, window).Err(); err != nil {
			return false, fmt.Errorf("expire rate limit counter: %w", err)
		}
	}
	if count > int64(ceiling) {
		// Undo so a denied burst does not push the window further out.
		if err := s.client.Decr(ctx, key).Err(); err != nil {
			return false, fmt.Errorf("decr rate limit counter: %w", err)
		}
		return false, nil
	}
	return true, nil
}
