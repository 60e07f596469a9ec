package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// AttemptLimiter implements ports.AttemptLimiter with fixed-window counters.
// It bounds transfer-PIN checks per user and OTP re-delivery per challenge.
type AttemptLimiter struct {
	client *goredis.Client
	prefix string
}

// NewAttemptLimiter creates a new Redis-backed attempt limiter.
func NewAttemptLimiter(client *goredis.Client) *AttemptLimiter {
	return &AttemptLimiter{
		client: client,
		prefix: "attempts:",
	}
}

// Allow counts one attempt against key and reports whether it is within the
// limit. Uses a fixed-window counter: INCR + EXPIRE on a key scoped by
// windowID, so counters reset when the window rolls over.
func (s *AttemptLimiter) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, error) {
	now := time.Now()
	windowID := now.Unix() / int64(window.Seconds())
	redisKey := fmt.Sprintf("%s%s:%d", s.prefix, key, windowID)

	// Increment counter atomically
	count, err := s.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("redis attempt incr: %w", err)
	}

	// Set expiry only on first increment (new window)
	if count == 1 {
		s.client.Expire(ctx, redisKey, window+time.Second) // +1s safety margin
	}

	return count <= limit, nil
}

// Reset drops the current window's counter for key. A successful PIN check
// calls this so only consecutive failures accumulate toward the limit.
func (s *AttemptLimiter) Reset(ctx context.Context, key string, window time.Duration) error {
	windowID := time.Now().Unix() / int64(window.Seconds())
	redisKey := fmt.Sprintf("%s%s:%d", s.prefix, key, windowID)

	if err := s.client.Del(ctx, redisKey).Err(); err != nil {
		return fmt.Errorf("redis attempt reset: %w", err)
	}
	return nil
}
