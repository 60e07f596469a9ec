package redis_test

import (
	"context"
	"testing"
	"time"

	"wallet-transfer-service/internal/adapter/storage/redis"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttemptLimiter_Allow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	limiter := redis.NewAttemptLimiter(client)
	ctx := context.Background()

	t.Run("allows attempts within limit", func(t *testing.T) {
		for i := 1; i <= 3; i++ {
			ok, err := limiter.Allow(ctx, "pin:user1", 3, time.Minute)
			require.NoError(t, err)
			assert.True(t, ok, "attempt %d should be allowed", i)
		}
	})

	t.Run("blocks attempts over limit", func(t *testing.T) {
		// 4th attempt in the same window (limit is 3 from above)
		ok, err := limiter.Allow(ctx, "pin:user1", 3, time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("different keys are independent", func(t *testing.T) {
		ok, err := limiter.Allow(ctx, "pin:user2", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("reset clears the current window", func(t *testing.T) {
		key := "pin:user3"
		for i := 0; i < 3; i++ {
			ok, err := limiter.Allow(ctx, key, 3, time.Minute)
			require.NoError(t, err)
			assert.True(t, ok)
		}

		require.NoError(t, limiter.Reset(ctx, key, time.Minute))

		// The counter starts over, so the next attempt is within the limit again.
		ok, err := limiter.Allow(ctx, key, 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("reset of an unused key is a no-op", func(t *testing.T) {
		require.NoError(t, limiter.Reset(ctx, "pin:ghost", time.Minute))
	})

	t.Run("window rollover resets the counter", func(t *testing.T) {
		key := "resend:challenge1"
		ok, err := limiter.Allow(ctx, key, 1, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = limiter.Allow(ctx, key, 1, time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)

		// Fast-forward past the window in miniredis
		mr.FastForward(61 * time.Second)

		ok, err = limiter.Allow(ctx, key, 1, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}
