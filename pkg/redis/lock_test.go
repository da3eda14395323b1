package redis_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/pkg/redis"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestLocker(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	discard := redis.WithLockerLogger(slog.New(slog.DiscardHandler))

	t.Run("acquire and release", func(t *testing.T) {
		t.Parallel()
		mr, client := newClient(t)
		locker := redis.NewLocker(client, redis.WithKeyPrefix("test:"), discard)

		release, err := locker.Acquire(ctx, "run", time.Minute)
		require.NoError(t, err)
		assert.True(t, mr.Exists("test:run"))
		assert.Equal(t, time.Minute, mr.TTL("test:run"))

		release()
		assert.False(t, mr.Exists("test:run"))
		assert.NotPanics(t, release)
	})

	t.Run("held lock is rejected", func(t *testing.T) {
		t.Parallel()
		_, client := newClient(t)
		first := redis.NewLocker(client, discard)
		second := redis.NewLocker(client, discard)

		release, err := first.Acquire(ctx, "run", time.Minute)
		require.NoError(t, err)
		defer release()

		_, err = second.Acquire(ctx, "run", time.Minute)
		assert.ErrorIs(t, err, redis.ErrLockHeld)
	})

	t.Run("expired lock can be taken over", func(t *testing.T) {
		t.Parallel()
		mr, client := newClient(t)
		locker := redis.NewLocker(client, discard)

		staleRelease, err := locker.Acquire(ctx, "run", time.Second)
		require.NoError(t, err)
		mr.FastForward(2 * time.Second)

		release, err := locker.Acquire(ctx, "run", time.Minute)
		require.NoError(t, err)

		// The stale owner must not delete the new owner's key.
		staleRelease()
		assert.True(t, mr.Exists("run"))

		release()
		assert.False(t, mr.Exists("run"))
	})

	t.Run("release after cancel still unlocks", func(t *testing.T) {
		t.Parallel()
		mr, client := newClient(t)
		locker := redis.NewLocker(client, discard)

		runCtx, cancel := context.WithCancel(ctx)
		release, err := locker.Acquire(runCtx, "run", time.Minute)
		require.NoError(t, err)
		cancel()

		release()
		assert.False(t, mr.Exists("run"))
	})

	t.Run("invalid ttl", func(t *testing.T) {
		t.Parallel()
		_, client := newClient(t)
		_, err := redis.NewLocker(client).Acquire(ctx, "run", 0)
		assert.ErrorIs(t, err, redis.ErrInvalidLockTTL)
	})

	t.Run("nil client panics", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() { redis.NewLocker(nil) })
	})
}
