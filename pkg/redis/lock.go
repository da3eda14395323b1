package redis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/billingkit/pkg/logger"
)

// releaseScript deletes the key only while it still holds the caller's token,
// so an expired lock taken over by another owner is never released by mistake.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a single-instance distributed lock built on SET NX PX.
// It satisfies subscription.Locker.
type Locker struct {
	client redis.UniversalClient
	prefix string
	log    *slog.Logger
}

// LockerOption configures a Locker.
type LockerOption func(*Locker)

// WithKeyPrefix namespaces every lock key.
func WithKeyPrefix(prefix string) LockerOption {
	return func(l *Locker) {
		l.prefix = prefix
	}
}

// WithLockerLogger sets the logger used to report release failures.
func WithLockerLogger(log *slog.Logger) LockerOption {
	return func(l *Locker) {
		if log != nil {
			l.log = log
		}
	}
}

func NewLocker(client redis.UniversalClient, opts ...LockerOption) *Locker {
	if client == nil {
		panic("redis: client cannot be nil")
	}

	l := &Locker{
		client: client,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Acquire takes the lock for ttl without waiting. It returns ErrLockHeld when
// another owner holds it. The returned release func is safe to call more than once.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if ttl <= 0 {
		return nil, ErrInvalidLockTTL
	}

	key = l.prefix + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true

		// The caller's context may already be canceled when the run is cut short.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()

		if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			l.log.WarnContext(ctx, "failed to release lock",
				logger.Component("redis_lock"),
				slog.String("key", key),
				logger.Error(err),
			)
		}
	}, nil
}
