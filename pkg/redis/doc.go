// Package redis connects to Redis with go-redis and provides the distributed
// lock that keeps lifecycle runs from overlapping across processes.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	locker := redis.NewLocker(client, redis.WithKeyPrefix("acme:"))
//	driver := subscription.NewDriver(store, machine,
//		subscription.WithLocker(locker, subscription.DefaultLockKey, 10*time.Minute),
//	)
//
// Locker.Acquire never blocks: a held lock yields ErrLockHeld. Release only
// deletes the key while it still carries the owner's token.
//
// Healthcheck returns a probe suitable for readiness checks.
package redis
