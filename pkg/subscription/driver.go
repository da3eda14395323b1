package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/logger"
)

// DefaultLockKey is the distributed lock key guarding lifecycle runs.
const DefaultLockKey = "billing:lifecycle:run"

// Driver runs the state machine over every subscription for a given "now".
// A run is sequential: each subscription is processed, persisted and its events
// dispatched before the next one is touched.
type Driver struct {
	store              SubscriptionStore
	machine            *Machine
	sink               EventSink
	locker             Locker
	lockKey            string
	lockTTL            time.Duration
	maxConflictRetries int
	metrics            *Metrics
	logger             *slog.Logger
}

// NewDriver creates a lifecycle driver.
// Panics if store or machine is nil to fail fast during initialization.
func NewDriver(store SubscriptionStore, machine *Machine, opts ...DriverOption) *Driver {
	if store == nil {
		panic("subscription: SubscriptionStore is required")
	}
	if machine == nil {
		panic("subscription: Machine is required")
	}

	d := &Driver{
		store:              store,
		machine:            machine,
		lockKey:            DefaultLockKey,
		lockTTL:            10 * time.Minute,
		maxConflictRetries: 3,
		logger:             slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run processes all subscriptions once and returns the emitted events in order.
// Failures of individual subscriptions are logged and skipped; only lock acquisition
// and listing failures abort the run.
func (d *Driver) Run(ctx context.Context, now time.Time) ([]Event, error) {
	startedAt := time.Now()
	if _, ok := GetRunIDFromContext(ctx); !ok {
		ctx = SetRunIDToContext(ctx, uuid.New())
	}

	if d.locker != nil {
		release, err := d.locker.Acquire(ctx, d.lockKey, d.lockTTL)
		if err != nil {
			return nil, errors.Join(ErrRunInProgress, err)
		}
		defer release()
	}

	subs, err := d.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	var (
		events                     []Event
		processed, skipped, failed int
	)
	for i := range subs {
		if err := ctx.Err(); err != nil {
			return events, err
		}

		sub := subs[i]
		if sub.IsInert() {
			skipped++
			d.metrics.subscriptionProcessed(resultSkipped)
			continue
		}

		emitted, err := d.processOne(ctx, sub, now)
		if err != nil {
			failed++
			d.logFailure(ctx, &sub, err)
			d.metrics.subscriptionFailed(err)
			continue
		}

		processed++
		d.metrics.subscriptionProcessed(resultProcessed)
		events = append(events, emitted...)
	}

	d.metrics.runCompleted(time.Since(startedAt))
	d.logger.LogAttrs(ctx, slog.LevelInfo, "lifecycle run completed",
		slog.Time("now", now),
		slog.Int("subscriptions", len(subs)),
		slog.Int("processed", processed),
		slog.Int("skipped", skipped),
		slog.Int("failed", failed),
		slog.Int("events", len(events)),
		logger.Duration(time.Since(startedAt)),
	)

	return events, nil
}

// processOne runs the machine for a single subscription and persists the outcome.
// A version conflict replays the pass from a fresh read; payment idempotency keys make
// the replay safe for charges already made.
func (d *Driver) processOne(ctx context.Context, sub Subscription, now time.Time) (events []Event, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing subscription: %v", r)
		}
	}()

	for attempt := 0; ; attempt++ {
		out, err := d.machine.Process(ctx, sub, now)
		if err != nil {
			return nil, err
		}

		err = d.persist(ctx, out, now)
		if err == nil {
			d.dispatch(ctx, out.Events)
			return out.Events, nil
		}
		if !errors.Is(err, ErrVersionConflict) || attempt >= d.maxConflictRetries {
			return nil, err
		}

		d.logger.LogAttrs(ctx, slog.LevelWarn, "subscription modified concurrently, replaying pass",
			logger.SubscriptionID(sub.ID),
			logger.RetryCount(attempt+1),
		)

		fresh, err := d.store.Get(ctx, sub.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to reload subscription: %w", err)
		}
		if fresh.IsInert() {
			return nil, nil
		}
		sub = *fresh
	}
}

func (d *Driver) persist(ctx context.Context, out *Outcome, now time.Time) error {
	if !out.Changed {
		return nil
	}
	if out.Canceled {
		if err := d.store.Cancel(ctx, &out.Subscription, out.CancelReason, now); err != nil {
			return fmt.Errorf("failed to cancel subscription: %w", err)
		}
		return nil
	}
	if err := d.store.Update(ctx, &out.Subscription); err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	return nil
}

// dispatch forwards events to the sink. Delivery is best effort: the transition is
// already committed, so a sink failure is logged and does not roll anything back.
func (d *Driver) dispatch(ctx context.Context, events []Event) {
	for _, e := range events {
		d.metrics.eventEmitted(e.Type)
		if d.sink == nil {
			continue
		}
		if err := d.sink.Emit(ctx, e); err != nil {
			d.logger.LogAttrs(ctx, slog.LevelError, "failed to emit lifecycle event",
				logger.EventType(string(e.Type)),
				logger.SubscriptionID(e.SubscriptionID),
				logger.Error(err),
			)
		}
	}
}

func (d *Driver) logFailure(ctx context.Context, sub *Subscription, err error) {
	level := slog.LevelError
	msg := "failed to process subscription, skipping until next run"
	switch {
	case errors.Is(err, ErrInvalidTimestamp), errors.Is(err, ErrCorruptLifecycleState), errors.Is(err, ErrCorruptRecord):
		level = slog.LevelWarn
		msg = "subscription record is invalid, skipping"
	case errors.Is(err, ErrPlanHasNoPrice):
		msg = "plan configuration error, subscription left unchanged"
	}

	d.logger.LogAttrs(ctx, level, msg,
		logger.SubscriptionID(sub.ID),
		logger.CustomerID(sub.CustomerID),
		logger.PlanID(sub.PlanID),
		slog.String("status", string(sub.Status)),
		logger.Error(err),
	)
}
