package subscription

import (
	"log/slog"
	"time"
)

// DriverOption configures a Driver instance.
type DriverOption func(*Driver)

// WithEventSink sets where emitted events are forwarded.
// Without a sink, events are only returned from Run.
func WithEventSink(sink EventSink) DriverOption {
	return func(d *Driver) {
		d.sink = sink
	}
}

// WithLocker guards each run with a distributed lock so at most one driver
// processes subscriptions at a time. TTL must exceed the longest expected run.
func WithLocker(locker Locker, key string, ttl time.Duration) DriverOption {
	return func(d *Driver) {
		d.locker = locker
		if key != "" {
			d.lockKey = key
		}
		if ttl > 0 {
			d.lockTTL = ttl
		}
	}
}

// WithMaxConflictRetries sets how many times a subscription pass is replayed after
// an optimistic concurrency conflict. Zero disables replays.
func WithMaxConflictRetries(n int) DriverOption {
	return func(d *Driver) {
		if n >= 0 {
			d.maxConflictRetries = n
		}
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *Metrics) DriverOption {
	return func(d *Driver) {
		d.metrics = m
	}
}

// WithDriverLogger sets the logger for the driver.
func WithDriverLogger(l *slog.Logger) DriverOption {
	return func(d *Driver) {
		if l != nil {
			d.logger = l
		}
	}
}
