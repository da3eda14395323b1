package subscription

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	resultProcessed = "processed"
	resultSkipped   = "skipped"
	resultFailed    = "failed"
)

// Metrics holds Prometheus instrumentation for lifecycle runs.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	subscriptions *prometheus.CounterVec
	failures      *prometheus.CounterVec
	events        *prometheus.CounterVec
	runDuration   prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
// Panics if registration fails, like prometheus.MustRegister.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		subscriptions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "billing",
				Subsystem: "lifecycle",
				Name:      "subscriptions_total",
				Help:      "Subscriptions visited by lifecycle runs, by result",
			},
			[]string{"result"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "billing",
				Subsystem: "lifecycle",
				Name:      "failures_total",
				Help:      "Per-subscription processing failures, by error class",
			},
			[]string{"class"},
		),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "billing",
				Subsystem: "lifecycle",
				Name:      "events_total",
				Help:      "Lifecycle events emitted, by type",
			},
			[]string{"type"},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "billing",
				Subsystem: "lifecycle",
				Name:      "run_duration_seconds",
				Help:      "Wall time of a full lifecycle run",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
			},
		),
	}

	if reg != nil {
		reg.MustRegister(m.subscriptions, m.failures, m.events, m.runDuration)
	}
	return m
}

func (m *Metrics) subscriptionProcessed(result string) {
	if m == nil {
		return
	}
	m.subscriptions.WithLabelValues(result).Inc()
}

func (m *Metrics) subscriptionFailed(err error) {
	if m == nil {
		return
	}
	m.subscriptions.WithLabelValues(resultFailed).Inc()
	m.failures.WithLabelValues(errorClass(err)).Inc()
}

func (m *Metrics) eventEmitted(t EventType) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(string(t)).Inc()
}

func (m *Metrics) runCompleted(d time.Duration) {
	if m == nil {
		return
	}
	m.runDuration.Observe(d.Seconds())
}

// errorClass maps an error onto the low-cardinality label used by failures_total.
func errorClass(err error) string {
	switch {
	case errors.Is(err, ErrPlanHasNoPrice):
		return "configuration"
	case errors.Is(err, ErrInvalidTimestamp), errors.Is(err, ErrCorruptLifecycleState), errors.Is(err, ErrCorruptRecord):
		return "invalid_record"
	case errors.Is(err, ErrGatewayUnavailable):
		return "gateway"
	case errors.Is(err, ErrVersionConflict):
		return "conflict"
	default:
		return "collaborator"
	}
}
