package subscription

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/dmitrymomot/billingkit/pkg/logger"
)

// SinkFunc adapts a function to EventSink.
type SinkFunc func(ctx context.Context, event Event) error

func (f SinkFunc) Emit(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// MultiSink fans events out to several sinks.
type MultiSink struct {
	sinks  []EventSink
	logger *slog.Logger
}

// MultiSinkOption configures a MultiSink.
type MultiSinkOption func(*MultiSink)

// WithMultiSinkLogger sets the logger for the MultiSink.
func WithMultiSinkLogger(l *slog.Logger) MultiSinkOption {
	return func(m *MultiSink) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewMultiSink creates a sink forwarding to every non-nil sink given.
func NewMultiSink(sinks []EventSink, opts ...MultiSinkOption) *MultiSink {
	m := &MultiSink{
		sinks:  slices.DeleteFunc(slices.Clone(sinks), func(s EventSink) bool { return s == nil }),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Emit delivers the event to all sinks. A failing sink is logged and does not
// stop delivery to the others.
func (m *MultiSink) Emit(ctx context.Context, event Event) error {
	for i, s := range m.sinks {
		if err := s.Emit(ctx, event); err != nil {
			m.logger.LogAttrs(ctx, slog.LevelError, "Failed to deliver lifecycle event",
				logger.EventType(string(event.Type)),
				logger.SubscriptionID(event.SubscriptionID),
				slog.Int("sink_index", i),
				logger.Error(err),
			)
		}
	}
	return nil
}

// MemorySink records events in memory. Safe for concurrent use.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Emit(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of everything recorded so far.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.events)
}

// Types returns the recorded event types in order.
func (s *MemorySink) Types() []EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	types := make([]EventType, len(s.events))
	for i, e := range s.events {
		types[i] = e.Type
	}
	return types
}

// Reset drops all recorded events.
func (s *MemorySink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

// LogSink writes every event to a slog logger.
type LogSink struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogSink creates a sink that logs events at the given level.
func NewLogSink(l *slog.Logger, level slog.Level) *LogSink {
	if l == nil {
		l = slog.Default()
	}
	return &LogSink{logger: l, level: level}
}

func (s *LogSink) Emit(ctx context.Context, event Event) error {
	attrs := make([]slog.Attr, 0, len(event.Data))
	for k, v := range event.Data {
		attrs = append(attrs, slog.Any(k, v))
	}
	s.logger.LogAttrs(ctx, s.level, "lifecycle event",
		logger.EventType(string(event.Type)),
		logger.SubscriptionID(event.SubscriptionID),
		logger.CustomerID(event.CustomerID),
		slog.Time("timestamp", event.Timestamp),
		logger.Group("data", attrs...),
	)
	return nil
}
