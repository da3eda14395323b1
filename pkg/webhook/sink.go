package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/dmitrymomot/billingkit/pkg/subscription"
)

// Config describes the endpoint lifecycle events are delivered to.
type Config struct {
	URL    string `env:"WEBHOOK_URL"`
	Secret string `env:"WEBHOOK_SECRET"`
	// Event types to deliver; empty delivers every event.
	EventTypes []string `env:"WEBHOOK_EVENT_TYPES" envSeparator:","`
}

// Enabled reports whether an endpoint is configured.
func (c Config) Enabled() bool {
	return c.URL != ""
}

// Sink delivers lifecycle events to one HTTP endpoint. It satisfies subscription.EventSink.
type Sink struct {
	sender   *Sender
	endpoint string
	types    []subscription.EventType
}

// NewSink validates cfg.URL and returns a sink delivering through sender.
func NewSink(sender *Sender, cfg Config) (*Sink, error) {
	if sender == nil {
		panic("webhook: sender cannot be nil")
	}
	if err := validateEndpoint(cfg.URL); err != nil {
		return nil, err
	}

	s := &Sink{sender: sender, endpoint: cfg.URL}
	for _, t := range cfg.EventTypes {
		s.types = append(s.types, subscription.EventType(t))
	}
	return s, nil
}

// Emit posts the event as JSON, signed with the event ID as delivery ID.
func (s *Sink) Emit(ctx context.Context, event subscription.Event) error {
	if len(s.types) > 0 && !slices.Contains(s.types, event.Type) {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return s.sender.Send(ctx, s.endpoint, payload, event.ID.String())
}
