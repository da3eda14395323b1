// Package webhook delivers subscription lifecycle events to an HTTP endpoint.
//
// Sender POSTs JSON with retries (exponential backoff with jitter by default)
// and signs each request when a secret is set:
//
//	X-Webhook-Signature: hex(HMAC-SHA256(secret, "<unix timestamp>.<body>"))
//	X-Webhook-Timestamp: <unix timestamp>
//	X-Webhook-ID:        <event id>
//
// Receivers check deliveries with Verify. Sink adapts a Sender to
// subscription.EventSink, optionally filtered to a set of event types.
//
//	sink, err := webhook.NewSink(webhook.NewSender(webhook.WithSecret(cfg.Secret)), cfg)
package webhook
