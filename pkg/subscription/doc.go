// Package subscription implements the lifecycle engine for recurring SaaS
// subscriptions: trial reminders, trial conversion, renewal reminders, renewal
// charges, grace periods with scheduled payment retries, and cancellation for
// nonpayment.
//
// The engine is driven by time, not by webhooks. An external scheduler calls
// Driver.Run with the current time; every run walks all subscriptions, advances
// each one through its state machine, persists the result and emits events.
// Runs are idempotent for a given "now": reminders are tracked per covering period
// and charges carry stable idempotency keys, so re-running a pass never sends a
// second reminder or charges twice.
//
// # Architecture
//
//   - Config: reminder thresholds, grace period length, retry offsets and billing cycle
//   - Machine: per-subscription state machine, pure apart from the payment attempt
//   - PaymentOrchestrator: resolves price and payment method, charges, records the attempt
//   - Driver: iterates subscriptions, persists outcomes, dispatches events
//   - SubscriptionStore, PriceCatalog, PaymentRecorder: persistence collaborators
//   - PaymentGateway, PaymentMethodLookup: payment provider collaborators
//   - EventSink: consumers of lifecycle events (NATS, Kafka, email, logs)
//
// Subscriptions move trialing -> active -> canceled. Paused and canceled
// subscriptions are never touched. While active, a failed renewal opens a grace
// period; retries happen at PaymentRetryDays offsets counted from the grace start,
// and the subscription is canceled when the grace period runs out.
//
// # Quick Start
//
//	import "github.com/dmitrymomot/billingkit/pkg/subscription"
//
//	cfg := subscription.DefaultConfig()
//
//	gateway, err := subscription.NewStripeGateway(subscription.StripeConfig{SecretKey: key})
//	if err != nil {
//		return err
//	}
//
//	payments := subscription.NewPaymentOrchestrator(catalog, gateway, recorder,
//		subscription.WithPaymentMethodLookup(gateway),
//	)
//	machine, err := subscription.NewMachine(cfg, payments)
//	if err != nil {
//		return err
//	}
//
//	driver := subscription.NewDriver(store, machine,
//		subscription.WithEventSink(sink),
//		subscription.WithLocker(locker, subscription.DefaultLockKey, 10*time.Minute),
//	)
//
//	events, err := driver.Run(ctx, time.Now().UTC())
//
// # Error Handling
//
// Only lock acquisition and listing abort a run. Everything else is scoped to a
// single subscription, which is left unchanged and picked up on the next run:
//
//   - ErrInvalidTimestamp, ErrCorruptLifecycleState, ErrCorruptRecord: the record
//     cannot be reasoned about; stores skip undecodable rows when listing
//   - ErrPlanHasNoPrice: configuration problem, no charge is attempted
//   - ErrGatewayUnavailable, ErrPaymentNotRecorded: collaborator failure, no retry is consumed
//   - ErrVersionConflict: the pass is replayed from a fresh read a few times first
//
// Event delivery is best effort. A failing sink is logged and never rolls back a
// persisted transition.
//
// # Events
//
// Event types are listed as EventType constants. Reminder events carry
// daysRemaining and the thresholds that fired; grace period events carry
// gracePeriodDays and graceEndsAt; canceled_nonpayment carries the CancelReason.
package subscription
