package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SubscriptionStore defines the interface for subscription persistence.
// Writes are per record and guarded by Subscription.Version: implementations must
// reject a write whose Version does not match the stored one with ErrVersionConflict
// and bump Version on success.
type SubscriptionStore interface {
	// List returns every non-deleted subscription regardless of status.
	List(ctx context.Context) ([]Subscription, error)

	// Get retrieves a subscription by ID.
	// Returns ErrSubscriptionNotFound if no subscription exists.
	Get(ctx context.Context, id uuid.UUID) (*Subscription, error)

	// Update persists billing fields and lifecycle state of a single subscription.
	Update(ctx context.Context, sub *Subscription) error

	// Cancel marks the subscription canceled and persists its cleared lifecycle state.
	Cancel(ctx context.Context, sub *Subscription, reason CancelReason, at time.Time) error
}

// PriceCatalog resolves the prices of a plan.
type PriceCatalog interface {
	Prices(ctx context.Context, planID string) ([]Price, error)
}

// PaymentInput describes one payment attempt to be recorded.
type PaymentInput struct {
	SubscriptionID    uuid.UUID
	CustomerID        string
	Amount            int64
	Currency          string
	Status            PaymentStatus
	FailureReason     string
	ProviderPaymentID string
	IdempotencyKey    string
	AttemptedAt       time.Time
}

// Payment is the immutable audit record of a payment attempt.
type Payment struct {
	ID                uuid.UUID
	SubscriptionID    uuid.UUID
	CustomerID        string
	Amount            int64
	Currency          string
	Status            PaymentStatus
	FailureReason     string
	ProviderPaymentID string
	IdempotencyKey    string
	AttemptedAt       time.Time
	CreatedAt         time.Time
}

// PaymentRecorder persists payment attempts. Recording the same IdempotencyKey twice
// must return the original record instead of creating a second one.
type PaymentRecorder interface {
	Record(ctx context.Context, input PaymentInput) (*Payment, error)
}

// PaymentMethodLookup finds a customer's saved default payment method.
// Returns an empty string without error when the customer has none.
type PaymentMethodLookup interface {
	DefaultPaymentMethod(ctx context.Context, customerID string) (string, error)
}

// ChargeRequest is a single off-session charge.
type ChargeRequest struct {
	CustomerID      string
	PaymentMethodID string
	Amount          int64
	Currency        string
	IdempotencyKey  string
	Description     string
}

// ChargeResult is the gateway's classification of a charge.
// A declined charge is a result with Succeeded false, not an error.
type ChargeResult struct {
	Succeeded         bool
	ProviderPaymentID string
	FailureReason     string
}

// PaymentGateway charges customers. An error return means the gateway could not be
// reached or answered unexpectedly; it is treated as a collaborator error and does not
// consume a retry.
type PaymentGateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
}

// EventSink consumes emitted lifecycle events.
type EventSink interface {
	Emit(ctx context.Context, event Event) error
}

// Locker serializes lifecycle runs across processes.
// Acquire fails when another process holds the lock; release must be safe to call once.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}
