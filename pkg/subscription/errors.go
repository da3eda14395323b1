package subscription

import "errors"

var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrVersionConflict      = errors.New("subscription was modified concurrently")
	ErrInvalidTransition    = errors.New("invalid subscription state transition")

	// Per-subscription problems: the record is skipped for the current pass.
	ErrInvalidTimestamp      = errors.New("subscription has invalid or missing timestamps")
	ErrCorruptLifecycleState = errors.New("subscription lifecycle state violates grace period invariant")
	ErrCorruptRecord         = errors.New("stored subscription record cannot be decoded")

	// Configuration errors need a human to fix the plan catalog; they are never retried automatically.
	ErrPlanHasNoPrice = errors.New("subscription plan has no price")
	ErrInvalidConfig  = errors.New("invalid lifecycle configuration")

	// Collaborator errors do not consume a payment retry.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrPaymentNotRecorded = errors.New("failed to record payment attempt")

	ErrRunInProgress = errors.New("another lifecycle run holds the lock")

	// Provider-specific errors
	ErrMissingAPIKey              = errors.New("billing provider API key is required")
	ErrInvalidProviderEnvironment = errors.New("invalid billing provider environment")
	ErrMissingCustomerID          = errors.New("customer ID is required")
	ErrMissingPaymentMethod       = errors.New("payment method ID is required")
	ErrMissingPlanID              = errors.New("plan ID is required")
)
