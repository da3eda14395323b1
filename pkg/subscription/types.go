package subscription

import "time"

// SubscriptionStatus represents the current state of a subscription.
type SubscriptionStatus string

const (
	StatusTrialing SubscriptionStatus = "trialing"
	StatusActive   SubscriptionStatus = "active"
	StatusCanceled SubscriptionStatus = "canceled"
	StatusPaused   SubscriptionStatus = "paused" // inert, never processed by the engine
)

// Valid reports whether the status is one of the known values.
func (s SubscriptionStatus) Valid() bool {
	switch s {
	case StatusTrialing, StatusActive, StatusCanceled, StatusPaused:
		return true
	}
	return false
}

// CancelReason explains why the engine canceled a subscription.
type CancelReason string

const (
	CancelReasonScheduled          CancelReason = "scheduled"
	CancelReasonTrialPaymentFailed CancelReason = "trial_payment_failed"
	CancelReasonGraceExpired       CancelReason = "grace_period_expired"
)

// Price is a single catalog price attached to a plan.
type Price struct {
	ID         string
	PlanID     string
	UnitAmount int64
	Currency   string
}

// PaymentStatus is the outcome stored on a payment record.
type PaymentStatus string

const (
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Failure reasons recorded on failed payments.
const (
	FailureNoPaymentMethod = "no_payment_method"
	FailureDeclined        = "declined"
)

// day is the unit every lifecycle threshold is expressed in.
const day = 24 * time.Hour
