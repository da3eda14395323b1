package subscription

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

// EventType identifies a lifecycle event.
type EventType string

const (
	EventTrialEnding        EventType = "subscription.trial_ending"
	EventTrialEnded         EventType = "subscription.trial_ended"
	EventTrialConverted     EventType = "subscription.trial_converted"
	EventExpiring           EventType = "subscription.expiring"
	EventRenewed            EventType = "subscription.renewed"
	EventRenewalFailed      EventType = "subscription.renewal_failed"
	EventGracePeriodStarted EventType = "subscription.grace_period_started"
	EventGracePeriodEnding  EventType = "subscription.grace_period_ending"
	EventCanceledNonpayment EventType = "subscription.canceled_nonpayment"
	EventRetryScheduled     EventType = "payment.retry_scheduled"
	EventRetryAttempted     EventType = "payment.retry_attempted"
	EventPaymentSucceeded   EventType = "payment.succeeded"
	EventPaymentFailed      EventType = "payment.failed"
)

// Payload keys used in Event.Data.
const (
	DataDaysRemaining     = "daysRemaining"
	DataThresholds        = "thresholds"
	DataGracePeriodDays   = "gracePeriodDays"
	DataGraceEndsAt       = "graceEndsAt"
	DataRecovered         = "recoveredFromGracePeriod"
	DataReason            = "reason"
	DataAttempt           = "attempt"
	DataRetriesRemaining  = "retriesRemaining"
	DataNextRetryAt       = "nextRetryAt"
	DataAmount            = "amount"
	DataCurrency          = "currency"
	DataPaymentID         = "paymentId"
	DataFailureReason     = "failureReason"
	DataPeriodStart       = "periodStart"
	DataPeriodEnd         = "periodEnd"
	DataTrialEnd          = "trialEnd"
	DataProviderPaymentID = "providerPaymentId"
)

// Event is an immutable record of one lifecycle transition or payment outcome.
type Event struct {
	ID             uuid.UUID      `json:"id"`
	Type           EventType      `json:"type"`
	SubscriptionID uuid.UUID      `json:"subscriptionId"`
	CustomerID     string         `json:"customerId"`
	Data           map[string]any `json:"data,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}

func newEvent(t EventType, sub *Subscription, now time.Time, data map[string]any) Event {
	return Event{
		ID:             uuid.New(),
		Type:           t,
		SubscriptionID: sub.ID,
		CustomerID:     sub.CustomerID,
		Data:           maps.Clone(data),
		Timestamp:      now,
	}
}
