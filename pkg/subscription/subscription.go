package subscription

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

// Subscription is a customer's subscription to a plan as seen by the lifecycle engine.
// The record is owned by the SubscriptionStore; the engine reads it and requests
// per-record updates.
type Subscription struct {
	ID                 uuid.UUID
	CustomerID         string // gateway customer ID (cus_xxx, ctm_xxx, ...)
	PlanID             string
	Status             SubscriptionStatus
	TrialStart         *time.Time
	TrialEnd           *time.Time
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CancelAtPeriodEnd  bool
	Quantity           int
	PaymentMethodID    string // captured during subscription creation, may be empty
	Metadata           map[string]any
	Lifecycle          LifecycleState
	Version            int64 // optimistic concurrency token, bumped by the store on every write
	CancelReason       CancelReason
	CanceledAt         *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (s *Subscription) IsTrialing() bool {
	return s.Status == StatusTrialing
}

func (s *Subscription) IsActive() bool {
	return s.Status == StatusActive
}

func (s *Subscription) IsCanceled() bool {
	return s.Status == StatusCanceled
}

// IsInert reports whether the engine must leave the subscription untouched.
func (s *Subscription) IsInert() bool {
	return s.Status == StatusPaused || s.Status == StatusCanceled
}

// TrialDaysRemainingAt returns the whole days left until the trial ends, rounded up.
// Returns 0 if not in trial or the trial has ended.
func (s *Subscription) TrialDaysRemainingAt(now time.Time) int {
	if !s.IsTrialing() || s.TrialEnd == nil {
		return 0
	}
	return max(DaysUntil(*s.TrialEnd, now), 0)
}

// Clone returns a deep copy so callers can mutate it without touching shared state.
func (s Subscription) Clone() Subscription {
	c := s
	c.TrialStart = cloneTime(s.TrialStart)
	c.TrialEnd = cloneTime(s.TrialEnd)
	c.CanceledAt = cloneTime(s.CanceledAt)
	c.Metadata = maps.Clone(s.Metadata)
	c.Lifecycle = s.Lifecycle.Clone()
	return c
}

// validateTimestamps rejects records the engine cannot reason about.
func (s *Subscription) validateTimestamps() error {
	switch s.Status {
	case StatusTrialing:
		if s.TrialEnd == nil || s.TrialEnd.IsZero() {
			return ErrInvalidTimestamp
		}
	case StatusActive:
		if s.CurrentPeriodEnd.IsZero() {
			return ErrInvalidTimestamp
		}
		if !s.CurrentPeriodStart.IsZero() && s.CurrentPeriodEnd.Before(s.CurrentPeriodStart) {
			return ErrInvalidTimestamp
		}
	}
	return nil
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func timePtr(t time.Time) *time.Time {
	return &t
}
