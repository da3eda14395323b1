package subscription

import (
	"slices"
	"time"
)

// ReminderSet holds the day-thresholds already notified for one covering period.
// Stored as a sorted slice so it serializes as a plain JSON array.
type ReminderSet []int

// Has reports whether the threshold was already sent.
func (r ReminderSet) Has(threshold int) bool {
	return slices.Contains(r, threshold)
}

// With returns the set extended by the given thresholds, keeping it sorted and unique.
func (r ReminderSet) With(thresholds ...int) ReminderSet {
	out := slices.Clone(r)
	for _, t := range thresholds {
		if !out.Has(t) {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	return out
}

// LifecycleState is the engine's bookkeeping for one subscription.
// The zero value is the state of a subscription that was never processed.
type LifecycleState struct {
	TrialRemindersSent   ReminderSet `json:"trialRemindersSent,omitempty"`
	RenewalRemindersSent ReminderSet `json:"renewalRemindersSent,omitempty"`
	InGracePeriod        bool        `json:"inGracePeriod"`
	GracePeriodStartedAt *time.Time  `json:"gracePeriodStartedAt,omitempty"`
	GraceEndingNotified  bool        `json:"graceEndingNotified,omitempty"`
	PaymentRetryAttempts int         `json:"paymentRetryAttempts"`
	LastPaymentAttemptAt *time.Time  `json:"lastPaymentAttemptAt,omitempty"`

	// Covering periods the reminder sets were collected for.
	TrialEndTracked  *time.Time `json:"trialEndTracked,omitempty"`
	PeriodEndTracked *time.Time `json:"periodEndTracked,omitempty"`
}

// Validate checks the grace period invariant.
func (l LifecycleState) Validate() error {
	if l.InGracePeriod != (l.GracePeriodStartedAt != nil) {
		return ErrCorruptLifecycleState
	}
	if l.PaymentRetryAttempts < 0 {
		return ErrCorruptLifecycleState
	}
	return nil
}

// Clone returns a deep copy.
func (l LifecycleState) Clone() LifecycleState {
	c := l
	c.TrialRemindersSent = slices.Clone(l.TrialRemindersSent)
	c.RenewalRemindersSent = slices.Clone(l.RenewalRemindersSent)
	c.GracePeriodStartedAt = cloneTime(l.GracePeriodStartedAt)
	c.LastPaymentAttemptAt = cloneTime(l.LastPaymentAttemptAt)
	c.TrialEndTracked = cloneTime(l.TrialEndTracked)
	c.PeriodEndTracked = cloneTime(l.PeriodEndTracked)
	return c
}

// GraceEndsAt returns when the current grace period expires, or the zero time outside grace.
func (l LifecycleState) GraceEndsAt(graceDays int) time.Time {
	if l.GracePeriodStartedAt == nil {
		return time.Time{}
	}
	return l.GracePeriodStartedAt.Add(time.Duration(graceDays) * day)
}

// syncCoverage drops reminder sets that belong to a trial or billing period
// other than the subscription's current one. State that was never tracked adopts
// the current periods and keeps its reminders. Trial bookkeeping only exists
// while the subscription is trialing.
func (l *LifecycleState) syncCoverage(sub *Subscription) {
	switch {
	case !sub.IsTrialing():
		l.TrialRemindersSent = nil
		l.TrialEndTracked = nil
	case l.TrialEndTracked == nil:
		l.TrialEndTracked = cloneTime(sub.TrialEnd)
	case !sameInstant(l.TrialEndTracked, sub.TrialEnd):
		l.TrialRemindersSent = nil
		l.TrialEndTracked = cloneTime(sub.TrialEnd)
	}

	var periodEnd *time.Time
	if !sub.CurrentPeriodEnd.IsZero() {
		periodEnd = timePtr(sub.CurrentPeriodEnd)
	}
	switch {
	case l.PeriodEndTracked == nil:
		l.PeriodEndTracked = periodEnd
	case !sameInstant(l.PeriodEndTracked, periodEnd):
		l.RenewalRemindersSent = nil
		l.PeriodEndTracked = periodEnd
	}
}

func (l *LifecycleState) startGrace(now time.Time) {
	l.InGracePeriod = true
	l.GracePeriodStartedAt = timePtr(now)
	l.GraceEndingNotified = false
	l.PaymentRetryAttempts = 1
	l.LastPaymentAttemptAt = timePtr(now)
}

// renewed resets everything tied to the previous billing period.
func (l *LifecycleState) renewed(periodEnd time.Time, attemptedAt time.Time) {
	l.InGracePeriod = false
	l.GracePeriodStartedAt = nil
	l.GraceEndingNotified = false
	l.PaymentRetryAttempts = 0
	l.LastPaymentAttemptAt = timePtr(attemptedAt)
	l.RenewalRemindersSent = nil
	l.PeriodEndTracked = timePtr(periodEnd)
}

// clear wipes the state on cancellation; only the last attempt timestamp is kept for auditing.
func (l *LifecycleState) clear() {
	last := l.LastPaymentAttemptAt
	*l = LifecycleState{LastPaymentAttemptAt: last}
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
