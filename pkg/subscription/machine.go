package subscription

import (
	"context"
	"log/slog"
	"reflect"
	"time"

	"github.com/dmitrymomot/billingkit/pkg/statemachine"
)

// Outcome is the result of processing one subscription for one "now".
type Outcome struct {
	Subscription Subscription // mutated copy, ready to persist
	Events       []Event      // in the order the transitions happened
	Changed      bool         // Subscription differs from the input
	Canceled     bool
	CancelReason CancelReason
}

func (o *Outcome) emit(t EventType, now time.Time, data map[string]any) {
	o.Events = append(o.Events, newEvent(t, &o.Subscription, now, data))
}

// Machine decides, for a single subscription, the next status and which side effects
// (reminders, payment attempt, cancellation) a given "now" triggers.
type Machine struct {
	cfg      Config
	payments *PaymentOrchestrator
	table    *statemachine.Table[*step]
	logger   *slog.Logger
}

// MachineOption configures a Machine.
type MachineOption func(*Machine)

// WithMachineLogger sets the logger for the state machine.
func WithMachineLogger(l *slog.Logger) MachineOption {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewMachine validates cfg and returns a state machine bound to it.
// Panics if payments is nil to fail fast during initialization.
func NewMachine(cfg Config, payments *PaymentOrchestrator, opts ...MachineOption) (*Machine, error) {
	if payments == nil {
		panic("subscription: PaymentOrchestrator is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Machine{
		cfg:      cfg.clone(),
		payments: payments,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.table = m.lifecycleTable()
	return m, nil
}

// Config returns a copy of the machine's configuration.
func (m *Machine) Config() Config {
	return m.cfg.clone()
}

// Process advances one subscription. The input is never mutated.
//
// Reminders are checked before terminal and renewal transitions; a terminal transition
// ends processing. Paused and canceled subscriptions produce an empty outcome.
// On error nothing must be persisted: the subscription is retried on the next pass.
func (m *Machine) Process(ctx context.Context, in Subscription, now time.Time) (*Outcome, error) {
	if in.IsInert() {
		return &Outcome{Subscription: in.Clone()}, nil
	}
	if err := in.validateTimestamps(); err != nil {
		return nil, err
	}
	if err := in.Lifecycle.Validate(); err != nil {
		return nil, err
	}

	out := &Outcome{Subscription: in.Clone()}
	sub := &out.Subscription
	sub.Lifecycle.syncCoverage(sub)

	var err error
	switch {
	case sub.IsTrialing():
		err = m.processTrial(ctx, out, now)
	case sub.Lifecycle.InGracePeriod:
		err = m.processGrace(ctx, out, now)
	default:
		err = m.processActive(ctx, out, now)
	}
	if err != nil {
		return nil, err
	}

	out.Changed = !reflect.DeepEqual(in, out.Subscription)
	return out, nil
}

func (m *Machine) processTrial(ctx context.Context, out *Outcome, now time.Time) error {
	sub := &out.Subscription
	trialEnd := *sub.TrialEnd

	remaining := DaysUntil(trialEnd, now)
	if due := DueReminders(m.cfg.TrialEndingReminderDays, remaining, sub.Lifecycle.TrialRemindersSent); len(due) > 0 {
		sub.Lifecycle.TrialRemindersSent = sub.Lifecycle.TrialRemindersSent.With(due...)
		out.emit(EventTrialEnding, now, map[string]any{
			DataDaysRemaining: remaining,
			DataThresholds:    due,
			DataTrialEnd:      trialEnd,
		})
	}

	if now.Before(trialEnd) {
		return nil
	}

	attempt, err := m.payments.Attempt(ctx, sub, now)
	if err != nil {
		return err
	}
	out.Events = append(out.Events, attempt.Event)
	return m.fire(ctx, triggerTrialEnded, &step{out: out, now: now, attempt: attempt})
}

func (m *Machine) processActive(ctx context.Context, out *Outcome, now time.Time) error {
	sub := &out.Subscription
	periodEnd := sub.CurrentPeriodEnd

	remaining := DaysUntil(periodEnd, now)
	if due := DueReminders(m.cfg.RenewalReminderDays, remaining, sub.Lifecycle.RenewalRemindersSent); len(due) > 0 {
		sub.Lifecycle.RenewalRemindersSent = sub.Lifecycle.RenewalRemindersSent.With(due...)
		out.emit(EventExpiring, now, map[string]any{
			DataDaysRemaining:   remaining,
			DataThresholds:      due,
			DataPeriodEnd:       periodEnd,
			"cancelAtPeriodEnd": sub.CancelAtPeriodEnd,
		})
	}

	if now.Before(periodEnd) {
		return nil
	}

	s := &step{out: out, now: now}
	if !sub.CancelAtPeriodEnd {
		attempt, err := m.payments.Attempt(ctx, sub, now)
		if err != nil {
			return err
		}
		out.Events = append(out.Events, attempt.Event)
		s.attempt = attempt
	}
	return m.fire(ctx, triggerPeriodEnded, s)
}

func (m *Machine) processGrace(ctx context.Context, out *Outcome, now time.Time) error {
	sub := &out.Subscription
	graceStart := *sub.Lifecycle.GracePeriodStartedAt
	graceEndsAt := sub.Lifecycle.GraceEndsAt(m.cfg.GracePeriodDays)

	// The last-day notice requires that the final retry day has not passed.
	if DaysUntil(graceEndsAt, now) == 1 &&
		!sub.Lifecycle.GraceEndingNotified &&
		DaysSince(graceStart, now) <= m.cfg.finalRetryDay() {
		sub.Lifecycle.GraceEndingNotified = true
		out.emit(EventGracePeriodEnding, now, map[string]any{
			DataDaysRemaining:    1,
			DataGraceEndsAt:      graceEndsAt,
			DataRetriesRemaining: max(len(m.cfg.PaymentRetryDays)-sub.Lifecycle.PaymentRetryAttempts, 0),
		})
	}

	if !now.Before(graceEndsAt) {
		return m.fire(ctx, triggerGraceExpired, &step{out: out, now: now})
	}

	if !m.cfg.retryDue(sub.Lifecycle, now) {
		return nil
	}

	attempt, err := m.payments.Attempt(ctx, sub, now)
	if err != nil {
		return err
	}
	out.Events = append(out.Events, attempt.Event)
	return m.fire(ctx, triggerRetryDue, &step{out: out, now: now, attempt: attempt})
}

// convertTrial starts the first paid period at the trial end. Trial dates stay on
// the subscription as history; the engine's trial bookkeeping is dropped.
func (m *Machine) convertTrial(_ context.Context, _, _ statemachine.State, _ statemachine.Event, s *step) error {
	sub := &s.out.Subscription
	trialEnd := *sub.TrialEnd

	sub.CurrentPeriodStart = trialEnd
	sub.CurrentPeriodEnd = trialEnd.AddDate(0, 0, m.cfg.BillingCycleDays)
	sub.Lifecycle.TrialRemindersSent = nil
	sub.Lifecycle.TrialEndTracked = nil
	sub.Lifecycle.renewed(sub.CurrentPeriodEnd, s.now)

	s.out.emit(EventTrialConverted, s.now, map[string]any{
		DataPeriodStart: sub.CurrentPeriodStart,
		DataPeriodEnd:   sub.CurrentPeriodEnd,
		DataAmount:      s.attempt.Amount,
		DataCurrency:    s.attempt.Currency,
	})
	return nil
}

func (m *Machine) endTrial(ctx context.Context, from, to statemachine.State, ev statemachine.Event, s *step) error {
	s.out.emit(EventTrialEnded, s.now, map[string]any{DataTrialEnd: *s.out.Subscription.TrialEnd})
	return m.cancelAs(CancelReasonTrialPaymentFailed)(ctx, from, to, ev, s)
}

// renew starts the next billing period after a successful charge.
func (m *Machine) renew(_ context.Context, _, _ statemachine.State, _ statemachine.Event, s *step) error {
	sub := &s.out.Subscription
	recovered := sub.Lifecycle.InGracePeriod

	sub.CurrentPeriodStart = sub.CurrentPeriodEnd
	sub.CurrentPeriodEnd = sub.CurrentPeriodStart.AddDate(0, 0, m.cfg.BillingCycleDays)
	sub.Lifecycle.renewed(sub.CurrentPeriodEnd, s.now)

	s.out.emit(EventRenewed, s.now, map[string]any{
		DataPeriodStart: sub.CurrentPeriodStart,
		DataPeriodEnd:   sub.CurrentPeriodEnd,
		DataAmount:      s.attempt.Amount,
		DataCurrency:    s.attempt.Currency,
		DataRecovered:   recovered,
	})
	return nil
}

func (m *Machine) enterGrace(_ context.Context, _, _ statemachine.State, _ statemachine.Event, s *step) error {
	sub := &s.out.Subscription
	periodEnd := sub.CurrentPeriodEnd

	sub.Lifecycle.startGrace(s.now)
	graceEndsAt := sub.Lifecycle.GraceEndsAt(m.cfg.GracePeriodDays)

	s.out.emit(EventRenewalFailed, s.now, map[string]any{
		DataAmount:        s.attempt.Amount,
		DataCurrency:      s.attempt.Currency,
		DataFailureReason: s.attempt.Payment.FailureReason,
		DataPeriodEnd:     periodEnd,
	})
	started := map[string]any{
		DataGracePeriodDays: m.cfg.GracePeriodDays,
		DataGraceEndsAt:     graceEndsAt,
	}
	if next, ok := m.cfg.nextRetryDay(sub.Lifecycle.PaymentRetryAttempts); ok {
		started[DataNextRetryAt] = s.now.Add(time.Duration(next) * day)
	}
	s.out.emit(EventGracePeriodStarted, s.now, started)
	return nil
}

func (m *Machine) retryFailed(_ context.Context, _, _ statemachine.State, _ statemachine.Event, s *step) error {
	sub := &s.out.Subscription
	graceStart := *sub.Lifecycle.GracePeriodStartedAt

	sub.Lifecycle.PaymentRetryAttempts++
	sub.Lifecycle.LastPaymentAttemptAt = timePtr(s.now)

	s.out.emit(EventRetryAttempted, s.now, map[string]any{
		DataAttempt:       sub.Lifecycle.PaymentRetryAttempts,
		DataAmount:        s.attempt.Amount,
		DataCurrency:      s.attempt.Currency,
		DataFailureReason: s.attempt.Payment.FailureReason,
	})
	if next, ok := m.cfg.nextRetryDay(sub.Lifecycle.PaymentRetryAttempts); ok {
		s.out.emit(EventRetryScheduled, s.now, map[string]any{
			DataAttempt:     sub.Lifecycle.PaymentRetryAttempts + 1,
			DataNextRetryAt: graceStart.Add(time.Duration(next) * day),
			DataGraceEndsAt: sub.Lifecycle.GraceEndsAt(m.cfg.GracePeriodDays),
		})
	}
	return nil
}

// cancelAs returns the terminal action for reason; processing ends after it.
func (m *Machine) cancelAs(reason CancelReason) stepAction {
	return func(_ context.Context, _, _ statemachine.State, _ statemachine.Event, s *step) error {
		sub := &s.out.Subscription
		sub.CancelReason = reason
		sub.CanceledAt = timePtr(s.now)
		sub.Lifecycle.clear()

		s.out.Canceled = true
		s.out.CancelReason = reason
		s.out.emit(EventCanceledNonpayment, s.now, map[string]any{DataReason: string(reason)})
		return nil
	}
}
