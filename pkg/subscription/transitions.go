package subscription

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrymomot/billingkit/pkg/statemachine"
)

// Lifecycle phases. Grace is an active subscription whose renewal payment failed.
const (
	phaseTrialing = statemachine.StringState("trialing")
	phaseActive   = statemachine.StringState("active")
	phaseGrace    = statemachine.StringState("grace")
	phaseCanceled = statemachine.StringState("canceled")
)

// Triggers fired by Machine once their time condition holds.
const (
	triggerTrialEnded   = statemachine.StringEvent("trial_ended")
	triggerPeriodEnded  = statemachine.StringEvent("period_ended")
	triggerRetryDue     = statemachine.StringEvent("retry_due")
	triggerGraceExpired = statemachine.StringEvent("grace_expired")
)

// step carries one transition's inputs to guards and actions.
type step struct {
	out     *Outcome
	now     time.Time
	attempt *PaymentAttempt // nil when no charge was made
}

type (
	stepGuard  = statemachine.Guard[*step]
	stepAction = statemachine.Action[*step]
)

func paid(_ context.Context, _ statemachine.State, _ statemachine.Event, s *step) bool {
	return s.attempt != nil && s.attempt.Succeeded
}

func unpaid(_ context.Context, _ statemachine.State, _ statemachine.Event, s *step) bool {
	return s.attempt != nil && !s.attempt.Succeeded
}

func cancelScheduled(_ context.Context, _ statemachine.State, _ statemachine.Event, s *step) bool {
	return s.out.Subscription.CancelAtPeriodEnd
}

func edge(from, to statemachine.State, trigger statemachine.Event, guard stepGuard, action stepAction) statemachine.Option[*step] {
	return statemachine.WithTransition(from, to, trigger,
		statemachine.WithGuard(guard),
		statemachine.WithAction(action),
	)
}

// lifecycleTable wires the transition table to m's actions. Edges sharing a phase
// and trigger are listed in priority order.
func (m *Machine) lifecycleTable() *statemachine.Table[*step] {
	return statemachine.MustNew(
		edge(phaseTrialing, phaseActive, triggerTrialEnded, paid, m.convertTrial),
		edge(phaseTrialing, phaseCanceled, triggerTrialEnded, unpaid, m.endTrial),

		edge(phaseActive, phaseCanceled, triggerPeriodEnded, cancelScheduled, m.cancelAs(CancelReasonScheduled)),
		edge(phaseActive, phaseActive, triggerPeriodEnded, paid, m.renew),
		edge(phaseActive, phaseGrace, triggerPeriodEnded, unpaid, m.enterGrace),

		edge(phaseGrace, phaseActive, triggerRetryDue, paid, m.renew),
		edge(phaseGrace, phaseGrace, triggerRetryDue, unpaid, m.retryFailed),
		edge(phaseGrace, phaseCanceled, triggerGraceExpired, nil, m.cancelAs(CancelReasonGraceExpired)),
	)
}

// fire moves the subscription in s along the first matching edge and sets its status
// to the one the target phase maps to.
func (m *Machine) fire(ctx context.Context, trigger statemachine.Event, s *step) error {
	sub := &s.out.Subscription
	to, err := m.table.Fire(ctx, phaseOf(sub), trigger, s)
	if err != nil {
		if statemachine.IsNoTransitionAvailableError(err) || statemachine.IsTransitionRejectedError(err) {
			return errors.Join(ErrInvalidTransition, err)
		}
		return err
	}
	sub.Status = statusOf(to)
	return nil
}

func phaseOf(sub *Subscription) statemachine.State {
	switch {
	case sub.Status == StatusActive && sub.Lifecycle.InGracePeriod:
		return phaseGrace
	case sub.Status == StatusActive:
		return phaseActive
	case sub.Status == StatusTrialing:
		return phaseTrialing
	case sub.Status == StatusCanceled:
		return phaseCanceled
	default:
		return statemachine.StringState(sub.Status)
	}
}

func statusOf(phase statemachine.State) SubscriptionStatus {
	switch phase {
	case phaseTrialing:
		return StatusTrialing
	case phaseActive, phaseGrace:
		return StatusActive
	case phaseCanceled:
		return StatusCanceled
	default:
		return SubscriptionStatus(phase.Name())
	}
}
