// Package statemachine implements guarded finite-state transition tables.
//
// A Table holds edges From --Event--> To with optional guards and actions. It
// stores no current state: callers pass the state in and get the target back,
// which lets one table serve every record of a kind while the state itself is
// persisted with the record.
//
// Guards and actions receive a typed payload, so decisions can depend on
// runtime data such as a payment outcome:
//
//	type step struct{ paid bool }
//
//	paid := func(_ context.Context, _ statemachine.State, _ statemachine.Event, s *step) bool {
//		return s.paid
//	}
//
//	table := statemachine.MustNew(
//		statemachine.WithTransition[*step](Active, Active, PeriodEnded, statemachine.WithGuard(paid)),
//		statemachine.WithTransition[*step](Active, Grace, PeriodEnded),
//	)
//	next, err := table.Fire(ctx, Active, PeriodEnded, &step{paid: false}) // Grace
//
// Transitions sharing a state and event are tried in declaration order; the
// first one whose guards all pass wins. Fire returns *ErrNoTransitionAvailable
// when no edge exists and *ErrTransitionRejected when guards vetoed all of them.
// A failing action aborts the transition with the action's error wrapped.
package statemachine
