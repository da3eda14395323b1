package statemachine

import "fmt"

// Option configures a Table during construction.
type Option[T any] func(*Table[T]) error

// TransitionOption attaches guards and actions to one transition.
type TransitionOption[T any] func(*Transition[T])

// New builds a table from the given transitions.
func New[T any](opts ...Option[T]) (*Table[T], error) {
	t := &Table[T]{transitions: make(map[string]map[string][]Transition[T])}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// MustNew is New that panics on an invalid definition.
func MustNew[T any](opts ...Option[T]) *Table[T] {
	t, err := New(opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to create state machine: %v", err))
	}
	return t
}

// WithTransition adds one transition. Transitions sharing from and event are
// tried in the order they were added.
func WithTransition[T any](from, to State, event Event, opts ...TransitionOption[T]) Option[T] {
	return func(t *Table[T]) error {
		tr := Transition[T]{From: from, To: to, Event: event}
		for _, opt := range opts {
			opt(&tr)
		}
		if err := t.add(tr); err != nil {
			return fmt.Errorf("failed to add transition on %s: %w", eventName(event), err)
		}
		return nil
	}
}

// WithGuard adds a guard to a transition. Nil guards are ignored.
func WithGuard[T any](guard Guard[T]) TransitionOption[T] {
	return func(tr *Transition[T]) {
		if guard != nil {
			tr.Guards = append(tr.Guards, guard)
		}
	}
}

// WithAction adds an action to a transition. Nil actions are ignored.
func WithAction[T any](action Action[T]) TransitionOption[T] {
	return func(tr *Transition[T]) {
		if action != nil {
			tr.Actions = append(tr.Actions, action)
		}
	}
}

func eventName(e Event) string {
	if e == nil {
		return "<nil>"
	}
	return e.Name()
}
