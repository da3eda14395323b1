package statemachine

import (
	"context"
	"fmt"
)

// State is a node of the machine.
type State interface {
	Name() string
}

// Event triggers a transition out of a state.
type Event interface {
	Name() string
}

// Guard decides from runtime data whether a transition applies.
type Guard[T any] func(ctx context.Context, from State, event Event, data T) bool

// Action runs the side effects of a transition. Returning an error aborts it.
type Action[T any] func(ctx context.Context, from, to State, event Event, data T) error

// Transition is one edge: From --Event--> To, taken when every guard passes.
type Transition[T any] struct {
	From    State
	To      State
	Event   Event
	Guards  []Guard[T]
	Actions []Action[T]
}

// Table is an immutable transition table. It keeps no current state, so a single
// table can drive any number of entities whose state lives elsewhere.
type Table[T any] struct {
	transitions map[string]map[string][]Transition[T]
}

// Fire finds the first transition out of from for event whose guards all pass,
// runs its actions in order and returns the target state.
func (t *Table[T]) Fire(ctx context.Context, from State, event Event, data T) (State, error) {
	if from == nil || event == nil {
		return nil, ErrInvalidEvent
	}

	candidates := t.transitions[from.Name()][event.Name()]
	if len(candidates) == 0 {
		return nil, NewErrNoTransitionAvailable(from.Name(), event.Name())
	}

	tr, ok := t.match(ctx, candidates, from, event, data)
	if !ok {
		return nil, NewErrTransitionRejected(from.Name(), event.Name())
	}

	for _, action := range tr.Actions {
		if err := action(ctx, from, tr.To, event, data); err != nil {
			return nil, fmt.Errorf("action failed: %w", err)
		}
	}
	return tr.To, nil
}

// CanFire reports whether Fire would find a transition, without running actions.
func (t *Table[T]) CanFire(ctx context.Context, from State, event Event, data T) bool {
	if from == nil || event == nil {
		return false
	}
	_, ok := t.match(ctx, t.transitions[from.Name()][event.Name()], from, event, data)
	return ok
}

// Targets lists every state reachable from the given state in one transition.
func (t *Table[T]) Targets(from State) []State {
	if from == nil {
		return nil
	}
	seen := map[string]bool{}
	var out []State
	for _, byEvent := range t.transitions[from.Name()] {
		for _, tr := range byEvent {
			if !seen[tr.To.Name()] {
				seen[tr.To.Name()] = true
				out = append(out, tr.To)
			}
		}
	}
	return out
}

// match returns the first candidate whose guards pass; declaration order is priority.
func (t *Table[T]) match(ctx context.Context, candidates []Transition[T], from State, event Event, data T) (Transition[T], bool) {
	for _, tr := range candidates {
		passed := true
		for _, guard := range tr.Guards {
			if !guard(ctx, from, event, data) {
				passed = false
				break
			}
		}
		if passed {
			return tr, true
		}
	}
	return Transition[T]{}, false
}

func (t *Table[T]) add(tr Transition[T]) error {
	if tr.From == nil || tr.To == nil || tr.Event == nil {
		return ErrInvalidTransition
	}
	byEvent, ok := t.transitions[tr.From.Name()]
	if !ok {
		byEvent = make(map[string][]Transition[T])
		t.transitions[tr.From.Name()] = byEvent
	}
	byEvent[tr.Event.Name()] = append(byEvent[tr.Event.Name()], tr)
	return nil
}

// StringState is a State backed by its name.
type StringState string

func (s StringState) Name() string {
	return string(s)
}

// StringEvent is an Event backed by its name.
type StringEvent string

func (e StringEvent) Name() string {
	return string(e)
}
