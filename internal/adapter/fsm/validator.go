package fsm

import (
	"context"
	"errors"

	loopfsm "github.com/looplab/fsm"

	"github.com/openauto/dealerdesk/internal/domain"
)

// Compile-time check: Validator implements domain.TransitionValidator.
var _ domain.TransitionValidator = (*Validator)(nil)

type machineKey struct {
	entity domain.EntityType
	field  string
}

// events converts the schema's transition tables into looplab/fsm EventDesc
// lists, one list per (entity, state field) pair. Orders carry three state
// fields, so they contribute three independent machines. Creation transitions
// have no source state and are excluded; the machine only answers questions
// about records that already exist.
var events = buildEvents()

func buildEvents() map[machineKey][]loopfsm.EventDesc {
	out := make(map[machineKey][]loopfsm.EventDesc)
	for _, t := range domain.LifecycleEntities() {
		for _, def := range domain.Transitions(t) {
			if len(def.Src) == 0 {
				continue
			}
			k := machineKey{entity: t, field: def.Field}
			out[k] = append(out[k], loopfsm.EventDesc{
				Name: def.Name,
				Src:  def.Src,
				Dst:  def.Dst,
			})
		}
	}
	return out
}

// Validator implements domain.TransitionValidator using looplab/fsm.
// It creates a short-lived FSM instance per Apply call, initialized with the
// record's current state. This is necessary because looplab/fsm is stateful
// (it tracks the current state internally).
type Validator struct{}

// New creates a new FSM-backed transition validator.
func New() *Validator {
	return &Validator{}
}

// Apply checks whether the named transition is legal for the given state
// field from the current state, and returns the destination state. Illegal
// transitions come back as a *domain.Rejection.
func (v *Validator) Apply(ctx context.Context, t domain.EntityType, field, current, transition string) (string, error) {
	descs, ok := events[machineKey{entity: t, field: field}]
	if !ok {
		return "", &domain.Rejection{
			Reason:     domain.ReasonIllegalTransition,
			Entity:     t,
			Transition: transition,
			State:      current,
			Detail:     "no lifecycle declared for field " + field,
		}
	}

	machine := loopfsm.NewFSM(current, descs, nil)

	if err := machine.Event(ctx, transition); err != nil {
		// A no-op transition (declared src == dst) is a legal re-assertion,
		// not a failure.
		var noTransition loopfsm.NoTransitionError
		if errors.As(err, &noTransition) {
			return machine.Current(), nil
		}
		var invalidEvent loopfsm.InvalidEventError
		if errors.As(err, &invalidEvent) {
			return "", &domain.Rejection{
				Reason:     domain.ReasonIllegalTransition,
				Entity:     t,
				Transition: transition,
				State:      current,
			}
		}
		return "", err
	}

	return machine.Current(), nil
}
