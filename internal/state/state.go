package state

import (
	"fmt"

	"github.com/t-curity/tcurity-backend/internal/model"
)

// transitions maps a current status to the statuses it may move to.
// PHASE_A and PHASE_B allow self-transition for retries; COMPLETED is
// terminal (the idempotent self-entry never mutates anything).
var transitions = map[model.Status][]model.Status{
	model.StatusInit:      {model.StatusPhaseA},
	model.StatusPhaseA:    {model.StatusPhaseA, model.StatusPhaseB},
	model.StatusPhaseB:    {model.StatusPhaseB, model.StatusCompleted},
	model.StatusCompleted: {model.StatusCompleted},
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to model.Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// InvalidTransitionError carries the attempted source and destination.
type InvalidTransitionError struct {
	From model.Status
	To   model.Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition: %s -> %s", e.From, e.To)
}

// Check returns a typed error when the transition is not allowed.
func Check(from, to model.Status) error {
	if !CanTransition(from, to) {
		return &InvalidTransitionError{From: from, To: to}
	}
	return nil
}

// CanRequestPhaseA reports whether a phase A challenge may be requested
// in the given status. The table doubles as an access guard: challenges
// are only issued in INIT or during a phase A retry.
func CanRequestPhaseA(current model.Status) bool {
	return current == model.StatusInit || current == model.StatusPhaseA
}

// CanSubmit reports whether a submission is accepted in the given status.
func CanSubmit(current model.Status) bool {
	return current == model.StatusPhaseA || current == model.StatusPhaseB
}
