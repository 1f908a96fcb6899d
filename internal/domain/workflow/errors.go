package workflow

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when a decision is not allowed from the
// request's current status
var ErrInvalidTransition = errors.New("invalid state transition")

// TransitionError describes a rejected decision
type TransitionError struct {
	From    State
	Trigger Trigger
	Cause   error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%v: trigger %s from state %s", e.Cause, e.Trigger, e.From)
}

func (e *TransitionError) Unwrap() error {
	return e.Cause
}
