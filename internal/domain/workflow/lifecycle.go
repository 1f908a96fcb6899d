package workflow

// transitions is the request lifecycle shared by payment requests and
// salary disbursals. PENDING moves once to APPROVED or REJECTED and both
// are terminal.
var transitions = map[State]map[Trigger]State{
	StatePending: {
		TriggerApprove: StateApproved,
		TriggerReject:  StateRejected,
	},
}

// Decide returns the status a request in status moves to when trigger
// fires. A disallowed decision returns status unchanged with a
// *TransitionError.
func Decide(status string, trigger Trigger) (string, error) {
	from := State(status)
	to, ok := transitions[from][trigger]
	if !ok {
		return status, &TransitionError{From: from, Trigger: trigger, Cause: ErrInvalidTransition}
	}
	return to.String(), nil
}
