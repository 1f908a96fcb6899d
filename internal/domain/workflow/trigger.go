package workflow

import "strings"

// Trigger represents a decision that moves a request out of PENDING
type Trigger string

const (
	TriggerApprove Trigger = "APPROVE"
	TriggerReject  Trigger = "REJECT"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}

// ParseTrigger maps a caller-supplied decision literal to a Trigger.
// Matching is case-insensitive and ignores surrounding whitespace.
func ParseTrigger(action string) (Trigger, bool) {
	switch Trigger(strings.ToUpper(strings.TrimSpace(action))) {
	case TriggerApprove:
		return TriggerApprove, true
	case TriggerReject:
		return TriggerReject, true
	default:
		return "", false
	}
}
