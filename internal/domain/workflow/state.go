package workflow

// State represents a request's position in the approval lifecycle
type State string

const (
	StatePending  State = "PENDING"
	StateApproved State = "APPROVED"
	StateRejected State = "REJECTED"
)

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}
