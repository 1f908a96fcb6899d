package event

// Type identifies the type of domain event
type Type string

const (
	TypePaymentCreated    Type = "payment.created"
	TypePaymentApproved   Type = "payment.approved"
	TypePaymentRejected   Type = "payment.rejected"
	TypeDisbursalCreated  Type = "disbursal.created"
	TypeDisbursalApproved Type = "disbursal.approved"
	TypeDisbursalRejected Type = "disbursal.rejected"
	TypeBalanceToppedUp   Type = "organization.topped_up"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypePaymentCreated,
		TypePaymentApproved,
		TypePaymentRejected,
		TypeDisbursalCreated,
		TypeDisbursalApproved,
		TypeDisbursalRejected,
		TypeBalanceToppedUp:
		return true
	default:
		return false
	}
}
