package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentRequest is an ad-hoc vendor payment awaiting a bank decision
type PaymentRequest struct {
	ID               int64           `json:"id"`
	OrganizationID   int64           `json:"organization_id"`
	VendorID         int64           `json:"vendor_id"`
	Amount           decimal.Decimal `json:"amount"`
	InvoiceReference string          `json:"invoice_reference"`
	Status           string          `json:"status"`
	RequestedBy      int64           `json:"requested_by"`
	ApprovedBy       *int64          `json:"approved_by,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	ProcessedAt      *time.Time      `json:"processed_at,omitempty"`
}

// IsPending reports whether the request still awaits a decision
func (r *PaymentRequest) IsPending() bool {
	return r.Status == StatusPending
}

// PaymentApprovalHistory records the single decision taken on a PaymentRequest
type PaymentApprovalHistory struct {
	ID        int64     `json:"id"`
	PaymentID int64     `json:"payment_id"`
	Action    string    `json:"action"`
	Comment   string    `json:"comment"`
	ActedBy   int64     `json:"acted_by"`
	Timestamp time.Time `json:"timestamp"`
}

// PaymentTransaction is the immutable ledger movement written on approval
type PaymentTransaction struct {
	ID             int64           `json:"id"`
	RelatedType    string          `json:"related_type"`
	RelatedID      int64           `json:"related_id"`
	Amount         decimal.Decimal `json:"amount"`
	Status         string          `json:"status"`
	BankReference  string          `json:"bank_reference"`
	ProcessedBy    int64           `json:"processed_by"`
	OrganizationID int64           `json:"organization_id"`
	ExecutedAt     time.Time       `json:"executed_at"`
}

// PaymentReceipt is issued exactly once per settled PaymentRequest
type PaymentReceipt struct {
	ID             int64           `json:"id"`
	PaymentID      int64           `json:"payment_id"`
	Amount         decimal.Decimal `json:"amount"`
	BankReference  string          `json:"bank_reference"`
	Status         string          `json:"status"`
	VendorID       int64           `json:"vendor_id"`
	OrganizationID int64           `json:"organization_id"`
	CreatedAt      time.Time       `json:"created_at"`
}
