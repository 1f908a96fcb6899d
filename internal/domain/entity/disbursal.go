package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// SalaryDisbursalRequest is a payroll batch for one organization and period
type SalaryDisbursalRequest struct {
	ID             int64                  `json:"id"`
	OrganizationID int64                  `json:"organization_id"`
	Period         string                 `json:"period"`
	Status         string                 `json:"status"`
	TotalAmount    decimal.Decimal        `json:"total_amount"`
	Remarks        string                 `json:"remarks,omitempty"`
	CreatedBy      int64                  `json:"created_by"`
	CreatedAt      time.Time              `json:"created_at"`
	ProcessedAt    *time.Time             `json:"processed_at,omitempty"`
	Lines          []*SalaryDisbursalLine `json:"lines,omitempty"`
}

// IsPending reports whether the batch still awaits a decision
func (r *SalaryDisbursalRequest) IsPending() bool {
	return r.Status == StatusPending
}

// SumLines returns the total of all line net amounts
func (r *SalaryDisbursalRequest) SumLines() decimal.Decimal {
	total := decimal.Zero
	for _, line := range r.Lines {
		total = total.Add(line.NetAmount)
	}
	return total
}

// SalaryDisbursalLine is one payee's salary snapshot inside a batch
type SalaryDisbursalLine struct {
	ID          int64           `json:"id"`
	DisbursalID int64           `json:"disbursal_id"`
	PayeeType   string          `json:"payee_type"`
	PayeeID     int64           `json:"payee_id"`
	GrossSalary decimal.Decimal `json:"gross_salary"`
	Deductions  decimal.Decimal `json:"deductions"`
	NetAmount   decimal.Decimal `json:"net_amount"`
	Status      string          `json:"status"`
}

// SalaryDisbursalApprovalHistory records the decision taken on a batch
type SalaryDisbursalApprovalHistory struct {
	ID          int64     `json:"id"`
	DisbursalID int64     `json:"disbursal_id"`
	Action      string    `json:"action"`
	Comment     string    `json:"comment"`
	ActedBy     int64     `json:"acted_by"`
	Timestamp   time.Time `json:"timestamp"`
}

// SalarySlip is issued for each PAID disbursal line
type SalarySlip struct {
	ID          int64           `json:"id"`
	DisbursalID int64           `json:"disbursal_id"`
	LineID      int64           `json:"line_id"`
	PayeeType   string          `json:"payee_type"`
	PayeeID     int64           `json:"payee_id"`
	Period      string          `json:"period"`
	NetAmount   decimal.Decimal `json:"net_amount"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// DisbursalLineView is a line resolved to display-friendly payee data
type DisbursalLineView struct {
	*SalaryDisbursalLine
	PayeeName  string `json:"payee_name"`
	PayeeEmail string `json:"payee_email"`
}

// DisbursalDetails is a batch with its lines resolved for display
type DisbursalDetails struct {
	*SalaryDisbursalRequest
	OrganizationName string               `json:"organization_name"`
	LineViews        []*DisbursalLineView `json:"line_views"`
}

// SalarySlipDetail joins a slip with its payee, organization and the
// salary breakdown of the originating line
type SalarySlipDetail struct {
	Slip             *SalarySlip     `json:"slip"`
	PayeeName        string          `json:"payee_name"`
	PayeeEmail       string          `json:"payee_email"`
	Department       string          `json:"department,omitempty"`
	BankAccountNo    string          `json:"bank_account_no,omitempty"`
	OrganizationName string          `json:"organization_name"`
	GrossSalary      decimal.Decimal `json:"gross_salary"`
	Deductions       decimal.Decimal `json:"deductions"`
	NetAmount        decimal.Decimal `json:"net_amount"`
}
