package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Organization is the balance-bearing account debited by settlements
type Organization struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// CanCover reports whether the current balance covers amount
func (o *Organization) CanCover(amount decimal.Decimal) bool {
	return o.Balance.GreaterThanOrEqual(amount)
}

// Shortfall returns how much amount exceeds the balance, or zero
func (o *Organization) Shortfall(amount decimal.Decimal) decimal.Decimal {
	if o.CanCover(amount) {
		return decimal.Zero
	}
	return amount.Sub(o.Balance)
}

// Vendor is a payee account credited by vendor settlements
type Vendor struct {
	ID             int64           `json:"id"`
	OrganizationID int64           `json:"organization_id"`
	Name           string          `json:"name"`
	Email          string          `json:"email,omitempty"`
	UserID         *int64          `json:"user_id,omitempty"`
	BankAccountNo  string          `json:"bank_account_no,omitempty"`
	IFSCCode       string          `json:"ifsc_code,omitempty"`
	Balance        decimal.Decimal `json:"balance"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
