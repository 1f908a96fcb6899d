package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is a directory login identity
type User struct {
	ID             int64     `json:"id"`
	OrganizationID *int64    `json:"organization_id,omitempty"`
	Email          string    `json:"email"`
	FullName       string    `json:"full_name"`
	Role           string    `json:"role"`
	LarkOpenID     string    `json:"lark_open_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// SalaryGrade holds the pay components used to compute a disbursal line.
// Nil components count as zero.
type SalaryGrade struct {
	ID             int64            `json:"id"`
	OrganizationID int64            `json:"organization_id"`
	GradeCode      string           `json:"grade_code"`
	BasicSalary    *decimal.Decimal `json:"basic_salary,omitempty"`
	HRA            *decimal.Decimal `json:"hra,omitempty"`
	DA             *decimal.Decimal `json:"da,omitempty"`
	Allowances     *decimal.Decimal `json:"allowances,omitempty"`
	PF             *decimal.Decimal `json:"pf,omitempty"`
}

// Gross returns basic + HRA + DA + allowances
func (g *SalaryGrade) Gross() decimal.Decimal {
	return orZero(g.BasicSalary).
		Add(orZero(g.HRA)).
		Add(orZero(g.DA)).
		Add(orZero(g.Allowances))
}

// Deductions returns the provident fund deduction
func (g *SalaryGrade) Deductions() decimal.Decimal {
	return orZero(g.PF)
}

// Net returns gross minus deductions
func (g *SalaryGrade) Net() decimal.Decimal {
	return g.Gross().Sub(g.Deductions())
}

func orZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

// Payee is the common snapshot of an employee or org admin who can be paid
// through a salary disbursal
type Payee struct {
	ID             int64  `json:"id"`
	Type           string `json:"type"`
	OrganizationID int64  `json:"organization_id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Department     string `json:"department,omitempty"`
	UserID         *int64 `json:"user_id,omitempty"`
	SalaryGradeID  *int64 `json:"salary_grade_id,omitempty"`
	BankAccountNo  string `json:"bank_account_no,omitempty"`
}
