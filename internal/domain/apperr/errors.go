// Package apperr defines the typed failures returned by the settlement
// workflows. Each error carries a stable code and the structured details a
// caller needs to render a message without parsing error text.
package apperr

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Error codes
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeConflict          = "CONFLICT"
	CodeInsufficientFunds = "INSUFFICIENT_FUNDS"
	CodeDuplicatePayroll  = "DUPLICATE_PAYROLL"
	CodeIntegrity         = "INTEGRITY_VIOLATION"
)

// Sentinel kinds usable with errors.Is
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("resource not found")
	ErrConflict          = errors.New("request already processed")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrDuplicatePayroll  = errors.New("duplicate payroll period")
	ErrIntegrity         = errors.New("data integrity violation")
)

// Coded is implemented by every typed failure in this package
type Coded interface {
	error
	Code() string
	Details() map[string]interface{}
}

// ValidationError reports bad caller input
type ValidationError struct {
	Field   string
	Message string
}

// NewValidation creates a ValidationError
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidation }

func (e *ValidationError) Code() string { return CodeValidation }

func (e *ValidationError) Details() map[string]interface{} {
	if e.Field == "" {
		return nil
	}
	return map[string]interface{}{"field": e.Field}
}

// NotFoundError reports a missing referenced record
type NotFoundError struct {
	Resource string
	ID       int64
}

// NewNotFound creates a NotFoundError
func NewNotFound(resource string, id int64) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %d", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func (e *NotFoundError) Code() string { return CodeNotFound }

func (e *NotFoundError) Details() map[string]interface{} {
	return map[string]interface{}{"resource": e.Resource, "id": e.ID}
}

// ConflictError reports a request that is no longer PENDING
type ConflictError struct {
	Resource string
	ID       int64
	Status   string
}

// NewConflict creates a ConflictError
func NewConflict(resource string, id int64, status string) *ConflictError {
	return &ConflictError{Resource: resource, ID: id, Status: status}
}

func (e *ConflictError) Error() string {
	if e.Status == "" {
		return fmt.Sprintf("%s %d already processed", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s %d already %s", e.Resource, e.ID, e.Status)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

func (e *ConflictError) Code() string { return CodeConflict }

func (e *ConflictError) Details() map[string]interface{} {
	return map[string]interface{}{"resource": e.Resource, "id": e.ID, "status": e.Status}
}

// InsufficientFundsError reports an organization balance below the amount
// required by a settlement
type InsufficientFundsError struct {
	OrganizationID int64
	Balance        decimal.Decimal
	Required       decimal.Decimal
	Shortfall      decimal.Decimal
}

// NewInsufficientFunds creates an InsufficientFundsError, deriving the shortfall
func NewInsufficientFunds(orgID int64, balance, required decimal.Decimal) *InsufficientFundsError {
	shortfall := required.Sub(balance)
	if shortfall.IsNegative() {
		shortfall = decimal.Zero
	}
	return &InsufficientFundsError{
		OrganizationID: orgID,
		Balance:        balance,
		Required:       required,
		Shortfall:      shortfall,
	}
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: organization %d has %s but requires %s (shortfall %s)",
		e.OrganizationID, e.Balance.StringFixed(2), e.Required.StringFixed(2), e.Shortfall.StringFixed(2))
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

func (e *InsufficientFundsError) Code() string { return CodeInsufficientFunds }

func (e *InsufficientFundsError) Details() map[string]interface{} {
	return map[string]interface{}{
		"organization_id": e.OrganizationID,
		"balance":         e.Balance.StringFixed(2),
		"required":        e.Required.StringFixed(2),
		"shortfall":       e.Shortfall.StringFixed(2),
	}
}

// DuplicatePayrollError reports a live disbursal already covering the period
type DuplicatePayrollError struct {
	OrganizationID int64
	Period         string
	ExistingStatus string
	ExistingID     int64
}

// NewDuplicatePayroll creates a DuplicatePayrollError
func NewDuplicatePayroll(orgID int64, period, status string, existingID int64) *DuplicatePayrollError {
	return &DuplicatePayrollError{
		OrganizationID: orgID,
		Period:         period,
		ExistingStatus: status,
		ExistingID:     existingID,
	}
}

func (e *DuplicatePayrollError) Error() string {
	return fmt.Sprintf("salary disbursal for period %s already exists with status %s", e.Period, e.ExistingStatus)
}

func (e *DuplicatePayrollError) Unwrap() error { return ErrDuplicatePayroll }

func (e *DuplicatePayrollError) Code() string { return CodeDuplicatePayroll }

func (e *DuplicatePayrollError) Details() map[string]interface{} {
	return map[string]interface{}{
		"organization_id": e.OrganizationID,
		"period":          e.Period,
		"status":          e.ExistingStatus,
		"conflicting_id":  e.ExistingID,
	}
}

// IntegrityError reports directory data the engine refuses to skip over
type IntegrityError struct {
	Resource string
	ID       int64
	Reason   string
}

// NewIntegrity creates an IntegrityError
func NewIntegrity(resource string, id int64, reason string) *IntegrityError {
	return &IntegrityError{Resource: resource, ID: id, Reason: reason}
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity violation on %s %d: %s", e.Resource, e.ID, e.Reason)
}

func (e *IntegrityError) Unwrap() error { return ErrIntegrity }

func (e *IntegrityError) Code() string { return CodeIntegrity }

func (e *IntegrityError) Details() map[string]interface{} {
	return map[string]interface{}{"resource": e.Resource, "id": e.ID, "reason": e.Reason}
}

// As extracts the Coded failure from err, if any
func As(err error) (Coded, bool) {
	var coded Coded
	if errors.As(err, &coded) {
		return coded, true
	}
	return nil, false
}
