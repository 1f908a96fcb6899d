package port

import (
	"context"
	"time"

	"github.com/paydesk/settlement-engine/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// TransactionManager runs fn inside a database transaction carried by ctx.
// Nested calls join the outer transaction.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrganizationRepository defines persistence operations for organization accounts
type OrganizationRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.Organization, error)

	// Debit subtracts amount only when the balance covers it. It reports
	// false without error when the balance is insufficient.
	Debit(ctx context.Context, id int64, amount decimal.Decimal) (bool, error)

	Credit(ctx context.Context, id int64, amount decimal.Decimal) error
}

// VendorRepository defines persistence operations for vendor accounts
type VendorRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.Vendor, error)
	Credit(ctx context.Context, id int64, amount decimal.Decimal) error
}

// UserRepository reads directory users
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	ListByOrganization(ctx context.Context, orgID int64) ([]*entity.User, error)
	ListByRole(ctx context.Context, role string) ([]*entity.User, error)
}

// PayeeRepository reads employees and org admins as payees
type PayeeRepository interface {
	GetByID(ctx context.Context, payeeType string, id int64) (*entity.Payee, error)
}

// SalaryGradeRepository reads salary grades
type SalaryGradeRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.SalaryGrade, error)
}

// PaymentRequestRepository defines persistence operations for PaymentRequest
type PaymentRequestRepository interface {
	Create(ctx context.Context, req *entity.PaymentRequest) error
	GetByID(ctx context.Context, id int64) (*entity.PaymentRequest, error)
	List(ctx context.Context) ([]*entity.PaymentRequest, error)
	ListByStatus(ctx context.Context, status string) ([]*entity.PaymentRequest, error)
	ListByOrganization(ctx context.Context, orgID int64) ([]*entity.PaymentRequest, error)

	// Decide moves a PENDING request to status. It reports false when the
	// request was no longer PENDING.
	Decide(ctx context.Context, id int64, status string, decidedBy int64, at time.Time) (bool, error)
}

// PaymentHistoryRepository defines persistence operations for payment decisions
type PaymentHistoryRepository interface {
	Create(ctx context.Context, h *entity.PaymentApprovalHistory) error
	ListByPaymentID(ctx context.Context, paymentID int64) ([]*entity.PaymentApprovalHistory, error)
}

// TransactionRepository defines persistence operations for PaymentTransaction
type TransactionRepository interface {
	Create(ctx context.Context, tx *entity.PaymentTransaction) error
	ListByOrganization(ctx context.Context, orgID int64) ([]*entity.PaymentTransaction, error)
}

// ReceiptRepository defines persistence operations for PaymentReceipt
type ReceiptRepository interface {
	Create(ctx context.Context, receipt *entity.PaymentReceipt) error
	GetByPaymentID(ctx context.Context, paymentID int64) (*entity.PaymentReceipt, error)
	ListByOrganization(ctx context.Context, orgID int64) ([]*entity.PaymentReceipt, error)
}

// DisbursalRepository defines persistence operations for SalaryDisbursalRequest
type DisbursalRepository interface {
	Create(ctx context.Context, req *entity.SalaryDisbursalRequest) error
	GetByID(ctx context.Context, id int64) (*entity.SalaryDisbursalRequest, error)

	// FindActiveByPeriod returns the PENDING or APPROVED batch for the
	// organization and period, or nil
	FindActiveByPeriod(ctx context.Context, orgID int64, period string) (*entity.SalaryDisbursalRequest, error)

	ListByStatus(ctx context.Context, status string) ([]*entity.SalaryDisbursalRequest, error)
	ListByOrganization(ctx context.Context, orgID int64) ([]*entity.SalaryDisbursalRequest, error)

	// Decide moves a PENDING batch to status. It reports false when the batch
	// was no longer PENDING.
	Decide(ctx context.Context, id int64, status string, at time.Time) (bool, error)
}

// DisbursalLineRepository defines persistence operations for disbursal lines
type DisbursalLineRepository interface {
	Create(ctx context.Context, line *entity.SalaryDisbursalLine) error
	GetByID(ctx context.Context, id int64) (*entity.SalaryDisbursalLine, error)
	ListByDisbursalID(ctx context.Context, disbursalID int64) ([]*entity.SalaryDisbursalLine, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
}

// DisbursalHistoryRepository defines persistence operations for disbursal decisions
type DisbursalHistoryRepository interface {
	Create(ctx context.Context, h *entity.SalaryDisbursalApprovalHistory) error
	ListByDisbursalID(ctx context.Context, disbursalID int64) ([]*entity.SalaryDisbursalApprovalHistory, error)
}

// SalarySlipRepository defines persistence operations for SalarySlip
type SalarySlipRepository interface {
	Create(ctx context.Context, slip *entity.SalarySlip) error
	GetByID(ctx context.Context, id int64) (*entity.SalarySlip, error)
	ListByPayee(ctx context.Context, payeeType string, payeeID int64) ([]*entity.SalarySlip, error)
	ListByDisbursalID(ctx context.Context, disbursalID int64) ([]*entity.SalarySlip, error)
}

// NotificationRepository defines persistence operations for Notification
type NotificationRepository interface {
	Create(ctx context.Context, n *entity.Notification) error
	GetByID(ctx context.Context, id int64) (*entity.Notification, error)
	ListByRecipient(ctx context.Context, recipientID int64, limit int) ([]*entity.Notification, error)

	// ListRetryable returns PENDING or FAILED notifications older than
	// olderThan with fewer than maxAttempts delivery attempts
	ListRetryable(ctx context.Context, maxAttempts int, olderThan time.Time, limit int) ([]*entity.Notification, error)

	MarkSent(ctx context.Context, id int64, at time.Time) error
	MarkFailed(ctx context.Context, id int64, errorMsg string) error

	// MarkRead flags the notification read. It reports false when no
	// notification with that id belongs to recipientID.
	MarkRead(ctx context.Context, id, recipientID int64) (bool, error)
}

// AuditRepository defines persistence operations for AuditLog
type AuditRepository interface {
	Create(ctx context.Context, log *entity.AuditLog) error
	ListByResource(ctx context.Context, resourceType string, resourceID int64) ([]*entity.AuditLog, error)
}
