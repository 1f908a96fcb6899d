package port

import (
	"context"
	"time"

	"github.com/paydesk/settlement-engine/internal/domain/entity"
)

// MessageSender delivers a notification to a directory user
type MessageSender interface {
	Send(ctx context.Context, recipient *entity.User, title, body string) error
}

// ApprovalGuard serialises decisions on the same request across processes
type ApprovalGuard interface {
	// TryLock acquires key for ttl. It reports false when another holder
	// already owns it.
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// ReceiptDocument is the data rendered onto an exported payment receipt
type ReceiptDocument struct {
	Receipt          *entity.PaymentReceipt
	Request          *entity.PaymentRequest
	VendorName       string
	OrganizationName string
}

// DocumentRenderer produces downloadable settlement documents
type DocumentRenderer interface {
	RenderSlip(detail *entity.SalarySlipDetail) ([]byte, error)
	RenderReceipt(doc *ReceiptDocument) ([]byte, error)
	Extension() string
}
