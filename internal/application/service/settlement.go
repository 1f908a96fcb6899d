package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/paydesk/settlement-engine/internal/application/port"
	"github.com/paydesk/settlement-engine/internal/domain/entity"
)

// Settlement moves money for an approved vendor payment
type Settlement interface {
	// SettleVendorPayment debits the organization, credits the vendor and
	// writes the transaction and receipt. It joins the caller's transaction.
	SettleVendorPayment(ctx context.Context, req *entity.PaymentRequest, actor entity.Actor) (*entity.PaymentReceipt, error)
}

// NewBankReference returns BANK- followed by 12 uppercase hex characters
func NewBankReference() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return entity.BankReferencePrefix + strings.ToUpper(hex[:12])
}

type settlementImpl struct {
	ledger      LedgerService
	txRepo      port.TransactionRepository
	receiptRepo port.ReceiptRepository
	txManager   port.TransactionManager
	audit       AuditService
	newRef      func() string
	logger      Logger
}

// NewSettlement creates the vendor settlement primitive
func NewSettlement(
	ledger LedgerService,
	txRepo port.TransactionRepository,
	receiptRepo port.ReceiptRepository,
	txManager port.TransactionManager,
	audit AuditService,
	logger Logger,
) Settlement {
	return &settlementImpl{
		ledger:      ledger,
		txRepo:      txRepo,
		receiptRepo: receiptRepo,
		txManager:   txManager,
		audit:       audit,
		newRef:      NewBankReference,
		logger:      logger,
	}
}

// SettleVendorPayment performs the balance movement and record keeping
func (s *settlementImpl) SettleVendorPayment(ctx context.Context, req *entity.PaymentRequest, actor entity.Actor) (*entity.PaymentReceipt, error) {
	var receipt *entity.PaymentReceipt

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.ledger.DebitOrganization(txCtx, req.OrganizationID, req.Amount); err != nil {
			return err
		}
		if err := s.ledger.CreditVendor(txCtx, req.VendorID, req.Amount); err != nil {
			return err
		}

		now := utcNow()
		ref := s.newRef()

		tx := &entity.PaymentTransaction{
			RelatedType:    entity.TransactionRelatedVendor,
			RelatedID:      req.VendorID,
			Amount:         req.Amount,
			Status:         entity.TransactionStatusSuccess,
			BankReference:  ref,
			ProcessedBy:    actor.UserID,
			OrganizationID: req.OrganizationID,
			ExecutedAt:     now,
		}
		if err := s.txRepo.Create(txCtx, tx); err != nil {
			return fmt.Errorf("create payment transaction: %w", err)
		}

		receipt = &entity.PaymentReceipt{
			PaymentID:      req.ID,
			Amount:         req.Amount,
			BankReference:  ref,
			Status:         entity.ReceiptStatusPaid,
			VendorID:       req.VendorID,
			OrganizationID: req.OrganizationID,
			CreatedAt:      now,
		}
		if err := s.receiptRepo.Create(txCtx, receipt); err != nil {
			return fmt.Errorf("create payment receipt: %w", err)
		}

		s.audit.Log(txCtx, AuditEntry{
			Action:       entity.AuditGenerateReceipt,
			ResourceType: entity.ResourcePaymentReceipt,
			ResourceID:   receipt.ID,
			Actor:        actor,
			Details:      fmt.Sprintf("payment_id=%d bank_reference=%s", req.ID, ref),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Vendor payment settled",
		"payment_id", req.ID,
		"vendor_id", req.VendorID,
		"amount", req.Amount.String(),
		"bank_reference", receipt.BankReference)
	return receipt, nil
}
