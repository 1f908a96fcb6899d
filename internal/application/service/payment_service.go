package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/paydesk/settlement-engine/internal/application/dispatcher"
	"github.com/paydesk/settlement-engine/internal/application/port"
	"github.com/paydesk/settlement-engine/internal/domain/apperr"
	"github.com/paydesk/settlement-engine/internal/domain/entity"
	"github.com/paydesk/settlement-engine/internal/domain/event"
	"github.com/paydesk/settlement-engine/internal/domain/workflow"
	"github.com/paydesk/settlement-engine/pkg/utils"
	"github.com/shopspring/decimal"
)

// CreatePaymentInput carries a new vendor payment request
type CreatePaymentInput struct {
	OrganizationID   int64
	VendorID         int64
	Amount           decimal.Decimal
	InvoiceReference string
	Requester        entity.Actor
}

// PaymentService runs the vendor payment approval workflow
type PaymentService interface {
	CreateRequest(ctx context.Context, in CreatePaymentInput) (*entity.PaymentRequest, error)

	// Approve settles a PENDING request and returns it with its receipt
	Approve(ctx context.Context, paymentID int64, comment string, approver entity.Actor) (*entity.PaymentRequest, *entity.PaymentReceipt, error)

	Reject(ctx context.Context, paymentID int64, comment string, approver entity.Actor) (*entity.PaymentRequest, error)

	GetRequest(ctx context.Context, paymentID int64) (*entity.PaymentRequest, error)
	GetPendingRequests(ctx context.Context) ([]*entity.PaymentRequest, error)
	GetAllRequests(ctx context.Context) ([]*entity.PaymentRequest, error)
	GetRequestsByOrg(ctx context.Context, orgID int64) ([]*entity.PaymentRequest, error)
	GetReceipt(ctx context.Context, paymentID int64) (*entity.PaymentReceipt, error)
	GetReceiptsByOrg(ctx context.Context, orgID int64) ([]*entity.PaymentReceipt, error)
	GetHistory(ctx context.Context, paymentID int64) ([]*entity.PaymentApprovalHistory, error)
}

type paymentServiceImpl struct {
	repos      Repositories
	txManager  port.TransactionManager
	ledger     LedgerService
	settlement Settlement
	audit      AuditService
	guard      port.ApprovalGuard
	publisher  dispatcher.Publisher
	logger     Logger
}

// NewPaymentService creates a new PaymentService. guard may be nil.
func NewPaymentService(
	repos Repositories,
	txManager port.TransactionManager,
	ledger LedgerService,
	settlement Settlement,
	audit AuditService,
	guard port.ApprovalGuard,
	publisher dispatcher.Publisher,
	logger Logger,
) PaymentService {
	return &paymentServiceImpl{
		repos:      repos,
		txManager:  txManager,
		ledger:     ledger,
		settlement: settlement,
		audit:      audit,
		guard:      guard,
		publisher:  publisherOrNoop(publisher),
		logger:     logger,
	}
}

// CreateRequest validates and stores a PENDING payment request
func (s *paymentServiceImpl) CreateRequest(ctx context.Context, in CreatePaymentInput) (*entity.PaymentRequest, error) {
	if !in.Amount.IsPositive() {
		return nil, apperr.NewValidation("amount", "amount must be greater than zero")
	}
	reference := strings.TrimSpace(utils.SanitizeString(in.InvoiceReference))
	if reference == "" {
		return nil, apperr.NewValidation("invoice_reference", "invoice reference is required")
	}
	if err := requireActor("requester", in.Requester); err != nil {
		return nil, err
	}

	requester, err := s.repos.Users.GetByID(ctx, in.Requester.UserID)
	if err != nil {
		return nil, fmt.Errorf("get requester: %w", err)
	}
	if requester == nil {
		return nil, apperr.NewNotFound(entity.ResourceUser, in.Requester.UserID)
	}

	org, err := s.ledger.GetOrganizationBalance(ctx, in.OrganizationID)
	if err != nil {
		return nil, err
	}
	vendor, err := s.ledger.GetVendorBalance(ctx, in.VendorID)
	if err != nil {
		return nil, err
	}
	if vendor.OrganizationID != in.OrganizationID {
		return nil, apperr.NewValidation("vendor_id",
			fmt.Sprintf("vendor %d does not belong to organization %d", in.VendorID, in.OrganizationID))
	}

	// advisory only, approval re-checks under the transaction
	if !org.CanCover(in.Amount) {
		return nil, apperr.NewInsufficientFunds(org.ID, org.Balance, in.Amount)
	}

	req := &entity.PaymentRequest{
		OrganizationID:   in.OrganizationID,
		VendorID:         in.VendorID,
		Amount:           in.Amount,
		InvoiceReference: reference,
		Status:           entity.StatusPending,
		RequestedBy:      in.Requester.UserID,
		CreatedAt:        utcNow(),
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.repos.Payments.Create(txCtx, req); err != nil {
			return fmt.Errorf("create payment request: %w", err)
		}
		s.audit.Log(txCtx, AuditEntry{
			Action:       entity.AuditCreatePaymentRequest,
			ResourceType: entity.ResourcePaymentRequest,
			ResourceID:   req.ID,
			Actor:        in.Requester,
			Details:      fmt.Sprintf("vendor_id=%d amount=%s", req.VendorID, req.Amount.String()),
		})
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to create payment request", "organization_id", in.OrganizationID, "error", err)
		return nil, err
	}

	s.logger.Info("Payment request created",
		"payment_id", req.ID,
		"organization_id", req.OrganizationID,
		"vendor_id", req.VendorID,
		"amount", req.Amount.String())

	s.publisher.DispatchAsync(ctx, event.NewEvent(event.TypePaymentCreated, req.ID, map[string]interface{}{
		event.KeyActorID:  in.Requester.UserID,
		event.KeyOrgID:    req.OrganizationID,
		event.KeyVendorID: req.VendorID,
		event.KeyAmount:   req.Amount.String(),
	}))
	return req, nil
}

// Approve moves a PENDING request to APPROVED and settles it in one transaction
func (s *paymentServiceImpl) Approve(ctx context.Context, paymentID int64, comment string, approver entity.Actor) (*entity.PaymentRequest, *entity.PaymentReceipt, error) {
	if err := requireActor("approver", approver); err != nil {
		return nil, nil, err
	}

	var (
		req     *entity.PaymentRequest
		receipt *entity.PaymentReceipt
	)
	comment = commentOr(comment, entity.DefaultPaymentApproveComment)

	err := withDecisionLock(ctx, s.guard, s.logger, entity.ResourcePaymentRequest, paymentID, func() error {
		return s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			var err error
			req, err = s.loadPending(txCtx, paymentID, workflow.TriggerApprove)
			if err != nil {
				return err
			}

			org, err := s.ledger.GetOrganizationBalance(txCtx, req.OrganizationID)
			if err != nil {
				return err
			}
			if !org.CanCover(req.Amount) {
				return apperr.NewInsufficientFunds(org.ID, org.Balance, req.Amount)
			}

			if err := s.decide(txCtx, req, entity.StatusApproved, entity.HistoryActionApproved, comment, approver); err != nil {
				return err
			}
			s.audit.Log(txCtx, AuditEntry{
				Action:       entity.AuditApprovePayment,
				ResourceType: entity.ResourcePaymentRequest,
				ResourceID:   req.ID,
				Actor:        approver,
				Details:      "amount=" + req.Amount.String(),
			})

			receipt, err = s.settlement.SettleVendorPayment(txCtx, req, approver)
			return err
		})
	})
	if err != nil {
		s.logger.Error("Failed to approve payment request", "payment_id", paymentID, "error", err)
		return nil, nil, err
	}

	s.logger.Info("Payment request approved", "payment_id", req.ID, "approved_by", approver.UserID)
	s.publisher.DispatchAsync(ctx, event.NewEvent(event.TypePaymentApproved, req.ID, map[string]interface{}{
		event.KeyActorID:  approver.UserID,
		event.KeyComment:  comment,
		event.KeyOrgID:    req.OrganizationID,
		event.KeyVendorID: req.VendorID,
		event.KeyAmount:   req.Amount.String(),
	}))
	return req, receipt, nil
}

// Reject moves a PENDING request to REJECTED. No balance changes.
func (s *paymentServiceImpl) Reject(ctx context.Context, paymentID int64, comment string, approver entity.Actor) (*entity.PaymentRequest, error) {
	if err := requireActor("approver", approver); err != nil {
		return nil, err
	}
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return nil, apperr.NewValidation("comment", "rejection comment is required")
	}

	var req *entity.PaymentRequest
	err := withDecisionLock(ctx, s.guard, s.logger, entity.ResourcePaymentRequest, paymentID, func() error {
		return s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			var err error
			req, err = s.loadPending(txCtx, paymentID, workflow.TriggerReject)
			if err != nil {
				return err
			}
			if err := s.decide(txCtx, req, entity.StatusRejected, entity.HistoryActionRejected, comment, approver); err != nil {
				return err
			}
			s.audit.Log(txCtx, AuditEntry{
				Action:       entity.AuditRejectPayment,
				ResourceType: entity.ResourcePaymentRequest,
				ResourceID:   req.ID,
				Actor:        approver,
				Details:      "reason=" + comment,
			})
			return nil
		})
	})
	if err != nil {
		s.logger.Error("Failed to reject payment request", "payment_id", paymentID, "error", err)
		return nil, err
	}

	s.logger.Info("Payment request rejected", "payment_id", req.ID, "rejected_by", approver.UserID)
	s.publisher.DispatchAsync(ctx, event.NewEvent(event.TypePaymentRejected, req.ID, map[string]interface{}{
		event.KeyActorID: approver.UserID,
		event.KeyComment: comment,
		event.KeyOrgID:   req.OrganizationID,
	}))
	return req, nil
}

// loadPending fetches the request and checks trigger is allowed from its status
func (s *paymentServiceImpl) loadPending(ctx context.Context, paymentID int64, trigger workflow.Trigger) (*entity.PaymentRequest, error) {
	req, err := s.repos.Payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("get payment request: %w", err)
	}
	if req == nil {
		return nil, apperr.NewNotFound(entity.ResourcePaymentRequest, paymentID)
	}
	if _, err := workflow.Decide(req.Status, trigger); err != nil {
		return nil, apperr.NewConflict(entity.ResourcePaymentRequest, req.ID, req.Status)
	}
	return req, nil
}

// lostRace reports the status a concurrent decision left the request in
func (s *paymentServiceImpl) lostRace(ctx context.Context, paymentID int64) error {
	current, err := s.repos.Payments.GetByID(ctx, paymentID)
	if err != nil {
		return fmt.Errorf("get payment request: %w", err)
	}
	if current == nil {
		return apperr.NewNotFound(entity.ResourcePaymentRequest, paymentID)
	}
	return apperr.NewConflict(entity.ResourcePaymentRequest, paymentID, current.Status)
}

// decide swaps the status and appends the history row
func (s *paymentServiceImpl) decide(ctx context.Context, req *entity.PaymentRequest, status, action, comment string, approver entity.Actor) error {
	now := utcNow()
	ok, err := s.repos.Payments.Decide(ctx, req.ID, status, approver.UserID, now)
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	if !ok {
		return s.lostRace(ctx, req.ID)
	}

	history := &entity.PaymentApprovalHistory{
		PaymentID: req.ID,
		Action:    action,
		Comment:   comment,
		ActedBy:   approver.UserID,
		Timestamp: now,
	}
	if err := s.repos.PaymentHistory.Create(ctx, history); err != nil {
		return fmt.Errorf("create payment history: %w", err)
	}

	approvedBy := approver.UserID
	req.Status = status
	req.ApprovedBy = &approvedBy
	req.ProcessedAt = &now
	return nil
}

// GetRequest retrieves one payment request
func (s *paymentServiceImpl) GetRequest(ctx context.Context, paymentID int64) (*entity.PaymentRequest, error) {
	req, err := s.repos.Payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("get payment request: %w", err)
	}
	if req == nil {
		return nil, apperr.NewNotFound(entity.ResourcePaymentRequest, paymentID)
	}
	return req, nil
}

// GetPendingRequests lists requests awaiting a decision
func (s *paymentServiceImpl) GetPendingRequests(ctx context.Context) ([]*entity.PaymentRequest, error) {
	return s.repos.Payments.ListByStatus(ctx, entity.StatusPending)
}

// GetAllRequests lists every payment request
func (s *paymentServiceImpl) GetAllRequests(ctx context.Context) ([]*entity.PaymentRequest, error) {
	return s.repos.Payments.List(ctx)
}

// GetRequestsByOrg lists the payment requests of one organization
func (s *paymentServiceImpl) GetRequestsByOrg(ctx context.Context, orgID int64) ([]*entity.PaymentRequest, error) {
	return s.repos.Payments.ListByOrganization(ctx, orgID)
}

// GetReceipt returns the receipt of a settled payment
func (s *paymentServiceImpl) GetReceipt(ctx context.Context, paymentID int64) (*entity.PaymentReceipt, error) {
	receipt, err := s.repos.Receipts.GetByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("get payment receipt: %w", err)
	}
	if receipt == nil {
		return nil, apperr.NewNotFound(entity.ResourcePaymentReceipt, paymentID)
	}
	return receipt, nil
}

// GetReceiptsByOrg lists the receipts of one organization
func (s *paymentServiceImpl) GetReceiptsByOrg(ctx context.Context, orgID int64) ([]*entity.PaymentReceipt, error) {
	return s.repos.Receipts.ListByOrganization(ctx, orgID)
}

// GetHistory returns the decision log of a payment request
func (s *paymentServiceImpl) GetHistory(ctx context.Context, paymentID int64) ([]*entity.PaymentApprovalHistory, error) {
	if _, err := s.GetRequest(ctx, paymentID); err != nil {
		return nil, err
	}
	return s.repos.PaymentHistory.ListByPaymentID(ctx, paymentID)
}
