package service

import (
	"context"
	"fmt"

	"github.com/paydesk/settlement-engine/internal/application/dispatcher"
	"github.com/paydesk/settlement-engine/internal/application/port"
	"github.com/paydesk/settlement-engine/internal/domain/apperr"
	"github.com/paydesk/settlement-engine/internal/domain/entity"
	"github.com/paydesk/settlement-engine/internal/domain/event"
	"github.com/shopspring/decimal"
)

// LedgerService owns organization and vendor balances
type LedgerService interface {
	GetOrganizationBalance(ctx context.Context, orgID int64) (*entity.Organization, error)
	GetVendorBalance(ctx context.Context, vendorID int64) (*entity.Vendor, error)

	// TopUp credits an organization from outside the engine
	TopUp(ctx context.Context, orgID int64, amount decimal.Decimal, actor entity.Actor) (*entity.Organization, error)

	// DebitOrganization removes amount from the organization or fails with
	// InsufficientFundsError carrying the current balance
	DebitOrganization(ctx context.Context, orgID int64, amount decimal.Decimal) error

	CreditVendor(ctx context.Context, vendorID int64, amount decimal.Decimal) error
}

type ledgerServiceImpl struct {
	orgRepo    port.OrganizationRepository
	vendorRepo port.VendorRepository
	txManager  port.TransactionManager
	audit      AuditService
	publisher  dispatcher.Publisher
	logger     Logger
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(
	orgRepo port.OrganizationRepository,
	vendorRepo port.VendorRepository,
	txManager port.TransactionManager,
	audit AuditService,
	publisher dispatcher.Publisher,
	logger Logger,
) LedgerService {
	return &ledgerServiceImpl{
		orgRepo:    orgRepo,
		vendorRepo: vendorRepo,
		txManager:  txManager,
		audit:      audit,
		publisher:  publisherOrNoop(publisher),
		logger:     logger,
	}
}

// GetOrganizationBalance returns the organization with its current balance
func (s *ledgerServiceImpl) GetOrganizationBalance(ctx context.Context, orgID int64) (*entity.Organization, error) {
	org, err := s.orgRepo.GetByID(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("get organization: %w", err)
	}
	if org == nil {
		return nil, apperr.NewNotFound(entity.ResourceOrganization, orgID)
	}
	return org, nil
}

// GetVendorBalance returns the vendor with its current balance
func (s *ledgerServiceImpl) GetVendorBalance(ctx context.Context, vendorID int64) (*entity.Vendor, error) {
	vendor, err := s.vendorRepo.GetByID(ctx, vendorID)
	if err != nil {
		return nil, fmt.Errorf("get vendor: %w", err)
	}
	if vendor == nil {
		return nil, apperr.NewNotFound(entity.ResourceVendor, vendorID)
	}
	return vendor, nil
}

// TopUp credits the organization and audits it
func (s *ledgerServiceImpl) TopUp(ctx context.Context, orgID int64, amount decimal.Decimal, actor entity.Actor) (*entity.Organization, error) {
	if !amount.IsPositive() {
		return nil, apperr.NewValidation("amount", "amount must be greater than zero")
	}
	if err := requireActor("actor", actor); err != nil {
		return nil, err
	}

	var org *entity.Organization
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.orgRepo.Credit(txCtx, orgID, amount); err != nil {
			return fmt.Errorf("credit organization: %w", err)
		}

		s.audit.Log(txCtx, AuditEntry{
			Action:       entity.AuditOrganizationTopUp,
			ResourceType: entity.ResourceOrganization,
			ResourceID:   orgID,
			Actor:        actor,
			Details:      "amount=" + amount.String(),
		})

		var err error
		org, err = s.orgRepo.GetByID(txCtx, orgID)
		return err
	})
	if err != nil {
		s.logger.Error("Failed to top up organization", "organization_id", orgID, "error", err)
		return nil, err
	}

	s.logger.Info("Organization topped up", "organization_id", orgID, "amount", amount.String(), "balance", org.Balance.String())
	s.publisher.DispatchAsync(ctx, event.NewEvent(event.TypeBalanceToppedUp, orgID, map[string]interface{}{
		event.KeyActorID: actor.UserID,
		event.KeyAmount:  amount.String(),
	}))
	return org, nil
}

// DebitOrganization removes amount from the organization balance
func (s *ledgerServiceImpl) DebitOrganization(ctx context.Context, orgID int64, amount decimal.Decimal) error {
	ok, err := s.orgRepo.Debit(ctx, orgID, amount)
	if err != nil {
		return fmt.Errorf("debit organization: %w", err)
	}
	if ok {
		return nil
	}

	org, err := s.GetOrganizationBalance(ctx, orgID)
	if err != nil {
		return err
	}
	return apperr.NewInsufficientFunds(orgID, org.Balance, amount)
}

// CreditVendor adds amount to the vendor balance
func (s *ledgerServiceImpl) CreditVendor(ctx context.Context, vendorID int64, amount decimal.Decimal) error {
	if err := s.vendorRepo.Credit(ctx, vendorID, amount); err != nil {
		return fmt.Errorf("credit vendor: %w", err)
	}
	return nil
}
