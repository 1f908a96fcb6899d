package service

import (
	"context"
	"fmt"

	"github.com/paydesk/settlement-engine/internal/application/port"
	"github.com/paydesk/settlement-engine/internal/domain/apperr"
	"github.com/paydesk/settlement-engine/internal/domain/entity"
	"github.com/paydesk/settlement-engine/pkg/utils"
)

// ExportedDocument is a rendered settlement document
type ExportedDocument struct {
	FileName string
	Path     string
	Content  []byte
}

// SlipService reads salary slips and exports slips and receipts as documents
type SlipService interface {
	GetSlipDetails(ctx context.Context, slipID int64) (*entity.SalarySlipDetail, error)
	GetSlipsByPayee(ctx context.Context, payeeType string, payeeID int64) ([]*entity.SalarySlip, error)
	ExportSlip(ctx context.Context, slipID int64) (*ExportedDocument, error)
	ExportReceipt(ctx context.Context, paymentID int64) (*ExportedDocument, error)
}

type slipServiceImpl struct {
	repos    Repositories
	renderer port.DocumentRenderer
	storage  port.FileStorage
	logger   Logger
}

// NewSlipService creates a new SlipService
func NewSlipService(repos Repositories, renderer port.DocumentRenderer, storage port.FileStorage, logger Logger) SlipService {
	return &slipServiceImpl{
		repos:    repos,
		renderer: renderer,
		storage:  storage,
		logger:   logger,
	}
}

// GetSlipDetails joins a slip with its payee, organization and line breakdown
func (s *slipServiceImpl) GetSlipDetails(ctx context.Context, slipID int64) (*entity.SalarySlipDetail, error) {
	slip, err := s.repos.Slips.GetByID(ctx, slipID)
	if err != nil {
		return nil, fmt.Errorf("get salary slip: %w", err)
	}
	if slip == nil {
		return nil, apperr.NewNotFound(entity.ResourceSalarySlip, slipID)
	}

	detail := &entity.SalarySlipDetail{
		Slip:      slip,
		PayeeName: "Unknown",
		NetAmount: slip.NetAmount,
	}

	line, err := s.repos.DisbursalLines.GetByID(ctx, slip.LineID)
	if err != nil {
		return nil, fmt.Errorf("get disbursal line: %w", err)
	}
	if line != nil {
		detail.GrossSalary = line.GrossSalary
		detail.Deductions = line.Deductions
	}

	payee, err := s.repos.Payees.GetByID(ctx, slip.PayeeType, slip.PayeeID)
	if err != nil {
		return nil, fmt.Errorf("get payee: %w", err)
	}
	if payee != nil {
		detail.PayeeName = payee.Name
		detail.PayeeEmail = payee.Email
		detail.Department = payee.Department
		detail.BankAccountNo = payee.BankAccountNo
	}

	disbursal, err := s.repos.Disbursals.GetByID(ctx, slip.DisbursalID)
	if err != nil {
		return nil, fmt.Errorf("get disbursal: %w", err)
	}
	if disbursal != nil {
		org, err := s.repos.Organizations.GetByID(ctx, disbursal.OrganizationID)
		if err != nil {
			return nil, fmt.Errorf("get organization: %w", err)
		}
		if org != nil {
			detail.OrganizationName = org.Name
		}
	}
	return detail, nil
}

// GetSlipsByPayee lists the slips issued to one payee
func (s *slipServiceImpl) GetSlipsByPayee(ctx context.Context, payeeType string, payeeID int64) ([]*entity.SalarySlip, error) {
	normalized, ok := NormalizePayeeType(payeeType)
	if !ok {
		return nil, apperr.NewValidation("payee_type", fmt.Sprintf("unknown payee type %q", payeeType))
	}
	return s.repos.Slips.ListByPayee(ctx, normalized, payeeID)
}

// ExportSlip renders a slip and keeps a copy in file storage. Slips never
// change once issued, so a stored copy is served as is.
func (s *slipServiceImpl) ExportSlip(ctx context.Context, slipID int64) (*ExportedDocument, error) {
	detail, err := s.GetSlipDetails(ctx, slipID)
	if err != nil {
		return nil, err
	}

	name := fmt.Sprintf("salary_slip_%s_%d%s", utils.SanitizeFileName(detail.Slip.Period), slipID, s.renderer.Extension())
	path := fmt.Sprintf("slips/%d/slip_%d%s", detail.Slip.DisbursalID, slipID, s.renderer.Extension())

	return s.export(ctx, name, path, func() ([]byte, error) {
		return s.renderer.RenderSlip(detail)
	})
}

// ExportReceipt renders the receipt of a settled payment
func (s *slipServiceImpl) ExportReceipt(ctx context.Context, paymentID int64) (*ExportedDocument, error) {
	receipt, err := s.repos.Receipts.GetByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("get payment receipt: %w", err)
	}
	if receipt == nil {
		return nil, apperr.NewNotFound(entity.ResourcePaymentReceipt, paymentID)
	}

	req, err := s.repos.Payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("get payment request: %w", err)
	}
	if req == nil {
		return nil, apperr.NewIntegrity(entity.ResourcePaymentReceipt, receipt.ID, "receipt has no payment request")
	}

	doc := &port.ReceiptDocument{Receipt: receipt, Request: req}
	if vendor, err := s.repos.Vendors.GetByID(ctx, receipt.VendorID); err == nil && vendor != nil {
		doc.VendorName = vendor.Name
	}
	if org, err := s.repos.Organizations.GetByID(ctx, receipt.OrganizationID); err == nil && org != nil {
		doc.OrganizationName = org.Name
	}

	name := fmt.Sprintf("receipt_%s%s", utils.SanitizeFileName(receipt.BankReference), s.renderer.Extension())
	path := fmt.Sprintf("receipts/%d/receipt_%d%s", receipt.OrganizationID, receipt.ID, s.renderer.Extension())

	return s.export(ctx, name, path, func() ([]byte, error) {
		return s.renderer.RenderReceipt(doc)
	})
}

func (s *slipServiceImpl) export(ctx context.Context, name, path string, render func() ([]byte, error)) (*ExportedDocument, error) {
	if s.storage.Exists(ctx, path) {
		content, err := s.storage.Read(ctx, path)
		if err == nil {
			return &ExportedDocument{FileName: name, Path: path, Content: content}, nil
		}
		s.logger.Error("Failed to read stored document, rendering again", "path", path, "error", err)
	}

	content, err := render()
	if err != nil {
		return nil, fmt.Errorf("render document: %w", err)
	}

	// the rendered bytes are still returned when storing the copy fails
	if err := s.storage.Save(ctx, path, content); err != nil {
		s.logger.Error("Failed to store exported document", "path", path, "error", err)
	} else {
		s.logger.Info("Document exported", "path", s.storage.GetFullPath(path), "size", len(content))
	}
	return &ExportedDocument{FileName: name, Path: path, Content: content}, nil
}
