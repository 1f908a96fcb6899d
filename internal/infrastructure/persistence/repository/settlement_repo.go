package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/paydesk/settlement-engine/internal/application/port"
	"github.com/paydesk/settlement-engine/internal/domain/apperr"
	"github.com/paydesk/settlement-engine/internal/domain/entity"
	"github.com/paydesk/settlement-engine/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// TransactionRepository implements port.TransactionRepository
type TransactionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTransactionRepository creates a new payment transaction repository
func NewTransactionRepository(db *sql.DB, logger *zap.Logger) port.TransactionRepository {
	return &TransactionRepository{db: db, logger: logger}
}

// Create records a ledger movement. Bank references are unique.
func (r *TransactionRepository) Create(ctx context.Context, tx *entity.PaymentTransaction) error {
	if tx.ExecutedAt.IsZero() {
		tx.ExecutedAt = time.Now().UTC()
	}

	result, err := r.getExecutor(ctx).ExecContext(ctx, `
		INSERT INTO payment_transactions (
			related_type, related_id, amount, status, bank_reference,
			processed_by, organization_id, executed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, tx.RelatedType, tx.RelatedID, tx.Amount.String(), tx.Status, tx.BankReference,
		tx.ProcessedBy, tx.OrganizationID, tx.ExecutedAt)
	if err != nil {
		if sqlite.IsUniqueViolation(err) {
			return apperr.NewIntegrity(entity.ResourcePaymentTransaction, tx.RelatedID,
				fmt.Sprintf("bank reference %s already used", tx.BankReference))
		}
		r.logger.Error("Failed to create payment transaction", zap.Int64("related_id", tx.RelatedID), zap.Error(err))
		return fmt.Errorf("failed to create payment transaction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	tx.ID = id
	return nil
}

// ListByOrganization returns an organization's ledger movements, newest first
func (r *TransactionRepository) ListByOrganization(ctx context.Context, orgID int64) ([]*entity.PaymentTransaction, error) {
	rows, err := r.getExecutor(ctx).QueryContext(ctx, `
		SELECT id, related_type, related_id, amount, status, bank_reference,
			processed_by, organization_id, executed_at
		FROM payment_transactions
		WHERE organization_id = ?
		ORDER BY executed_at DESC, id DESC
	`, orgID)
	if err != nil {
		r.logger.Error("Failed to list payment transactions", zap.Int64("organization_id", orgID), zap.Error(err))
		return nil, fmt.Errorf("failed to list payment transactions: %w", err)
	}
	defer rows.Close()

	var txs []*entity.PaymentTransaction
	for rows.Next() {
		var t entity.PaymentTransaction
		if err := rows.Scan(&t.ID, &t.RelatedType, &t.RelatedID, &t.Amount, &t.Status, &t.BankReference,
			&t.ProcessedBy, &t.OrganizationID, &t.ExecutedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment transaction: %w", err)
		}
		txs = append(txs, &t)
	}
	return txs, rows.Err()
}

func (r *TransactionRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.Conn(ctx, r.db)
}

// ReceiptRepository implements port.ReceiptRepository
type ReceiptRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewReceiptRepository creates a new payment receipt repository
func NewReceiptRepository(db *sql.DB, logger *zap.Logger) port.ReceiptRepository {
	return &ReceiptRepository{db: db, logger: logger}
}

const receiptColumns = `id, payment_id, amount, bank_reference, status, vendor_id, organization_id, created_at`

func scanReceipt(s scanner) (*entity.PaymentReceipt, error) {
	var rc entity.PaymentReceipt
	if err := s.Scan(&rc.ID, &rc.PaymentID, &rc.Amount, &rc.BankReference, &rc.Status,
		&rc.VendorID, &rc.OrganizationID, &rc.CreatedAt); err != nil {
		return nil, err
	}
	return &rc, nil
}

// Create issues a receipt. A second receipt for the same payment is a conflict.
func (r *ReceiptRepository) Create(ctx context.Context, receipt *entity.PaymentReceipt) error {
	if receipt.CreatedAt.IsZero() {
		receipt.CreatedAt = time.Now().UTC()
	}

	result, err := r.getExecutor(ctx).ExecContext(ctx, `
		INSERT INTO payment_receipts (
			payment_id, amount, bank_reference, status, vendor_id, organization_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`, receipt.PaymentID, receipt.Amount.String(), receipt.BankReference, receipt.Status,
		receipt.VendorID, receipt.OrganizationID, receipt.CreatedAt)
	if err != nil {
		if sqlite.IsUniqueViolation(err) {
			return apperr.NewConflict(entity.ResourcePaymentReceipt, receipt.PaymentID, "issued")
		}
		r.logger.Error("Failed to create payment receipt", zap.Int64("payment_id", receipt.PaymentID), zap.Error(err))
		return fmt.Errorf("failed to create payment receipt: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	receipt.ID = id
	return nil
}

// GetByPaymentID returns the receipt of a payment, or nil
func (r *ReceiptRepository) GetByPaymentID(ctx context.Context, paymentID int64) (*entity.PaymentReceipt, error) {
	row := r.getExecutor(ctx).QueryRowContext(ctx,
		`SELECT `+receiptColumns+` FROM payment_receipts WHERE payment_id = ?`, paymentID)

	rc, err := scanReceipt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get payment receipt", zap.Int64("payment_id", paymentID), zap.Error(err))
		return nil, fmt.Errorf("failed to get payment receipt: %w", err)
	}
	return rc, nil
}

// ListByOrganization returns an organization's receipts, newest first
func (r *ReceiptRepository) ListByOrganization(ctx context.Context, orgID int64) ([]*entity.PaymentReceipt, error) {
	rows, err := r.getExecutor(ctx).QueryContext(ctx,
		`SELECT `+receiptColumns+` FROM payment_receipts WHERE organization_id = ? ORDER BY created_at DESC, id DESC`, orgID)
	if err != nil {
		r.logger.Error("Failed to list payment receipts", zap.Int64("organization_id", orgID), zap.Error(err))
		return nil, fmt.Errorf("failed to list payment receipts: %w", err)
	}
	defer rows.Close()

	var receipts []*entity.PaymentReceipt
	for rows.Next() {
		rc, err := scanReceipt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment receipt: %w", err)
		}
		receipts = append(receipts, rc)
	}
	return receipts, rows.Err()
}

func (r *ReceiptRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.Conn(ctx, r.db)
}

var (
	_ port.TransactionRepository = (*TransactionRepository)(nil)
	_ port.ReceiptRepository     = (*ReceiptRepository)(nil)
)
