package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/paydesk/settlement-engine/internal/application/port"
	"github.com/paydesk/settlement-engine/internal/domain/entity"
	"github.com/paydesk/settlement-engine/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// PaymentRequestRepository implements port.PaymentRequestRepository
type PaymentRequestRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPaymentRequestRepository creates a new payment request repository
func NewPaymentRequestRepository(db *sql.DB, logger *zap.Logger) port.PaymentRequestRepository {
	return &PaymentRequestRepository{db: db, logger: logger}
}

const paymentRequestColumns = `
	id, organization_id, vendor_id, amount, invoice_reference, status,
	requested_by, approved_by, created_at, processed_at
`

func scanPaymentRequest(s scanner) (*entity.PaymentRequest, error) {
	var req entity.PaymentRequest
	var approvedBy sql.NullInt64
	var processedAt sql.NullTime

	if err := s.Scan(
		&req.ID, &req.OrganizationID, &req.VendorID, &req.Amount, &req.InvoiceReference, &req.Status,
		&req.RequestedBy, &approvedBy, &req.CreatedAt, &processedAt,
	); err != nil {
		return nil, err
	}

	req.ApprovedBy = nullInt64Ptr(approvedBy)
	req.ProcessedAt = nullTimePtr(processedAt)
	return &req, nil
}

// Create inserts a new payment request and sets its ID
func (r *PaymentRequestRepository) Create(ctx context.Context, req *entity.PaymentRequest) error {
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO payment_requests (
			organization_id, vendor_id, amount, invoice_reference, status,
			requested_by, approved_by, created_at, processed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		req.OrganizationID, req.VendorID, req.Amount.String(), req.InvoiceReference, req.Status,
		req.RequestedBy, int64PtrArg(req.ApprovedBy), req.CreatedAt, req.ProcessedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create payment request", zap.Error(err))
		return fmt.Errorf("failed to create payment request: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	req.ID = id
	return nil
}

// GetByID retrieves a payment request by ID
func (r *PaymentRequestRepository) GetByID(ctx context.Context, id int64) (*entity.PaymentRequest, error) {
	row := r.getExecutor(ctx).QueryRowContext(ctx,
		`SELECT `+paymentRequestColumns+` FROM payment_requests WHERE id = ?`, id)

	req, err := scanPaymentRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get payment request", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get payment request: %w", err)
	}
	return req, nil
}

// List returns all payment requests, newest first
func (r *PaymentRequestRepository) List(ctx context.Context) ([]*entity.PaymentRequest, error) {
	return r.list(ctx, `SELECT `+paymentRequestColumns+` FROM payment_requests ORDER BY created_at DESC, id DESC`)
}

// ListByStatus returns payment requests in status, oldest first
func (r *PaymentRequestRepository) ListByStatus(ctx context.Context, status string) ([]*entity.PaymentRequest, error) {
	return r.list(ctx, `SELECT `+paymentRequestColumns+` FROM payment_requests WHERE status = ? ORDER BY created_at ASC, id ASC`, status)
}

// ListByOrganization returns an organization's payment requests, newest first
func (r *PaymentRequestRepository) ListByOrganization(ctx context.Context, orgID int64) ([]*entity.PaymentRequest, error) {
	return r.list(ctx, `SELECT `+paymentRequestColumns+` FROM payment_requests WHERE organization_id = ? ORDER BY created_at DESC, id DESC`, orgID)
}

func (r *PaymentRequestRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.PaymentRequest, error) {
	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list payment requests", zap.Error(err))
		return nil, fmt.Errorf("failed to list payment requests: %w", err)
	}
	defer rows.Close()

	var requests []*entity.PaymentRequest
	for rows.Next() {
		req, err := scanPaymentRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment request: %w", err)
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// Decide flips a PENDING request to status, recording who decided and when
func (r *PaymentRequestRepository) Decide(ctx context.Context, id int64, status string, decidedBy int64, at time.Time) (bool, error) {
	query := `
		UPDATE payment_requests
		SET status = ?, approved_by = ?, processed_at = ?
		WHERE id = ? AND status = ?
	`
	result, err := r.getExecutor(ctx).ExecContext(ctx, query, status, decidedBy, at, id, entity.StatusPending)
	if err != nil {
		r.logger.Error("Failed to decide payment request", zap.Int64("id", id), zap.String("status", status), zap.Error(err))
		return false, fmt.Errorf("failed to update payment request status: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

func (r *PaymentRequestRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.Conn(ctx, r.db)
}

// PaymentHistoryRepository implements port.PaymentHistoryRepository
type PaymentHistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPaymentHistoryRepository creates a new payment history repository
func NewPaymentHistoryRepository(db *sql.DB, logger *zap.Logger) port.PaymentHistoryRepository {
	return &PaymentHistoryRepository{db: db, logger: logger}
}

// Create appends a decision row
func (r *PaymentHistoryRepository) Create(ctx context.Context, h *entity.PaymentApprovalHistory) error {
	if h.Timestamp.IsZero() {
		h.Timestamp = time.Now().UTC()
	}

	result, err := r.getExecutor(ctx).ExecContext(ctx, `
		INSERT INTO payment_approval_history (payment_id, action, comment, acted_by, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`, h.PaymentID, h.Action, h.Comment, h.ActedBy, h.Timestamp)
	if err != nil {
		r.logger.Error("Failed to create payment history", zap.Int64("payment_id", h.PaymentID), zap.Error(err))
		return fmt.Errorf("failed to create payment history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	h.ID = id
	return nil
}

// ListByPaymentID returns the decision log of a payment request
func (r *PaymentHistoryRepository) ListByPaymentID(ctx context.Context, paymentID int64) ([]*entity.PaymentApprovalHistory, error) {
	rows, err := r.getExecutor(ctx).QueryContext(ctx, `
		SELECT id, payment_id, action, comment, acted_by, timestamp
		FROM payment_approval_history
		WHERE payment_id = ?
		ORDER BY timestamp ASC, id ASC
	`, paymentID)
	if err != nil {
		r.logger.Error("Failed to list payment history", zap.Int64("payment_id", paymentID), zap.Error(err))
		return nil, fmt.Errorf("failed to list payment history: %w", err)
	}
	defer rows.Close()

	var history []*entity.PaymentApprovalHistory
	for rows.Next() {
		var h entity.PaymentApprovalHistory
		if err := rows.Scan(&h.ID, &h.PaymentID, &h.Action, &h.Comment, &h.ActedBy, &h.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan payment history: %w", err)
		}
		history = append(history, &h)
	}
	return history, rows.Err()
}

func (r *PaymentHistoryRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.Conn(ctx, r.db)
}

var (
	_ port.PaymentRequestRepository = (*PaymentRequestRepository)(nil)
	_ port.PaymentHistoryRepository = (*PaymentHistoryRepository)(nil)
)
