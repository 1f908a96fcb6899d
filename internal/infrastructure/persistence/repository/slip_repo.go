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

// SalarySlipRepository implements port.SalarySlipRepository
type SalarySlipRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSalarySlipRepository creates a new salary slip repository
func NewSalarySlipRepository(db *sql.DB, logger *zap.Logger) port.SalarySlipRepository {
	return &SalarySlipRepository{db: db, logger: logger}
}

const slipColumns = `id, disbursal_id, line_id, payee_type, payee_id, period, net_amount, generated_at`

func scanSlip(s scanner) (*entity.SalarySlip, error) {
	var slip entity.SalarySlip
	if err := s.Scan(&slip.ID, &slip.DisbursalID, &slip.LineID, &slip.PayeeType, &slip.PayeeID,
		&slip.Period, &slip.NetAmount, &slip.GeneratedAt); err != nil {
		return nil, err
	}
	return &slip, nil
}

// Create issues a slip. Each line gets at most one slip.
func (r *SalarySlipRepository) Create(ctx context.Context, slip *entity.SalarySlip) error {
	if slip.GeneratedAt.IsZero() {
		slip.GeneratedAt = time.Now().UTC()
	}

	result, err := r.getExecutor(ctx).ExecContext(ctx, `
		INSERT INTO salary_slips (
			disbursal_id, line_id, payee_type, payee_id, period, net_amount, generated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`, slip.DisbursalID, slip.LineID, slip.PayeeType, slip.PayeeID, slip.Period,
		slip.NetAmount.String(), slip.GeneratedAt)
	if err != nil {
		if sqlite.IsUniqueViolation(err) {
			return apperr.NewConflict(entity.ResourceSalarySlip, slip.LineID, "issued")
		}
		r.logger.Error("Failed to create salary slip", zap.Int64("line_id", slip.LineID), zap.Error(err))
		return fmt.Errorf("failed to create salary slip: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	slip.ID = id
	return nil
}

// GetByID retrieves a slip by ID
func (r *SalarySlipRepository) GetByID(ctx context.Context, id int64) (*entity.SalarySlip, error) {
	row := r.getExecutor(ctx).QueryRowContext(ctx, `SELECT `+slipColumns+` FROM salary_slips WHERE id = ?`, id)

	slip, err := scanSlip(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get salary slip", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get salary slip: %w", err)
	}
	return slip, nil
}

// ListByPayee returns a payee's slips, newest first
func (r *SalarySlipRepository) ListByPayee(ctx context.Context, payeeType string, payeeID int64) ([]*entity.SalarySlip, error) {
	return r.list(ctx,
		`SELECT `+slipColumns+` FROM salary_slips WHERE payee_type = ? AND payee_id = ? ORDER BY generated_at DESC, id DESC`,
		payeeType, payeeID)
}

// ListByDisbursalID returns the slips issued for a batch
func (r *SalarySlipRepository) ListByDisbursalID(ctx context.Context, disbursalID int64) ([]*entity.SalarySlip, error) {
	return r.list(ctx, `SELECT `+slipColumns+` FROM salary_slips WHERE disbursal_id = ? ORDER BY id ASC`, disbursalID)
}

func (r *SalarySlipRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.SalarySlip, error) {
	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list salary slips", zap.Error(err))
		return nil, fmt.Errorf("failed to list salary slips: %w", err)
	}
	defer rows.Close()

	var slips []*entity.SalarySlip
	for rows.Next() {
		slip, err := scanSlip(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan salary slip: %w", err)
		}
		slips = append(slips, slip)
	}
	return slips, rows.Err()
}

func (r *SalarySlipRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.Conn(ctx, r.db)
}

var _ port.SalarySlipRepository = (*SalarySlipRepository)(nil)
