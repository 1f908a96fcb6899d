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

// DisbursalRepository implements port.DisbursalRepository
type DisbursalRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDisbursalRepository creates a new salary disbursal repository
func NewDisbursalRepository(db *sql.DB, logger *zap.Logger) port.DisbursalRepository {
	return &DisbursalRepository{db: db, logger: logger}
}

const disbursalColumns = `
	id, organization_id, period, status, total_amount, remarks,
	created_by, created_at, processed_at
`

func scanDisbursal(s scanner) (*entity.SalaryDisbursalRequest, error) {
	var d entity.SalaryDisbursalRequest
	var processedAt sql.NullTime
	if err := s.Scan(&d.ID, &d.OrganizationID, &d.Period, &d.Status, &d.TotalAmount, &d.Remarks,
		&d.CreatedBy, &d.CreatedAt, &processedAt); err != nil {
		return nil, err
	}
	d.ProcessedAt = nullTimePtr(processedAt)
	return &d, nil
}

// Create inserts the batch header. Lines are written separately.
// A second live batch for the same organization and period is rejected by
// the partial unique index and surfaces as a DuplicatePayrollError.
func (r *DisbursalRepository) Create(ctx context.Context, req *entity.SalaryDisbursalRequest) error {
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}

	result, err := r.getExecutor(ctx).ExecContext(ctx, `
		INSERT INTO salary_disbursal_requests (
			organization_id, period, status, total_amount, remarks, created_by, created_at, processed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, req.OrganizationID, req.Period, req.Status, req.TotalAmount.String(), req.Remarks,
		req.CreatedBy, req.CreatedAt, req.ProcessedAt)
	if err != nil {
		if sqlite.IsUniqueViolation(err) {
			return apperr.NewDuplicatePayroll(req.OrganizationID, req.Period, "", 0)
		}
		r.logger.Error("Failed to create salary disbursal", zap.Int64("organization_id", req.OrganizationID), zap.Error(err))
		return fmt.Errorf("failed to create salary disbursal: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	req.ID = id
	return nil
}

// GetByID retrieves a batch header by ID
func (r *DisbursalRepository) GetByID(ctx context.Context, id int64) (*entity.SalaryDisbursalRequest, error) {
	row := r.getExecutor(ctx).QueryRowContext(ctx,
		`SELECT `+disbursalColumns+` FROM salary_disbursal_requests WHERE id = ?`, id)

	d, err := scanDisbursal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get salary disbursal", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get salary disbursal: %w", err)
	}
	return d, nil
}

// FindActiveByPeriod returns the PENDING or APPROVED batch for orgID and period
func (r *DisbursalRepository) FindActiveByPeriod(ctx context.Context, orgID int64, period string) (*entity.SalaryDisbursalRequest, error) {
	row := r.getExecutor(ctx).QueryRowContext(ctx, `
		SELECT `+disbursalColumns+`
		FROM salary_disbursal_requests
		WHERE organization_id = ? AND period = ? AND status IN (?, ?)
		ORDER BY id ASC
		LIMIT 1
	`, orgID, period, entity.StatusPending, entity.StatusApproved)

	d, err := scanDisbursal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to find salary disbursal by period",
			zap.Int64("organization_id", orgID), zap.String("period", period), zap.Error(err))
		return nil, fmt.Errorf("failed to find salary disbursal: %w", err)
	}
	return d, nil
}

// ListByStatus returns batches in status, oldest first
func (r *DisbursalRepository) ListByStatus(ctx context.Context, status string) ([]*entity.SalaryDisbursalRequest, error) {
	return r.list(ctx, `SELECT `+disbursalColumns+` FROM salary_disbursal_requests WHERE status = ? ORDER BY created_at ASC, id ASC`, status)
}

// ListByOrganization returns an organization's batches, newest first
func (r *DisbursalRepository) ListByOrganization(ctx context.Context, orgID int64) ([]*entity.SalaryDisbursalRequest, error) {
	return r.list(ctx, `SELECT `+disbursalColumns+` FROM salary_disbursal_requests WHERE organization_id = ? ORDER BY created_at DESC, id DESC`, orgID)
}

func (r *DisbursalRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.SalaryDisbursalRequest, error) {
	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list salary disbursals", zap.Error(err))
		return nil, fmt.Errorf("failed to list salary disbursals: %w", err)
	}
	defer rows.Close()

	var list []*entity.SalaryDisbursalRequest
	for rows.Next() {
		d, err := scanDisbursal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan salary disbursal: %w", err)
		}
		list = append(list, d)
	}
	return list, rows.Err()
}

// Decide flips a PENDING batch to status
func (r *DisbursalRepository) Decide(ctx context.Context, id int64, status string, at time.Time) (bool, error) {
	result, err := r.getExecutor(ctx).ExecContext(ctx, `
		UPDATE salary_disbursal_requests
		SET status = ?, processed_at = ?
		WHERE id = ? AND status = ?
	`, status, at, id, entity.StatusPending)
	if err != nil {
		r.logger.Error("Failed to decide salary disbursal", zap.Int64("id", id), zap.String("status", status), zap.Error(err))
		return false, fmt.Errorf("failed to update salary disbursal status: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

func (r *DisbursalRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.Conn(ctx, r.db)
}

// DisbursalLineRepository implements port.DisbursalLineRepository
type DisbursalLineRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDisbursalLineRepository creates a new disbursal line repository
func NewDisbursalLineRepository(db *sql.DB, logger *zap.Logger) port.DisbursalLineRepository {
	return &DisbursalLineRepository{db: db, logger: logger}
}

const lineColumns = `id, disbursal_id, payee_type, payee_id, gross_salary, deductions, net_amount, status`

func scanLine(s scanner) (*entity.SalaryDisbursalLine, error) {
	var l entity.SalaryDisbursalLine
	if err := s.Scan(&l.ID, &l.DisbursalID, &l.PayeeType, &l.PayeeID,
		&l.GrossSalary, &l.Deductions, &l.NetAmount, &l.Status); err != nil {
		return nil, err
	}
	return &l, nil
}

// Create inserts a line snapshot
func (r *DisbursalLineRepository) Create(ctx context.Context, line *entity.SalaryDisbursalLine) error {
	result, err := r.getExecutor(ctx).ExecContext(ctx, `
		INSERT INTO salary_disbursal_lines (
			disbursal_id, payee_type, payee_id, gross_salary, deductions, net_amount, status
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`, line.DisbursalID, line.PayeeType, line.PayeeID,
		line.GrossSalary.String(), line.Deductions.String(), line.NetAmount.String(), line.Status)
	if err != nil {
		r.logger.Error("Failed to create disbursal line", zap.Int64("disbursal_id", line.DisbursalID), zap.Error(err))
		return fmt.Errorf("failed to create disbursal line: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	line.ID = id
	return nil
}

// GetByID retrieves a line by ID
func (r *DisbursalLineRepository) GetByID(ctx context.Context, id int64) (*entity.SalaryDisbursalLine, error) {
	row := r.getExecutor(ctx).QueryRowContext(ctx,
		`SELECT `+lineColumns+` FROM salary_disbursal_lines WHERE id = ?`, id)

	l, err := scanLine(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get disbursal line", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get disbursal line: %w", err)
	}
	return l, nil
}

// ListByDisbursalID returns the lines of a batch in insertion order
func (r *DisbursalLineRepository) ListByDisbursalID(ctx context.Context, disbursalID int64) ([]*entity.SalaryDisbursalLine, error) {
	rows, err := r.getExecutor(ctx).QueryContext(ctx,
		`SELECT `+lineColumns+` FROM salary_disbursal_lines WHERE disbursal_id = ? ORDER BY id ASC`, disbursalID)
	if err != nil {
		r.logger.Error("Failed to list disbursal lines", zap.Int64("disbursal_id", disbursalID), zap.Error(err))
		return nil, fmt.Errorf("failed to list disbursal lines: %w", err)
	}
	defer rows.Close()

	var lines []*entity.SalaryDisbursalLine
	for rows.Next() {
		l, err := scanLine(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan disbursal line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// UpdateStatus sets the status of a line
func (r *DisbursalLineRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	result, err := r.getExecutor(ctx).ExecContext(ctx,
		`UPDATE salary_disbursal_lines SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		r.logger.Error("Failed to update disbursal line status", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to update disbursal line status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperr.NewNotFound(entity.ResourceSalaryDisbursalLn, id)
	}
	return nil
}

func (r *DisbursalLineRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.Conn(ctx, r.db)
}

// DisbursalHistoryRepository implements port.DisbursalHistoryRepository
type DisbursalHistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDisbursalHistoryRepository creates a new disbursal history repository
func NewDisbursalHistoryRepository(db *sql.DB, logger *zap.Logger) port.DisbursalHistoryRepository {
	return &DisbursalHistoryRepository{db: db, logger: logger}
}

// Create appends a decision row
func (r *DisbursalHistoryRepository) Create(ctx context.Context, h *entity.SalaryDisbursalApprovalHistory) error {
	if h.Timestamp.IsZero() {
		h.Timestamp = time.Now().UTC()
	}

	result, err := r.getExecutor(ctx).ExecContext(ctx, `
		INSERT INTO salary_disbursal_approval_history (disbursal_id, action, comment, acted_by, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`, h.DisbursalID, h.Action, h.Comment, h.ActedBy, h.Timestamp)
	if err != nil {
		r.logger.Error("Failed to create disbursal history", zap.Int64("disbursal_id", h.DisbursalID), zap.Error(err))
		return fmt.Errorf("failed to create disbursal history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	h.ID = id
	return nil
}

// ListByDisbursalID returns the decision log of a batch
func (r *DisbursalHistoryRepository) ListByDisbursalID(ctx context.Context, disbursalID int64) ([]*entity.SalaryDisbursalApprovalHistory, error) {
	rows, err := r.getExecutor(ctx).QueryContext(ctx, `
		SELECT id, disbursal_id, action, comment, acted_by, timestamp
		FROM salary_disbursal_approval_history
		WHERE disbursal_id = ?
		ORDER BY timestamp ASC, id ASC
	`, disbursalID)
	if err != nil {
		r.logger.Error("Failed to list disbursal history", zap.Int64("disbursal_id", disbursalID), zap.Error(err))
		return nil, fmt.Errorf("failed to list disbursal history: %w", err)
	}
	defer rows.Close()

	var history []*entity.SalaryDisbursalApprovalHistory
	for rows.Next() {
		var h entity.SalaryDisbursalApprovalHistory
		if err := rows.Scan(&h.ID, &h.DisbursalID, &h.Action, &h.Comment, &h.ActedBy, &h.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan disbursal history: %w", err)
		}
		history = append(history, &h)
	}
	return history, rows.Err()
}

func (r *DisbursalHistoryRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.Conn(ctx, r.db)
}

var (
	_ port.DisbursalRepository        = (*DisbursalRepository)(nil)
	_ port.DisbursalLineRepository    = (*DisbursalLineRepository)(nil)
	_ port.DisbursalHistoryRepository = (*DisbursalHistoryRepository)(nil)
)
