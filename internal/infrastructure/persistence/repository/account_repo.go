package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/paydesk/settlement-engine/internal/application/port"
	"github.com/paydesk/settlement-engine/internal/domain/entity"
	"github.com/paydesk/settlement-engine/internal/infrastructure/persistence/sqlite"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrganizationRepository implements port.OrganizationRepository
type OrganizationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewOrganizationRepository creates a new organization repository
func NewOrganizationRepository(db *sql.DB, logger *zap.Logger) port.OrganizationRepository {
	return &OrganizationRepository{db: db, logger: logger}
}

// GetByID retrieves an organization by ID
func (r *OrganizationRepository) GetByID(ctx context.Context, id int64) (*entity.Organization, error) {
	query := `SELECT id, name, balance, created_at, updated_at FROM organizations WHERE id = ?`

	var org entity.Organization
	err := r.getExecutor(ctx).QueryRowContext(ctx, query, id).Scan(
		&org.ID, &org.Name, &org.Balance, &org.CreatedAt, &org.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get organization", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return &org, nil
}

// Debit subtracts amount when the balance covers it
func (r *OrganizationRepository) Debit(ctx context.Context, id int64, amount decimal.Decimal) (bool, error) {
	ok, err := adjustBalance(ctx, r.getExecutor(ctx), "organizations", entity.ResourceOrganization, id, amount.Neg())
	if err != nil {
		r.logger.Error("Failed to debit organization", zap.Int64("id", id), zap.String("amount", amount.String()), zap.Error(err))
		return false, err
	}
	return ok, nil
}

// Credit adds amount to the organization balance
func (r *OrganizationRepository) Credit(ctx context.Context, id int64, amount decimal.Decimal) error {
	if _, err := adjustBalance(ctx, r.getExecutor(ctx), "organizations", entity.ResourceOrganization, id, amount); err != nil {
		r.logger.Error("Failed to credit organization", zap.Int64("id", id), zap.String("amount", amount.String()), zap.Error(err))
		return err
	}
	return nil
}

func (r *OrganizationRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.Conn(ctx, r.db)
}

// VendorRepository implements port.VendorRepository
type VendorRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewVendorRepository creates a new vendor repository
func NewVendorRepository(db *sql.DB, logger *zap.Logger) port.VendorRepository {
	return &VendorRepository{db: db, logger: logger}
}

// GetByID retrieves a vendor by ID
func (r *VendorRepository) GetByID(ctx context.Context, id int64) (*entity.Vendor, error) {
	query := `
		SELECT id, organization_id, name, email, user_id, bank_account_no,
			ifsc_code, balance, created_at, updated_at
		FROM vendors
		WHERE id = ?
	`

	var v entity.Vendor
	var userID sql.NullInt64
	err := r.getExecutor(ctx).QueryRowContext(ctx, query, id).Scan(
		&v.ID, &v.OrganizationID, &v.Name, &v.Email, &userID, &v.BankAccountNo,
		&v.IFSCCode, &v.Balance, &v.CreatedAt, &v.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get vendor", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get vendor: %w", err)
	}

	v.UserID = nullInt64Ptr(userID)
	return &v, nil
}

// Credit adds amount to the vendor balance
func (r *VendorRepository) Credit(ctx context.Context, id int64, amount decimal.Decimal) error {
	if _, err := adjustBalance(ctx, r.getExecutor(ctx), "vendors", entity.ResourceVendor, id, amount); err != nil {
		r.logger.Error("Failed to credit vendor", zap.Int64("id", id), zap.String("amount", amount.String()), zap.Error(err))
		return err
	}
	return nil
}

func (r *VendorRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.Conn(ctx, r.db)
}

var (
	_ port.OrganizationRepository = (*OrganizationRepository)(nil)
	_ port.VendorRepository       = (*VendorRepository)(nil)
)
