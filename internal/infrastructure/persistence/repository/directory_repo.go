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

// UserRepository implements port.UserRepository
type UserRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB, logger *zap.Logger) port.UserRepository {
	return &UserRepository{db: db, logger: logger}
}

const userColumns = `id, organization_id, email, full_name, role, lark_open_id, created_at`

func scanUser(s scanner) (*entity.User, error) {
	var u entity.User
	var orgID sql.NullInt64
	if err := s.Scan(&u.ID, &orgID, &u.Email, &u.FullName, &u.Role, &u.LarkOpenID, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.OrganizationID = nullInt64Ptr(orgID)
	return &u, nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	row := r.getExecutor(ctx).QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get user", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// ListByOrganization returns every user attached to the organization, oldest first
func (r *UserRepository) ListByOrganization(ctx context.Context, orgID int64) ([]*entity.User, error) {
	return r.list(ctx, `SELECT `+userColumns+` FROM users WHERE organization_id = ? ORDER BY id ASC`, orgID)
}

// ListByRole returns every user holding role, oldest first
func (r *UserRepository) ListByRole(ctx context.Context, role string) ([]*entity.User, error) {
	return r.list(ctx, `SELECT `+userColumns+` FROM users WHERE role = ? ORDER BY id ASC`, role)
}

func (r *UserRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.User, error) {
	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list users", zap.Error(err))
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*entity.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.Conn(ctx, r.db)
}

// PayeeRepository implements port.PayeeRepository over the employees and
// org_admins tables
type PayeeRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPayeeRepository creates a new payee repository
func NewPayeeRepository(db *sql.DB, logger *zap.Logger) port.PayeeRepository {
	return &PayeeRepository{db: db, logger: logger}
}

// GetByID retrieves an employee or org admin. Unknown payee types return nil.
func (r *PayeeRepository) GetByID(ctx context.Context, payeeType string, id int64) (*entity.Payee, error) {
	var table string
	switch payeeType {
	case entity.PayeeTypeEmployee:
		table = "employees"
	case entity.PayeeTypeOrgAdmin:
		table = "org_admins"
	default:
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT id, organization_id, name, email, department, user_id,
			salary_grade_id, bank_account_no
		FROM %s
		WHERE id = ?
	`, table)

	p := entity.Payee{Type: payeeType}
	var userID, gradeID sql.NullInt64
	err := r.getExecutor(ctx).QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.OrganizationID, &p.Name, &p.Email, &p.Department, &userID,
		&gradeID, &p.BankAccountNo,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get payee", zap.String("payee_type", payeeType), zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get payee: %w", err)
	}

	p.UserID = nullInt64Ptr(userID)
	p.SalaryGradeID = nullInt64Ptr(gradeID)
	return &p, nil
}

func (r *PayeeRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.Conn(ctx, r.db)
}

// SalaryGradeRepository implements port.SalaryGradeRepository
type SalaryGradeRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSalaryGradeRepository creates a new salary grade repository
func NewSalaryGradeRepository(db *sql.DB, logger *zap.Logger) port.SalaryGradeRepository {
	return &SalaryGradeRepository{db: db, logger: logger}
}

// GetByID retrieves a salary grade by ID
func (r *SalaryGradeRepository) GetByID(ctx context.Context, id int64) (*entity.SalaryGrade, error) {
	query := `
		SELECT id, organization_id, grade_code, basic_salary, hra, da, allowances, pf
		FROM salary_grades
		WHERE id = ?
	`

	var g entity.SalaryGrade
	var basic, hra, da, allowances, pf decimal.NullDecimal
	err := r.getExecutor(ctx).QueryRowContext(ctx, query, id).Scan(
		&g.ID, &g.OrganizationID, &g.GradeCode, &basic, &hra, &da, &allowances, &pf,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get salary grade", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get salary grade: %w", err)
	}

	g.BasicSalary = nullDecimalPtr(basic)
	g.HRA = nullDecimalPtr(hra)
	g.DA = nullDecimalPtr(da)
	g.Allowances = nullDecimalPtr(allowances)
	g.PF = nullDecimalPtr(pf)
	return &g, nil
}

func (r *SalaryGradeRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.Conn(ctx, r.db)
}

var (
	_ port.UserRepository        = (*UserRepository)(nil)
	_ port.PayeeRepository       = (*PayeeRepository)(nil)
	_ port.SalaryGradeRepository = (*SalaryGradeRepository)(nil)
)
