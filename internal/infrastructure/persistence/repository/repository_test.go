package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/paydesk/settlement-engine/internal/domain/apperr"
	"github.com/paydesk/settlement-engine/internal/domain/entity"
	"github.com/paydesk/settlement-engine/internal/infrastructure/persistence/sqlite"
	"github.com/paydesk/settlement-engine/internal/infrastructure/persistence/sqlitetest"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestOrganizationRepository_DebitAndCredit(t *testing.T) {
	ctx := context.Background()
	db := sqlitetest.Open(t)
	repo := NewOrganizationRepository(db, zap.NewNop())
	orgID := sqlitetest.Organization(t, db, "Acme", dec("50000"))

	t.Run("debit within balance", func(t *testing.T) {
		ok, err := repo.Debit(ctx, orgID, dec("25000"))
		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, sqlitetest.Balance(t, db, "organizations", orgID).Equal(dec("25000")))
	})

	t.Run("debit beyond balance leaves it untouched", func(t *testing.T) {
		ok, err := repo.Debit(ctx, orgID, dec("25000.01"))
		require.NoError(t, err)
		assert.False(t, ok)
		assert.True(t, sqlitetest.Balance(t, db, "organizations", orgID).Equal(dec("25000")))
	})

	t.Run("debit to exactly zero", func(t *testing.T) {
		ok, err := repo.Debit(ctx, orgID, dec("25000"))
		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, sqlitetest.Balance(t, db, "organizations", orgID).IsZero())
	})

	t.Run("credit", func(t *testing.T) {
		require.NoError(t, repo.Credit(ctx, orgID, dec("10.50")))
		org, err := repo.GetByID(ctx, orgID)
		require.NoError(t, err)
		assert.True(t, org.Balance.Equal(dec("10.5")))
	})

	t.Run("unknown organization", func(t *testing.T) {
		_, err := repo.Debit(ctx, 999, dec("1"))
		assert.True(t, errors.Is(err, apperr.ErrNotFound))

		org, err := repo.GetByID(ctx, 999)
		assert.NoError(t, err)
		assert.Nil(t, org)
	})
}

func TestOrganizationRepository_DebitGivesUpOnConcurrentChanges(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	for i := 0; i < maxBalanceAttempts; i++ {
		mock.ExpectQuery(`SELECT balance FROM organizations WHERE id = \?`).
			WithArgs(int64(1)).
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("100"))
		mock.ExpectExec(`UPDATE organizations SET balance = \?, updated_at = \? WHERE id = \? AND balance = \?`).
			WithArgs("60", sqlmock.AnyArg(), int64(1), "100").
			WillReturnResult(sqlmock.NewResult(0, 0))
	}

	repo := NewOrganizationRepository(mockDB, zap.NewNop())
	ok, err := repo.Debit(context.Background(), 1, dec("40"))

	assert.False(t, ok)
	assert.ErrorContains(t, err, "changed concurrently")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrganizationRepository_CorruptBalanceIsIntegrityError(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	mock.ExpectQuery(`SELECT balance FROM organizations`).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("not-a-number"))

	repo := NewOrganizationRepository(mockDB, zap.NewNop())
	_, err = repo.Debit(context.Background(), 1, dec("1"))

	assert.True(t, errors.Is(err, apperr.ErrIntegrity))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVendorRepository(t *testing.T) {
	ctx := context.Background()
	db := sqlitetest.Open(t)
	repo := NewVendorRepository(db, zap.NewNop())

	orgID := sqlitetest.Organization(t, db, "Acme", dec("0"))
	userID := sqlitetest.User(t, db, orgID, "vendor@acme.test", entity.RoleVendor)
	linked := sqlitetest.Vendor(t, db, orgID, "Linked", userID)
	unlinked := sqlitetest.Vendor(t, db, orgID, "Unlinked", 0)

	require.NoError(t, repo.Credit(ctx, linked, dec("100000")))

	v, err := repo.GetByID(ctx, linked)
	require.NoError(t, err)
	require.NotNil(t, v.UserID)
	assert.Equal(t, userID, *v.UserID)
	assert.True(t, v.Balance.Equal(dec("100000")))

	v, err = repo.GetByID(ctx, unlinked)
	require.NoError(t, err)
	assert.Nil(t, v.UserID)
}

func TestDirectoryRepositories(t *testing.T) {
	ctx := context.Background()
	db := sqlitetest.Open(t)
	logger := zap.NewNop()

	orgID := sqlitetest.Organization(t, db, "Acme", dec("0"))
	gradeID := sqlitetest.SalaryGrade(t, db, orgID, sqlitetest.Grade{Code: "G1", Basic: "8000", HRA: "2000", PF: "500"})
	userID := sqlitetest.User(t, db, orgID, "e1@acme.test", entity.RoleEmployee)
	empID := sqlitetest.Employee(t, db, orgID, "Emp One", userID, gradeID)
	adminID := sqlitetest.OrgAdmin(t, db, orgID, "Admin One", 0, 0)

	t.Run("grade with missing components", func(t *testing.T) {
		g, err := NewSalaryGradeRepository(db, logger).GetByID(ctx, gradeID)
		require.NoError(t, err)
		assert.Nil(t, g.DA)
		assert.Nil(t, g.Allowances)
		assert.True(t, g.Net().Equal(dec("9500")))
	})

	t.Run("payees by type", func(t *testing.T) {
		payees := NewPayeeRepository(db, logger)

		p, err := payees.GetByID(ctx, entity.PayeeTypeEmployee, empID)
		require.NoError(t, err)
		assert.Equal(t, "Emp One", p.Name)
		assert.Equal(t, entity.PayeeTypeEmployee, p.Type)
		require.NotNil(t, p.SalaryGradeID)
		assert.Equal(t, gradeID, *p.SalaryGradeID)

		p, err = payees.GetByID(ctx, entity.PayeeTypeOrgAdmin, adminID)
		require.NoError(t, err)
		assert.Nil(t, p.UserID)
		assert.Nil(t, p.SalaryGradeID)

		p, err = payees.GetByID(ctx, "CONTRACTOR", empID)
		assert.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("users by organization", func(t *testing.T) {
		sqlitetest.User(t, db, 0, "bank@bank.test", entity.RoleBankAdmin)
		users, err := NewUserRepository(db, logger).ListByOrganization(ctx, orgID)
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, "e1@acme.test", users[0].Email)

		bankers, err := NewUserRepository(db, logger).ListByRole(ctx, entity.RoleBankAdmin)
		require.NoError(t, err)
		require.Len(t, bankers, 1)
		assert.Nil(t, bankers[0].OrganizationID)
	})
}

func TestPaymentRequestRepository_DecideOnlyOnce(t *testing.T) {
	ctx := context.Background()
	db := sqlitetest.Open(t)
	repo := NewPaymentRequestRepository(db, zap.NewNop())

	orgID := sqlitetest.Organization(t, db, "Acme", dec("1000"))
	userID := sqlitetest.User(t, db, orgID, "admin@acme.test", entity.RoleOrgAdmin)
	vendorID := sqlitetest.Vendor(t, db, orgID, "Supplies", 0)

	req := &entity.PaymentRequest{
		OrganizationID:   orgID,
		VendorID:         vendorID,
		Amount:           dec("250.75"),
		InvoiceReference: "INV-1",
		Status:           entity.StatusPending,
		RequestedBy:      userID,
	}
	require.NoError(t, repo.Create(ctx, req))
	require.NotZero(t, req.ID)

	pending, err := repo.ListByStatus(ctx, entity.StatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	at := time.Now().UTC()
	ok, err := repo.Decide(ctx, req.ID, entity.StatusApproved, userID, at)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Decide(ctx, req.ID, entity.StatusRejected, userID, at)
	require.NoError(t, err)
	assert.False(t, ok, "second decision must not apply")

	got, err := repo.GetByID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusApproved, got.Status)
	assert.True(t, got.Amount.Equal(dec("250.75")))
	require.NotNil(t, got.ApprovedBy)
	require.NotNil(t, got.ProcessedAt)

	byOrg, err := repo.ListByOrganization(ctx, orgID)
	require.NoError(t, err)
	assert.Len(t, byOrg, 1)
}

func TestReceiptRepository_OnePerPayment(t *testing.T) {
	ctx := context.Background()
	db := sqlitetest.Open(t)
	logger := zap.NewNop()

	orgID := sqlitetest.Organization(t, db, "Acme", dec("1000"))
	userID := sqlitetest.User(t, db, orgID, "admin@acme.test", entity.RoleOrgAdmin)
	vendorID := sqlitetest.Vendor(t, db, orgID, "Supplies", 0)
	req := &entity.PaymentRequest{OrganizationID: orgID, VendorID: vendorID, Amount: dec("10"),
		InvoiceReference: "INV", Status: entity.StatusPending, RequestedBy: userID}
	require.NoError(t, NewPaymentRequestRepository(db, logger).Create(ctx, req))

	receipts := NewReceiptRepository(db, logger)
	receipt := &entity.PaymentReceipt{PaymentID: req.ID, Amount: dec("10"), BankReference: "BANK-AAAAAAAAAAAA",
		Status: entity.ReceiptStatusPaid, VendorID: vendorID, OrganizationID: orgID}
	require.NoError(t, receipts.Create(ctx, receipt))

	dup := *receipt
	dup.ID = 0
	err := receipts.Create(ctx, &dup)
	assert.True(t, errors.Is(err, apperr.ErrConflict))

	got, err := receipts.GetByPaymentID(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, "BANK-AAAAAAAAAAAA", got.BankReference)

	none, err := receipts.GetByPaymentID(ctx, req.ID+1)
	assert.NoError(t, err)
	assert.Nil(t, none)

	txs := NewTransactionRepository(db, logger)
	first := &entity.PaymentTransaction{RelatedType: entity.TransactionRelatedVendor, RelatedID: vendorID,
		Amount: dec("10"), Status: entity.TransactionStatusSuccess, BankReference: "BANK-AAAAAAAAAAAA",
		ProcessedBy: userID, OrganizationID: orgID}
	require.NoError(t, txs.Create(ctx, first))
	second := *first
	second.ID = 0
	assert.True(t, errors.Is(txs.Create(ctx, &second), apperr.ErrIntegrity))
}

func TestDisbursalRepository_ActivePeriodIsUnique(t *testing.T) {
	ctx := context.Background()
	db := sqlitetest.Open(t)
	repo := NewDisbursalRepository(db, zap.NewNop())
	orgID := sqlitetest.Organization(t, db, "Acme", dec("0"))

	first := &entity.SalaryDisbursalRequest{OrganizationID: orgID, Period: "2024-11",
		Status: entity.StatusPending, TotalAmount: dec("25000"), CreatedBy: 1}
	require.NoError(t, repo.Create(ctx, first))

	active, err := repo.FindActiveByPeriod(ctx, orgID, "2024-11")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, first.ID, active.ID)

	dup := &entity.SalaryDisbursalRequest{OrganizationID: orgID, Period: "2024-11",
		Status: entity.StatusPending, TotalAmount: dec("1"), CreatedBy: 1}
	assert.True(t, errors.Is(repo.Create(ctx, dup), apperr.ErrDuplicatePayroll))

	ok, err := repo.Decide(ctx, first.ID, entity.StatusRejected, time.Now().UTC())
	require.NoError(t, err)
	require.True(t, ok)

	active, err = repo.FindActiveByPeriod(ctx, orgID, "2024-11")
	require.NoError(t, err)
	assert.Nil(t, active, "rejected batches free the period")

	require.NoError(t, repo.Create(ctx, dup))
}

func TestDisbursalLineAndSlipRepositories(t *testing.T) {
	ctx := context.Background()
	db := sqlitetest.Open(t)
	logger := zap.NewNop()
	orgID := sqlitetest.Organization(t, db, "Acme", dec("0"))

	req := &entity.SalaryDisbursalRequest{OrganizationID: orgID, Period: "2024-11",
		Status: entity.StatusPending, TotalAmount: dec("8500"), CreatedBy: 1}
	require.NoError(t, NewDisbursalRepository(db, logger).Create(ctx, req))

	lines := NewDisbursalLineRepository(db, logger)
	line := &entity.SalaryDisbursalLine{DisbursalID: req.ID, PayeeType: entity.PayeeTypeEmployee, PayeeID: 3,
		GrossSalary: dec("9000"), Deductions: dec("500"), NetAmount: dec("8500"), Status: entity.LineStatusPending}
	require.NoError(t, lines.Create(ctx, line))
	require.NoError(t, lines.UpdateStatus(ctx, line.ID, entity.LineStatusPaid))
	assert.True(t, errors.Is(lines.UpdateStatus(ctx, 999, entity.LineStatusPaid), apperr.ErrNotFound))

	got, err := lines.ListByDisbursalID(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, entity.LineStatusPaid, got[0].Status)
	assert.True(t, got[0].NetAmount.Equal(dec("8500")))

	slips := NewSalarySlipRepository(db, logger)
	slip := &entity.SalarySlip{DisbursalID: req.ID, LineID: line.ID, PayeeType: entity.PayeeTypeEmployee,
		PayeeID: 3, Period: "2024-11", NetAmount: dec("8500")}
	require.NoError(t, slips.Create(ctx, slip))

	again := *slip
	again.ID = 0
	assert.True(t, errors.Is(slips.Create(ctx, &again), apperr.ErrConflict))

	byPayee, err := slips.ListByPayee(ctx, entity.PayeeTypeEmployee, 3)
	require.NoError(t, err)
	assert.Len(t, byPayee, 1)
}

func TestNotificationRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	db := sqlitetest.Open(t)
	repo := NewNotificationRepository(db, zap.NewNop())

	n := &entity.Notification{RecipientID: 7, Title: "Payment Received", Body: "body",
		RelatedID: 1, Category: entity.CategoryPaymentReceipt, Priority: entity.PriorityHigh}
	require.NoError(t, repo.Create(ctx, n))
	assert.Equal(t, entity.NotificationStatusPending, n.Status)

	future := time.Now().Add(time.Minute)
	retry, err := repo.ListRetryable(ctx, 3, future, 10)
	require.NoError(t, err)
	assert.Len(t, retry, 1)

	require.NoError(t, repo.MarkFailed(ctx, n.ID, "lark down"))
	require.NoError(t, repo.MarkFailed(ctx, n.ID, "lark down"))
	require.NoError(t, repo.MarkFailed(ctx, n.ID, "lark down"))

	retry, err = repo.ListRetryable(ctx, 3, future, 10)
	require.NoError(t, err)
	assert.Empty(t, retry, "attempts exhausted")

	require.NoError(t, repo.MarkSent(ctx, n.ID, time.Now()))
	got, err := repo.GetByID(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.NotificationStatusSent, got.Status)
	assert.Equal(t, 4, got.Attempts)
	assert.NotNil(t, got.SentAt)
	assert.Empty(t, got.ErrorMessage)

	ok, err := repo.MarkRead(ctx, n.ID, 8)
	require.NoError(t, err)
	assert.False(t, ok, "other users cannot mark it read")

	ok, err = repo.MarkRead(ctx, n.ID, 7)
	require.NoError(t, err)
	assert.True(t, ok)

	list, err := repo.ListByRecipient(ctx, 7, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Read)
}

func TestAuditRepository(t *testing.T) {
	ctx := context.Background()
	db := sqlitetest.Open(t)
	repo := NewAuditRepository(db, zap.NewNop())

	for _, action := range []string{entity.AuditCreatePaymentRequest, entity.AuditApprovePayment} {
		require.NoError(t, repo.Create(ctx, &entity.AuditLog{
			Action: action, ResourceType: entity.ResourcePaymentRequest, ResourceID: 5,
			ActorID: 1, ActorEmail: "a@b.test", ActorRole: entity.RoleBankAdmin,
		}))
	}
	require.NoError(t, repo.Create(ctx, &entity.AuditLog{
		Action: entity.AuditGenerateReceipt, ResourceType: entity.ResourcePaymentReceipt, ResourceID: 5,
	}))

	logs, err := repo.ListByResource(ctx, entity.ResourcePaymentRequest, 5)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, entity.AuditCreatePaymentRequest, logs[0].Action)
	assert.Equal(t, entity.AuditApprovePayment, logs[1].Action)
}

func TestTransactionManager_RollsBackRepositoryWrites(t *testing.T) {
	ctx := context.Background()
	db := sqlitetest.Open(t)
	tm := sqlite.NewDB(db, zap.NewNop())
	orgs := NewOrganizationRepository(db, zap.NewNop())
	orgID := sqlitetest.Organization(t, db, "Acme", dec("100"))

	boom := errors.New("boom")
	err := tm.WithTransaction(ctx, func(ctx context.Context) error {
		ok, err := orgs.Debit(ctx, orgID, dec("60"))
		require.NoError(t, err)
		require.True(t, ok)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.True(t, sqlitetest.Balance(t, db, "organizations", orgID).Equal(dec("100")))

	err = tm.WithTransaction(ctx, func(ctx context.Context) error {
		_, err := orgs.Debit(ctx, orgID, dec("60"))
		return err
	})
	require.NoError(t, err)
	assert.True(t, sqlitetest.Balance(t, db, "organizations", orgID).Equal(dec("40")))
}
