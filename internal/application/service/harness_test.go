package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/paydesk/settlement-engine/internal/application/dispatcher"
	"github.com/paydesk/settlement-engine/internal/domain/entity"
	"github.com/paydesk/settlement-engine/internal/infrastructure/persistence/repository"
	"github.com/paydesk/settlement-engine/internal/infrastructure/persistence/sqlite"
	"github.com/paydesk/settlement-engine/internal/infrastructure/persistence/sqlitetest"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// mockLogger records error messages
type mockLogger struct {
	mu     sync.Mutex
	errors []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {}

func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *mockLogger) HasError(msg string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.errors {
		if e == msg {
			return true
		}
	}
	return false
}

type sentMessage struct {
	RecipientID int64
	Title       string
	Body        string
}

// recordingSender captures delivered messages. Recipients in failFor error.
type recordingSender struct {
	mu      sync.Mutex
	sent    []sentMessage
	failFor map[int64]bool
}

func (s *recordingSender) Send(ctx context.Context, recipient *entity.User, title, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFor[recipient.ID] {
		return errors.New("lark unavailable")
	}
	s.sent = append(s.sent, sentMessage{RecipientID: recipient.ID, Title: title, Body: body})
	return nil
}

func (s *recordingSender) To(recipientID int64) []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sentMessage
	for _, m := range s.sent {
		if m.RecipientID == recipientID {
			out = append(out, m)
		}
	}
	return out
}

// harness wires every service against a migrated sqlite database
type harness struct {
	t             *testing.T
	db            *sql.DB
	repos         Repositories
	audit         AuditService
	ledger        LedgerService
	payments      PaymentService
	disbursals    DisbursalService
	notifications NotificationService
	events        dispatcher.Dispatcher
	sender        *recordingSender
	logger        *mockLogger
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db := sqlitetest.Open(t)
	zl := zap.NewNop()
	repos := Repositories{
		Organizations:    repository.NewOrganizationRepository(db, zl),
		Vendors:          repository.NewVendorRepository(db, zl),
		Users:            repository.NewUserRepository(db, zl),
		Payees:           repository.NewPayeeRepository(db, zl),
		Grades:           repository.NewSalaryGradeRepository(db, zl),
		Payments:         repository.NewPaymentRequestRepository(db, zl),
		PaymentHistory:   repository.NewPaymentHistoryRepository(db, zl),
		Transactions:     repository.NewTransactionRepository(db, zl),
		Receipts:         repository.NewReceiptRepository(db, zl),
		Disbursals:       repository.NewDisbursalRepository(db, zl),
		DisbursalLines:   repository.NewDisbursalLineRepository(db, zl),
		DisbursalHistory: repository.NewDisbursalHistoryRepository(db, zl),
		Slips:            repository.NewSalarySlipRepository(db, zl),
		Notifications:    repository.NewNotificationRepository(db, zl),
		Audit:            repository.NewAuditRepository(db, zl),
	}
	txManager := sqlite.NewDB(db, zl)

	logger := &mockLogger{}
	events := dispatcher.NewDispatcher(dispatcher.WithLogger(logger))
	t.Cleanup(func() { _ = events.Close() })

	audit := NewAuditService(repos.Audit, logger)
	ledger := NewLedgerService(repos.Organizations, repos.Vendors, txManager, audit, events, logger)
	settlement := NewSettlement(ledger, repos.Transactions, repos.Receipts, txManager, audit, logger)
	sender := &recordingSender{failFor: map[int64]bool{}}
	notifications := NewNotificationService(repos.Notifications, repos.Users, sender, logger)
	NewSettlementNotifier(repos, notifications, logger).Register(events)

	return &harness{
		t:             t,
		db:            db,
		repos:         repos,
		audit:         audit,
		ledger:        ledger,
		payments:      NewPaymentService(repos, txManager, ledger, settlement, audit, nil, events, logger),
		disbursals:    NewDisbursalService(repos, txManager, ledger, audit, nil, events, logger),
		notifications: notifications,
		events:        events,
		sender:        sender,
		logger:        logger,
	}
}

// flush waits for asynchronous event handlers to finish
func (h *harness) flush() {
	h.t.Helper()
	require.NoError(h.t, h.events.Close())
}

func (h *harness) actor(userID int64, role string) entity.Actor {
	return entity.Actor{UserID: userID, Email: "user@test", Role: role}
}

func (h *harness) auditCount(action string) int {
	return sqlitetest.Count(h.t, h.db, "audit_logs", "action = ?", action)
}

// paymentFixture is an organization with a requester, a bank admin and a vendor
type paymentFixture struct {
	orgID      int64
	vendorID   int64
	vendorUser int64
	requester  entity.Actor
	approver   entity.Actor
}

func (h *harness) seedPayment(orgBalance string) paymentFixture {
	orgID := sqlitetest.Organization(h.t, h.db, "Acme Corp", dec(orgBalance))
	requesterID := sqlitetest.User(h.t, h.db, orgID, "finance@acme.test", entity.RoleOrgAdmin)
	bankerID := sqlitetest.User(h.t, h.db, 0, "banker@bank.test", entity.RoleBankAdmin)
	vendorUser := sqlitetest.User(h.t, h.db, 0, "owner@supplies.test", entity.RoleVendor)
	vendorID := sqlitetest.Vendor(h.t, h.db, orgID, "Office Supplies", vendorUser)

	return paymentFixture{
		orgID:      orgID,
		vendorID:   vendorID,
		vendorUser: vendorUser,
		requester:  h.actor(requesterID, entity.RoleOrgAdmin),
		approver:   h.actor(bankerID, entity.RoleBankAdmin),
	}
}

func (h *harness) createPayment(f paymentFixture, amount string) *entity.PaymentRequest {
	h.t.Helper()
	req, err := h.payments.CreateRequest(context.Background(), CreatePaymentInput{
		OrganizationID:   f.orgID,
		VendorID:         f.vendorID,
		Amount:           dec(amount),
		InvoiceReference: "INV-2024-001",
		Requester:        f.requester,
	})
	require.NoError(h.t, err)
	return req
}

// payrollFixture is an organization with three graded employees linked to users
type payrollFixture struct {
	orgID     int64
	orgUser   int64
	employees []int64
	creator   entity.Actor
	approver  entity.Actor
}

func (h *harness) seedPayroll(orgBalance string) payrollFixture {
	orgID := sqlitetest.Organization(h.t, h.db, "Globex", dec(orgBalance))
	orgUser := sqlitetest.User(h.t, h.db, orgID, "accounts@globex.test", entity.RoleOrganization)
	bankerID := sqlitetest.User(h.t, h.db, 0, "banker@bank.test", entity.RoleBankAdmin)

	grades := []sqlitetest.Grade{
		{Code: "G1", Basic: "8000", HRA: "1500", DA: "700", Allowances: "300", PF: "500"},
		{Code: "G2", Basic: "7000", HRA: "1200", DA: "500", PF: "200"},
		{Code: "G3", Basic: "6500"},
	}

	f := payrollFixture{
		orgID:    orgID,
		orgUser:  orgUser,
		creator:  h.actor(orgUser, entity.RoleOrganization),
		approver: h.actor(bankerID, entity.RoleBankAdmin),
	}
	for i, g := range grades {
		gradeID := sqlitetest.SalaryGrade(h.t, h.db, orgID, g)
		userID := sqlitetest.User(h.t, h.db, orgID, g.Code+"@globex.test", entity.RoleEmployee)
		f.employees = append(f.employees, sqlitetest.Employee(h.t, h.db, orgID, []string{"Ann", "Ben", "Cy"}[i], userID, gradeID))
	}
	return f
}

func (h *harness) createPayroll(f payrollFixture, period string) *entity.SalaryDisbursalRequest {
	h.t.Helper()
	req, err := h.disbursals.CreateDisbursal(context.Background(), CreateDisbursalInput{
		OrganizationID: f.orgID,
		Period:         period,
		PaymentGroups:  []PaymentGroup{{Type: entity.PayeeTypeEmployee, IDs: f.employees}},
		Actor:          f.creator,
	})
	require.NoError(h.t, err)
	return req
}
