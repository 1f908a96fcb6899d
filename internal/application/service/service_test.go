package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/paydesk/settlement-engine/internal/application/port"
	"github.com/paydesk/settlement-engine/internal/domain/apperr"
	"github.com/paydesk/settlement-engine/internal/domain/entity"
	"github.com/paydesk/settlement-engine/internal/infrastructure/persistence/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockGuard is a func-field ApprovalGuard
type mockGuard struct {
	TryLockFunc func(ctx context.Context, key string, ttl time.Duration) (bool, error)
	UnlockFunc  func(ctx context.Context, key string) error

	unlocked []string
}

func (m *mockGuard) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if m.TryLockFunc != nil {
		return m.TryLockFunc(ctx, key, ttl)
	}
	return true, nil
}

func (m *mockGuard) Unlock(ctx context.Context, key string) error {
	m.unlocked = append(m.unlocked, key)
	if m.UnlockFunc != nil {
		return m.UnlockFunc(ctx, key)
	}
	return nil
}

func TestWithDecisionLock(t *testing.T) {
	ctx := context.Background()

	t.Run("held by another process", func(t *testing.T) {
		guard := &mockGuard{TryLockFunc: func(ctx context.Context, key string, ttl time.Duration) (bool, error) {
			assert.Equal(t, "PaymentRequest:7", key)
			return false, nil
		}}
		called := false
		err := withDecisionLock(ctx, guard, &mockLogger{}, entity.ResourcePaymentRequest, 7, func() error {
			called = true
			return nil
		})

		require.Error(t, err)
		assert.True(t, errors.Is(err, apperr.ErrConflict))
		assert.False(t, called)
		assert.Empty(t, guard.unlocked)
	})

	t.Run("releases after running", func(t *testing.T) {
		guard := &mockGuard{}
		err := withDecisionLock(ctx, guard, &mockLogger{}, entity.ResourcePaymentRequest, 7, func() error {
			return errors.New("settlement failed")
		})

		assert.EqualError(t, err, "settlement failed")
		assert.Equal(t, []string{"PaymentRequest:7"}, guard.unlocked)
	})

	t.Run("backend failure does not block", func(t *testing.T) {
		logger := &mockLogger{}
		guard := &mockGuard{TryLockFunc: func(ctx context.Context, key string, ttl time.Duration) (bool, error) {
			return false, errors.New("connection refused")
		}}
		called := false
		err := withDecisionLock(ctx, guard, logger, entity.ResourcePaymentRequest, 7, func() error {
			called = true
			return nil
		})

		require.NoError(t, err)
		assert.True(t, called)
		assert.True(t, logger.HasError("Approval guard unavailable"))
	})
}

func TestPaymentService_ApproveWhileLocked(t *testing.T) {
	h := newHarness(t)
	f := h.seedPayment("5000")
	req := h.createPayment(f, "1000")

	guard := &mockGuard{TryLockFunc: func(ctx context.Context, key string, ttl time.Duration) (bool, error) {
		return false, nil
	}}
	txManager := sqlite.NewDB(h.db, zap.NewNop())
	settlement := NewSettlement(h.ledger, h.repos.Transactions, h.repos.Receipts, txManager, h.audit, h.logger)
	payments := NewPaymentService(h.repos, txManager, h.ledger, settlement, h.audit, guard, h.events, h.logger)

	_, _, err := payments.Approve(context.Background(), req.ID, "ok", f.approver)
	require.Error(t, err)

	coded, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeConflict, coded.Code())

	org, err := h.ledger.GetOrganizationBalance(context.Background(), f.orgID)
	require.NoError(t, err)
	assert.True(t, org.Balance.Equal(dec("5000")), "balance untouched while another approver holds the lock")
}

// racingPayments lets another approver win the status swap first
type racingPayments struct {
	port.PaymentRequestRepository
	winner string
}

func (r *racingPayments) Decide(ctx context.Context, id int64, status string, decidedBy int64, at time.Time) (bool, error) {
	if _, err := r.PaymentRequestRepository.Decide(ctx, id, r.winner, decidedBy, at); err != nil {
		return false, err
	}
	return false, nil
}

// racingDisbursals lets another approver win the status swap first
type racingDisbursals struct {
	port.DisbursalRepository
	winner string
}

func (r *racingDisbursals) Decide(ctx context.Context, id int64, status string, at time.Time) (bool, error) {
	if _, err := r.DisbursalRepository.Decide(ctx, id, r.winner, at); err != nil {
		return false, err
	}
	return false, nil
}

func assertConflictStatus(t *testing.T, err error, status string) {
	t.Helper()
	require.Error(t, err)
	coded, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeConflict, coded.Code())
	assert.Equal(t, status, coded.Details()["status"])
	assert.Contains(t, err.Error(), "already "+status)
}

func TestPaymentService_LostStatusSwapReportsWinner(t *testing.T) {
	h := newHarness(t)
	f := h.seedPayment("5000")
	req := h.createPayment(f, "1000")

	repos := h.repos
	repos.Payments = &racingPayments{PaymentRequestRepository: h.repos.Payments, winner: entity.StatusRejected}
	txManager := sqlite.NewDB(h.db, zap.NewNop())
	settlement := NewSettlement(h.ledger, h.repos.Transactions, h.repos.Receipts, txManager, h.audit, h.logger)
	payments := NewPaymentService(repos, txManager, h.ledger, settlement, h.audit, nil, h.events, h.logger)

	_, _, err := payments.Approve(context.Background(), req.ID, "ok", f.approver)
	assertConflictStatus(t, err, entity.StatusRejected)

	org, err := h.ledger.GetOrganizationBalance(context.Background(), f.orgID)
	require.NoError(t, err)
	assert.True(t, org.Balance.Equal(dec("5000")))
}

func TestDisbursalService_LostStatusSwapReportsWinner(t *testing.T) {
	tests := []struct {
		name     string
		decision string
		winner   string
	}{
		{"approve loses to reject", entity.DecisionApprove, entity.StatusRejected},
		{"reject loses to approve", "REJECT", entity.StatusApproved},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			f := h.seedPayroll("50000")
			req := h.createPayroll(f, "2024-05")

			repos := h.repos
			repos.Disbursals = &racingDisbursals{DisbursalRepository: h.repos.Disbursals, winner: tt.winner}
			txManager := sqlite.NewDB(h.db, zap.NewNop())
			disbursals := NewDisbursalService(repos, txManager, h.ledger, h.audit, nil, h.events, h.logger)

			_, err := disbursals.ProcessApproval(context.Background(), req.ID, tt.decision, "", f.approver)
			assertConflictStatus(t, err, tt.winner)

			org, err := h.ledger.GetOrganizationBalance(context.Background(), f.orgID)
			require.NoError(t, err)
			assert.True(t, org.Balance.Equal(dec("50000")))
		})
	}
}
