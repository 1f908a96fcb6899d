package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/paydesk/settlement-engine/internal/domain/apperr"
	"github.com/paydesk/settlement-engine/internal/domain/entity"
)

// Mock repositories
type mockNotificationRepo struct {
	createFunc        func(ctx context.Context, n *entity.Notification) error
	listRetryableFunc func(ctx context.Context, maxAttempts int, olderThan time.Time, limit int) ([]*entity.Notification, error)
	markReadFunc      func(ctx context.Context, id, recipientID int64) (bool, error)

	sent   []int64
	failed map[int64]string
}

func (m *mockNotificationRepo) Create(ctx context.Context, n *entity.Notification) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, n)
	}
	n.ID = 1
	return nil
}

func (m *mockNotificationRepo) GetByID(ctx context.Context, id int64) (*entity.Notification, error) {
	return nil, nil
}

func (m *mockNotificationRepo) ListByRecipient(ctx context.Context, recipientID int64, limit int) ([]*entity.Notification, error) {
	return []*entity.Notification{}, nil
}

func (m *mockNotificationRepo) ListRetryable(ctx context.Context, maxAttempts int, olderThan time.Time, limit int) ([]*entity.Notification, error) {
	if m.listRetryableFunc != nil {
		return m.listRetryableFunc(ctx, maxAttempts, olderThan, limit)
	}
	return nil, nil
}

func (m *mockNotificationRepo) MarkSent(ctx context.Context, id int64, at time.Time) error {
	m.sent = append(m.sent, id)
	return nil
}

func (m *mockNotificationRepo) MarkFailed(ctx context.Context, id int64, errorMsg string) error {
	if m.failed == nil {
		m.failed = make(map[int64]string)
	}
	m.failed[id] = errorMsg
	return nil
}

func (m *mockNotificationRepo) MarkRead(ctx context.Context, id, recipientID int64) (bool, error) {
	if m.markReadFunc != nil {
		return m.markReadFunc(ctx, id, recipientID)
	}
	return true, nil
}

type mockUserRepo struct {
	users map[int64]*entity.User
}

func (m *mockUserRepo) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	return m.users[id], nil
}

func (m *mockUserRepo) ListByOrganization(ctx context.Context, orgID int64) ([]*entity.User, error) {
	return nil, nil
}

func (m *mockUserRepo) ListByRole(ctx context.Context, role string) ([]*entity.User, error) {
	return nil, nil
}

type mockSender struct {
	sendFunc func(ctx context.Context, recipient *entity.User, title, body string) error
	calls    int
}

func (m *mockSender) Send(ctx context.Context, recipient *entity.User, title, body string) error {
	m.calls++
	if m.sendFunc != nil {
		return m.sendFunc(ctx, recipient, title, body)
	}
	return nil
}

func newNotificationFixture() (*mockNotificationRepo, *mockUserRepo, *mockSender, *mockLogger) {
	return &mockNotificationRepo{},
		&mockUserRepo{users: map[int64]*entity.User{7: {ID: 7, Email: "finance@acme.test"}}},
		&mockSender{},
		&mockLogger{}
}

func TestNotificationService_NotifyDelivers(t *testing.T) {
	repo, users, sender, logger := newNotificationFixture()
	svc := NewNotificationService(repo, users, sender, logger)

	n, err := svc.Notify(context.Background(), NotifyInput{
		RecipientID: 7,
		Title:       "Payment Request Approved",
		Body:        "done",
		RelatedID:   3,
		Category:    entity.CategoryPaymentRequest,
	})
	if err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if n.Status != entity.NotificationStatusSent {
		t.Errorf("expected status SENT, got %s", n.Status)
	}
	if n.Priority != entity.PriorityMedium {
		t.Errorf("expected default priority MEDIUM, got %s", n.Priority)
	}
	if len(repo.sent) != 1 || repo.sent[0] != n.ID {
		t.Errorf("expected notification %d marked sent, got %v", n.ID, repo.sent)
	}
}

func TestNotificationService_DeliveryFailureIsRecordedNotReturned(t *testing.T) {
	repo, users, sender, logger := newNotificationFixture()
	sender.sendFunc = func(ctx context.Context, recipient *entity.User, title, body string) error {
		return errors.New("lark unavailable")
	}
	svc := NewNotificationService(repo, users, sender, logger)

	n, err := svc.Notify(context.Background(), NotifyInput{RecipientID: 7, Title: "Hello"})
	if err != nil {
		t.Fatalf("delivery failure must not be returned, got %v", err)
	}
	if n.Status != entity.NotificationStatusFailed {
		t.Errorf("expected status FAILED, got %s", n.Status)
	}
	if repo.failed[n.ID] != "lark unavailable" {
		t.Errorf("expected failure message recorded, got %q", repo.failed[n.ID])
	}
	if !logger.HasError("Notification delivery failed") {
		t.Error("expected delivery failure to be logged")
	}
}

func TestNotificationService_UnknownRecipientFailsDelivery(t *testing.T) {
	repo, users, sender, logger := newNotificationFixture()
	svc := NewNotificationService(repo, users, sender, logger)

	n, err := svc.Notify(context.Background(), NotifyInput{RecipientID: 42, Title: "Hello"})
	if err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if sender.calls != 0 {
		t.Errorf("expected no send for unknown recipient, got %d", sender.calls)
	}
	if n.Status != entity.NotificationStatusFailed {
		t.Errorf("expected status FAILED, got %s", n.Status)
	}
}

func TestNotificationService_NotifyValidation(t *testing.T) {
	repo, users, sender, logger := newNotificationFixture()
	svc := NewNotificationService(repo, users, sender, logger)

	if _, err := svc.Notify(context.Background(), NotifyInput{Title: "x"}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for missing recipient, got %v", err)
	}
	if _, err := svc.Notify(context.Background(), NotifyInput{RecipientID: 7, Title: "  "}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error for blank title, got %v", err)
	}

	repo.createFunc = func(ctx context.Context, n *entity.Notification) error {
		return errors.New("disk full")
	}
	if _, err := svc.Notify(context.Background(), NotifyInput{RecipientID: 7, Title: "x"}); err == nil {
		t.Error("expected storage error to be returned")
	}
}

func TestNotificationService_RetryPending(t *testing.T) {
	repo, users, sender, logger := newNotificationFixture()
	var gotCutoff time.Time
	repo.listRetryableFunc = func(ctx context.Context, maxAttempts int, olderThan time.Time, limit int) ([]*entity.Notification, error) {
		gotCutoff = olderThan
		if maxAttempts != 5 || limit != 10 {
			t.Errorf("unexpected args maxAttempts=%d limit=%d", maxAttempts, limit)
		}
		return []*entity.Notification{
			{ID: 11, RecipientID: 7, Title: "a", Status: entity.NotificationStatusFailed, Attempts: 1},
			{ID: 12, RecipientID: 99, Title: "b", Status: entity.NotificationStatusPending},
		}, nil
	}
	svc := NewNotificationService(repo, users, sender, logger)

	before := time.Now().UTC().Add(-time.Minute)
	sent, err := svc.RetryPending(context.Background(), 5, time.Minute, 10)
	if err != nil {
		t.Fatalf("RetryPending failed: %v", err)
	}
	if sent != 1 {
		t.Errorf("expected 1 sent, got %d", sent)
	}
	if gotCutoff.Before(before.Add(-time.Second)) {
		t.Errorf("cutoff %v too old", gotCutoff)
	}
	if _, ok := repo.failed[12]; !ok {
		t.Error("expected notification 12 to be marked failed")
	}
}

func TestNotificationService_MarkRead(t *testing.T) {
	repo, users, sender, logger := newNotificationFixture()
	repo.markReadFunc = func(ctx context.Context, id, recipientID int64) (bool, error) {
		return id == 1 && recipientID == 7, nil
	}
	svc := NewNotificationService(repo, users, sender, logger)
	owner := entity.Actor{UserID: 7}

	if err := svc.MarkRead(context.Background(), 1, owner); err != nil {
		t.Errorf("MarkRead failed: %v", err)
	}
	if err := svc.MarkRead(context.Background(), 1, entity.Actor{UserID: 8}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found for another user's notification, got %v", err)
	}
	if err := svc.MarkRead(context.Background(), 1, entity.Actor{}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected validation error without actor, got %v", err)
	}
}

func TestSettlementNotifier_DeliveryFailureDoesNotAffectApproval(t *testing.T) {
	h := newHarness(t)
	f := h.seedPayment("1000")
	h.sender.failFor[f.requester.UserID] = true

	req := h.createPayment(f, "500")
	_, _, err := h.payments.Approve(context.Background(), req.ID, "", f.approver)
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	h.flush()

	var status string
	err = h.db.QueryRow(`SELECT status FROM notifications WHERE recipient_id = ? AND title = ?`,
		f.requester.UserID, "Payment Request Approved").Scan(&status)
	if err != nil {
		t.Fatalf("query notification: %v", err)
	}
	if status != entity.NotificationStatusFailed {
		t.Errorf("expected FAILED notification, got %s", status)
	}
	if got := h.sender.To(f.vendorUser); len(got) != 1 {
		t.Errorf("expected vendor to be notified once, got %d", len(got))
	}
}
