package service

import (
	"context"
	"errors"
	"testing"

	"github.com/paydesk/settlement-engine/internal/domain/entity"
)

type mockAuditRepo struct {
	createFunc func(ctx context.Context, log *entity.AuditLog) error
	logs       []*entity.AuditLog
}

func (m *mockAuditRepo) Create(ctx context.Context, log *entity.AuditLog) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, log)
	}
	m.logs = append(m.logs, log)
	return nil
}

func (m *mockAuditRepo) ListByResource(ctx context.Context, resourceType string, resourceID int64) ([]*entity.AuditLog, error) {
	var out []*entity.AuditLog
	for _, l := range m.logs {
		if l.ResourceType == resourceType && l.ResourceID == resourceID {
			out = append(out, l)
		}
	}
	return out, nil
}

func TestAuditService_Log(t *testing.T) {
	repo := &mockAuditRepo{}
	svc := NewAuditService(repo, &mockLogger{})

	svc.Log(context.Background(), AuditEntry{
		Action:       entity.AuditApprovePayment,
		ResourceType: entity.ResourcePaymentRequest,
		ResourceID:   5,
		Actor:        entity.Actor{UserID: 2, Email: "banker@bank.test", Role: entity.RoleBankAdmin},
	})

	logs, err := svc.ListByResource(context.Background(), entity.ResourcePaymentRequest, 5)
	if err != nil {
		t.Fatalf("ListByResource failed: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 audit log, got %d", len(logs))
	}
	if logs[0].ActorEmail != "banker@bank.test" || logs[0].ActorRole != entity.RoleBankAdmin {
		t.Errorf("actor not recorded: %+v", logs[0])
	}
	if logs[0].Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
}

func TestAuditService_LogSwallowsErrors(t *testing.T) {
	repo := &mockAuditRepo{
		createFunc: func(ctx context.Context, log *entity.AuditLog) error {
			return errors.New("database is locked")
		},
	}
	logger := &mockLogger{}
	svc := NewAuditService(repo, logger)

	svc.Log(context.Background(), AuditEntry{Action: entity.AuditRejectPayment, ResourceType: entity.ResourcePaymentRequest})

	if !logger.HasError("Failed to write audit log") {
		t.Error("expected audit failure to be logged")
	}
}
