package service

import (
	"context"
	"fmt"

	"github.com/paydesk/settlement-engine/internal/application/port"
	"github.com/paydesk/settlement-engine/internal/domain/entity"
)

// AuditEntry describes one audited action
type AuditEntry struct {
	Action       string
	ResourceType string
	ResourceID   int64
	Actor        entity.Actor
	Details      string
}

// AuditService records the advisory audit trail
type AuditService interface {
	// Log appends an entry. Failures are logged, never returned.
	Log(ctx context.Context, entry AuditEntry)
	ListByResource(ctx context.Context, resourceType string, resourceID int64) ([]*entity.AuditLog, error)
}

type auditServiceImpl struct {
	auditRepo port.AuditRepository
	logger    Logger
}

// NewAuditService creates a new AuditService
func NewAuditService(auditRepo port.AuditRepository, logger Logger) AuditService {
	return &auditServiceImpl{
		auditRepo: auditRepo,
		logger:    logger,
	}
}

// Log appends an audit row using ctx, so inside a transaction it commits or
// rolls back with the surrounding work
func (s *auditServiceImpl) Log(ctx context.Context, entry AuditEntry) {
	log := &entity.AuditLog{
		Action:       entry.Action,
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
		ActorID:      entry.Actor.UserID,
		ActorEmail:   entry.Actor.Email,
		ActorRole:    entry.Actor.Role,
		Details:      entry.Details,
		Timestamp:    utcNow(),
	}

	if err := s.auditRepo.Create(ctx, log); err != nil {
		s.logger.Error("Failed to write audit log",
			"action", entry.Action,
			"resource_type", entry.ResourceType,
			"resource_id", entry.ResourceID,
			"error", err)
	}
}

// ListByResource returns the audit trail of one resource
func (s *auditServiceImpl) ListByResource(ctx context.Context, resourceType string, resourceID int64) ([]*entity.AuditLog, error) {
	logs, err := s.auditRepo.ListByResource(ctx, resourceType, resourceID)
	if err != nil {
		s.logger.Error("Failed to list audit logs", "resource_type", resourceType, "resource_id", resourceID, "error", err)
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return logs, nil
}
