package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/paydesk/settlement-engine/internal/application/port"
	"github.com/paydesk/settlement-engine/internal/domain/entity"
	"github.com/paydesk/settlement-engine/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// AuditRepository implements port.AuditRepository
type AuditRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit log repository
func NewAuditRepository(db *sql.DB, logger *zap.Logger) port.AuditRepository {
	return &AuditRepository{db: db, logger: logger}
}

// Create appends an audit entry
func (r *AuditRepository) Create(ctx context.Context, log *entity.AuditLog) error {
	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now().UTC()
	}

	result, err := r.getExecutor(ctx).ExecContext(ctx, `
		INSERT INTO audit_logs (
			action, resource_type, resource_id, actor_id, actor_email, actor_role, details, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, log.Action, log.ResourceType, log.ResourceID, log.ActorID, log.ActorEmail, log.ActorRole,
		log.Details, log.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	log.ID = id
	return nil
}

// ListByResource returns the audit trail of a resource, oldest first
func (r *AuditRepository) ListByResource(ctx context.Context, resourceType string, resourceID int64) ([]*entity.AuditLog, error) {
	rows, err := r.getExecutor(ctx).QueryContext(ctx, `
		SELECT id, action, resource_type, resource_id, actor_id, actor_email, actor_role, details, timestamp
		FROM audit_logs
		WHERE resource_type = ? AND resource_id = ?
		ORDER BY timestamp ASC, id ASC
	`, resourceType, resourceID)
	if err != nil {
		r.logger.Error("Failed to list audit logs",
			zap.String("resource_type", resourceType), zap.Int64("resource_id", resourceID), zap.Error(err))
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	var logs []*entity.AuditLog
	for rows.Next() {
		var l entity.AuditLog
		if err := rows.Scan(&l.ID, &l.Action, &l.ResourceType, &l.ResourceID, &l.ActorID,
			&l.ActorEmail, &l.ActorRole, &l.Details, &l.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}

func (r *AuditRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.Conn(ctx, r.db)
}

var _ port.AuditRepository = (*AuditRepository)(nil)
