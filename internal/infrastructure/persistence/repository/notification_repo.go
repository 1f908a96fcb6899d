package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/paydesk/settlement-engine/internal/application/port"
	"github.com/paydesk/settlement-engine/internal/domain/entity"
	"github.com/paydesk/settlement-engine/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// NotificationRepository implements port.NotificationRepository
type NotificationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *sql.DB, logger *zap.Logger) port.NotificationRepository {
	return &NotificationRepository{db: db, logger: logger}
}

const notificationColumns = `
	id, recipient_id, title, body, related_id, category, priority, status,
	attempts, read, sent_at, error_message, created_at, updated_at
`

func scanNotification(s scanner) (*entity.Notification, error) {
	var n entity.Notification
	var sentAt sql.NullTime
	if err := s.Scan(&n.ID, &n.RecipientID, &n.Title, &n.Body, &n.RelatedID, &n.Category, &n.Priority, &n.Status,
		&n.Attempts, &n.Read, &sentAt, &n.ErrorMessage, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	n.SentAt = nullTimePtr(sentAt)
	return &n, nil
}

// Create inserts a notification record
func (r *NotificationRepository) Create(ctx context.Context, n *entity.Notification) error {
	now := time.Now().UTC()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.UpdatedAt = now
	if n.Status == "" {
		n.Status = entity.NotificationStatusPending
	}

	result, err := r.getExecutor(ctx).ExecContext(ctx, `
		INSERT INTO notifications (
			recipient_id, title, body, related_id, category, priority, status,
			attempts, read, sent_at, error_message, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, n.RecipientID, n.Title, n.Body, n.RelatedID, n.Category, n.Priority, n.Status,
		n.Attempts, n.Read, n.SentAt, n.ErrorMessage, n.CreatedAt, n.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to create notification", zap.Int64("recipient_id", n.RecipientID), zap.Error(err))
		return fmt.Errorf("failed to create notification: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	n.ID = id
	return nil
}

// GetByID retrieves a notification by ID
func (r *NotificationRepository) GetByID(ctx context.Context, id int64) (*entity.Notification, error) {
	row := r.getExecutor(ctx).QueryRowContext(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id)

	n, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get notification", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	return n, nil
}

// ListByRecipient returns a user's notifications, newest first
func (r *NotificationRepository) ListByRecipient(ctx context.Context, recipientID int64, limit int) ([]*entity.Notification, error) {
	return r.list(ctx,
		`SELECT `+notificationColumns+` FROM notifications WHERE recipient_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		recipientID, limit)
}

// ListRetryable returns undelivered notifications eligible for another attempt
func (r *NotificationRepository) ListRetryable(ctx context.Context, maxAttempts int, olderThan time.Time, limit int) ([]*entity.Notification, error) {
	return r.list(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE status IN (?, ?) AND attempts < ? AND updated_at <= ?
		ORDER BY created_at ASC, id ASC
		LIMIT ?
	`, entity.NotificationStatusPending, entity.NotificationStatusFailed, maxAttempts, olderThan.UTC(), limit)
}

func (r *NotificationRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.Notification, error) {
	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list notifications", zap.Error(err))
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var list []*entity.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		list = append(list, n)
	}
	return list, rows.Err()
}

// MarkSent records a successful delivery attempt
func (r *NotificationRepository) MarkSent(ctx context.Context, id int64, at time.Time) error {
	_, err := r.getExecutor(ctx).ExecContext(ctx, `
		UPDATE notifications
		SET status = ?, attempts = attempts + 1, sent_at = ?, error_message = '', updated_at = ?
		WHERE id = ?
	`, entity.NotificationStatusSent, at.UTC(), time.Now().UTC(), id)
	if err != nil {
		r.logger.Error("Failed to mark notification sent", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark notification sent: %w", err)
	}
	return nil
}

// MarkFailed records a failed delivery attempt
func (r *NotificationRepository) MarkFailed(ctx context.Context, id int64, errorMsg string) error {
	_, err := r.getExecutor(ctx).ExecContext(ctx, `
		UPDATE notifications
		SET status = ?, attempts = attempts + 1, error_message = ?, updated_at = ?
		WHERE id = ?
	`, entity.NotificationStatusFailed, errorMsg, time.Now().UTC(), id)
	if err != nil {
		r.logger.Error("Failed to mark notification failed", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark notification failed: %w", err)
	}
	return nil
}

// MarkRead flags a recipient's notification as read
func (r *NotificationRepository) MarkRead(ctx context.Context, id, recipientID int64) (bool, error) {
	result, err := r.getExecutor(ctx).ExecContext(ctx,
		`UPDATE notifications SET read = 1, updated_at = ? WHERE id = ? AND recipient_id = ?`,
		time.Now().UTC(), id, recipientID)
	if err != nil {
		r.logger.Error("Failed to mark notification read", zap.Int64("id", id), zap.Error(err))
		return false, fmt.Errorf("failed to mark notification read: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

func (r *NotificationRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.Conn(ctx, r.db)
}

var _ port.NotificationRepository = (*NotificationRepository)(nil)
