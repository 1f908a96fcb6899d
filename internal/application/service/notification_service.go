package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/paydesk/settlement-engine/internal/application/port"
	"github.com/paydesk/settlement-engine/internal/domain/apperr"
	"github.com/paydesk/settlement-engine/internal/domain/entity"
)

// NotifyInput describes one in-app notification
type NotifyInput struct {
	RecipientID int64
	Title       string
	Body        string
	RelatedID   int64
	Category    string
	Priority    string
}

// NotificationService records notifications and delivers them
type NotificationService interface {
	// Notify stores the notification and attempts delivery. Delivery
	// failures are recorded on the row, not returned.
	Notify(ctx context.Context, in NotifyInput) (*entity.Notification, error)

	// Deliver sends a stored notification and marks it SENT or FAILED
	Deliver(ctx context.Context, n *entity.Notification) error

	// RetryPending redelivers unsent notifications older than olderThan and
	// returns how many were sent
	RetryPending(ctx context.Context, maxAttempts int, olderThan time.Duration, limit int) (int, error)

	ListForUser(ctx context.Context, userID int64, limit int) ([]*entity.Notification, error)
	MarkRead(ctx context.Context, notificationID int64, actor entity.Actor) error
}

type notificationServiceImpl struct {
	notificationRepo port.NotificationRepository
	userRepo         port.UserRepository
	sender           port.MessageSender
	logger           Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(
	notificationRepo port.NotificationRepository,
	userRepo port.UserRepository,
	sender port.MessageSender,
	logger Logger,
) NotificationService {
	return &notificationServiceImpl{
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
		sender:           sender,
		logger:           logger,
	}
}

// Notify stores the notification then delivers it
func (s *notificationServiceImpl) Notify(ctx context.Context, in NotifyInput) (*entity.Notification, error) {
	if in.RecipientID == 0 {
		return nil, apperr.NewValidation("recipient_id", "recipient is required")
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.NewValidation("title", "title is required")
	}

	now := utcNow()
	n := &entity.Notification{
		RecipientID: in.RecipientID,
		Title:       title,
		Body:        in.Body,
		RelatedID:   in.RelatedID,
		Category:    in.Category,
		Priority:    in.Priority,
		Status:      entity.NotificationStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if n.Priority == "" {
		n.Priority = entity.PriorityMedium
	}

	if err := s.notificationRepo.Create(ctx, n); err != nil {
		s.logger.Error("Failed to store notification", "recipient_id", in.RecipientID, "title", title, "error", err)
		return nil, fmt.Errorf("create notification: %w", err)
	}

	if err := s.Deliver(ctx, n); err != nil {
		s.logger.Error("Notification delivery failed", "notification_id", n.ID, "recipient_id", n.RecipientID, "error", err)
	}
	return n, nil
}

// Deliver sends n through the message sender
func (s *notificationServiceImpl) Deliver(ctx context.Context, n *entity.Notification) error {
	recipient, err := s.userRepo.GetByID(ctx, n.RecipientID)
	if err == nil && recipient == nil {
		err = apperr.NewNotFound(entity.ResourceUser, n.RecipientID)
	}
	if err == nil {
		err = s.sender.Send(ctx, recipient, n.Title, n.Body)
	}

	n.Attempts++
	if err != nil {
		n.Status = entity.NotificationStatusFailed
		n.ErrorMessage = err.Error()
		if markErr := s.notificationRepo.MarkFailed(ctx, n.ID, err.Error()); markErr != nil {
			s.logger.Error("Failed to mark notification failed", "notification_id", n.ID, "error", markErr)
		}
		return err
	}

	now := utcNow()
	n.Status = entity.NotificationStatusSent
	n.SentAt = &now
	n.ErrorMessage = ""
	if err := s.notificationRepo.MarkSent(ctx, n.ID, now); err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}
	return nil
}

// RetryPending redelivers notifications that have not been sent yet
func (s *notificationServiceImpl) RetryPending(ctx context.Context, maxAttempts int, olderThan time.Duration, limit int) (int, error) {
	pending, err := s.notificationRepo.ListRetryable(ctx, maxAttempts, utcNow().Add(-olderThan), limit)
	if err != nil {
		return 0, fmt.Errorf("list retryable notifications: %w", err)
	}

	sent := 0
	for _, n := range pending {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		if err := s.Deliver(ctx, n); err != nil {
			s.logger.Error("Notification retry failed", "notification_id", n.ID, "attempts", n.Attempts, "error", err)
			continue
		}
		sent++
	}

	if len(pending) > 0 {
		s.logger.Info("Notification retry pass finished", "candidates", len(pending), "sent", sent)
	}
	return sent, nil
}

// ListForUser returns the newest notifications of a user
func (s *notificationServiceImpl) ListForUser(ctx context.Context, userID int64, limit int) ([]*entity.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.notificationRepo.ListByRecipient(ctx, userID, limit)
}

// MarkRead flags one of the actor's notifications as read
func (s *notificationServiceImpl) MarkRead(ctx context.Context, notificationID int64, actor entity.Actor) error {
	if err := requireActor("actor", actor); err != nil {
		return err
	}
	ok, err := s.notificationRepo.MarkRead(ctx, notificationID, actor.UserID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if !ok {
		return apperr.NewNotFound(entity.ResourceNotification, notificationID)
	}
	return nil
}
