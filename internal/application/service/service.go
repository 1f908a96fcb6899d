package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/paydesk/settlement-engine/internal/application/dispatcher"
	"github.com/paydesk/settlement-engine/internal/application/port"
	"github.com/paydesk/settlement-engine/internal/domain/apperr"
	"github.com/paydesk/settlement-engine/internal/domain/entity"
	"github.com/paydesk/settlement-engine/internal/domain/event"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Repositories groups the persistence ports used by the settlement services
type Repositories struct {
	Organizations    port.OrganizationRepository
	Vendors          port.VendorRepository
	Users            port.UserRepository
	Payees           port.PayeeRepository
	Grades           port.SalaryGradeRepository
	Payments         port.PaymentRequestRepository
	PaymentHistory   port.PaymentHistoryRepository
	Transactions     port.TransactionRepository
	Receipts         port.ReceiptRepository
	Disbursals       port.DisbursalRepository
	DisbursalLines   port.DisbursalLineRepository
	DisbursalHistory port.DisbursalHistoryRepository
	Slips            port.SalarySlipRepository
	Notifications    port.NotificationRepository
	Audit            port.AuditRepository
}

// approvalLockTTL bounds how long a crashed process can hold a decision lock
const approvalLockTTL = 30 * time.Second

type noopPublisher struct{}

func (noopPublisher) DispatchAsync(context.Context, *event.Event) {}

func publisherOrNoop(p dispatcher.Publisher) dispatcher.Publisher {
	if p == nil {
		return noopPublisher{}
	}
	return p
}

func utcNow() time.Time {
	return time.Now().UTC()
}

func requireActor(field string, actor entity.Actor) error {
	if actor.IsZero() {
		return apperr.NewValidation(field, field+" is required")
	}
	return nil
}

func commentOr(comment, fallback string) string {
	if c := strings.TrimSpace(comment); c != "" {
		return c
	}
	return fallback
}

// withDecisionLock runs fn while holding the cross-process lock for key. A
// nil guard runs fn directly; the status compare-and-swap stays authoritative.
func withDecisionLock(ctx context.Context, guard port.ApprovalGuard, logger Logger, resource string, id int64, fn func() error) error {
	if guard == nil {
		return fn()
	}

	key := fmt.Sprintf("%s:%d", resource, id)
	ok, err := guard.TryLock(ctx, key, approvalLockTTL)
	if err != nil {
		// lock backend trouble must not block decisions
		logger.Error("Approval guard unavailable", "key", key, "error", err)
		return fn()
	}
	if !ok {
		return apperr.NewConflict(resource, id, "being processed")
	}
	defer func() {
		if err := guard.Unlock(context.WithoutCancel(ctx), key); err != nil {
			logger.Error("Failed to release approval guard", "key", key, "error", err)
		}
	}()
	return fn()
}
