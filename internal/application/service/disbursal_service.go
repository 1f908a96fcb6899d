package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/paydesk/settlement-engine/internal/application/dispatcher"
	"github.com/paydesk/settlement-engine/internal/application/port"
	"github.com/paydesk/settlement-engine/internal/domain/apperr"
	"github.com/paydesk/settlement-engine/internal/domain/entity"
	"github.com/paydesk/settlement-engine/internal/domain/event"
	"github.com/paydesk/settlement-engine/internal/domain/workflow"
)

// PaymentGroup selects payees of one type for a salary batch
type PaymentGroup struct {
	Type string
	IDs  []int64
}

// CreateDisbursalInput carries a new salary batch
type CreateDisbursalInput struct {
	OrganizationID int64
	Period         string
	Remarks        string
	PaymentGroups  []PaymentGroup
	Actor          entity.Actor
}

// DisbursalService runs the salary disbursal approval workflow
type DisbursalService interface {
	CreateDisbursal(ctx context.Context, in CreateDisbursalInput) (*entity.SalaryDisbursalRequest, error)

	// ProcessApproval applies an APPROVE or REJECT decision to a PENDING batch
	ProcessApproval(ctx context.Context, disbursalID int64, action, comment string, actor entity.Actor) (*entity.SalaryDisbursalRequest, error)

	GetPendingRequests(ctx context.Context) ([]*entity.SalaryDisbursalRequest, error)
	GetRequestDetails(ctx context.Context, disbursalID int64) (*entity.DisbursalDetails, error)
	GetHistory(ctx context.Context, disbursalID int64) ([]*entity.SalaryDisbursalApprovalHistory, error)
	GetByOrg(ctx context.Context, orgID int64) ([]*entity.SalaryDisbursalRequest, error)
}

type disbursalServiceImpl struct {
	repos     Repositories
	txManager port.TransactionManager
	ledger    LedgerService
	audit     AuditService
	guard     port.ApprovalGuard
	publisher dispatcher.Publisher
	logger    Logger
}

// NewDisbursalService creates a new DisbursalService. guard may be nil.
func NewDisbursalService(
	repos Repositories,
	txManager port.TransactionManager,
	ledger LedgerService,
	audit AuditService,
	guard port.ApprovalGuard,
	publisher dispatcher.Publisher,
	logger Logger,
) DisbursalService {
	return &disbursalServiceImpl{
		repos:     repos,
		txManager: txManager,
		ledger:    ledger,
		audit:     audit,
		guard:     guard,
		publisher: publisherOrNoop(publisher),
		logger:    logger,
	}
}

// NormalizePayeeType maps a payee group literal to EMPLOYEE or ORG_ADMIN.
// ROLE_ prefixed spellings and any letter case are accepted.
func NormalizePayeeType(raw string) (string, bool) {
	t := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(raw)), "ROLE_")
	switch t {
	case entity.PayeeTypeEmployee, entity.PayeeTypeOrgAdmin:
		return t, true
	default:
		return "", false
	}
}

func payeeResource(payeeType string) string {
	if payeeType == entity.PayeeTypeOrgAdmin {
		return entity.ResourceOrgAdmin
	}
	return entity.ResourceEmployee
}

// CreateDisbursal snapshots payee salaries into a PENDING batch
func (s *disbursalServiceImpl) CreateDisbursal(ctx context.Context, in CreateDisbursalInput) (*entity.SalaryDisbursalRequest, error) {
	period := strings.TrimSpace(in.Period)
	if period == "" {
		return nil, apperr.NewValidation("period", "period is required")
	}
	if err := requireActor("actor", in.Actor); err != nil {
		return nil, err
	}
	if _, err := s.ledger.GetOrganizationBalance(ctx, in.OrganizationID); err != nil {
		return nil, err
	}

	req := &entity.SalaryDisbursalRequest{
		OrganizationID: in.OrganizationID,
		Period:         period,
		Status:         entity.StatusPending,
		Remarks:        strings.TrimSpace(in.Remarks),
		CreatedBy:      in.Actor.UserID,
		CreatedAt:      utcNow(),
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		existing, err := s.repos.Disbursals.FindActiveByPeriod(txCtx, in.OrganizationID, period)
		if err != nil {
			return fmt.Errorf("find active disbursal: %w", err)
		}
		if existing != nil {
			return apperr.NewDuplicatePayroll(in.OrganizationID, period, existing.Status, existing.ID)
		}

		lines, err := s.buildLines(txCtx, in.OrganizationID, in.PaymentGroups)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return apperr.NewValidation("payment_groups", "no valid payees found for disbursal")
		}
		req.Lines = lines
		req.TotalAmount = req.SumLines()

		if err := s.repos.Disbursals.Create(txCtx, req); err != nil {
			if errors.Is(err, apperr.ErrDuplicatePayroll) {
				return s.duplicateOf(txCtx, in.OrganizationID, period)
			}
			return fmt.Errorf("create disbursal: %w", err)
		}
		for _, line := range lines {
			line.DisbursalID = req.ID
			if err := s.repos.DisbursalLines.Create(txCtx, line); err != nil {
				return fmt.Errorf("create disbursal line: %w", err)
			}
		}

		s.audit.Log(txCtx, AuditEntry{
			Action:       entity.AuditCreatedSalaryDisbursal,
			ResourceType: entity.ResourceSalaryDisbursal,
			ResourceID:   req.ID,
			Actor:        in.Actor,
			Details:      fmt.Sprintf("period=%s lines=%d total=%s", period, len(lines), req.TotalAmount.String()),
		})
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to create salary disbursal", "organization_id", in.OrganizationID, "period", period, "error", err)
		return nil, err
	}

	s.logger.Info("Salary disbursal created",
		"disbursal_id", req.ID,
		"organization_id", req.OrganizationID,
		"period", period,
		"lines", len(req.Lines),
		"total", req.TotalAmount.String())

	s.publisher.DispatchAsync(ctx, event.NewEvent(event.TypeDisbursalCreated, req.ID, map[string]interface{}{
		event.KeyActorID: in.Actor.UserID,
		event.KeyOrgID:   req.OrganizationID,
		event.KeyPeriod:  period,
		event.KeyAmount:  req.TotalAmount.String(),
	}))
	return req, nil
}

// duplicateOf reports the live batch that won a concurrent insert race
func (s *disbursalServiceImpl) duplicateOf(ctx context.Context, orgID int64, period string) error {
	existing, err := s.repos.Disbursals.FindActiveByPeriod(ctx, orgID, period)
	if err != nil || existing == nil {
		return apperr.NewDuplicatePayroll(orgID, period, entity.StatusPending, 0)
	}
	return apperr.NewDuplicatePayroll(orgID, period, existing.Status, existing.ID)
}

func (s *disbursalServiceImpl) buildLines(ctx context.Context, orgID int64, groups []PaymentGroup) ([]*entity.SalaryDisbursalLine, error) {
	var lines []*entity.SalaryDisbursalLine
	seen := make(map[string]bool)

	for _, group := range groups {
		payeeType, ok := NormalizePayeeType(group.Type)
		if !ok {
			return nil, apperr.NewValidation("payment_groups", fmt.Sprintf("unknown payee type %q", group.Type))
		}

		for _, id := range group.IDs {
			key := fmt.Sprintf("%s:%d", payeeType, id)
			if seen[key] {
				return nil, apperr.NewValidation("payment_groups", fmt.Sprintf("payee %s %d listed more than once", payeeType, id))
			}
			seen[key] = true

			line, err := s.buildLine(ctx, orgID, payeeType, id)
			if err != nil {
				return nil, err
			}
			lines = append(lines, line)
		}
	}
	return lines, nil
}

func (s *disbursalServiceImpl) buildLine(ctx context.Context, orgID int64, payeeType string, id int64) (*entity.SalaryDisbursalLine, error) {
	payee, err := s.repos.Payees.GetByID(ctx, payeeType, id)
	if err != nil {
		return nil, fmt.Errorf("get payee: %w", err)
	}
	if payee == nil {
		return nil, apperr.NewNotFound(payeeResource(payeeType), id)
	}
	if payee.OrganizationID != orgID {
		return nil, apperr.NewValidation("payment_groups",
			fmt.Sprintf("%s %d does not belong to organization %d", strings.ToLower(payeeType), id, orgID))
	}

	missingGrade := apperr.NewValidation("payment_groups",
		fmt.Sprintf("salary grade missing for %s %s", strings.ToLower(payeeType), payee.Name))
	if payee.SalaryGradeID == nil {
		return nil, missingGrade
	}
	grade, err := s.repos.Grades.GetByID(ctx, *payee.SalaryGradeID)
	if err != nil {
		return nil, fmt.Errorf("get salary grade: %w", err)
	}
	if grade == nil {
		return nil, missingGrade
	}

	return &entity.SalaryDisbursalLine{
		PayeeType:   payeeType,
		PayeeID:     id,
		GrossSalary: grade.Gross(),
		Deductions:  grade.Deductions(),
		NetAmount:   grade.Net(),
		Status:      entity.LineStatusPending,
	}, nil
}

// ProcessApproval decides a PENDING batch
func (s *disbursalServiceImpl) ProcessApproval(ctx context.Context, disbursalID int64, action, comment string, actor entity.Actor) (*entity.SalaryDisbursalRequest, error) {
	if err := requireActor("actor", actor); err != nil {
		return nil, err
	}

	trigger, ok := workflow.ParseTrigger(action)
	if !ok {
		s.audit.Log(ctx, AuditEntry{
			Action:       entity.AuditInvalidActionAttempted,
			ResourceType: entity.ResourceSalaryDisbursal,
			ResourceID:   disbursalID,
			Actor:        actor,
			Details:      "action=" + action,
		})
		return nil, apperr.NewValidation("action", "invalid action")
	}

	s.audit.Log(ctx, AuditEntry{
		Action:       entity.AuditProcessApprovalStarted,
		ResourceType: entity.ResourceSalaryDisbursal,
		ResourceID:   disbursalID,
		Actor:        actor,
		Details:      "action=" + trigger.String(),
	})

	var req *entity.SalaryDisbursalRequest
	err := withDecisionLock(ctx, s.guard, s.logger, entity.ResourceSalaryDisbursal, disbursalID, func() error {
		return s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			var err error
			req, err = s.repos.Disbursals.GetByID(txCtx, disbursalID)
			if err != nil {
				return fmt.Errorf("get disbursal: %w", err)
			}
			if req == nil {
				return apperr.NewNotFound(entity.ResourceSalaryDisbursal, disbursalID)
			}
			if _, err := workflow.Decide(req.Status, trigger); err != nil {
				return apperr.NewConflict(entity.ResourceSalaryDisbursal, req.ID, req.Status)
			}

			if trigger == workflow.TriggerApprove {
				return s.approve(txCtx, req, comment, actor)
			}
			return s.reject(txCtx, req, comment, actor)
		})
	})
	if err != nil {
		s.auditFailure(ctx, disbursalID, actor, err)
		s.logger.Error("Failed to process salary disbursal", "disbursal_id", disbursalID, "action", trigger.String(), "error", err)
		return nil, err
	}

	eventType := event.TypeDisbursalApproved
	if trigger == workflow.TriggerReject {
		eventType = event.TypeDisbursalRejected
	}
	s.logger.Info("Salary disbursal processed", "disbursal_id", req.ID, "status", req.Status, "actor", actor.UserID)
	s.publisher.DispatchAsync(ctx, event.NewEvent(eventType, req.ID, map[string]interface{}{
		event.KeyActorID: actor.UserID,
		event.KeyComment: strings.TrimSpace(comment),
		event.KeyOrgID:   req.OrganizationID,
		event.KeyPeriod:  req.Period,
		event.KeyAmount:  req.TotalAmount.String(),
	}))
	return req, nil
}

// auditFailure records failures whose audit rows would otherwise be rolled
// back with the decision transaction
func (s *disbursalServiceImpl) auditFailure(ctx context.Context, disbursalID int64, actor entity.Actor, err error) {
	var funds *apperr.InsufficientFundsError
	if errors.As(err, &funds) {
		s.audit.Log(ctx, AuditEntry{
			Action:       entity.AuditApprovalFailedNoFunds,
			ResourceType: entity.ResourceSalaryDisbursal,
			ResourceID:   disbursalID,
			Actor:        actor,
			Details:      fmt.Sprintf("balance=%s required=%s", funds.Balance.String(), funds.Required.String()),
		})
		return
	}

	var integrity *apperr.IntegrityError
	if errors.As(err, &integrity) && integrity.Resource == entity.ResourceSalaryDisbursalLn {
		s.audit.Log(ctx, AuditEntry{
			Action:       entity.AuditUserMissingForLine,
			ResourceType: entity.ResourceSalaryDisbursalLn,
			ResourceID:   integrity.ID,
			Actor:        actor,
			Details:      integrity.Reason,
		})
	}
}

// lostRace reports the status a concurrent decision left the disbursal in
func (s *disbursalServiceImpl) lostRace(ctx context.Context, disbursalID int64) error {
	current, err := s.repos.Disbursals.GetByID(ctx, disbursalID)
	if err != nil {
		return fmt.Errorf("get disbursal: %w", err)
	}
	if current == nil {
		return apperr.NewNotFound(entity.ResourceSalaryDisbursal, disbursalID)
	}
	return apperr.NewConflict(entity.ResourceSalaryDisbursal, disbursalID, current.Status)
}

func (s *disbursalServiceImpl) approve(ctx context.Context, req *entity.SalaryDisbursalRequest, comment string, actor entity.Actor) error {
	org, err := s.ledger.GetOrganizationBalance(ctx, req.OrganizationID)
	if err != nil {
		return err
	}
	if !org.CanCover(req.TotalAmount) {
		return apperr.NewInsufficientFunds(org.ID, org.Balance, req.TotalAmount)
	}

	now := utcNow()
	ok, err := s.repos.Disbursals.Decide(ctx, req.ID, entity.StatusApproved, now)
	if err != nil {
		return fmt.Errorf("update disbursal status: %w", err)
	}
	if !ok {
		return s.lostRace(ctx, req.ID)
	}

	if err := s.ledger.DebitOrganization(ctx, req.OrganizationID, req.TotalAmount); err != nil {
		return err
	}

	lines, err := s.repos.DisbursalLines.ListByDisbursalID(ctx, req.ID)
	if err != nil {
		return fmt.Errorf("list disbursal lines: %w", err)
	}
	for _, line := range lines {
		if err := s.requireLinkedUser(ctx, line); err != nil {
			return err
		}
		if err := s.repos.DisbursalLines.UpdateStatus(ctx, line.ID, entity.LineStatusPaid); err != nil {
			return fmt.Errorf("mark line paid: %w", err)
		}
		line.Status = entity.LineStatusPaid
	}

	history := &entity.SalaryDisbursalApprovalHistory{
		DisbursalID: req.ID,
		Action:      entity.HistoryActionApproved,
		Comment:     commentOr(comment, entity.DefaultDisbursalApproveComment),
		ActedBy:     actor.UserID,
		Timestamp:   now,
	}
	if err := s.repos.DisbursalHistory.Create(ctx, history); err != nil {
		return fmt.Errorf("create disbursal history: %w", err)
	}

	for _, line := range lines {
		slip := &entity.SalarySlip{
			DisbursalID: req.ID,
			LineID:      line.ID,
			PayeeType:   line.PayeeType,
			PayeeID:     line.PayeeID,
			Period:      req.Period,
			NetAmount:   line.NetAmount,
			GeneratedAt: now,
		}
		if err := s.repos.Slips.Create(ctx, slip); err != nil {
			return fmt.Errorf("create salary slip: %w", err)
		}
	}

	s.audit.Log(ctx, AuditEntry{
		Action:       entity.AuditApprovedSalaryDisbursal,
		ResourceType: entity.ResourceSalaryDisbursal,
		ResourceID:   req.ID,
		Actor:        actor,
		Details:      fmt.Sprintf("period=%s lines=%d total=%s", req.Period, len(lines), req.TotalAmount.String()),
	})

	req.Status = entity.StatusApproved
	req.ProcessedAt = &now
	req.Lines = lines
	return nil
}

// requireLinkedUser fails the batch when a payee has no directory user
func (s *disbursalServiceImpl) requireLinkedUser(ctx context.Context, line *entity.SalaryDisbursalLine) error {
	payee, err := s.repos.Payees.GetByID(ctx, line.PayeeType, line.PayeeID)
	if err != nil {
		return fmt.Errorf("get payee: %w", err)
	}
	if payee == nil {
		return apperr.NewIntegrity(entity.ResourceSalaryDisbursalLn, line.ID,
			fmt.Sprintf("%s %d no longer exists", strings.ToLower(line.PayeeType), line.PayeeID))
	}
	if payee.UserID == nil {
		return apperr.NewIntegrity(entity.ResourceSalaryDisbursalLn, line.ID,
			fmt.Sprintf("%s %d has no linked user", strings.ToLower(line.PayeeType), line.PayeeID))
	}

	user, err := s.repos.Users.GetByID(ctx, *payee.UserID)
	if err != nil {
		return fmt.Errorf("get payee user: %w", err)
	}
	if user == nil {
		return apperr.NewIntegrity(entity.ResourceSalaryDisbursalLn, line.ID,
			fmt.Sprintf("user %d linked to %s %d not found", *payee.UserID, strings.ToLower(line.PayeeType), line.PayeeID))
	}
	return nil
}

func (s *disbursalServiceImpl) reject(ctx context.Context, req *entity.SalaryDisbursalRequest, comment string, actor entity.Actor) error {
	now := utcNow()
	ok, err := s.repos.Disbursals.Decide(ctx, req.ID, entity.StatusRejected, now)
	if err != nil {
		return fmt.Errorf("update disbursal status: %w", err)
	}
	if !ok {
		return s.lostRace(ctx, req.ID)
	}

	history := &entity.SalaryDisbursalApprovalHistory{
		DisbursalID: req.ID,
		Action:      entity.HistoryActionRejected,
		Comment:     commentOr(comment, entity.DefaultDisbursalRejectComment),
		ActedBy:     actor.UserID,
		Timestamp:   now,
	}
	if err := s.repos.DisbursalHistory.Create(ctx, history); err != nil {
		return fmt.Errorf("create disbursal history: %w", err)
	}

	s.audit.Log(ctx, AuditEntry{
		Action:       entity.AuditRejectedSalaryDisbursal,
		ResourceType: entity.ResourceSalaryDisbursal,
		ResourceID:   req.ID,
		Actor:        actor,
		Details:      "reason=" + history.Comment,
	})

	req.Status = entity.StatusRejected
	req.ProcessedAt = &now
	return nil
}

// GetPendingRequests lists batches awaiting a decision
func (s *disbursalServiceImpl) GetPendingRequests(ctx context.Context) ([]*entity.SalaryDisbursalRequest, error) {
	return s.repos.Disbursals.ListByStatus(ctx, entity.StatusPending)
}

// GetRequestDetails returns a batch with its lines resolved to payee names
func (s *disbursalServiceImpl) GetRequestDetails(ctx context.Context, disbursalID int64) (*entity.DisbursalDetails, error) {
	req, err := s.getDisbursal(ctx, disbursalID)
	if err != nil {
		return nil, err
	}

	lines, err := s.repos.DisbursalLines.ListByDisbursalID(ctx, req.ID)
	if err != nil {
		return nil, fmt.Errorf("list disbursal lines: %w", err)
	}
	req.Lines = lines

	details := &entity.DisbursalDetails{SalaryDisbursalRequest: req}
	if org, err := s.repos.Organizations.GetByID(ctx, req.OrganizationID); err == nil && org != nil {
		details.OrganizationName = org.Name
	}

	for _, line := range lines {
		view := &entity.DisbursalLineView{SalaryDisbursalLine: line, PayeeName: "Unknown"}
		payee, err := s.repos.Payees.GetByID(ctx, line.PayeeType, line.PayeeID)
		if err != nil {
			return nil, fmt.Errorf("get payee: %w", err)
		}
		if payee != nil {
			view.PayeeName = payee.Name
			view.PayeeEmail = payee.Email
		}
		details.LineViews = append(details.LineViews, view)
	}
	return details, nil
}

// GetHistory returns the decision log of a batch
func (s *disbursalServiceImpl) GetHistory(ctx context.Context, disbursalID int64) ([]*entity.SalaryDisbursalApprovalHistory, error) {
	if _, err := s.getDisbursal(ctx, disbursalID); err != nil {
		return nil, err
	}
	return s.repos.DisbursalHistory.ListByDisbursalID(ctx, disbursalID)
}

// GetByOrg lists the batches of one organization
func (s *disbursalServiceImpl) GetByOrg(ctx context.Context, orgID int64) ([]*entity.SalaryDisbursalRequest, error) {
	return s.repos.Disbursals.ListByOrganization(ctx, orgID)
}

func (s *disbursalServiceImpl) getDisbursal(ctx context.Context, disbursalID int64) (*entity.SalaryDisbursalRequest, error) {
	req, err := s.repos.Disbursals.GetByID(ctx, disbursalID)
	if err != nil {
		return nil, fmt.Errorf("get disbursal: %w", err)
	}
	if req == nil {
		return nil, apperr.NewNotFound(entity.ResourceSalaryDisbursal, disbursalID)
	}
	return req, nil
}

