package service

import (
	"context"
	"fmt"

	"github.com/paydesk/settlement-engine/internal/application/dispatcher"
	"github.com/paydesk/settlement-engine/internal/domain/entity"
	"github.com/paydesk/settlement-engine/internal/domain/event"
	"github.com/shopspring/decimal"
)

// SettlementNotifier turns settlement events into user notifications. It
// runs after commit, so it reloads current state instead of trusting payloads.
type SettlementNotifier struct {
	repos         Repositories
	notifications NotificationService
	logger        Logger
}

// NewSettlementNotifier creates a SettlementNotifier
func NewSettlementNotifier(repos Repositories, notifications NotificationService, logger Logger) *SettlementNotifier {
	return &SettlementNotifier{
		repos:         repos,
		notifications: notifications,
		logger:        logger,
	}
}

// NotifiedEvents lists the event types Register subscribes to
var NotifiedEvents = []event.Type{
	event.TypePaymentCreated,
	event.TypePaymentApproved,
	event.TypePaymentRejected,
	event.TypeDisbursalCreated,
	event.TypeDisbursalApproved,
	event.TypeDisbursalRejected,
}

// Register subscribes the notifier to every settlement event it handles
func (n *SettlementNotifier) Register(d dispatcher.Dispatcher) {
	d.Subscribe(event.TypePaymentCreated, "notify.payment_created", n.onPaymentCreated)
	d.Subscribe(event.TypePaymentApproved, "notify.payment_approved", n.onPaymentApproved)
	d.Subscribe(event.TypePaymentRejected, "notify.payment_rejected", n.onPaymentRejected)
	d.Subscribe(event.TypeDisbursalCreated, "notify.disbursal_created", n.onDisbursalCreated)
	d.Subscribe(event.TypeDisbursalApproved, "notify.disbursal_approved", n.onDisbursalApproved)
	d.Subscribe(event.TypeDisbursalRejected, "notify.disbursal_rejected", n.onDisbursalRejected)
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func (n *SettlementNotifier) send(ctx context.Context, in NotifyInput) {
	if _, err := n.notifications.Notify(ctx, in); err != nil {
		n.logger.Error("Failed to notify user", "recipient_id", in.RecipientID, "title", in.Title, "error", err)
	}
}

func (n *SettlementNotifier) notifyBankAdmins(ctx context.Context, title, body string, relatedID int64, category string) error {
	admins, err := n.repos.Users.ListByRole(ctx, entity.RoleBankAdmin)
	if err != nil {
		return fmt.Errorf("list bank admins: %w", err)
	}
	for _, admin := range admins {
		n.send(ctx, NotifyInput{
			RecipientID: admin.ID,
			Title:       title,
			Body:        body,
			RelatedID:   relatedID,
			Category:    category,
			Priority:    entity.PriorityMedium,
		})
	}
	return nil
}

// paymentContext loads the request with its organization and vendor
func (n *SettlementNotifier) paymentContext(ctx context.Context, paymentID int64) (*entity.PaymentRequest, *entity.Organization, *entity.Vendor, error) {
	req, err := n.repos.Payments.GetByID(ctx, paymentID)
	if err != nil || req == nil {
		return nil, nil, nil, fmt.Errorf("load payment request %d: %v", paymentID, err)
	}
	org, err := n.repos.Organizations.GetByID(ctx, req.OrganizationID)
	if err != nil || org == nil {
		return nil, nil, nil, fmt.Errorf("load organization %d: %v", req.OrganizationID, err)
	}
	vendor, err := n.repos.Vendors.GetByID(ctx, req.VendorID)
	if err != nil || vendor == nil {
		return nil, nil, nil, fmt.Errorf("load vendor %d: %v", req.VendorID, err)
	}
	return req, org, vendor, nil
}

// otherOrgAdmins returns the ORG_ADMIN users of org except skipID
func (n *SettlementNotifier) otherOrgAdmins(ctx context.Context, orgID, skipID int64) ([]*entity.User, error) {
	users, err := n.repos.Users.ListByOrganization(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("list organization users: %w", err)
	}
	var admins []*entity.User
	for _, u := range users {
		if u.Role == entity.RoleOrgAdmin && u.ID != skipID {
			admins = append(admins, u)
		}
	}
	return admins, nil
}

func (n *SettlementNotifier) onPaymentCreated(ctx context.Context, evt *event.Event) error {
	req, org, vendor, err := n.paymentContext(ctx, evt.AggregateID)
	if err != nil {
		return err
	}
	body := fmt.Sprintf("%s requested a payment of %s to vendor %s (invoice %s).",
		org.Name, money(req.Amount), vendor.Name, req.InvoiceReference)
	return n.notifyBankAdmins(ctx, "New Payment Request", body, req.ID, entity.CategoryPaymentRequest)
}

func (n *SettlementNotifier) onPaymentApproved(ctx context.Context, evt *event.Event) error {
	req, org, vendor, err := n.paymentContext(ctx, evt.AggregateID)
	if err != nil {
		return err
	}

	n.send(ctx, NotifyInput{
		RecipientID: req.RequestedBy,
		Title:       "Payment Request Approved",
		Body: fmt.Sprintf("Your payment request of %s to vendor %s has been approved. Amount deducted from organization account.",
			money(req.Amount), vendor.Name),
		RelatedID: req.ID,
		Category:  entity.CategoryPaymentRequest,
		Priority:  entity.PriorityHigh,
	})

	admins, err := n.otherOrgAdmins(ctx, org.ID, req.RequestedBy)
	if err != nil {
		return err
	}
	for _, admin := range admins {
		n.send(ctx, NotifyInput{
			RecipientID: admin.ID,
			Title:       "Payment Processed",
			Body: fmt.Sprintf("Payment of %s to vendor %s approved. New balance: %s",
				money(req.Amount), vendor.Name, money(org.Balance)),
			RelatedID: req.ID,
			Category:  entity.CategoryPaymentRequest,
			Priority:  entity.PriorityMedium,
		})
	}

	if vendor.UserID != nil {
		n.send(ctx, NotifyInput{
			RecipientID: *vendor.UserID,
			Title:       "Payment Received",
			Body: fmt.Sprintf("Payment of %s received from %s. New balance: %s",
				money(req.Amount), org.Name, money(vendor.Balance)),
			RelatedID: req.ID,
			Category:  entity.CategoryPaymentReceipt,
			Priority:  entity.PriorityHigh,
		})
	}
	return nil
}

func (n *SettlementNotifier) onPaymentRejected(ctx context.Context, evt *event.Event) error {
	req, org, vendor, err := n.paymentContext(ctx, evt.AggregateID)
	if err != nil {
		return err
	}
	reason := evt.GetPayloadString(event.KeyComment)

	n.send(ctx, NotifyInput{
		RecipientID: req.RequestedBy,
		Title:       "Payment Request Rejected",
		Body: fmt.Sprintf("Your payment request of %s to vendor %s has been rejected. Reason: %s",
			money(req.Amount), vendor.Name, reason),
		RelatedID: req.ID,
		Category:  entity.CategoryPaymentRequest,
		Priority:  entity.PriorityHigh,
	})

	admins, err := n.otherOrgAdmins(ctx, org.ID, req.RequestedBy)
	if err != nil {
		return err
	}
	for _, admin := range admins {
		n.send(ctx, NotifyInput{
			RecipientID: admin.ID,
			Title:       "Payment Rejected",
			Body: fmt.Sprintf("Payment request of %s to vendor %s rejected. Reason: %s",
				money(req.Amount), vendor.Name, reason),
			RelatedID: req.ID,
			Category:  entity.CategoryPaymentRequest,
			Priority:  entity.PriorityMedium,
		})
	}
	return nil
}

func (n *SettlementNotifier) onDisbursalCreated(ctx context.Context, evt *event.Event) error {
	req, err := n.repos.Disbursals.GetByID(ctx, evt.AggregateID)
	if err != nil || req == nil {
		return fmt.Errorf("load disbursal %d: %v", evt.AggregateID, err)
	}
	body := fmt.Sprintf("Salary disbursal for period %s totalling %s is waiting for approval.",
		req.Period, money(req.TotalAmount))
	return n.notifyBankAdmins(ctx, "New Salary Disbursal Request", body, req.ID, entity.CategorySalaryDisbursal)
}

// organizationUser picks the ORGANIZATION account user, falling back to the
// first user of the organization
func (n *SettlementNotifier) organizationUser(ctx context.Context, orgID int64) (*entity.User, error) {
	users, err := n.repos.Users.ListByOrganization(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("list organization users: %w", err)
	}
	if len(users) == 0 {
		return nil, nil
	}
	for _, u := range users {
		if u.Role == entity.RoleOrganization {
			return u, nil
		}
	}
	return users[0], nil
}

func (n *SettlementNotifier) disbursalRecipient(ctx context.Context, disbursalID int64) (*entity.SalaryDisbursalRequest, *entity.User, error) {
	req, err := n.repos.Disbursals.GetByID(ctx, disbursalID)
	if err != nil || req == nil {
		return nil, nil, fmt.Errorf("load disbursal %d: %v", disbursalID, err)
	}
	user, err := n.organizationUser(ctx, req.OrganizationID)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		n.logger.Error("Organization has no users to notify", "organization_id", req.OrganizationID, "disbursal_id", req.ID)
	}
	return req, user, nil
}

func (n *SettlementNotifier) onDisbursalApproved(ctx context.Context, evt *event.Event) error {
	req, user, err := n.disbursalRecipient(ctx, evt.AggregateID)
	if err != nil || user == nil {
		return err
	}
	lines, err := n.repos.DisbursalLines.ListByDisbursalID(ctx, req.ID)
	if err != nil {
		return fmt.Errorf("list disbursal lines: %w", err)
	}

	body := fmt.Sprintf("Your salary disbursal request for period %s has been approved by Bank Admin.\n\n"+
		"Total People: %d\nTotal Amount: %s\nSalary slips are now available for download.",
		req.Period, len(lines), money(req.TotalAmount))
	if comment := evt.GetPayloadString(event.KeyComment); comment != "" {
		body += "\n\nBank Admin Comment: " + comment
	}

	n.send(ctx, NotifyInput{
		RecipientID: user.ID,
		Title:       "Salary Request Approved",
		Body:        body,
		RelatedID:   req.ID,
		Category:    entity.CategorySalaryDisbursal,
		Priority:    entity.PriorityHigh,
	})
	return nil
}

func (n *SettlementNotifier) onDisbursalRejected(ctx context.Context, evt *event.Event) error {
	req, user, err := n.disbursalRecipient(ctx, evt.AggregateID)
	if err != nil || user == nil {
		return err
	}

	reason := evt.GetPayloadString(event.KeyComment)
	if reason == "" {
		reason = "No specific reason provided"
	}

	n.send(ctx, NotifyInput{
		RecipientID: user.ID,
		Title:       "Salary Request Rejected",
		Body: fmt.Sprintf("Your salary disbursal request for period %s (%s) has been rejected by Bank Admin.\n\n"+
			"Rejection Reason:\n%s\n\nPlease review the reason, make corrections and resubmit if needed.",
			req.Period, money(req.TotalAmount), reason),
		RelatedID: req.ID,
		Category:  entity.CategorySalaryDisbursal,
		Priority:  entity.PriorityHigh,
	})
	return nil
}
