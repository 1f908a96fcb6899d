package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/paydesk/settlement-engine/internal/application/service"
	"github.com/paydesk/settlement-engine/internal/domain/entity"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handlers contains all HTTP request handlers
type Handlers struct {
	services Services
	health   HealthFunc
	logger   Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, health HealthFunc, logger Logger) *Handlers {
	return &Handlers{services: services, health: health, logger: logger}
}

// CreatePaymentRequest is the body of POST /payments
type CreatePaymentRequest struct {
	OrganizationID   int64           `json:"organization_id" binding:"required"`
	VendorID         int64           `json:"vendor_id" binding:"required"`
	Amount           decimal.Decimal `json:"amount"`
	InvoiceReference string          `json:"invoice_reference"`
}

// DecisionRequest is the body of approve/reject calls
type DecisionRequest struct {
	Comment string `json:"comment"`
}

// TopUpRequest is the body of POST /organizations/:id/top-up
type TopUpRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// PaymentGroupRequest selects payees of one type for a disbursal
type PaymentGroupRequest struct {
	Type string  `json:"type" binding:"required"`
	IDs  []int64 `json:"ids"`
}

// CreateDisbursalRequest is the body of POST /disbursals
type CreateDisbursalRequest struct {
	OrganizationID int64                 `json:"organization_id" binding:"required"`
	Period         string                `json:"period" binding:"required,period"`
	Remarks        string                `json:"remarks"`
	PaymentGroups  []PaymentGroupRequest `json:"payment_groups" binding:"dive"`
}

// DisbursalDecisionRequest is the body of POST /disbursals/:id/decision
type DisbursalDecisionRequest struct {
	Action  string `json:"action" binding:"required"`
	Comment string `json:"comment"`
}

// ApprovalResponse is returned when a payment is approved
type ApprovalResponse struct {
	Request *entity.PaymentRequest `json:"request"`
	Receipt *entity.PaymentReceipt `json:"receipt"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string      `json:"status"`
	Timestamp  string      `json:"timestamp"`
	Components interface{} `json:"components,omitempty"`
}

func paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid id", nil)
		return 0, false
	}
	return id, true
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	resp := HealthResponse{Status: "healthy", Timestamp: time.Now().UTC().Format(time.RFC3339)}
	if h.health == nil {
		respond(c, http.StatusOK, resp)
		return
	}

	healthy, detail := h.health()
	resp.Components = detail
	if !healthy {
		resp.Status = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, Response{Success: false, Data: resp, Error: "service unhealthy"})
		return
	}
	respond(c, http.StatusOK, resp)
}

// CreatePayment handles POST /payments
func (h *Handlers) CreatePayment(c *gin.Context) {
	var req CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}

	created, err := h.services.Payments.CreateRequest(c.Request.Context(), service.CreatePaymentInput{
		OrganizationID:   req.OrganizationID,
		VendorID:         req.VendorID,
		Amount:           req.Amount,
		InvoiceReference: req.InvoiceReference,
		Requester:        actorFrom(c),
	})
	if err != nil {
		h.fail(c, "create payment", err)
		return
	}
	respond(c, http.StatusCreated, created)
}

// ListPayments handles GET /payments
func (h *Handlers) ListPayments(c *gin.Context) {
	list, err := h.services.Payments.GetAllRequests(c.Request.Context())
	if err != nil {
		h.fail(c, "list payments", err)
		return
	}
	respond(c, http.StatusOK, list)
}

// ListPendingPayments handles GET /payments/pending
func (h *Handlers) ListPendingPayments(c *gin.Context) {
	list, err := h.services.Payments.GetPendingRequests(c.Request.Context())
	if err != nil {
		h.fail(c, "list pending payments", err)
		return
	}
	respond(c, http.StatusOK, list)
}

// GetPayment handles GET /payments/:id
func (h *Handlers) GetPayment(c *gin.Context) {
	id, valid := paramID(c)
	if !valid {
		return
	}
	req, err := h.services.Payments.GetRequest(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "get payment", err)
		return
	}
	respond(c, http.StatusOK, req)
}

// ApprovePayment handles POST /payments/:id/approve
func (h *Handlers) ApprovePayment(c *gin.Context) {
	id, valid := paramID(c)
	if !valid {
		return
	}
	var body DecisionRequest
	if err := c.ShouldBindJSON(&body); err != nil && c.Request.ContentLength > 0 {
		badRequest(c, "invalid request body", err)
		return
	}

	req, receipt, err := h.services.Payments.Approve(c.Request.Context(), id, body.Comment, actorFrom(c))
	if err != nil {
		h.fail(c, "approve payment", err)
		return
	}
	respond(c, http.StatusOK, ApprovalResponse{Request: req, Receipt: receipt})
}

// RejectPayment handles POST /payments/:id/reject
func (h *Handlers) RejectPayment(c *gin.Context) {
	id, valid := paramID(c)
	if !valid {
		return
	}
	var body DecisionRequest
	if err := c.ShouldBindJSON(&body); err != nil && c.Request.ContentLength > 0 {
		badRequest(c, "invalid request body", err)
		return
	}

	req, err := h.services.Payments.Reject(c.Request.Context(), id, body.Comment, actorFrom(c))
	if err != nil {
		h.fail(c, "reject payment", err)
		return
	}
	respond(c, http.StatusOK, req)
}

// GetReceipt handles GET /payments/:id/receipt
func (h *Handlers) GetReceipt(c *gin.Context) {
	id, valid := paramID(c)
	if !valid {
		return
	}
	receipt, err := h.services.Payments.GetReceipt(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "get receipt", err)
		return
	}
	respond(c, http.StatusOK, receipt)
}

// ExportReceipt handles GET /payments/:id/receipt/export
func (h *Handlers) ExportReceipt(c *gin.Context) {
	id, valid := paramID(c)
	if !valid {
		return
	}
	doc, err := h.services.Slips.ExportReceipt(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "export receipt", err)
		return
	}
	sendDocument(c, doc)
}

// GetPaymentHistory handles GET /payments/:id/history
func (h *Handlers) GetPaymentHistory(c *gin.Context) {
	id, valid := paramID(c)
	if !valid {
		return
	}
	history, err := h.services.Payments.GetHistory(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "payment history", err)
		return
	}
	respond(c, http.StatusOK, history)
}

// ListOrganizationPayments handles GET /organizations/:id/payments
func (h *Handlers) ListOrganizationPayments(c *gin.Context) {
	id, valid := paramID(c)
	if !valid {
		return
	}
	list, err := h.services.Payments.GetRequestsByOrg(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "organization payments", err)
		return
	}
	respond(c, http.StatusOK, list)
}

// ListOrganizationReceipts handles GET /organizations/:id/receipts
func (h *Handlers) ListOrganizationReceipts(c *gin.Context) {
	id, valid := paramID(c)
	if !valid {
		return
	}
	list, err := h.services.Payments.GetReceiptsByOrg(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "organization receipts", err)
		return
	}
	respond(c, http.StatusOK, list)
}

// ListOrganizationDisbursals handles GET /organizations/:id/disbursals
func (h *Handlers) ListOrganizationDisbursals(c *gin.Context) {
	id, valid := paramID(c)
	if !valid {
		return
	}
	list, err := h.services.Disbursals.GetByOrg(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "organization disbursals", err)
		return
	}
	respond(c, http.StatusOK, list)
}

// GetOrganizationBalance handles GET /organizations/:id/balance
func (h *Handlers) GetOrganizationBalance(c *gin.Context) {
	id, valid := paramID(c)
	if !valid {
		return
	}
	org, err := h.services.Ledger.GetOrganizationBalance(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "organization balance", err)
		return
	}
	respond(c, http.StatusOK, org)
}

// TopUp handles POST /organizations/:id/top-up
func (h *Handlers) TopUp(c *gin.Context) {
	id, valid := paramID(c)
	if !valid {
		return
	}
	var body TopUpRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}

	org, err := h.services.Ledger.TopUp(c.Request.Context(), id, body.Amount, actorFrom(c))
	if err != nil {
		h.fail(c, "top up", err)
		return
	}
	respond(c, http.StatusOK, org)
}

// CreateDisbursal handles POST /disbursals
func (h *Handlers) CreateDisbursal(c *gin.Context) {
	var req CreateDisbursalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}

	groups := make([]service.PaymentGroup, 0, len(req.PaymentGroups))
	for _, g := range req.PaymentGroups {
		groups = append(groups, service.PaymentGroup{Type: g.Type, IDs: g.IDs})
	}

	created, err := h.services.Disbursals.CreateDisbursal(c.Request.Context(), service.CreateDisbursalInput{
		OrganizationID: req.OrganizationID,
		Period:         req.Period,
		Remarks:        req.Remarks,
		PaymentGroups:  groups,
		Actor:          actorFrom(c),
	})
	if err != nil {
		h.fail(c, "create disbursal", err)
		return
	}
	respond(c, http.StatusCreated, created)
}

// ListPendingDisbursals handles GET /disbursals/pending
func (h *Handlers) ListPendingDisbursals(c *gin.Context) {
	list, err := h.services.Disbursals.GetPendingRequests(c.Request.Context())
	if err != nil {
		h.fail(c, "list pending disbursals", err)
		return
	}
	respond(c, http.StatusOK, list)
}

// GetDisbursal handles GET /disbursals/:id
func (h *Handlers) GetDisbursal(c *gin.Context) {
	id, valid := paramID(c)
	if !valid {
		return
	}
	details, err := h.services.Disbursals.GetRequestDetails(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "get disbursal", err)
		return
	}
	respond(c, http.StatusOK, details)
}

// GetDisbursalHistory handles GET /disbursals/:id/history
func (h *Handlers) GetDisbursalHistory(c *gin.Context) {
	id, valid := paramID(c)
	if !valid {
		return
	}
	history, err := h.services.Disbursals.GetHistory(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "disbursal history", err)
		return
	}
	respond(c, http.StatusOK, history)
}

// DecideDisbursal handles POST /disbursals/:id/decision
func (h *Handlers) DecideDisbursal(c *gin.Context) {
	id, valid := paramID(c)
	if !valid {
		return
	}
	var body DisbursalDecisionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}

	req, err := h.services.Disbursals.ProcessApproval(c.Request.Context(), id, body.Action, body.Comment, actorFrom(c))
	if err != nil {
		h.fail(c, "disbursal decision", err)
		return
	}
	respond(c, http.StatusOK, req)
}

// ListSlips handles GET /slips?payee_type=&payee_id=
func (h *Handlers) ListSlips(c *gin.Context) {
	payeeID, err := strconv.ParseInt(c.Query("payee_id"), 10, 64)
	if err != nil {
		badRequest(c, "invalid payee_id", nil)
		return
	}
	slips, err := h.services.Slips.GetSlipsByPayee(c.Request.Context(), c.Query("payee_type"), payeeID)
	if err != nil {
		h.fail(c, "list slips", err)
		return
	}
	respond(c, http.StatusOK, slips)
}

// GetSlip handles GET /slips/:id
func (h *Handlers) GetSlip(c *gin.Context) {
	id, valid := paramID(c)
	if !valid {
		return
	}
	detail, err := h.services.Slips.GetSlipDetails(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "get slip", err)
		return
	}
	respond(c, http.StatusOK, detail)
}

// ExportSlip handles GET /slips/:id/export
func (h *Handlers) ExportSlip(c *gin.Context) {
	id, valid := paramID(c)
	if !valid {
		return
	}
	doc, err := h.services.Slips.ExportSlip(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "export slip", err)
		return
	}
	sendDocument(c, doc)
}

// ListNotifications handles GET /notifications for the calling user
func (h *Handlers) ListNotifications(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			badRequest(c, "invalid limit", nil)
			return
		}
		limit = n
	}

	list, err := h.services.Notifications.ListForUser(c.Request.Context(), actorFrom(c).UserID, limit)
	if err != nil {
		h.fail(c, "list notifications", err)
		return
	}
	respond(c, http.StatusOK, list)
}

// MarkNotificationRead handles POST /notifications/:id/read
func (h *Handlers) MarkNotificationRead(c *gin.Context) {
	id, valid := paramID(c)
	if !valid {
		return
	}
	if err := h.services.Notifications.MarkRead(c.Request.Context(), id, actorFrom(c)); err != nil {
		h.fail(c, "mark notification read", err)
		return
	}
	respond(c, http.StatusOK, gin.H{"id": id, "read": true})
}

// ListAudit handles GET /audit/:type/:id
func (h *Handlers) ListAudit(c *gin.Context) {
	id, valid := paramID(c)
	if !valid {
		return
	}
	logs, err := h.services.Audit.ListByResource(c.Request.Context(), c.Param("type"), id)
	if err != nil {
		h.fail(c, "list audit", err)
		return
	}
	respond(c, http.StatusOK, logs)
}

func sendDocument(c *gin.Context, doc *service.ExportedDocument) {
	c.Header("Content-Disposition", `attachment; filename="`+doc.FileName+`"`)
	c.Data(http.StatusOK, xlsxContentType, doc.Content)
}
