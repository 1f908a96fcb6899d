package entity

// Status constants shared by PaymentRequest and SalaryDisbursalRequest
const (
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
	StatusRejected = "REJECTED"
)

// Approval history action constants
const (
	HistoryActionApproved = "APPROVED"
	HistoryActionRejected = "REJECTED"
)

// Disbursal decision literals accepted by ProcessApproval
const (
	DecisionApprove = "APPROVE"
	DecisionReject  = "REJECT"
)

// Salary disbursal line status constants
const (
	LineStatusPending = "PENDING"
	LineStatusPaid    = "PAID"
)

// Payee type constants for disbursal lines and slips
const (
	PayeeTypeEmployee = "EMPLOYEE"
	PayeeTypeOrgAdmin = "ORG_ADMIN"
)

// Settlement record constants
const (
	TransactionRelatedVendor = "VENDOR"
	TransactionStatusSuccess = "SUCCESS"
	ReceiptStatusPaid        = "PAID"
	BankReferencePrefix      = "BANK-"
)

// User role constants
const (
	RoleBankAdmin    = "BANK_ADMIN"
	RoleOrganization = "ORGANIZATION"
	RoleOrgAdmin     = "ORG_ADMIN"
	RoleEmployee     = "EMPLOYEE"
	RoleVendor       = "VENDOR"
)

// Notification status constants
const (
	NotificationStatusPending = "PENDING"
	NotificationStatusSent    = "SENT"
	NotificationStatusFailed  = "FAILED"
)

// Notification category constants
const (
	CategoryPaymentRequest  = "PAYMENT_REQUEST"
	CategoryPaymentReceipt  = "PAYMENT_RECEIPT"
	CategorySalaryDisbursal = "SALARY_DISBURSAL"
)

// Notification priority constants
const (
	PriorityHigh   = "HIGH"
	PriorityMedium = "MEDIUM"
	PriorityLow    = "LOW"
)

// Audit action constants
const (
	AuditCreatePaymentRequest      = "CREATE_PAYMENT_REQUEST"
	AuditApprovePayment            = "APPROVE_PAYMENT"
	AuditRejectPayment             = "REJECT_PAYMENT"
	AuditGenerateReceipt           = "GENERATE_RECEIPT"
	AuditCreatedSalaryDisbursal    = "CREATED_SALARY_DISBURSAL"
	AuditProcessApprovalStarted    = "PROCESS_APPROVAL_STARTED"
	AuditApprovedSalaryDisbursal   = "APPROVED_SALARY_DISBURSAL"
	AuditRejectedSalaryDisbursal   = "REJECTED_SALARY_DISBURSAL"
	AuditInvalidActionAttempted    = "INVALID_ACTION_ATTEMPTED"
	AuditApprovalFailedNoFunds     = "APPROVAL_FAILED_INSUFFICIENT_FUNDS"
	AuditOrganizationBalanceUpdate = "ORGANIZATION_BALANCE_UPDATED"
	AuditUserMissingForLine        = "USER_MISSING_FOR_LINE"
	AuditSalarySlipCreated         = "SALARY_SLIP_CREATED"
	AuditApprovalHistorySaved      = "APPROVAL_HISTORY_SAVED"
	AuditRejectionHistorySaved     = "REJECTION_HISTORY_SAVED"
	AuditOrganizationTopUp         = "ORGANIZATION_TOP_UP"
)

// Audit resource type constants
const (
	ResourcePaymentRequest     = "PaymentRequest"
	ResourcePaymentReceipt     = "PaymentReceipt"
	ResourceSalaryDisbursal    = "SalaryDisbursalRequest"
	ResourceSalaryDisbursalLn  = "SalaryDisbursalLine"
	ResourceDisbursalHistory   = "SalaryDisbursalApprovalHistory"
	ResourceSalarySlip         = "SalarySlip"
	ResourceOrganization       = "Organization"
	ResourceVendor             = "Vendor"
	ResourceUser               = "User"
	ResourceEmployee           = "Employee"
	ResourceOrgAdmin           = "OrgAdmin"
	ResourceSalaryGrade        = "SalaryGrade"
	ResourceNotification       = "Notification"
	ResourcePaymentTransaction = "PaymentTransaction"
)

// Default approval history comments
const (
	DefaultPaymentApproveComment   = "Approved"
	DefaultDisbursalApproveComment = "Approved by Bank Admin"
	DefaultDisbursalRejectComment  = "Rejected by Bank Admin"
)
