// Package http exposes the settlement services over a JSON API.
// Handlers translate requests into service calls and map typed failures to
// status codes; they hold no business rules.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/paydesk/settlement-engine/internal/application/service"
	"github.com/paydesk/settlement-engine/internal/domain/entity"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Services groups the application services the API calls into
type Services struct {
	Payments      service.PaymentService
	Disbursals    service.DisbursalService
	Ledger        service.LedgerService
	Slips         service.SlipService
	Notifications service.NotificationService
	Audit         service.AuditService
}

// HealthFunc reports overall health plus a component breakdown
type HealthFunc func() (healthy bool, detail interface{})

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	tokens     *TokenService
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, services Services, tokens *TokenService, health HealthFunc, logger Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	SetupValidator()

	s := &Server{
		config: config,
		router: gin.New(),
		tokens: tokens,
		logger: logger,
	}

	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
	s.setupRoutes(NewHandlers(services, health, logger))

	return s
}

// loggingMiddleware logs one line per request
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		)
	}
}

func (s *Server) setupRoutes(h *Handlers) {
	s.router.GET("/health", h.HealthCheck)

	api := s.router.Group("/api/v1")
	api.GET("/health", h.HealthCheck)

	authed := api.Group("")
	authed.Use(ActorMiddleware(s.tokens))

	bank := RequireRole(entity.RoleBankAdmin)
	requester := RequireRole(entity.RoleOrganization, entity.RoleOrgAdmin)

	payments := authed.Group("/payments")
	{
		payments.POST("", requester, h.CreatePayment)
		payments.GET("", h.ListPayments)
		payments.GET("/pending", bank, h.ListPendingPayments)
		payments.GET("/:id", h.GetPayment)
		payments.POST("/:id/approve", bank, h.ApprovePayment)
		payments.POST("/:id/reject", bank, h.RejectPayment)
		payments.GET("/:id/receipt", h.GetReceipt)
		payments.GET("/:id/receipt/export", h.ExportReceipt)
		payments.GET("/:id/history", h.GetPaymentHistory)
	}

	orgs := authed.Group("/organizations")
	{
		orgs.GET("/:id/payments", h.ListOrganizationPayments)
		orgs.GET("/:id/receipts", h.ListOrganizationReceipts)
		orgs.GET("/:id/disbursals", h.ListOrganizationDisbursals)
		orgs.GET("/:id/balance", h.GetOrganizationBalance)
		orgs.POST("/:id/top-up", bank, h.TopUp)
	}

	disbursals := authed.Group("/disbursals")
	{
		disbursals.POST("", requester, h.CreateDisbursal)
		disbursals.GET("/pending", bank, h.ListPendingDisbursals)
		disbursals.GET("/:id", h.GetDisbursal)
		disbursals.GET("/:id/history", h.GetDisbursalHistory)
		disbursals.POST("/:id/decision", bank, h.DecideDisbursal)
	}

	slips := authed.Group("/slips")
	{
		slips.GET("", h.ListSlips)
		slips.GET("/:id", h.GetSlip)
		slips.GET("/:id/export", h.ExportSlip)
	}

	authed.GET("/notifications", h.ListNotifications)
	authed.POST("/notifications/:id/read", h.MarkNotificationRead)

	authed.GET("/audit/:type/:id", bank, h.ListAudit)
}

// Start starts the HTTP server and blocks until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
