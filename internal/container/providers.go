package container

import (
	"fmt"

	"github.com/paydesk/settlement-engine/internal/application/dispatcher"
	"github.com/paydesk/settlement-engine/internal/application/port"
	"github.com/paydesk/settlement-engine/internal/application/service"
	"github.com/paydesk/settlement-engine/internal/infrastructure/export"
	infraLark "github.com/paydesk/settlement-engine/internal/infrastructure/external/lark"
	"github.com/paydesk/settlement-engine/internal/infrastructure/lock"
	"github.com/paydesk/settlement-engine/internal/infrastructure/persistence/repository"
	"github.com/paydesk/settlement-engine/internal/infrastructure/persistence/sqlite"
	"github.com/paydesk/settlement-engine/internal/infrastructure/storage"
	"github.com/paydesk/settlement-engine/internal/infrastructure/worker"
	"github.com/paydesk/settlement-engine/migrations"
	"github.com/paydesk/settlement-engine/pkg/database"
	"go.uber.org/zap"
)

// DatabaseBundle holds database-related components
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
}

// ProvideDatabase opens the database, applies the embedded migrations and
// creates the transaction manager
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if !cfg.SkipMigrations {
		if err := database.NewMigrator(db, logger).RunMigrationsFS(migrations.FS); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates every repository over db
func ProvideRepositories(db *database.DB, logger *zap.Logger) (service.Repositories, error) {
	if db == nil {
		return service.Repositories{}, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return service.Repositories{}, fmt.Errorf("logger is required")
	}

	sqlDB := db.DB
	return service.Repositories{
		Organizations:    repository.NewOrganizationRepository(sqlDB, logger),
		Vendors:          repository.NewVendorRepository(sqlDB, logger),
		Users:            repository.NewUserRepository(sqlDB, logger),
		Payees:           repository.NewPayeeRepository(sqlDB, logger),
		Grades:           repository.NewSalaryGradeRepository(sqlDB, logger),
		Payments:         repository.NewPaymentRequestRepository(sqlDB, logger),
		PaymentHistory:   repository.NewPaymentHistoryRepository(sqlDB, logger),
		Transactions:     repository.NewTransactionRepository(sqlDB, logger),
		Receipts:         repository.NewReceiptRepository(sqlDB, logger),
		Disbursals:       repository.NewDisbursalRepository(sqlDB, logger),
		DisbursalLines:   repository.NewDisbursalLineRepository(sqlDB, logger),
		DisbursalHistory: repository.NewDisbursalHistoryRepository(sqlDB, logger),
		Slips:            repository.NewSalarySlipRepository(sqlDB, logger),
		Notifications:    repository.NewNotificationRepository(sqlDB, logger),
		Audit:            repository.NewAuditRepository(sqlDB, logger),
	}, nil
}

// GuardBundle holds the approval guard and, when Redis backs it, the guard
// itself for health checks and shutdown
type GuardBundle struct {
	Guard port.ApprovalGuard
	Redis *lock.RedisGuard
}

// ProvideApprovalGuard creates the Redis guard when an address is configured
// and the in-process guard otherwise
func ProvideApprovalGuard(cfg *RedisConfig, logger *zap.Logger) (*GuardBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config is required")
	}
	if cfg.Addr == "" {
		logger.Info("Redis not configured, using in-process approval lock")
		return &GuardBundle{Guard: lock.NewMemoryGuard()}, nil
	}

	guard, err := lock.NewRedisGuard(lock.RedisConfig{
		Addr:      cfg.Addr,
		Password:  cfg.Password,
		DB:        cfg.DB,
		KeyPrefix: cfg.KeyPrefix,
	}, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("Using Redis approval lock", zap.String("addr", cfg.Addr))
	return &GuardBundle{Guard: guard, Redis: guard}, nil
}

// ProvideMessageSender creates the Lark messenger, or a log-only sender when
// Lark is not configured
func ProvideMessageSender(cfg *LarkConfig, logger *zap.Logger) (port.MessageSender, error) {
	if cfg == nil {
		return nil, fmt.Errorf("lark config is required")
	}
	if !cfg.Enabled() {
		logger.Info("Lark not configured, notifications are logged only")
		return infraLark.NewLogSender(logger), nil
	}
	return infraLark.NewMessenger(infraLark.Config{
		AppID:     cfg.AppID,
		AppSecret: cfg.AppSecret,
	}, logger), nil
}

// DocumentBundle holds export rendering and storage
type DocumentBundle struct {
	Renderer port.DocumentRenderer
	Storage  port.FileStorage
}

// ProvideDocuments creates the xlsx renderer and export storage
func ProvideDocuments(cfg *StorageConfig, logger *zap.Logger) (*DocumentBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage config is required")
	}
	if cfg.ExportDir == "" {
		return nil, fmt.Errorf("export directory is required")
	}
	return &DocumentBundle{
		Renderer: export.NewXLSXRenderer(cfg.BankName, logger),
		Storage:  storage.NewLocalFileStorage(cfg.ExportDir, logger),
	}, nil
}

// ProvideDispatcher creates the event dispatcher
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(&zapLoggerAdapter{logger: logger.Named("dispatcher")}),
	), nil
}

// ServiceBundle groups all application services
type ServiceBundle struct {
	Audit         service.AuditService
	Ledger        service.LedgerService
	Settlement    service.Settlement
	Payments      service.PaymentService
	Disbursals    service.DisbursalService
	Slips         service.SlipService
	Notifications service.NotificationService
}

// ServiceDeps holds dependencies required for creating services
type ServiceDeps struct {
	Repos      service.Repositories
	TxManager  port.TransactionManager
	Guard      port.ApprovalGuard
	Sender     port.MessageSender
	Documents  *DocumentBundle
	Dispatcher dispatcher.Dispatcher
	Logger     *zap.Logger
}

// ProvideServices creates all application services and subscribes the
// notification handlers to the dispatcher
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if deps.Sender == nil {
		return nil, fmt.Errorf("message sender is required")
	}
	if deps.Documents == nil {
		return nil, fmt.Errorf("documents are required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	log := &zapLoggerAdapter{logger: deps.Logger}
	repos := deps.Repos

	audit := service.NewAuditService(repos.Audit, log)
	ledger := service.NewLedgerService(repos.Organizations, repos.Vendors, deps.TxManager, audit, deps.Dispatcher, log)
	settlement := service.NewSettlement(ledger, repos.Transactions, repos.Receipts, deps.TxManager, audit, log)
	notifications := service.NewNotificationService(repos.Notifications, repos.Users, deps.Sender, log)

	service.NewSettlementNotifier(repos, notifications, log).Register(deps.Dispatcher)

	return &ServiceBundle{
		Audit:         audit,
		Ledger:        ledger,
		Settlement:    settlement,
		Payments:      service.NewPaymentService(repos, deps.TxManager, ledger, settlement, audit, deps.Guard, deps.Dispatcher, log),
		Disbursals:    service.NewDisbursalService(repos, deps.TxManager, ledger, audit, deps.Guard, deps.Dispatcher, log),
		Slips:         service.NewSlipService(repos, deps.Documents.Renderer, deps.Documents.Storage, log),
		Notifications: notifications,
	}, nil
}

// ProvideWorkers creates the worker manager with the notification retry
// worker registered but not started
func ProvideWorkers(cfg *NotificationConfig, retrier worker.NotificationRetrier, logger *zap.Logger) (*worker.Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("notification config is required")
	}
	if retrier == nil {
		return nil, fmt.Errorf("notification retrier is required")
	}

	manager := worker.NewManager(logger)
	manager.Register(worker.NewNotificationWorker(worker.NotificationWorkerConfig{
		PollInterval: cfg.RetryInterval,
		BatchSize:    cfg.BatchSize,
		MaxAttempts:  cfg.MaxAttempts,
		RetryAfter:   cfg.RetryAfter,
	}, retrier, logger))
	return manager, nil
}

// zapLoggerAdapter adapts zap.Logger to the key-value Logger interfaces of
// the service, dispatcher and http packages
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields. Errors keep
// their message under the key.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, isString := keysAndValues[i].(string)
		if !isString {
			continue
		}
		if err, isErr := keysAndValues[i+1].(error); isErr {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}

// NewLoggerAdapter exposes the key-value adapter to callers outside the
// container, such as the HTTP server
func NewLoggerAdapter(logger *zap.Logger) service.Logger {
	return &zapLoggerAdapter{logger: logger}
}
