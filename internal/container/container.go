package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/paydesk/settlement-engine/internal/application/dispatcher"
	"github.com/paydesk/settlement-engine/internal/application/port"
	"github.com/paydesk/settlement-engine/internal/application/service"
	"github.com/paydesk/settlement-engine/internal/infrastructure/lock"
	"github.com/paydesk/settlement-engine/internal/infrastructure/persistence/sqlite"
	"github.com/paydesk/settlement-engine/internal/infrastructure/worker"
	"github.com/paydesk/settlement-engine/pkg/database"
	"go.uber.org/zap"
)

const healthCheckTimeout = 2 * time.Second

// Container owns the engine's components. Start brings them up in
// dependency order and Close tears them down in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	// Data
	db           *database.DB
	txManager    *sqlite.DB
	repositories service.Repositories

	// External
	guard      port.ApprovalGuard
	redisGuard *lock.RedisGuard
	sender     port.MessageSender
	documents  *DocumentBundle

	// Application
	dispatcher dispatcher.Dispatcher
	services   *ServiceBundle

	workers *worker.Manager

	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// HealthStatus represents the health of all components
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer validates cfg. Components are created by Start.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes components in dependency order:
// 1. Database, migrations and repositories
// 2. Approval guard, message sender and document export
// 3. Event dispatcher
// 4. Application services and notification handlers
// 5. Workers
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	steps := []struct {
		name string
		run  func() error
	}{
		{"database", c.initDatabase},
		{"external clients", c.initExternal},
		{"dispatcher", c.initDispatcher},
		{"services", c.initServices},
		{"workers", c.initWorkers},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			c.logger.Error("Container initialization failed",
				zap.String("step", step.name),
				zap.Error(err))
			c.release()
			return fmt.Errorf("failed to initialize %s: %w", step.name, err)
		}
		c.logger.Info("Initialized", zap.String("step", step.name))
	}

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// Close shuts down all components in reverse order
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")
	errs := c.release()

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors: %v", len(errs), errs[0])
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// release stops whatever has been started so far. Start uses it to unwind
// a partial initialization.
func (c *Container) release() []error {
	var errs []error

	if c.cancel != nil {
		c.cancel()
	}

	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
		c.workers = nil
	}

	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
		c.dispatcher = nil
	}

	if c.redisGuard != nil {
		if err := c.redisGuard.Close(); err != nil {
			c.logger.Error("Failed to close redis", zap.Error(err))
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
		c.redisGuard = nil
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
		c.db = nil
	}

	return errs
}

// Ready returns true when all components are initialized
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components
func (c *Container) Health() *HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}
	set := func(name string, healthy bool, message string) {
		status.Components[name] = ComponentHealth{Healthy: healthy, Message: message}
		if !healthy {
			status.Overall = false
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
	defer cancel()

	switch {
	case c.db == nil:
		set("database", false, "not initialized")
	default:
		if err := c.db.PingContext(ctx); err != nil {
			set("database", false, fmt.Sprintf("ping failed: %v", err))
		} else {
			set("database", true, "")
		}
	}

	switch {
	case c.redisGuard != nil:
		if err := c.redisGuard.Ping(ctx); err != nil {
			set("approval_lock", false, fmt.Sprintf("redis ping failed: %v", err))
		} else {
			set("approval_lock", true, "redis")
		}
	case c.guard != nil:
		set("approval_lock", true, "in-process")
	default:
		set("approval_lock", false, "not initialized")
	}

	if c.workers != nil {
		set("workers", c.workers.IsRunning(), fmt.Sprintf("worker count: %d", c.workers.Count()))
	} else {
		set("workers", false, "not initialized")
	}

	if c.dispatcher != nil {
		set(dispatcherHealth(c.dispatcher))
	} else {
		set("dispatcher", false, "not initialized")
	}

	return status
}

// dispatcherHealth fails when a notified event type has lost its handler
func dispatcherHealth(d dispatcher.Dispatcher) (string, bool, string) {
	for _, t := range service.NotifiedEvents {
		if len(d.Handlers(t)) == 0 {
			return "dispatcher", false, fmt.Sprintf("no handler for %s", t)
		}
	}
	return "dispatcher", true, fmt.Sprintf("in flight: %d", d.InFlight())
}

func (c *Container) initDatabase() error {
	bundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}
	c.db = bundle.DB
	c.txManager = bundle.TransactionMgr

	repos, err := ProvideRepositories(c.db, c.logger)
	if err != nil {
		return err
	}
	c.repositories = repos
	return nil
}

func (c *Container) initExternal() error {
	guards, err := ProvideApprovalGuard(&c.config.Redis, c.logger.Named("lock"))
	if err != nil {
		return err
	}
	c.guard = guards.Guard
	c.redisGuard = guards.Redis

	sender, err := ProvideMessageSender(&c.config.Lark, c.logger.Named("lark"))
	if err != nil {
		return err
	}
	c.sender = sender

	documents, err := ProvideDocuments(&c.config.Storage, c.logger.Named("export"))
	if err != nil {
		return err
	}
	c.documents = documents
	return nil
}

func (c *Container) initDispatcher() error {
	disp, err := ProvideDispatcher(c.logger)
	if err != nil {
		return err
	}
	c.dispatcher = disp
	return nil
}

func (c *Container) initServices() error {
	services, err := ProvideServices(&ServiceDeps{
		Repos:      c.repositories,
		TxManager:  c.txManager,
		Guard:      c.guard,
		Sender:     c.sender,
		Documents:  c.documents,
		Dispatcher: c.dispatcher,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	c.services = services
	return nil
}

func (c *Container) initWorkers() error {
	manager, err := ProvideWorkers(&c.config.Notification, c.services.Notifications, c.logger.Named("worker"))
	if err != nil {
		return err
	}
	if err := manager.StartAll(c.ctx); err != nil {
		return err
	}
	c.workers = manager
	return nil
}

// Logger returns the container logger
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Services returns the application services. It is nil before Start.
func (c *Container) Services() *ServiceBundle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.services
}

// Repositories returns the repository set
func (c *Container) Repositories() service.Repositories {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.repositories
}

// DB returns the database handle
func (c *Container) DB() *database.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}

// Dispatcher returns the event dispatcher
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dispatcher
}
