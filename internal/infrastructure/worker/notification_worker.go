package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// NotificationRetrier redelivers notifications that have not been sent
type NotificationRetrier interface {
	RetryPending(ctx context.Context, maxAttempts int, olderThan time.Duration, limit int) (int, error)
}

// NotificationWorkerConfig holds configuration for the retry worker
type NotificationWorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	RetryAfter   time.Duration
}

// DefaultNotificationWorkerConfig returns default configuration
func DefaultNotificationWorkerConfig() NotificationWorkerConfig {
	return NotificationWorkerConfig{
		PollInterval: 30 * time.Second,
		BatchSize:    20,
		MaxAttempts:  5,
		RetryAfter:   time.Minute,
	}
}

// NotificationStats is a snapshot of the worker's counters
type NotificationStats struct {
	Rounds    int
	Delivered int
	LastRun   time.Time
	LastError error
}

// NotificationWorker periodically retries undelivered notifications
type NotificationWorker struct {
	config  NotificationWorkerConfig
	retrier NotificationRetrier
	logger  *zap.Logger

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	stats   NotificationStats
}

// NewNotificationWorker creates a retry worker
func NewNotificationWorker(config NotificationWorkerConfig, retrier NotificationRetrier, logger *zap.Logger) *NotificationWorker {
	defaults := DefaultNotificationWorkerConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.RetryAfter < 0 {
		config.RetryAfter = defaults.RetryAfter
	}
	return &NotificationWorker{
		config:  config,
		retrier: retrier,
		logger:  logger,
	}
}

// Start begins the polling loop
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("notification worker already running")
	}
	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.running = true
	w.mu.Unlock()

	w.logger.Info("NotificationWorker started",
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Int("batch_size", w.config.BatchSize),
		zap.Int("max_attempts", w.config.MaxAttempts))

	go w.pollLoop(loopCtx, w.done)
	return nil
}

// Stop terminates the loop and waits for the current round to finish
func (w *NotificationWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	stats := w.Stats()
	w.logger.Info("NotificationWorker stopped",
		zap.Int("rounds", stats.Rounds),
		zap.Int("delivered", stats.Delivered))
	return nil
}

// Name returns the worker name
func (w *NotificationWorker) Name() string {
	return "NotificationWorker"
}

// Stats returns a snapshot of the counters
func (w *NotificationWorker) Stats() NotificationStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

func (w *NotificationWorker) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// runOnce retries one batch and records the outcome
func (w *NotificationWorker) runOnce(ctx context.Context) {
	delivered, err := w.retrier.RetryPending(ctx, w.config.MaxAttempts, w.config.RetryAfter, w.config.BatchSize)

	w.mu.Lock()
	w.stats.Rounds++
	w.stats.Delivered += delivered
	w.stats.LastRun = time.Now()
	w.stats.LastError = err
	w.mu.Unlock()

	if err != nil {
		w.logger.Error("Failed to retry notifications", zap.Error(err))
		return
	}
	if delivered > 0 {
		w.logger.Info("Redelivered notifications", zap.Int("count", delivered))
	}
}
