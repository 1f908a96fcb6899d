// Package container wires the settlement engine together and owns the
// lifecycle of its database, background workers and event dispatcher.
package container

import (
	"fmt"
	"time"
)

// Config holds all configuration for the Container
type Config struct {
	Database     DatabaseConfig
	Lark         LarkConfig
	Redis        RedisConfig
	Storage      StorageConfig
	Notification NotificationConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// SkipMigrations leaves the schema untouched on start
	SkipMigrations bool
}

// LarkConfig holds Lark credentials. Delivery falls back to logging when
// AppID is empty.
type LarkConfig struct {
	AppID     string
	AppSecret string
}

// Enabled reports whether Lark delivery is configured
func (c LarkConfig) Enabled() bool {
	return c.AppID != ""
}

// RedisConfig holds the approval lock backend. An empty Addr selects the
// in-process lock.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// StorageConfig holds exported document settings
type StorageConfig struct {
	// ExportDir is the base directory for rendered slips and receipts
	ExportDir string

	// BankName is printed on every exported document
	BankName string
}

// NotificationConfig holds the retry worker settings
type NotificationConfig struct {
	RetryInterval time.Duration
	RetryAfter    time.Duration
	MaxAttempts   int
	BatchSize     int
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/settlement.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			KeyPrefix: "settlement:approval:",
		},
		Storage: StorageConfig{
			ExportDir: "exports",
			BankName:  "Settlement Bank",
		},
		Notification: NotificationConfig{
			RetryInterval: 30 * time.Second,
			RetryAfter:    time.Minute,
			MaxAttempts:   5,
			BatchSize:     20,
		},
	}
}

// Validate checks that required configuration values are present
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Lark.Enabled() && c.Lark.AppSecret == "" {
		return fmt.Errorf("lark.app_secret is required when lark.app_id is set")
	}
	if c.Storage.ExportDir == "" {
		return fmt.Errorf("storage.export_dir is required")
	}
	if c.Notification.MaxAttempts <= 0 {
		return fmt.Errorf("notification.max_attempts must be positive")
	}
	return nil
}
