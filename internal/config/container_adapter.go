package config

import (
	"github.com/paydesk/settlement-engine/internal/container"
)

// ToContainerConfig converts the file-based configuration into the
// container's configuration structure
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
		},
		Lark: container.LarkConfig{
			AppID:     c.Lark.AppID,
			AppSecret: c.Lark.AppSecret,
		},
		Redis: container.RedisConfig{
			Addr:      c.Redis.Addr,
			Password:  c.Redis.Password,
			DB:        c.Redis.DB,
			KeyPrefix: c.Redis.KeyPrefix,
		},
		Storage: container.StorageConfig{
			ExportDir: c.Storage.ExportDir,
			BankName:  c.Storage.BankName,
		},
		Notification: container.NotificationConfig{
			RetryInterval: c.Notification.RetryInterval,
			RetryAfter:    c.Notification.RetryAfter,
			MaxAttempts:   c.Notification.MaxAttempts,
			BatchSize:     c.Notification.BatchSize,
		},
	}
}
