package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_FileAndDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
auth:
  jwt_secret: "0123456789abcdef0123"
redis:
  addr: "localhost:6379"
notification:
  max_attempts: 3
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "data/settlement.db", cfg.Database.Path)
	assert.Equal(t, 12*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "settlement:approval:", cfg.Redis.KeyPrefix)
	assert.Equal(t, 3, cfg.Notification.MaxAttempts)
	assert.Equal(t, 20, cfg.Notification.BatchSize)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-environment-secret")
	t.Setenv("DATABASE_PATH", "/tmp/settlement-test.db")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-environment-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, "/tmp/settlement-test.db", cfg.Database.Path)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:       ServerConfig{Port: 8080},
			Database:     DatabaseConfig{Path: "data/settlement.db"},
			Auth:         AuthConfig{JWTSecret: "0123456789abcdef"},
			Storage:      StorageConfig{ExportDir: "exports"},
			Notification: NotificationConfig{MaxAttempts: 5},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"short secret", func(c *Config) { c.Auth.JWTSecret = "short" }, "jwt_secret"},
		{"no database", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"lark without secret", func(c *Config) { c.Lark.AppID = "cli_123" }, "lark.app_secret"},
		{"no attempts", func(c *Config) { c.Notification.MaxAttempts = 0 }, "max_attempts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestToContainerConfig(t *testing.T) {
	cfg := &Config{
		Database:     DatabaseConfig{Path: "data/x.db", MaxOpenConns: 3},
		Lark:         LarkConfig{AppID: "cli_1", AppSecret: "s"},
		Redis:        RedisConfig{Addr: "redis:6379", KeyPrefix: "p:"},
		Storage:      StorageConfig{ExportDir: "out", BankName: "First Bank"},
		Notification: NotificationConfig{MaxAttempts: 4, BatchSize: 9, RetryInterval: time.Second},
	}

	cc := cfg.ToContainerConfig()
	assert.Equal(t, "data/x.db", cc.Database.Path)
	assert.Equal(t, 3, cc.Database.MaxOpenConns)
	assert.True(t, cc.Lark.Enabled())
	assert.Equal(t, "redis:6379", cc.Redis.Addr)
	assert.Equal(t, "First Bank", cc.Storage.BankName)
	assert.Equal(t, 4, cc.Notification.MaxAttempts)
	assert.NoError(t, cc.Validate())
}
