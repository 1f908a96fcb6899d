package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paydesk/settlement-engine/internal/application/port"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the key only while it still holds our token, so a
// lock that expired and was taken by another process is left alone
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisGuard serialises approval decisions across processes with SET NX
type RedisGuard struct {
	client    *redis.Client
	keyPrefix string
	logger    *zap.Logger

	mu     sync.Mutex
	tokens map[string]string
}

// NewRedisGuard connects to Redis and returns a guard
func NewRedisGuard(cfg RedisConfig, logger *zap.Logger) (*RedisGuard, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisGuardWithClient(client, cfg.KeyPrefix, logger), nil
}

// NewRedisGuardWithClient creates a guard over an existing client
func NewRedisGuardWithClient(client *redis.Client, keyPrefix string, logger *zap.Logger) *RedisGuard {
	if keyPrefix == "" {
		keyPrefix = "settlement:approval:"
	}
	return &RedisGuard{
		client:    client,
		keyPrefix: keyPrefix,
		logger:    logger,
		tokens:    make(map[string]string),
	}
}

// TryLock acquires key for ttl
func (g *RedisGuard) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	token := uuid.NewString()
	ok, err := g.client.SetNX(ctx, g.keyPrefix+key, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire approval lock: %w", err)
	}
	if !ok {
		g.logger.Info("Approval lock busy", zap.String("key", key))
		return false, nil
	}

	g.mu.Lock()
	g.tokens[key] = token
	g.mu.Unlock()
	return true, nil
}

// Unlock releases key if this guard still owns it
func (g *RedisGuard) Unlock(ctx context.Context, key string) error {
	g.mu.Lock()
	token, ok := g.tokens[key]
	delete(g.tokens, key)
	g.mu.Unlock()
	if !ok {
		return nil
	}

	if err := releaseScript.Run(ctx, g.client, []string{g.keyPrefix + key}, token).Err(); err != nil {
		return fmt.Errorf("failed to release approval lock: %w", err)
	}
	return nil
}

// Ping checks the Redis connection
func (g *RedisGuard) Ping(ctx context.Context) error {
	return g.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (g *RedisGuard) Close() error {
	return g.client.Close()
}

var _ port.ApprovalGuard = (*RedisGuard)(nil)
