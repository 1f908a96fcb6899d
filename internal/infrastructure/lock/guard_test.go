package lock

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMemoryGuard_TryLock(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGuard()

	ok, err := g.TryLock(ctx, "PaymentRequest:1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.TryLock(ctx, "PaymentRequest:1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second holder must be refused")

	ok, err = g.TryLock(ctx, "PaymentRequest:2", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "other keys are independent")

	require.NoError(t, g.Unlock(ctx, "PaymentRequest:1"))
	ok, err = g.TryLock(ctx, "PaymentRequest:1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryGuard_Expiry(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGuard()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }

	ok, _ := g.TryLock(ctx, "k", 30*time.Second)
	require.True(t, ok)

	now = now.Add(31 * time.Second)
	ok, _ = g.TryLock(ctx, "k", 30*time.Second)
	assert.True(t, ok, "expired lock can be taken over")
}

func TestMemoryGuard_SingleWinner(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGuard()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := g.TryLock(ctx, "SalaryDisbursalRequest:7", time.Minute); ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestRedisGuard(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	ctx := context.Background()
	prefix := "test:approval:" + uuid.NewString() + ":"
	first, err := NewRedisGuard(RedisConfig{Addr: addr, KeyPrefix: prefix}, zap.NewNop())
	require.NoError(t, err)
	defer first.Close()
	second, err := NewRedisGuard(RedisConfig{Addr: addr, KeyPrefix: prefix}, zap.NewNop())
	require.NoError(t, err)
	defer second.Close()

	ok, err := first.TryLock(ctx, "PaymentRequest:1", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.TryLock(ctx, "PaymentRequest:1", 5*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	// a guard that never acquired the key cannot release it
	require.NoError(t, second.Unlock(ctx, "PaymentRequest:1"))
	ok, err = second.TryLock(ctx, "PaymentRequest:1", 5*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, first.Unlock(ctx, "PaymentRequest:1"))
	ok, err = second.TryLock(ctx, "PaymentRequest:1", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, second.Unlock(ctx, "PaymentRequest:1"))
}
