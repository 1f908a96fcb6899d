package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockRetrier struct {
	mu    sync.Mutex
	calls int
	args  []int
	fn    func() (int, error)
}

func (m *mockRetrier) RetryPending(ctx context.Context, maxAttempts int, olderThan time.Duration, limit int) (int, error) {
	m.mu.Lock()
	m.calls++
	m.args = []int{maxAttempts, limit}
	m.mu.Unlock()
	if m.fn != nil {
		return m.fn()
	}
	return 0, nil
}

func (m *mockRetrier) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func TestNotificationWorker_Defaults(t *testing.T) {
	w := NewNotificationWorker(NotificationWorkerConfig{}, &mockRetrier{}, zap.NewNop())
	assert.Equal(t, DefaultNotificationWorkerConfig().PollInterval, w.config.PollInterval)
	assert.Equal(t, 20, w.config.BatchSize)
	assert.Equal(t, 5, w.config.MaxAttempts)
	assert.Equal(t, "NotificationWorker", w.Name())
}

func TestNotificationWorker_RunOnce(t *testing.T) {
	retrier := &mockRetrier{fn: func() (int, error) { return 3, nil }}
	w := NewNotificationWorker(NotificationWorkerConfig{BatchSize: 7, MaxAttempts: 2}, retrier, zap.NewNop())

	w.runOnce(context.Background())
	w.runOnce(context.Background())

	stats := w.Stats()
	assert.Equal(t, 2, stats.Rounds)
	assert.Equal(t, 6, stats.Delivered)
	assert.NoError(t, stats.LastError)
	assert.Equal(t, []int{2, 7}, retrier.args)

	retrier.fn = func() (int, error) { return 0, errors.New("database is locked") }
	w.runOnce(context.Background())
	assert.Error(t, w.Stats().LastError)
}

func TestNotificationWorker_StartStop(t *testing.T) {
	retrier := &mockRetrier{}
	w := NewNotificationWorker(NotificationWorkerConfig{PollInterval: 5 * time.Millisecond}, retrier, zap.NewNop())

	require.NoError(t, w.Start(context.Background()))
	assert.Error(t, w.Start(context.Background()), "double start")

	assert.Eventually(t, func() bool { return retrier.Calls() >= 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, w.Stop())
	after := retrier.Calls()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, retrier.Calls(), "no rounds after Stop")
	assert.NoError(t, w.Stop(), "second stop is a no-op")
}

func TestManager_Lifecycle(t *testing.T) {
	m := NewManager(zap.NewNop())
	retrier := &mockRetrier{}
	m.Register(NewNotificationWorker(NotificationWorkerConfig{PollInterval: time.Hour}, retrier, zap.NewNop()))
	assert.Equal(t, 1, m.Count())
	assert.False(t, m.IsRunning())

	require.NoError(t, m.StartAll(context.Background()))
	assert.True(t, m.IsRunning())
	assert.Error(t, m.StartAll(context.Background()))

	require.NoError(t, m.StopAll())
	assert.False(t, m.IsRunning())
	assert.NoError(t, m.StopAll())
}
