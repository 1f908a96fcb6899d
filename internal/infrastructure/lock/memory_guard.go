package lock

import (
	"context"
	"sync"
	"time"

	"github.com/paydesk/settlement-engine/internal/application/port"
)

// MemoryGuard is the single-process approval guard
type MemoryGuard struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

// NewMemoryGuard creates an in-memory guard
func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
}

// TryLock acquires key for ttl unless a live holder exists
func (g *MemoryGuard) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if exp, held := g.expires[key]; held && now.Before(exp) {
		return false, nil
	}

	// drop expired entries so the map does not grow with every request id
	for k, exp := range g.expires {
		if !now.Before(exp) {
			delete(g.expires, k)
		}
	}

	g.expires[key] = now.Add(ttl)
	return true, nil
}

// Unlock releases key
func (g *MemoryGuard) Unlock(ctx context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.expires, key)
	return nil
}

var _ port.ApprovalGuard = (*MemoryGuard)(nil)
