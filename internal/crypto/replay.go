package crypto

import (
	"context"
	"sync"
	"time"

	"github.com/alanyoungcy/tokenbet/internal/domain"
)

// cleanupEvery triggers an expiry sweep after this many recorded keys.
const cleanupEvery = 1024

// ReplayGuard is the in-process NonceStore. It only protects a single
// replica; deployments with Redis share nonces through it instead.
type ReplayGuard struct {
	mu      sync.Mutex
	expires map[string]time.Time
	inserts int
	now     func() time.Time
}

// NewReplayGuard creates an empty ReplayGuard.
func NewReplayGuard() *ReplayGuard {
	return &ReplayGuard{
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Claim records key until ttl elapses. It returns false while an earlier
// claim of key is still live.
func (g *ReplayGuard) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if exp, ok := g.expires[key]; ok && now.Before(exp) {
		return false, nil
	}

	g.expires[key] = now.Add(ttl)
	g.inserts++
	if g.inserts >= cleanupEvery {
		g.inserts = 0
		g.expireLocked(now)
	}
	return true, nil
}

// Cleanup removes expired keys.
func (g *ReplayGuard) Cleanup() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.expireLocked(g.now())
}

// Len returns the number of remembered keys.
func (g *ReplayGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.expires)
}

func (g *ReplayGuard) expireLocked(now time.Time) {
	for k, exp := range g.expires {
		if !now.Before(exp) {
			delete(g.expires, k)
		}
	}
}

var _ domain.NonceStore = (*ReplayGuard)(nil)
