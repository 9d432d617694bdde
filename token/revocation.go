package token

import (
	"context"
	"sync"
	"time"
)

// Registry tracks tokens that must be rejected before their natural expiry.
// A shared store could satisfy the same contract for multi-instance deployments.
type Registry interface {
	// Revoke marks rawToken as unusable. expiresAt is when the token would stop
	// verifying anyway; the zero time means unknown. Revoking twice is a no-op.
	Revoke(rawToken string, expiresAt time.Time)
	IsRevoked(rawToken string) bool
}

// InMemoryRegistry is a process-local Registry. Entries are lost on restart.
type InMemoryRegistry struct {
	revoked map[string]time.Time
	mu      sync.RWMutex
}

var _ Registry = (*InMemoryRegistry)(nil)

func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{
		revoked: make(map[string]time.Time),
	}
}

func (r *InMemoryRegistry) Revoke(rawToken string, expiresAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.revoked[rawToken]; exists {
		return
	}
	r.revoked[rawToken] = expiresAt
}

func (r *InMemoryRegistry) IsRevoked(rawToken string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.revoked[rawToken]
	return exists
}

// Len returns the number of revoked tokens held.
func (r *InMemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.revoked)
}

// Sweep forgets tokens whose expiry has passed, since verification already rejects them.
// Entries with an unknown expiry are kept. It returns how many entries were removed.
func (r *InMemoryRegistry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for raw, exp := range r.revoked {
		if !exp.IsZero() && now.After(exp) {
			delete(r.revoked, raw)
			removed++
		}
	}
	return removed
}

// SweepEvery calls Sweep on every tick until ctx is done.
// onSweep, when set, receives the number of entries removed by each pass.
func (r *InMemoryRegistry) SweepEvery(ctx context.Context, interval time.Duration, onSweep func(removed int)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			removed := r.Sweep(now)
			if onSweep != nil {
				onSweep(removed)
			}
		}
	}
}
