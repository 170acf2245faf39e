package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process idempotency gate backed by a map with lazy
// expiry. Markers are only visible within one process.
type MemoryStore struct {
	mu      sync.Mutex
	markers map[string]time.Time

	// now is swappable for tests.
	now func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		markers: make(map[string]time.Time),
		now:     time.Now,
	}
}

// TryMarkProcessed claims the key if absent or expired.
func (s *MemoryStore) TryMarkProcessed(ctx context.Context, key string, ttl time.Duration) bool {
	if key == "" || ctx.Err() != nil {
		return false
	}
	ttl = clampTTL(ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if expiry, ok := s.markers[key]; ok && now.Before(expiry) {
		return false
	}
	s.markers[key] = now.Add(ttl)

	// Opportunistic sweep keeps the map from accumulating dead markers.
	if len(s.markers) > 1024 {
		for k, expiry := range s.markers {
			if now.After(expiry) {
				delete(s.markers, k)
			}
		}
	}
	return true
}

// Close releases nothing; it exists to satisfy Store.
func (s *MemoryStore) Close() error {
	return nil
}
