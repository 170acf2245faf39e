// Package idempotency provides the shared "first caller wins" gate the
// orchestrator consults before producing side effects for an event. Backends:
// an in-process map for tests and single-node installs, Redis for
// multi-replica deployments, and Badger for single-node installs that want
// the gate to survive restarts.
package idempotency

import (
	"context"
	"time"
)

const (
	// DefaultTTL bounds how long a processed marker is remembered.
	DefaultTTL = 24 * time.Hour

	// MinTTL is the shortest accepted marker lifetime.
	MinTTL = time.Second
)

// Store is the idempotency gate. TryMarkProcessed returns true exactly once
// per key among concurrent callers until the marker expires. Backend errors
// return false so a marker is never claimed spuriously.
type Store interface {
	TryMarkProcessed(ctx context.Context, key string, ttl time.Duration) bool
	Close() error
}

// clampTTL applies the default and minimum marker lifetimes.
func clampTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTTL
	}
	if ttl < MinTTL {
		return MinTTL
	}
	return ttl
}
