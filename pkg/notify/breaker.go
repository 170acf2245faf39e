package notify

import (
	"sync"
	"time"
)

// BreakerConfig enables the publish circuit breaker. A zero Threshold leaves
// the breaker disabled.
type BreakerConfig struct {
	// Threshold is the number of consecutive publish failures that opens the
	// breaker.
	Threshold int

	// ResetInterval is how long the breaker stays open before allowing a
	// probe publish.
	ResetInterval time.Duration
}

// DefaultResetInterval applies when a breaker is enabled without an interval.
const DefaultResetInterval = 30 * time.Second

// breaker fails publishes fast after a run of consecutive failures. All
// methods are nil-safe; a nil breaker always allows.
type breaker struct {
	mu          sync.Mutex
	threshold   int
	reset       time.Duration
	consecutive int
	openedAt    time.Time

	now func() time.Time
}

func newBreaker(cfg BreakerConfig) *breaker {
	if cfg.Threshold <= 0 {
		return nil
	}
	if cfg.ResetInterval <= 0 {
		cfg.ResetInterval = DefaultResetInterval
	}
	return &breaker{threshold: cfg.Threshold, reset: cfg.ResetInterval, now: time.Now}
}

// allow reports whether a publish may proceed. While open, one probe is
// allowed after the reset interval elapses.
func (b *breaker) allow() bool {
	if b == nil {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.consecutive < b.threshold {
		return true
	}
	return b.now().Sub(b.openedAt) >= b.reset
}

func (b *breaker) recordSuccess() {
	if b == nil {
		return
	}
	b.mu.Lock()
	b.consecutive = 0
	b.mu.Unlock()
}

func (b *breaker) recordFailure() {
	if b == nil {
		return
	}
	b.mu.Lock()
	b.consecutive++
	if b.consecutive >= b.threshold {
		b.openedAt = b.now()
	}
	b.mu.Unlock()
}
