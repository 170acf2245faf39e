package poller

import (
	"sync"
	"time"
)

const (
	// DefaultBackoffBase is the first delay after a source failure.
	DefaultBackoffBase = 5 * time.Second

	// DefaultBackoffMax caps the exponential delay.
	DefaultBackoffMax = 5 * time.Minute

	// maxBackoffShift caps the exponent so the doubling cannot overflow.
	maxBackoffShift = 6
)

// Backoff tracks per-source failure counts and next-attempt times. One
// instance is owned by one poller; no cross-instance sharing.
type Backoff struct {
	base time.Duration
	max  time.Duration

	mu    sync.Mutex
	state map[string]*sourceBackoff
}

type sourceBackoff struct {
	failures    int
	nextAttempt time.Time
}

// NewBackoff creates a tracker with the given base delay and cap. Zero values
// fall back to the defaults.
func NewBackoff(base, max time.Duration) *Backoff {
	if base <= 0 {
		base = DefaultBackoffBase
	}
	if max <= 0 {
		max = DefaultBackoffMax
	}
	return &Backoff{
		base:  base,
		max:   max,
		state: make(map[string]*sourceBackoff),
	}
}

// ShouldSkip reports whether the source is still inside its backoff window
// and how long remains.
func (b *Backoff) ShouldSkip(source string, now time.Time) (bool, time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.state[source]
	if !ok || !now.Before(s.nextAttempt) {
		return false, 0
	}
	return true, s.nextAttempt.Sub(now)
}

// RegisterFailure records one failure and returns the delay applied:
// base * 2^min(failures-1, 6), capped at max.
func (b *Backoff) RegisterFailure(source string, now time.Time) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.state[source]
	if !ok {
		s = &sourceBackoff{}
		b.state[source] = s
	}
	s.failures++

	shift := s.failures - 1
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}
	delay := b.base << shift
	if delay > b.max {
		delay = b.max
	}
	s.nextAttempt = now.Add(delay)
	return delay
}

// Reset clears the failure state after a successful cycle.
func (b *Backoff) Reset(source string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.state, source)
}

// Failures returns the current consecutive failure count.
func (b *Backoff) Failures(source string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.state[source]; ok {
		return s.failures
	}
	return 0
}
