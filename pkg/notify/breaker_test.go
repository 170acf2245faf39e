package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fherrors "github.com/filehorizon/filehorizon/pkg/errors"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := newBreaker(BreakerConfig{Threshold: 3, ResetInterval: time.Minute})
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		b.recordFailure()
		assert.True(t, b.allow(), "failure %d must not open the breaker", i+1)
	}

	b.recordFailure()
	assert.False(t, b.allow())
}

func TestBreakerAllowsProbeAfterReset(t *testing.T) {
	b := newBreaker(BreakerConfig{Threshold: 1, ResetInterval: time.Minute})
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	b.recordFailure()
	require.False(t, b.allow())

	now = now.Add(time.Minute)
	assert.True(t, b.allow())

	// A failed probe re-opens for a full interval.
	b.recordFailure()
	assert.False(t, b.allow())

	now = now.Add(time.Minute)
	require.True(t, b.allow())
	b.recordSuccess()
	assert.True(t, b.allow())
}

func TestBreakerDisabledAlwaysAllows(t *testing.T) {
	b := newBreaker(BreakerConfig{})
	require.Nil(t, b)

	b.recordFailure()
	b.recordSuccess()
	assert.True(t, b.allow())
}

func TestPublishFailsFastWhileBreakerOpen(t *testing.T) {
	pub := &fakePublisher{failures: 100}
	cfg := fastConfig()
	cfg.Breaker = BreakerConfig{Threshold: 1, ResetInterval: time.Hour}
	n := NewStreamNotifier(pub, cfg, nil, nil)
	ctx := context.Background()

	err := n.Publish(ctx, successNote())
	require.Error(t, err)
	assert.Equal(t, fherrors.CodePublishFailed, fherrors.CodeOf(err))
	callsAfterFirst := pub.calls

	// The breaker is open: the transport must not be touched again.
	err = n.Publish(ctx, successNote())
	require.Error(t, err)
	assert.Equal(t, fherrors.CodeBreakerOpen, fherrors.CodeOf(err))
	assert.Equal(t, fherrors.KindBreakerOpen, fherrors.KindOf(err))
	assert.Equal(t, callsAfterFirst, pub.calls)
}
