package idempotency

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampTTL(t *testing.T) {
	assert.Equal(t, DefaultTTL, clampTTL(0))
	assert.Equal(t, DefaultTTL, clampTTL(-time.Hour))
	assert.Equal(t, MinTTL, clampTTL(time.Millisecond))
	assert.Equal(t, 2*time.Hour, clampTTL(2*time.Hour))
}

func TestMemoryStoreFirstCallerWins(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	assert.True(t, s.TryMarkProcessed(ctx, "file:ev-1", time.Minute))
	assert.False(t, s.TryMarkProcessed(ctx, "file:ev-1", time.Minute))

	// Distinct keys are independent.
	assert.True(t, s.TryMarkProcessed(ctx, "file:ev-2", time.Minute))
}

func TestMemoryStoreExactlyOnceUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var wins atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.TryMarkProcessed(ctx, "file:contended", time.Minute) {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), wins.Load())
}

func TestMemoryStoreExpiredMarkerReclaimable(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	current := time.Now()
	s.now = func() time.Time { return current }

	require.True(t, s.TryMarkProcessed(ctx, "file:ev-1", time.Minute))
	require.False(t, s.TryMarkProcessed(ctx, "file:ev-1", time.Minute))

	current = current.Add(2 * time.Minute)
	assert.True(t, s.TryMarkProcessed(ctx, "file:ev-1", time.Minute))
}

func TestMemoryStoreRejectsEmptyKeyAndCanceledContext(t *testing.T) {
	s := NewMemoryStore()

	assert.False(t, s.TryMarkProcessed(context.Background(), "", time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, s.TryMarkProcessed(ctx, "file:ev-1", time.Minute))
}

func TestBadgerStoreFirstCallerWins(t *testing.T) {
	s, err := NewBadgerStore("")
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close()) }()

	ctx := context.Background()
	assert.True(t, s.TryMarkProcessed(ctx, "file:ev-1", time.Minute))
	assert.False(t, s.TryMarkProcessed(ctx, "file:ev-1", time.Minute))
	assert.True(t, s.TryMarkProcessed(ctx, "file:ev-2", time.Minute))
}

func TestBadgerStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewBadgerStore(dir)
	require.NoError(t, err)
	require.True(t, s.TryMarkProcessed(ctx, "file:ev-1", time.Hour))
	require.NoError(t, s.Close())

	reopened, err := NewBadgerStore(dir)
	require.NoError(t, err)
	defer func() { require.NoError(t, reopened.Close()) }()

	assert.False(t, reopened.TryMarkProcessed(ctx, "file:ev-1", time.Hour))
}
