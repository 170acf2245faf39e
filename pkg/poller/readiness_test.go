package poller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateNoBaselineZeroWindow(t *testing.T) {
	now := time.Now().UTC()
	mtime := now.Add(-time.Minute)

	ready, next := Evaluate(nil, 100, mtime, 0, now)

	assert.True(t, ready)
	assert.Equal(t, int64(100), next.Size)
	assert.Equal(t, mtime, next.LastWriteUTC)
	assert.Equal(t, now, next.FirstObservedUTC)
	assert.Equal(t, now, next.LastObservedUTC)
}

func TestEvaluateNoBaselinePositiveWindow(t *testing.T) {
	now := time.Now().UTC()

	ready, next := Evaluate(nil, 100, now.Add(-time.Minute), 10*time.Second, now)

	assert.False(t, ready)
	assert.Equal(t, now, next.LastObservedUTC)
}

func TestEvaluateChangeResetsBaseline(t *testing.T) {
	start := time.Now().UTC()
	mtime := start.Add(-time.Hour)
	prev := &Snapshot{
		Size:             100,
		LastWriteUTC:     mtime,
		FirstObservedUTC: start,
		LastObservedUTC:  start,
	}

	// Size grew: not ready, baseline moves to now.
	now := start.Add(5 * time.Second)
	ready, next := Evaluate(prev, 200, mtime, 10*time.Second, now)
	assert.False(t, ready)
	assert.Equal(t, now, next.LastObservedUTC)
	assert.Equal(t, start, next.FirstObservedUTC)

	// Same size, new mtime: also a change.
	ready, next = Evaluate(prev, 100, mtime.Add(time.Second), 10*time.Second, now)
	assert.False(t, ready)
	assert.Equal(t, now, next.LastObservedUTC)
}

func TestEvaluateUnchangedBelowWindow(t *testing.T) {
	start := time.Now().UTC()
	mtime := start.Add(-time.Hour)
	prev := &Snapshot{
		Size:             100,
		LastWriteUTC:     mtime,
		FirstObservedUTC: start,
		LastObservedUTC:  start,
	}

	ready, next := Evaluate(prev, 100, mtime, 10*time.Second, start.Add(5*time.Second))

	assert.False(t, ready)
	// Baseline preserved so stability keeps accumulating.
	assert.Equal(t, start, next.LastObservedUTC)
}

func TestEvaluateUnchangedAtWindow(t *testing.T) {
	start := time.Now().UTC()
	mtime := start.Add(-time.Hour)
	prev := &Snapshot{
		Size:             100,
		LastWriteUTC:     mtime,
		FirstObservedUTC: start,
		LastObservedUTC:  start,
	}

	ready, _ := Evaluate(prev, 100, mtime, 10*time.Second, start.Add(10*time.Second))
	assert.True(t, ready)

	ready, _ = Evaluate(prev, 100, mtime, 10*time.Second, start.Add(time.Minute))
	assert.True(t, ready)
}

func TestEvaluateExistingBaselineZeroWindow(t *testing.T) {
	start := time.Now().UTC()
	prev := &Snapshot{Size: 100, LastWriteUTC: start, LastObservedUTC: start}

	ready, _ := Evaluate(prev, 100, start, 0, start)
	assert.True(t, ready)
}
