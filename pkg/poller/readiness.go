package poller

import "time"

// Snapshot is the per-identity-key observation record. LastObservedUTC is the
// stability baseline: it is preserved while content is unchanged so stable
// duration accumulates, and reset to now on any change.
type Snapshot struct {
	Size             int64
	LastWriteUTC     time.Time
	FirstObservedUTC time.Time
	LastObservedUTC  time.Time
}

// Evaluate decides readiness for one observation against the previous
// snapshot and returns the snapshot to store.
//
// Rules:
//   - no previous snapshot, window 0: ready immediately
//   - no previous snapshot, window > 0: not ready, baseline established
//   - size or mtime changed: not ready, baseline reset to now
//   - unchanged, stable for less than the window: not ready, baseline kept
//   - unchanged, stable for at least the window: ready
func Evaluate(prev *Snapshot, size int64, lastWrite time.Time, window time.Duration, now time.Time) (bool, Snapshot) {
	if prev == nil {
		next := Snapshot{
			Size:             size,
			LastWriteUTC:     lastWrite,
			FirstObservedUTC: now,
			LastObservedUTC:  now,
		}
		return window <= 0, next
	}

	changed := size != prev.Size || !lastWrite.Equal(prev.LastWriteUTC)
	if changed {
		next := Snapshot{
			Size:             size,
			LastWriteUTC:     lastWrite,
			FirstObservedUTC: prev.FirstObservedUTC,
			LastObservedUTC:  now,
		}
		return false, next
	}

	// Unchanged: keep the baseline so the stable duration keeps growing.
	return now.Sub(prev.LastObservedUTC) >= window, *prev
}
