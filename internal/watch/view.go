package watch

import (
	"context"
	"sync"
)

// View holds the newest snapshot seen for one key.
type View[T any] struct {
	mu    sync.RWMutex
	seq   int64
	seen  bool
	items []T
}

// Apply replaces the view's contents with snap if snap is newer than anything
// applied before. Duplicates and stale snapshots are ignored. It reports
// whether the view changed.
func (v *View[T]) Apply(snap Snapshot[T]) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.seen && snap.Seq <= v.seq {
		return false
	}
	v.seen = true
	v.seq = snap.Seq
	v.items = snap.Items
	return true
}

// Items returns the current contents and their sequence number.
func (v *View[T]) Items() ([]T, int64) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.items, v.seq
}

// Fold reads snapshots from in, applies them to a fresh View and forwards
// only those that changed it. The output channel closes when in closes or
// ctx is done.
func Fold[T any](ctx context.Context, in <-chan Snapshot[T]) <-chan Snapshot[T] {
	out := make(chan Snapshot[T], 1)
	go func() {
		defer close(out)
		var v View[T]
		for snap := range in {
			if !v.Apply(snap) {
				continue
			}
			select {
			case out <- snap:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
