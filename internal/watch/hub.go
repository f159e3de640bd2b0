// Package watch delivers full-state snapshots to subscribers.
//
// A snapshot always carries the complete result of a query (for example,
// every group a member belongs to), never a diff. Publishers may race, so
// subscribers can see snapshots late, twice, or out of order; View folds them
// by sequence number and keeps only the newest.
package watch

import (
	"context"
	"sync"
)

// Snapshot is the full result of a watched query at a point in time.
type Snapshot[T any] struct {
	// Seq orders snapshots of the same key. Larger is newer.
	Seq   int64
	Key   string
	Items []T
}

// Hub fans snapshots out to subscribers by key. Publishing never blocks: a
// subscriber that has not consumed its pending snapshot gets it replaced by
// the newer one. A subscriber never receives a snapshot whose Seq is not
// greater than the last one delivered to it.
type Hub[T any] struct {
	mu   sync.Mutex
	subs map[string]map[*subscriber[T]]struct{}
}

type subscriber[T any] struct {
	ch   chan Snapshot[T]
	seq  int64
	sent bool
}

// NewHub creates an empty hub.
func NewHub[T any]() *Hub[T] {
	return &Hub[T]{subs: make(map[string]map[*subscriber[T]]struct{})}
}

// Subscribe registers for key and then queues the snapshot returned by
// initial. Registering first means a commit racing with initial is either
// part of it or published afterwards. The channel is closed once ctx is done.
func (h *Hub[T]) Subscribe(ctx context.Context, key string, initial func() (Snapshot[T], error)) (<-chan Snapshot[T], error) {
	sub := &subscriber[T]{ch: make(chan Snapshot[T], 1)}

	h.mu.Lock()
	if h.subs[key] == nil {
		h.subs[key] = make(map[*subscriber[T]]struct{})
	}
	h.subs[key][sub] = struct{}{}
	h.mu.Unlock()

	snap, err := initial()
	if err != nil {
		h.mu.Lock()
		h.remove(key, sub)
		h.mu.Unlock()
		return nil, err
	}
	snap.Key = key

	h.mu.Lock()
	sub.deliver(snap)
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		defer h.mu.Unlock()
		h.remove(key, sub)
	}()
	return sub.ch, nil
}

// Watched reports whether key has any subscribers, so publishers can skip
// building snapshots nobody will read.
func (h *Hub[T]) Watched(key string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[key]) > 0
}

// Publish delivers snap to every subscriber of snap.Key.
func (h *Hub[T]) Publish(snap Snapshot[T]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[snap.Key] {
		sub.deliver(snap)
	}
}

func (h *Hub[T]) remove(key string, sub *subscriber[T]) {
	if _, ok := h.subs[key][sub]; !ok {
		return
	}
	delete(h.subs[key], sub)
	if len(h.subs[key]) == 0 {
		delete(h.subs, key)
	}
	close(sub.ch)
}

// deliver must be called with h.mu held. Only deliver writes to ch, so after
// the drain the send cannot block.
func (s *subscriber[T]) deliver(snap Snapshot[T]) {
	if s.sent && snap.Seq <= s.seq {
		return
	}
	s.sent, s.seq = true, snap.Seq
	select {
	case <-s.ch:
	default:
	}
	s.ch <- snap
}
