// Package dedup suppresses repeats of the same key within a time window.
// Keys live in a bounded LRU so memory stays flat however many distinct
// keys are seen.
package dedup

import (
	"sync"
	"time"
)

type entry[K comparable] struct {
	key    K
	seenAt time.Time
	prev   *entry[K]
	next   *entry[K]
}

// Window remembers when each key was last let through. It is safe for
// concurrent use.
type Window[K comparable] struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	items    map[K]*entry[K]
	root     entry[K] // root.next is most recent, root.prev least recent
}

// New creates a Window holding at most capacity keys for ttl each.
// Panics if capacity < 1.
func New[K comparable](capacity int, ttl time.Duration) *Window[K] {
	if capacity < 1 {
		panic("dedup: capacity must be >= 1")
	}
	w := &Window[K]{
		ttl:      ttl,
		capacity: capacity,
		items:    make(map[K]*entry[K], capacity),
	}
	w.root.next = &w.root
	w.root.prev = &w.root
	return w
}

// Allow reports whether key has not been let through within the window
// ending at now. An allowed key is recorded at now.
func (w *Window[K]) Allow(key K, now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if e, ok := w.items[key]; ok {
		if now.Sub(e.seenAt) < w.ttl {
			return false
		}
		e.seenAt = now
		w.unlink(e)
		w.pushFront(e)
		return true
	}

	if len(w.items) >= w.capacity {
		oldest := w.root.prev
		w.unlink(oldest)
		delete(w.items, oldest.key)
	}
	e := &entry[K]{key: key, seenAt: now}
	w.items[key] = e
	w.pushFront(e)
	return true
}

// Forget drops key so the next Allow lets it through.
func (w *Window[K]) Forget(key K) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.items[key]
	if !ok {
		return false
	}
	w.unlink(e)
	delete(w.items, key)
	return true
}

// Len returns the number of remembered keys, expired or not.
func (w *Window[K]) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.items)
}

// Sweep removes keys whose window ended before now and returns how many
// were removed.
func (w *Window[K]) Sweep(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for e := w.root.prev; e != &w.root; {
		prev := e.prev
		if now.Sub(e.seenAt) >= w.ttl {
			w.unlink(e)
			delete(w.items, e.key)
			n++
		}
		e = prev
	}
	return n
}

func (w *Window[K]) pushFront(e *entry[K]) {
	e.prev = &w.root
	e.next = w.root.next
	w.root.next.prev = e
	w.root.next = e
}

func (w *Window[K]) unlink(e *entry[K]) {
	e.prev.next = e.next
	e.next.prev = e.prev
	e.prev, e.next = nil, nil
}
