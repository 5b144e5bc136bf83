package cache

import (
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Entry is a single-slot cache. The check, regenerate and store sequence runs
// under one lock, so concurrent readers see at most one regeneration per TTL
// window.
type Entry[T any] struct {
	mu          sync.Mutex
	clock       Clock
	payload     T
	lastUpdated time.Time
	filled      bool
}

func NewEntry[T any](clock Clock) *Entry[T] {
	if clock == nil {
		clock = realClock{}
	}
	return &Entry[T]{clock: clock}
}

// Get returns the cached payload, calling gen first when the entry is empty
// or older than ttl. refreshed reports whether gen ran on this call.
func (e *Entry[T]) Get(ttl time.Duration, gen func() T) (payload T, lastUpdated time.Time, refreshed bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	if !e.filled || now.Sub(e.lastUpdated) > ttl {
		e.payload = gen()
		e.lastUpdated = now
		e.filled = true
		refreshed = true
	}

	return e.payload, e.lastUpdated, refreshed
}
