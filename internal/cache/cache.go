package cache

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL is how long rates and weather stay fresh.
const DefaultTTL = 30 * time.Minute

// State classifies the result of a Lookup.
type State int

const (
	StateMissing State = iota
	StateFresh
	StateStale
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateStale:
		return "stale"
	default:
		return "missing"
	}
}

// Entry is a cached value with the time it was fetched from upstream.
type Entry[V any] struct {
	Value     V         `json:"value"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// Fresh reports whether now - FetchedAt < ttl.
func (e Entry[V]) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.FetchedAt) < ttl
}

// Age returns how long ago the entry was fetched.
func (e Entry[V]) Age(now time.Time) time.Duration {
	return now.Sub(e.FetchedAt)
}

// Store persists entries without interpreting them. Freshness is decided by TimeBounded
// at read time, so a store keeps stale entries around for fallback.
type Store[K comparable, V any] interface {
	Load(ctx context.Context, key K) (Entry[V], bool, error)
	Save(ctx context.Context, key K, entry Entry[V]) error
}

// Memory is a map-backed Store. Entries are never evicted; they live for the process lifetime.
type Memory[K comparable, V any] struct {
	mu   sync.RWMutex
	data map[K]Entry[V]
}

// NewMemory creates an empty in-memory store.
func NewMemory[K comparable, V any]() *Memory[K, V] {
	return &Memory[K, V]{data: make(map[K]Entry[V])}
}

// Load returns the entry for key regardless of age.
func (m *Memory[K, V]) Load(ctx context.Context, key K) (Entry[V], bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.data[key]
	return e, ok, nil
}

// Save replaces the entry for key.
func (m *Memory[K, V]) Save(ctx context.Context, key K, entry Entry[V]) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = entry
	return nil
}

// Len returns the number of stored entries, fresh or stale.
func (m *Memory[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// TimeBounded applies a fixed TTL to a Store. A stale entry is never returned as fresh:
// Get treats it as a miss and Lookup reports it as StateStale so callers can refetch and
// fall back to it only when the refetch fails.
type TimeBounded[K comparable, V any] struct {
	store Store[K, V]
	ttl   time.Duration
	now   func() time.Time
}

// New wraps store with ttl. A non-positive ttl uses DefaultTTL.
func New[K comparable, V any](store Store[K, V], ttl time.Duration) *TimeBounded[K, V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TimeBounded[K, V]{store: store, ttl: ttl, now: time.Now}
}

// SetClock overrides the time source. Tests use it to step across the TTL boundary.
func (c *TimeBounded[K, V]) SetClock(now func() time.Time) {
	c.now = now
}

// TTL returns the freshness window.
func (c *TimeBounded[K, V]) TTL() time.Duration {
	return c.ttl
}

// Now returns the cache clock's current time.
func (c *TimeBounded[K, V]) Now() time.Time {
	return c.now()
}

// IsFresh reports whether entry is still within the TTL.
func (c *TimeBounded[K, V]) IsFresh(entry Entry[V]) bool {
	return entry.Fresh(c.now(), c.ttl)
}

// Lookup returns the stored entry and its state. On a store error the state is StateMissing.
func (c *TimeBounded[K, V]) Lookup(ctx context.Context, key K) (Entry[V], State, error) {
	e, ok, err := c.store.Load(ctx, key)
	if err != nil {
		return Entry[V]{}, StateMissing, err
	}
	if !ok {
		return Entry[V]{}, StateMissing, nil
	}
	if c.IsFresh(e) {
		return e, StateFresh, nil
	}
	return e, StateStale, nil
}

// Get returns the value only when a fresh entry exists.
func (c *TimeBounded[K, V]) Get(ctx context.Context, key K) (V, bool, error) {
	e, state, err := c.Lookup(ctx, key)
	if err != nil || state != StateFresh {
		var zero V
		return zero, false, err
	}
	return e.Value, true, nil
}

// Put stores value with FetchedAt = now and returns the stored entry.
func (c *TimeBounded[K, V]) Put(ctx context.Context, key K, value V) (Entry[V], error) {
	e := Entry[V]{Value: value, FetchedAt: c.now()}
	return e, c.store.Save(ctx, key, e)
}
