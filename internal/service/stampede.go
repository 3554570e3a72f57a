package service

import (
	"sync"

	"github.com/kjstillabower/rent-lookup-service/internal/observability"
)

// stampedeTracker counts concurrent cache misses per key. More than one active miss
// for a key means several callers are refreshing it at once.
type stampedeTracker struct {
	cache        string
	mu           sync.Mutex
	activeMisses map[string]int
}

func newStampedeTracker(cache string) *stampedeTracker {
	return &stampedeTracker{
		cache:        cache,
		activeMisses: make(map[string]int),
	}
}

// RecordMiss records a miss for key and returns the concurrent miss count after incrementing.
// Callers defer RecordDone(key).
func (st *stampedeTracker) RecordMiss(key string) int {
	st.mu.Lock()
	st.activeMisses[key]++
	n := st.activeMisses[key]
	st.mu.Unlock()

	if n > 1 {
		observability.CacheStampedeDetectedTotal.WithLabelValues(st.cache).Inc()
	}
	return n
}

// RecordDone marks one miss for key as resolved.
func (st *stampedeTracker) RecordDone(key string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if count, ok := st.activeMisses[key]; ok && count > 0 {
		st.activeMisses[key]--
		if st.activeMisses[key] == 0 {
			delete(st.activeMisses, key)
		}
	}
}

func (st *stampedeTracker) active(key string) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.activeMisses[key]
}
