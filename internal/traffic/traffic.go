package traffic

import (
	"sync"
	"time"
)

// Sources recorded by the service.
const (
	SourceRates   = "rates"
	SourceWeather = "weather"
	SourceHTTP    = "http"
)

// Outcome is the result of one tracked request.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeError
	OutcomeDenied
)

var defaultTracker = NewTracker(5 * time.Minute)

// RecordSuccess records a successful outcome for source.
func RecordSuccess(source string) {
	defaultTracker.Record(source, OutcomeSuccess)
}

// RecordError records a failed outcome for source (upstream error, timeout, etc.).
func RecordError(source string) {
	defaultTracker.Record(source, OutcomeError)
}

// RecordDenied records a rate-limit denial (429).
func RecordDenied() {
	defaultTracker.Record(SourceHTTP, OutcomeDenied)
}

// RequestCount returns the number of outcomes of every source within the window.
func RequestCount(window time.Duration) int {
	return defaultTracker.RequestCount(window)
}

// DenialCount returns the number of denials within the window.
func DenialCount(window time.Duration) int {
	return defaultTracker.DenialCount(window)
}

// ErrorRate returns (errorCount, totalCount) for source within the window. An empty source
// aggregates every source. Denials are excluded.
func ErrorRate(source string, window time.Duration) (errors, total int) {
	return defaultTracker.ErrorRate(source, window)
}

// Reset clears all recorded outcomes. For tests only.
func Reset() {
	defaultTracker.Reset()
}

type event struct {
	at      time.Time
	outcome Outcome
}

// Tracker maintains per-source sliding windows of outcomes. It feeds the health
// endpoint (degraded upstreams) and the rate-limit gauges.
type Tracker struct {
	mu     sync.Mutex
	now    func() time.Time
	maxAge time.Duration
	events map[string][]event
}

// NewTracker returns a Tracker that forgets outcomes older than maxAge.
func NewTracker(maxAge time.Duration) *Tracker {
	return &Tracker{
		now:    time.Now,
		maxAge: maxAge,
		events: make(map[string][]event),
	}
}

// Record appends an outcome for source at the current time.
func (t *Tracker) Record(source string, o Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.events[source] = append(t.events[source], event{at: now, outcome: o})
	t.pruneLocked(now)
}

// RequestCount returns every outcome of every source within the window.
func (t *Tracker) RequestCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-window)
	n := 0
	for _, evs := range t.events {
		n += countInWindow(evs, cutoff, func(Outcome) bool { return true })
	}
	return n
}

// DenialCount returns the number of rate-limit denials within the window.
func (t *Tracker) DenialCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-window)
	n := 0
	for _, evs := range t.events {
		n += countInWindow(evs, cutoff, func(o Outcome) bool { return o == OutcomeDenied })
	}
	return n
}

// ErrorRate returns (errorCount, successCount+errorCount) for source within the window.
func (t *Tracker) ErrorRate(source string, window time.Duration) (errors, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-window)
	for src, evs := range t.events {
		if source != "" && src != source {
			continue
		}
		errors += countInWindow(evs, cutoff, func(o Outcome) bool { return o == OutcomeError })
		total += countInWindow(evs, cutoff, func(o Outcome) bool { return o != OutcomeDenied })
	}
	return errors, total
}

// Reset clears all recorded outcomes.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = make(map[string][]event)
}

func countInWindow(evs []event, cutoff time.Time, match func(Outcome) bool) int {
	n := 0
	for _, e := range evs {
		if !e.at.Before(cutoff) && match(e.outcome) {
			n++
		}
	}
	return n
}

// pruneLocked drops outcomes older than maxAge. Must be called with mutex held.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-t.maxAge)
	for src, evs := range t.events {
		i := 0
		for ; i < len(evs) && evs[i].at.Before(cutoff); i++ {
		}
		if i == len(evs) {
			delete(t.events, src)
			continue
		}
		if i > 0 {
			t.events[src] = append(evs[:0], evs[i:]...)
		}
	}
}
