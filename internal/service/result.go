package service

import "time"

// Status describes where a Result's value came from.
type Status string

const (
	// StatusFresh means the value was fetched from upstream during this call.
	StatusFresh Status = "fresh"
	// StatusCached means a fresh cache entry was served without a network call.
	StatusCached Status = "cached"
	// StatusStale means the refresh failed and an expired entry was served instead.
	StatusStale Status = "stale"
	// StatusUnavailable means there is no value to show.
	StatusUnavailable Status = "unavailable"
)

// FailureKind distinguishes configuration problems from transient upstream failures.
type FailureKind string

const (
	KindNone          FailureKind = "none"
	KindNotConfigured FailureKind = "not_configured"
	KindUpstream      FailureKind = "upstream"
)

// Result is the outcome of a store read. Stale and unavailable results carry the
// failure in Err; stale results still hold a usable Value.
type Result[T any] struct {
	Value     T
	Status    Status
	Kind      FailureKind
	FetchedAt time.Time
	Err       error
}

// Available reports whether Value can be rendered.
func (r Result[T]) Available() bool {
	return r.Status != StatusUnavailable
}

// Degraded reports whether the caller should show a degradation notice.
func (r Result[T]) Degraded() bool {
	return r.Status == StatusStale || r.Status == StatusUnavailable
}

func unavailable[T any](kind FailureKind, err error) Result[T] {
	return Result[T]{Status: StatusUnavailable, Kind: kind, Err: err}
}
