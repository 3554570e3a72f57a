package service

import (
	"context"
	"sync"
	"time"
)

// inFlightRequest tracks a single upstream fetch that multiple callers may wait for.
type inFlightRequest[V any] struct {
	done   chan struct{}
	result V
	err    error
}

// requestCoalescer collapses concurrent fetches for the same key into one upstream call.
type requestCoalescer[V any] struct {
	mu       sync.Mutex
	inFlight map[string]*inFlightRequest[V]
	timeout  time.Duration
}

func newRequestCoalescer[V any](timeout time.Duration) *requestCoalescer[V] {
	return &requestCoalescer[V]{
		inFlight: make(map[string]*inFlightRequest[V]),
		timeout:  timeout,
	}
}

// GetOrDo joins the in-flight fetch for key or starts one with fn. shared is true when
// the caller waited on a fetch started by someone else. The fetch runs detached from the
// caller's cancellation and is bounded by the coalescer timeout, so one caller giving up
// does not fail the others.
func (rc *requestCoalescer[V]) GetOrDo(ctx context.Context, key string, fn func(context.Context) (V, error)) (result V, shared bool, err error) {
	rc.mu.Lock()
	req, exists := rc.inFlight[key]
	if !exists {
		req = &inFlightRequest[V]{done: make(chan struct{})}
		rc.inFlight[key] = req
		go rc.run(ctx, key, req, fn)
	}
	rc.mu.Unlock()

	waitCtx, cancel := context.WithTimeout(ctx, rc.timeout)
	defer cancel()
	select {
	case <-req.done:
		return req.result, exists, req.err
	case <-waitCtx.Done():
		var zero V
		return zero, exists, waitCtx.Err()
	}
}

func (rc *requestCoalescer[V]) run(ctx context.Context, key string, req *inFlightRequest[V], fn func(context.Context) (V, error)) {
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rc.timeout)
	defer cancel()

	req.result, req.err = fn(fetchCtx)
	close(req.done)
	rc.cleanup(key)
}

// cleanup removes the in-flight request for key once it has completed.
func (rc *requestCoalescer[V]) cleanup(key string) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	delete(rc.inFlight, key)
}

// inFlightCount is used by tests.
func (rc *requestCoalescer[V]) inFlightCount() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return len(rc.inFlight)
}
