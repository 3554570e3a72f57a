package http

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// requestTracker counts searches and view changes still being rendered so shutdown can
// let them finish before the listener closes.
type requestTracker struct {
	active atomic.Int64
}

func (t *requestTracker) begin() { t.active.Add(1) }

func (t *requestTracker) end() { t.active.Add(-1) }

func (t *requestTracker) count() int64 { return t.active.Load() }

// drain polls every interval until no request is active or ctx ends. The remaining
// count is logged at each poll.
func (t *requestTracker) drain(ctx context.Context, interval time.Duration, logger *zap.Logger) error {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		n := t.count()
		if n == 0 {
			return nil
		}
		logger.Debug("waiting for in-flight requests", zap.Int64("in_flight", n))
		select {
		case <-ctx.Done():
			logger.Warn("drain deadline reached", zap.Int64("in_flight", t.count()))
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

var inFlight = &requestTracker{}

// InFlightCount returns the number of requests currently being served.
func InFlightCount() int64 {
	return inFlight.count()
}

// WaitForInFlight blocks until every in-flight request completes or ctx is done.
func WaitForInFlight(ctx context.Context, interval time.Duration, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	return inFlight.drain(ctx, interval, logger)
}
