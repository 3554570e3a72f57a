package http

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestRequestTracker_Count(t *testing.T) {
	tracker := &requestTracker{}
	tracker.begin()
	tracker.begin()
	if got := tracker.count(); got != 2 {
		t.Errorf("count() = %d, want 2", got)
	}
	tracker.end()
	tracker.end()
	if got := tracker.count(); got != 0 {
		t.Errorf("count() = %d, want 0", got)
	}
}

func TestRequestTracker_DrainReturnsWhenIdle(t *testing.T) {
	tracker := &requestTracker{}
	tracker.begin()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- tracker.drain(ctx, 5*time.Millisecond, zap.NewNop()) }()

	time.Sleep(20 * time.Millisecond)
	tracker.end()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("drain() error = %v, want nil", err)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("drain did not return after the last request ended")
	}
}

func TestRequestTracker_DrainDeadline(t *testing.T) {
	tracker := &requestTracker{}
	tracker.begin()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := tracker.drain(ctx, 5*time.Millisecond, zap.NewNop()); !errors.Is(err, context.Canceled) {
		t.Errorf("drain() error = %v, want context.Canceled", err)
	}
}

func TestWaitForInFlight_NilLogger(t *testing.T) {
	if err := WaitForInFlight(context.Background(), time.Millisecond, nil); err != nil {
		t.Errorf("WaitForInFlight() error = %v", err)
	}
}
