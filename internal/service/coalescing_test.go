package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRequestCoalescer_SharesResult(t *testing.T) {
	rc := newRequestCoalescer[int](time.Second)
	release := make(chan struct{})
	var calls int32

	fn := func(ctx context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return 42, nil
	}

	var (
		wg      sync.WaitGroup
		sharedN int32
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, shared, err := rc.GetOrDo(context.Background(), "k", fn)
			if err != nil || v != 42 {
				t.Errorf("GetOrDo() = %d, %v; want 42, nil", v, err)
			}
			if shared {
				atomic.AddInt32(&sharedN, 1)
			}
		}()
	}
	waitFor(t, func() bool { return atomic.LoadInt32(&calls) == 1 })
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls != 1 {
		t.Errorf("fn calls = %d, want 1", calls)
	}
	if sharedN != 3 {
		t.Errorf("shared callers = %d, want 3", sharedN)
	}
	if n := rc.inFlightCount(); n != 0 {
		t.Errorf("in-flight after completion = %d, want 0", n)
	}
}

func TestRequestCoalescer_PropagatesError(t *testing.T) {
	rc := newRequestCoalescer[string](time.Second)
	want := errors.New("upstream down")

	_, _, err := rc.GetOrDo(context.Background(), "k", func(context.Context) (string, error) {
		return "", want
	})
	if !errors.Is(err, want) {
		t.Errorf("GetOrDo() error = %v, want %v", err, want)
	}
}

func TestRequestCoalescer_WaiterTimeout(t *testing.T) {
	rc := newRequestCoalescer[int](20 * time.Millisecond)
	release := make(chan struct{})
	defer close(release)

	_, _, err := rc.GetOrDo(context.Background(), "k", func(ctx context.Context) (int, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return 0, ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("GetOrDo() error = %v, want DeadlineExceeded", err)
	}
}

func TestRequestCoalescer_CallerCancelDoesNotCancelFetch(t *testing.T) {
	rc := newRequestCoalescer[int](time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	release := make(chan struct{})
	var fetchErr atomic.Value

	go func() {
		<-started
		cancel()
	}()
	_, _, err := rc.GetOrDo(ctx, "k", func(fctx context.Context) (int, error) {
		close(started)
		<-release
		if fctx.Err() != nil {
			fetchErr.Store(fctx.Err())
		}
		return 1, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("GetOrDo() error = %v, want Canceled", err)
	}

	close(release)
	waitFor(t, func() bool { return rc.inFlightCount() == 0 })
	if v := fetchErr.Load(); v != nil {
		t.Errorf("fetch context error = %v, want nil", v)
	}
}
