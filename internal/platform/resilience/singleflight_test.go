package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSingleFlight_CollapsesConcurrentCalls(t *testing.T) {
	t.Parallel()

	var g SingleFlight[string]
	var calls atomic.Int32
	release := make(chan struct{})

	const workers = 20
	var wg sync.WaitGroup
	var shared atomic.Int32
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			val, err, dup := g.Do(context.Background(), "m-42:impacts", func(context.Context) (string, error) {
				calls.Add(1)
				<-release
				return "ok", nil
			})
			if err != nil || val != "ok" {
				t.Errorf("unexpected result %q, %v", val, err)
			}
			if dup {
				shared.Add(1)
			}
		}()
	}

	waitForWaiters(t, &g, "m-42:impacts", workers-1)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("expected one call, got %d", got)
	}
	if shared.Load() == 0 {
		t.Fatalf("expected shared results")
	}
}

func TestSingleFlight_CallerCancelDoesNotFailOthers(t *testing.T) {
	t.Parallel()

	var g SingleFlight[int]
	release := make(chan struct{})
	started := make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err, _ := g.Do(ctx, "k", func(fnCtx context.Context) (int, error) {
			close(started)
			<-release
			return 7, fnCtx.Err()
		})
		firstErr <- err
	}()
	<-started

	secondVal := make(chan int, 1)
	go func() {
		v, _, _ := g.Do(context.Background(), "k", func(context.Context) (int, error) {
			return -1, errors.New("should not run")
		})
		secondVal <- v
	}()

	waitForWaiters(t, &g, "k", 1)
	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled for first caller, got %v", err)
	}
	close(release)
	if v := <-secondVal; v != 7 {
		t.Fatalf("expected shared value 7, got %d", v)
	}
}

func TestSingleFlight_ForgetsFinishedKeys(t *testing.T) {
	t.Parallel()

	var g SingleFlight[int]
	var calls int
	for range 3 {
		if _, err, _ := g.Do(context.Background(), "k", func(context.Context) (int, error) {
			calls++
			return calls, nil
		}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if calls != 3 {
		t.Fatalf("expected sequential calls to run each time, got %d", calls)
	}
}

func waitForWaiters[T any](t *testing.T, g *SingleFlight[T], key string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		g.mu.Lock()
		f := g.inflight[key]
		ready := f != nil && f.dups >= n
		g.mu.Unlock()
		if ready {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d waiters on %q", n, key)
}
