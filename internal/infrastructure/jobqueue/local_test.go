package jobqueue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/riskibarqy/korfbal-live/internal/platform/logging"
	"github.com/riskibarqy/korfbal-live/internal/usecase"
)

const testPath = usecase.JobPathRecomputeImpact

func newTestLocalQueue(t *testing.T, workers int, clock clockwork.Clock, handler usecase.JobHandler) *LocalQueue {
	t.Helper()

	q, err := NewLocalQueue(LocalConfig{Workers: workers, Clock: clock}, Handlers{testPath: handler}, logging.NewNop())
	if err != nil {
		t.Fatalf("new local queue: %v", err)
	}
	t.Cleanup(func() {
		_ = q.Close(context.Background())
	})
	return q
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestLocalQueue_RunsRegisteredHandler(t *testing.T) {
	t.Parallel()

	got := make(chan string, 1)
	q := newTestLocalQueue(t, 2, nil, func(_ context.Context, payload []byte) error {
		got <- string(payload)
		return nil
	})

	job := usecase.DerivationJob{MatchDataID: "md-1", DispatchID: "d-1"}
	if err := q.Enqueue(context.Background(), "v1/internal/jobs/recompute-impact", job, 0, "d-1"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	select {
	case payload := <-got:
		if payload != `{"match_data_id":"md-1","dispatch_id":"d-1"}` {
			t.Fatalf("unexpected payload: %s", payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("handler was not called")
	}
}

func TestLocalQueue_UnknownPath(t *testing.T) {
	t.Parallel()

	q := newTestLocalQueue(t, 1, nil, func(context.Context, []byte) error { return nil })
	if err := q.Enqueue(context.Background(), "/v1/internal/jobs/unknown", nil, 0, ""); err == nil {
		t.Fatalf("expected error for unregistered path")
	}
}

func TestLocalQueue_CoalescesWaitingDuplicates(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	started := make(chan struct{}, 4)
	gate := make(chan struct{})
	q := newTestLocalQueue(t, 1, nil, func(context.Context, []byte) error {
		calls.Add(1)
		started <- struct{}{}
		<-gate
		return nil
	})

	ctx := context.Background()
	job := usecase.DerivationJob{MatchDataID: "md-1"}
	if err := q.Enqueue(ctx, testPath, job, 0, "first"); err != nil {
		t.Fatalf("enqueue first: %v", err)
	}
	<-started

	// The only worker is busy, so the second job waits for it.
	secondDone := make(chan error, 1)
	go func() {
		secondDone <- q.Enqueue(ctx, testPath, job, 0, "second")
	}()
	key := coalesceKey(testPath, []byte(`{"match_data_id":"md-1"}`))
	waitFor(t, "second job to be pending", func() bool {
		q.mu.Lock()
		defer q.mu.Unlock()
		_, ok := q.pending[key]
		return ok
	})

	if err := q.Enqueue(ctx, testPath, job, 0, "third"); err != nil {
		t.Fatalf("enqueue third: %v", err)
	}

	close(gate)
	if err := <-secondDone; err != nil {
		t.Fatalf("enqueue second: %v", err)
	}
	closeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := q.Close(closeCtx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("expected 2 handler runs, got %d", got)
	}
}

func TestLocalQueue_DelayedJobWaitsForClock(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	var calls atomic.Int32
	q := newTestLocalQueue(t, 1, clock, func(context.Context, []byte) error {
		calls.Add(1)
		return nil
	})

	job := usecase.DerivationJob{MatchDataID: "md-1"}
	if err := q.Enqueue(context.Background(), testPath, job, 30*time.Second, "md-1-final"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	clock.Advance(29 * time.Second)
	time.Sleep(20 * time.Millisecond)
	if calls.Load() != 0 {
		t.Fatalf("delayed job ran early")
	}

	clock.Advance(time.Second)
	waitFor(t, "delayed job", func() bool { return calls.Load() == 1 })
}

func TestLocalQueue_CloseDropsDelayedJobs(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	var calls atomic.Int32
	q := newTestLocalQueue(t, 1, clock, func(context.Context, []byte) error {
		calls.Add(1)
		return nil
	})

	ctx := context.Background()
	if err := q.Enqueue(ctx, testPath, usecase.DerivationJob{MatchDataID: "md-1"}, time.Minute, ""); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	clock.Advance(2 * time.Minute)
	time.Sleep(20 * time.Millisecond)
	if calls.Load() != 0 {
		t.Fatalf("delayed job ran after close")
	}

	err := q.Enqueue(ctx, testPath, usecase.DerivationJob{MatchDataID: "md-1"}, 0, "")
	if !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed, got %v", err)
	}
}
