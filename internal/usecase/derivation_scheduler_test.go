package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/riskibarqy/korfbal-live/internal/domain/jobscheduler"
	jobschedulermock "github.com/riskibarqy/korfbal-live/internal/mocks/domain/jobscheduler"
	usecasemock "github.com/riskibarqy/korfbal-live/internal/mocks/usecase"
	"github.com/stretchr/testify/mock"
)

func TestDedupKey_UsesQStashSafeFormat(t *testing.T) {
	t.Parallel()

	stamp := time.Date(2026, time.March, 14, 14, 0, 0, 123, time.UTC)
	got := dedupKey(TaskRecomputeImpact, "match:data/1", stamp)

	if strings.Contains(got, ":") || strings.Contains(got, "/") {
		t.Fatalf("dedup key must only hold safe characters, got=%q", got)
	}
	want := "recompute-impact-match-data-1-1773496800000000123"
	if got != want {
		t.Fatalf("unexpected dedup key: got=%q want=%q", got, want)
	}
}

func TestSanitizeDedupSegment_EmptyFallback(t *testing.T) {
	t.Parallel()

	if got := sanitizeDedupSegment(" \t "); got != "unknown" {
		t.Fatalf("unexpected sanitize fallback: got=%q want=%q", got, "unknown")
	}
}

func TestDerivationScheduler_ScheduleAllEnqueuesBothTasks(t *testing.T) {
	t.Parallel()

	queue := usecasemock.NewJobQueue(t)
	dispatches := jobschedulermock.NewRepository(t)
	stamp := time.Date(2026, time.March, 14, 14, 0, 0, 0, time.UTC)

	for _, path := range []string{JobPathRecomputeImpact, JobPathRecomputeMinutes} {
		queue.
			On("Enqueue", mock.Anything, path, mock.MatchedBy(func(job DerivationJob) bool {
				return job.MatchDataID == "md-1" && job.DispatchID != ""
			}), 2*time.Second, mock.AnythingOfType("string")).
			Return(nil).
			Once()
	}
	dispatches.
		On("UpsertEvent", mock.Anything, mock.MatchedBy(func(e jobscheduler.DispatchEvent) bool {
			return e.Status == jobscheduler.StatusSent && e.MatchDataID == "md-1"
		})).
		Return(nil).
		Twice()

	scheduler := NewDerivationScheduler(queue, dispatches, DerivationSchedulerConfig{}, nil)
	scheduler.ScheduleAll(t.Context(), "md-1", stamp)
}

// idDedupQueue drops publishes whose dispatch id it has already accepted,
// the way JetStream MsgID and QStash deduplication ids behave.
type idDedupQueue struct {
	mu       sync.Mutex
	seen     map[string]struct{}
	accepted []string
	fireAt   map[string]time.Time
	now      time.Time
}

func (q *idDedupQueue) Enqueue(_ context.Context, path string, _ any, delay time.Duration, deduplicationID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, dup := q.seen[deduplicationID]; dup {
		return nil
	}
	q.seen[deduplicationID] = struct{}{}
	q.accepted = append(q.accepted, path)
	q.fireAt[deduplicationID] = q.now.Add(delay)
	return nil
}

func TestDerivationScheduler_BurstCollapsesToOneDispatchPerTask(t *testing.T) {
	t.Parallel()

	queue := &idDedupQueue{seen: map[string]struct{}{}, fireAt: map[string]time.Time{}}
	scheduler := NewDerivationScheduler(queue, nil, DerivationSchedulerConfig{DedupWindow: 2 * time.Second}, nil)

	windowStart := time.Date(2026, time.March, 14, 14, 0, 0, 0, time.UTC)
	var last time.Time
	for i := range 6 {
		stamp := windowStart.Add(time.Duration(i)*300*time.Millisecond + 7)
		queue.now = stamp
		scheduler.ScheduleAll(t.Context(), "md-1", stamp)
		last = stamp
	}

	if len(queue.accepted) != 2 {
		t.Fatalf("expected one dispatch per task, got %v", queue.accepted)
	}
	for id, at := range queue.fireAt {
		if !at.Equal(windowStart.Add(2 * time.Second)) {
			t.Fatalf("dispatch %s fires at %s, want window end", id, at)
		}
		if !at.After(last) {
			t.Fatalf("dispatch %s fires before the last change in the burst", id)
		}
	}

	next := windowStart.Add(2*time.Second + time.Millisecond)
	queue.now = next
	scheduler.ScheduleAll(t.Context(), "md-1", next)
	if len(queue.accepted) != 4 {
		t.Fatalf("a change in the next window must dispatch again, got %v", queue.accepted)
	}
}

func TestDerivationScheduler_BrokerFailureIsSwallowedAndRecorded(t *testing.T) {
	t.Parallel()

	queue := usecasemock.NewJobQueue(t)
	dispatches := jobschedulermock.NewRepository(t)

	queue.
		On("Enqueue", mock.Anything, JobPathRecomputeImpact, mock.Anything, 30*time.Second, mock.MatchedBy(func(id string) bool {
			return strings.HasSuffix(id, "-final")
		})).
		Return(errors.New("broker down")).
		Once()
	dispatches.
		On("UpsertEvent", mock.Anything, mock.MatchedBy(func(e jobscheduler.DispatchEvent) bool {
			return e.Status == jobscheduler.StatusFailed && e.ErrorMessage == "broker down" && e.Task == TaskRecomputeImpact
		})).
		Return(nil).
		Once()

	scheduler := NewDerivationScheduler(queue, dispatches, DerivationSchedulerConfig{}, nil)
	scheduler.ScheduleFinished(t.Context(), "md-1", time.Now())
}

func TestDerivationScheduler_UnknownTask(t *testing.T) {
	t.Parallel()

	scheduler := NewDerivationScheduler(nil, nil, DerivationSchedulerConfig{}, nil)
	err := scheduler.Enqueue(t.Context(), "recompute-everything", "md-1", 0, "")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
