package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/riskibarqy/korfbal-live/internal/domain/jobscheduler"
	"github.com/riskibarqy/korfbal-live/internal/platform/logging"
	"go.opentelemetry.io/otel/trace"
)

const (
	TaskRecomputeImpact  = "recompute-impact"
	TaskRecomputeMinutes = "recompute-minutes"

	JobPathRecomputeImpact  = "/v1/internal/jobs/recompute-impact"
	JobPathRecomputeMinutes = "/v1/internal/jobs/recompute-minutes"

	DefaultFinishRecomputeDelay = 30 * time.Second
	DefaultDedupWindow          = 2 * time.Second
)

// DerivationJob is the payload of both recompute tasks.
type DerivationJob struct {
	MatchDataID string `json:"match_data_id" validate:"required"`
	DispatchID  string `json:"dispatch_id,omitempty"`
}

type DerivationSchedulerConfig struct {
	FinishDelay time.Duration
	// DedupWindow groups changes into one recompute per task. The job fires
	// when the window closes so it sees every change made inside it.
	DedupWindow time.Duration
}

// DerivationScheduler turns committed match changes into recompute jobs.
// Broker failures never reach the command path; they are logged and
// recorded in the dispatch ledger.
type DerivationScheduler struct {
	queue        JobQueue
	dispatchRepo jobscheduler.Repository
	cfg          DerivationSchedulerConfig
	logger       *logging.Logger
	now          func() time.Time
}

var dedupUnsafeCharRegex = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

func NewDerivationScheduler(
	queue JobQueue,
	dispatchRepo jobscheduler.Repository,
	cfg DerivationSchedulerConfig,
	logger *logging.Logger,
) *DerivationScheduler {
	if queue == nil {
		queue = NewNoopJobQueue()
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FinishDelay <= 0 {
		cfg.FinishDelay = DefaultFinishRecomputeDelay
	}
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = DefaultDedupWindow
	}

	return &DerivationScheduler{
		queue:        queue,
		dispatchRepo: dispatchRepo,
		cfg:          cfg,
		logger:       logger,
		now:          time.Now,
	}
}

// ScheduleAll enqueues impact and minutes recomputes for the change stamped
// at stamp. Changes within one dedup window share a dispatch id, so every
// broker collapses a burst into a single job per task.
func (s *DerivationScheduler) ScheduleAll(ctx context.Context, matchDataID string, stamp time.Time) {
	windowStart := stamp.UTC().Truncate(s.cfg.DedupWindow)
	delay := windowStart.Add(s.cfg.DedupWindow).Sub(stamp)
	for _, task := range []string{TaskRecomputeImpact, TaskRecomputeMinutes} {
		if err := s.Enqueue(ctx, task, matchDataID, delay, dedupKey(task, matchDataID, windowStart)); err != nil {
			s.logger.WarnContext(ctx, "schedule derivation failed", "task", task, "match_data_id", matchDataID, "error", err)
		}
	}
}

// ScheduleFinished adds a delayed impact recompute that absorbs late edits
// after the final whistle.
func (s *DerivationScheduler) ScheduleFinished(ctx context.Context, matchDataID string, stamp time.Time) {
	dispatchID := dedupKey(TaskRecomputeImpact, matchDataID, stamp) + "-final"
	if err := s.Enqueue(ctx, TaskRecomputeImpact, matchDataID, s.cfg.FinishDelay, dispatchID); err != nil {
		s.logger.WarnContext(ctx, "schedule final impact recompute failed", "match_data_id", matchDataID, "error", err)
	}
}

// Enqueue hands one task to the broker and records the dispatch.
func (s *DerivationScheduler) Enqueue(ctx context.Context, task, matchDataID string, delay time.Duration, dispatchID string) error {
	path, err := jobPathFor(task)
	if err != nil {
		return err
	}
	if strings.TrimSpace(dispatchID) == "" {
		dispatchID = dedupKey(task, matchDataID, s.now())
	}

	job := DerivationJob{MatchDataID: matchDataID, DispatchID: dispatchID}
	payload := map[string]any{
		"match_data_id": matchDataID,
		"dispatch_id":   dispatchID,
	}
	if err := s.queue.Enqueue(ctx, path, job, delay, dispatchID); err != nil {
		s.recordDispatchEvent(ctx, jobscheduler.DispatchEvent{
			DispatchID:   dispatchID,
			Task:         task,
			JobPath:      path,
			MatchDataID:  matchDataID,
			Status:       jobscheduler.StatusFailed,
			Payload:      payload,
			ErrorMessage: err.Error(),
		})
		return fmt.Errorf("enqueue %s match_data=%s: %w", task, matchDataID, err)
	}
	s.recordDispatchEvent(ctx, jobscheduler.DispatchEvent{
		DispatchID:  dispatchID,
		Task:        task,
		JobPath:     path,
		MatchDataID: matchDataID,
		Status:      jobscheduler.StatusSent,
		Payload:     payload,
	})
	return nil
}

func jobPathFor(task string) (string, error) {
	switch task {
	case TaskRecomputeImpact:
		return JobPathRecomputeImpact, nil
	case TaskRecomputeMinutes:
		return JobPathRecomputeMinutes, nil
	default:
		return "", fmt.Errorf("%w: unknown derivation task %q", ErrInvalidInput, task)
	}
}

// TaskForPath maps a job path back to its task name.
func TaskForPath(path string) (string, bool) {
	switch path {
	case JobPathRecomputeImpact:
		return TaskRecomputeImpact, true
	case JobPathRecomputeMinutes:
		return TaskRecomputeMinutes, true
	default:
		return "", false
	}
}

func dedupKey(task, matchDataID string, stamp time.Time) string {
	return sanitizeDedupSegment(task) + "-" + sanitizeDedupSegment(matchDataID) + "-" + strconv.FormatInt(stamp.UTC().UnixNano(), 10)
}

func sanitizeDedupSegment(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return dedupUnsafeCharRegex.ReplaceAllString(value, "-")
}

func (s *DerivationScheduler) recordDispatchEvent(ctx context.Context, event jobscheduler.DispatchEvent) {
	recordDispatchEvent(ctx, s.dispatchRepo, s.logger, s.now, event)
}

func recordDispatchEvent(ctx context.Context, repo jobscheduler.Repository, logger *logging.Logger, now func() time.Time, event jobscheduler.DispatchEvent) {
	if repo == nil || strings.TrimSpace(event.DispatchID) == "" {
		return
	}
	traceID, spanID := traceMetaFromContext(ctx)
	event.TraceID = traceID
	event.SpanID = spanID
	if event.OccurredAt.IsZero() {
		event.OccurredAt = now().UTC()
	}
	if err := repo.UpsertEvent(ctx, event); err != nil {
		logger.WarnContext(ctx, "record job dispatch event failed",
			"dispatch_id", event.DispatchID,
			"status", event.Status,
			"error", err,
		)
	}
}

func traceMetaFromContext(ctx context.Context) (string, string) {
	spanContext := trace.SpanFromContext(ctx).SpanContext()
	if !spanContext.IsValid() {
		return "", ""
	}
	return spanContext.TraceID().String(), spanContext.SpanID().String()
}
