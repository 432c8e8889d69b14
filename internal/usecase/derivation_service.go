package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cenkalti/backoff/v5"
	"github.com/riskibarqy/korfbal-live/internal/domain/impact"
	"github.com/riskibarqy/korfbal-live/internal/domain/jobscheduler"
	"github.com/riskibarqy/korfbal-live/internal/domain/match"
	"github.com/riskibarqy/korfbal-live/internal/domain/minutes"
	"github.com/riskibarqy/korfbal-live/internal/platform/livehub"
	"github.com/riskibarqy/korfbal-live/internal/platform/logging"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultDerivationTaskTimeout = 60 * time.Second
	DefaultDerivationMaxAttempts = 3
	DefaultBreakdownCacheTTL     = 24 * time.Hour

	// BreakdownSchemaVersion changes whenever the cached breakdown layout does.
	BreakdownSchemaVersion = 1
)

type DerivationConfig struct {
	TaskTimeout  time.Duration
	MaxAttempts  uint
	BreakdownTTL time.Duration
}

// JobHandler runs one queued job from its raw payload.
type JobHandler func(ctx context.Context, payload []byte) error

// DerivationService recomputes impact and minutes rows from the event
// store. Every task is idempotent: rows are upserted per (match data,
// player, algorithm version).
type DerivationService struct {
	store        match.Store
	impacts      impact.Repository
	minutesRepo  minutes.Repository
	cache        BreakdownCache
	hub          LiveHub
	dispatchRepo jobscheduler.Repository
	observer     DerivationObserver
	cfg          DerivationConfig
	logger       *logging.Logger
	now          func() time.Time
}

func NewDerivationService(
	store match.Store,
	impacts impact.Repository,
	minutesRepo minutes.Repository,
	cache BreakdownCache,
	hub LiveHub,
	dispatchRepo jobscheduler.Repository,
	cfg DerivationConfig,
	logger *logging.Logger,
) *DerivationService {
	if cache == nil {
		cache = NewNoopBreakdownCache()
	}
	if hub == nil {
		hub = noopLiveHub{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = DefaultDerivationTaskTimeout
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = DefaultDerivationMaxAttempts
	}
	if cfg.BreakdownTTL <= 0 {
		cfg.BreakdownTTL = DefaultBreakdownCacheTTL
	}

	return &DerivationService{
		store:        store,
		impacts:      impacts,
		minutesRepo:  minutesRepo,
		cache:        cache,
		hub:          hub,
		dispatchRepo: dispatchRepo,
		observer:     noopObserver{},
		cfg:          cfg,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *DerivationService) SetObserver(observer DerivationObserver) {
	if observer != nil {
		s.observer = observer
	}
}

// JobHandlers maps job paths to handlers for brokers and the internal job
// endpoints.
func (s *DerivationService) JobHandlers() map[string]JobHandler {
	handler := func(task string) JobHandler {
		return func(ctx context.Context, payload []byte) error {
			var job DerivationJob
			if err := sonic.Unmarshal(payload, &job); err != nil {
				return fmt.Errorf("%w: decode %s payload: %v", ErrInvalidInput, task, err)
			}
			return s.Run(ctx, task, job)
		}
	}
	return map[string]JobHandler{
		JobPathRecomputeImpact:  handler(TaskRecomputeImpact),
		JobPathRecomputeMinutes: handler(TaskRecomputeMinutes),
	}
}

// Run executes task with a per-attempt timeout and bounded retries.
func (s *DerivationService) Run(ctx context.Context, task string, job DerivationJob) (err error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.DerivationService.Run",
		attribute.String("derivation.task", task),
		attribute.String("match_data.id", job.MatchDataID),
	)
	defer func() { endSpan(span, err) }()

	if job.MatchDataID == "" {
		return fmt.Errorf("%w: match_data_id is required", ErrInvalidInput)
	}
	path, err := jobPathFor(task)
	if err != nil {
		return err
	}

	started := s.now()
	op := func() (struct{}, error) {
		taskCtx, cancel := context.WithTimeout(ctx, s.cfg.TaskTimeout)
		defer cancel()

		err := s.runOnce(taskCtx, task, job.MatchDataID)
		if err == nil {
			return struct{}{}, nil
		}
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidInput) {
			return struct{}{}, backoff.Permanent(err)
		}
		s.logger.WarnContext(ctx, "derivation attempt failed", "task", task, "match_data_id", job.MatchDataID, "error", err)
		return struct{}{}, err
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	_, err = backoff.Retry(ctx, op, backoff.WithBackOff(b), backoff.WithMaxTries(s.cfg.MaxAttempts))

	outcome := "ok"
	event := jobscheduler.DispatchEvent{
		DispatchID:  job.DispatchID,
		Task:        task,
		JobPath:     path,
		MatchDataID: job.MatchDataID,
		Status:      jobscheduler.StatusCompleted,
		Payload:     map[string]any{"match_data_id": job.MatchDataID, "dispatch_id": job.DispatchID},
	}
	if err != nil {
		outcome = "error"
		event.Status = jobscheduler.StatusFailed
		event.ErrorMessage = err.Error()
		s.logger.ErrorContext(ctx, "derivation failed", "task", task, "match_data_id", job.MatchDataID, "error", err)
	}
	s.observer.ObserveDerivation(task, outcome, s.now().Sub(started))
	recordDispatchEvent(ctx, s.dispatchRepo, s.logger, s.now, event)
	return err
}

func (s *DerivationService) runOnce(ctx context.Context, task, matchDataID string) error {
	switch task {
	case TaskRecomputeImpact:
		_, err := s.RecomputeImpact(ctx, matchDataID)
		return err
	case TaskRecomputeMinutes:
		_, err := s.RecomputeMinutes(ctx, matchDataID)
		return err
	default:
		return fmt.Errorf("%w: unknown derivation task %q", ErrInvalidInput, task)
	}
}

// RecomputeAll runs both derivations concurrently.
func (s *DerivationService) RecomputeAll(ctx context.Context, matchDataID string) error {
	p := pool.New().WithContext(ctx)
	p.Go(func(ctx context.Context) error {
		_, err := s.RecomputeImpact(ctx, matchDataID)
		return err
	})
	p.Go(func(ctx context.Context) error {
		_, err := s.RecomputeMinutes(ctx, matchDataID)
		return err
	})
	return p.Wait()
}

func (s *DerivationService) load(ctx context.Context, matchDataID string) (match.State, error) {
	st, err := s.store.Load(ctx, matchDataID)
	if err != nil {
		return match.State{}, mapStoreError(err, matchDataID)
	}
	return st, nil
}

func (s *DerivationService) RecomputeImpact(ctx context.Context, matchDataID string) ([]impact.Row, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.DerivationService.RecomputeImpact")
	defer span.End()

	st, err := s.load(ctx, matchDataID)
	if err != nil {
		return nil, err
	}
	rows := ComputeImpactRows(&st, impact.Latest, s.now().UTC())
	if err := s.impacts.Replace(ctx, matchDataID, impact.Latest, rows); err != nil {
		return nil, fmt.Errorf("replace impact rows match_data=%s: %w", matchDataID, err)
	}

	key := BreakdownCacheKey(matchDataID, impact.Latest)
	if err := s.cache.Delete(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "invalidate breakdown cache failed", "key", key, "error", err)
	}
	s.hub.Publish(livehub.Key{MatchID: st.Match.ID, Role: livehub.RoleDetail}, livehub.KindStateChanged, nil)
	return rows, nil
}

func (s *DerivationService) RecomputeMinutes(ctx context.Context, matchDataID string) ([]minutes.Row, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.DerivationService.RecomputeMinutes")
	defer span.End()

	st, err := s.load(ctx, matchDataID)
	if err != nil {
		return nil, err
	}
	rows := ComputeMinutesRows(&st, s.now().UTC())
	if err := s.minutesRepo.Replace(ctx, matchDataID, minutes.AlgorithmVersion, rows); err != nil {
		return nil, fmt.Errorf("replace minutes rows match_data=%s: %w", matchDataID, err)
	}
	return rows, nil
}

// ComputeImpactRows is the pure impact derivation of one match state.
func ComputeImpactRows(st *match.State, version impact.Version, computedAt time.Time) []impact.Row {
	a := buildAnalytics(st)
	result := impact.Compute(impact.Input{
		Version:     string(version),
		HomeTeamID:  st.Match.HomeTeamID,
		AwayTeamID:  st.Match.AwayTeamID,
		PlayerTeams: a.PlayerTeams,
		Shots:       a.Shots,
		Timeline:    a.Timeline,
	})

	rows := make([]impact.Row, 0, len(result.Players))
	for _, p := range result.Players {
		rows = append(rows, impact.Row{
			MatchDataID:      st.Data.ID,
			PlayerID:         p.PlayerID,
			TeamID:           p.TeamID,
			Score:            impact.RoundJS1(p.Score),
			AlgorithmVersion: result.Version,
			Breakdown:        p.Breakdown,
			ComputedAt:       computedAt,
		})
	}
	return rows
}

// ComputeMinutesRows is the pure minutes derivation of one match state.
func ComputeMinutesRows(st *match.State, computedAt time.Time) []minutes.Row {
	a := buildAnalytics(st)
	played := minutes.Compute(a.Timeline)
	rows := make([]minutes.Row, 0, len(played))
	for _, playerID := range a.Timeline.Players() {
		rows = append(rows, minutes.Row{
			MatchDataID:      st.Data.ID,
			PlayerID:         playerID,
			AlgorithmVersion: minutes.AlgorithmVersion,
			MinutesPlayed:    played[playerID],
			ComputedAt:       computedAt,
		})
	}
	return rows
}

func BreakdownCacheKey(matchDataID string, version impact.Version) string {
	return fmt.Sprintf("impact-breakdown:%s:%s:%d", matchDataID, version, BreakdownSchemaVersion)
}
