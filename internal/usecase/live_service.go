package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/riskibarqy/korfbal-live/internal/platform/livehub"
	"github.com/riskibarqy/korfbal-live/internal/platform/logging"
)

const DefaultLongPollMaxTimeout = 25 * time.Second

type PollInput struct {
	MatchID string
	TeamID  string
	Since   string
	Timeout time.Duration
}

type LiveConfig struct {
	MaxTimeout time.Duration
}

type liveReader interface {
	Live(ctx context.Context, matchID string) (LiveState, error)
}

type trackerReader interface {
	State(ctx context.Context, matchID, teamID string) (TrackerState, error)
}

// LiveService answers long-polls on the detail and tracker channels.
type LiveService struct {
	projections liveReader
	tracker     trackerReader
	hub         LiveHub
	cfg         LiveConfig
	logger      *logging.Logger
}

func NewLiveService(projections liveReader, tracker trackerReader, hub LiveHub, cfg LiveConfig, logger *logging.Logger) *LiveService {
	if hub == nil {
		hub = noopLiveHub{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.MaxTimeout <= 0 || cfg.MaxTimeout > DefaultLongPollMaxTimeout {
		cfg.MaxTimeout = DefaultLongPollMaxTimeout
	}
	return &LiveService{
		projections: projections,
		tracker:     tracker,
		hub:         hub,
		cfg:         cfg,
		logger:      logger,
	}
}

// ParseSince accepts RFC 3339 timestamps with optional fractional seconds.
func ParseSince(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("%w: since is required", ErrInvalidInput)
	}
	since, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: since must be an ISO 8601 timestamp", ErrInvalidInput)
	}
	return since.UTC(), nil
}

func (s *LiveService) clampTimeout(timeout time.Duration) time.Duration {
	if timeout < 0 {
		return 0
	}
	if timeout > s.cfg.MaxTimeout {
		return s.cfg.MaxTimeout
	}
	return timeout
}

// Poll waits for a detail change newer than input.Since.
func (s *LiveService) Poll(ctx context.Context, input PollInput) (PollResult[LiveState], error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.LiveService.Poll")
	defer span.End()

	key := livehub.Key{MatchID: strings.TrimSpace(input.MatchID), Role: livehub.RoleDetail}
	return longPoll(ctx, s, key, input, func(ctx context.Context) (LiveState, time.Time, error) {
		state, err := s.projections.Live(ctx, input.MatchID)
		return state, state.LastChangedAt, err
	})
}

// PollTracker waits for a tracker change of one team's side.
func (s *LiveService) PollTracker(ctx context.Context, input PollInput) (PollResult[TrackerState], error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.LiveService.PollTracker")
	defer span.End()

	key := livehub.Key{MatchID: strings.TrimSpace(input.MatchID), Role: livehub.RoleTracker}
	return longPoll(ctx, s, key, input, func(ctx context.Context) (TrackerState, time.Time, error) {
		state, err := s.tracker.State(ctx, input.MatchID, input.TeamID)
		return state, state.LastChangedAt, err
	})
}

// longPoll reads the topic sequence before the snapshot so a publish landing
// between the two still wakes the waiter.
func longPoll[T any](ctx context.Context, s *LiveService, key livehub.Key, input PollInput, load func(ctx context.Context) (T, time.Time, error)) (PollResult[T], error) {
	since, err := ParseSince(input.Since)
	if err != nil {
		return PollResult[T]{}, err
	}
	timeout := s.clampTimeout(input.Timeout)

	seq := s.hub.Seq(key)
	snapshot, changedAt, err := load(ctx)
	if err != nil {
		return PollResult[T]{}, err
	}
	if changedAt.After(since) {
		return PollResult[T]{Changed: true, LastChangedAt: changedAt, Snapshot: &snapshot}, nil
	}

	woke, _, err := s.hub.Wait(ctx, key, seq, timeout)
	if err != nil {
		if ctx.Err() != nil {
			return PollResult[T]{}, ctx.Err()
		}
		s.logger.WarnContext(ctx, "long-poll wait failed", "match_id", key.MatchID, "role", key.Role, "error", err)
		return PollResult[T]{Changed: false, LastChangedAt: changedAt}, nil
	}
	if !woke {
		return PollResult[T]{Changed: false, LastChangedAt: changedAt}, nil
	}

	snapshot, changedAt, err = load(ctx)
	if err != nil {
		return PollResult[T]{}, err
	}
	return PollResult[T]{Changed: true, LastChangedAt: changedAt, Snapshot: &snapshot}, nil
}
