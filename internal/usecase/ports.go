package usecase

import (
	"context"
	"time"

	"github.com/riskibarqy/korfbal-live/internal/domain/user"
	"github.com/riskibarqy/korfbal-live/internal/platform/livehub"
)

// JobQueue hands background work to a broker. Path names the job handler.
type JobQueue interface {
	Enqueue(ctx context.Context, path string, payload any, delay time.Duration, deduplicationID string) error
}

type noopJobQueue struct{}

func (noopJobQueue) Enqueue(_ context.Context, _ string, _ any, _ time.Duration, _ string) error {
	return nil
}

func NewNoopJobQueue() JobQueue {
	return noopJobQueue{}
}

// LiveHub is the fan-out seam; *livehub.Hub implements it.
type LiveHub interface {
	Publish(key livehub.Key, kind livehub.Kind, payload any) livehub.Message
	Seq(key livehub.Key) uint64
	Wait(ctx context.Context, key livehub.Key, afterSeq uint64, timeout time.Duration) (bool, uint64, error)
}

type noopLiveHub struct{}

func (noopLiveHub) Publish(livehub.Key, livehub.Kind, any) livehub.Message { return livehub.Message{} }
func (noopLiveHub) Seq(livehub.Key) uint64                                 { return 0 }
func (noopLiveHub) Wait(ctx context.Context, _ livehub.Key, afterSeq uint64, timeout time.Duration) (bool, uint64, error) {
	if timeout <= 0 {
		return false, afterSeq, nil
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-t.C:
		return false, afterSeq, nil
	case <-ctx.Done():
		return false, afterSeq, ctx.Err()
	}
}

// BreakdownCache stores rendered impact breakdowns. Implementations may be
// remote; callers treat every error as a miss.
type BreakdownCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type noopBreakdownCache struct{}

func (noopBreakdownCache) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (noopBreakdownCache) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (noopBreakdownCache) Delete(context.Context, string) error                     { return nil }

func NewNoopBreakdownCache() BreakdownCache {
	return noopBreakdownCache{}
}

// TokenVerifier resolves a bearer token into a principal.
type TokenVerifier interface {
	VerifyAccessToken(ctx context.Context, token string) (user.Principal, error)
}

// CommandObserver and DerivationObserver receive outcome signals for metrics.
type CommandObserver interface {
	ObserveCommand(command, outcome string, elapsed time.Duration)
}

type DerivationObserver interface {
	ObserveDerivation(task, outcome string, elapsed time.Duration)
}

type noopObserver struct{}

func (noopObserver) ObserveCommand(string, string, time.Duration)    {}
func (noopObserver) ObserveDerivation(string, string, time.Duration) {}
