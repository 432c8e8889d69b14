package jobqueue

import (
	"context"
	"sync"
	"time"

	crerr "github.com/cockroachdb/errors"
	"github.com/jonboulle/clockwork"
	"github.com/panjf2000/ants/v2"
	"github.com/riskibarqy/korfbal-live/internal/platform/logging"
	"github.com/riskibarqy/korfbal-live/internal/usecase"
)

const DefaultLocalWorkers = 4

var ErrQueueClosed = crerr.New("job queue is closed")

type LocalConfig struct {
	Workers int
	Clock   clockwork.Clock
}

// LocalQueue runs jobs in-process on an ants pool. A job that is already
// waiting for a worker absorbs later duplicates for the same task and match;
// a job that is running does not, so changes made meanwhile get their own run.
type LocalQueue struct {
	pool     *ants.Pool
	clock    clockwork.Clock
	handlers Handlers
	logger   *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	closed  bool
	pending map[string]struct{}
	timers  map[clockwork.Timer]struct{}
	running sync.WaitGroup
}

func NewLocalQueue(cfg LocalConfig, handlers Handlers, logger *logging.Logger) (*LocalQueue, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultLocalWorkers
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = logging.Default()
	}
	pool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return nil, crerr.Wrap(err, "create local job pool")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &LocalQueue{
		pool:     pool,
		clock:    cfg.Clock,
		handlers: handlers,
		logger:   logger.Named("jobqueue.local"),
		ctx:      ctx,
		cancel:   cancel,
		pending:  make(map[string]struct{}),
		timers:   make(map[clockwork.Timer]struct{}),
	}, nil
}

func (q *LocalQueue) Enqueue(ctx context.Context, path string, payload any, delay time.Duration, deduplicationID string) error {
	handler, err := q.handlers.lookup(path)
	if err != nil {
		return err
	}
	raw, err := encodePayload(payload)
	if err != nil {
		return err
	}
	key := coalesceKey(path, raw)

	path = normalizePath(path)

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	if delay > 0 {
		var timer clockwork.Timer
		timer = q.clock.AfterFunc(delay, func() {
			q.mu.Lock()
			delete(q.timers, timer)
			reserved := !q.closed && q.reserveLocked(key)
			q.mu.Unlock()
			if !reserved {
				return
			}
			if err := q.submit(key, path, handler, raw, deduplicationID); err != nil {
				q.logger.Error("submit delayed job failed", "path", path, "dispatch_id", deduplicationID, "error", err)
			}
		})
		q.timers[timer] = struct{}{}
		q.mu.Unlock()
		q.logger.DebugContext(ctx, "job scheduled", "path", path, "delay", delay.String(), "dispatch_id", deduplicationID)
		return nil
	}
	reserved := q.reserveLocked(key)
	q.mu.Unlock()
	if !reserved {
		q.logger.DebugContext(ctx, "job coalesced", "path", path, "dispatch_id", deduplicationID)
		return nil
	}
	return q.submit(key, path, handler, raw, deduplicationID)
}

// reserveLocked marks key as waiting for a worker. It reports false when a
// job for the same key is already waiting.
func (q *LocalQueue) reserveLocked(key string) bool {
	if _, waiting := q.pending[key]; waiting {
		return false
	}
	q.pending[key] = struct{}{}
	q.running.Add(1)
	return true
}

func (q *LocalQueue) release(key string) {
	q.mu.Lock()
	delete(q.pending, key)
	q.mu.Unlock()
}

func (q *LocalQueue) submit(key, path string, handler usecase.JobHandler, raw []byte, dispatchID string) error {
	err := q.pool.Submit(func() {
		defer q.running.Done()
		q.release(key)

		if err := handler(q.ctx, raw); err != nil {
			q.logger.Error("local job failed", "path", path, "dispatch_id", dispatchID, "error", err)
		}
	})
	if err != nil {
		q.release(key)
		q.running.Done()
		return crerr.Wrapf(err, "submit job path=%s", path)
	}
	return nil
}

// Close drops delayed jobs, waits for running ones up to ctx and releases
// the pool.
func (q *LocalQueue) Close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	for timer := range q.timers {
		timer.Stop()
	}
	q.timers = nil
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.running.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	q.cancel()
	q.pool.Release()
	return err
}
