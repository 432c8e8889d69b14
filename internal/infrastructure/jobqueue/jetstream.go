package jobqueue

import (
	"context"
	"strings"
	"sync"
	"time"

	crerr "github.com/cockroachdb/errors"
	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/riskibarqy/korfbal-live/internal/platform/logging"
)

const (
	DefaultStreamName      = "KORFBAL_DERIVATION"
	DefaultSubjectPrefix   = "korfbal.derivation"
	DefaultConsumerName    = "korfbal-derivation-worker"
	DefaultDuplicateWindow = 2 * time.Minute

	jobPathHeader      = "Job-Path"
	consumerMaxDeliver = 3
	consumerAckWait    = 60 * time.Second
)

type JetStreamConfig struct {
	URL             string
	StreamName      string
	SubjectPrefix   string
	ConsumerName    string
	DuplicateWindow time.Duration
	MaxReconnects   int
	ReconnectWait   time.Duration
	Clock           clockwork.Clock
}

// JetStreamQueue publishes jobs to a NATS JetStream stream and consumes them
// with a durable consumer. The deduplication id becomes the message id, so the
// stream drops repeats inside the duplicate window.
type JetStreamQueue struct {
	cfg      JetStreamConfig
	nc       *nats.Conn
	js       jetstream.JetStream
	handlers Handlers
	clock    clockwork.Clock
	logger   *logging.Logger

	mu       sync.Mutex
	closed   bool
	timers   map[clockwork.Timer]struct{}
	consumer jetstream.ConsumeContext
}

func NewJetStreamQueue(ctx context.Context, cfg JetStreamConfig, handlers Handlers, logger *logging.Logger) (*JetStreamQueue, error) {
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.Named("jobqueue.jetstream")
	cfg = normalizeJetStreamConfig(cfg)

	opts := []nats.Option{
		nats.Name("korfbal-live"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			logger.Error("nats error", "error", err)
		}),
	}
	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, crerr.Wrap(err, "connect to nats")
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, crerr.Wrap(err, "create jetstream context")
	}

	q := &JetStreamQueue{
		cfg:      cfg,
		nc:       nc,
		js:       js,
		handlers: handlers,
		clock:    cfg.Clock,
		logger:   logger,
		timers:   make(map[clockwork.Timer]struct{}),
	}
	if err := q.ensureStream(ctx); err != nil {
		nc.Close()
		return nil, err
	}
	return q, nil
}

func normalizeJetStreamConfig(cfg JetStreamConfig) JetStreamConfig {
	if strings.TrimSpace(cfg.URL) == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.StreamName == "" {
		cfg.StreamName = DefaultStreamName
	}
	cfg.SubjectPrefix = strings.TrimRight(cfg.SubjectPrefix, ".")
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = DefaultSubjectPrefix
	}
	if cfg.ConsumerName == "" {
		cfg.ConsumerName = DefaultConsumerName
	}
	if cfg.DuplicateWindow <= 0 {
		cfg.DuplicateWindow = DefaultDuplicateWindow
	}
	if cfg.MaxReconnects == 0 {
		cfg.MaxReconnects = -1
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 2 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return cfg
}

func (q *JetStreamQueue) ensureStream(ctx context.Context) error {
	_, err := q.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        q.cfg.StreamName,
		Description: "Korfbal derivation jobs",
		Subjects:    []string{q.cfg.SubjectPrefix + ".>"},
		Retention:   jetstream.WorkQueuePolicy,
		Storage:     jetstream.FileStorage,
		Duplicates:  q.cfg.DuplicateWindow,
	})
	if err != nil {
		return crerr.Wrapf(err, "ensure stream %s", q.cfg.StreamName)
	}
	return nil
}

// subjectFor maps a job path to a stream subject, using its last segment.
func (q *JetStreamQueue) subjectFor(path string) string {
	path = normalizePath(path)
	return q.cfg.SubjectPrefix + "." + path[strings.LastIndex(path, "/")+1:]
}

func (q *JetStreamQueue) Enqueue(ctx context.Context, path string, payload any, delay time.Duration, deduplicationID string) error {
	path = normalizePath(path)
	if _, err := q.handlers.lookup(path); err != nil {
		return err
	}
	raw, err := encodePayload(payload)
	if err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}

	if delay > 0 {
		var timer clockwork.Timer
		timer = q.clock.AfterFunc(delay, func() {
			q.mu.Lock()
			delete(q.timers, timer)
			closed := q.closed
			q.mu.Unlock()
			if closed {
				return
			}
			publishCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := q.publish(publishCtx, path, raw, deduplicationID); err != nil {
				q.logger.Error("publish delayed job failed", "path", path, "dispatch_id", deduplicationID, "error", err)
			}
		})
		q.timers[timer] = struct{}{}
		return nil
	}
	return q.publish(ctx, path, raw, deduplicationID)
}

func (q *JetStreamQueue) publish(ctx context.Context, path string, raw []byte, deduplicationID string) error {
	msg := &nats.Msg{
		Subject: q.subjectFor(path),
		Data:    raw,
		Header:  nats.Header{},
	}
	msg.Header.Set(jobPathHeader, path)

	opts := []jetstream.PublishOpt{jetstream.WithExpectStream(q.cfg.StreamName)}
	if id := strings.TrimSpace(deduplicationID); id != "" {
		opts = append(opts, jetstream.WithMsgID(id))
	}
	ack, err := q.js.PublishMsg(ctx, msg, opts...)
	if err != nil {
		return crerr.Wrapf(err, "publish job subject=%s", msg.Subject)
	}
	q.logger.DebugContext(ctx, "job published", "subject", msg.Subject, "sequence", ack.Sequence, "duplicate", ack.Duplicate)
	return nil
}

// Start creates the durable consumer and runs handlers for delivered jobs.
// Permanent failures are terminated; anything else is redelivered up to the
// consumer's delivery limit.
func (q *JetStreamQueue) Start(ctx context.Context) error {
	consumer, err := q.js.CreateOrUpdateConsumer(ctx, q.cfg.StreamName, jetstream.ConsumerConfig{
		Name:          q.cfg.ConsumerName,
		Durable:       q.cfg.ConsumerName,
		Description:   "Korfbal derivation worker",
		FilterSubject: q.cfg.SubjectPrefix + ".>",
		DeliverPolicy: jetstream.DeliverAllPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    consumerMaxDeliver,
		AckWait:       consumerAckWait,
	})
	if err != nil {
		return crerr.Wrapf(err, "ensure consumer %s", q.cfg.ConsumerName)
	}

	consumeCtx, err := consumer.Consume(func(msg jetstream.Msg) {
		q.handle(ctx, msg)
	})
	if err != nil {
		return crerr.Wrap(err, "start consumer")
	}

	q.mu.Lock()
	q.consumer = consumeCtx
	q.mu.Unlock()
	q.logger.Info("jetstream consumer started", "stream", q.cfg.StreamName, "consumer", q.cfg.ConsumerName)
	return nil
}

func (q *JetStreamQueue) handle(ctx context.Context, msg jetstream.Msg) {
	path := msg.Headers().Get(jobPathHeader)
	handler, err := q.handlers.lookup(path)
	if err != nil {
		q.logger.Error("dropping job without handler", "subject", msg.Subject(), "error", err)
		_ = msg.Term()
		return
	}

	taskCtx, cancel := context.WithTimeout(ctx, consumerAckWait)
	defer cancel()
	err = handler(taskCtx, msg.Data())
	switch {
	case err == nil:
		if ackErr := msg.Ack(); ackErr != nil {
			q.logger.Warn("ack job failed", "path", path, "error", ackErr)
		}
	case isPermanent(err):
		q.logger.Error("job failed permanently", "path", path, "error", err)
		_ = msg.Term()
	default:
		q.logger.Warn("job failed, requesting redelivery", "path", path, "error", err)
		_ = msg.Nak()
	}
}

func (q *JetStreamQueue) Close(_ context.Context) error {
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
	consumer := q.consumer
	q.mu.Unlock()

	if consumer != nil {
		consumer.Stop()
	}
	if err := q.nc.Drain(); err != nil {
		q.nc.Close()
		return crerr.Wrap(err, "drain nats connection")
	}
	return nil
}
