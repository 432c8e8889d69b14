package app

import (
	"context"
	"fmt"

	"github.com/riskibarqy/korfbal-live/internal/config"
	"github.com/riskibarqy/korfbal-live/internal/infrastructure/jobqueue"
	"github.com/riskibarqy/korfbal-live/internal/platform/logging"
	"github.com/riskibarqy/korfbal-live/internal/usecase"
)

// newJobQueue builds the broker selected by JOB_QUEUE_DRIVER. The returned
// close func is never nil.
func newJobQueue(ctx context.Context, cfg config.Config, handlers jobqueue.Handlers, logger *logging.Logger) (usecase.JobQueue, func(context.Context) error, error) {
	switch cfg.JobQueueDriver {
	case config.QueueQStash:
		publisher, err := jobqueue.NewQStashPublisher(jobqueue.QStashPublisherConfig{
			BaseURL:          cfg.QStashBaseURL,
			Token:            cfg.QStashToken,
			TargetBaseURL:    cfg.QStashTargetBaseURL,
			Retries:          cfg.QStashRetries,
			InternalJobToken: cfg.InternalJobToken,
			Timeout:          cfg.QStashTimeout,
			CircuitBreaker:   cfg.QStashCircuit,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return publisher, func(context.Context) error { return nil }, nil
	case config.QueueJetStream:
		queue, err := jobqueue.NewJetStreamQueue(ctx, jobqueue.JetStreamConfig{
			URL:        cfg.NATSURL,
			StreamName: cfg.NATSStream,
		}, handlers, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connect jetstream: %w", err)
		}
		if err := queue.Start(ctx); err != nil {
			_ = queue.Close(ctx)
			return nil, nil, fmt.Errorf("start jetstream consumer: %w", err)
		}
		return queue, queue.Close, nil
	default:
		queue, err := jobqueue.NewLocalQueue(jobqueue.LocalConfig{Workers: cfg.DerivationWorkers}, handlers, logger)
		if err != nil {
			return nil, nil, err
		}
		return queue, queue.Close, nil
	}
}
