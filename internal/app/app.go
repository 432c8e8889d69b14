package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/riskibarqy/korfbal-live/internal/config"
	"github.com/riskibarqy/korfbal-live/internal/infrastructure/account/anubis"
	"github.com/riskibarqy/korfbal-live/internal/infrastructure/jobqueue"
	"github.com/riskibarqy/korfbal-live/internal/infrastructure/repository/cache"
	"github.com/riskibarqy/korfbal-live/internal/interfaces/httpapi"
	"github.com/riskibarqy/korfbal-live/internal/observability"
	idgen "github.com/riskibarqy/korfbal-live/internal/platform/id"
	"github.com/riskibarqy/korfbal-live/internal/platform/livehub"
	"github.com/riskibarqy/korfbal-live/internal/platform/logging"
	"github.com/riskibarqy/korfbal-live/internal/platform/resilience"
	"github.com/riskibarqy/korfbal-live/internal/usecase"
)

// Server is the HTTP server plus everything that must stop with it.
type Server struct {
	HTTP *http.Server

	hub     *livehub.Hub
	closers []namedCloser
	logger  *logging.Logger
}

type namedCloser struct {
	name string
	fn   func(context.Context) error
}

func NewHTTPServer(ctx context.Context, cfg config.Config, logger *logging.Logger) (*Server, error) {
	if cfg.HTTPAddr == "" {
		return nil, fmt.Errorf("http server addr cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	srv := &Server{logger: logger}

	var metrics *observability.Metrics
	hubOpts := []livehub.Option{livehub.WithLogger(logger)}
	if cfg.MetricsEnabled {
		metrics = observability.NewMetrics()
		hubOpts = append(hubOpts, livehub.WithObserver(metrics))
		resilience.SetStateObserver(metrics.CircuitStateChanged)
	}
	srv.hub = livehub.New(hubOpts...)

	store, err := newStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	srv.addCloser("storage", store.close)

	breakdowns, err := newBreakdownCache(ctx, cfg, logger)
	if err != nil {
		_ = srv.Shutdown(ctx)
		return nil, err
	}
	if c, ok := breakdowns.(*cache.RedisBreakdownCache); ok {
		srv.addCloser("redis", func(context.Context) error { return c.Close() })
	}

	derivation := usecase.NewDerivationService(store.matches, store.impacts, store.minutes, breakdowns, srv.hub, store.dispatch, usecase.DerivationConfig{
		TaskTimeout:  cfg.DerivationTaskTimeout,
		MaxAttempts:  uint(cfg.DerivationMaxAttempts),
		BreakdownTTL: cfg.BreakdownCacheTTL,
	}, logger)

	jobHandlers := derivation.JobHandlers()
	queue, closeQueue, err := newJobQueue(ctx, cfg, jobqueue.Handlers(jobHandlers), logger)
	if err != nil {
		_ = srv.Shutdown(ctx)
		return nil, err
	}
	srv.addCloser("job queue", closeQueue)

	ids := idgen.NewUUIDGenerator()
	scheduler := usecase.NewDerivationScheduler(queue, store.dispatch, usecase.DerivationSchedulerConfig{
		FinishDelay: cfg.DerivationFinishDelay,
		DedupWindow: cfg.DerivationDedupWindow,
	}, logger)
	tracker := usecase.NewTrackerService(store.matches, store.matches, ids, srv.hub, scheduler, usecase.TrackerConfig{
		MaxClockSkew: cfg.ClockMaxSkew,
	}, logger)
	projections := usecase.NewProjectionService(store.matches, store.matches, store.rosters, store.impacts, store.minutes, breakdowns, scheduler, usecase.ProjectionConfig{
		BreakdownTTL: cfg.BreakdownCacheTTL,
	}, logger)
	if metrics != nil {
		tracker.SetObserver(metrics)
		derivation.SetObserver(metrics)
	}

	anubisClient := anubis.NewClient(&http.Client{Timeout: cfg.AnubisTimeout}, anubis.Config{
		BaseURL:        cfg.AnubisBaseURL,
		IntrospectPath: cfg.AnubisIntrospectPath,
		AdminKey:       cfg.AnubisAdminKey,
		CacheTTL:       cfg.AnubisCacheTTL,
		CircuitBreaker: cfg.AnubisCircuit,
	}, logger)

	handler := httpapi.NewHandler(httpapi.HandlerDeps{
		Matches:            usecase.NewMatchService(store.matches, store.rosters, ids, logger),
		Projections:        projections,
		Timer:              usecase.NewTimerService(store.matches, store.matches),
		Tracker:            tracker,
		Live:               usecase.NewLiveService(projections, tracker, srv.hub, usecase.LiveConfig{MaxTimeout: cfg.LongPollMaxTimeout}, logger),
		Access:             usecase.NewAccessService(anubisClient, store.matches, store.rosters),
		Hub:                srv.hub,
		Jobs:               jobHandlers,
		Logger:             logger,
		HideInternalErrors: cfg.AppEnv == config.EnvProd,
	})

	routerCfg := httpapi.RouterConfig{
		Logger:             logger,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		InternalJobToken:   cfg.InternalJobToken,
	}
	if metrics != nil {
		routerCfg.Metrics = metrics.Handler()
	}

	srv.HTTP = &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewRouter(handler, routerCfg),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return srv, nil
}

func newBreakdownCache(ctx context.Context, cfg config.Config, logger *logging.Logger) (usecase.BreakdownCache, error) {
	switch cfg.CacheDriver {
	case config.CacheRedis:
		client, err := cache.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("create redis client: %w", err)
		}
		breakdowns := cache.NewRedisBreakdownCache(client, cache.RedisConfig{
			URL:            cfg.RedisURL,
			KeyPrefix:      cfg.RedisKeyPrefix,
			CircuitBreaker: cfg.RedisCircuit,
		}, logger)
		if err := breakdowns.Ping(ctx); err != nil {
			logger.WarnContext(ctx, "redis unreachable at startup", "error", err)
		}
		return breakdowns, nil
	case config.CacheNone:
		return usecase.NewNoopBreakdownCache(), nil
	default:
		return cache.NewMemoryBreakdownCache(cfg.BreakdownCacheTTL), nil
	}
}

func (s *Server) addCloser(name string, fn func(context.Context) error) {
	if fn != nil {
		s.closers = append(s.closers, namedCloser{name: name, fn: fn})
	}
}

// Shutdown stops accepting requests, closes live subscribers, then releases
// queues and storage in reverse construction order.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if s.HTTP != nil {
		if err := s.HTTP.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown http: %w", err))
		}
	}
	if s.hub != nil {
		s.hub.Close()
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		c := s.closers[i]
		if err := c.fn(ctx); err != nil {
			s.logger.WarnContext(ctx, "close component failed", "component", c.name, "error", err)
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	return errors.Join(errs...)
}
