package app

import (
	"context"
	"fmt"
	"time"

	"github.com/riskibarqy/korfbal-live/internal/config"
	"github.com/riskibarqy/korfbal-live/internal/domain/impact"
	"github.com/riskibarqy/korfbal-live/internal/domain/jobscheduler"
	"github.com/riskibarqy/korfbal-live/internal/domain/match"
	"github.com/riskibarqy/korfbal-live/internal/domain/minutes"
	"github.com/riskibarqy/korfbal-live/internal/domain/roster"
	"github.com/riskibarqy/korfbal-live/internal/infrastructure/repository/cache"
	"github.com/riskibarqy/korfbal-live/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/korfbal-live/internal/infrastructure/repository/postgres"
	"github.com/riskibarqy/korfbal-live/internal/platform/logging"
)

type matchStore interface {
	match.Repository
	match.Store
}

type storage struct {
	matches  matchStore
	rosters  roster.Repository
	impacts  impact.Repository
	minutes  minutes.Repository
	dispatch jobscheduler.Repository
	close    func(context.Context) error
}

func newStorage(ctx context.Context, cfg config.Config, logger *logging.Logger) (storage, error) {
	var out storage
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		db, err := openDB(ctx, cfg)
		if err != nil {
			return storage{}, err
		}
		if cfg.DBSeed {
			if err := postgres.BootstrapSeed(ctx, db, time.Now()); err != nil {
				_ = db.Close()
				return storage{}, fmt.Errorf("seed database: %w", err)
			}
			logger.InfoContext(ctx, "database seeded")
		}
		out = storage{
			matches:  postgres.NewMatchStore(db),
			rosters:  postgres.NewRosterRepository(db),
			impacts:  postgres.NewImpactRepository(db),
			minutes:  postgres.NewMinutesRepository(db),
			dispatch: postgres.NewJobDispatchRepository(db),
			close:    func(context.Context) error { return db.Close() },
		}
	default:
		members, players, coaches := memory.SeedRoster()
		out = storage{
			matches:  memory.NewMatchStore(memory.SeedMatches(time.Now())),
			rosters:  memory.NewRosterRepository(members, players, coaches),
			impacts:  memory.NewImpactRepository(),
			minutes:  memory.NewMinutesRepository(),
			dispatch: memory.NewDispatchRepository(),
			close:    func(context.Context) error { return nil },
		}
	}

	if cfg.CacheDriver != config.CacheNone {
		out.rosters = cache.NewRosterRepository(out.rosters, cfg.RosterCacheTTL)
	}
	logger.InfoContext(ctx, "storage ready", "driver", cfg.StorageDriver, "cache", cfg.CacheDriver)
	return out, nil
}
