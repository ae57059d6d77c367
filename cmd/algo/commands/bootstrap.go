package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/trobrock/trading-algo/internal/broker"
	"github.com/trobrock/trading-algo/internal/journal"
	"github.com/trobrock/trading-algo/internal/marketdata"
	"github.com/trobrock/trading-algo/internal/router"
	"github.com/trobrock/trading-algo/internal/runner"
	"github.com/trobrock/trading-algo/internal/scheduler"
	"github.com/trobrock/trading-algo/internal/screen"
	"github.com/trobrock/trading-algo/internal/strategy"
	"github.com/trobrock/trading-algo/internal/strategy/catalog"
	"github.com/trobrock/trading-algo/internal/strategyconfig"
	"github.com/trobrock/trading-algo/pkg/config"
	"github.com/trobrock/trading-algo/pkg/database"
	"github.com/trobrock/trading-algo/pkg/logger"
	"github.com/trobrock/trading-algo/pkg/redis"
)

// app holds everything a running strategy needs
type app struct {
	cfg       *config.Config
	logger    *logger.Logger
	strategy  strategy.Strategy
	env       *strategy.Env
	broker    *broker.Paper
	journal   journal.Store
	scheduler *scheduler.Scheduler
	runner    *runner.Runner

	db    *database.DB // nil without DATABASE_URL
	redis *redis.Client
}

type appOptions struct {
	strategy   string
	dataDir    string
	allowShort bool
}

// loadStrategyConfig reads the parameter file over the environment defaults
func loadStrategyConfig(cfg *config.Config) (*strategyconfig.Config, string, error) {
	scfg, _, err := strategyconfig.Load(strategiesFile, strategyconfig.Defaults(cfg))
	if err != nil {
		return nil, "", fmt.Errorf("load %s: %w", strategiesFile, err)
	}
	hash, err := strategyconfig.Hash(scfg)
	if err != nil {
		return nil, "", fmt.Errorf("hash strategy config: %w", err)
	}
	return scfg, hash, nil
}

// newApp wires the strategy to the paper broker, journal and scheduler
func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	log := logger.New(cfg)

	loc, err := cfg.Market.Location()
	if err != nil {
		return nil, err
	}

	scfg, hash, err := loadStrategyConfig(cfg)
	if err != nil {
		return nil, err
	}
	s, err := catalog.Build(opts.strategy, scfg)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: log, strategy: s}

	a.redis, err = redis.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	if cfg.Database.Enabled() {
		a.db, err = database.New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		repo := journal.NewRepository(a.db.Pool)
		if err := repo.Migrate(ctx); err != nil {
			a.close()
			return nil, fmt.Errorf("migrate journal: %w", err)
		}
		a.journal = repo
	} else {
		log.Warn("DATABASE_URL not set, journal kept in memory")
		a.journal = journal.NewMemory()
	}

	data := marketdata.NewCSV(opts.dataDir, log)

	var paperOpts []broker.PaperOption
	if opts.allowShort {
		paperOpts = append(paperOpts, broker.WithShorting())
	}
	a.broker = broker.NewPaper(cfg.Trading.PaperCash, data, log.WithField("component", "paper"), paperOpts...)

	var scr screen.Screen
	if path, ok := scfg.Screens[s.Name()]; ok {
		cache := redis.NewCache(a.redis, "screen")
		scr = screen.NewCached(s.Name(), screen.NewFile(path), cache, log)
	}

	a.env = &strategy.Env{
		Name:       s.Name(),
		Broker:     a.broker,
		Data:       data,
		Screen:     scr,
		State:      redis.NewState(a.redis, "state:"+s.Name()),
		Orders:     router.New(a.broker, a.journal, cfg.Trading.OrderRateLimit, cfg.Trading.OrderWorkers, log),
		Recorder:   a.journal,
		Runs:       a.journal,
		Location:   loc,
		Logger:     log.WithField("strategy", s.Name()),
		ConfigHash: hash,
	}

	a.scheduler = scheduler.New(log,
		scheduler.WithLocation(loc),
		scheduler.WithRetries(cfg.Trading.MaxJobRetries, time.Minute),
	)
	a.runner = runner.New(s, a.env, a.scheduler, redis.NewDailyGuard(a.redis, "algo"), runner.WithSyncer(a.broker))

	return a, nil
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.WithError(err).Warn("Failed to close redis")
		}
	}
}
