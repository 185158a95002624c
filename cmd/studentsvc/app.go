package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/gorm"

	"github.com/Saiteja21M/studentsvc/internal/config"
	"github.com/Saiteja21M/studentsvc/internal/logging"
	"github.com/Saiteja21M/studentsvc/pkg/admin"
	"github.com/Saiteja21M/studentsvc/pkg/aftercommit"
	"github.com/Saiteja21M/studentsvc/pkg/api"
	"github.com/Saiteja21M/studentsvc/pkg/auth"
	"github.com/Saiteja21M/studentsvc/pkg/cache"
	"github.com/Saiteja21M/studentsvc/pkg/engine"
	"github.com/Saiteja21M/studentsvc/pkg/records"
	"github.com/Saiteja21M/studentsvc/pkg/registry"
	"github.com/Saiteja21M/studentsvc/pkg/storage"
)

// app holds every wired component of a running service.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	db      *gorm.DB
	store   *storage.GormStorage
	cache   cache.Cache
	engine  *engine.Engine
	admin   *admin.Scheduler
	records *records.Service
	runner  *aftercommit.Runner
	server  *api.Server
}

func loadConfig(path string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.Setup(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}, os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func openDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var pool []storage.PoolOption
	if cfg.MaxOpenConns > 0 {
		pool = append(pool, storage.MaxOpenConns(cfg.MaxOpenConns))
	}
	if cfg.MaxIdleConns > 0 {
		pool = append(pool, storage.MaxIdleConns(cfg.MaxIdleConns))
	}
	if cfg.ConnMaxLifetime > 0 {
		pool = append(pool, storage.ConnMaxLifetime(cfg.ConnMaxLifetime))
	}
	if cfg.ConnMaxIdleTime > 0 {
		pool = append(pool, storage.ConnMaxIdleTime(cfg.ConnMaxIdleTime))
	}
	return storage.Open(storage.OpenConfig{Driver: cfg.Driver, DSN: cfg.DSN, Pool: pool})
}

// migrate creates the scheduler and record tables.
func migrate(ctx context.Context, db *gorm.DB) error {
	if err := storage.NewGormStorage(db).Migrate(ctx); err != nil {
		return fmt.Errorf("migrate scheduler tables: %w", err)
	}
	svc := records.NewService(aftercommit.New(db), nil)
	if err := svc.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate record tables: %w", err)
	}
	return nil
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	db, err := openDB(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := migrate(ctx, db); err != nil {
		return nil, err
	}

	c, err := cache.New(cache.Config{
		Backend:  cfg.Cache.Backend,
		RedisURL: cfg.Cache.RedisURL,
		TTL:      cfg.Cache.TTL,
		Size:     cfg.Cache.Size,
		Prefix:   cfg.Cache.Prefix,
	})
	if err != nil {
		return nil, err
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	store := storage.NewGormStorage(db)
	reg := registry.New()
	eng := engine.New(store, reg,
		engine.PollInterval(cfg.Engine.PollInterval),
		engine.Concurrency(cfg.Engine.Concurrency),
		engine.BatchSize(cfg.Engine.BatchSize),
		engine.CompletedRetention(cfg.Engine.CompletedRetention),
		engine.PurgeInterval(cfg.Engine.PurgeInterval),
		engine.WithLogger(logger),
		engine.WithMetrics(engine.MustNewMetrics(promReg)),
	)
	sched := admin.New(store, reg, admin.WithEmitter(eng), admin.WithLogger(logger))

	var shows records.ShowLookup = records.NoShow{}
	if cfg.Shows.BaseURL != "" {
		shows = records.NewTVMazeClient(cfg.Shows.BaseURL, cfg.Shows.ShowID, cfg.Shows.Timeout)
	}
	runner := aftercommit.New(db, aftercommit.WithLogger(logger))
	svc := records.NewService(runner, sched,
		records.WithCache(c),
		records.WithShows(shows),
		records.WithMarksDelay(cfg.Marks.Delay),
		records.WithLogger(logger),
	)
	if err := svc.RegisterJobs(reg); err != nil {
		return nil, err
	}

	var authz auth.Authorizer = auth.AllowAll{}
	if len(cfg.Auth.Tokens) > 0 {
		authz = auth.NewStaticTokens(cfg.Auth.Tokens...)
	} else {
		logger.Warn("no auth tokens configured, every request is accepted")
	}
	server := api.New(api.Config{
		Addr:              cfg.HTTP.Addr,
		RequestsPerMinute: cfg.HTTP.RequestsPerMinute,
		Burst:             cfg.HTTP.Burst,
		ShutdownTimeout:   cfg.HTTP.ShutdownTimeout,
		Gatherer:          promReg,
	}, sched, svc, api.WithAuthorizer(authz), api.WithLogger(logger))

	return &app{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		store:   store,
		cache:   c,
		engine:  eng,
		admin:   sched,
		records: svc,
		runner:  runner,
		server:  server,
	}, nil
}

// close waits for pending post-commit hooks, then releases connections.
func (a *app) close() {
	a.runner.Wait()
	if rc, ok := a.cache.(*cache.RedisCache); ok {
		if err := rc.Close(); err != nil {
			a.logger.Warn("closing redis", "error", err)
		}
	}
	sqlDB, err := a.db.DB()
	if err != nil {
		a.logger.Warn("closing database", "error", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		a.logger.Warn("closing database", "error", err)
	}
}
