package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/automata"
	"github.com/aretw0/automata/internal/adapters/file"
	"github.com/aretw0/automata/internal/config"
	"github.com/aretw0/automata/pkg/adapters/backend"
	httpadapter "github.com/aretw0/automata/pkg/adapters/http"
	"github.com/aretw0/automata/pkg/adapters/loam"
	"github.com/aretw0/automata/pkg/adapters/memory"
	"github.com/aretw0/automata/pkg/adapters/redis"
	"github.com/aretw0/automata/pkg/observability"
	"github.com/aretw0/automata/pkg/persistence/middleware"
	"github.com/aretw0/automata/pkg/ports"
	"github.com/aretw0/automata/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
)

// App is everything a command needs, wired from one Config.
type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Engine   *automata.Engine
	Sessions *session.Manager
	Streams  *httpadapter.StreamManager
	// Registry is nil when metrics are disabled.
	Registry *prometheus.Registry
	// Catalog is the directory catalog, nil without catalog.dir.
	Catalog *loam.Catalog

	redis *goredis.Client
}

// Build wires the engine, session manager and their adapters following cfg.
func Build(cfg config.Config, logger *slog.Logger) (*App, error) {
	app := &App{Config: cfg, Logger: logger}

	engineOpts := []automata.Option{
		automata.WithLogger(logger),
		automata.WithDuplicatePolicy(cfg.DuplicatePolicy()),
		automata.WithLifecycleHooks(observability.LoggingHooks(logger)),
	}

	if cfg.Metrics.Enabled {
		app.Registry = prometheus.NewRegistry()
		app.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics, err := observability.NewMetrics(app.Registry)
		if err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		engineOpts = append(engineOpts,
			automata.WithLifecycleHooks(metrics.Hooks()),
			automata.WithValidationObserver(metrics.ObserveValidation),
			automata.WithConversionObserver(metrics.ObserveConversion),
		)
	}

	var store ports.SessionStore
	var locker ports.DistributedLocker
	switch cfg.Store.Kind {
	case config.StoreFile:
		store = file.New(cfg.Store.Dir)
	case config.StoreRedis:
		app.redis = redis.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		store = redis.NewFromClient(app.redis, redis.WithPrefix(cfg.Redis.Prefix), redis.WithTTL(cfg.Redis.TTL))
		locker = redis.NewLocker(app.redis, cfg.Redis.Prefix)
		engineOpts = append(engineOpts, automata.WithHistory(redis.NewHistory(app.redis, cfg.Redis.Prefix, cfg.History.Limit)))
	default:
		store = memory.NewStore()
	}
	if app.redis == nil {
		engineOpts = append(engineOpts, automata.WithHistory(memory.NewHistory(cfg.History.Limit)))
	}

	key, previous, err := cfg.Store.Keys()
	if err != nil {
		app.Close()
		return nil, err
	}
	if key != nil {
		store = middleware.Chain(store, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    key,
			FallbackKeys: previous,
		}))
		logger.Debug("session encryption enabled", "previous_keys", len(previous))
	}

	if cfg.Backend.URL != "" {
		client, err := backend.New(cfg.Backend.URL, backend.WithTimeout(cfg.Backend.Timeout), backend.WithLogger(logger))
		if err != nil {
			app.Close()
			return nil, err
		}
		engineOpts = append(engineOpts, automata.WithConverter(client))
	}

	if cfg.Catalog.Dir != "" {
		dir, err := loam.Open(cfg.Catalog.Dir, loam.WithLogger(logger))
		if err != nil {
			app.Close()
			return nil, err
		}
		app.Catalog = dir
		engineOpts = append(engineOpts, automata.WithCatalog(Layered(dir, memory.Builtin())))
	}

	app.Engine = automata.New(engineOpts...)
	app.Streams = httpadapter.NewStreamManager(logger)

	sessOpts := []session.Option{
		session.WithLogger(logger),
		session.WithConverter(app.Engine.Converter()),
		session.WithSimulatorOptions(app.Engine.SimulatorOptions()...),
		session.WithValidatorOptions(app.Engine.ValidatorOptions()...),
		session.WithDiffListener(app.Streams.Publish),
	}
	if locker != nil {
		sessOpts = append(sessOpts, session.WithLocker(locker))
	}
	app.Sessions = session.NewManager(store, sessOpts...)
	return app, nil
}

// Ping checks the external services the app depends on.
func (a *App) Ping(ctx context.Context) error {
	if a.redis == nil {
		return nil
	}
	if err := a.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis unreachable at %s: %w", a.Config.Redis.Addr, err)
	}
	return nil
}

// Gatherer returns the metrics registry, or nil when metrics are disabled.
func (a *App) Gatherer() prometheus.Gatherer {
	if a.Registry == nil {
		return nil
	}
	return a.Registry
}

// Close releases connections opened by Build.
func (a *App) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	return errors.Join(errs...)
}
