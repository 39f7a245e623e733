package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/kirillkom/patent-assistant-client/internal/config"
	"github.com/kirillkom/patent-assistant-client/internal/core/ports"
	"github.com/kirillkom/patent-assistant-client/internal/core/usecase"
	"github.com/kirillkom/patent-assistant-client/internal/infrastructure/backend"
	"github.com/kirillkom/patent-assistant-client/internal/infrastructure/clock"
	"github.com/kirillkom/patent-assistant-client/internal/infrastructure/events/nats"
	"github.com/kirillkom/patent-assistant-client/internal/infrastructure/inspect/pdf"
	"github.com/kirillkom/patent-assistant-client/internal/infrastructure/kv/localfs"
	"github.com/kirillkom/patent-assistant-client/internal/infrastructure/kv/memory"
	"github.com/kirillkom/patent-assistant-client/internal/infrastructure/kv/postgres"
	"github.com/kirillkom/patent-assistant-client/internal/infrastructure/kv/redis"
	"github.com/kirillkom/patent-assistant-client/internal/infrastructure/resilience"
	"github.com/kirillkom/patent-assistant-client/internal/observability/metrics"
)

const serviceName = "patent-client"

type App struct {
	Config  config.Config
	Logger  *slog.Logger
	Metrics *metrics.ClientMetrics

	Lifecycle *usecase.DocumentLifecycle
	Cache     *usecase.AnalysisCache

	closeFns []func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.NewClientMetrics(serviceName),
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.onClose(closeStore)

	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:        cfg.RetryMaxAttempts,
		RetryInitialBackoff:     cfg.RetryInitialBackoff,
		RetryMaxBackoff:         cfg.RetryMaxBackoff,
		BreakerEnabled:          cfg.BreakerEnabled,
		BreakerMinRequests:      uint32(max(cfg.BreakerMinRequests, 0)),
		BreakerFailureRatio:     cfg.BreakerFailureRatio,
		BreakerOpenTimeout:      cfg.BreakerOpenTimeout,
		BreakerHalfOpenMaxCalls: uint32(max(cfg.BreakerHalfOpenMaxCalls, 0)),
		Logger:                  logger,
		Observer:                app.Metrics,
	})

	var (
		events ports.LifecycleEvents
		feed   ports.StatusFeed
	)
	if cfg.NATSURL != "" {
		bus, err := nats.Connect(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: executor,
			Logger:             logger,
		})
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("init lifecycle events: %w", err)
		}
		app.onClose(bus.Close)
		events = bus
		feed = bus
	}

	mode := usecase.ProcessingMode(cfg.ProcessingMode)
	switch mode {
	case usecase.ProcessingSimulated:
	case usecase.ProcessingStatus:
		if feed == nil {
			app.Close()
			return nil, fmt.Errorf("processing mode %q requires NATS_URL", mode)
		}
	default:
		app.Close()
		return nil, fmt.Errorf("unknown processing mode %q", cfg.ProcessingMode)
	}

	client := backend.New(cfg.BackendURL, backend.Options{
		Timeout:   cfg.BackendTimeout,
		RateLimit: rate.Limit(cfg.BackendRateLimitRPS),
		Burst:     cfg.BackendRateLimitBurst,
		Executor:  executor,
		Recorder:  app.Metrics,
		Logger:    logger,
	})
	scheduler := clock.New()

	app.Cache = usecase.NewAnalysisCache(store, scheduler, usecase.AnalysisCacheOptions{
		Key:      cfg.CacheKey,
		TTL:      cfg.CacheTTL,
		Logger:   logger,
		Recorder: app.Metrics,
	})
	uploader := usecase.NewUploadCoordinator(client, usecase.UploadOptions{
		MaxSize:   cfg.MaxUploadBytes,
		Inspector: pdf.New(),
		Events:    events,
		Recorder:  app.Metrics,
		Clock:     scheduler,
		Logger:    logger,
	})
	tracker := usecase.NewProcessingTracker(scheduler, usecase.ProcessingOptions{
		Mode:            mode,
		ProcessingDelay: cfg.ProcessingDelay,
		HandoffDelay:    cfg.HandoffDelay,
		Feed:            feed,
		Events:          events,
		Recorder:        app.Metrics,
		Logger:          logger,
	})
	loader := usecase.NewAnalysisLoader(app.Cache, client, scheduler, usecase.AnalysisLoaderOptions{
		Events:   events,
		Recorder: app.Metrics,
		Logger:   logger,
	})
	app.Lifecycle = usecase.NewDocumentLifecycle(uploader, tracker, loader, client, usecase.ConversationOptions{
		Clock:    scheduler,
		Recorder: app.Metrics,
		Logger:   logger,
	})

	logger.Info("client_ready",
		"backend_url", cfg.BackendURL,
		"cache_backend", cfg.CacheBackend,
		"processing_mode", mode,
		"events_enabled", events != nil,
	)
	return app, nil
}

func openStore(ctx context.Context, cfg config.Config) (ports.KeyValueStore, func(), error) {
	switch cfg.CacheBackend {
	case "", "file":
		store, err := localfs.New(cfg.CachePath)
		if err != nil {
			return nil, nil, fmt.Errorf("init file cache: %w", err)
		}
		return store, func() {}, nil
	case "memory":
		return memory.New(cfg.CacheTTL), func() {}, nil
	case "redis":
		store, err := redis.Connect(ctx, redis.Options{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			Prefix:    serviceName + ":",
			Retention: cfg.CacheTTL,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init redis cache: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	case "postgres":
		db, err := postgres.OpenDB(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		store := postgres.New(db)
		if err := store.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		return store, func() { _ = db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}

func (a *App) onClose(fn func()) {
	a.closeFns = append(a.closeFns, fn)
}

func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}
