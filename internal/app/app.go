package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/sundayezeilo/shortlinks/internal/analytics"
	"github.com/sundayezeilo/shortlinks/internal/cache"
	"github.com/sundayezeilo/shortlinks/internal/config"
	db "github.com/sundayezeilo/shortlinks/internal/db/sqlc"
	"github.com/sundayezeilo/shortlinks/internal/events"
	"github.com/sundayezeilo/shortlinks/internal/metrics"
	"github.com/sundayezeilo/shortlinks/internal/server"
	"github.com/sundayezeilo/shortlinks/internal/shortener"
	"github.com/sundayezeilo/shortlinks/internal/worker"
)

const metricsNamespace = "shortlinks"

// App holds the API server and the background components that share its connections.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Clients Clients

	Bus      events.Bus
	Pool     *worker.Pool
	Consumer *analytics.Consumer // nil when the in-process consumer is disabled
	Sweeper  *shortener.Sweeper
	Handler  *shortener.Handler
	Server   *server.Server
}

// New loads configuration, connects to every backing service and wires the application.
func New(ctx context.Context) (*App, error) {
	loadEnv()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := setupLogger(cfg.App.LogLevel)
	logger.Info("starting application",
		"env", cfg.App.Environment,
		"version", cfg.Observability.ServiceVersion,
	)

	clients, err := Connect(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	a, err := Assemble(ctx, cfg, logger, clients)
	if err != nil {
		_ = clients.Close(logger)
		return nil, err
	}

	logger.Info("application initialized",
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
		"events_backend", cfg.Analytics.EventsBackend,
		"analytics_store", cfg.Analytics.Store,
	)
	return a, nil
}

// Assemble wires the application on top of already connected clients.
// It starts the visit worker pool; everything else starts in Start.
func Assemble(ctx context.Context, cfg *config.Config, logger *slog.Logger, clients Clients) (*App, error) {
	var m *metrics.Metrics
	if cfg.Observability.MetricsEnabled {
		m = metrics.New(metricsNamespace)
	}

	queries := db.New(clients.DB)
	repo := shortener.NewRepository(queries, nil)
	linkCache := cache.New(clients.Redis)
	bus := newBus(cfg, clients)

	store, err := newAnalyticsStore(ctx, cfg, clients, queries)
	if err != nil {
		return nil, err
	}

	pool := worker.New(worker.Config{
		Workers:     cfg.Worker.Size,
		QueueSize:   cfg.Worker.QueueSize,
		TaskTimeout: cfg.Worker.TaskTimeout,
		Logger:      logger,
		OnDrop: func(_ string, reason error) {
			m.VisitDropped(dropReason(reason))
		},
	})

	svc := shortener.NewService(repo, &shortener.ServiceConfig{
		CodeLength:               cfg.Links.CodeLength,
		MaxRetries:               cfg.Links.MaxRetries,
		DefaultExpirationMinutes: cfg.Links.DefaultExpirationMinutes,
		Cache:                    linkCache,
		CacheWriteTimeout:        cfg.Cache.WriteTimeout,
		Events:                   store,
		Metrics:                  m,
		Logger:                   logger,
	})

	resolver := shortener.NewResolver(repo, &shortener.ResolverConfig{
		Cache:         linkCache,
		Publisher:     bus,
		Tasks:         pool,
		Topic:         cfg.Analytics.Topic,
		LookupTimeout: cfg.Cache.LookupTimeout,
		WriteTimeout:  cfg.Cache.WriteTimeout,
		FallbackTTL:   cfg.Cache.FallbackTTL,
		Metrics:       m,
		Logger:        logger,
	})

	handler := shortener.NewHandler(shortener.HandlerConfig{
		Service:  svc,
		Resolver: resolver,
		Logger:   logger,
		BaseURL:  cfg.Server.BaseURL,
	})

	var consumer *analytics.Consumer
	if cfg.Analytics.ConsumerEnabled {
		consumer = newConsumer(cfg, logger, m, bus, store)
	}

	return &App{
		Config:   cfg,
		Logger:   logger,
		Metrics:  m,
		Clients:  clients,
		Bus:      bus,
		Pool:     pool,
		Consumer: consumer,
		Sweeper: shortener.NewSweeper(repo, shortener.SweeperConfig{
			Interval: cfg.Sweeper.Interval,
			Metrics:  m,
			Logger:   logger,
		}),
		Handler: handler,
		Server:  server.New(cfg, logger, handler, m),
	}, nil
}

// Start serves HTTP and runs the consumer and sweeper until ctx is done or
// one of them fails. Shutdown is ordered: the HTTP server stops first, then
// queued visit tasks drain, then the background components stop.
func (a *App) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	background, stopBackground := context.WithCancel(context.WithoutCancel(ctx))
	defer stopBackground()

	var g errgroup.Group
	runBackground := func(name string, run func(context.Context) error) {
		g.Go(func() error {
			if err := run(background); err != nil {
				a.Logger.Error("background component failed", "component", name, "error", err)
				cancel(fmt.Errorf("%s: %w", name, err))
				return err
			}
			return nil
		})
	}

	if a.Consumer != nil {
		runBackground("analytics_consumer", a.Consumer.Run)
	}
	runBackground("sweeper", a.Sweeper.Run)

	serveErr := a.Server.Start(ctx)

	drainErr := a.Drain()
	stopBackground()
	bgErr := g.Wait()

	return errors.Join(serveErr, drainErr, bgErr)
}

// Drain stops accepting visit tasks and waits for queued ones, bounded by the
// server shutdown timeout.
func (a *App) Drain() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Pool.Shutdown(ctx); err != nil {
		a.Logger.Warn("visit tasks abandoned at shutdown", "error", err)
		return fmt.Errorf("drain visit workers: %w", err)
	}
	return nil
}

// Shutdown closes every client connection.
func (a *App) Shutdown() error {
	a.Logger.Info("shutting down application")
	return a.Clients.Close(a.Logger)
}

func newBus(cfg *config.Config, clients Clients) events.Bus {
	if cfg.Analytics.EventsBackend == config.BackendMemory {
		return events.NewMemoryBus(0)
	}
	return events.NewRedisBus(clients.Redis)
}

func newAnalyticsStore(ctx context.Context, cfg *config.Config, clients Clients, queries *db.Queries) (analytics.Store, error) {
	if cfg.Analytics.Store != config.StoreMongo {
		return analytics.NewPostgresStore(queries), nil
	}

	if clients.Mongo == nil {
		return nil, errors.New("mongo analytics store selected but no mongo client connected")
	}
	store := analytics.NewMongoStore(clients.Mongo.Database(cfg.Mongo.Database))
	if err := store.EnsureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("failed to create analytics indexes: %w", err)
	}
	return store, nil
}

func newConsumer(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics, sub events.Subscriber, store analytics.Store) *analytics.Consumer {
	return analytics.NewConsumer(analytics.ConsumerConfig{
		Subscriber:    sub,
		Store:         store,
		Topic:         cfg.Analytics.Topic,
		Concurrency:   cfg.Analytics.Concurrency,
		InsertTimeout: cfg.Analytics.InsertTimeout,
		Logger:        logger,
		Metrics:       m,
	})
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, worker.ErrQueueFull):
		return "queue_full"
	case errors.Is(err, worker.ErrClosed):
		return "closed"
	default:
		return "unknown"
	}
}

// loadEnv loads .env only in development and test environments.
func loadEnv() {
	env := os.Getenv("APP_ENV")
	if env == "development" || env == "test" {
		if err := godotenv.Load(); err != nil {
			slog.Info("no .env file found")
		}
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}
