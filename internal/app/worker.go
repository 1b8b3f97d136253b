package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sundayezeilo/shortlinks/internal/analytics"
	"github.com/sundayezeilo/shortlinks/internal/config"
	db "github.com/sundayezeilo/shortlinks/internal/db/sqlc"
	"github.com/sundayezeilo/shortlinks/internal/events"
)

// Worker is the standalone analytics consumer process. It needs no HTTP or
// link settings, only the event bus and the analytics store.
type Worker struct {
	Config   *config.Config
	Logger   *slog.Logger
	Clients  Clients
	Consumer *analytics.Consumer
}

func NewWorker(ctx context.Context) (*Worker, error) {
	loadEnv()

	cfg, err := config.LoadWorker()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := setupLogger(cfg.App.LogLevel).With("process", "analytics_worker")
	logger.Info("starting analytics worker",
		"env", cfg.App.Environment,
		"topic", cfg.Analytics.Topic,
		"store", cfg.Analytics.Store,
	)

	clients, err := Connect(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	w, err := AssembleWorker(ctx, cfg, logger, clients)
	if err != nil {
		_ = clients.Close(logger)
		return nil, err
	}
	return w, nil
}

// AssembleWorker wires a consumer on top of already connected clients.
func AssembleWorker(ctx context.Context, cfg *config.Config, logger *slog.Logger, clients Clients) (*Worker, error) {
	store, err := newAnalyticsStore(ctx, cfg, clients, db.New(clients.DB))
	if err != nil {
		return nil, err
	}

	return &Worker{
		Config:   cfg,
		Logger:   logger,
		Clients:  clients,
		Consumer: newConsumer(cfg, logger, nil, events.NewRedisBus(clients.Redis), store),
	}, nil
}

// Run consumes until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	return w.Consumer.Run(ctx)
}

func (w *Worker) Shutdown() error {
	w.Logger.Info("shutting down analytics worker")
	return w.Clients.Close(w.Logger)
}
