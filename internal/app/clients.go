package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/sundayezeilo/shortlinks/internal/analytics"
	"github.com/sundayezeilo/shortlinks/internal/cache"
	"github.com/sundayezeilo/shortlinks/internal/config"
	"github.com/sundayezeilo/shortlinks/internal/db/migrations"
)

const disconnectTimeout = 5 * time.Second

// Clients are the connections to backing services. Mongo is nil unless
// analytics events are stored in MongoDB.
type Clients struct {
	DB    *pgxpool.Pool
	Redis *redis.Client
	Mongo *mongo.Client
}

// Connect opens every client cfg calls for, applying migrations first when
// DB_AUTO_MIGRATE is set. On error nothing is left open.
func Connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (c Clients, err error) {
	defer func() {
		if err != nil {
			_ = c.Close(logger)
			c = Clients{}
		}
	}()

	if cfg.Database.AutoMigrate {
		if err := migrations.Run(cfg.Database.MigrateURL(), logger); err != nil {
			return c, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	c.DB, err = connectDatabase(ctx, cfg, logger)
	if err != nil {
		return c, fmt.Errorf("failed to connect to database: %w", err)
	}

	logger.Info("connecting to redis", "addr", cfg.Redis.Addr)
	c.Redis, err = cache.Connect(ctx, cfg.Redis)
	if err != nil {
		return c, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if cfg.Analytics.Store == config.StoreMongo {
		logger.Info("connecting to mongodb", "database", cfg.Mongo.Database)
		c.Mongo, err = analytics.ConnectMongo(ctx, cfg.Mongo.URI)
		if err != nil {
			return c, fmt.Errorf("failed to connect to mongodb: %w", err)
		}
	}

	return c, nil
}

// Close releases every non-nil client.
func (c Clients) Close(logger *slog.Logger) error {
	var errs []error

	if c.Mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
		defer cancel()
		if err := c.Mongo.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("disconnect mongo: %w", err))
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if c.DB != nil {
		c.DB.Close()
		logger.Info("database connection closed")
	}

	return errors.Join(errs...)
}

func connectDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = cfg.Database.MaxConns
	poolConfig.MinConns = cfg.Database.MinConns

	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established")
	return pool, nil
}
