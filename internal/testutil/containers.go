// Package testutil starts throwaway Postgres, Redis and MongoDB containers for
// integration tests. Every container is terminated through t.Cleanup.
//
// Tests using these helpers are skipped under -short.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcmongo "github.com/testcontainers/testcontainers-go/modules/mongodb"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sundayezeilo/shortlinks/internal/db/migrations"
)

const (
	PostgresImage = "postgres:16-alpine"
	RedisImage    = "redis:7-alpine"
	MongoImage    = "mongo:6"
)

// DiscardLogger keeps test output quiet.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func skipShort(t testing.TB) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in -short mode")
	}
}

func terminate(t testing.TB, c testcontainers.Container) {
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(c); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})
}

// Postgres starts Postgres, applies the embedded migrations and returns a pool.
func Postgres(t testing.TB) *pgxpool.Pool {
	t.Helper()
	skipShort(t)
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx,
		PostgresImage,
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("testuser"),
		tcpostgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	terminate(t, ctr)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	migrateURL := "pgx5://" + strings.TrimPrefix(dsn, "postgres://")
	if err := migrations.Run(migrateURL, DiscardLogger()); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		t.Fatalf("failed to parse postgres config: %v", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("failed to create postgres pool: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("failed to ping postgres: %v", err)
	}
	return pool
}

// ResetPostgres empties every table, keeping the schema.
func ResetPostgres(t testing.TB, pool *pgxpool.Pool) {
	t.Helper()
	_, err := pool.Exec(context.Background(), `TRUNCATE link_visits, links, analytics_events RESTART IDENTITY CASCADE`)
	if err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}
}

// Redis starts Redis and returns a connected client.
func Redis(t testing.TB) *redis.Client {
	t.Helper()
	skipShort(t)
	ctx := context.Background()

	ctr, err := tcredis.Run(ctx, RedisImage)
	terminate(t, ctr)
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}

	endpoint, err := ctr.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("failed to get redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: endpoint, DialTimeout: 5 * time.Second})
	t.Cleanup(func() { _ = client.Close() })

	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("failed to ping redis: %v", err)
	}
	return client
}

// Mongo starts MongoDB and returns a handle to a fresh database named after the test.
func Mongo(t testing.TB) *mongo.Database {
	t.Helper()
	skipShort(t)
	ctx := context.Background()

	ctr, err := tcmongo.Run(ctx, MongoImage)
	terminate(t, ctr)
	if err != nil {
		t.Fatalf("failed to start mongodb container: %v", err)
	}

	uri, err := ctr.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get mongodb connection string: %v", err)
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("failed to connect to mongodb: %v", err)
	}
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	return client.Database(sanitizeDBName(t.Name()))
}

func sanitizeDBName(name string) string {
	r := strings.NewReplacer("/", "_", " ", "_", ".", "_", "$", "_")
	name = r.Replace(name)
	if len(name) > 60 {
		name = name[:60]
	}
	return name
}
