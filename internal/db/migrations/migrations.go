// Package migrations applies the embedded Postgres schema with golang-migrate.
package migrations

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed sql/*.sql
var migrationsFS embed.FS

// ErrDirty means a previous migration failed halfway and needs manual repair.
var ErrDirty = errors.New("database schema is dirty")

// Migrator wraps a migrate.Migrate bound to the embedded schema.
type Migrator struct {
	m      *migrate.Migrate
	logger *slog.Logger
}

// New opens a migrator for databaseURL, which must use the pgx5:// scheme
// (see config.DatabaseConfig.MigrateURL).
func New(databaseURL string, logger *slog.Logger) (*Migrator, error) {
	if logger == nil {
		logger = slog.Default()
	}

	src, err := iofs.New(migrationsFS, "sql")
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}

	return &Migrator{m: m, logger: logger.With("component", "migrations")}, nil
}

// Up applies every pending migration. A dirty schema is reported, never forced.
func (mg *Migrator) Up() error {
	version, dirty, err := mg.m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return fmt.Errorf("%w at version %d", ErrDirty, version)
	}

	if err := mg.m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			mg.logger.Info("schema up to date", "version", version)
			return nil
		}
		return fmt.Errorf("apply migrations: %w", err)
	}

	newVersion, _, _ := mg.m.Version()
	mg.logger.Info("schema migrated", "from", version, "to", newVersion)
	return nil
}

// Down rolls back every migration. Used by tests to reset a database.
func (mg *Migrator) Down() error {
	if err := mg.m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("roll back migrations: %w", err)
	}
	return nil
}

func (mg *Migrator) Version() (uint, bool, error) {
	return mg.m.Version()
}

func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	return errors.Join(srcErr, dbErr)
}

// Run is the one-shot form used at startup: open, apply, close.
func Run(databaseURL string, logger *slog.Logger) (err error) {
	mg, err := New(databaseURL, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := mg.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close migrator: %w", cerr)
		}
	}()
	return mg.Up()
}
