package persistence

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/hubportal/hub/migrations"
)

const centralMigrationsTable = "hub_schema_migrations"

// CentralVersion is the state of the central schema.
type CentralVersion struct {
	Version uint
	Dirty   bool
}

// MigrateCentral applies the embedded central schema migrations. A dirty
// schema is refused and must be repaired by hand.
func MigrateCentral(pool *pgxpool.Pool, logger *zap.Logger) (CentralVersion, error) {
	m, closeFn, err := newCentralMigrate(pool)
	if err != nil {
		return CentralVersion{}, err
	}
	defer closeFn()

	current, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return CentralVersion{}, fmt.Errorf("read central schema version: %w", err)
	}
	logger.Info("central schema status", zap.Uint("version", current), zap.Bool("dirty", dirty))
	if dirty {
		return CentralVersion{Version: current, Dirty: true}, fmt.Errorf("central schema is dirty at version %d", current)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return CentralVersion{}, fmt.Errorf("apply central migrations: %w", err)
	}

	final, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return CentralVersion{}, fmt.Errorf("read central schema version: %w", err)
	}
	logger.Info("central migrations applied", zap.Uint("from_version", current), zap.Uint("to_version", final))
	return CentralVersion{Version: final, Dirty: dirty}, nil
}

// CentralStatus reports the central schema version without migrating.
func CentralStatus(pool *pgxpool.Pool) (CentralVersion, error) {
	m, closeFn, err := newCentralMigrate(pool)
	if err != nil {
		return CentralVersion{}, err
	}
	defer closeFn()

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return CentralVersion{}, err
	}
	return CentralVersion{Version: version, Dirty: dirty}, nil
}

func newCentralMigrate(pool *pgxpool.Pool) (*migrate.Migrate, func(), error) {
	src, err := iofs.New(migrations.Central(), ".")
	if err != nil {
		return nil, nil, fmt.Errorf("open central migrations: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{MigrationsTable: centralMigrationsTable})
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("create migrate driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("create migrate instance: %w", err)
	}
	return m, func() {
		_, _ = m.Close()
		_ = db.Close()
	}, nil
}
