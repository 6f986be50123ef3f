package tenancy

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"
	"go.uber.org/zap"

	"github.com/hubportal/hub/internal/domain"
	"github.com/hubportal/hub/internal/persistence"
	"github.com/hubportal/hub/migrations"
)

// LedgerTable records the migrations applied to a tenant database.
const LedgerTable = "helpdesk_schema_migrations"

// DatabaseAdmin creates tenant databases on the shared server.
type DatabaseAdmin interface {
	EnsureDatabase(ctx context.Context, name string) (created bool, err error)
}

// SchemaMigrator applies and inspects the tenant migration ledger.
type SchemaMigrator interface {
	Up(ctx context.Context, rec domain.TenantRecord) (applied int, err error)
	Status(ctx context.Context, rec domain.TenantRecord) ([]domain.MigrationState, error)
}

// StoreOpener opens a short-lived store outside the manager cache.
type StoreOpener interface {
	OpenStore(ctx context.Context, rec domain.TenantRecord) (Store, func(), error)
}

// PostgresAdmin issues CREATE DATABASE through a role holding CREATEDB.
type PostgresAdmin struct {
	dsn string
}

func NewPostgresAdmin(dsn string) *PostgresAdmin {
	return &PostgresAdmin{dsn: dsn}
}

func (a *PostgresAdmin) EnsureDatabase(ctx context.Context, name string) (bool, error) {
	conn, err := pgx.Connect(ctx, a.dsn)
	if err != nil {
		return false, fmt.Errorf("connect admin: %w", err)
	}
	defer conn.Close(ctx)

	var exists bool
	if err := conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname=$1)`, name).Scan(&exists); err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if _, err := conn.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{name}.Sanitize()); err != nil {
		return false, fmt.Errorf("create database %s: %w", name, err)
	}
	return true, nil
}

// GooseMigrator runs the embedded tenant migrations. Each migration runs in
// its own transaction together with its ledger row.
type GooseMigrator struct {
	opts   persistence.PoolOptions
	logger *zap.Logger
}

func NewGooseMigrator(opts persistence.PoolOptions, logger *zap.Logger) *GooseMigrator {
	return &GooseMigrator{opts: opts, logger: logger}
}

func (g *GooseMigrator) Up(ctx context.Context, rec domain.TenantRecord) (int, error) {
	var applied int
	err := g.withProvider(ctx, rec, func(provider *goose.Provider) error {
		results, err := provider.Up(ctx)
		var partial *goose.PartialError
		if errors.As(err, &partial) {
			results = partial.Applied
		}
		for _, r := range results {
			g.logger.Info("tenant migration applied",
				zap.String("client_id", rec.ClientID),
				zap.Int64("version", r.Source.Version),
				zap.Duration("duration", r.Duration),
			)
		}
		applied = len(results)
		return err
	})
	return applied, err
}

func (g *GooseMigrator) Status(ctx context.Context, rec domain.TenantRecord) ([]domain.MigrationState, error) {
	var states []domain.MigrationState
	err := g.withProvider(ctx, rec, func(provider *goose.Provider) error {
		statuses, err := provider.Status(ctx)
		if err != nil {
			return err
		}
		for _, s := range statuses {
			state := domain.MigrationState{
				Version: s.Source.Version,
				Source:  s.Source.Path,
				Applied: s.State == goose.StateApplied,
			}
			if state.Applied {
				appliedAt := s.AppliedAt
				state.AppliedAt = &appliedAt
			}
			states = append(states, state)
		}
		return nil
	})
	return states, err
}

func (g *GooseMigrator) withProvider(ctx context.Context, rec domain.TenantRecord, fn func(*goose.Provider) error) error {
	pool, err := persistence.OpenPool(ctx, DSN(rec), g.opts)
	if err != nil {
		return fmt.Errorf("open tenant %s: %w", rec.ClientID, err)
	}
	defer pool.Close()

	store, err := database.NewStore(database.DialectPostgres, LedgerTable)
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider("", stdlib.OpenDBFromPool(pool), migrations.Tenant(), goose.WithStore(store))
	if err != nil {
		return fmt.Errorf("create migration provider: %w", err)
	}
	defer provider.Close()
	return fn(provider)
}

// PoolStoreOpener opens a dedicated pool per call.
type PoolStoreOpener struct {
	opts persistence.PoolOptions
}

func NewPoolStoreOpener(opts persistence.PoolOptions) *PoolStoreOpener {
	return &PoolStoreOpener{opts: opts}
}

func (o *PoolStoreOpener) OpenStore(ctx context.Context, rec domain.TenantRecord) (Store, func(), error) {
	pool, err := persistence.OpenPool(ctx, DSN(rec), o.opts)
	if err != nil {
		return nil, nil, err
	}
	return NewStore(pool), pool.Close, nil
}
