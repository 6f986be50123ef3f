package tenancy

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hubportal/hub/internal/config"
	"github.com/hubportal/hub/internal/domain"
	"github.com/hubportal/hub/internal/repository"
	"github.com/hubportal/hub/pkg/errorutil"
)

// TenantDirectory is the subset of Directory used by provisioning.
type TenantDirectory interface {
	Get(ctx context.Context, clientID string) (*domain.TenantRecord, error)
	Put(ctx context.Context, rec *domain.TenantRecord) error
	List(ctx context.Context) ([]domain.TenantRecord, error)
}

// ProvisionResult describes what a provisioning call did.
type ProvisionResult struct {
	Record          *domain.TenantRecord
	AlreadyExisted  bool
	DatabaseCreated bool
	Applied         int
	Seeded          bool
}

// Provisioner creates tenant databases and keeps their schema current.
type Provisioner struct {
	directory TenantDirectory
	admin     DatabaseAdmin
	migrator  SchemaMigrator
	stores    StoreOpener
	server    config.TenantDBConfig
	taxonomy  []TaxonomyNode
	logger    *zap.Logger
}

// NewProvisioner wires the provisioning steps.
func NewProvisioner(
	directory TenantDirectory,
	admin DatabaseAdmin,
	migrator SchemaMigrator,
	stores StoreOpener,
	server config.TenantDBConfig,
	logger *zap.Logger,
) *Provisioner {
	return &Provisioner{
		directory: directory,
		admin:     admin,
		migrator:  migrator,
		stores:    stores,
		server:    server,
		taxonomy:  DefaultTaxonomy,
		logger:    logger,
	}
}

// Provision is a no-op for clients that already have a record. Otherwise it
// creates the database when missing, applies pending migrations, seeds the
// default taxonomy into an empty tenant and writes the record last. A failure
// leaves the database and its ledger in place so a later call resumes.
func (p *Provisioner) Provision(ctx context.Context, clientID string) (*ProvisionResult, error) {
	existing, err := p.directory.Get(ctx, clientID)
	if err == nil {
		return &ProvisionResult{Record: existing, AlreadyExisted: true}, nil
	}
	if !errorutil.IsCode(err, errorutil.CodeNotProvisioned) {
		return nil, err
	}

	rec := domain.TenantRecord{
		ClientID: clientID,
		Host:     p.server.Host,
		Port:     p.server.Port,
		Database: DatabaseName(clientID),
		User:     p.server.User,
		Password: p.server.Password,
		SSLMode:  p.server.SSLMode,
	}
	log := p.logger.With(zap.String("client_id", clientID), zap.String("database", rec.Database))
	if err := p.ensureUnowned(ctx, rec); err != nil {
		log.Error("tenant database owned by another client", zap.Error(err))
		return nil, err
	}
	result := &ProvisionResult{Record: &rec}

	created, err := p.admin.EnsureDatabase(ctx, rec.Database)
	if err != nil {
		return nil, err
	}
	result.DatabaseCreated = created
	log.Info("tenant database ready", zap.Bool("created", created))

	applied, err := p.migrator.Up(ctx, rec)
	result.Applied = applied
	if err != nil {
		log.Error("tenant migration failed", zap.Int("applied", applied), zap.Error(err))
		return nil, fmt.Errorf("migrate tenant %s: %w", clientID, err)
	}

	store, closeStore, err := p.stores.OpenStore(ctx, rec)
	if err != nil {
		return nil, err
	}
	seeded, err := SeedTaxonomy(ctx, store, p.taxonomy)
	closeStore()
	if err != nil {
		return nil, fmt.Errorf("seed tenant %s: %w", clientID, err)
	}
	result.Seeded = seeded

	if err := p.directory.Put(ctx, &rec); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			winner, getErr := p.directory.Get(ctx, clientID)
			if getErr != nil {
				return nil, getErr
			}
			return &ProvisionResult{Record: winner, AlreadyExisted: true}, nil
		}
		return nil, err
	}

	log.Info("tenant provisioned", zap.Int("applied", applied), zap.Bool("seeded", seeded))
	return result, nil
}

// ensureUnowned refuses a database that already backs another client.
func (p *Provisioner) ensureUnowned(ctx context.Context, rec domain.TenantRecord) error {
	records, err := p.directory.List(ctx)
	if err != nil {
		return err
	}
	for _, other := range records {
		if other.Database == rec.Database && other.ClientID != rec.ClientID {
			return errorutil.NewConflict("tenant database already belongs to another client", map[string]any{
				"database":  rec.Database,
				"client_id": other.ClientID,
			})
		}
	}
	return nil
}

// Migrate applies pending migrations to one provisioned tenant.
func (p *Provisioner) Migrate(ctx context.Context, clientID string) (int, error) {
	rec, err := p.directory.Get(ctx, clientID)
	if err != nil {
		return 0, err
	}
	applied, err := p.migrator.Up(ctx, *rec)
	if err != nil {
		return applied, fmt.Errorf("migrate tenant %s: %w", clientID, err)
	}
	p.logger.Info("tenant migrated", zap.String("client_id", clientID), zap.Int("applied", applied))
	return applied, nil
}

// MigrateAll walks every provisioned tenant and stops at the first failure.
func (p *Provisioner) MigrateAll(ctx context.Context) (map[string]int, error) {
	records, err := p.directory.List(ctx)
	if err != nil {
		return nil, err
	}
	applied := make(map[string]int, len(records))
	for _, rec := range records {
		n, err := p.migrator.Up(ctx, rec)
		applied[rec.ClientID] = n
		if err != nil {
			return applied, fmt.Errorf("migrate tenant %s: %w", rec.ClientID, err)
		}
		p.logger.Info("tenant migrated", zap.String("client_id", rec.ClientID), zap.Int("applied", n))
	}
	return applied, nil
}

// Status reports the ledger of a provisioned tenant.
func (p *Provisioner) Status(ctx context.Context, clientID string) (*domain.TenantRecord, []domain.MigrationState, error) {
	rec, err := p.directory.Get(ctx, clientID)
	if err != nil {
		return nil, nil, err
	}
	states, err := p.migrator.Status(ctx, *rec)
	if err != nil {
		return nil, nil, err
	}
	return rec, states, nil
}
