package tenancy

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hubportal/hub/internal/persistence"
)

// Manager caches one pgx pool per provisioned client and resolves stores.
type Manager struct {
	directory TenantDirectory
	opts      persistence.PoolOptions
	logger    *zap.Logger

	mu    sync.Mutex
	pools map[string]*pgxpool.Pool
}

// NewManager builds a manager. Pools are opened lazily on first use.
func NewManager(directory TenantDirectory, opts persistence.PoolOptions, logger *zap.Logger) *Manager {
	return &Manager{
		directory: directory,
		opts:      opts,
		logger:    logger,
		pools:     make(map[string]*pgxpool.Pool),
	}
}

// StoreFor returns the store of clientID. Clients without a tenant record
// fail with a not-provisioned error.
func (m *Manager) StoreFor(ctx context.Context, clientID string) (Store, error) {
	pool, err := m.pool(ctx, clientID)
	if err != nil {
		return nil, err
	}
	return NewStore(pool), nil
}

func (m *Manager) pool(ctx context.Context, clientID string) (*pgxpool.Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if pool, ok := m.pools[clientID]; ok {
		return pool, nil
	}

	rec, err := m.directory.Get(ctx, clientID)
	if err != nil {
		return nil, err
	}
	pool, err := persistence.OpenPool(ctx, DSN(*rec), m.opts)
	if err != nil {
		return nil, fmt.Errorf("open tenant pool %s: %w", clientID, err)
	}
	m.pools[clientID] = pool
	m.logger.Info("tenant pool opened", zap.String("client_id", clientID), zap.String("database", rec.Database))
	return pool, nil
}

// Ping checks every open tenant pool.
func (m *Manager) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for clientID, pool := range m.pools {
		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("tenant %s: %w", clientID, err)
		}
	}
	return nil
}

// Close releases every cached pool.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for clientID, pool := range m.pools {
		pool.Close()
		delete(m.pools, clientID)
	}
}
