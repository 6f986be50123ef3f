package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hubportal/hub/internal/config"
)

// Redis holds the client shared by every API instance's rate limiter.
type Redis struct {
	Client *redis.Client
	addr   string
}

// NewRedis builds the client and probes the server once. An unreachable
// server is only logged: the limiter fails open and readiness reports it.
func NewRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) *Redis {
	opts := &redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		DialTimeout: cfg.DialTimeout,
	}
	r := &Redis{Client: redis.NewClient(opts), addr: cfg.Addr}

	probeCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	log := logger.With(zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	if err := r.Ping(probeCtx); err != nil {
		log.Warn("redis unreachable, rate limiting will fail open", zap.Error(err))
	} else {
		log.Info("connected to redis")
	}
	return r
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping is used by the readiness probe.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	if err := r.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis %s: %w", r.addr, err)
	}
	return nil
}
