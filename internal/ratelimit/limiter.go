// Package ratelimit bounds how often one actor may hit a route.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hubportal/hub/internal/config"
)

// Decision is the outcome of one Check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter counts hits per key.
type Limiter interface {
	Check(ctx context.Context, key string) (Decision, error)
}

// New picks the backend named in cfg. The redis backend needs a client.
func New(cfg config.RateLimitConfig, client redis.UniversalClient, logger *zap.Logger) (Limiter, error) {
	switch cfg.Backend {
	case "redis":
		if client == nil {
			return nil, fmt.Errorf("rate limit backend redis needs a redis client")
		}
		return NewRedisLimiter(client, cfg.Requests, cfg.Window), nil
	case "memory", "":
		return NewMemoryLimiter(cfg.Requests, cfg.Window), nil
	default:
		return nil, fmt.Errorf("unknown rate limit backend %q", cfg.Backend)
	}
}
