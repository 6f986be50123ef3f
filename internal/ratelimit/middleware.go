package ratelimit

import (
	"math"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/hubportal/hub/internal/observability"
	"github.com/hubportal/hub/pkg/errorutil"
)

// KeyFunc derives the limiter key of a request. An empty key skips limiting.
type KeyFunc func(c *fiber.Ctx) string

// Middleware refuses requests over quota with 429 and Retry-After. A failing
// backend lets the request through.
func Middleware(l Limiter, key KeyFunc, metrics *observability.Metrics, logger *zap.Logger) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *fiber.Ctx) error {
		k := key(c)
		if k == "" {
			return c.Next()
		}
		d, err := l.Check(c.UserContext(), k)
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.String("key", k), zap.Error(err))
			return c.Next()
		}
		if d.Allowed {
			return c.Next()
		}
		metrics.RecordRateLimited()
		seconds := int(math.Ceil(d.RetryAfter.Seconds()))
		if seconds < 1 {
			seconds = 1
		}
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(seconds))
		return errorutil.NewTooManyRequests(d.RetryAfter)
	}
}
