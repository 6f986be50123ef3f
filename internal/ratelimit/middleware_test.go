package ratelimit

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubportal/hub/internal/observability"
	"github.com/hubportal/hub/pkg/errorutil"
)

type stubLimiter struct {
	decision Decision
	err      error
	keys     []string
}

func (s *stubLimiter) Check(_ context.Context, key string) (Decision, error) {
	s.keys = append(s.keys, key)
	return s.decision, s.err
}

func newApp(l Limiter) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			de := errorutil.ToDomainError(err)
			return c.Status(de.HTTPStatus).JSON(fiber.Map{"error": de.Message, "code": de.Code})
		},
	})
	key := func(c *fiber.Ctx) string { return c.Get("X-User") }
	app.Post("/reply", Middleware(l, key, observability.NewMetrics(), nil), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})
	return app
}

func TestMiddlewareRefusesOverQuota(t *testing.T) {
	l := &stubLimiter{decision: Decision{RetryAfter: 1500 * time.Millisecond}}
	req := httptest.NewRequest(fiber.MethodPost, "/reply", nil)
	req.Header.Set("X-User", "u-1")

	resp, err := newApp(l).Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "2", resp.Header.Get(fiber.HeaderRetryAfter))
	assert.Equal(t, []string{"u-1"}, l.keys)
}

func TestMiddlewarePassesThrough(t *testing.T) {
	cases := []struct {
		name string
		l    *stubLimiter
		user string
	}{
		{name: "allowed", l: &stubLimiter{decision: Decision{Allowed: true}}, user: "u-1"},
		{name: "backend down", l: &stubLimiter{err: errors.New("connection refused")}, user: "u-1"},
		{name: "no key", l: &stubLimiter{}, user: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodPost, "/reply", nil)
			req.Header.Set("X-User", tc.user)
			resp, err := newApp(tc.l).Test(req)
			require.NoError(t, err)
			assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
		})
	}
}
