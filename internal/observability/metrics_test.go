package observability

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMetricsCountTransitions(t *testing.T) {
	m := NewMetrics()
	m.RecordTransition("pending_approval", "open")
	m.RecordTransition("pending_approval", "open")
	m.RecordNotifications(3)
	m.RecordNotifications(0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitionsTotal.WithLabelValues("pending_approval", "open")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.notifications))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/tickets", "GET", 200, time.Millisecond)
	m.RecordError("/tickets", "GET", "NOT_FOUND")
	m.RecordTransition("open", "concluido")
	m.RecordRateLimited()
}

func TestRequestLoggerFeedsHandler(t *testing.T) {
	m := NewMetrics()
	app := fiber.New()
	app.Use(RequestLogger(zap.NewNop(), m))
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })
	app.Get("/metrics", m.Handler())

	resp, err := app.Test(httptest.NewRequest("GET", "/ping", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `hub_http_requests_total{method="GET",route="/ping",status="200"} 1`))
}
