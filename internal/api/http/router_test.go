package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hubportal/hub/internal/access"
	apihttp "github.com/hubportal/hub/internal/api/http"
	"github.com/hubportal/hub/internal/api/http/handlers"
	"github.com/hubportal/hub/internal/auth"
	"github.com/hubportal/hub/internal/config"
	"github.com/hubportal/hub/internal/domain"
	"github.com/hubportal/hub/internal/events"
	"github.com/hubportal/hub/internal/observability"
	"github.com/hubportal/hub/internal/ratelimit"
	"github.com/hubportal/hub/internal/repository/repositorytest"
	"github.com/hubportal/hub/internal/service"
	"github.com/hubportal/hub/internal/tenancy"
	"github.com/hubportal/hub/internal/tenancy/tenancytest"
	"github.com/hubportal/hub/pkg/errorutil"
)

const (
	acme      = "acme"
	globex    = "globex"
	initech   = "initech"
	requester = "u-req"
	operator  = "u-op"
	admin     = "u-admin"
	groupIT   = "g-it"
	sectorIT  = "s-support"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type fakeProvisioner struct {
	provisioned map[string]bool
}

func (p *fakeProvisioner) Provision(_ context.Context, clientID string) (*tenancy.ProvisionResult, error) {
	rec := &domain.TenantRecord{ClientID: clientID, Database: "hub_" + clientID, Host: "db", Port: 5432}
	if p.provisioned[clientID] {
		return &tenancy.ProvisionResult{Record: rec, AlreadyExisted: true}, nil
	}
	p.provisioned[clientID] = true
	return &tenancy.ProvisionResult{Record: rec, DatabaseCreated: true, Applied: 3, Seeded: true}, nil
}

func (p *fakeProvisioner) Status(_ context.Context, clientID string) (*domain.TenantRecord, []domain.MigrationState, error) {
	if !p.provisioned[clientID] {
		return nil, nil, errorutil.NewNotProvisioned(clientID)
	}
	rec := &domain.TenantRecord{ClientID: clientID, Database: "hub_" + clientID}
	return rec, []domain.MigrationState{{Version: 1, Source: "00001_tickets.sql", Applied: true}}, nil
}

type server struct {
	app    *fiber.App
	tokens *auth.TokenManager
	store  *tenancytest.Store
}

func ptr[T any](v T) *T { return &v }

func newServer(t *testing.T, ready error) *server {
	t.Helper()
	logger := zap.NewNop()
	central := repositorytest.NewCentral()
	central.AddClient(acme, "Acme")
	central.AddClient(globex, "Globex")
	central.AddClient(initech, "Initech")
	central.AddGroup(groupIT, acme, "TI")
	central.AddSector(sectorIT, groupIT, "Suporte", "")
	central.AddUser(domain.User{ID: requester, Name: "Requester"})
	central.AddUser(domain.User{ID: operator, Name: "Operator", CanReceiveTickets: true, CanForwardTickets: true,
		PrimaryGroupID: ptr(groupIT), PrimarySectorID: ptr(sectorIT)})
	central.AddUser(domain.User{ID: admin, Name: "Admin", IsAdmin: true})
	central.Grant(domain.Permission{UserID: requester, ClientID: acme})
	central.Grant(domain.Permission{UserID: operator, ClientID: acme})

	store := tenancytest.NewStore()
	stores := tenancytest.Resolver{acme: store}
	loader := access.NewLoader(central.Users(), central.Org(), central.ApprovalConfigs())
	metrics := observability.NewMetrics()
	tickets := service.NewTicketService(service.TicketDependencies{
		Stores:     stores,
		Access:     loader,
		Users:      central.Users(),
		Org:        central.Org(),
		Dispatcher: events.NewInMemoryDispatcher(logger),
		Protocol:   func() string { return "HD-HTTP" },
		Clock:      time.Now,
		Logger:     logger,
	})
	tokens := auth.NewTokenManager(config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTL: time.Hour})
	enforcer, err := auth.NewEnforcer(logger)
	require.NoError(t, err)
	limiter := ratelimit.NewMemoryLimiter(2, time.Minute)

	app := fiber.New(fiber.Config{ErrorHandler: apihttp.ErrorHandler(logger, metrics)})
	apihttp.RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	apihttp.RegisterRoutes(app, apihttp.RouteConfig{
		Health: handlers.NewHealthHandler("hub", "test", map[string]handlers.Pinger{
			"postgres": fakePinger{err: ready},
		}),
		Tickets:        handlers.NewTicketsHandler(tickets),
		Notifications:  handlers.NewNotificationsHandler(tickets),
		RequestTypes:   handlers.NewRequestTypesHandler(service.NewRequestTypeService(stores, loader)),
		ApprovalConfig: handlers.NewApprovalConfigHandler(service.NewApprovalConfigService(central.ApprovalConfigs(), central.Org(), central.Users(), loader, stores, logger)),
		Aggregation:    handlers.NewAggregationHandler(service.NewAggregationService(stores, loader, central.Users(), central.Org())),
		Tenants:        handlers.NewTenantsHandler(&fakeProvisioner{provisioned: map[string]bool{acme: true}}, central.Org()),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, central.Users()),
		Enforcer:       enforcer,
		ReplyLimiter: ratelimit.Middleware(limiter, func(c *fiber.Ctx) string {
			if p, ok := auth.PrincipalFromContext(c); ok {
				return p.ID()
			}
			return ""
		}, metrics, logger),
		Metrics: metrics.Handler(),
	})
	return &server{app: app, tokens: tokens, store: store}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
	Code  string          `json:"code"`
}

func (s *server) do(t *testing.T, method, path, user string, body any) (int, envelope, http.Header) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(handlers.ClientHeader, acme)
	if user != "" {
		token, _, err := s.tokens.GenerateToken(user, user)
		require.NoError(t, err)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &env))
	}
	return resp.StatusCode, env, resp.Header
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func (s *server) createTicket(t *testing.T) map[string]any {
	t.Helper()
	status, env, _ := s.do(t, fiber.MethodPost, "/tickets", requester, map[string]any{
		"clientId":     acme,
		"subject":      "Laptop broken",
		"content":      "<script>alert(1)</script>Screen is dark",
		"assigneeType": "group",
		"assigneeId":   groupIT,
	})
	require.Equal(t, fiber.StatusCreated, status, env.Error)
	return decode[map[string]any](t, env.Data)
}

func TestHealth(t *testing.T) {
	s := newServer(t, nil)
	status, _, _ := s.do(t, fiber.MethodGet, "/health/live", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	status, _, _ = s.do(t, fiber.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, fiber.StatusOK, status)

	down := newServer(t, errors.New("connection refused"))
	status, env, _ := down.do(t, fiber.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	assert.Equal(t, "DEPENDENCY_UNAVAILABLE", env.Code)
}

func TestRequiresBearerToken(t *testing.T) {
	s := newServer(t, nil)
	status, env, _ := s.do(t, fiber.MethodGet, "/tickets", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", env.Code)
	assert.NotEmpty(t, env.Error)

	status, env, _ = s.do(t, fiber.MethodGet, "/tickets", "u-ghost", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", env.Code)
}

func TestTicketLifecycleOverHTTP(t *testing.T) {
	s := newServer(t, nil)
	ticket := s.createTicket(t)
	id := ticket["id"].(string)
	assert.Equal(t, "open", ticket["status"])
	assert.Equal(t, "HD-HTTP", ticket["protocol"])
	assert.Equal(t, groupIT, ticket["assigneeGroupId"])
	assert.Nil(t, ticket["assigneeUserId"])
	messages := ticket["messages"].([]any)
	require.Len(t, messages, 1)
	content := messages[0].(map[string]any)["content"].(string)
	assert.NotContains(t, content, "<script")
	assert.Contains(t, content, "Screen is dark")

	status, env, _ := s.do(t, fiber.MethodGet, "/tickets", requester, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, decode[[]map[string]any](t, env.Data), 1)

	status, env, _ = s.do(t, fiber.MethodGet, "/notifications/count", operator, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 1, decode[map[string]any](t, env.Data)["unread"])

	status, env, _ = s.do(t, fiber.MethodPost, "/tickets/"+id+"/assumir", operator, nil)
	require.Equal(t, fiber.StatusOK, status, env.Error)
	claimed := decode[map[string]any](t, env.Data)
	assert.Equal(t, "em_atendimento", claimed["status"])
	assert.Equal(t, operator, claimed["assigneeUserId"])

	status, env, _ = s.do(t, fiber.MethodPost, "/tickets/"+id+"/read", operator, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 1, decode[map[string]any](t, env.Data)["updated"])

	status, env, _ = s.do(t, fiber.MethodPatch, "/tickets/"+id, operator, map[string]any{"status": "concluido"})
	require.Equal(t, fiber.StatusOK, status, env.Error)
	assert.Equal(t, "concluido", decode[map[string]any](t, env.Data)["status"])

	status, env, _ = s.do(t, fiber.MethodGet, "/tickets/summary", requester, nil)
	require.Equal(t, fiber.StatusOK, status)
	summary := decode[map[string]any](t, env.Data)
	assert.EqualValues(t, 1, summary["total"])
}

func TestValidationErrorsAreFlat(t *testing.T) {
	s := newServer(t, nil)
	status, env, _ := s.do(t, fiber.MethodPost, "/tickets", requester, map[string]any{
		"clientId":     acme,
		"assigneeType": "team",
		"assigneeId":   groupIT,
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", env.Code)
	assert.Contains(t, env.Error, "content")
}

func TestNotProvisionedClient(t *testing.T) {
	s := newServer(t, nil)
	status, env, _ := s.do(t, fiber.MethodGet, "/tickets?clientId="+globex, admin, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, errorutil.CodeNotProvisioned, env.Code)
}

func TestReplyIsRateLimited(t *testing.T) {
	s := newServer(t, nil)
	id := s.createTicket(t)["id"].(string)

	for i := 0; i < 2; i++ {
		status, env, _ := s.do(t, fiber.MethodPost, "/tickets/"+id+"/messages", requester, map[string]any{"content": "ping"})
		require.Equal(t, fiber.StatusCreated, status, env.Error)
	}
	status, env, header := s.do(t, fiber.MethodPost, "/tickets/"+id+"/messages", requester, map[string]any{"content": "ping"})
	assert.Equal(t, fiber.StatusTooManyRequests, status)
	assert.Equal(t, "RATE_LIMITED", env.Code)
	assert.NotEmpty(t, header.Get(fiber.HeaderRetryAfter))
}

func TestApprovalConfigRoutesNeedAdmin(t *testing.T) {
	s := newServer(t, nil)
	status, env, _ := s.do(t, fiber.MethodGet, "/helpdesk/approval-config", requester, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", env.Code)

	status, env, _ = s.do(t, fiber.MethodPost, "/helpdesk/approval-config", admin, map[string]any{
		"clientId":       acme,
		"groupId":        groupIT,
		"exigeAprovacao": true,
		"approvers":      []map[string]any{{"userId": operator, "ordem": 1}},
	})
	require.Equal(t, fiber.StatusCreated, status, env.Error)
	cfg := decode[map[string]any](t, env.Data)
	assert.Equal(t, groupIT, cfg["groupId"])
	assert.Equal(t, true, cfg["exigeAprovacao"])

	status, env, _ = s.do(t, fiber.MethodGet, "/helpdesk/approval-config", admin, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, decode[[]map[string]any](t, env.Data), 1)

	status, _, _ = s.do(t, fiber.MethodDelete, "/helpdesk/approval-config/"+cfg["id"].(string), admin, nil)
	assert.Equal(t, fiber.StatusNoContent, status)
}

func TestRequestTypeRoutes(t *testing.T) {
	s := newServer(t, nil)
	status, env, _ := s.do(t, fiber.MethodPost, "/helpdesk/tipos", admin, map[string]any{"name": "Hardware", "code": "hw"})
	require.Equal(t, fiber.StatusCreated, status, env.Error)
	id := decode[map[string]any](t, env.Data)["id"].(string)

	status, env, _ = s.do(t, fiber.MethodPatch, "/helpdesk/tipos/"+id+"/status", admin, map[string]any{"active": false})
	require.Equal(t, fiber.StatusOK, status, env.Error)
	assert.Equal(t, false, decode[map[string]any](t, env.Data)["active"])

	status, env, _ = s.do(t, fiber.MethodPatch, "/helpdesk/tipos/"+id+"/status", admin, map[string]any{})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", env.Code)

	status, env, _ = s.do(t, fiber.MethodGet, "/helpdesk/tipos", requester, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Empty(t, decode[[]map[string]any](t, env.Data))
}

func TestTreeRoute(t *testing.T) {
	s := newServer(t, nil)
	s.createTicket(t)
	status, env, _ := s.do(t, fiber.MethodGet, "/helpdesk/tree", admin, nil)
	require.Equal(t, fiber.StatusOK, status, env.Error)
	groups := decode[[]map[string]any](t, env.Data)
	require.NotEmpty(t, groups)
	assert.Equal(t, groupIT, groups[0]["groupId"])
	assert.EqualValues(t, 1, groups[0]["total"])
}

func TestTenantAdminRoutes(t *testing.T) {
	s := newServer(t, nil)
	status, _, _ := s.do(t, fiber.MethodPost, "/admin/tenants/"+initech+"/provision", requester, nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, env, _ := s.do(t, fiber.MethodPost, "/admin/tenants/"+initech+"/provision", admin, nil)
	require.Equal(t, fiber.StatusCreated, status, env.Error)
	body := decode[map[string]any](t, env.Data)
	assert.Equal(t, true, body["databaseCreated"])
	assert.EqualValues(t, 3, body["migrationsApplied"])

	status, env, _ = s.do(t, fiber.MethodPost, "/admin/tenants/"+initech+"/provision", admin, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, decode[map[string]any](t, env.Data)["alreadyExisted"])

	status, env, _ = s.do(t, fiber.MethodPost, "/admin/tenants/nope/provision", admin, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", env.Code)

	status, env, _ = s.do(t, fiber.MethodGet, "/admin/tenants/"+acme, admin, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, decode[map[string]any](t, env.Data)["migrations"], 1)
}
