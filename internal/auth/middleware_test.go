package auth

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubportal/hub/internal/domain"
	"github.com/hubportal/hub/internal/repository/repositorytest"
	"github.com/hubportal/hub/pkg/errorutil"
)

func newTestApp(t *testing.T) (*fiber.App, *TokenManager) {
	t.Helper()
	central := repositorytest.NewCentral()
	central.AddUser(domain.User{ID: "u-admin", Name: "Admin", IsAdmin: true})
	central.AddUser(domain.User{ID: "u-1", Name: "Ana"})

	tokens := testTokens()
	enforcer, err := NewEnforcer(nil)
	require.NoError(t, err)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			de := errorutil.ToDomainError(err)
			return c.Status(de.HTTPStatus).JSON(fiber.Map{"error": de.Message, "code": de.Code})
		},
	})
	app.Use(NewAuthMiddleware(tokens, central.Users()).Handle)
	app.Get("/me", func(c *fiber.Ctx) error {
		p, ok := PrincipalFromContext(c)
		if !ok {
			return fiber.ErrUnauthorized
		}
		return c.SendString(p.ID())
	})
	admin := app.Group("/admin", enforcer.RequireRoute())
	admin.Get("/tenants/:clientId", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	return app, tokens
}

func bearer(t *testing.T, tokens *TokenManager, userID string) string {
	t.Helper()
	token, _, err := tokens.GenerateToken(userID, "")
	require.NoError(t, err)
	return "Bearer " + token
}

func TestAuthMiddleware(t *testing.T) {
	app, tokens := newTestApp(t)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{name: "missing header", header: "", status: fiber.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", status: fiber.StatusUnauthorized},
		{name: "bad token", header: "Bearer nope", status: fiber.StatusUnauthorized},
		{name: "unknown user", header: bearer(t, tokens, "ghost"), status: fiber.StatusUnauthorized},
		{name: "valid", header: bearer(t, tokens, "u-1"), status: fiber.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestRequireRoute(t *testing.T) {
	app, tokens := newTestApp(t)

	req := httptest.NewRequest(fiber.MethodGet, "/admin/tenants/acme", nil)
	req.Header.Set(fiber.HeaderAuthorization, bearer(t, tokens, "u-1"))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	req = httptest.NewRequest(fiber.MethodGet, "/admin/tenants/acme", nil)
	req.Header.Set(fiber.HeaderAuthorization, bearer(t, tokens, "u-admin"))
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestEnforcerPolicies(t *testing.T) {
	e, err := NewEnforcer(nil)
	require.NoError(t, err)

	cases := []struct {
		role, path, method string
		allowed            bool
	}{
		{RoleAdmin, "/helpdesk/approval-config", "GET", true},
		{RoleAdmin, "/helpdesk/approval-config/cfg-1", "PATCH", true},
		{RoleAdmin, "/helpdesk/approval-config/cfg-1", "PUT", false},
		{RoleUser, "/helpdesk/approval-config", "GET", false},
		{RoleAdmin, "/admin/tenants/acme/provision", "POST", true},
		{RoleUser, "/admin/tenants/acme", "GET", false},
	}
	for _, tc := range cases {
		allowed, err := e.Enforce(tc.role, tc.path, tc.method)
		require.NoError(t, err)
		assert.Equal(t, tc.allowed, allowed, "%s %s %s", tc.role, tc.method, tc.path)
	}
}
