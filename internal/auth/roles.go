package auth

import (
	"fmt"
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/hubportal/hub/pkg/errorutil"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

const routeModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && keyMatch(r.obj, p.obj) && regexMatch(r.act, p.act)
`

// routePolicies lists the route families only administrators reach. Routes
// not listed here are authorized per operation by the access package.
var routePolicies = [][]string{
	{RoleAdmin, "/helpdesk/approval-config*", "^(GET|POST|PATCH|DELETE)$"},
	{RoleAdmin, "/admin/*", ".*"},
}

// Enforcer guards admin-only route families with casbin.
type Enforcer struct {
	enforcer *casbin.Enforcer
	mu       sync.RWMutex
	logger   *zap.Logger
}

// NewEnforcer builds the enforcer with the built-in route policies.
func NewEnforcer(logger *zap.Logger) (*Enforcer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m, err := model.NewModelFromString(routeModel)
	if err != nil {
		return nil, fmt.Errorf("failed to parse casbin model: %w", err)
	}
	enforcer, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}
	for _, policy := range routePolicies {
		if _, err := enforcer.AddPolicy(policy[0], policy[1], policy[2]); err != nil {
			return nil, fmt.Errorf("failed to add policy [%s, %s, %s]: %w", policy[0], policy[1], policy[2], err)
		}
	}
	return &Enforcer{enforcer: enforcer, logger: logger}, nil
}

// Enforce reports whether role may call method on path.
func (e *Enforcer) Enforce(role, path, method string) (bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	allowed, err := e.enforcer.Enforce(role, path, method)
	if err != nil {
		e.logger.Error("permission check failed",
			zap.String("role", role), zap.String("path", path), zap.String("method", method), zap.Error(err))
		return false, fmt.Errorf("permission check failed: %w", err)
	}
	return allowed, nil
}

// RoleOf maps a principal to its casbin role.
func RoleOf(p *Principal) string {
	if p != nil && p.User != nil && p.User.IsAdmin {
		return RoleAdmin
	}
	return RoleUser
}

// RequireRoute enforces the route policies for the authenticated caller.
func (e *Enforcer) RequireRoute() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return errorutil.NewUnauthorized("authentication required")
		}
		allowed, err := e.Enforce(RoleOf(principal), c.Path(), c.Method())
		if err != nil {
			return errorutil.NewInternalError(err)
		}
		if !allowed {
			return errorutil.NewForbidden("administrator access required")
		}
		return c.Next()
	}
}
