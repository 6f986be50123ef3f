// Package app wires configuration, storage and transport into a runnable server.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	httptransport "github.com/hubportal/hub/internal/api/http"
	"github.com/hubportal/hub/internal/api/http/handlers"
	"github.com/hubportal/hub/internal/access"
	"github.com/hubportal/hub/internal/auth"
	"github.com/hubportal/hub/internal/config"
	"github.com/hubportal/hub/internal/escalation"
	"github.com/hubportal/hub/internal/events"
	"github.com/hubportal/hub/internal/observability"
	"github.com/hubportal/hub/internal/persistence"
	"github.com/hubportal/hub/internal/ratelimit"
	"github.com/hubportal/hub/internal/repository"
	"github.com/hubportal/hub/internal/service"
	"github.com/hubportal/hub/internal/tenancy"
	"github.com/hubportal/hub/internal/worker"
)

const limiterSweepInterval = time.Minute

// Central bundles the central database and the tenant machinery built on it.
// CLI commands that only provision or migrate use it without the HTTP stack.
type Central struct {
	Postgres    *persistence.Postgres
	Repos       Repositories
	Directory   *tenancy.Directory
	Tenants     *tenancy.Manager
	Provisioner *tenancy.Provisioner
}

// Repositories are the central database repositories.
type Repositories struct {
	Users           repository.UserRepository
	Org             repository.OrgRepository
	ApprovalConfigs repository.ApprovalConfigRepository
	Tenants         repository.TenantRepository
}

// OpenCentral connects to the central database and builds the tenant directory,
// pool manager and provisioner.
func OpenCentral(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Central, error) {
	key, err := cfg.TenantDB.Key()
	if err != nil {
		return nil, err
	}
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	pool := pg.Pool
	repos := Repositories{
		Users:           repository.NewUserRepository(pool),
		Org:             repository.NewOrgRepository(pool),
		ApprovalConfigs: repository.NewApprovalConfigRepository(pool),
		Tenants:         repository.NewTenantRepository(pool),
	}
	directory := tenancy.NewDirectory(repos.Tenants, tenancy.NewSealer(key))
	tenantPools := persistence.PoolOptions{MaxConns: cfg.TenantDB.MaxConns}

	adminDSN := cfg.TenantDB.AdminDSN
	if adminDSN == "" {
		adminDSN = cfg.Postgres.DSN
	}
	provisioner := tenancy.NewProvisioner(
		directory,
		tenancy.NewPostgresAdmin(adminDSN),
		tenancy.NewGooseMigrator(tenantPools, logger),
		tenancy.NewPoolStoreOpener(tenantPools),
		cfg.TenantDB,
		logger,
	)
	return &Central{
		Postgres:    pg,
		Repos:       repos,
		Directory:   directory,
		Tenants:     tenancy.NewManager(directory, tenantPools, logger),
		Provisioner: provisioner,
	}, nil
}

// Close releases tenant pools and the central pool.
func (c *Central) Close() {
	c.Tenants.Close()
	c.Postgres.Close()
}

// App is the HTTP server with everything it depends on.
type App struct {
	cfg     *config.Config
	logger  *zap.Logger
	central *Central
	redis   *persistence.Redis
	limiter ratelimit.Limiter
	mail    *worker.EmailWorker
	notify  *service.NotificationService
	fiber   *fiber.App
}

// New builds the server. The central schema is migrated first when configured.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	central, err := OpenCentral(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if cfg.Postgres.RunMigrations {
		if _, err := persistence.MigrateCentral(central.Postgres.Pool, logger); err != nil {
			central.Close()
			return nil, err
		}
	}

	a := &App{cfg: cfg, logger: logger, central: central}
	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg, logger, repos := a.cfg, a.logger, a.central.Repos

	rules := escalation.Default()
	if cfg.Escalation.RulesFile != "" {
		loaded, err := escalation.Load(cfg.Escalation.RulesFile)
		if err != nil {
			return err
		}
		rules = loaded
	}

	limiter, err := a.buildLimiter(ctx)
	if err != nil {
		return err
	}
	a.limiter = limiter

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)
	loader := access.NewLoader(repos.Users, repos.Org, repos.ApprovalConfigs)

	var mail service.EmailQueue
	if cfg.SMTP.Enabled() {
		a.mail = worker.NewEmailWorker(worker.NewSMTPSender(cfg.SMTP), cfg.SMTP.QueueSize, logger)
		mail = a.mail
	}
	a.notify = service.NewNotificationService(dispatcher, repos.Users, metrics, mail, cfg.SMTP, logger)

	tickets := service.NewTicketService(service.TicketDependencies{
		Stores:     a.central.Tenants,
		Access:     loader,
		Users:      repos.Users,
		Org:        repos.Org,
		Rules:      rules,
		Dispatcher: dispatcher,
		Sanitizer:  bluemonday.UGCPolicy(),
		Logger:     logger,
	})
	tokens := auth.NewTokenManager(cfg.Auth)
	enforcer, err := auth.NewEnforcer(logger)
	if err != nil {
		return err
	}

	deps := map[string]handlers.Pinger{
		"postgres": a.central.Postgres,
		"tenants":  a.central.Tenants,
	}
	if a.redis != nil {
		deps["redis"] = a.redis
	}

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: cfg.App.Production(),
		ErrorHandler:          httptransport.ErrorHandler(logger, metrics),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, deps),
		Tickets:        handlers.NewTicketsHandler(tickets),
		Notifications:  handlers.NewNotificationsHandler(tickets),
		RequestTypes:   handlers.NewRequestTypesHandler(service.NewRequestTypeService(a.central.Tenants, loader)),
		ApprovalConfig: handlers.NewApprovalConfigHandler(service.NewApprovalConfigService(repos.ApprovalConfigs, repos.Org, repos.Users, loader, a.central.Tenants, logger)),
		Aggregation:    handlers.NewAggregationHandler(service.NewAggregationService(a.central.Tenants, loader, repos.Users, repos.Org)),
		Tenants:        handlers.NewTenantsHandler(a.central.Provisioner, repos.Org),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, repos.Users),
		Enforcer:       enforcer,
		ReplyLimiter:   ratelimit.Middleware(limiter, principalKey, metrics, logger),
		Metrics:        metrics.Handler(),
	})
	a.fiber = app
	return nil
}

func (a *App) buildLimiter(ctx context.Context) (ratelimit.Limiter, error) {
	if a.cfg.RateLimit.Backend != "redis" {
		return ratelimit.New(a.cfg.RateLimit, nil, a.logger)
	}
	a.redis = persistence.NewRedis(ctx, a.cfg.Redis, a.logger)
	return ratelimit.New(a.cfg.RateLimit, a.redis.Client, a.logger)
}

func principalKey(c *fiber.Ctx) string {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return ""
	}
	return "reply:" + principal.ID()
}

// Fiber exposes the HTTP application, mainly for tests.
func (a *App) Fiber() *fiber.App {
	return a.fiber
}

// Run serves until ctx is cancelled, then shuts the server down gracefully.
func (a *App) Run(ctx context.Context) error {
	worker.StartNotificationWorker(ctx, a.notify, a.mail)
	if mem, ok := a.limiter.(*ratelimit.MemoryLimiter); ok {
		go mem.Run(ctx, limiterSweepInterval)
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", zap.String("addr", a.cfg.App.Addr()))
		errCh <- a.fiber.Listen(a.cfg.App.Addr())
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	if err := a.fiber.ShutdownWithTimeout(a.cfg.App.ShutdownTimeout); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		a.logger.Warn("http shutdown", zap.Error(err))
	}
	if a.mail != nil {
		a.mail.Wait()
	}
	return nil
}

// Close releases every connection the app holds.
func (a *App) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
	a.central.Close()
}
