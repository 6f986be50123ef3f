package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/hubportal/hub/internal/api/dto"
	"github.com/hubportal/hub/internal/domain"
	"github.com/hubportal/hub/internal/tenancy"
	"github.com/hubportal/hub/pkg/errorutil"
)

// TenantProvisioner creates and inspects tenant databases.
type TenantProvisioner interface {
	Provision(ctx context.Context, clientID string) (*tenancy.ProvisionResult, error)
	Status(ctx context.Context, clientID string) (*domain.TenantRecord, []domain.MigrationState, error)
}

// ClientLookup confirms a client exists in the central directory.
type ClientLookup interface {
	GetClient(ctx context.Context, id string) (*domain.Client, error)
}

// TenantsHandler is the admin surface for tenant provisioning.
type TenantsHandler struct {
	provisioner TenantProvisioner
	clients     ClientLookup
}

// NewTenantsHandler constructs handler.
func NewTenantsHandler(provisioner TenantProvisioner, clients ClientLookup) *TenantsHandler {
	return &TenantsHandler{provisioner: provisioner, clients: clients}
}

// Provision POST /admin/tenants/:clientId/provision.
func (h *TenantsHandler) Provision(c *fiber.Ctx) error {
	id := c.Params("clientId")
	client, err := h.clients.GetClient(c.UserContext(), id)
	if errors.Is(err, pgx.ErrNoRows) {
		return errorutil.NewNotFound("client", map[string]any{"clientId": id})
	}
	if err != nil {
		return err
	}
	if !client.Active {
		return errorutil.NewInvalidState("client is inactive")
	}
	result, err := h.provisioner.Provision(c.UserContext(), id)
	if err != nil {
		return err
	}
	status := fiber.StatusCreated
	if result.AlreadyExisted {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(fiber.Map{"data": provisionResponse(result)})
}

// Status GET /admin/tenants/:clientId.
func (h *TenantsHandler) Status(c *fiber.Ctx) error {
	rec, states, err := h.provisioner.Status(c.UserContext(), c.Params("clientId"))
	if err != nil {
		return err
	}
	resp := tenantResponse(rec)
	resp.Migrations = make([]dto.MigrationStateResponse, 0, len(states))
	for _, st := range states {
		resp.Migrations = append(resp.Migrations, dto.MigrationStateResponse{
			Version:   st.Version,
			Source:    st.Source,
			Applied:   st.Applied,
			AppliedAt: st.AppliedAt,
		})
	}
	return data(c, resp)
}
