package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/hubportal/hub/internal/api/dto"
	"github.com/hubportal/hub/internal/service"
)

// ApprovalConfigHandler is the admin surface for approval rules.
type ApprovalConfigHandler struct {
	service *service.ApprovalConfigService
}

// NewApprovalConfigHandler constructs handler.
func NewApprovalConfigHandler(configs *service.ApprovalConfigService) *ApprovalConfigHandler {
	return &ApprovalConfigHandler{service: configs}
}

// List GET /helpdesk/approval-config.
func (h *ApprovalConfigHandler) List(c *fiber.Ctx) error {
	actor, err := actorID(c)
	if err != nil {
		return err
	}
	configs, err := h.service.List(c.UserContext(), actor, clientID(c))
	if err != nil {
		return err
	}
	items := make([]dto.ApprovalConfigResponse, 0, len(configs))
	for i := range configs {
		items = append(items, approvalConfigResponse(&configs[i]))
	}
	return data(c, items)
}

// Create POST /helpdesk/approval-config.
func (h *ApprovalConfigHandler) Create(c *fiber.Ctx) error {
	actor, err := actorID(c)
	if err != nil {
		return err
	}
	var req dto.CreateApprovalConfigRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	cfg, err := h.service.Create(c.UserContext(), actor, req.ClientID, service.ApprovalConfigInput{
		GroupID:          req.GroupID,
		SectorID:         req.SectorID,
		RequestTypeID:    req.RequestTypeID,
		RequiresApproval: req.RequiresApproval,
		WorkflowStyle:    req.WorkflowStyle,
		Approvers:        approvers(req.Approvers),
	})
	if err != nil {
		return err
	}
	return created(c, approvalConfigResponse(cfg))
}

// Update PATCH /helpdesk/approval-config/:id.
func (h *ApprovalConfigHandler) Update(c *fiber.Ctx) error {
	actor, err := actorID(c)
	if err != nil {
		return err
	}
	var req dto.UpdateApprovalConfigRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	patch := service.ApprovalConfigPatch{
		RequiresApproval: req.RequiresApproval,
		WorkflowStyle:    req.WorkflowStyle,
	}
	if req.Approvers != nil {
		list := approvers(*req.Approvers)
		patch.Approvers = &list
	}
	cfg, err := h.service.Update(c.UserContext(), actor, c.Params("id"), patch)
	if err != nil {
		return err
	}
	return data(c, approvalConfigResponse(cfg))
}

// Delete DELETE /helpdesk/approval-config/:id.
func (h *ApprovalConfigHandler) Delete(c *fiber.Ctx) error {
	actor, err := actorID(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
