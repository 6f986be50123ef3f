package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/hubportal/hub/internal/api/dto"
	"github.com/hubportal/hub/internal/domain"
	"github.com/hubportal/hub/internal/service"
)

// RequestTypesHandler manages the per-tenant request type taxonomy.
type RequestTypesHandler struct {
	service *service.RequestTypeService
}

// NewRequestTypesHandler constructs handler.
func NewRequestTypesHandler(requestTypes *service.RequestTypeService) *RequestTypesHandler {
	return &RequestTypesHandler{service: requestTypes}
}

// List GET /helpdesk/tipos.
func (h *RequestTypesHandler) List(c *fiber.Ctx) error {
	actor, err := actorID(c)
	if err != nil {
		return err
	}
	types, err := h.service.List(c.UserContext(), actor, clientID(c), c.QueryBool("includeInactive"))
	if err != nil {
		return err
	}
	return data(c, requestTypeResponses(types))
}

// Create POST /helpdesk/tipos.
func (h *RequestTypesHandler) Create(c *fiber.Ctx) error {
	actor, err := actorID(c)
	if err != nil {
		return err
	}
	var req dto.RequestTypeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	rt, err := h.service.Create(c.UserContext(), actor, clientID(c), requestTypeInput(req))
	if err != nil {
		return err
	}
	return created(c, requestTypeResponse(rt))
}

// Update PUT /helpdesk/tipos/:id.
func (h *RequestTypesHandler) Update(c *fiber.Ctx) error {
	actor, err := actorID(c)
	if err != nil {
		return err
	}
	var req dto.RequestTypeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	rt, err := h.service.Update(c.UserContext(), actor, clientID(c), c.Params("id"), requestTypeInput(req))
	if err != nil {
		return err
	}
	return data(c, requestTypeResponse(rt))
}

// SetStatus PATCH /helpdesk/tipos/:id/status.
func (h *RequestTypesHandler) SetStatus(c *fiber.Ctx) error {
	actor, err := actorID(c)
	if err != nil {
		return err
	}
	var req dto.RequestTypeStatusRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	rt, err := h.service.SetActive(c.UserContext(), actor, clientID(c), c.Params("id"), *req.Active)
	if err != nil {
		return err
	}
	return data(c, requestTypeResponse(rt))
}

// Delete DELETE /helpdesk/tipos/:id.
func (h *RequestTypesHandler) Delete(c *fiber.Ctx) error {
	actor, err := actorID(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), actor, clientID(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func requestTypeInput(req dto.RequestTypeRequest) service.RequestTypeInput {
	return service.RequestTypeInput{
		Name:     req.Name,
		ParentID: req.ParentID,
		Code:     req.Code,
		Weight:   req.Weight,
		Active:   req.Active,
	}
}

func requestTypeResponses(types []domain.RequestType) []dto.RequestTypeResponse {
	out := make([]dto.RequestTypeResponse, 0, len(types))
	for i := range types {
		out = append(out, requestTypeResponse(&types[i]))
	}
	return out
}
