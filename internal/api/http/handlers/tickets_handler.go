package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/hubportal/hub/internal/api/dto"
	"github.com/hubportal/hub/internal/domain"
	"github.com/hubportal/hub/internal/service"
)

// TicketsHandler exposes the ticket lifecycle endpoints.
type TicketsHandler struct {
	service *service.TicketService
	now     func() time.Time
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService, now: time.Now}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := actorID(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	input := service.TicketCreateInput{
		ClientID:      req.ClientID,
		Subject:       req.Subject,
		Content:       req.Content,
		AssigneeType:  req.AssigneeType,
		AssigneeID:    req.AssigneeID,
		RequestTypeID: req.RequestTypeID,
		Amount:        req.Amount,
		Priority:      req.Priority,
		SLAHours:      req.SLAHours,
		Attachments:   attachmentInputs(req.Attachments),
	}
	detail, err := h.service.CreateTicket(c.UserContext(), actor, input)
	if err != nil {
		return err
	}
	return created(c, ticketDetail(detail, h.now()))
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, err := actorID(c)
	if err != nil {
		return err
	}
	tickets, err := h.service.ListTickets(c.UserContext(), actor, clientID(c), parseStatuses(c.Query("status")))
	if err != nil {
		return err
	}
	return data(c, ticketResponses(tickets, h.now()))
}

// Summary GET /tickets/summary.
func (h *TicketsHandler) Summary(c *fiber.Ctx) error {
	actor, err := actorID(c)
	if err != nil {
		return err
	}
	summary, err := h.service.Summary(c.UserContext(), actor, clientID(c))
	if err != nil {
		return err
	}
	return data(c, dto.TicketSummaryResponse{
		Total:       summary.Total,
		SLABreached: summary.SLABreached,
		ByStatus:    summary.ByStatus,
	})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, err := actorID(c)
	if err != nil {
		return err
	}
	detail, err := h.service.GetTicket(c.UserContext(), actor, clientID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return data(c, ticketDetail(detail, h.now()))
}

// Finalize PATCH /tickets/:id.
func (h *TicketsHandler) Finalize(c *fiber.Ctx) error {
	actor, err := actorID(c)
	if err != nil {
		return err
	}
	var req dto.FinalizeTicketRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.Finalize(c.UserContext(), actor, clientID(c), c.Params("id"), req.Status)
	if err != nil {
		return err
	}
	return data(c, ticketResponse(ticket, h.now()))
}

// Reply POST /tickets/:id/messages.
func (h *TicketsHandler) Reply(c *fiber.Ctx) error {
	actor, err := actorID(c)
	if err != nil {
		return err
	}
	var req dto.CreateMessageRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	msg, ticket, err := h.service.Reply(c.UserContext(), actor, clientID(c), c.Params("id"), service.ReplyInput{
		Content:     req.Content,
		Attachments: attachmentInputs(req.Attachments),
	})
	if err != nil {
		return err
	}
	return created(c, fiber.Map{
		"message": messageResponse(msg),
		"ticket":  ticketResponse(ticket, h.now()),
	})
}

// Claim POST /tickets/:id/assumir.
func (h *TicketsHandler) Claim(c *fiber.Ctx) error {
	actor, err := actorID(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.Claim(c.UserContext(), actor, clientID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return data(c, ticketResponse(ticket, h.now()))
}

// Forward POST /tickets/:id/encaminhar.
func (h *TicketsHandler) Forward(c *fiber.Ctx) error {
	actor, err := actorID(c)
	if err != nil {
		return err
	}
	var req dto.ForwardTicketRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.Forward(c.UserContext(), actor, clientID(c), c.Params("id"), service.ForwardInput{
		NewAssigneeID: req.NewAssigneeID,
		AuxiliaryIDs:  req.AuxiliaryIDs,
		ScheduledAt:   req.ScheduledAt,
		Comment:       req.Comment,
	})
	if err != nil {
		return err
	}
	return data(c, ticketResponse(ticket, h.now()))
}

// Approve POST /tickets/:id/approve.
func (h *TicketsHandler) Approve(c *fiber.Ctx) error {
	actor, err := actorID(c)
	if err != nil {
		return err
	}
	req, err := optionalDecision(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.Approve(c.UserContext(), actor, clientID(c), c.Params("id"), req.Comment)
	if err != nil {
		return err
	}
	return data(c, ticketResponse(ticket, h.now()))
}

// Reject POST /tickets/:id/reject.
func (h *TicketsHandler) Reject(c *fiber.Ctx) error {
	actor, err := actorID(c)
	if err != nil {
		return err
	}
	req, err := optionalDecision(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.Reject(c.UserContext(), actor, clientID(c), c.Params("id"), req.Comment)
	if err != nil {
		return err
	}
	return data(c, ticketResponse(ticket, h.now()))
}

// Resubmit POST /tickets/:id/resubmit.
func (h *TicketsHandler) Resubmit(c *fiber.Ctx) error {
	actor, err := actorID(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.Resubmit(c.UserContext(), actor, clientID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return data(c, ticketResponse(ticket, h.now()))
}

// MarkRead POST /tickets/:id/read.
func (h *TicketsHandler) MarkRead(c *fiber.Ctx) error {
	actor, err := actorID(c)
	if err != nil {
		return err
	}
	updated, err := h.service.MarkRead(c.UserContext(), actor, clientID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return data(c, fiber.Map{"updated": updated})
}

// optionalDecision accepts an empty body as "no comment".
func optionalDecision(c *fiber.Ctx) (dto.DecisionRequest, error) {
	var req dto.DecisionRequest
	if len(c.Body()) == 0 {
		return req, nil
	}
	return req, bind(c, &req)
}

func parseStatuses(raw string) []domain.TicketStatus {
	if raw == "" {
		return nil
	}
	var statuses []domain.TicketStatus
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			statuses = append(statuses, domain.TicketStatus(part))
		}
	}
	return statuses
}
