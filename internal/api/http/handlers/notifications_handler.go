package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/hubportal/hub/internal/service"
)

const defaultNotificationLimit = 50

// NotificationsHandler serves the unread notification polling endpoints.
type NotificationsHandler struct {
	service *service.TicketService
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(ticketService *service.TicketService) *NotificationsHandler {
	return &NotificationsHandler{service: ticketService}
}

// List GET /notifications.
func (h *NotificationsHandler) List(c *fiber.Ctx) error {
	actor, err := actorID(c)
	if err != nil {
		return err
	}
	limit := parseInt(c.Query("limit"), defaultNotificationLimit)
	items, total, err := h.service.Unread(c.UserContext(), actor, clientID(c), limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": notificationResponses(items),
		"meta": fiber.Map{"unread": total},
	})
}

// Count GET /notifications/count.
func (h *NotificationsHandler) Count(c *fiber.Ctx) error {
	actor, err := actorID(c)
	if err != nil {
		return err
	}
	_, total, err := h.service.Unread(c.UserContext(), actor, clientID(c), 1)
	if err != nil {
		return err
	}
	return data(c, fiber.Map{"unread": total})
}
