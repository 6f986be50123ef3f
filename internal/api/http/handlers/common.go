package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/hubportal/hub/internal/api/dto"
	"github.com/hubportal/hub/internal/auth"
	"github.com/hubportal/hub/pkg/errorutil"
)

// ClientHeader selects the client when the query string does not.
const ClientHeader = "X-Client-Id"

func actorID(c *fiber.Ctx) (string, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return "", errorutil.NewUnauthorized("authentication required")
	}
	return principal.ID(), nil
}

// clientID reads the clientId query parameter, falling back to the header.
func clientID(c *fiber.Ctx) string {
	if id := strings.TrimSpace(c.Query("clientId")); id != "" {
		return id
	}
	return strings.TrimSpace(c.Get(ClientHeader))
}

// bind parses a JSON body and runs its validation tags.
func bind(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return errorutil.NewValidationError("invalid payload", nil)
	}
	return dto.Validate(req)
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func data(c *fiber.Ctx, payload any) error {
	return c.JSON(fiber.Map{"data": payload})
}

func created(c *fiber.Ctx, payload any) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": payload})
}
