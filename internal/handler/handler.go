package handler

import (
	"go-storefront-api/internal/apperr"
	"go-storefront-api/internal/model"
	"go-storefront-api/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// respondError maps a service error to its transport status via the central
// apperr table. Unclassified errors surface as a generic 500.
func respondError(c *fiber.Ctx, err error) error {
	return c.Status(apperr.HTTPStatus(err)).JSON(fiber.Map{"error": apperr.Message(err)})
}

// requester builds the authenticated identity from the context values set by
// the auth middleware.
func requester(c *fiber.Ctx) service.Requester {
	id, _ := c.Locals("user_id").(uuid.UUID)
	role, _ := c.Locals("user_role").(model.Role)
	return service.Requester{ID: id, Role: role}
}

func paramUUID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	return uuid.Parse(c.Params(name))
}
