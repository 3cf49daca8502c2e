package handler

import (
	"go-storefront-api/internal/service"

	"github.com/gofiber/fiber/v2"
)

type AdminHandler struct {
	userService service.UserService
}

func NewAdminHandler(userService service.UserService) *AdminHandler {
	return &AdminHandler{userService: userService}
}

// CreateAdmin handles POST /api/admin/create-admin, creating a user with an
// explicit role ("user" or "admin"), defaulting to "user".
func (h *AdminHandler) CreateAdmin(c *fiber.Ctx) error {
	var req service.CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	user, err := h.userService.CreateUser(c.Context(), &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"message": "User created", "user": user})
}

// GetUsers handles GET /api/admin/users
func (h *AdminHandler) GetUsers(c *fiber.Ctx) error {
	users, err := h.userService.GetAllUsers(c.Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(users)
}
