package handler

import (
	"go-storefront-api/internal/service"

	"github.com/gofiber/fiber/v2"
)

type CartHandler struct {
	service service.CartService
}

func NewCartHandler(s service.CartService) *CartHandler {
	return &CartHandler{service: s}
}

// CreateCart handles POST /api/carts, an idempotent get-or-create of the
// caller's active cart. 201 when a cart was created, 200 when it existed.
func (h *CartHandler) CreateCart(c *fiber.Ctx) error {
	cart, created, err := h.service.GetOrCreateActiveCart(c.Context(), requester(c).ID)
	if err != nil {
		return respondError(c, err)
	}
	status := 200
	if created {
		status = 201
	}
	return c.Status(status).JSON(cart)
}

// GetHistory handles GET /api/carts/history: every cart owned by the
// caller, paid and active, in creation order.
func (h *CartHandler) GetHistory(c *fiber.Ctx) error {
	carts, err := h.service.PurchaseHistory(c.Context(), requester(c).ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(carts)
}

// GetCart handles GET /api/carts/:id, returning the cart's line items
func (h *CartHandler) GetCart(c *fiber.Ctx) error {
	cartID, err := paramUUID(c, "id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid cart ID"})
	}

	cart, err := h.service.GetCart(c.Context(), cartID, requester(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(cart.Items)
}

// AddProduct handles POST /api/carts/:id/product/:pid, adding one unit
func (h *CartHandler) AddProduct(c *fiber.Ctx) error {
	cartID, err := paramUUID(c, "id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid cart ID"})
	}
	productID, err := paramUUID(c, "pid")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid product ID"})
	}

	cart, err := h.service.AddProduct(c.Context(), cartID, productID, requester(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(cart)
}

// UpdateQuantityRequest is the body of PUT /api/carts/:id/product/:pid
type UpdateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// UpdateQuantity handles PUT /api/carts/:id/product/:pid, setting the exact quantity
func (h *CartHandler) UpdateQuantity(c *fiber.Ctx) error {
	cartID, err := paramUUID(c, "id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid cart ID"})
	}
	productID, err := paramUUID(c, "pid")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid product ID"})
	}

	var req UpdateQuantityRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	cart, err := h.service.SetProductQuantity(c.Context(), cartID, productID, req.Quantity, requester(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(cart)
}

// RemoveProduct handles DELETE /api/carts/:id/product/:pid, dropping the line
func (h *CartHandler) RemoveProduct(c *fiber.Ctx) error {
	cartID, err := paramUUID(c, "id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid cart ID"})
	}
	productID, err := paramUUID(c, "pid")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid product ID"})
	}

	cart, err := h.service.RemoveProduct(c.Context(), cartID, productID, requester(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(cart)
}

// DeleteCart handles DELETE /api/carts/:id
func (h *CartHandler) DeleteCart(c *fiber.Ctx) error {
	cartID, err := paramUUID(c, "id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid cart ID"})
	}

	if err := h.service.DeleteCart(c.Context(), cartID, requester(c)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Cart deleted"})
}

// PayCart handles POST /api/carts/:id/pay, the checkout settlement
func (h *CartHandler) PayCart(c *fiber.Ctx) error {
	cartID, err := paramUUID(c, "id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid cart ID"})
	}

	cart, err := h.service.PayCart(c.Context(), cartID, requester(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Cart paid", "data": cart})
}
