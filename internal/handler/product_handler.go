package handler

import (
	"go-storefront-api/internal/model"
	"go-storefront-api/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ProductHandler struct {
	service service.CatalogService
}

func NewProductHandler(s service.CatalogService) *ProductHandler {
	return &ProductHandler{service: s}
}

// GetProducts handles GET /api/products
func (h *ProductHandler) GetProducts(c *fiber.Ctx) error {
	products, err := h.service.ListProducts(c.Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(products)
}

// GetProduct handles GET /api/products/:id
func (h *ProductHandler) GetProduct(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid product ID"})
	}

	product, err := h.service.GetProduct(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(product)
}

// CreateProduct handles POST /api/products (admin)
func (h *ProductHandler) CreateProduct(c *fiber.Ctx) error {
	var product model.Product
	if err := c.BodyParser(&product); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	if err := h.service.CreateProduct(c.Context(), &product); err != nil {
		return respondError(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"message": "Product created", "data": product})
}

// UpdateProduct handles PUT /api/products/:id (admin, partial update)
func (h *ProductHandler) UpdateProduct(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid product ID"})
	}

	var req service.UpdateProductRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	updated, err := h.service.UpdateProduct(c.Context(), id, &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Product updated", "data": updated})
}

// DeleteProduct handles DELETE /api/products/:id (admin, hard delete)
func (h *ProductHandler) DeleteProduct(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid product ID"})
	}

	if err := h.service.DeleteProduct(c.Context(), id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Product deleted"})
}
