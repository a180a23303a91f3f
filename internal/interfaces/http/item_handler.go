package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/inventario-reservas/internal/application/dto"
	"github.com/jhoicas/inventario-reservas/internal/application/inventory"
	"github.com/jhoicas/inventario-reservas/internal/domain/repository"
)

// ItemHandler maneja /api/items: alta, ajustes y borrado lógico de ítems de stock.
type ItemHandler struct {
	uc *inventory.StockLedgerUseCase
}

// NewItemHandler construye el handler.
func NewItemHandler(uc *inventory.StockLedgerUseCase) *ItemHandler {
	return &ItemHandler{uc: uc}
}

// Create POST /api/items.
func (h *ItemHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateStockItemRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	item, err := h.uc.CreateItem(c.UserContext(), actorFrom(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.ToStockItemResponse(item))
}

// List GET /api/items?sku=&status=&include_deleted=.
func (h *ItemHandler) List(c *fiber.Ctx) error {
	filter := repository.StockItemFilter{
		SKU:            c.Query("sku"),
		Status:         c.Query("status"),
		IncludeDeleted: c.QueryBool("include_deleted", false),
	}
	list, err := h.uc.ListItems(c.UserContext(), actorFrom(c), filter, pageFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	out := make([]dto.StockItemResponse, 0, len(list))
	for _, item := range list {
		out = append(out, dto.ToStockItemResponse(item))
	}
	return c.JSON(out)
}

// GetByID GET /api/items/:id.
func (h *ItemHandler) GetByID(c *fiber.Ctx) error {
	item, err := h.uc.GetItem(c.UserContext(), actorFrom(c), c.Params("id"), c.QueryBool("include_deleted", false))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.ToStockItemResponse(item))
}

// Adjust POST /api/items/:id/adjust.
func (h *ItemHandler) Adjust(c *fiber.Ctx) error {
	var in dto.AdjustQuantityRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	item, err := h.uc.AdjustQuantity(c.UserContext(), actorFrom(c), c.Params("id"), in.Delta, in.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.ToStockItemResponse(item))
}

// Delete DELETE /api/items/:id (borrado lógico).
func (h *ItemHandler) Delete(c *fiber.Ctx) error {
	if err := h.uc.SoftDeleteItem(c.UserContext(), actorFrom(c), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Restore POST /api/items/:id/restore.
func (h *ItemHandler) Restore(c *fiber.Ctx) error {
	if err := h.uc.RestoreItem(c.UserContext(), actorFrom(c), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
