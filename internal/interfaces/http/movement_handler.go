package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/inventario-reservas/internal/application/dto"
	"github.com/jhoicas/inventario-reservas/internal/application/inventory"
	"github.com/jhoicas/inventario-reservas/internal/domain/repository"
)

// MovementHandler expone el ledger en solo lectura.
type MovementHandler struct {
	uc *inventory.StockLedgerUseCase
}

// NewMovementHandler construye el handler.
func NewMovementHandler(uc *inventory.StockLedgerUseCase) *MovementHandler {
	return &MovementHandler{uc: uc}
}

// List GET /api/movements?stock_item_id=&reservation_id=&type=.
func (h *MovementHandler) List(c *fiber.Ctx) error {
	filter := repository.MovementFilter{
		StockItemID:   c.Query("stock_item_id"),
		ReservationID: c.Query("reservation_id"),
		Type:          c.Query("type"),
	}
	list, err := h.uc.ListMovements(c.UserContext(), actorFrom(c), filter, pageFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	out := make([]dto.MovementResponse, 0, len(list))
	for _, m := range list {
		out = append(out, dto.ToMovementResponse(m))
	}
	return c.JSON(out)
}
