package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/inventario-reservas/internal/application/dto"
	"github.com/jhoicas/inventario-reservas/internal/application/inventory"
	"github.com/jhoicas/inventario-reservas/internal/domain"
	"github.com/jhoicas/inventario-reservas/internal/domain/entity"
	"github.com/jhoicas/inventario-reservas/internal/domain/repository"
)

// ReservationHandler maneja /api/reservations.
type ReservationHandler struct {
	uc *inventory.ReservationUseCase
}

// NewReservationHandler construye el handler.
func NewReservationHandler(uc *inventory.ReservationUseCase) *ReservationHandler {
	return &ReservationHandler{uc: uc}
}

// Create POST /api/reservations. Con stock_item_id reserva ese ítem; con sku elige el ítem.
func (h *ReservationHandler) Create(c *fiber.Ctx) error {
	var in dto.ReserveRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	var (
		res *entity.StockReservation
		err error
	)
	switch {
	case in.StockItemID != "" && in.SKU != "":
		return respondError(c, domain.NewValidation("indique stock_item_id o sku, no ambos"))
	case in.StockItemID != "":
		res, err = h.uc.Reserve(c.UserContext(), actorFrom(c), in.StockItemID, in.Quantity, in.ExpiresAt)
	default:
		res, err = h.uc.ReserveBySKU(c.UserContext(), actorFrom(c), in.SKU, in.Quantity, in.ExpiresAt)
	}
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.ToReservationResponse(res))
}

// List GET /api/reservations?stock_item_id=&sale_id=&status=.
func (h *ReservationHandler) List(c *fiber.Ctx) error {
	filter := repository.ReservationFilter{
		StockItemID: c.Query("stock_item_id"),
		SaleID:      c.Query("sale_id"),
		Status:      c.Query("status"),
	}
	list, err := h.uc.ListReservations(c.UserContext(), actorFrom(c), filter, pageFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	out := make([]dto.ReservationResponse, 0, len(list))
	for _, r := range list {
		out = append(out, dto.ToReservationResponse(r))
	}
	return c.JSON(out)
}

// GetByID GET /api/reservations/:id.
func (h *ReservationHandler) GetByID(c *fiber.Ctx) error {
	res, err := h.uc.GetReservation(c.UserContext(), actorFrom(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.ToReservationResponse(res))
}

// Confirm POST /api/reservations/:id/confirm.
func (h *ReservationHandler) Confirm(c *fiber.Ctx) error {
	res, err := h.uc.Confirm(c.UserContext(), actorFrom(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.ToReservationResponse(res))
}

// Release POST /api/reservations/:id/release. El motivo es opcional.
func (h *ReservationHandler) Release(c *fiber.Ctx) error {
	var in dto.ReleaseRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return badBody(c)
		}
	}
	res, err := h.uc.Release(c.UserContext(), actorFrom(c), c.Params("id"), in.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.ToReservationResponse(res))
}

// Expire POST /api/reservations/expire: vence ya las reservas vencidas de la empresa.
func (h *ReservationHandler) Expire(c *fiber.Ctx) error {
	actor := actorFrom(c)
	result, err := h.uc.ExpireDue(c.UserContext(), actor.CompanyID, time.Now().UTC())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.ExpireResponse{Expired: result.Expired, Skipped: result.Skipped, Failed: result.Failed})
}
