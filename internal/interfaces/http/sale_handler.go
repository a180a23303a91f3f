package http

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/inventario-reservas/internal/application/dto"
	"github.com/jhoicas/inventario-reservas/internal/application/sales"
	"github.com/jhoicas/inventario-reservas/internal/domain"
	"github.com/jhoicas/inventario-reservas/internal/domain/entity"
	"github.com/jhoicas/inventario-reservas/internal/domain/repository"
)

// SaleHandler maneja /api/sales y las transiciones del ciclo de vida.
type SaleHandler struct {
	uc *sales.SaleUseCase
}

// NewSaleHandler construye el handler.
func NewSaleHandler(uc *sales.SaleUseCase) *SaleHandler {
	return &SaleHandler{uc: uc}
}

// Create POST /api/sales: crea la venta RESERVED a partir de reservas activas.
func (h *SaleHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateSaleRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	sale, err := h.uc.CreateSale(c.UserContext(), actorFrom(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.ToSaleResponse(sale))
}

// CreateDraft POST /api/sales/drafts.
func (h *SaleHandler) CreateDraft(c *fiber.Ctx) error {
	var in dto.CreateDraftSaleRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	sale, err := h.uc.CreateDraft(c.UserContext(), actorFrom(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.ToSaleResponse(sale))
}

// List GET /api/sales?status=&include_deleted=.
func (h *SaleHandler) List(c *fiber.Ctx) error {
	filter := repository.SaleFilter{
		Status:         c.Query("status"),
		IncludeDeleted: c.QueryBool("include_deleted", false),
	}
	list, err := h.uc.ListSales(c.UserContext(), actorFrom(c), filter, pageFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	out := make([]dto.SaleResponse, 0, len(list))
	for _, s := range list {
		out = append(out, dto.ToSaleResponse(s))
	}
	return c.JSON(out)
}

// GetByID GET /api/sales/:id.
func (h *SaleHandler) GetByID(c *fiber.Ctx) error {
	sale, err := h.uc.GetSale(c.UserContext(), actorFrom(c), c.Params("id"), c.QueryBool("include_deleted", false))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.ToSaleResponse(sale))
}

// Update PATCH /api/sales/:id.
func (h *SaleHandler) Update(c *fiber.Ctx) error {
	var in dto.UpdateSaleRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	sale, err := h.uc.UpdateSale(c.UserContext(), actorFrom(c), c.Params("id"), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.ToSaleResponse(sale))
}

// AttachReservations POST /api/sales/:id/reservations.
func (h *SaleHandler) AttachReservations(c *fiber.Ctx) error {
	var in dto.AttachReservationsRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	sale, err := h.uc.AttachReservations(c.UserContext(), actorFrom(c), c.Params("id"), in.ReservationIDs)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.ToSaleResponse(sale))
}

// Pay POST /api/sales/:id/pay.
func (h *SaleHandler) Pay(c *fiber.Ctx) error { return h.transition(c, h.uc.Pay) }

// Cancel POST /api/sales/:id/cancel.
func (h *SaleHandler) Cancel(c *fiber.Ctx) error { return h.transition(c, h.uc.Cancel) }

// Ship POST /api/sales/:id/ship.
func (h *SaleHandler) Ship(c *fiber.Ctx) error { return h.transition(c, h.uc.Ship) }

// Deliver POST /api/sales/:id/deliver.
func (h *SaleHandler) Deliver(c *fiber.Ctx) error { return h.transition(c, h.uc.Deliver) }

// Restore POST /api/sales/:id/restore.
func (h *SaleHandler) Restore(c *fiber.Ctx) error { return h.transition(c, h.uc.RestoreSale) }

// Delete DELETE /api/sales/:id (solo borradores sin reservas).
func (h *SaleHandler) Delete(c *fiber.Ctx) error {
	if err := h.uc.DeleteSale(c.UserContext(), actorFrom(c), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *SaleHandler) transition(c *fiber.Ctx, op func(context.Context, domain.Actor, string) (*entity.Sale, error)) error {
	sale, err := op(c.UserContext(), actorFrom(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.ToSaleResponse(sale))
}
