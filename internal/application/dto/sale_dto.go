package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-reservas/internal/domain/entity"
)

// CustomerDTO datos del cliente de una venta.
type CustomerDTO struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// CreateSaleRequest body para POST /api/sales.
type CreateSaleRequest struct {
	ReservationIDs []string         `json:"reservation_ids"`
	Customer       CustomerDTO      `json:"customer"`
	Notes          string           `json:"notes,omitempty"`
	Discount       *decimal.Decimal `json:"discount,omitempty"`
	AssignedTo     string           `json:"assigned_to,omitempty"`
}

// CreateDraftSaleRequest body para POST /api/sales/drafts (cotización sin reservas).
type CreateDraftSaleRequest struct {
	Customer   CustomerDTO `json:"customer"`
	Notes      string      `json:"notes,omitempty"`
	AssignedTo string      `json:"assigned_to,omitempty"`
}

// AttachReservationsRequest body para POST /api/sales/:id/reservations.
type AttachReservationsRequest struct {
	ReservationIDs []string `json:"reservation_ids"`
}

// UpdateSaleRequest body para PATCH /api/sales/:id. Solo se aplican los campos no nulos.
type UpdateSaleRequest struct {
	CustomerName  *string          `json:"customer_name,omitempty"`
	CustomerEmail *string          `json:"customer_email,omitempty"`
	CustomerPhone *string          `json:"customer_phone,omitempty"`
	Notes         *string          `json:"notes,omitempty"`
	AssignedTo    *string          `json:"assigned_to,omitempty"`
	Discount      *decimal.Decimal `json:"discount,omitempty"`
}

// SaleResponse respuesta de venta.
type SaleResponse struct {
	ID             string          `json:"id"`
	Number         string          `json:"number"`
	Status         string          `json:"status"`
	Customer       CustomerDTO     `json:"customer"`
	Notes          string          `json:"notes,omitempty"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Discount       decimal.Decimal `json:"discount"`
	Total          decimal.Decimal `json:"total"`
	CreatedBy      string          `json:"created_by"`
	AssignedTo     string          `json:"assigned_to,omitempty"`
	ReservationIDs []string        `json:"reservation_ids"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`
	ShippedAt      *time.Time      `json:"shipped_at,omitempty"`
	DeliveredAt    *time.Time      `json:"delivered_at,omitempty"`
	CancelledAt    *time.Time      `json:"cancelled_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	DeletedAt      *time.Time      `json:"deleted_at,omitempty"`
}

// ToSaleResponse mapea la entidad a la respuesta.
func ToSaleResponse(s *entity.Sale) SaleResponse {
	ids := s.ReservationIDs
	if ids == nil {
		ids = []string{}
	}
	return SaleResponse{
		ID:     s.ID,
		Number: s.Number,
		Status: s.Status,
		Customer: CustomerDTO{
			Name:  s.Customer.Name,
			Email: s.Customer.Email,
			Phone: s.Customer.Phone,
		},
		Notes:          s.Notes,
		Subtotal:       s.Subtotal,
		Discount:       s.Discount,
		Total:          s.Total,
		CreatedBy:      s.CreatedBy,
		AssignedTo:     s.AssignedTo,
		ReservationIDs: ids,
		PaidAt:         s.PaidAt,
		ShippedAt:      s.ShippedAt,
		DeliveredAt:    s.DeliveredAt,
		CancelledAt:    s.CancelledAt,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
		DeletedAt:      s.DeletedAt,
	}
}
