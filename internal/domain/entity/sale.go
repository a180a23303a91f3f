package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados de una venta.
const (
	SaleStatusDraft     = "DRAFT"
	SaleStatusReserved  = "RESERVED"
	SaleStatusPaid      = "PAID"
	SaleStatusShipped   = "SHIPPED"
	SaleStatusDelivered = "DELIVERED"
	SaleStatusCancelled = "CANCELLED"
)

// saleTransitions: DRAFT -> RESERVED -> PAID -> SHIPPED -> DELIVERED; CANCELLED desde DRAFT, RESERVED o PAID.
var saleTransitions = map[string][]string{
	SaleStatusDraft:    {SaleStatusReserved, SaleStatusCancelled},
	SaleStatusReserved: {SaleStatusPaid, SaleStatusCancelled},
	SaleStatusPaid:     {SaleStatusShipped, SaleStatusCancelled},
	SaleStatusShipped:  {SaleStatusDelivered},
}

// CanTransitionSale indica si la transición from -> to es legal.
func CanTransitionSale(from, to string) bool {
	for _, s := range saleTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// SaleCustomer datos del cliente de la venta.
type SaleCustomer struct {
	Name  string
	Email string
	Phone string
}

// Sale agrupa reservas en una transacción de cliente.
type Sale struct {
	ID             string
	CompanyID      string
	Number         string
	Status         string
	Customer       SaleCustomer
	Notes          string
	Subtotal       decimal.Decimal
	Discount       decimal.Decimal
	Total          decimal.Decimal
	CreatedBy      string
	AssignedTo     string
	ReservationIDs []string
	PaidAt         *time.Time
	ShippedAt      *time.Time
	DeliveredAt    *time.Time
	CancelledAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      *time.Time
}

// IsDeleted indica si la venta tiene borrado lógico.
func (s *Sale) IsDeleted() bool { return s.DeletedAt != nil }

// Recalculate aplica total = subtotal - descuento.
func (s *Sale) Recalculate() {
	s.Total = s.Subtotal.Sub(s.Discount)
}
