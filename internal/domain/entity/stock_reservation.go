package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados de una reserva. ACTIVE es el inicial; los demás son terminales.
const (
	ReservationStatusActive    = "ACTIVE"
	ReservationStatusConfirmed = "CONFIRMED"
	ReservationStatusCancelled = "CANCELLED"
	ReservationStatusExpired   = "EXPIRED"
)

// StockReservation es una retención provisional y con vencimiento sobre la cantidad de un StockItem.
// SaleID solo se escribe una vez.
type StockReservation struct {
	ID          string
	CompanyID   string
	StockItemID string
	Quantity    decimal.Decimal
	Status      string
	ExpiresAt   *time.Time
	SaleID      *string
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsActive indica si la reserva sigue reteniendo stock.
func (r *StockReservation) IsActive() bool { return r.Status == ReservationStatusActive }

// IsLinked indica si la reserva ya pertenece a una venta.
func (r *StockReservation) IsLinked() bool { return r.SaleID != nil && *r.SaleID != "" }

// IsDue indica si la reserva activa venció antes de now.
func (r *StockReservation) IsDue(now time.Time) bool {
	return r.IsActive() && r.ExpiresAt != nil && r.ExpiresAt.Before(now)
}

// IsTerminalReservationStatus indica si no hay transición posible desde status.
func IsTerminalReservationStatus(status string) bool {
	switch status {
	case ReservationStatusConfirmed, ReservationStatusCancelled, ReservationStatusExpired:
		return true
	}
	return false
}

// CanTransitionReservation valida la máquina de estados de la reserva:
// ACTIVE -> CONFIRMED | CANCELLED | EXPIRED.
func CanTransitionReservation(from, to string) bool {
	return from == ReservationStatusActive && IsTerminalReservationStatus(to)
}
