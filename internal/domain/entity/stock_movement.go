package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tipos de movimiento del ledger.
const (
	MovementTypeIn      = "IN"      // alta del ítem
	MovementTypeReserve = "RESERVE" // reserva creada, sin cambio físico
	MovementTypeRelease = "RELEASE" // reserva cancelada o vencida, sin cambio físico
	MovementTypeConfirm = "CONFIRM" // reserva confirmada, salida física
	MovementTypeAdjust  = "ADJUST"  // ajuste manual
)

// StockMovement es un registro inmutable del ledger. Nunca se actualiza ni se elimina.
// Quantity es el delta aplicado: QuantityAfter - QuantityBefore == Quantity.
type StockMovement struct {
	ID             string
	CompanyID      string
	StockItemID    string
	Type           string
	Quantity       decimal.Decimal
	QuantityBefore decimal.Decimal
	QuantityAfter  decimal.Decimal
	Reason         string
	ReservationID  *string
	Metadata       map[string]any
	CreatedBy      string
	CreatedAt      time.Time
}

// Balanced verifica que el snapshot antes/después coincida con el delta.
func (m *StockMovement) Balanced() bool {
	return m.QuantityAfter.Sub(m.QuantityBefore).Equal(m.Quantity)
}
