package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-reservas/internal/domain/entity"
)

// CreateStockItemRequest body para POST /api/items (alta de lote o unidad serializada).
type CreateStockItemRequest struct {
	SKU          string          `json:"sku"`
	Model        string          `json:"model"`
	SerialNumber *string         `json:"serial_number,omitempty"`
	Quantity     decimal.Decimal `json:"quantity"`
	Status       string          `json:"status,omitempty"` // vacío = AVAILABLE
	BasePrice    decimal.Decimal `json:"base_price"`
	Reason       string          `json:"reason,omitempty"`
}

// AdjustQuantityRequest body para POST /api/items/:id/adjust.
type AdjustQuantityRequest struct {
	Delta  decimal.Decimal `json:"delta"`
	Reason string          `json:"reason"`
}

// ReserveRequest body para POST /api/reservations. Se indica StockItemID o SKU.
type ReserveRequest struct {
	StockItemID string          `json:"stock_item_id,omitempty"`
	SKU         string          `json:"sku,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"`
}

// ReleaseRequest body para POST /api/reservations/:id/release.
type ReleaseRequest struct {
	Reason string `json:"reason"`
}

// StockItemResponse respuesta de ítem.
type StockItemResponse struct {
	ID           string          `json:"id"`
	SKU          string          `json:"sku"`
	Model        string          `json:"model"`
	SerialNumber *string         `json:"serial_number,omitempty"`
	Quantity     decimal.Decimal `json:"quantity"`
	Status       string          `json:"status"`
	BasePrice    decimal.Decimal `json:"base_price"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	DeletedAt    *time.Time      `json:"deleted_at,omitempty"`
}

// ReservationResponse respuesta de reserva.
type ReservationResponse struct {
	ID          string          `json:"id"`
	StockItemID string          `json:"stock_item_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	Status      string          `json:"status"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"`
	SaleID      *string         `json:"sale_id,omitempty"`
	CreatedBy   string          `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// MovementResponse respuesta de un movimiento del ledger.
type MovementResponse struct {
	ID             string          `json:"id"`
	StockItemID    string          `json:"stock_item_id"`
	Type           string          `json:"type"`
	Quantity       decimal.Decimal `json:"quantity"`
	QuantityBefore decimal.Decimal `json:"quantity_before"`
	QuantityAfter  decimal.Decimal `json:"quantity_after"`
	Reason         string          `json:"reason"`
	ReservationID  *string         `json:"reservation_id,omitempty"`
	Metadata       map[string]any  `json:"metadata,omitempty"`
	CreatedBy      string          `json:"created_by"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ExpireResponse resultado de POST /api/reservations/expire.
type ExpireResponse struct {
	Expired int `json:"expired"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// ToStockItemResponse mapea la entidad a la respuesta.
func ToStockItemResponse(i *entity.StockItem) StockItemResponse {
	return StockItemResponse{
		ID:           i.ID,
		SKU:          i.SKU,
		Model:        i.Model,
		SerialNumber: i.SerialNumber,
		Quantity:     i.Quantity,
		Status:       i.Status,
		BasePrice:    i.BasePrice,
		CreatedAt:    i.CreatedAt,
		UpdatedAt:    i.UpdatedAt,
		DeletedAt:    i.DeletedAt,
	}
}

// ToReservationResponse mapea la entidad a la respuesta.
func ToReservationResponse(r *entity.StockReservation) ReservationResponse {
	return ReservationResponse{
		ID:          r.ID,
		StockItemID: r.StockItemID,
		Quantity:    r.Quantity,
		Status:      r.Status,
		ExpiresAt:   r.ExpiresAt,
		SaleID:      r.SaleID,
		CreatedBy:   r.CreatedBy,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// ToMovementResponse mapea la entidad a la respuesta.
func ToMovementResponse(m *entity.StockMovement) MovementResponse {
	return MovementResponse{
		ID:             m.ID,
		StockItemID:    m.StockItemID,
		Type:           m.Type,
		Quantity:       m.Quantity,
		QuantityBefore: m.QuantityBefore,
		QuantityAfter:  m.QuantityAfter,
		Reason:         m.Reason,
		ReservationID:  m.ReservationID,
		Metadata:       m.Metadata,
		CreatedBy:      m.CreatedBy,
		CreatedAt:      m.CreatedAt,
	}
}
