package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados base de un ítem de stock. Cualquier otro valor no vacío es un estado definido por el tenant.
const (
	ItemStatusAvailable = "AVAILABLE"
	ItemStatusSold      = "SOLD"
)

// Decimales que admite el almacenamiento: cantidades NUMERIC(18,4), precios NUMERIC(18,2).
const (
	QuantityScale = 4
	PriceScale    = 2
)

// FitsScale indica si d no tiene más de scale decimales significativos.
func FitsScale(d decimal.Decimal, scale int32) bool {
	return d.Equal(d.Truncate(scale))
}

// StockItem representa una unidad serializada o un lote de inventario.
// Si SerialNumber está definido, el ítem es exactamente una unidad física y Quantity solo puede ser 0 o 1.
type StockItem struct {
	ID           string
	CompanyID    string
	SKU          string
	Model        string
	SerialNumber *string
	Quantity     decimal.Decimal // cantidad física disponible
	Status       string
	BasePrice    decimal.Decimal
	CreatedBy    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}

// IsSerialized indica si el ítem representa una sola unidad física.
func (i *StockItem) IsSerialized() bool {
	return i.SerialNumber != nil && *i.SerialNumber != ""
}

// IsDeleted indica si el ítem tiene borrado lógico.
func (i *StockItem) IsDeleted() bool { return i.DeletedAt != nil }

// IsAvailable indica si el ítem acepta nuevas reservas.
func (i *StockItem) IsAvailable() bool {
	return i.Status == ItemStatusAvailable && !i.IsDeleted()
}

// ValidSerializedQuantity verifica el invariante 0 <= q <= 1 de los ítems serializados.
func ValidSerializedQuantity(q decimal.Decimal) bool {
	return q.Equal(decimal.Zero) || q.Equal(decimal.NewFromInt(1))
}
