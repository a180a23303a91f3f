package sales

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-reservas/internal/application/audit"
	"github.com/jhoicas/inventario-reservas/internal/domain"
	"github.com/jhoicas/inventario-reservas/internal/domain/entity"
	"github.com/jhoicas/inventario-reservas/internal/domain/repository"
)

// TxRunner ejecuta una función dentro de una transacción que incluye inventario, reservas y ventas.
type TxRunner interface {
	Run(ctx context.Context, fn func(repos repository.Set) error) error
}

// ReservationService integra ventas con el gestor de reservas.
// Ambos métodos usan los repositorios y el lote de auditoría del caller (misma transacción); si retornan error
// (ej: reserva no activa, stock insuficiente) el caller debe hacer rollback.
type ReservationService interface {
	ConfirmInTx(ctx context.Context, repos repository.Set, events *audit.Batch, actor domain.Actor, reservationID string) (*entity.StockReservation, error)
	ReleaseInTx(ctx context.Context, repos repository.Set, events *audit.Batch, actor domain.Actor, reservationID, reason string, metadata map[string]any) (*entity.StockReservation, error)
}

// PriceSource entrega el precio unitario de un ítem para calcular el subtotal de la venta.
// El núcleo lo trata como un valor opaco.
type PriceSource interface {
	UnitPrice(ctx context.Context, item *entity.StockItem) (decimal.Decimal, error)
}

// BasePriceSource usa el precio base del ítem.
type BasePriceSource struct{}

// UnitPrice implementa PriceSource.
func (BasePriceSource) UnitPrice(_ context.Context, item *entity.StockItem) (decimal.Decimal, error) {
	return item.BasePrice, nil
}
