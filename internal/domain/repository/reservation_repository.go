package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-reservas/internal/domain/entity"
)

// ReservationFilter filtros de listado de reservas.
type ReservationFilter struct {
	StockItemID string
	SaleID      string
	Status      string
}

// ReservationRepository define el puerto de persistencia de StockReservation.
type ReservationRepository interface {
	Create(ctx context.Context, r *entity.StockReservation) error
	GetByID(ctx context.Context, companyID, id string) (*entity.StockReservation, error)
	GetForUpdate(ctx context.Context, companyID, id string) (*entity.StockReservation, error)
	// UpdateStatus cambia el estado solo si el estado actual es from; devuelve false si otra transacción ganó.
	UpdateStatus(ctx context.Context, companyID, id, from, to string, at time.Time) (bool, error)
	// LinkSale asigna la venta solo si la reserva aún no tiene una (escritura única).
	LinkSale(ctx context.Context, companyID, id, saleID string, at time.Time) (bool, error)
	SumActiveByItem(ctx context.Context, companyID, itemID string) (decimal.Decimal, error)
	CountActiveByItem(ctx context.Context, companyID, itemID string) (int, error)
	ListBySale(ctx context.Context, companyID, saleID string) ([]*entity.StockReservation, error)
	// ListDue devuelve reservas ACTIVE con expires_at < now; companyID vacío = todas las empresas.
	ListDue(ctx context.Context, companyID string, now time.Time, limit int) ([]*entity.StockReservation, error)
	List(ctx context.Context, companyID string, filter ReservationFilter, limit, offset int) ([]*entity.StockReservation, error)
}
