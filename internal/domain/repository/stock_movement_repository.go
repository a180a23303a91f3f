package repository

import (
	"context"

	"github.com/jhoicas/inventario-reservas/internal/domain/entity"
)

// MovementFilter filtros de listado del ledger.
type MovementFilter struct {
	StockItemID   string
	ReservationID string
	Type          string
}

// StockMovementRepository define el puerto de persistencia del ledger (solo inserción y lectura).
type StockMovementRepository interface {
	Create(ctx context.Context, movement *entity.StockMovement) error
	List(ctx context.Context, companyID string, filter MovementFilter, limit, offset int) ([]*entity.StockMovement, error)
}
