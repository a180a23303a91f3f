package repository

import (
	"context"

	"github.com/jhoicas/inventario-reservas/internal/domain/entity"
)

// StockItemFilter filtros de listado de ítems (siempre acotados por empresa).
type StockItemFilter struct {
	SKU            string
	Status         string
	IncludeDeleted bool
}

// StockItemRepository define el puerto de persistencia de StockItem.
// GetForUpdate bloquea la fila (SELECT FOR UPDATE) hasta el fin de la transacción.
type StockItemRepository interface {
	Create(ctx context.Context, item *entity.StockItem) error
	Update(ctx context.Context, item *entity.StockItem) error
	GetByID(ctx context.Context, companyID, id string) (*entity.StockItem, error)
	GetForUpdate(ctx context.Context, companyID, id string) (*entity.StockItem, error)
	GetBySerial(ctx context.Context, companyID, serial string) (*entity.StockItem, error)
	// ListAvailableBySKU devuelve los ítems AVAILABLE no eliminados del SKU, más antiguos primero.
	ListAvailableBySKU(ctx context.Context, companyID, sku string) ([]*entity.StockItem, error)
	CountBySKU(ctx context.Context, companyID, sku string) (int, error)
	List(ctx context.Context, companyID string, filter StockItemFilter, limit, offset int) ([]*entity.StockItem, error)
}
