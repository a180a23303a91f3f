package repository

import (
	"context"

	"github.com/jhoicas/inventario-reservas/internal/domain/entity"
)

// SaleFilter filtros de listado de ventas.
type SaleFilter struct {
	Status         string
	IncludeDeleted bool
}

// SaleRepository define el puerto de persistencia de Sale.
// GetByID y GetForUpdate cargan ReservationIDs; las reservas completas se leen con ReservationRepository.ListBySale.
// Igual que el resto de repositorios, devuelven (nil, nil) si el registro no existe en la empresa.
type SaleRepository interface {
	Create(ctx context.Context, sale *entity.Sale) error
	Update(ctx context.Context, sale *entity.Sale) error
	GetByID(ctx context.Context, companyID, id string) (*entity.Sale, error)
	GetForUpdate(ctx context.Context, companyID, id string) (*entity.Sale, error)
	// NextNumber devuelve el siguiente consecutivo de venta de la empresa.
	NextNumber(ctx context.Context, companyID string) (int64, error)
	List(ctx context.Context, companyID string, filter SaleFilter, limit, offset int) ([]*entity.Sale, error)
}
