package memory

import (
	"context"

	"github.com/jhoicas/inventario-reservas/internal/domain/entity"
	"github.com/jhoicas/inventario-reservas/internal/domain/repository"
)

var _ repository.StockMovementRepository = (*StockMovementRepository)(nil)

// StockMovementRepository implementa el ledger en memoria (solo inserción).
type StockMovementRepository struct {
	base
}

// Create agrega el movimiento al final del ledger.
func (r *StockMovementRepository) Create(_ context.Context, m *entity.StockMovement) error {
	return r.with(func(st *state) error {
		c := *m
		st.movements = append(st.movements, &c)
		return nil
	})
}

// List lista movimientos de la empresa, más recientes primero (orden de inserción inverso).
func (r *StockMovementRepository) List(_ context.Context, companyID string, filter repository.MovementFilter, limit, offset int) ([]*entity.StockMovement, error) {
	var out []*entity.StockMovement
	err := r.with(func(st *state) error {
		for i := len(st.movements) - 1; i >= 0; i-- {
			v := st.movements[i]
			if v.CompanyID != companyID {
				continue
			}
			if filter.StockItemID != "" && v.StockItemID != filter.StockItemID {
				continue
			}
			if filter.ReservationID != "" && (v.ReservationID == nil || *v.ReservationID != filter.ReservationID) {
				continue
			}
			if filter.Type != "" && v.Type != filter.Type {
				continue
			}
			c := *v
			out = append(out, &c)
		}
		return nil
	})
	return page(out, limit, offset), err
}
