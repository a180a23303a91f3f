package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/jhoicas/inventario-reservas/internal/domain"
	"github.com/jhoicas/inventario-reservas/internal/domain/entity"
	"github.com/jhoicas/inventario-reservas/internal/domain/repository"
)

var _ repository.SaleRepository = (*SaleRepository)(nil)

// SaleRepository implementa repository.SaleRepository en memoria.
// ReservationIDs se deriva de las reservas vinculadas, igual que en PostgreSQL.
type SaleRepository struct {
	base
}

// Create inserta la venta. El número es único por empresa.
func (r *SaleRepository) Create(_ context.Context, sale *entity.Sale) error {
	return r.with(func(st *state) error {
		if _, ok := st.sales[sale.ID]; ok {
			return domain.NewConflict(fmt.Sprintf("la venta %s ya existe", sale.ID))
		}
		for _, v := range st.sales {
			if v.CompanyID == sale.CompanyID && v.Number == sale.Number {
				return domain.NewConflict(fmt.Sprintf("el número de venta %s ya existe", sale.Number))
			}
		}
		c := copySale(sale)
		c.ReservationIDs = nil
		st.sales[sale.ID] = c
		return nil
	})
}

// Update reemplaza los campos de la venta.
func (r *SaleRepository) Update(_ context.Context, sale *entity.Sale) error {
	return r.with(func(st *state) error {
		cur, ok := st.sales[sale.ID]
		if !ok || cur.CompanyID != sale.CompanyID {
			return domain.NewNotFound("venta no encontrada")
		}
		c := copySale(sale)
		c.ReservationIDs = nil
		st.sales[sale.ID] = c
		return nil
	})
}

// GetByID obtiene la venta con sus ReservationIDs o (nil, nil).
func (r *SaleRepository) GetByID(_ context.Context, companyID, id string) (*entity.Sale, error) {
	var out *entity.Sale
	err := r.with(func(st *state) error {
		if v, ok := st.sales[id]; ok && v.CompanyID == companyID {
			out = copySale(v)
			out.ReservationIDs = linkedIDs(st, companyID, id)
		}
		return nil
	})
	return out, err
}

// GetForUpdate equivale a GetByID dentro de la transacción serializada.
func (r *SaleRepository) GetForUpdate(ctx context.Context, companyID, id string) (*entity.Sale, error) {
	return r.GetByID(ctx, companyID, id)
}

// NextNumber incrementa el consecutivo de la empresa.
func (r *SaleRepository) NextNumber(_ context.Context, companyID string) (int64, error) {
	var n int64
	err := r.with(func(st *state) error {
		st.saleSeq[companyID]++
		n = st.saleSeq[companyID]
		return nil
	})
	return n, err
}

// List lista ventas de la empresa, más recientes primero.
func (r *SaleRepository) List(_ context.Context, companyID string, filter repository.SaleFilter, limit, offset int) ([]*entity.Sale, error) {
	var out []*entity.Sale
	err := r.with(func(st *state) error {
		for _, v := range st.sales {
			if v.CompanyID != companyID {
				continue
			}
			if v.IsDeleted() && !filter.IncludeDeleted {
				continue
			}
			if filter.Status != "" && v.Status != filter.Status {
				continue
			}
			c := copySale(v)
			c.ReservationIDs = linkedIDs(st, companyID, v.ID)
			out = append(out, c)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Number > out[j].Number
	})
	return page(out, limit, offset), err
}

func linkedIDs(st *state, companyID, saleID string) []string {
	var ids []string
	for _, v := range st.reservations {
		if v.CompanyID == companyID && v.SaleID != nil && *v.SaleID == saleID {
			ids = append(ids, v.ID)
		}
	}
	sort.Strings(ids)
	return ids
}
