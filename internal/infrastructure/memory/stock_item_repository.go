package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/jhoicas/inventario-reservas/internal/domain"
	"github.com/jhoicas/inventario-reservas/internal/domain/entity"
	"github.com/jhoicas/inventario-reservas/internal/domain/repository"
)

var _ repository.StockItemRepository = (*StockItemRepository)(nil)

// StockItemRepository implementa repository.StockItemRepository en memoria.
type StockItemRepository struct {
	base
}

// Create inserta el ítem. El serial es único por empresa.
func (r *StockItemRepository) Create(_ context.Context, item *entity.StockItem) error {
	return r.with(func(st *state) error {
		if _, ok := st.items[item.ID]; ok {
			return domain.NewConflict(fmt.Sprintf("el ítem %s ya existe", item.ID))
		}
		if item.SerialNumber != nil && findBySerial(st, item.CompanyID, *item.SerialNumber) != nil {
			return domain.NewConflict(fmt.Sprintf("el serial %s ya existe", *item.SerialNumber))
		}
		st.items[item.ID] = copyItem(item)
		return nil
	})
}

// Update reemplaza el ítem.
func (r *StockItemRepository) Update(_ context.Context, item *entity.StockItem) error {
	return r.with(func(st *state) error {
		cur, ok := st.items[item.ID]
		if !ok || cur.CompanyID != item.CompanyID {
			return domain.NewNotFound("ítem no encontrado")
		}
		st.items[item.ID] = copyItem(item)
		return nil
	})
}

// GetByID obtiene un ítem (incluye eliminados). Retorna (nil, nil) si no existe en la empresa.
func (r *StockItemRepository) GetByID(_ context.Context, companyID, id string) (*entity.StockItem, error) {
	var out *entity.StockItem
	err := r.with(func(st *state) error {
		if v, ok := st.items[id]; ok && v.CompanyID == companyID {
			out = copyItem(v)
		}
		return nil
	})
	return out, err
}

// GetForUpdate equivale a GetByID: el lock del almacén ya serializa la transacción.
func (r *StockItemRepository) GetForUpdate(ctx context.Context, companyID, id string) (*entity.StockItem, error) {
	return r.GetByID(ctx, companyID, id)
}

// GetBySerial busca por serial dentro de la empresa.
func (r *StockItemRepository) GetBySerial(_ context.Context, companyID, serial string) (*entity.StockItem, error) {
	var out *entity.StockItem
	err := r.with(func(st *state) error {
		if v := findBySerial(st, companyID, serial); v != nil {
			out = copyItem(v)
		}
		return nil
	})
	return out, err
}

// ListAvailableBySKU devuelve los ítems AVAILABLE no eliminados del SKU, más antiguos primero.
func (r *StockItemRepository) ListAvailableBySKU(_ context.Context, companyID, sku string) ([]*entity.StockItem, error) {
	var out []*entity.StockItem
	err := r.with(func(st *state) error {
		for _, v := range st.items {
			if v.CompanyID == companyID && v.SKU == sku && v.IsAvailable() && !v.IsDeleted() {
				out = append(out, copyItem(v))
			}
		}
		return nil
	})
	sortItems(out, true)
	return out, err
}

// CountBySKU cuenta los ítems no eliminados del SKU en cualquier estado.
func (r *StockItemRepository) CountBySKU(_ context.Context, companyID, sku string) (int, error) {
	n := 0
	err := r.with(func(st *state) error {
		for _, v := range st.items {
			if v.CompanyID == companyID && v.SKU == sku && !v.IsDeleted() {
				n++
			}
		}
		return nil
	})
	return n, err
}

// List lista ítems de la empresa, más recientes primero.
func (r *StockItemRepository) List(_ context.Context, companyID string, filter repository.StockItemFilter, limit, offset int) ([]*entity.StockItem, error) {
	var out []*entity.StockItem
	err := r.with(func(st *state) error {
		for _, v := range st.items {
			if v.CompanyID != companyID {
				continue
			}
			if v.IsDeleted() && !filter.IncludeDeleted {
				continue
			}
			if filter.SKU != "" && v.SKU != filter.SKU {
				continue
			}
			if filter.Status != "" && v.Status != filter.Status {
				continue
			}
			out = append(out, copyItem(v))
		}
		return nil
	})
	sortItems(out, false)
	return page(out, limit, offset), err
}

func findBySerial(st *state, companyID, serial string) *entity.StockItem {
	for _, v := range st.items {
		if v.CompanyID == companyID && v.SerialNumber != nil && *v.SerialNumber == serial {
			return v
		}
	}
	return nil
}

func sortItems(list []*entity.StockItem, asc bool) {
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if asc {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
