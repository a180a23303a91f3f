package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-reservas/internal/domain"
	"github.com/jhoicas/inventario-reservas/internal/domain/entity"
	"github.com/jhoicas/inventario-reservas/internal/domain/repository"
)

var _ repository.ReservationRepository = (*ReservationRepository)(nil)

// ReservationRepository implementa repository.ReservationRepository en memoria.
type ReservationRepository struct {
	base
}

// Create inserta la reserva.
func (r *ReservationRepository) Create(_ context.Context, res *entity.StockReservation) error {
	return r.with(func(st *state) error {
		if _, ok := st.reservations[res.ID]; ok {
			return domain.NewConflict(fmt.Sprintf("la reserva %s ya existe", res.ID))
		}
		st.reservations[res.ID] = copyReservation(res)
		return nil
	})
}

// GetByID obtiene la reserva de la empresa o (nil, nil).
func (r *ReservationRepository) GetByID(_ context.Context, companyID, id string) (*entity.StockReservation, error) {
	var out *entity.StockReservation
	err := r.with(func(st *state) error {
		if v, ok := st.reservations[id]; ok && v.CompanyID == companyID {
			out = copyReservation(v)
		}
		return nil
	})
	return out, err
}

// GetForUpdate equivale a GetByID dentro de la transacción serializada.
func (r *ReservationRepository) GetForUpdate(ctx context.Context, companyID, id string) (*entity.StockReservation, error) {
	return r.GetByID(ctx, companyID, id)
}

// UpdateStatus cambia el estado solo si el actual es from.
func (r *ReservationRepository) UpdateStatus(_ context.Context, companyID, id, from, to string, at time.Time) (bool, error) {
	updated := false
	err := r.with(func(st *state) error {
		v, ok := st.reservations[id]
		if !ok || v.CompanyID != companyID || v.Status != from {
			return nil
		}
		c := copyReservation(v)
		c.Status = to
		c.UpdatedAt = at
		st.reservations[id] = c
		updated = true
		return nil
	})
	return updated, err
}

// LinkSale asigna la venta solo si la reserva no tiene una.
func (r *ReservationRepository) LinkSale(_ context.Context, companyID, id, saleID string, at time.Time) (bool, error) {
	linked := false
	err := r.with(func(st *state) error {
		v, ok := st.reservations[id]
		if !ok || v.CompanyID != companyID || v.IsLinked() {
			return nil
		}
		c := copyReservation(v)
		c.SaleID = &saleID
		c.UpdatedAt = at
		st.reservations[id] = c
		linked = true
		return nil
	})
	return linked, err
}

// SumActiveByItem suma la cantidad retenida por reservas ACTIVE del ítem.
func (r *ReservationRepository) SumActiveByItem(_ context.Context, companyID, itemID string) (decimal.Decimal, error) {
	sum := decimal.Zero
	err := r.with(func(st *state) error {
		for _, v := range st.reservations {
			if v.CompanyID == companyID && v.StockItemID == itemID && v.IsActive() {
				sum = sum.Add(v.Quantity)
			}
		}
		return nil
	})
	return sum, err
}

// CountActiveByItem cuenta las reservas ACTIVE del ítem.
func (r *ReservationRepository) CountActiveByItem(_ context.Context, companyID, itemID string) (int, error) {
	n := 0
	err := r.with(func(st *state) error {
		for _, v := range st.reservations {
			if v.CompanyID == companyID && v.StockItemID == itemID && v.IsActive() {
				n++
			}
		}
		return nil
	})
	return n, err
}

// ListBySale devuelve las reservas vinculadas a la venta, ordenadas por id.
func (r *ReservationRepository) ListBySale(_ context.Context, companyID, saleID string) ([]*entity.StockReservation, error) {
	var out []*entity.StockReservation
	err := r.with(func(st *state) error {
		for _, v := range st.reservations {
			if v.CompanyID == companyID && v.SaleID != nil && *v.SaleID == saleID {
				out = append(out, copyReservation(v))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

// ListDue devuelve reservas ACTIVE vencidas, las más antiguas primero.
func (r *ReservationRepository) ListDue(_ context.Context, companyID string, now time.Time, limit int) ([]*entity.StockReservation, error) {
	var out []*entity.StockReservation
	err := r.with(func(st *state) error {
		for _, v := range st.reservations {
			if companyID != "" && v.CompanyID != companyID {
				continue
			}
			if v.IsDue(now) {
				out = append(out, copyReservation(v))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ExpiresAt.Equal(*out[j].ExpiresAt) {
			return out[i].ExpiresAt.Before(*out[j].ExpiresAt)
		}
		return out[i].ID < out[j].ID
	})
	return page(out, limit, 0), err
}

// List lista reservas de la empresa, más recientes primero.
func (r *ReservationRepository) List(_ context.Context, companyID string, filter repository.ReservationFilter, limit, offset int) ([]*entity.StockReservation, error) {
	var out []*entity.StockReservation
	err := r.with(func(st *state) error {
		for _, v := range st.reservations {
			if v.CompanyID != companyID {
				continue
			}
			if filter.StockItemID != "" && v.StockItemID != filter.StockItemID {
				continue
			}
			if filter.SaleID != "" && (v.SaleID == nil || *v.SaleID != filter.SaleID) {
				continue
			}
			if filter.Status != "" && v.Status != filter.Status {
				continue
			}
			out = append(out, copyReservation(v))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return page(out, limit, offset), err
}
