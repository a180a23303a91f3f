package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-reservas/internal/domain/entity"
	"github.com/jhoicas/inventario-reservas/internal/domain/repository"
)

var _ repository.ReservationRepository = (*ReservationRepo)(nil)

const reservationColumns = `id, company_id, stock_item_id, quantity, status, expires_at, sale_id,
	created_by, created_at, updated_at`

// ReservationRepo implementación de ReservationRepository sobre PostgreSQL.
type ReservationRepo struct {
	q Querier
}

// NewReservationRepository construye el adaptador. Pasar pool o tx (Querier).
func NewReservationRepository(q Querier) *ReservationRepo {
	return &ReservationRepo{q: q}
}

// Create inserta la reserva.
func (r *ReservationRepo) Create(ctx context.Context, res *entity.StockReservation) error {
	query := `
		INSERT INTO stock_reservations (` + reservationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.q.Exec(ctx, query,
		res.ID, res.CompanyID, res.StockItemID, res.Quantity, res.Status, res.ExpiresAt, res.SaleID,
		res.CreatedBy, res.CreatedAt, res.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create reservation: %w", err)
	}
	return nil
}

// GetByID obtiene la reserva o (nil, nil).
func (r *ReservationRepo) GetByID(ctx context.Context, companyID, id string) (*entity.StockReservation, error) {
	if !validUUID(companyID, id) {
		return nil, nil
	}
	query := `SELECT ` + reservationColumns + ` FROM stock_reservations WHERE company_id = $1 AND id = $2`
	return r.getOne(ctx, "get reservation", query, companyID, id)
}

// GetForUpdate obtiene la reserva y bloquea la fila.
func (r *ReservationRepo) GetForUpdate(ctx context.Context, companyID, id string) (*entity.StockReservation, error) {
	if !validUUID(companyID, id) {
		return nil, nil
	}
	query := `SELECT ` + reservationColumns + ` FROM stock_reservations WHERE company_id = $1 AND id = $2 FOR UPDATE`
	return r.getOne(ctx, "get reservation for update", query, companyID, id)
}

// UpdateStatus cambia el estado solo si el actual es from.
func (r *ReservationRepo) UpdateStatus(ctx context.Context, companyID, id, from, to string, at time.Time) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE stock_reservations SET status = $4, updated_at = $5
		WHERE company_id = $1 AND id = $2 AND status = $3`,
		companyID, id, from, to, at,
	)
	if err != nil {
		return false, fmt.Errorf("update reservation status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// LinkSale asigna la venta solo si sale_id sigue NULL.
func (r *ReservationRepo) LinkSale(ctx context.Context, companyID, id, saleID string, at time.Time) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE stock_reservations SET sale_id = $3, updated_at = $4
		WHERE company_id = $1 AND id = $2 AND sale_id IS NULL`,
		companyID, id, saleID, at,
	)
	if err != nil {
		return false, fmt.Errorf("link reservation to sale: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// SumActiveByItem suma la cantidad retenida por reservas ACTIVE del ítem.
func (r *ReservationRepo) SumActiveByItem(ctx context.Context, companyID, itemID string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.q.QueryRow(ctx, `
		SELECT COALESCE(SUM(quantity), 0) FROM stock_reservations
		WHERE company_id = $1 AND stock_item_id = $2 AND status = $3`,
		companyID, itemID, entity.ReservationStatusActive,
	).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum active reservations: %w", err)
	}
	return sum, nil
}

// CountActiveByItem cuenta las reservas ACTIVE del ítem.
func (r *ReservationRepo) CountActiveByItem(ctx context.Context, companyID, itemID string) (int, error) {
	var n int
	err := r.q.QueryRow(ctx, `
		SELECT COUNT(*) FROM stock_reservations
		WHERE company_id = $1 AND stock_item_id = $2 AND status = $3`,
		companyID, itemID, entity.ReservationStatusActive,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active reservations: %w", err)
	}
	return n, nil
}

// ListBySale reservas vinculadas a la venta, ordenadas por id.
func (r *ReservationRepo) ListBySale(ctx context.Context, companyID, saleID string) ([]*entity.StockReservation, error) {
	if !validUUID(companyID, saleID) {
		return nil, nil
	}
	query := `SELECT ` + reservationColumns + `
		FROM stock_reservations WHERE company_id = $1 AND sale_id = $2 ORDER BY id`
	return r.list(ctx, "list reservations by sale", query, companyID, saleID)
}

// ListDue reservas ACTIVE vencidas, las más antiguas primero. companyID vacío = todas las empresas.
func (r *ReservationRepo) ListDue(ctx context.Context, companyID string, now time.Time, limit int) ([]*entity.StockReservation, error) {
	query := `SELECT ` + reservationColumns + `
		FROM stock_reservations
		WHERE status = $1 AND expires_at IS NOT NULL AND expires_at < $2`
	args := []any{entity.ReservationStatusActive, now}
	if companyID != "" {
		query += " AND company_id = $3"
		args = append(args, companyID)
	}
	query += fmt.Sprintf(" ORDER BY expires_at, id LIMIT %d", limit)
	return r.list(ctx, "list due reservations", query, args...)
}

// List lista reservas de la empresa con filtros, más recientes primero.
// Un id de filtro que no es UUID no puede coincidir con ninguna fila: lista vacía.
func (r *ReservationRepo) List(ctx context.Context, companyID string, filter repository.ReservationFilter, limit, offset int) ([]*entity.StockReservation, error) {
	if !validUUID(companyID) || !validFilterIDs(filter.StockItemID, filter.SaleID) {
		return nil, nil
	}
	query := `SELECT ` + reservationColumns + ` FROM stock_reservations WHERE company_id = $1`
	args := []any{companyID}
	pos := 2
	if filter.StockItemID != "" {
		query += fmt.Sprintf(" AND stock_item_id = $%d", pos)
		args = append(args, filter.StockItemID)
		pos++
	}
	if filter.SaleID != "" {
		query += fmt.Sprintf(" AND sale_id = $%d", pos)
		args = append(args, filter.SaleID)
		pos++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", pos)
		args = append(args, filter.Status)
		pos++
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d", pos, pos+1)
	args = append(args, limit, offset)
	return r.list(ctx, "list reservations", query, args...)
}

func (r *ReservationRepo) getOne(ctx context.Context, op, query string, args ...any) (*entity.StockReservation, error) {
	res, err := scanReservation(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

func (r *ReservationRepo) list(ctx context.Context, op, query string, args ...any) ([]*entity.StockReservation, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()
	var list []*entity.StockReservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		list = append(list, res)
	}
	return list, rows.Err()
}

func scanReservation(row pgxScanner) (*entity.StockReservation, error) {
	var res entity.StockReservation
	err := row.Scan(
		&res.ID, &res.CompanyID, &res.StockItemID, &res.Quantity, &res.Status, &res.ExpiresAt, &res.SaleID,
		&res.CreatedBy, &res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &res, nil
}
