package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/inventario-reservas/internal/domain"
	"github.com/jhoicas/inventario-reservas/internal/domain/entity"
	"github.com/jhoicas/inventario-reservas/internal/domain/repository"
)

var _ repository.SaleRepository = (*SaleRepo)(nil)

const saleColumns = `s.id, s.company_id, s.number, s.status, s.customer_name, s.customer_email, s.customer_phone,
	s.notes, s.subtotal, s.discount, s.total, s.created_by, s.assigned_to,
	s.paid_at, s.shipped_at, s.delivered_at, s.cancelled_at, s.created_at, s.updated_at, s.deleted_at,
	ARRAY(SELECT r.id::text FROM stock_reservations r WHERE r.sale_id = s.id ORDER BY r.id)`

// SaleRepo implementación de SaleRepository sobre PostgreSQL.
type SaleRepo struct {
	q Querier
}

// NewSaleRepository construye el adaptador. Pasar pool o tx (Querier).
func NewSaleRepository(q Querier) *SaleRepo {
	return &SaleRepo{q: q}
}

// Create inserta la venta. Un número repetido en la empresa es ErrConflict.
func (r *SaleRepo) Create(ctx context.Context, s *entity.Sale) error {
	query := `
		INSERT INTO sales (id, company_id, number, status, customer_name, customer_email, customer_phone,
			notes, subtotal, discount, total, created_by, assigned_to,
			paid_at, shipped_at, delivered_at, cancelled_at, created_at, updated_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`
	_, err := r.q.Exec(ctx, query,
		s.ID, s.CompanyID, s.Number, s.Status, s.Customer.Name, s.Customer.Email, s.Customer.Phone,
		s.Notes, s.Subtotal, s.Discount, s.Total, s.CreatedBy, s.AssignedTo,
		s.PaidAt, s.ShippedAt, s.DeliveredAt, s.CancelledAt, s.CreatedAt, s.UpdatedAt, s.DeletedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.NewConflict("el número de venta ya existe")
		}
		return fmt.Errorf("create sale: %w", err)
	}
	return nil
}

// Update actualiza la venta. Las reservas vinculadas se gestionan con ReservationRepository.LinkSale.
func (r *SaleRepo) Update(ctx context.Context, s *entity.Sale) error {
	query := `
		UPDATE sales SET status = $3, customer_name = $4, customer_email = $5, customer_phone = $6,
			notes = $7, subtotal = $8, discount = $9, total = $10, assigned_to = $11,
			paid_at = $12, shipped_at = $13, delivered_at = $14, cancelled_at = $15,
			updated_at = $16, deleted_at = $17
		WHERE company_id = $1 AND id = $2`
	tag, err := r.q.Exec(ctx, query,
		s.CompanyID, s.ID, s.Status, s.Customer.Name, s.Customer.Email, s.Customer.Phone,
		s.Notes, s.Subtotal, s.Discount, s.Total, s.AssignedTo,
		s.PaidAt, s.ShippedAt, s.DeliveredAt, s.CancelledAt, s.UpdatedAt, s.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("update sale: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFound("venta no encontrada")
	}
	return nil
}

// GetByID obtiene la venta con sus ReservationIDs. (nil, nil) si no existe.
func (r *SaleRepo) GetByID(ctx context.Context, companyID, id string) (*entity.Sale, error) {
	if !validUUID(companyID, id) {
		return nil, nil
	}
	query := `SELECT ` + saleColumns + ` FROM sales s WHERE s.company_id = $1 AND s.id = $2`
	return r.getOne(ctx, "get sale", query, companyID, id)
}

// GetForUpdate obtiene la venta y bloquea su fila.
func (r *SaleRepo) GetForUpdate(ctx context.Context, companyID, id string) (*entity.Sale, error) {
	if !validUUID(companyID, id) {
		return nil, nil
	}
	query := `SELECT ` + saleColumns + ` FROM sales s WHERE s.company_id = $1 AND s.id = $2 FOR UPDATE OF s`
	return r.getOne(ctx, "get sale for update", query, companyID, id)
}

// NextNumber incrementa el consecutivo de la empresa; la fila de sale_sequences serializa a los concurrentes.
func (r *SaleRepo) NextNumber(ctx context.Context, companyID string) (int64, error) {
	var n int64
	err := r.q.QueryRow(ctx, `
		INSERT INTO sale_sequences (company_id, last_value) VALUES ($1, 1)
		ON CONFLICT (company_id) DO UPDATE SET last_value = sale_sequences.last_value + 1
		RETURNING last_value`,
		companyID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("next sale number: %w", err)
	}
	return n, nil
}

// List ventas de la empresa, más recientes primero.
func (r *SaleRepo) List(ctx context.Context, companyID string, filter repository.SaleFilter, limit, offset int) ([]*entity.Sale, error) {
	if !validUUID(companyID) {
		return nil, nil
	}
	query := `SELECT ` + saleColumns + ` FROM sales s WHERE s.company_id = $1`
	args := []any{companyID}
	pos := 2
	if !filter.IncludeDeleted {
		query += " AND s.deleted_at IS NULL"
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND s.status = $%d", pos)
		args = append(args, filter.Status)
		pos++
	}
	query += fmt.Sprintf(" ORDER BY s.created_at DESC, s.id LIMIT $%d OFFSET $%d", pos, pos+1)
	args = append(args, limit, offset)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	defer rows.Close()
	var list []*entity.Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

func (r *SaleRepo) getOne(ctx context.Context, op, query string, args ...any) (*entity.Sale, error) {
	s, err := scanSale(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s, nil
}

func scanSale(row pgxScanner) (*entity.Sale, error) {
	var s entity.Sale
	err := row.Scan(
		&s.ID, &s.CompanyID, &s.Number, &s.Status, &s.Customer.Name, &s.Customer.Email, &s.Customer.Phone,
		&s.Notes, &s.Subtotal, &s.Discount, &s.Total, &s.CreatedBy, &s.AssignedTo,
		&s.PaidAt, &s.ShippedAt, &s.DeliveredAt, &s.CancelledAt, &s.CreatedAt, &s.UpdatedAt, &s.DeletedAt,
		&s.ReservationIDs,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
