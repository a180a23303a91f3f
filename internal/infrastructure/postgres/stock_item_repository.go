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

var _ repository.StockItemRepository = (*StockItemRepo)(nil)

const stockItemColumns = `id, company_id, sku, model, serial_number, quantity, status, base_price,
	created_by, created_at, updated_at, deleted_at`

// StockItemRepo implementación de StockItemRepository sobre PostgreSQL (usable con pool o tx).
type StockItemRepo struct {
	q Querier
}

// NewStockItemRepository construye el adaptador. Pasar pool o tx (Querier).
func NewStockItemRepository(q Querier) *StockItemRepo {
	return &StockItemRepo{q: q}
}

// Create inserta el ítem. Un serial repetido en la empresa es ErrConflict.
func (r *StockItemRepo) Create(ctx context.Context, item *entity.StockItem) error {
	query := `
		INSERT INTO stock_items (` + stockItemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.q.Exec(ctx, query,
		item.ID, item.CompanyID, item.SKU, item.Model, item.SerialNumber, item.Quantity, item.Status,
		item.BasePrice, item.CreatedBy, item.CreatedAt, item.UpdatedAt, item.DeletedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.NewConflict("el serial ya existe en la empresa")
		}
		return fmt.Errorf("create stock item: %w", err)
	}
	return nil
}

// Update actualiza los campos mutables del ítem.
func (r *StockItemRepo) Update(ctx context.Context, item *entity.StockItem) error {
	query := `
		UPDATE stock_items
		SET model = $3, quantity = $4, status = $5, base_price = $6, updated_at = $7, deleted_at = $8
		WHERE company_id = $1 AND id = $2`
	tag, err := r.q.Exec(ctx, query,
		item.CompanyID, item.ID, item.Model, item.Quantity, item.Status, item.BasePrice, item.UpdatedAt, item.DeletedAt,
	)
	if err != nil {
		return fmt.Errorf("update stock item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFound("ítem no encontrado")
	}
	return nil
}

// GetByID obtiene un ítem (incluye eliminados). (nil, nil) si no existe.
func (r *StockItemRepo) GetByID(ctx context.Context, companyID, id string) (*entity.StockItem, error) {
	if !validUUID(companyID, id) {
		return nil, nil
	}
	query := `SELECT ` + stockItemColumns + ` FROM stock_items WHERE company_id = $1 AND id = $2`
	return r.getOne(ctx, "get stock item", query, companyID, id)
}

// GetForUpdate obtiene el ítem y bloquea la fila (SELECT FOR UPDATE).
func (r *StockItemRepo) GetForUpdate(ctx context.Context, companyID, id string) (*entity.StockItem, error) {
	if !validUUID(companyID, id) {
		return nil, nil
	}
	query := `SELECT ` + stockItemColumns + ` FROM stock_items WHERE company_id = $1 AND id = $2 FOR UPDATE`
	return r.getOne(ctx, "get stock item for update", query, companyID, id)
}

// GetBySerial busca por serial dentro de la empresa.
func (r *StockItemRepo) GetBySerial(ctx context.Context, companyID, serial string) (*entity.StockItem, error) {
	query := `SELECT ` + stockItemColumns + ` FROM stock_items WHERE company_id = $1 AND serial_number = $2`
	return r.getOne(ctx, "get stock item by serial", query, companyID, serial)
}

// ListAvailableBySKU ítems AVAILABLE no eliminados del SKU, más antiguos primero.
func (r *StockItemRepo) ListAvailableBySKU(ctx context.Context, companyID, sku string) ([]*entity.StockItem, error) {
	query := `
		SELECT ` + stockItemColumns + `
		FROM stock_items
		WHERE company_id = $1 AND sku = $2 AND status = $3 AND deleted_at IS NULL
		ORDER BY created_at, id`
	return r.list(ctx, "list available by sku", query, companyID, sku, entity.ItemStatusAvailable)
}

// CountBySKU cuenta los ítems no eliminados del SKU.
func (r *StockItemRepo) CountBySKU(ctx context.Context, companyID, sku string) (int, error) {
	var n int
	err := r.q.QueryRow(ctx,
		`SELECT COUNT(*) FROM stock_items WHERE company_id = $1 AND sku = $2 AND deleted_at IS NULL`,
		companyID, sku,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count by sku: %w", err)
	}
	return n, nil
}

// List lista ítems de la empresa con filtros, más recientes primero.
func (r *StockItemRepo) List(ctx context.Context, companyID string, filter repository.StockItemFilter, limit, offset int) ([]*entity.StockItem, error) {
	if !validUUID(companyID) {
		return nil, nil
	}
	query := `SELECT ` + stockItemColumns + ` FROM stock_items WHERE company_id = $1`
	args := []any{companyID}
	pos := 2
	if !filter.IncludeDeleted {
		query += " AND deleted_at IS NULL"
	}
	if filter.SKU != "" {
		query += fmt.Sprintf(" AND sku = $%d", pos)
		args = append(args, filter.SKU)
		pos++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", pos)
		args = append(args, filter.Status)
		pos++
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d", pos, pos+1)
	args = append(args, limit, offset)
	return r.list(ctx, "list stock items", query, args...)
}

func (r *StockItemRepo) getOne(ctx context.Context, op, query string, args ...any) (*entity.StockItem, error) {
	item, err := scanStockItem(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return item, nil
}

func (r *StockItemRepo) list(ctx context.Context, op, query string, args ...any) ([]*entity.StockItem, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()
	var list []*entity.StockItem
	for rows.Next() {
		item, err := scanStockItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stock item: %w", err)
		}
		list = append(list, item)
	}
	return list, rows.Err()
}

func scanStockItem(row pgxScanner) (*entity.StockItem, error) {
	var i entity.StockItem
	err := row.Scan(
		&i.ID, &i.CompanyID, &i.SKU, &i.Model, &i.SerialNumber, &i.Quantity, &i.Status, &i.BasePrice,
		&i.CreatedBy, &i.CreatedAt, &i.UpdatedAt, &i.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &i, nil
}
