package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jhoicas/inventario-reservas/internal/domain/entity"
	"github.com/jhoicas/inventario-reservas/internal/domain/repository"
)

var _ repository.StockMovementRepository = (*StockMovementRepo)(nil)

// StockMovementRepo ledger de movimientos. Solo INSERT y SELECT.
type StockMovementRepo struct {
	q Querier
}

// NewStockMovementRepository construye el adaptador. Pasar pool o tx (Querier).
func NewStockMovementRepository(q Querier) *StockMovementRepo {
	return &StockMovementRepo{q: q}
}

// Create agrega un movimiento al ledger.
func (r *StockMovementRepo) Create(ctx context.Context, m *entity.StockMovement) error {
	var metadata []byte
	if len(m.Metadata) > 0 {
		b, err := json.Marshal(m.Metadata)
		if err != nil {
			return fmt.Errorf("marshal movement metadata: %w", err)
		}
		metadata = b
	}
	query := `
		INSERT INTO stock_movements (id, company_id, stock_item_id, type, quantity, quantity_before, quantity_after,
			reason, reservation_id, metadata, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.q.Exec(ctx, query,
		m.ID, m.CompanyID, m.StockItemID, m.Type, m.Quantity, m.QuantityBefore, m.QuantityAfter,
		m.Reason, m.ReservationID, metadata, m.CreatedBy, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create stock movement: %w", err)
	}
	return nil
}

// List movimientos de la empresa, más recientes primero (orden de inserción).
func (r *StockMovementRepo) List(ctx context.Context, companyID string, filter repository.MovementFilter, limit, offset int) ([]*entity.StockMovement, error) {
	if !validUUID(companyID) || !validFilterIDs(filter.StockItemID, filter.ReservationID) {
		return nil, nil
	}
	query := `
		SELECT id, company_id, stock_item_id, type, quantity, quantity_before, quantity_after,
			reason, reservation_id, metadata, created_by, created_at
		FROM stock_movements WHERE company_id = $1`
	args := []any{companyID}
	pos := 2
	if filter.StockItemID != "" {
		query += fmt.Sprintf(" AND stock_item_id = $%d", pos)
		args = append(args, filter.StockItemID)
		pos++
	}
	if filter.ReservationID != "" {
		query += fmt.Sprintf(" AND reservation_id = $%d", pos)
		args = append(args, filter.ReservationID)
		pos++
	}
	if filter.Type != "" {
		query += fmt.Sprintf(" AND type = $%d", pos)
		args = append(args, filter.Type)
		pos++
	}
	query += fmt.Sprintf(" ORDER BY seq DESC LIMIT $%d OFFSET $%d", pos, pos+1)
	args = append(args, limit, offset)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list stock movements: %w", err)
	}
	defer rows.Close()
	var list []*entity.StockMovement
	for rows.Next() {
		var m entity.StockMovement
		var metadata []byte
		if err := rows.Scan(
			&m.ID, &m.CompanyID, &m.StockItemID, &m.Type, &m.Quantity, &m.QuantityBefore, &m.QuantityAfter,
			&m.Reason, &m.ReservationID, &metadata, &m.CreatedBy, &m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan stock movement: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &m.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal movement metadata: %w", err)
			}
		}
		list = append(list, &m)
	}
	return list, rows.Err()
}
