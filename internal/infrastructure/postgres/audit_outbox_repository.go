package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/inventario-reservas/internal/domain/entity"
	"github.com/jhoicas/inventario-reservas/internal/domain/repository"
)

var _ repository.AuditOutboxRepository = (*AuditOutboxRepo)(nil)

// AuditOutboxRepo outbox de auditoría sobre la tabla audit_outbox.
type AuditOutboxRepo struct {
	q Querier
}

// NewAuditOutboxRepository construye el adaptador. Pasar pool o tx (Querier).
func NewAuditOutboxRepository(q Querier) *AuditOutboxRepo {
	return &AuditOutboxRepo{q: q}
}

// Create inserta el evento; dentro de una tx queda atado a su commit.
func (r *AuditOutboxRepo) Create(ctx context.Context, ev *entity.OutboxEvent) error {
	query := `
		INSERT INTO audit_outbox (id, company_id, action, entity_type, entity_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.q.Exec(ctx, query,
		ev.ID, ev.CompanyID, ev.Action, ev.EntityType, ev.EntityID, ev.Payload, ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create audit outbox event: %w", err)
	}
	return nil
}

// FindUnpublished pendientes en orden de inserción.
func (r *AuditOutboxRepo) FindUnpublished(ctx context.Context, maxRetries, limit int) ([]*entity.OutboxEvent, error) {
	query := `
		SELECT id, company_id, action, entity_type, entity_id, payload, created_at,
			published_at, retry_count, last_error
		FROM audit_outbox
		WHERE published_at IS NULL AND ($1 <= 0 OR retry_count < $1)
		ORDER BY seq
		LIMIT $2`
	rows, err := r.q.Query(ctx, query, maxRetries, limit)
	if err != nil {
		return nil, fmt.Errorf("find unpublished audit events: %w", err)
	}
	defer rows.Close()
	var list []*entity.OutboxEvent
	for rows.Next() {
		var ev entity.OutboxEvent
		if err := rows.Scan(
			&ev.ID, &ev.CompanyID, &ev.Action, &ev.EntityType, &ev.EntityID, &ev.Payload, &ev.CreatedAt,
			&ev.PublishedAt, &ev.RetryCount, &ev.LastError,
		); err != nil {
			return nil, fmt.Errorf("scan audit outbox event: %w", err)
		}
		list = append(list, &ev)
	}
	return list, rows.Err()
}

// MarkPublished registra la entrega.
func (r *AuditOutboxRepo) MarkPublished(ctx context.Context, id string, at time.Time) error {
	if _, err := r.q.Exec(ctx, `UPDATE audit_outbox SET published_at = $2 WHERE id = $1`, id, at); err != nil {
		return fmt.Errorf("mark audit event published: %w", err)
	}
	return nil
}

// IncrementRetry suma un intento fallido y guarda el último error.
func (r *AuditOutboxRepo) IncrementRetry(ctx context.Context, id, lastError string) error {
	query := `UPDATE audit_outbox SET retry_count = retry_count + 1, last_error = $2 WHERE id = $1`
	if _, err := r.q.Exec(ctx, query, id, lastError); err != nil {
		return fmt.Errorf("increment audit event retry: %w", err)
	}
	return nil
}

// CountPending cuenta los no publicados.
func (r *AuditOutboxRepo) CountPending(ctx context.Context) (int, error) {
	var n int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM audit_outbox WHERE published_at IS NULL`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pending audit events: %w", err)
	}
	return n, nil
}
