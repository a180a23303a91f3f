package repository

import (
	"context"
	"time"

	"github.com/jhoicas/inventario-reservas/internal/domain/entity"
)

// AuditOutboxRepository persiste los eventos de auditoría pendientes de entrega.
type AuditOutboxRepository interface {
	Create(ctx context.Context, event *entity.OutboxEvent) error
	// FindUnpublished devuelve en orden de inserción los no publicados con RetryCount < maxRetries
	// (maxRetries <= 0 = sin tope).
	FindUnpublished(ctx context.Context, maxRetries, limit int) ([]*entity.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, at time.Time) error
	IncrementRetry(ctx context.Context, id, lastError string) error
	CountPending(ctx context.Context) (int, error)
}
