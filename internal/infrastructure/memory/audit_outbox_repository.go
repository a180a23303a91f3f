package memory

import (
	"context"
	"time"

	"github.com/jhoicas/inventario-reservas/internal/domain/entity"
	"github.com/jhoicas/inventario-reservas/internal/domain/repository"
)

var _ repository.AuditOutboxRepository = (*AuditOutboxRepository)(nil)

// AuditOutboxRepository outbox de auditoría en memoria. Los eventos se reemplazan, nunca se mutan
// en sitio, para que la copia de una transacción no altere el estado vigente.
type AuditOutboxRepository struct {
	base
}

// Create agrega el evento al final del outbox.
func (r *AuditOutboxRepository) Create(_ context.Context, ev *entity.OutboxEvent) error {
	return r.with(func(st *state) error {
		c := copyOutbox(ev)
		st.outbox = append(st.outbox, c)
		return nil
	})
}

// FindUnpublished devuelve los pendientes en orden de inserción.
func (r *AuditOutboxRepository) FindUnpublished(_ context.Context, maxRetries, limit int) ([]*entity.OutboxEvent, error) {
	var out []*entity.OutboxEvent
	err := r.with(func(st *state) error {
		for _, ev := range st.outbox {
			if !ev.ShouldRetry(maxRetries) {
				continue
			}
			out = append(out, copyOutbox(ev))
			if limit > 0 && len(out) == limit {
				break
			}
		}
		return nil
	})
	return out, err
}

// MarkPublished registra la entrega.
func (r *AuditOutboxRepository) MarkPublished(_ context.Context, id string, at time.Time) error {
	return r.update(id, func(ev *entity.OutboxEvent) {
		t := at
		ev.PublishedAt = &t
	})
}

// IncrementRetry suma un intento fallido.
func (r *AuditOutboxRepository) IncrementRetry(_ context.Context, id, lastError string) error {
	return r.update(id, func(ev *entity.OutboxEvent) {
		ev.RetryCount++
		ev.LastError = lastError
	})
}

// CountPending cuenta los no publicados.
func (r *AuditOutboxRepository) CountPending(_ context.Context) (int, error) {
	n := 0
	err := r.with(func(st *state) error {
		for _, ev := range st.outbox {
			if !ev.IsPublished() {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *AuditOutboxRepository) update(id string, fn func(ev *entity.OutboxEvent)) error {
	return r.with(func(st *state) error {
		for i, ev := range st.outbox {
			if ev.ID == id {
				c := copyOutbox(ev)
				fn(c)
				st.outbox[i] = c
				return nil
			}
		}
		return nil
	})
}

func copyOutbox(v *entity.OutboxEvent) *entity.OutboxEvent {
	c := *v
	c.Payload = append([]byte(nil), v.Payload...)
	return &c
}
