package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/inventario-reservas/internal/domain"
	"github.com/jhoicas/inventario-reservas/internal/domain/entity"
	"github.com/jhoicas/inventario-reservas/internal/domain/repository"
	"github.com/jhoicas/inventario-reservas/pkg/logger"
	"github.com/jhoicas/inventario-reservas/pkg/metrics"
)

// Políticas ante una falla de la auditoría.
const (
	PolicyFailOpen   = "fail-open"   // la mutación sigue, la falla solo se registra en log
	PolicyFailClosed = "fail-closed" // el evento se escribe en el outbox de la transacción; si falla, rollback con ErrInternal
)

// Event evento de auditoría con snapshot antes/después. ID permite deduplicar entregas repetidas.
type Event struct {
	ID         string         `json:"id"`
	CompanyID  string         `json:"company_id"`
	ActorID    string         `json:"actor_id"`
	RequestID  string         `json:"request_id,omitempty"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Before     any            `json:"before,omitempty"`
	After      any            `json:"after,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Sink es el colaborador externo que almacena los eventos.
type Sink interface {
	Log(ctx context.Context, event Event) error
}

// Recorder aplica la política fail-open/fail-closed sobre un Sink.
// Ningún evento llega al sink antes del commit de la transacción que lo originó.
type Recorder struct {
	sink    Sink
	policy  string
	log     *logger.Logger
	metrics *metrics.Metrics
}

// NewRecorder construye el recorder. Una política desconocida se trata como fail-open.
func NewRecorder(sink Sink, policy string, log *logger.Logger, m *metrics.Metrics) *Recorder {
	if policy != PolicyFailClosed {
		policy = PolicyFailOpen
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Recorder{sink: sink, policy: policy, log: log.Named("audit"), metrics: m}
}

// Policy devuelve la política efectiva.
func (r *Recorder) Policy() string { return r.policy }

// Begin abre el lote de eventos de la transacción en curso. Se llama dentro del callback de Run,
// así cada reintento de la transacción arranca con un lote vacío. Receptor nil o sin sink: lote nil (no-op).
func (r *Recorder) Begin(repos repository.Set) *Batch {
	if r == nil || r.sink == nil {
		return nil
	}
	return &Batch{recorder: r, outbox: repos.Outbox}
}

// Batch acumula los eventos de una transacción.
type Batch struct {
	recorder *Recorder
	outbox   repository.AuditOutboxRepository
	events   []Event
}

// Record agrega un evento al lote. Con fail-closed lo escribe además en el outbox de la transacción:
// si esa escritura falla devuelve ErrInternal y el caller hace rollback.
func (b *Batch) Record(ctx context.Context, actor domain.Actor, action, entityType, entityID string, before, after any, metadata map[string]any) error {
	if b == nil {
		return nil
	}
	ev := Event{
		ID:         uuid.New().String(),
		CompanyID:  actor.CompanyID,
		ActorID:    actor.UserID,
		RequestID:  actor.RequestID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Before:     before,
		After:      after,
		Metadata:   metadata,
		OccurredAt: time.Now().UTC(),
	}
	if b.recorder.policy != PolicyFailClosed {
		b.events = append(b.events, ev)
		return nil
	}
	if err := b.stage(ctx, ev); err != nil {
		b.recorder.failed(err, ev)
		return domain.NewInternal(fmt.Sprintf("no se pudo registrar la auditoría de %s", action), err)
	}
	return nil
}

func (b *Batch) stage(ctx context.Context, ev Event) error {
	if b.outbox == nil {
		return fmt.Errorf("outbox de auditoría no configurado")
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	return b.outbox.Create(ctx, &entity.OutboxEvent{
		ID:         ev.ID,
		CompanyID:  ev.CompanyID,
		Action:     ev.Action,
		EntityType: ev.EntityType,
		EntityID:   ev.EntityID,
		Payload:    payload,
		CreatedAt:  ev.OccurredAt,
	})
}

// Publish entrega al sink los eventos fail-open del lote. Se llama solo después de un commit exitoso;
// las fallas se registran en log. Los eventos fail-closed los entrega el Relay desde el outbox.
func (b *Batch) Publish(ctx context.Context) {
	if b == nil {
		return
	}
	for _, ev := range b.events {
		if err := b.recorder.sink.Log(ctx, ev); err != nil {
			b.recorder.failed(err, ev)
		}
	}
	b.events = nil
}

// Len cantidad de eventos pendientes de Publish.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.events)
}

func (r *Recorder) failed(err error, ev Event) {
	r.metrics.AuditFailure(r.policy)
	r.log.Warn().Err(err).
		Str("policy", r.policy).
		Str("event_id", ev.ID).
		Str("action", ev.Action).
		Str("entity_type", ev.EntityType).
		Str("entity_id", ev.EntityID).
		Str("company_id", ev.CompanyID).
		Msg("falla al registrar auditoría")
}

// TxRunner ejecuta fn dentro de una transacción; puede reintentarla completa.
type TxRunner interface {
	Run(ctx context.Context, fn func(repos repository.Set) error) error
}

// InTx ejecuta fn en una transacción con un lote de auditoría nuevo por intento y publica
// los eventos solo si hubo commit. Un rollback o un reintento descartan los eventos del intento.
func (r *Recorder) InTx(ctx context.Context, runner TxRunner, fn func(repos repository.Set, events *Batch) error) error {
	var events *Batch
	err := runner.Run(ctx, func(repos repository.Set) error {
		events = r.Begin(repos)
		return fn(repos, events)
	})
	if err != nil {
		return err
	}
	events.Publish(ctx)
	return nil
}
