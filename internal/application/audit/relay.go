package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jhoicas/inventario-reservas/internal/domain/repository"
	"github.com/jhoicas/inventario-reservas/pkg/logger"
	"github.com/jhoicas/inventario-reservas/pkg/metrics"
)

// RelayConfig parámetros del relay del outbox.
type RelayConfig struct {
	BatchSize  int // eventos por ejecución; <= 0 usa 100
	MaxRetries int // intentos por evento antes de dejarlo para revisión manual; <= 0 usa 10
}

// RelayResult resumen de una ejecución de Drain.
type RelayResult struct {
	Published int
	Failed    int
}

// Relay entrega al sink los eventos del outbox. La entrega es al menos una vez:
// el consumidor deduplica por Event.ID.
type Relay struct {
	outbox  repository.AuditOutboxRepository
	sink    Sink
	cfg     RelayConfig
	log     *logger.Logger
	metrics *metrics.Metrics
	running atomic.Bool
}

// NewRelay construye el relay. outbox debe operar fuera de transacción.
func NewRelay(outbox repository.AuditOutboxRepository, sink Sink, cfg RelayConfig, log *logger.Logger, m *metrics.Metrics) *Relay {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 10
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Relay{outbox: outbox, sink: sink, cfg: cfg, log: log.Named("audit-relay"), metrics: m}
}

// Drain entrega un lote de eventos pendientes. Un evento que falla suma un reintento y no
// frena a los demás.
func (r *Relay) Drain(ctx context.Context) (RelayResult, error) {
	var result RelayResult
	events, err := r.outbox.FindUnpublished(ctx, r.cfg.MaxRetries, r.cfg.BatchSize)
	if err != nil {
		return result, fmt.Errorf("find unpublished audit events: %w", err)
	}
	for _, stored := range events {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		var ev Event
		err := json.Unmarshal(stored.Payload, &ev)
		if err == nil {
			err = r.sink.Log(ctx, ev)
		}
		if err != nil {
			result.Failed++
			r.metrics.AuditFailure(PolicyFailClosed)
			r.log.Warn().Err(err).
				Str("event_id", stored.ID).
				Str("action", stored.Action).
				Int("retry_count", stored.RetryCount+1).
				Msg("no se pudo entregar el evento de auditoría")
			if err := r.outbox.IncrementRetry(ctx, stored.ID, err.Error()); err != nil {
				r.log.Error().Err(err).Str("event_id", stored.ID).Msg("no se pudo registrar el reintento")
			}
			continue
		}
		if err := r.outbox.MarkPublished(ctx, stored.ID, time.Now().UTC()); err != nil {
			r.log.Error().Err(err).Str("event_id", stored.ID).Msg("no se pudo marcar el evento como publicado")
			continue
		}
		result.Published++
	}
	pending, err := r.outbox.CountPending(ctx)
	if err != nil {
		r.log.Warn().Err(err).Msg("no se pudo contar el outbox pendiente")
		pending = -1
	}
	r.metrics.AuditRelay(result.Published, result.Failed, pending)
	return result, nil
}

// Run adapta Drain al scheduler. Si una ejecución sigue en curso la nueva se omite.
func (r *Relay) Run(ctx context.Context) {
	if !r.running.CompareAndSwap(false, true) {
		return
	}
	defer r.running.Store(false)

	result, err := r.Drain(ctx)
	if err != nil {
		r.log.Error().Err(err).Msg("relay de auditoría falló")
		return
	}
	if result.Published > 0 || result.Failed > 0 {
		r.log.Info().
			Int("published", result.Published).
			Int("failed", result.Failed).
			Msg("relay de auditoría")
	}
}
