package audit

import (
	"context"

	"github.com/jhoicas/inventario-reservas/pkg/logger"
)

// LogSink escribe los eventos de auditoría en el log estructurado (desarrollo).
type LogSink struct {
	log *logger.Logger
}

// NewLogSink construye el sink.
func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{log: log.Named("audit-sink")}
}

// Log implementa Sink.
func (s *LogSink) Log(_ context.Context, ev Event) error {
	s.log.Info().
		Str("event_id", ev.ID).
		Str("company_id", ev.CompanyID).
		Str("actor_id", ev.ActorID).
		Str("request_id", ev.RequestID).
		Str("action", ev.Action).
		Str("entity_type", ev.EntityType).
		Str("entity_id", ev.EntityID).
		Interface("before", ev.Before).
		Interface("after", ev.After).
		Interface("metadata", ev.Metadata).
		Msg("audit")
	return nil
}
