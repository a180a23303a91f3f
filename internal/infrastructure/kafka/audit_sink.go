package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/jhoicas/inventario-reservas/internal/application/audit"
	"github.com/jhoicas/inventario-reservas/pkg/logger"
)

var _ audit.Sink = (*AuditSink)(nil)

// ErrCircuitOpen el breaker está abierto y el evento no se envió.
var ErrCircuitOpen = errors.New("circuit breaker abierto para el sink de auditoría")

// Config del productor y del breaker.
type Config struct {
	Brokers          []string
	Topic            string
	FailureThreshold uint32        // fallas consecutivas que abren el breaker
	OpenTimeout      time.Duration // tiempo abierto antes de probar de nuevo
}

// AuditSink publica eventos de auditoría en Kafka (JSON, key = id de la entidad)
// detrás de un circuit breaker para no bloquear las transacciones cuando el broker cae.
type AuditSink struct {
	producer sarama.SyncProducer
	topic    string
	cb       *gobreaker.CircuitBreaker
	log      *logger.Logger
}

// NewProducer crea el SyncProducer con confirmación de todas las réplicas.
func NewProducer(brokers []string) (sarama.SyncProducer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.Retry.Max = 3
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Compression = sarama.CompressionSnappy

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("crear productor kafka: %w", err)
	}
	return producer, nil
}

// NewAuditSink construye el sink sobre un productor existente.
func NewAuditSink(producer sarama.SyncProducer, cfg Config, log *logger.Logger) *AuditSink {
	if cfg.Topic == "" {
		cfg.Topic = "inventory.audit"
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.Named("kafka-audit")

	settings := gobreaker.Settings{
		Name:        "kafka-audit",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("cambio de estado del circuit breaker")
		},
	}
	return &AuditSink{
		producer: producer,
		topic:    cfg.Topic,
		cb:       gobreaker.NewCircuitBreaker(settings),
		log:      log,
	}
}

// Log implementa audit.Sink.
func (s *AuditSink) Log(ctx context.Context, ev audit.Event) error {
	ctx, span := otel.Tracer("kafka-audit").Start(ctx, "kafka.publish.audit",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", s.topic),
			attribute.String("audit.action", ev.Action),
		),
	)
	defer span.End()

	payload, err := json.Marshal(ev)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "marshal")
		return fmt.Errorf("serializar evento de auditoría: %w", err)
	}

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	headers := []sarama.RecordHeader{
		{Key: []byte("event_id"), Value: []byte(ev.ID)},
		{Key: []byte("action"), Value: []byte(ev.Action)},
		{Key: []byte("company_id"), Value: []byte(ev.CompanyID)},
	}
	for k, v := range carrier {
		headers = append(headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}

	msg := &sarama.ProducerMessage{
		Topic:   s.topic,
		Key:     sarama.StringEncoder(ev.EntityID),
		Value:   sarama.ByteEncoder(payload),
		Headers: headers,
	}

	_, err = s.cb.Execute(func() (interface{}, error) {
		_, _, err := s.producer.SendMessage(msg)
		return nil, err
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("%w: %w", ErrCircuitOpen, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "send")
		return fmt.Errorf("publicar auditoría en kafka: %w", err)
	}
	return nil
}

// Close cierra el productor.
func (s *AuditSink) Close() error {
	if s.producer != nil {
		return s.producer.Close()
	}
	return nil
}
