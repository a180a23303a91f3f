package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics agrupa las métricas Prometheus del ledger de reservas y de ventas.
// Todos los métodos aceptan receptor nil (métricas deshabilitadas).
type Metrics struct {
	registry *prometheus.Registry

	ReservationsTotal   *prometheus.CounterVec
	SaleTransitions     *prometheus.CounterVec
	ReservationsExpired prometheus.Counter
	SweeperFailures     prometheus.Counter
	SweeperSkipped      *prometheus.CounterVec
	SweeperTickDuration prometheus.Histogram
	AuditFailures       *prometheus.CounterVec
	AuditRelayed        *prometheus.CounterVec
	AuditOutboxPending  prometheus.Gauge
}

// New crea las métricas sobre un registro propio con los colectores estándar de Go y del proceso.
func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{registry: registry}

	m.ReservationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_operations_total",
			Help:      "Operaciones sobre reservas por tipo y resultado",
		},
		[]string{"operation", "outcome"},
	)
	m.SaleTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sale_transitions_total",
			Help:      "Transiciones de estado de ventas",
		},
		[]string{"to"},
	)
	m.ReservationsExpired = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reservations_expired_total",
		Help:      "Reservas vencidas por el barrido",
	})
	m.SweeperFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sweeper_failures_total",
		Help:      "Reservas que el barrido no pudo vencer",
	})
	m.SweeperSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeper_ticks_skipped_total",
			Help:      "Ejecuciones del barrido omitidas",
		},
		[]string{"reason"},
	)
	m.SweeperTickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "sweeper_tick_duration_seconds",
		Help:      "Duración de cada ejecución del barrido",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	})
	m.AuditFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_failures_total",
			Help:      "Fallas al escribir eventos de auditoría",
		},
		[]string{"policy"},
	)
	m.AuditRelayed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_relay_events_total",
			Help:      "Eventos del outbox de auditoría entregados por el relay, por resultado",
		},
		[]string{"outcome"},
	)
	m.AuditOutboxPending = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "audit_outbox_pending",
		Help:      "Eventos de auditoría pendientes de entrega",
	})

	registry.MustRegister(
		m.ReservationsTotal,
		m.SaleTransitions,
		m.ReservationsExpired,
		m.SweeperFailures,
		m.SweeperSkipped,
		m.SweeperTickDuration,
		m.AuditFailures,
		m.AuditRelayed,
		m.AuditOutboxPending,
	)
	return m
}

// Handler expone el registro en formato Prometheus.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry devuelve el registro (tests).
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Reservation cuenta una operación sobre reservas.
func (m *Metrics) Reservation(operation string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.ReservationsTotal.WithLabelValues(operation, outcome).Inc()
}

// SaleTransition cuenta una venta que llegó al estado to.
func (m *Metrics) SaleTransition(to string) {
	if m == nil {
		return
	}
	m.SaleTransitions.WithLabelValues(to).Inc()
}

// SweepResult registra el resultado de una ejecución del barrido.
func (m *Metrics) SweepResult(expired, failed int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ReservationsExpired.Add(float64(expired))
	m.SweeperFailures.Add(float64(failed))
	m.SweeperTickDuration.Observe(elapsed.Seconds())
}

// SweepSkipped registra una ejecución omitida (reentrante o sin lock).
func (m *Metrics) SweepSkipped(reason string) {
	if m == nil {
		return
	}
	m.SweeperSkipped.WithLabelValues(reason).Inc()
}

// AuditFailure cuenta una falla del sink de auditoría.
func (m *Metrics) AuditFailure(policy string) {
	if m == nil {
		return
	}
	m.AuditFailures.WithLabelValues(policy).Inc()
}

// AuditRelay registra una ejecución del relay. pending < 0 deja el gauge sin cambios.
func (m *Metrics) AuditRelay(published, failed, pending int) {
	if m == nil {
		return
	}
	m.AuditRelayed.WithLabelValues("published").Add(float64(published))
	m.AuditRelayed.WithLabelValues("failed").Add(float64(failed))
	if pending >= 0 {
		m.AuditOutboxPending.Set(float64(pending))
	}
}
