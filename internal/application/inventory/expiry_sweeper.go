package inventory

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jhoicas/inventario-reservas/pkg/logger"
	"github.com/jhoicas/inventario-reservas/pkg/metrics"
)

// SweeperConfig parámetros del barrido de expiración.
type SweeperConfig struct {
	LockKey string        // clave del lock distribuido
	LockTTL time.Duration // vencimiento del lock; debe superar la duración de un barrido
}

// ExpirySweeper vence periódicamente las reservas ACTIVE cuyo plazo pasó.
// No arranca solo: el bootstrap lo entrega a un scheduler.
type ExpirySweeper struct {
	reservations *ReservationUseCase
	locker       Locker
	cfg          SweeperConfig
	running      atomic.Bool
	log          *logger.Logger
	metrics      *metrics.Metrics
	now          func() time.Time
}

// NewExpirySweeper construye el barrido. locker puede ser nil (una sola réplica).
func NewExpirySweeper(reservations *ReservationUseCase, locker Locker, cfg SweeperConfig, log *logger.Logger, m *metrics.Metrics) *ExpirySweeper {
	if cfg.LockKey == "" {
		cfg.LockKey = "locks:reservation-expiry-sweeper"
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = time.Minute
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ExpirySweeper{
		reservations: reservations,
		locker:       locker,
		cfg:          cfg,
		log:          log.Named("expiry-sweeper"),
		metrics:      m,
		now:          time.Now,
	}
}

// Tick ejecuta un barrido. ran=false si se omitió porque otro barrido sigue en curso
// (en este proceso o, con locker, en otra réplica). Los errores se registran y no se propagan:
// el siguiente tick reintenta.
func (s *ExpirySweeper) Tick(ctx context.Context) (result ExpireResult, ran bool) {
	if !s.running.CompareAndSwap(false, true) {
		s.metrics.SweepSkipped("in_flight")
		s.log.Debug().Msg("barrido anterior en curso, se omite")
		return result, false
	}
	defer s.running.Store(false)

	if s.locker != nil {
		release, ok, err := s.locker.TryLock(ctx, s.cfg.LockKey, s.cfg.LockTTL)
		if err != nil {
			s.metrics.SweepSkipped("lock_error")
			s.log.Warn().Err(err).Msg("no se pudo tomar el lock del barrido")
			return result, false
		}
		if !ok {
			s.metrics.SweepSkipped("lock_held")
			s.log.Debug().Msg("otra réplica tiene el lock del barrido")
			return result, false
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.log.Warn().Err(err).Msg("no se pudo liberar el lock del barrido")
			}
		}()
	}

	start := time.Now()
	result, err := s.reservations.ExpireDue(ctx, "", s.now())
	s.metrics.SweepResult(result.Expired, result.Failed, time.Since(start))
	if err != nil {
		s.log.Error().Err(err).Msg("barrido de reservas vencidas falló; se reintenta en el próximo tick")
		return result, true
	}
	if result.Expired > 0 || result.Failed > 0 {
		s.log.Info().
			Int("expired", result.Expired).
			Int("skipped", result.Skipped).
			Int("failed", result.Failed).
			Dur("elapsed", time.Since(start)).
			Msg("barrido de reservas vencidas")
	}
	return result, true
}

// Run adapta Tick a la firma de tarea del scheduler.
func (s *ExpirySweeper) Run(ctx context.Context) {
	s.Tick(ctx)
}
