package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jhoicas/inventario-reservas/internal/application/audit"
	"github.com/jhoicas/inventario-reservas/internal/application/inventory"
	"github.com/jhoicas/inventario-reservas/internal/application/sales"
	"github.com/jhoicas/inventario-reservas/internal/domain/repository"
	"github.com/jhoicas/inventario-reservas/internal/infrastructure/kafka"
	"github.com/jhoicas/inventario-reservas/internal/infrastructure/memory"
	"github.com/jhoicas/inventario-reservas/internal/infrastructure/postgres"
	infraredis "github.com/jhoicas/inventario-reservas/internal/infrastructure/redis"
	httpRouter "github.com/jhoicas/inventario-reservas/internal/interfaces/http"
	"github.com/jhoicas/inventario-reservas/pkg/config"
	"github.com/jhoicas/inventario-reservas/pkg/logger"
	"github.com/jhoicas/inventario-reservas/pkg/metrics"
	"github.com/jhoicas/inventario-reservas/pkg/scheduler"
	"github.com/jhoicas/inventario-reservas/pkg/tracing"
)

// txStore es lo que ofrecen ambos backends: transacciones y repositorios de lectura.
type txStore interface {
	Run(ctx context.Context, fn func(repos repository.Set) error) error
	Repos() repository.Set
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.Log.Level,
		Service: cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("db_driver", cfg.DB.Driver).
		Msg("iniciando aplicación")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(tracing.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    cfg.App.Name,
		JaegerEndpoint: cfg.Tracing.JaegerEndpoint,
		SampleRatio:    cfg.Tracing.SampleRatio,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("inicializar tracing")
	}

	m := metrics.New("inventario")

	var store txStore
	switch cfg.DB.Driver {
	case "memory":
		log.Warn().Msg("usando almacén en memoria: los datos no sobreviven al reinicio")
		store = memory.NewStore()
	default:
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a PostgreSQL")
		}
		defer pool.Close()
		if err := postgres.Migrate(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("migraciones")
		}
		store = postgres.NewTxRunner(pool, cfg.DB.TxAttempts, log)
	}

	var sink audit.Sink = audit.NewLogSink(log)
	if cfg.Audit.Sink == "kafka" {
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers)
		if err != nil {
			log.Fatal().Err(err).Strs("brokers", cfg.Kafka.Brokers).Msg("productor Kafka")
		}
		kafkaSink := kafka.NewAuditSink(producer, kafka.Config{
			Brokers:          cfg.Kafka.Brokers,
			Topic:            cfg.Kafka.Topic,
			FailureThreshold: uint32(cfg.Kafka.FailureThreshold),
			OpenTimeout:      cfg.Kafka.OpenTimeout,
		}, log)
		defer func() {
			if err := kafkaSink.Close(); err != nil {
				log.Error().Err(err).Msg("cerrar productor Kafka")
			}
		}()
		sink = kafkaSink
	}
	recorder := audit.NewRecorder(sink, cfg.Audit.Policy, log, m)

	var relay *audit.Relay
	var relayHandle *scheduler.Handle
	if recorder.Policy() == audit.PolicyFailClosed {
		relay = audit.NewRelay(store.Repos().Outbox, sink, audit.RelayConfig{
			BatchSize:  cfg.Audit.RelayBatch,
			MaxRetries: cfg.Audit.MaxRetries,
		}, log, m)
		relayHandle = scheduler.Every(ctx, "audit-outbox", cfg.Audit.RelayInterval, relay.Run, log)
	}

	ledgerUC := inventory.NewStockLedgerUseCase(store, store.Repos(), recorder)
	reservationUC := inventory.NewReservationUseCase(store, store.Repos(), recorder, m, log, inventory.ReservationConfig{
		DefaultTTL:  cfg.Reservations.DefaultTTL,
		ExpireBatch: cfg.Reservations.ExpireBatch,
	})
	saleUC := sales.NewSaleUseCase(store, store.Repos(), reservationUC, sales.BasePriceSource{}, recorder, m, sales.Config{
		NumberPrefix:    cfg.Sales.NumberPrefix,
		AllowCancelPaid: cfg.Sales.AllowCancelPaid,
	})

	var sweepHandle *scheduler.Handle
	if cfg.Sweeper.Enabled {
		var locker inventory.Locker
		if cfg.Redis.Addr != "" {
			client, err := infraredis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
			if err != nil {
				log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("conexión a Redis")
			}
			defer client.Close()
			locker = infraredis.NewLocker(client)
		}
		sweeper := inventory.NewExpirySweeper(reservationUC, locker, inventory.SweeperConfig{
			LockKey: cfg.Sweeper.LockKey,
			LockTTL: cfg.Sweeper.LockTTL,
		}, log, m)
		sweepHandle = scheduler.Every(ctx, "reservation-expiry", cfg.Sweeper.Interval, sweeper.Run, log)
	}

	app := httpRouter.NewApp(httpRouter.RouterDeps{
		AppName:      cfg.App.Name,
		Ledger:       ledgerUC,
		Reservations: reservationUC,
		Sales:        saleUC,
		Metrics:      m,
		Log:          log,
		JWTSecret:    cfg.JWT.Secret,
		JWTIssuer:    cfg.JWT.Issuer,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}
	if sweepHandle != nil {
		sweepHandle.Stop()
	}
	if relayHandle != nil {
		relayHandle.Stop()
		// último vaciado antes de cerrar el productor Kafka
		if result, err := relay.Drain(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("vaciado final del outbox de auditoría")
		} else {
			log.Info().Int("published", result.Published).Int("failed", result.Failed).Msg("outbox de auditoría vaciado")
		}
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado de tracing")
	}

	log.Info().Msg("aplicación detenida")
}
