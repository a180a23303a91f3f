package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/jhoicas/inventario-reservas/internal/application/inventory"
	"github.com/jhoicas/inventario-reservas/internal/application/sales"
	"github.com/jhoicas/inventario-reservas/internal/domain/repository"
	"github.com/jhoicas/inventario-reservas/pkg/logger"
)

// Ensure TxRunner implements inventory.TxRunner and sales.TxRunner.
var _ inventory.TxRunner = (*TxRunner)(nil)
var _ sales.TxRunner = (*TxRunner)(nil)

var tracer = otel.Tracer("inventario-reservas/postgres")

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL (READ COMMITTED + SELECT FOR UPDATE).
// Ante 40001 o 40P01 hace rollback y vuelve a ejecutar fn completa.
type TxRunner struct {
	pool        *pgxpool.Pool
	maxAttempts uint64
	log         *logger.Logger
}

// NewTxRunner construye el runner con el pool. maxAttempts <= 0 usa 3.
func NewTxRunner(pool *pgxpool.Pool, maxAttempts int, log *logger.Logger) *TxRunner {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if log == nil {
		log = logger.Nop()
	}
	return &TxRunner{pool: pool, maxAttempts: uint64(maxAttempts), log: log.Named("tx")}
}

// Repos devuelve repositorios sobre el pool, para lecturas fuera de transacción.
func (r *TxRunner) Repos() repository.Set {
	return newSet(r.pool)
}

// Run inicia una transacción, ejecuta fn con repos atados a la tx y hace Commit o Rollback.
func (r *TxRunner) Run(ctx context.Context, fn func(repos repository.Set) error) error {
	ctx, span := tracer.Start(ctx, "tx.run")
	defer span.End()

	attempt := 0
	op := func() error {
		attempt++
		err := r.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if isRetryable(err) {
			r.log.Warn().Err(err).Int("attempt", attempt).Msg("conflicto de concurrencia, se reintenta la transacción")
			return err
		}
		return backoff.Permanent(err)
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 20 * time.Millisecond
	eb.MaxInterval = 200 * time.Millisecond
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, r.maxAttempts-1), ctx)

	err := backoff.Retry(op, policy)
	span.SetAttributes(attribute.Int("tx.attempts", attempt))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (r *TxRunner) runOnce(ctx context.Context, fn func(repos repository.Set) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if err := fn(newSet(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func newSet(q Querier) repository.Set {
	return repository.Set{
		Items:        NewStockItemRepository(q),
		Reservations: NewReservationRepository(q),
		Movements:    NewStockMovementRepository(q),
		Sales:        NewSaleRepository(q),
		Outbox:       NewAuditOutboxRepository(q),
	}
}
