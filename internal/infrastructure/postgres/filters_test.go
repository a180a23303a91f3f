package postgres_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-reservas/internal/domain/repository"
	"github.com/jhoicas/inventario-reservas/internal/infrastructure/postgres"
)

var errNoDB = errors.New("no debería consultar la base")

// noDB falla el test si un repositorio llega a emitir SQL.
type noDB struct{ t *testing.T }

func (q noDB) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	q.t.Error("Exec inesperado")
	return pgconn.CommandTag{}, errNoDB
}

func (q noDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	q.t.Error("Query inesperado")
	return nil, errNoDB
}

func (q noDB) QueryRow(context.Context, string, ...any) pgx.Row {
	q.t.Error("QueryRow inesperado")
	return errRow{}
}

type errRow struct{}

func (errRow) Scan(...any) error { return errNoDB }

func TestList_IDNoUUIDNoLlegaALaBase(t *testing.T) {
	ctx := context.Background()
	q := noDB{t: t}
	const company = "00000000-0000-0000-0000-000000000002"

	reservations, err := postgres.NewReservationRepository(q).List(ctx, company,
		repository.ReservationFilter{StockItemID: "no-es-uuid"}, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, reservations)

	reservations, err = postgres.NewReservationRepository(q).List(ctx, company,
		repository.ReservationFilter{SaleID: "123"}, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, reservations)

	bySale, err := postgres.NewReservationRepository(q).ListBySale(ctx, company, "venta-1")
	require.NoError(t, err)
	assert.Empty(t, bySale)

	movements, err := postgres.NewStockMovementRepository(q).List(ctx, company,
		repository.MovementFilter{ReservationID: "r-1"}, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, movements)

	items, err := postgres.NewStockItemRepository(q).List(ctx, "empresa", repository.StockItemFilter{}, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, items)

	sales, err := postgres.NewSaleRepository(q).List(ctx, "empresa", repository.SaleFilter{}, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, sales)
}
