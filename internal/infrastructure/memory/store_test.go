package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-reservas/internal/domain"
	"github.com/jhoicas/inventario-reservas/internal/domain/entity"
	"github.com/jhoicas/inventario-reservas/internal/domain/repository"
	"github.com/jhoicas/inventario-reservas/internal/infrastructure/memory"
)

const companyID = "company-1"

func newItem(id, sku string) *entity.StockItem {
	now := time.Now().UTC()
	return &entity.StockItem{
		ID:        id,
		CompanyID: companyID,
		SKU:       sku,
		Quantity:  decimal.NewFromInt(5),
		Status:    entity.ItemStatusAvailable,
		BasePrice: decimal.NewFromInt(100),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestRun_CommitPublicaCambios(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	err := store.Run(ctx, func(repos repository.Set) error {
		return repos.Items.Create(ctx, newItem("item-1", "SKU-1"))
	})
	require.NoError(t, err)

	got, err := store.Repos().Items.GetByID(ctx, companyID, "item-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "SKU-1", got.SKU)
}

func TestRun_ErrorHaceRollback(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	boom := errors.New("boom")

	err := store.Run(ctx, func(repos repository.Set) error {
		if err := repos.Items.Create(ctx, newItem("item-1", "SKU-1")); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.Repos().Items.GetByID(ctx, companyID, "item-1")
	require.NoError(t, err)
	assert.Nil(t, got, "el ítem no debe existir tras el rollback")
}

func TestRun_ContextoCancelado(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := memory.NewStore()

	called := false
	err := store.Run(ctx, func(repository.Set) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestItems_SerialUnicoPorEmpresa(t *testing.T) {
	ctx := context.Background()
	repos := memory.NewStore().Repos()
	serial := "SN-1"

	a := newItem("item-1", "SKU-1")
	a.SerialNumber = &serial
	a.Quantity = decimal.NewFromInt(1)
	require.NoError(t, repos.Items.Create(ctx, a))

	b := newItem("item-2", "SKU-1")
	b.SerialNumber = &serial
	b.Quantity = decimal.NewFromInt(1)
	err := repos.Items.Create(ctx, b)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestItems_AisladosPorEmpresa(t *testing.T) {
	ctx := context.Background()
	repos := memory.NewStore().Repos()
	require.NoError(t, repos.Items.Create(ctx, newItem("item-1", "SKU-1")))

	got, err := repos.Items.GetByID(ctx, "otra-empresa", "item-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestItems_MutarCopiaNoAfectaAlmacen(t *testing.T) {
	ctx := context.Background()
	repos := memory.NewStore().Repos()
	require.NoError(t, repos.Items.Create(ctx, newItem("item-1", "SKU-1")))

	got, err := repos.Items.GetByID(ctx, companyID, "item-1")
	require.NoError(t, err)
	got.Quantity = decimal.Zero

	again, err := repos.Items.GetByID(ctx, companyID, "item-1")
	require.NoError(t, err)
	assert.True(t, again.Quantity.Equal(decimal.NewFromInt(5)))
}

func TestReservations_UpdateStatusCondicional(t *testing.T) {
	ctx := context.Background()
	repos := memory.NewStore().Repos()
	now := time.Now().UTC()
	require.NoError(t, repos.Reservations.Create(ctx, &entity.StockReservation{
		ID: "res-1", CompanyID: companyID, StockItemID: "item-1",
		Quantity: decimal.NewFromInt(1), Status: entity.ReservationStatusActive,
		CreatedAt: now, UpdatedAt: now,
	}))

	ok, err := repos.Reservations.UpdateStatus(ctx, companyID, "res-1",
		entity.ReservationStatusActive, entity.ReservationStatusConfirmed, now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repos.Reservations.UpdateStatus(ctx, companyID, "res-1",
		entity.ReservationStatusActive, entity.ReservationStatusExpired, now)
	require.NoError(t, err)
	assert.False(t, ok, "una reserva terminal no vuelve a cambiar")
}

func TestReservations_LinkSaleEscrituraUnica(t *testing.T) {
	ctx := context.Background()
	repos := memory.NewStore().Repos()
	now := time.Now().UTC()
	require.NoError(t, repos.Reservations.Create(ctx, &entity.StockReservation{
		ID: "res-1", CompanyID: companyID, StockItemID: "item-1",
		Quantity: decimal.NewFromInt(1), Status: entity.ReservationStatusActive,
		CreatedAt: now, UpdatedAt: now,
	}))

	ok, err := repos.Reservations.LinkSale(ctx, companyID, "res-1", "sale-1", now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repos.Reservations.LinkSale(ctx, companyID, "res-1", "sale-2", now)
	require.NoError(t, err)
	assert.False(t, ok)

	linked, err := repos.Reservations.ListBySale(ctx, companyID, "sale-1")
	require.NoError(t, err)
	require.Len(t, linked, 1)
	assert.Equal(t, "res-1", linked[0].ID)
}

func TestReservations_ListDueOrdenYLimite(t *testing.T) {
	ctx := context.Background()
	repos := memory.NewStore().Repos()
	now := time.Now().UTC()
	for i, offset := range []time.Duration{-time.Minute, -time.Hour, time.Hour} {
		exp := now.Add(offset)
		require.NoError(t, repos.Reservations.Create(ctx, &entity.StockReservation{
			ID: []string{"res-a", "res-b", "res-c"}[i], CompanyID: companyID, StockItemID: "item-1",
			Quantity: decimal.NewFromInt(1), Status: entity.ReservationStatusActive,
			ExpiresAt: &exp, CreatedAt: now, UpdatedAt: now,
		}))
	}

	due, err := repos.Reservations.ListDue(ctx, "", now, 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "res-b", due[0].ID, "la más antigua primero")
	assert.Equal(t, "res-a", due[1].ID)

	due, err = repos.Reservations.ListDue(ctx, "", now, 1)
	require.NoError(t, err)
	assert.Len(t, due, 1)
}

func TestSales_NextNumberPorEmpresa(t *testing.T) {
	ctx := context.Background()
	repos := memory.NewStore().Repos()

	n1, err := repos.Sales.NextNumber(ctx, companyID)
	require.NoError(t, err)
	n2, err := repos.Sales.NextNumber(ctx, companyID)
	require.NoError(t, err)
	other, err := repos.Sales.NextNumber(ctx, "otra-empresa")
	require.NoError(t, err)

	assert.Equal(t, int64(1), n1)
	assert.Equal(t, int64(2), n2)
	assert.Equal(t, int64(1), other)
}
