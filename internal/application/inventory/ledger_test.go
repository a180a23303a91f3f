package inventory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-reservas/internal/application/audit"
	"github.com/jhoicas/inventario-reservas/internal/application/dto"
	"github.com/jhoicas/inventario-reservas/internal/domain"
	"github.com/jhoicas/inventario-reservas/internal/domain/entity"
	"github.com/jhoicas/inventario-reservas/internal/domain/repository"
)

func TestCreateItem_RegistraMovimientoIN(t *testing.T) {
	f := newFixture(t, audit.PolicyFailOpen)
	item := f.createItem(t, "TV-55", 10, "")

	assert.Equal(t, entity.ItemStatusAvailable, item.Status)
	movs := f.movements(t, item.ID)
	require.Len(t, movs, 1)
	assert.Equal(t, entity.MovementTypeIn, movs[0].Type)
	assert.True(t, movs[0].QuantityBefore.IsZero())
	assert.True(t, movs[0].QuantityAfter.Equal(dec(10)))
	assert.True(t, movs[0].Balanced())
	assert.Equal(t, []string{"stock_item.create"}, f.sink.actions())
}

func TestCreateItem_Validaciones(t *testing.T) {
	f := newFixture(t, audit.PolicyFailOpen)
	ctx := context.Background()
	serial := "SN-1"

	cases := []struct {
		name string
		in   dto.CreateStockItemRequest
	}{
		{"sin SKU", dto.CreateStockItemRequest{Quantity: dec(1)}},
		{"cantidad negativa", dto.CreateStockItemRequest{SKU: "A", Quantity: dec(-1)}},
		{"precio negativo", dto.CreateStockItemRequest{SKU: "A", Quantity: dec(1), BasePrice: dec(-5)}},
		{"serial con cantidad 2", dto.CreateStockItemRequest{SKU: "A", Quantity: dec(2), SerialNumber: &serial}},
		{"cantidad con 5 decimales", dto.CreateStockItemRequest{SKU: "A", Quantity: decStr("1.00001")}},
		{"precio con 3 decimales", dto.CreateStockItemRequest{SKU: "A", Quantity: dec(1), BasePrice: decStr("9.999")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.ledger.CreateItem(ctx, testActor, tc.in)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestCreateItem_SerialDuplicado(t *testing.T) {
	f := newFixture(t, audit.PolicyFailOpen)
	f.createItem(t, "PHONE", 1, "IMEI-1")

	serial := "IMEI-1"
	_, err := f.ledger.CreateItem(context.Background(), testActor, dto.CreateStockItemRequest{
		SKU: "PHONE", Quantity: dec(1), SerialNumber: &serial,
	})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestCreateItem_ActorIncompleto(t *testing.T) {
	f := newFixture(t, audit.PolicyFailOpen)
	_, err := f.ledger.CreateItem(context.Background(), domain.Actor{CompanyID: testCompanyID},
		dto.CreateStockItemRequest{SKU: "A", Quantity: dec(1)})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAdjustQuantity_AplicaDeltaYRegistraADJUST(t *testing.T) {
	f := newFixture(t, audit.PolicyFailOpen)
	ctx := context.Background()
	item := f.createItem(t, "TV-55", 10, "")

	got, err := f.ledger.AdjustQuantity(ctx, testActor, item.ID, dec(-3), "merma")
	require.NoError(t, err)
	assert.True(t, got.Quantity.Equal(dec(7)))

	movs := f.movements(t, item.ID)
	require.Len(t, movs, 2)
	last := movs[0]
	assert.Equal(t, entity.MovementTypeAdjust, last.Type)
	assert.True(t, last.QuantityBefore.Equal(dec(10)))
	assert.True(t, last.QuantityAfter.Equal(dec(7)))
	assert.True(t, last.Balanced())
}

func TestAdjustQuantity_NoPermiteNegativo(t *testing.T) {
	f := newFixture(t, audit.PolicyFailOpen)
	item := f.createItem(t, "TV-55", 2, "")

	_, err := f.ledger.AdjustQuantity(context.Background(), testActor, item.ID, dec(-3), "merma")
	assert.ErrorIs(t, err, domain.ErrBusinessRule)
	assert.True(t, f.item(t, item.ID).Quantity.Equal(dec(2)))
	assert.Len(t, f.movements(t, item.ID), 1, "un ajuste rechazado no escribe movimiento")
}

func TestAdjustQuantity_SerializadoSoloCeroOUno(t *testing.T) {
	f := newFixture(t, audit.PolicyFailOpen)
	item := f.createItem(t, "PHONE", 1, "IMEI-9")

	_, err := f.ledger.AdjustQuantity(context.Background(), testActor, item.ID, dec(1), "conteo")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestAdjustQuantity_DeltaCeroOMotivoVacio(t *testing.T) {
	f := newFixture(t, audit.PolicyFailOpen)
	item := f.createItem(t, "TV-55", 2, "")
	ctx := context.Background()

	_, err := f.ledger.AdjustQuantity(ctx, testActor, item.ID, dec(0), "x")
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = f.ledger.AdjustQuantity(ctx, testActor, item.ID, dec(1), " ")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestAdjustQuantity_EscalaDecimal(t *testing.T) {
	f := newFixture(t, audit.PolicyFailOpen)
	ctx := context.Background()
	item, err := f.ledger.CreateItem(ctx, testActor, dto.CreateStockItemRequest{SKU: "CABLE", Quantity: decStr("10.5")})
	require.NoError(t, err)

	_, err = f.ledger.AdjustQuantity(ctx, testActor, item.ID, decStr("0.00001"), "merma")
	assert.ErrorIs(t, err, domain.ErrValidation)

	got, err := f.ledger.AdjustQuantity(ctx, testActor, item.ID, decStr("-0.1250"), "merma")
	require.NoError(t, err)
	assert.Equal(t, "10.375", got.Quantity.String())

	movs, err := f.ledger.ListMovements(ctx, testActor, repository.MovementFilter{StockItemID: item.ID}, dto.PageRequest{})
	require.NoError(t, err)
	assert.Len(t, movs, 2, "el ajuste rechazado no deja movimiento")
}

func TestAdjustQuantity_ItemInexistente(t *testing.T) {
	f := newFixture(t, audit.PolicyFailOpen)
	_, err := f.ledger.AdjustQuantity(context.Background(), testActor, "no-existe", dec(1), "x")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSoftDelete_ConReservaActivaFalla(t *testing.T) {
	f := newFixture(t, audit.PolicyFailOpen)
	ctx := context.Background()
	item := f.createItem(t, "TV-55", 5, "")
	_, err := f.reservations.Reserve(ctx, testActor, item.ID, dec(1), nil)
	require.NoError(t, err)

	err = f.ledger.SoftDeleteItem(ctx, testActor, item.ID)
	assert.ErrorIs(t, err, domain.ErrBusinessRule)
	assert.False(t, f.item(t, item.ID).IsDeleted())
}

func TestSoftDeleteYRestore(t *testing.T) {
	f := newFixture(t, audit.PolicyFailOpen)
	ctx := context.Background()
	item := f.createItem(t, "TV-55", 5, "")

	require.NoError(t, f.ledger.SoftDeleteItem(ctx, testActor, item.ID))

	_, err := f.ledger.GetItem(ctx, testActor, item.ID, false)
	assert.ErrorIs(t, err, domain.ErrNotFound, "un ítem eliminado no aparece sin includeDeleted")

	_, err = f.ledger.GetItem(ctx, testActor, item.ID, true)
	assert.ErrorIs(t, err, domain.ErrForbidden, "solo admin consulta eliminados")

	admin := testActor
	admin.Role = domain.RoleAdmin
	got, err := f.ledger.GetItem(ctx, admin, item.ID, true)
	require.NoError(t, err)
	assert.True(t, got.IsDeleted())

	list, err := f.ledger.ListItems(ctx, testActor, repository.StockItemFilter{}, dto.PageRequest{})
	require.NoError(t, err)
	assert.Empty(t, list)

	err = f.ledger.SoftDeleteItem(ctx, testActor, item.ID)
	assert.ErrorIs(t, err, domain.ErrBusinessRule, "borrar dos veces es un error")

	require.NoError(t, f.ledger.RestoreItem(ctx, testActor, item.ID))
	assert.False(t, f.item(t, item.ID).IsDeleted())

	err = f.ledger.RestoreItem(ctx, testActor, item.ID)
	assert.ErrorIs(t, err, domain.ErrBusinessRule)
}

func TestAudit_FailClosedOutboxCaidoHaceRollback(t *testing.T) {
	f := newFixture(t, audit.PolicyFailClosed)
	f.runner.setFail(errOutboxDown)

	_, err := f.ledger.CreateItem(context.Background(), testActor, dto.CreateStockItemRequest{
		SKU: "TV-55", Quantity: dec(3),
	})
	require.ErrorIs(t, err, domain.ErrInternal)
	assert.ErrorIs(t, err, errOutboxDown)

	list, err := f.store.Repos().Items.List(context.Background(), testCompanyID,
		repository.StockItemFilter{IncludeDeleted: true}, 100, 0)
	require.NoError(t, err)
	assert.Empty(t, list, "fail-closed revierte la mutación")
	assert.Empty(t, f.sink.actions())
}

// Con fail-closed el evento viaja con la mutación: una caída del sink no la revierte
// y el relay lo entrega cuando el sink vuelve.
func TestAudit_FailClosedSinkCaidoEntregaPorRelay(t *testing.T) {
	f := newFixture(t, audit.PolicyFailClosed)
	f.sink.fail = errSinkDown

	item, err := f.ledger.CreateItem(context.Background(), testActor, dto.CreateStockItemRequest{
		SKU: "TV-55", Quantity: dec(3),
	})
	require.NoError(t, err)
	assert.True(t, f.item(t, item.ID).Quantity.Equal(dec(3)))
	assert.Equal(t, audit.RelayResult{Failed: 1}, f.relay(t))

	f.sink.mu.Lock()
	f.sink.fail = nil
	f.sink.mu.Unlock()
	assert.Equal(t, audit.RelayResult{Published: 1}, f.relay(t))
	assert.Equal(t, []string{"stock_item.create"}, f.sink.actions())
}

func TestAudit_FailOpenConservaMutacion(t *testing.T) {
	f := newFixture(t, audit.PolicyFailOpen)
	f.sink.fail = errSinkDown

	item, err := f.ledger.CreateItem(context.Background(), testActor, dto.CreateStockItemRequest{
		SKU: "TV-55", Quantity: dec(3),
	})
	require.NoError(t, err)
	assert.True(t, f.item(t, item.ID).Quantity.Equal(dec(3)))
}

func TestAudit_AjusteRechazadoNoEmiteEvento(t *testing.T) {
	f := newFixture(t, audit.PolicyFailOpen)
	item := f.createItem(t, "TV-55", 2, "")

	_, err := f.ledger.AdjustQuantity(context.Background(), testActor, item.ID, dec(-3), "merma")
	require.ErrorIs(t, err, domain.ErrBusinessRule)
	assert.Equal(t, []string{"stock_item.create"}, f.sink.actions())
}

func TestListMovements_FiltraPorTipo(t *testing.T) {
	f := newFixture(t, audit.PolicyFailOpen)
	ctx := context.Background()
	item := f.createItem(t, "TV-55", 10, "")
	_, err := f.reservations.Reserve(ctx, testActor, item.ID, dec(2), nil)
	require.NoError(t, err)

	list, err := f.ledger.ListMovements(ctx, testActor,
		repository.MovementFilter{StockItemID: item.ID, Type: entity.MovementTypeReserve}, dto.PageRequest{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, entity.MovementTypeReserve, list[0].Type)
}
