package http_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-reservas/internal/application/dto"
	"github.com/jhoicas/inventario-reservas/internal/application/inventory"
	"github.com/jhoicas/inventario-reservas/internal/application/sales"
	"github.com/jhoicas/inventario-reservas/internal/infrastructure/memory"
	apphttp "github.com/jhoicas/inventario-reservas/internal/interfaces/http"
	"github.com/jhoicas/inventario-reservas/pkg/metrics"
)

// newAPI arma la API completa sobre el almacén en memoria.
func newAPI(t *testing.T) *fiber.App {
	t.Helper()
	store := memory.NewStore()
	reservations := inventory.NewReservationUseCase(store, store.Repos(), nil, nil, nil, inventory.ReservationConfig{})
	return apphttp.NewApp(apphttp.RouterDeps{
		AppName:      "inventario-test",
		Ledger:       inventory.NewStockLedgerUseCase(store, store.Repos(), nil),
		Reservations: reservations,
		Sales:        sales.NewSaleUseCase(store, store.Repos(), reservations, nil, nil, nil, sales.Config{}),
		Metrics:      metrics.New("test"),
		JWTSecret:    testJWTSecret,
	})
}

// call envía la petición con el rol indicado y decodifica el cuerpo JSON en out (si no es nil).
func call(t *testing.T, app *fiber.App, method, path, role string, body any, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if role != "" {
		req.Header.Set("Authorization", tokenForRole(t, role))
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestAPI_FlujoReservaVentaPago(t *testing.T) {
	app := newAPI(t)

	var item dto.StockItemResponse
	status := call(t, app, http.MethodPost, "/api/items", "bodeguero",
		map[string]any{"sku": "TV-55", "model": "Televisor", "quantity": 10, "base_price": 1500}, &item)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "AVAILABLE", item.Status)

	var res dto.ReservationResponse
	status = call(t, app, http.MethodPost, "/api/reservations", "vendedor",
		map[string]any{"stock_item_id": item.ID, "quantity": 4}, &res)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "ACTIVE", res.Status)

	var errBody dto.ErrorResponse
	status = call(t, app, http.MethodPost, "/api/reservations", "vendedor",
		map[string]any{"stock_item_id": item.ID, "quantity": 7}, &errBody)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "INSUFFICIENT_STOCK", errBody.Code)

	var sale dto.SaleResponse
	status = call(t, app, http.MethodPost, "/api/sales", "vendedor",
		map[string]any{"reservation_ids": []string{res.ID}, "customer": map[string]string{"name": "Ana"}}, &sale)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "RESERVED", sale.Status)
	assert.Equal(t, "VTA-000001", sale.Number)
	assert.Equal(t, []string{res.ID}, sale.ReservationIDs)

	status = call(t, app, http.MethodPost, "/api/sales/"+sale.ID+"/pay", "vendedor", nil, &sale)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "PAID", sale.Status)
	assert.NotNil(t, sale.PaidAt)

	status = call(t, app, http.MethodGet, "/api/items/"+item.ID, "vendedor", nil, &item)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "6", item.Quantity.String())

	var movs []dto.MovementResponse
	status = call(t, app, http.MethodGet, "/api/movements?stock_item_id="+item.ID, "bodeguero", nil, &movs)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, movs, 3)
	assert.Equal(t, "CONFIRM", movs[0].Type)
}

func TestAPI_RolesYErrores(t *testing.T) {
	app := newAPI(t)

	var errBody dto.ErrorResponse
	status := call(t, app, http.MethodPost, "/api/items", "vendedor",
		map[string]any{"sku": "TV-55", "quantity": 1}, &errBody)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errBody.Code)

	status = call(t, app, http.MethodGet, "/api/items/no-existe", "bodeguero", nil, &errBody)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errBody.Code)

	status = call(t, app, http.MethodGet, "/api/items?include_deleted=true", "bodeguero", nil, &errBody)
	assert.Equal(t, http.StatusForbidden, status, "solo admin consulta eliminados")

	status = call(t, app, http.MethodPost, "/api/items", "bodeguero",
		map[string]any{"sku": "", "quantity": 1}, &errBody)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION", errBody.Code)

	status = call(t, app, http.MethodPost, "/api/reservations/expire", "vendedor", nil, nil)
	assert.Equal(t, http.StatusForbidden, status)

	var expired dto.ExpireResponse
	status = call(t, app, http.MethodPost, "/api/reservations/expire", "admin", nil, &expired)
	assert.Equal(t, http.StatusOK, status)
	assert.Zero(t, expired.Expired)

	status = call(t, app, http.MethodGet, "/api/sales", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAPI_CancelarVentaSinReservasEsReglaDeNegocio(t *testing.T) {
	app := newAPI(t)

	var sale dto.SaleResponse
	status := call(t, app, http.MethodPost, "/api/sales/drafts", "vendedor",
		map[string]any{"customer": map[string]string{"name": "Luis"}}, &sale)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "DRAFT", sale.Status)

	var errBody dto.ErrorResponse
	status = call(t, app, http.MethodPost, "/api/sales/"+sale.ID+"/ship", "bodeguero", nil, &errBody)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "BUSINESS_RULE", errBody.Code)

	status = call(t, app, http.MethodDelete, "/api/sales/"+sale.ID, "vendedor", nil, nil)
	assert.Equal(t, http.StatusNoContent, status)
}

func TestAPI_HealthYMetrics(t *testing.T) {
	app := newAPI(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_ListadoRecortaLimit(t *testing.T) {
	app := newAPI(t)
	for i := 0; i < dto.MaxPageLimit+5; i++ {
		status := call(t, app, http.MethodPost, "/api/items", "bodeguero",
			map[string]any{"sku": fmt.Sprintf("SKU-%03d", i), "quantity": 1}, nil)
		require.Equal(t, http.StatusCreated, status)
	}

	var items []dto.StockItemResponse
	status := call(t, app, http.MethodGet, "/api/items?limit=100000", "vendedor", nil, &items)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, items, dto.MaxPageLimit)

	status = call(t, app, http.MethodGet, "/api/items?limit=100000&offset=100", "vendedor", nil, &items)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, items, 5)

	status = call(t, app, http.MethodGet, "/api/items", "vendedor", nil, &items)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, items, dto.DefaultPageLimit)
}
