package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenario_PartialPaymentThenReturn(t *testing.T) {
	router, _ := newTestRouter(t)

	// WHEN: Loading the partial payment scenario
	rec := do(t, router, http.MethodPost, "/api/scenarios/load", `{"scenarioId":"partial-payment"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: 15 is due
	got := decode[ReconciliationDTO](t, do(t, router, http.MethodGet, "/api/purchase-invoices/1", ""))
	assert.Equal(t, "UNPAID", got.Status)
	assert.True(t, got.DueAmount.Equal(decimal.NewFromInt(15)), got.DueAmount.String())

	// WHEN: Loading the scenario with the return
	rec = do(t, router, http.MethodPost, "/api/scenarios/load", `{"scenarioId":"return-settles"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: The cached reconciliation from before the reset is not served
	got = decode[ReconciliationDTO](t, do(t, router, http.MethodGet, "/api/purchase-invoices/1", ""))
	assert.Equal(t, "PAID", got.Status)
	assert.True(t, got.DueAmount.IsZero())
	assert.True(t, got.ReturnAmount.Equal(decimal.NewFromInt(15)))

	current := decode[ScenarioDTO](t, do(t, router, http.MethodGet, "/api/scenarios/current", ""))
	assert.Equal(t, "return-settles", current.ID)
}

func TestScenario_TradingMonth(t *testing.T) {
	_, h := newTestRouter(t)
	ctx := context.Background()

	require.NoError(t, h.Load(ctx, "trading-month"))

	// Purchases: 650 paid in full, 700 settled by payment and discounts
	purchases, err := h.Aggregator.Totals(ctx, "purchase")
	require.NoError(t, err)
	assert.Equal(t, 2, purchases.Count)
	assert.True(t, purchases.DueAmount.IsZero(), purchases.DueAmount.String())

	// Sales: Blue Cafe owes 660 - 10 - 200 - 300 - 28, Corner Shop owes 70
	blueCafe, err := h.Engine.Reconcile(ctx, 3)
	require.NoError(t, err)
	assert.True(t, blueCafe.DueAmount.Equal(decimal.NewFromInt(122)), blueCafe.DueAmount.String())

	sales, err := h.Aggregator.Totals(ctx, "sale")
	require.NoError(t, err)
	assert.Equal(t, 3, sales.Count)
	assert.True(t, sales.DueAmount.Equal(decimal.NewFromInt(192)), sales.DueAmount.String())

	// Stock: 50 - 10 + 2 - 5 beans, 1000 - 300 cups, 2 - 1 machines
	products, err := h.Store.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 3)
	assert.Equal(t, int64(37), products[0].Quantity)
	assert.Equal(t, int64(700), products[1].Quantity)
	assert.Equal(t, int64(1), products[2].Quantity)
}

func TestScenario_UnknownAndReset(t *testing.T) {
	router, h := newTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/scenarios/load", `{"scenarioId":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	require.NoError(t, h.Load(context.Background(), "partial-payment"))
	rec = do(t, router, http.MethodPost, "/api/scenarios/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)

	products := decode[[]ProductDTO](t, do(t, router, http.MethodGet, "/api/products", ""))
	assert.Empty(t, products)
	rec = do(t, router, http.MethodGet, "/api/purchase-invoices/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
