/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for demos. Each scenario creates counterparties and products, then
	drives purchases, sales, payments and returns through the same
	workflows the API uses, so every posting is a real one.

AVAILABLE SCENARIOS:

	partial-payment:  One purchase of 40, discount 5, paid 20 (due 15)
	return-settles:   Same purchase, then a return of 15 (PAID)
	trading-month:    A month of purchases and sales with payments,
	                  discounts and a sale return

HOW SCENARIOS WORK:
 1. Reset database (drop and recreate every table)
 2. Clear the reconciliation cache
 3. Create counterparties and products
 4. Record invoices, payments and returns in date order

USAGE VIA API:

	POST /api/scenarios/load
	{"scenarioId": "trading-month"}

USAGE VIA CLI:

	ledger seed trading-month

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx, s)
 3. Add case to Load

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Invoice and catalog handlers
  - cmd/server/seed.go: CLI entry point
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/invoice-ledger/invoice"
	"github.com/warp/invoice-ledger/ledger"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "partial-payment",
		Name:        "Partial Payment",
		Description: "Purchase of 40 with a discount of 5 and 20 paid up front, leaving 15 due",
	},
	{
		ID:          "return-settles",
		Name:        "Return Settles Due",
		Description: "The partial-payment purchase followed by a return worth exactly the amount due",
	},
	{
		ID:          "trading-month",
		Name:        "Trading Month",
		Description: "A month of purchases and sales with bank payments, discounts and a sale return",
	},
}

// Scenarios returns the available demo scenarios.
func Scenarios() []ScenarioDTO {
	return scenarios
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	current := h.currentScenario
	h.mu.RUnlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "Invalid request body", err)
		return
	}
	if err := h.Load(r.Context(), req.ScenarioID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears every table.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.reset(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Load resets the database and loads scenario id.
func (h *Handler) Load(ctx context.Context, id string) error {
	var load func(context.Context, *seeder) error
	switch id {
	case "partial-payment":
		load = loadPartialPaymentScenario
	case "return-settles":
		load = loadReturnSettlesScenario
	case "trading-month":
		load = loadTradingMonthScenario
	default:
		return ledger.Validation("api.LoadScenario", "unknown scenario %q", id)
	}

	if err := h.reset(ctx); err != nil {
		return err
	}
	if err := load(ctx, &seeder{h: h}); err != nil {
		return fmt.Errorf("failed to load scenario %s: %w", id, err)
	}

	h.mu.Lock()
	h.currentScenario = id
	h.mu.Unlock()
	h.log.Info().Str("scenario", id).Msg("scenario loaded")
	return nil
}

func (h *Handler) reset(ctx context.Context) error {
	if err := h.Store.Reset(ctx); err != nil {
		return ledger.Persistence("api.Reset", err)
	}
	if err := h.cache.Clear(ctx); err != nil {
		return ledger.Persistence("api.Reset", err)
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func loadPartialPaymentScenario(ctx context.Context, s *seeder) error {
	acme, err := s.counterparty(ctx, invoice.Supplier, "Acme Supplies")
	if err != nil {
		return err
	}
	widget, err := s.product(ctx, "Widget", "10", "18")
	if err != nil {
		return err
	}
	gadget, err := s.product(ctx, "Gadget", "5", "9")
	if err != nil {
		return err
	}

	_, err = s.h.Workflow.Create(ctx, invoice.Draft{
		Direction:      invoice.Purchase,
		Date:           march(1),
		CounterpartyID: acme,
		Discount:       decimal.NewFromInt(5),
		PaidAmount:     decimal.NewFromInt(20),
		MemoNo:         "ACME-0001",
		Lines: []invoice.DraftLine{
			line(widget, 3, "10"),
			line(gadget, 2, "5"),
		},
	})
	return err
}

func loadReturnSettlesScenario(ctx context.Context, s *seeder) error {
	if err := loadPartialPaymentScenario(ctx, s); err != nil {
		return err
	}
	// Ids restart at 1 after the reset.
	_, err := s.h.Returns.Record(ctx, invoice.ReturnDraft{
		InvoiceID: 1,
		Date:      march(4),
		Note:      "One widget and one gadget damaged in transit",
		Lines: []invoice.DraftLine{
			line(1, 1, "10"),
			line(2, 1, "5"),
		},
	})
	return err
}

func loadTradingMonthScenario(ctx context.Context, s *seeder) error {
	ids := map[string]int64{}
	for _, c := range []struct {
		kind invoice.CounterpartyKind
		name string
	}{
		{invoice.Supplier, "Acme Supplies"},
		{invoice.Supplier, "Northwind Traders"},
		{invoice.Customer, "Blue Cafe"},
		{invoice.Customer, "Corner Shop"},
	} {
		id, err := s.counterparty(ctx, c.kind, c.name)
		if err != nil {
			return err
		}
		ids[c.name] = id
	}
	for _, p := range []struct{ name, purchase, sale string }{
		{"Coffee Beans", "8", "14"},
		{"Paper Cups", "0.25", "0.6"},
		{"Espresso Machine", "350", "520"},
	} {
		id, err := s.product(ctx, p.name, p.purchase, p.sale)
		if err != nil {
			return err
		}
		ids[p.name] = id
	}
	beans, cups, machine := ids["Coffee Beans"], ids["Paper Cups"], ids["Espresso Machine"]

	type step func() error
	var (
		northwind *invoice.Invoice
		blueCafe  *invoice.Invoice
	)
	steps := []step{
		func() error {
			_, err := s.create(ctx, invoice.Purchase, 1, ids["Acme Supplies"], "0", "650",
				line(beans, 50, "8"), line(cups, 1000, "0.25"))
			return err
		},
		func() (err error) {
			northwind, err = s.create(ctx, invoice.Purchase, 3, ids["Northwind Traders"], "20", "300",
				line(machine, 2, "350"))
			return err
		},
		func() (err error) {
			blueCafe, err = s.create(ctx, invoice.Sale, 10, ids["Blue Cafe"], "10", "200",
				line(machine, 1, "520"), line(beans, 10, "14"))
			return err
		},
		func() error {
			_, err := s.create(ctx, invoice.Sale, 12, ids["Corner Shop"], "0", "180",
				line(cups, 300, "0.6"))
			return err
		},
		func() error {
			return s.pay(ctx, northwind.ID, 15, "370", "10", "Final settlement")
		},
		func() error {
			return s.pay(ctx, blueCafe.ID, 20, "300", "0", "Bank transfer")
		},
		func() error {
			_, err := s.h.Returns.Record(ctx, invoice.ReturnDraft{
				InvoiceID: blueCafe.ID,
				Date:      march(25),
				Note:      "Two bags returned unopened",
				Lines:     []invoice.DraftLine{line(beans, 2, "14")},
			})
			return err
		},
		func() error {
			_, err := s.create(ctx, invoice.Sale, 28, ids["Corner Shop"], "0", "0",
				line(beans, 5, "14"))
			return err
		},
	}
	for _, st := range steps {
		if err := st(); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

type seeder struct {
	h *Handler
}

func (s *seeder) counterparty(ctx context.Context, kind invoice.CounterpartyKind, name string) (int64, error) {
	c := invoice.Counterparty{Kind: kind, Name: name}
	if err := s.h.Store.CreateCounterparty(ctx, &c); err != nil {
		return 0, err
	}
	return c.ID, nil
}

func (s *seeder) product(ctx context.Context, name, purchase, sale string) (int64, error) {
	p := invoice.Product{
		Name:          name,
		PurchasePrice: decimal.RequireFromString(purchase),
		SalePrice:     decimal.RequireFromString(sale),
	}
	if err := s.h.Store.CreateProduct(ctx, &p); err != nil {
		return 0, err
	}
	return p.ID, nil
}

func (s *seeder) create(ctx context.Context, dir invoice.Direction, day int, counterparty int64, discount, paid string, lines ...invoice.DraftLine) (*invoice.Invoice, error) {
	return s.h.Workflow.Create(ctx, invoice.Draft{
		Direction:      dir,
		Date:           march(day),
		CounterpartyID: counterparty,
		Discount:       decimal.RequireFromString(discount),
		PaidAmount:     decimal.RequireFromString(paid),
		Lines:          lines,
	})
}

func (s *seeder) pay(ctx context.Context, id ledger.InvoiceID, day int, amount, discount, note string) error {
	_, err := s.h.Payments.Record(ctx, invoice.PaymentDraft{
		InvoiceID: id,
		Date:      march(day),
		Amount:    decimal.RequireFromString(amount),
		Discount:  decimal.RequireFromString(discount),
		Account:   "bank",
		Note:      note,
	})
	return err
}

func line(product, quantity int64, price string) invoice.DraftLine {
	return invoice.DraftLine{ProductID: product, Quantity: quantity, UnitPrice: decimal.RequireFromString(price)}
}

func march(day int) time.Time {
	return time.Date(2024, time.March, day, 0, 0, 0, 0, time.UTC)
}
