package invoice_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/warp/invoice-ledger/invoice"
	"github.com/warp/invoice-ledger/ledger"
	"github.com/warp/invoice-ledger/store/sqlite"
)

// fixture wires every invoice component onto one in-memory database with a
// supplier, a customer and two products starting at zero stock.
type fixture struct {
	store      *sqlite.Store
	deps       invoice.Deps
	workflow   *invoice.Workflow
	engine     *invoice.Engine
	payments   *invoice.Payments
	returns    *invoice.Returns
	aggregator *invoice.Aggregator

	supplier invoice.Counterparty
	customer invoice.Counterparty
	widget   invoice.Product
	gadget   invoice.Product
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWith(t, func(d invoice.Deps) invoice.Deps { return d })
}

func newFixtureWith(t *testing.T, adjust func(invoice.Deps) invoice.Deps) *fixture {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	f := &fixture{store: store}
	f.supplier = invoice.Counterparty{Kind: invoice.Supplier, Name: "Acme Supplies"}
	require.NoError(t, store.CreateCounterparty(ctx, &f.supplier))
	f.customer = invoice.Counterparty{Kind: invoice.Customer, Name: "Jane Doe"}
	require.NoError(t, store.CreateCounterparty(ctx, &f.customer))
	f.widget = invoice.Product{Name: "Widget", PurchasePrice: dec("6"), SalePrice: dec("12")}
	require.NoError(t, store.CreateProduct(ctx, &f.widget))
	f.gadget = invoice.Product{Name: "Gadget", PurchasePrice: dec("3"), SalePrice: dec("7")}
	require.NoError(t, store.CreateProduct(ctx, &f.gadget))

	f.deps = adjust(invoice.Deps{Store: store, Logger: zerolog.Nop()})
	f.workflow = invoice.NewWorkflow(f.deps)
	f.engine = invoice.NewEngine(f.deps)
	f.payments = invoice.NewPayments(f.deps)
	f.returns = invoice.NewReturns(f.deps)
	f.aggregator = invoice.NewAggregator(f.deps)
	return f
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func march(day int) time.Time {
	return time.Date(2024, 3, day, 0, 0, 0, 0, time.UTC)
}

// purchaseDraft is the two-line invoice used throughout:
// 3 widgets at 10 and 2 gadgets at 5, total 40.
func (f *fixture) purchaseDraft(discount, paid string) invoice.Draft {
	return invoice.Draft{
		Direction:      invoice.Purchase,
		Date:           march(1),
		CounterpartyID: f.supplier.ID,
		Discount:       dec(discount),
		PaidAmount:     dec(paid),
		Lines: []invoice.DraftLine{
			{ProductID: f.widget.ID, Quantity: 3, UnitPrice: dec("10")},
			{ProductID: f.gadget.ID, Quantity: 2, UnitPrice: dec("5")},
		},
	}
}

func (f *fixture) product(t *testing.T, id int64) *invoice.Product {
	t.Helper()
	p, err := f.store.GetProduct(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p
}

func (f *fixture) postings(t *testing.T, ids ...ledger.InvoiceID) []ledger.Posting {
	t.Helper()
	ps, err := f.store.Query(context.Background(), ledger.Filter{RelatedInvoiceIDs: ids})
	require.NoError(t, err)
	return ps
}

func (f *fixture) invoiceCount(t *testing.T, dir invoice.Direction) int {
	t.Helper()
	totals, err := f.aggregator.Totals(context.Background(), dir)
	require.NoError(t, err)
	return totals.Count
}
