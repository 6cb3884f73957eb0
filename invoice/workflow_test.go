/*
workflow_test.go - Tests for invoice creation, payments and returns

Tests for:
- Initial postings and stock effects of purchase and sale invoices
- Rejection paths (over-payment, stock, unknown references)
- All-or-nothing creation under an injected stock failure
- Concurrent stock updates
- Payments and returns against existing invoices
*/
package invoice_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/invoice-ledger/invoice"
	"github.com/warp/invoice-ledger/ledger"
	"github.com/warp/invoice-ledger/store/sqlite"
)

// =============================================================================
// CREATE
// =============================================================================

func TestCreate_PurchaseWithPartialPayment(t *testing.T) {
	// GIVEN: 3 × 10 + 2 × 5 with discount 5 and 20 paid
	f := newFixture(t)
	ctx := context.Background()

	// WHEN: Creating the purchase invoice
	inv, err := f.workflow.Create(ctx, f.purchaseDraft("5", "20"))
	require.NoError(t, err)

	// THEN: Total is the sum of the lines
	assert.True(t, inv.TotalAmount.Equal(dec("40")))
	assert.True(t, inv.TotalAmount.Equal(invoice.LinesTotal(inv.Lines)))
	assert.NotZero(t, inv.ID)

	// AND: One payment posting of 20 and one due posting of 15
	ps := f.postings(t, inv.ID)
	require.Len(t, ps, 2)
	accounts := ledger.DefaultAccounts()

	assert.True(t, ps[0].Amount.Equal(dec("20")))
	assert.Equal(t, accounts.Inventory, ps[0].DebitAccountID)
	assert.Equal(t, accounts.Cash, ps[0].CreditAccountID)
	assert.Equal(t, ledger.TypePurchase, ps[0].Type)
	assert.Contains(t, ps[0].Particulars, "Purchase Invoice")

	assert.True(t, ps[1].Amount.Equal(dec("15")))
	assert.Equal(t, accounts.Inventory, ps[1].DebitAccountID)
	assert.Equal(t, accounts.AccountsPayable, ps[1].CreditAccountID)

	// AND: Stock went up and the last purchase price was overwritten
	widget := f.product(t, f.widget.ID)
	assert.Equal(t, int64(3), widget.Quantity)
	assert.True(t, widget.PurchasePrice.Equal(dec("10")))
	assert.Equal(t, int64(2), f.product(t, f.gadget.ID).Quantity)

	// AND: Reconciliation reports 20 paid, 15 due
	rec, err := f.engine.Reconcile(ctx, inv.ID)
	require.NoError(t, err)
	assert.True(t, rec.PaidAmount.Equal(dec("20")))
	assert.True(t, rec.DueAmount.Equal(dec("15")))
	assert.Equal(t, invoice.StatusUnpaid, rec.Status)
}

func TestCreate_FullyPaidSkipsDuePosting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, err := f.workflow.Create(ctx, f.purchaseDraft("0", "40"))
	require.NoError(t, err)

	ps := f.postings(t, inv.ID)
	require.Len(t, ps, 1)
	assert.True(t, ps[0].Amount.Equal(dec("40")))

	rec, err := f.engine.Reconcile(ctx, inv.ID)
	require.NoError(t, err)
	assert.True(t, rec.DueAmount.IsZero())
	assert.Equal(t, invoice.StatusPaid, rec.Status)
}

func TestCreate_SalePostsRevenueAndCostOfSales(t *testing.T) {
	// GIVEN: 3 widgets bought at 10 each
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.workflow.Create(ctx, f.purchaseDraft("0", "40"))
	require.NoError(t, err)

	// WHEN: Selling 2 widgets at 12 with 10 received
	sale, err := f.workflow.Create(ctx, invoice.Draft{
		Direction:      invoice.Sale,
		Date:           march(2),
		CounterpartyID: f.customer.ID,
		PaidAmount:     dec("10"),
		Lines:          []invoice.DraftLine{{ProductID: f.widget.ID, Quantity: 2, UnitPrice: dec("12")}},
	})
	require.NoError(t, err)

	// THEN: Cash 10, receivable 14 and cost of sales 2 × 10
	accounts := ledger.DefaultAccounts()
	ps := f.postings(t, sale.ID)
	require.Len(t, ps, 3)
	assert.Equal(t, accounts.Cash, ps[0].DebitAccountID)
	assert.Equal(t, accounts.Sales, ps[0].CreditAccountID)
	assert.True(t, ps[0].Amount.Equal(dec("10")))
	assert.Equal(t, accounts.AccountsReceivable, ps[1].DebitAccountID)
	assert.True(t, ps[1].Amount.Equal(dec("14")))
	assert.Equal(t, accounts.CostOfSales, ps[2].DebitAccountID)
	assert.Equal(t, accounts.Inventory, ps[2].CreditAccountID)
	assert.True(t, ps[2].Amount.Equal(dec("20")))

	// AND: Stock went down, purchase price untouched
	widget := f.product(t, f.widget.ID)
	assert.Equal(t, int64(1), widget.Quantity)
	assert.True(t, widget.PurchasePrice.Equal(dec("10")))

	// AND: Cost of sales is not counted as paid
	rec, err := f.engine.Reconcile(ctx, sale.ID)
	require.NoError(t, err)
	assert.True(t, rec.PaidAmount.Equal(dec("10")))
	assert.True(t, rec.DueAmount.Equal(dec("14")))
}

func TestCreate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *fixture, d *invoice.Draft)
		kind   ledger.Kind
	}{
		{
			name:   "over-payment",
			mutate: func(_ *fixture, d *invoice.Draft) { d.PaidAmount = dec("36") },
			kind:   ledger.KindValidation,
		},
		{
			name:   "discount above total",
			mutate: func(_ *fixture, d *invoice.Draft) { d.Discount = dec("41"); d.PaidAmount = dec("0") },
			kind:   ledger.KindValidation,
		},
		{
			name:   "unknown product",
			mutate: func(_ *fixture, d *invoice.Draft) { d.Lines[1].ProductID = 999 },
			kind:   ledger.KindValidation,
		},
		{
			name:   "unknown supplier",
			mutate: func(_ *fixture, d *invoice.Draft) { d.CounterpartyID = 999 },
			kind:   ledger.KindValidation,
		},
		{
			name:   "customer on a purchase",
			mutate: func(f *fixture, d *invoice.Draft) { d.CounterpartyID = f.customer.ID },
			kind:   ledger.KindValidation,
		},
		{
			name: "sale beyond stock",
			mutate: func(f *fixture, d *invoice.Draft) {
				d.Direction = invoice.Sale
				d.CounterpartyID = f.customer.ID
				d.PaidAmount = dec("0")
			},
			kind: ledger.KindValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			d := f.purchaseDraft("5", "20")
			tt.mutate(f, &d)

			_, err := f.workflow.Create(context.Background(), d)

			require.Error(t, err)
			assert.Equal(t, tt.kind, ledger.KindOf(err))
			assert.Zero(t, f.invoiceCount(t, invoice.Purchase))
			assert.Zero(t, f.invoiceCount(t, invoice.Sale))
			assert.Empty(t, f.postings(t))
		})
	}
}

func TestCreate_ValidationReportsFields(t *testing.T) {
	f := newFixture(t)
	d := f.purchaseDraft("0", "0")
	d.Lines[0].Quantity = 0
	d.CounterpartyID = 0

	_, err := f.workflow.Create(context.Background(), d)

	var lerr *ledger.Error
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, ledger.KindValidation, lerr.Kind)
	assert.Equal(t, "gt", lerr.Fields["Lines[0].Quantity"])
	assert.Equal(t, "gt", lerr.Fields["CounterpartyID"])
}

// =============================================================================
// ATOMICITY
// =============================================================================

// failingStore makes AdjustStock fail for one product inside Update.
type failingStore struct {
	*sqlite.Store
	failProduct int64
}

func (s failingStore) Update(ctx context.Context, fn func(invoice.Writer) error) error {
	return s.Store.Update(ctx, func(w invoice.Writer) error {
		return fn(failingWriter{Writer: w, failProduct: s.failProduct})
	})
}

type failingWriter struct {
	invoice.Writer
	failProduct int64
}

var errDiskFull = errors.New("disk full")

func (w failingWriter) AdjustStock(ctx context.Context, c invoice.StockChange) error {
	if c.ProductID == w.failProduct {
		return errDiskFull
	}
	return w.Writer.AdjustStock(ctx, c)
}

func TestCreate_StockFailureOnLastLineLeavesNoTrace(t *testing.T) {
	// GIVEN: A store that fails the stock update of the last line's product
	f := newFixture(t)
	ctx := context.Background()
	deps := f.deps
	deps.Store = failingStore{Store: f.store, failProduct: f.gadget.ID}
	workflow := invoice.NewWorkflow(deps)

	// WHEN: Creating the invoice
	_, err := workflow.Create(ctx, f.purchaseDraft("5", "20"))

	// THEN: It fails as a persistence error
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrPersistence)
	assert.ErrorIs(t, err, errDiskFull)

	// AND: No invoice, no postings and no stock change exist
	assert.Zero(t, f.invoiceCount(t, invoice.Purchase))
	assert.Empty(t, f.postings(t))
	widget := f.product(t, f.widget.ID)
	assert.Zero(t, widget.Quantity)
	assert.Zero(t, widget.Version)
	assert.True(t, widget.PurchasePrice.Equal(dec("6")))
}

// abortLevels returns the level of every "invoice creation aborted" entry.
func abortLevels(t *testing.T, buf *bytes.Buffer) []string {
	t.Helper()
	var levels []string
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if entry["message"] == "invoice creation aborted" {
			levels = append(levels, entry["level"].(string))
		}
	}
	return levels
}

func TestCreate_AbortLoggedAtErrorOnlyForStoreFailures(t *testing.T) {
	// GIVEN: A workflow logging to a buffer
	var buf bytes.Buffer
	f := newFixtureWith(t, func(d invoice.Deps) invoice.Deps {
		d.Logger = zerolog.New(&buf).Level(zerolog.DebugLevel)
		return d
	})
	ctx := context.Background()

	// WHEN: A sale beyond stock is rejected inside the transaction
	d := f.purchaseDraft("0", "0")
	d.Direction = invoice.Sale
	d.CounterpartyID = f.customer.ID
	_, err := f.workflow.Create(ctx, d)
	require.ErrorIs(t, err, ledger.ErrValidation)

	// THEN: It is logged at debug
	assert.Equal(t, []string{"debug"}, abortLevels(t, &buf))

	// WHEN: The store fails
	buf.Reset()
	deps := f.deps
	deps.Store = failingStore{Store: f.store, failProduct: f.gadget.ID}
	_, err = invoice.NewWorkflow(deps).Create(ctx, f.purchaseDraft("5", "20"))
	require.ErrorIs(t, err, ledger.ErrPersistence)

	// THEN: It is logged at error
	assert.Equal(t, []string{"error"}, abortLevels(t, &buf))
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestCreate_ConcurrentPurchasesLoseNoStock(t *testing.T) {
	// GIVEN: One product at quantity 0
	f := newFixture(t)
	ctx := context.Background()
	const n = 25

	// WHEN: n purchases of quantity 1 run concurrently
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.workflow.Create(ctx, invoice.Draft{
				Direction:      invoice.Purchase,
				Date:           march(1),
				CounterpartyID: f.supplier.ID,
				Lines:          []invoice.DraftLine{{ProductID: f.widget.ID, Quantity: 1, UnitPrice: dec("10")}},
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	// THEN: Every purchase succeeded and the final quantity is n
	for err := range errs {
		require.NoError(t, err)
	}
	widget := f.product(t, f.widget.ID)
	assert.Equal(t, int64(n), widget.Quantity)
	assert.Equal(t, int64(n), widget.Version)
	assert.Equal(t, n, f.invoiceCount(t, invoice.Purchase))
}

func TestCreate_ConcurrentSalesNeverOversell(t *testing.T) {
	// GIVEN: 5 gadgets in stock
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.workflow.Create(ctx, invoice.Draft{
		Direction:      invoice.Purchase,
		Date:           march(1),
		CounterpartyID: f.supplier.ID,
		Lines:          []invoice.DraftLine{{ProductID: f.gadget.ID, Quantity: 5, UnitPrice: dec("3")}},
	})
	require.NoError(t, err)

	// WHEN: 12 customers each buy one concurrently
	const n = 12
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		sold     int
		rejected int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.workflow.Create(ctx, invoice.Draft{
				Direction:      invoice.Sale,
				Date:           march(2),
				CounterpartyID: f.customer.ID,
				Lines:          []invoice.DraftLine{{ProductID: f.gadget.ID, Quantity: 1, UnitPrice: dec("7")}},
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				sold++
			} else if ledger.KindOf(err) == ledger.KindValidation {
				rejected++
			}
		}()
	}
	wg.Wait()

	// THEN: Exactly the stock on hand was sold
	assert.Equal(t, 5, sold)
	assert.Equal(t, n-5, rejected)
	assert.Zero(t, f.product(t, f.gadget.ID).Quantity)
}

// =============================================================================
// PAYMENTS
// =============================================================================

func TestPayments_SettleInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv, err := f.workflow.Create(ctx, f.purchaseDraft("5", "20"))
	require.NoError(t, err)

	// Pay 10 from the bank and take 5 as discount
	rec, err := f.payments.Record(ctx, invoice.PaymentDraft{
		InvoiceID: inv.ID,
		Date:      march(10),
		Amount:    dec("10"),
		Discount:  dec("5"),
		Account:   "bank",
	})
	require.NoError(t, err)

	assert.True(t, rec.PaidAmount.Equal(dec("30")))
	assert.True(t, rec.DiscountEarned.Equal(dec("5")))
	assert.True(t, rec.Discount.Equal(dec("10")))
	assert.True(t, rec.DueAmount.IsZero())
	assert.Equal(t, invoice.StatusPaid, rec.Status)

	accounts := ledger.DefaultAccounts()
	ps := f.postings(t, inv.ID)
	require.Len(t, ps, 4)
	assert.Equal(t, accounts.AccountsPayable, ps[2].DebitAccountID)
	assert.Equal(t, accounts.Bank, ps[2].CreditAccountID)
	assert.Equal(t, accounts.DiscountEarned, ps[3].CreditAccountID)
}

func TestPayments_SaleReceipt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.workflow.Create(ctx, f.purchaseDraft("0", "40"))
	require.NoError(t, err)
	sale, err := f.workflow.Create(ctx, invoice.Draft{
		Direction:      invoice.Sale,
		Date:           march(2),
		CounterpartyID: f.customer.ID,
		Lines:          []invoice.DraftLine{{ProductID: f.gadget.ID, Quantity: 2, UnitPrice: dec("7")}},
	})
	require.NoError(t, err)

	rec, err := f.payments.Record(ctx, invoice.PaymentDraft{
		InvoiceID: sale.ID, Date: march(3), Amount: dec("13"), Discount: dec("1"),
	})
	require.NoError(t, err)
	assert.True(t, rec.PaidAmount.Equal(dec("13")))
	assert.True(t, rec.DiscountEarned.Equal(dec("1")))
	assert.Equal(t, invoice.StatusPaid, rec.Status)
}

func TestPayments_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv, err := f.workflow.Create(ctx, f.purchaseDraft("5", "20"))
	require.NoError(t, err)

	t.Run("more than due", func(t *testing.T) {
		_, err := f.payments.Record(ctx, invoice.PaymentDraft{InvoiceID: inv.ID, Date: march(2), Amount: dec("16")})
		assert.ErrorIs(t, err, ledger.ErrValidation)
	})
	t.Run("nothing to pay", func(t *testing.T) {
		_, err := f.payments.Record(ctx, invoice.PaymentDraft{InvoiceID: inv.ID, Date: march(2)})
		assert.ErrorIs(t, err, ledger.ErrValidation)
	})
	t.Run("unknown account", func(t *testing.T) {
		_, err := f.payments.Record(ctx, invoice.PaymentDraft{InvoiceID: inv.ID, Date: march(2), Amount: dec("1"), Account: "wallet"})
		assert.ErrorIs(t, err, ledger.ErrValidation)
	})
	t.Run("unknown invoice", func(t *testing.T) {
		_, err := f.payments.Record(ctx, invoice.PaymentDraft{InvoiceID: 999, Date: march(2), Amount: dec("1")})
		assert.ErrorIs(t, err, ledger.ErrNotFound)
	})

	assert.Len(t, f.postings(t, inv.ID), 2, "rejected payments post nothing")
}

// =============================================================================
// RETURNS
// =============================================================================

func TestReturns_ReturnClearsDue(t *testing.T) {
	// GIVEN: The 40 / 5 / 20 purchase, due 15
	f := newFixture(t)
	ctx := context.Background()
	inv, err := f.workflow.Create(ctx, f.purchaseDraft("5", "20"))
	require.NoError(t, err)

	// WHEN: Returning one widget and one gadget (15) with no refund
	ret, err := f.returns.Record(ctx, invoice.ReturnDraft{
		InvoiceID: inv.ID,
		Date:      march(5),
		Lines: []invoice.DraftLine{
			{ProductID: f.widget.ID, Quantity: 1, UnitPrice: dec("10")},
			{ProductID: f.gadget.ID, Quantity: 1, UnitPrice: dec("5")},
		},
	})
	require.NoError(t, err)
	assert.True(t, ret.TotalAmount.Equal(dec("15")))
	assert.Equal(t, invoice.Purchase, ret.Direction)

	// THEN: 40 − 5 − 20 − 15 = 0
	rec, err := f.engine.Reconcile(ctx, inv.ID)
	require.NoError(t, err)
	assert.True(t, rec.ReturnAmount.Equal(dec("15")))
	assert.True(t, rec.DueAmount.IsZero())
	assert.Equal(t, invoice.StatusPaid, rec.Status)
	require.Len(t, rec.Returns, 1)

	// AND: Goods left stock, no posting was added
	assert.Equal(t, int64(2), f.product(t, f.widget.ID).Quantity)
	assert.Equal(t, int64(1), f.product(t, f.gadget.ID).Quantity)
	assert.Len(t, f.postings(t, inv.ID), 2)
}

func TestReturns_SettlementRaisesDue(t *testing.T) {
	// GIVEN: A fully paid purchase
	f := newFixture(t)
	ctx := context.Background()
	inv, err := f.workflow.Create(ctx, f.purchaseDraft("0", "40"))
	require.NoError(t, err)

	// WHEN: Returning 2 gadgets (10) and getting 10 back in cash
	_, err = f.returns.Record(ctx, invoice.ReturnDraft{
		InvoiceID:  inv.ID,
		Date:       march(5),
		Lines:      []invoice.DraftLine{{ProductID: f.gadget.ID, Quantity: 2, UnitPrice: dec("5")}},
		Settlement: dec("10"),
	})
	require.NoError(t, err)

	// THEN: Return and refund cancel out, still paid
	rec, err := f.engine.Reconcile(ctx, inv.ID)
	require.NoError(t, err)
	assert.True(t, rec.ReturnSettlement.Equal(dec("10")))
	assert.True(t, rec.DueAmount.IsZero())

	accounts := ledger.DefaultAccounts()
	ps := f.postings(t, inv.ID)
	require.Len(t, ps, 2)
	assert.Equal(t, ledger.TypePurchaseReturn, ps[1].Type)
	assert.Equal(t, accounts.Cash, ps[1].DebitAccountID)
	assert.Equal(t, accounts.Inventory, ps[1].CreditAccountID)
}

func TestReturns_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv, err := f.workflow.Create(ctx, f.purchaseDraft("0", "40"))
	require.NoError(t, err)
	_, err = f.returns.Record(ctx, invoice.ReturnDraft{
		InvoiceID: inv.ID, Date: march(2),
		Lines: []invoice.DraftLine{{ProductID: f.widget.ID, Quantity: 2, UnitPrice: dec("10")}},
	})
	require.NoError(t, err)

	tests := []struct {
		name  string
		draft invoice.ReturnDraft
		want  error
	}{
		{
			name: "more than remains on the invoice",
			draft: invoice.ReturnDraft{InvoiceID: inv.ID, Date: march(3),
				Lines: []invoice.DraftLine{{ProductID: f.widget.ID, Quantity: 2, UnitPrice: dec("10")}}},
			want: ledger.ErrValidation,
		},
		{
			name: "settlement above return total",
			draft: invoice.ReturnDraft{InvoiceID: inv.ID, Date: march(3), Settlement: dec("11"),
				Lines: []invoice.DraftLine{{ProductID: f.widget.ID, Quantity: 1, UnitPrice: dec("10")}}},
			want: ledger.ErrValidation,
		},
		{
			name: "unit price above the invoiced price",
			draft: invoice.ReturnDraft{InvoiceID: inv.ID, Date: march(3),
				Lines: []invoice.DraftLine{{ProductID: f.widget.ID, Quantity: 1, UnitPrice: dec("1000")}}},
			want: ledger.ErrValidation,
		},
		{
			name: "unknown invoice",
			draft: invoice.ReturnDraft{InvoiceID: 999, Date: march(3),
				Lines: []invoice.DraftLine{{ProductID: f.widget.ID, Quantity: 1, UnitPrice: dec("10")}}},
			want: ledger.ErrNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.returns.Record(ctx, tt.draft)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	// A product that was never on the invoice
	other := invoice.Product{Name: "Other"}
	require.NoError(t, f.store.CreateProduct(ctx, &other))
	_, err = f.returns.Record(ctx, invoice.ReturnDraft{
		InvoiceID: inv.ID, Date: march(3),
		Lines: []invoice.DraftLine{{ProductID: other.ID, Quantity: 1, UnitPrice: dec("1")}},
	})
	assert.ErrorIs(t, err, ledger.ErrValidation)
	assert.Equal(t, int64(1), f.product(t, f.widget.ID).Quantity)

	// Only the accepted return of 2 × 10 counts against the invoice
	rec, err := f.engine.Reconcile(ctx, inv.ID)
	require.NoError(t, err)
	assert.True(t, rec.DueAmount.Equal(dec("-20")), rec.DueAmount.String())
}

func TestReturns_PricedAtWeightedInvoicePrice(t *testing.T) {
	// GIVEN: Widgets bought on two lines, 1 at 10 and 3 at 14 (average 13)
	f := newFixture(t)
	ctx := context.Background()
	d := f.purchaseDraft("0", "0")
	d.Lines = []invoice.DraftLine{
		{ProductID: f.widget.ID, Quantity: 1, UnitPrice: dec("10")},
		{ProductID: f.widget.ID, Quantity: 3, UnitPrice: dec("14")},
	}
	inv, err := f.workflow.Create(ctx, d)
	require.NoError(t, err)

	ret := func(price string) error {
		_, err := f.returns.Record(ctx, invoice.ReturnDraft{
			InvoiceID: inv.ID, Date: march(2),
			Lines: []invoice.DraftLine{{ProductID: f.widget.ID, Quantity: 1, UnitPrice: dec(price)}},
		})
		return err
	}

	// WHEN/THEN: Above the average is rejected, the average itself is accepted
	assert.ErrorIs(t, ret("13.01"), ledger.ErrValidation)
	require.NoError(t, ret("13"))
}
