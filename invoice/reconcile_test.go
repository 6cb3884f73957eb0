package invoice_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/invoice-ledger/invoice"
	"github.com/warp/invoice-ledger/ledger"
	"github.com/warp/invoice-ledger/store/sqlite"
)

func posting(id ledger.InvoiceID, typ ledger.PostingType, debit, credit ledger.AccountID, amount string) ledger.Posting {
	return ledger.Posting{
		DebitAccountID:   debit,
		CreditAccountID:  credit,
		Amount:           dec(amount),
		Type:             typ,
		RelatedInvoiceID: id,
		Date:             march(1),
	}
}

func TestCompute_Status(t *testing.T) {
	accounts := ledger.DefaultAccounts()
	inv := invoice.Invoice{ID: 7, Direction: invoice.Purchase, TotalAmount: dec("10"), Discount: decimal.Zero}

	tests := []struct {
		name   string
		paid   string
		due    string
		status invoice.Status
	}{
		{name: "nothing paid", paid: "0", due: "10", status: invoice.StatusUnpaid},
		{name: "exactly paid", paid: "10", due: "0", status: invoice.StatusPaid},
		{name: "credit balance", paid: "12", due: "-2", status: invoice.StatusUnpaid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ps := []ledger.Posting{posting(7, ledger.TypePurchase, accounts.Inventory, accounts.Cash, tt.paid)}

			rec := invoice.Compute(inv, ps, nil, accounts)

			assert.True(t, rec.DueAmount.Equal(dec(tt.due)), "due %s", rec.DueAmount)
			assert.Equal(t, tt.status, rec.Status)
		})
	}
}

func TestCompute_ClassifiesPostings(t *testing.T) {
	accounts := ledger.DefaultAccounts()
	inv := invoice.Invoice{ID: 3, Direction: invoice.Purchase, TotalAmount: dec("100"), Discount: dec("4")}
	ps := []ledger.Posting{
		posting(3, ledger.TypePurchase, accounts.Inventory, accounts.Cash, "30"),
		posting(3, ledger.TypePurchase, accounts.Inventory, accounts.AccountsPayable, "66"),
		posting(3, ledger.TypePurchase, accounts.AccountsPayable, accounts.Bank, "20"),
		posting(3, ledger.TypePurchase, accounts.AccountsPayable, accounts.DiscountEarned, "6"),
		posting(3, ledger.TypePurchaseReturn, accounts.Cash, accounts.Inventory, "5"),
		// another invoice's payment is ignored
		posting(4, ledger.TypePurchase, accounts.Inventory, accounts.Cash, "1000"),
		// a sale posting with the same id is not a purchase payment
		posting(3, ledger.TypeSale, accounts.Cash, accounts.Sales, "1000"),
	}
	returns := []invoice.ReturnInvoice{
		{ID: 1, InvoiceID: 3, TotalAmount: dec("10")},
		{ID: 2, InvoiceID: 9, TotalAmount: dec("500")},
	}

	rec := invoice.Compute(inv, ps, returns, accounts)

	assert.True(t, rec.PaidAmount.Equal(dec("50")))
	assert.True(t, rec.DiscountEarned.Equal(dec("6")))
	assert.True(t, rec.Discount.Equal(dec("10")))
	assert.True(t, rec.ReturnAmount.Equal(dec("10")))
	assert.True(t, rec.ReturnSettlement.Equal(dec("5")))
	// 100 − 4 − 50 − 6 − 10 + 5
	assert.True(t, rec.DueAmount.Equal(dec("35")))
	assert.Len(t, rec.Returns, 1)
}

func TestCompute_CustomAccounts(t *testing.T) {
	accounts := ledger.DefaultAccounts()
	accounts.Cash = 101
	accounts.Bank = 102
	inv := invoice.Invoice{ID: 1, Direction: invoice.Sale, TotalAmount: dec("10"), Discount: decimal.Zero}

	rec := invoice.Compute(inv, []ledger.Posting{
		posting(1, ledger.TypeSale, 1, accounts.Sales, "10"),
		posting(1, ledger.TypeSale, 102, accounts.AccountsReceivable, "4"),
	}, nil, accounts)

	assert.True(t, rec.PaidAmount.Equal(dec("4")), "account 1 is no longer cash")
}

func TestReconcile_Conservation(t *testing.T) {
	// GIVEN: An invoice that went through every kind of movement
	f := newFixture(t)
	ctx := context.Background()
	inv, err := f.workflow.Create(ctx, f.purchaseDraft("5", "20"))
	require.NoError(t, err)
	_, err = f.payments.Record(ctx, invoice.PaymentDraft{InvoiceID: inv.ID, Date: march(2), Amount: dec("3"), Discount: dec("1")})
	require.NoError(t, err)
	_, err = f.returns.Record(ctx, invoice.ReturnDraft{
		InvoiceID:  inv.ID,
		Date:       march(3),
		Lines:      []invoice.DraftLine{{ProductID: f.gadget.ID, Quantity: 1, UnitPrice: dec("5")}},
		Settlement: dec("2"),
	})
	require.NoError(t, err)

	// WHEN: Reconciling
	rec, err := f.engine.Reconcile(ctx, inv.ID)
	require.NoError(t, err)

	// THEN: due + paid + discount + returns − settlement == total
	sum := rec.DueAmount.
		Add(rec.PaidAmount).
		Add(rec.Discount).
		Add(rec.ReturnAmount).
		Sub(rec.ReturnSettlement)
	assert.True(t, sum.Equal(rec.Invoice.TotalAmount), "sum %s total %s", sum, rec.Invoice.TotalAmount)
	// 40 − 5 − 23 − 1 − 5 + 2
	assert.True(t, rec.DueAmount.Equal(dec("8")))
}

func TestReconcile_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv, err := f.workflow.Create(ctx, f.purchaseDraft("5", "20"))
	require.NoError(t, err)
	before := len(f.postings(t))

	first, err := f.engine.Reconcile(ctx, inv.ID)
	require.NoError(t, err)
	second, err := f.engine.Reconcile(ctx, inv.ID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, f.postings(t), before, "reconcile never writes")
}

func TestReconcile_UnknownInvoice(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Reconcile(context.Background(), 42)

	assert.ErrorIs(t, err, ledger.ErrNotFound)
	assert.True(t, ledger.IsNotFound(err))
}

func TestReconcile_CacheInvalidatedOnWrite(t *testing.T) {
	// GIVEN: Components sharing a memory cache
	cache := invoice.NewMemoryCache(time.Hour)
	f := newFixtureWith(t, func(d invoice.Deps) invoice.Deps {
		d.Cache = cache
		return d
	})
	ctx := context.Background()
	inv, err := f.workflow.Create(ctx, f.purchaseDraft("5", "20"))
	require.NoError(t, err)

	rec, err := f.engine.Reconcile(ctx, inv.ID)
	require.NoError(t, err)
	_, hit, err := cache.Get(ctx, inv.ID)
	require.NoError(t, err)
	require.True(t, hit)

	// WHEN: A payment settles the invoice
	_, err = f.payments.Record(ctx, invoice.PaymentDraft{InvoiceID: inv.ID, Date: march(2), Amount: rec.DueAmount})
	require.NoError(t, err)

	// THEN: The next reconcile sees it
	_, hit, _ = cache.Get(ctx, inv.ID)
	assert.False(t, hit)
	rec, err = f.engine.Reconcile(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusPaid, rec.Status)
}

// snapshotHookStore runs afterView once, right after the first View returns.
type snapshotHookStore struct {
	*sqlite.Store
	afterView func()
}

func (s *snapshotHookStore) View(ctx context.Context, fn func(invoice.Reader) error) error {
	err := s.Store.View(ctx, fn)
	if hook := s.afterView; hook != nil {
		s.afterView = nil
		hook()
	}
	return err
}

func TestReconcile_WriteBetweenSnapshotAndCacheFillIsNotHidden(t *testing.T) {
	// GIVEN: An unpaid invoice and a store that commits a payment right
	// after the engine's snapshot read
	cache := invoice.NewMemoryCache(time.Hour)
	hooked := &snapshotHookStore{}
	f := newFixtureWith(t, func(d invoice.Deps) invoice.Deps {
		hooked.Store = d.Store.(*sqlite.Store)
		d.Store = hooked
		d.Cache = cache
		return d
	})
	ctx := context.Background()
	inv, err := f.workflow.Create(ctx, f.purchaseDraft("5", "20"))
	require.NoError(t, err)

	hooked.afterView = func() {
		_, err := f.payments.Record(ctx, invoice.PaymentDraft{InvoiceID: inv.ID, Date: march(2), Amount: dec("15")})
		require.NoError(t, err)
	}

	// WHEN: Reconciling races with the payment
	stale, err := f.engine.Reconcile(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusUnpaid, stale.Status, "snapshot predates the payment")

	// THEN: The stale result was not cached and the next reconcile is paid
	_, hit, _ := cache.Get(ctx, inv.ID)
	assert.False(t, hit)
	rec, err := f.engine.Reconcile(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusPaid, rec.Status)
	assert.True(t, rec.DueAmount.IsZero(), rec.DueAmount.String())
}
