package invoice

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/warp/invoice-ledger/ledger"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

type Query struct {
	Direction Direction
	Range     ledger.DateRange
	Offset    int
	Limit     int
}

// Summary sums the reconciled amounts of the invoices on one page only.
type Summary struct {
	Count       int
	TotalAmount decimal.Decimal
	Discount    decimal.Decimal
	PaidAmount  decimal.Decimal
	DueAmount   decimal.Decimal
}

type Page struct {
	Items   []Reconciliation
	Summary Summary
	Range   Aggregate // every invoice in the date range, not just this page
	Offset  int
	Limit   int
}

// Totals is the all-time aggregate of one direction, computed from sums over
// the whole ledger rather than per invoice.
type Totals struct {
	Aggregate
	PaidAmount       decimal.Decimal
	DiscountEarned   decimal.Decimal
	ReturnAmount     decimal.Decimal
	ReturnSettlement decimal.Decimal
	DueAmount        decimal.Decimal
}

// Aggregator reconciles a page of invoices with a fixed number of bulk reads
// regardless of the page size.
type Aggregator struct {
	store    Store
	accounts ledger.Accounts
}

func NewAggregator(deps Deps) *Aggregator {
	deps = deps.withDefaults()
	return &Aggregator{store: deps.Store, accounts: deps.Accounts}
}

func (a *Aggregator) List(ctx context.Context, q Query) (*Page, error) {
	const op = "invoice.List"
	if _, err := ParseDirection(string(q.Direction)); err != nil {
		return nil, err
	}
	if q.Range.End.Before(q.Range.Start) {
		return nil, ledger.Validation(op, "invalid range %s", q.Range)
	}
	if q.Offset < 0 {
		return nil, ledger.Validation(op, "negative offset %d", q.Offset)
	}
	switch {
	case q.Limit <= 0:
		q.Limit = DefaultPageSize
	case q.Limit > MaxPageSize:
		q.Limit = MaxPageSize
	}

	page := &Page{Offset: q.Offset, Limit: q.Limit}
	err := a.store.View(ctx, func(r Reader) error {
		var err error
		if page.Range, err = r.Aggregate(ctx, q.Direction, &q.Range); err != nil {
			return err
		}
		invoices, err := r.Invoices(ctx, q.Direction, q.Range, q.Offset, q.Limit)
		if err != nil {
			return err
		}
		if len(invoices) == 0 {
			return nil
		}

		ids := make([]ledger.InvoiceID, len(invoices))
		for i, inv := range invoices {
			ids[i] = inv.ID
		}
		rl := rulesFor(q.Direction, a.accounts)
		var postings []ledger.Posting
		for _, f := range []ledger.Filter{rl.paid, rl.discount, rl.settlement} {
			ps, err := r.Query(ctx, withInvoices(f, ids))
			if err != nil {
				return err
			}
			postings = append(postings, ps...)
		}
		returns, err := r.Returns(ctx, ids)
		if err != nil {
			return err
		}

		byInvoice := make(map[ledger.InvoiceID][]ledger.Posting, len(ids))
		for _, p := range postings {
			byInvoice[p.RelatedInvoiceID] = append(byInvoice[p.RelatedInvoiceID], p)
		}
		returnsByInvoice := make(map[ledger.InvoiceID][]ReturnInvoice, len(ids))
		for _, ret := range returns {
			returnsByInvoice[ret.InvoiceID] = append(returnsByInvoice[ret.InvoiceID], ret)
		}

		page.Items = make([]Reconciliation, len(invoices))
		for i, inv := range invoices {
			page.Items[i] = Compute(inv, byInvoice[inv.ID], returnsByInvoice[inv.ID], a.accounts)
		}
		return nil
	})
	if err != nil {
		return nil, ledger.Persistence(op, err)
	}
	page.Summary = Summarize(page.Items)
	return page, nil
}

// Search reconciles the invoices of dir among ids, latest id first, with
// their lines. Ids that do not exist or belong to the other direction are
// left out.
func (a *Aggregator) Search(ctx context.Context, dir Direction, ids []ledger.InvoiceID) ([]Reconciliation, error) {
	const op = "invoice.Search"
	if _, err := ParseDirection(string(dir)); err != nil {
		return nil, err
	}
	raw := make([]int64, len(ids))
	for i, id := range ids {
		raw[i] = int64(id)
	}
	sorted := sortedUnique(raw)

	var out []Reconciliation
	err := a.store.View(ctx, func(r Reader) error {
		for i := len(sorted) - 1; i >= 0; i-- {
			rec, err := reconcileIn(ctx, r, ledger.InvoiceID(sorted[i]), a.accounts)
			if ledger.IsNotFound(err) {
				continue
			}
			if err != nil {
				return err
			}
			if rec.Invoice.Direction == dir {
				out = append(out, rec)
			}
		}
		return nil
	})
	if err != nil {
		return nil, ledger.Persistence(op, err)
	}
	return out, nil
}

// Summarize sums reconciled amounts over items.
func Summarize(items []Reconciliation) Summary {
	s := Summary{
		Count:       len(items),
		TotalAmount: decimal.Zero,
		Discount:    decimal.Zero,
		PaidAmount:  decimal.Zero,
		DueAmount:   decimal.Zero,
	}
	for _, it := range items {
		s.TotalAmount = s.TotalAmount.Add(it.Invoice.TotalAmount)
		s.Discount = s.Discount.Add(it.Discount)
		s.PaidAmount = s.PaidAmount.Add(it.PaidAmount)
		s.DueAmount = s.DueAmount.Add(it.DueAmount)
	}
	return s
}

// Totals returns the unfiltered aggregate for dir.
func (a *Aggregator) Totals(ctx context.Context, dir Direction) (*Totals, error) {
	const op = "invoice.Totals"
	if _, err := ParseDirection(string(dir)); err != nil {
		return nil, err
	}
	rl := rulesFor(dir, a.accounts)
	var t Totals
	err := a.store.View(ctx, func(r Reader) error {
		var err error
		if t.Aggregate, err = r.Aggregate(ctx, dir, nil); err != nil {
			return err
		}
		sums := []*decimal.Decimal{&t.PaidAmount, &t.DiscountEarned, &t.ReturnSettlement}
		for i, f := range []ledger.Filter{rl.paid, rl.discount, rl.settlement} {
			ps, err := r.Query(ctx, f)
			if err != nil {
				return err
			}
			*sums[i] = ledger.SumAmounts(ps)
		}
		t.ReturnAmount, err = r.ReturnTotal(ctx, dir)
		return err
	})
	if err != nil {
		return nil, ledger.Persistence(op, err)
	}
	t.DueAmount = t.TotalAmount.
		Sub(t.Discount).
		Sub(t.PaidAmount).
		Sub(t.DiscountEarned).
		Sub(t.ReturnAmount).
		Add(t.ReturnSettlement)
	return &t, nil
}
