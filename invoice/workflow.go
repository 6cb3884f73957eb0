/*
workflow.go - Invoice creation

PURPOSE:
  Turns a validated draft into a persisted invoice, its initial postings
  and the resulting stock movements, as one atomic unit.

STEPS:
  1. Validate the draft and compute total = Σ unitPrice × quantity
  2. due = total − discount − paid; over-payment is rejected
  3. Lock every product of the draft (ascending id order)
  4. In one transaction:
     a. check counterparty and products exist, stock stays non-negative
     b. insert the invoice and its lines
     c. append the payment / due (/ cost of sales) postings
     d. apply compare-and-set stock changes per line
  5. Invalidate the reconciliation cache entry

ATOMICITY:
  Any failure in step 4 rolls back everything, so the ledger never
  disagrees with inventory and a reader never sees the invoice without
  its creation postings.

POSTINGS:
  purchase  paid: Dr Inventory / Cr Cash       due: Dr Inventory / Cr Payable
  sale      paid: Dr Cash / Cr Sales           due: Dr Receivable / Cr Sales
            cost: Dr Cost of sales / Cr Inventory
*/
package invoice

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/warp/invoice-ledger/ledger"
)

type Workflow struct {
	store    Store
	accounts ledger.Accounts
	locker   StockLocker
	cache    Cache
	log      zerolog.Logger
	now      func() time.Time
}

func NewWorkflow(deps Deps) *Workflow {
	deps = deps.withDefaults()
	return &Workflow{
		store:    deps.Store,
		accounts: deps.Accounts,
		locker:   deps.Locker,
		cache:    deps.Cache,
		log:      deps.Logger.With().Str("component", "invoice_workflow").Logger(),
		now:      time.Now,
	}
}

// Create persists a new invoice. See the file comment for the steps.
func (w *Workflow) Create(ctx context.Context, d Draft) (*Invoice, error) {
	const op = "invoice.Create"

	if err := ValidateDraft(d); err != nil {
		return nil, err
	}
	lines := d.lines()
	total := LinesTotal(lines)
	if d.Discount.GreaterThan(total) {
		return nil, ledger.Validation(op, "discount %s exceeds total %s", d.Discount, total)
	}
	due := total.Sub(d.Discount).Sub(d.PaidAmount)
	if due.IsNegative() {
		return nil, ledger.Validation(op, "paid amount %s exceeds total %s less discount %s", d.PaidAmount, total, d.Discount)
	}

	unlock, err := w.locker.Lock(ctx, productIDs(lines))
	if err != nil {
		return nil, err
	}
	defer unlock()

	inv := &Invoice{
		Direction:      d.Direction,
		Date:           ledger.Day(d.Date),
		CounterpartyID: d.CounterpartyID,
		Note:           d.Note,
		MemoNo:         d.MemoNo,
		TotalAmount:    total,
		Discount:       d.Discount,
		Lines:          lines,
		CreatedAt:      w.now().UTC(),
	}

	err = w.store.Update(ctx, func(tx Writer) error {
		if err := checkCounterparty(ctx, tx, op, d.Direction, d.CounterpartyID); err != nil {
			return err
		}
		products, err := loadProducts(ctx, tx, op, lines)
		if err != nil {
			return err
		}
		changes, err := stockChanges(op, d.Direction.StockSign(), lines, products, d.Direction == Purchase)
		if err != nil {
			return err
		}

		if err := tx.InsertInvoice(ctx, inv); err != nil {
			return err
		}
		postings := w.initialPostings(inv, d.PaidAmount, due, products)
		if _, err := ledger.New(tx).AppendBatch(ctx, postings); err != nil {
			return err
		}
		for _, c := range changes {
			if err := tx.AdjustStock(ctx, c); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		err = ledger.Persistence(op, err)
		abortEvent(w.log, err).Err(err).Str("direction", string(d.Direction)).Msg("invoice creation aborted")
		return nil, err
	}

	if err := w.cache.Invalidate(ctx, inv.ID); err != nil {
		w.log.Warn().Err(err).Int64("invoice_id", int64(inv.ID)).Msg("cache invalidation failed")
	}
	w.log.Info().
		Int64("invoice_id", int64(inv.ID)).
		Str("direction", string(inv.Direction)).
		Str("total", inv.TotalAmount.String()).
		Str("paid", d.PaidAmount.String()).
		Str("due", due.String()).
		Msg("invoice created")
	return inv, nil
}

func (w *Workflow) initialPostings(inv *Invoice, paid, due decimal.Decimal, products map[int64]*Product) []ledger.Posting {
	a := w.accounts
	base := ledger.Posting{
		Type:             inv.Direction.PostingType(),
		RelatedInvoiceID: inv.ID,
		Date:             inv.Date,
	}
	var out []ledger.Posting
	add := func(debit, credit ledger.AccountID, amount decimal.Decimal, particulars string) {
		p := base
		p.DebitAccountID = debit
		p.CreditAccountID = credit
		p.Amount = amount
		p.Particulars = fmt.Sprintf("%s on %s #%d", particulars, inv.Direction.Title(), inv.ID)
		out = append(out, p)
	}

	if inv.Direction == Sale {
		if paid.IsPositive() {
			add(a.Cash, a.Sales, paid, "Cash received")
		}
		if due.IsPositive() {
			add(a.AccountsReceivable, a.Sales, due, "Due")
		}
		cost := decimal.Zero
		for _, l := range inv.Lines {
			cost = cost.Add(products[l.ProductID].PurchasePrice.Mul(decimal.NewFromInt(l.Quantity)))
		}
		if cost.IsPositive() {
			add(a.CostOfSales, a.Inventory, cost, "Cost of sales")
		}
		return out
	}

	if paid.IsPositive() {
		add(a.Inventory, a.Cash, paid, "Cash paid")
	}
	if due.IsPositive() {
		add(a.Inventory, a.AccountsPayable, due, "Due")
	}
	return out
}

// =============================================================================
// SHARED STEPS
// =============================================================================

func productIDs(lines []Line) []int64 {
	ids := make([]int64, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}
	return sortedUnique(ids)
}

func checkCounterparty(ctx context.Context, r Reader, op string, dir Direction, id int64) error {
	cp, err := r.Counterparty(ctx, id)
	if err != nil {
		return err
	}
	if cp == nil {
		return ledger.Validation(op, "%s #%d does not exist", dir.CounterpartyKind(), id)
	}
	if cp.Kind != dir.CounterpartyKind() {
		return ledger.Validation(op, "counterparty #%d is a %s, a %s invoice needs a %s", id, cp.Kind, dir, dir.CounterpartyKind())
	}
	return nil
}

func loadProducts(ctx context.Context, r Reader, op string, lines []Line) (map[int64]*Product, error) {
	products := make(map[int64]*Product)
	for _, id := range productIDs(lines) {
		p, err := r.Product(ctx, id)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, ledger.Validation(op, "product #%d does not exist", id)
		}
		products[id] = p
	}
	return products, nil
}

// stockChanges computes one compare-and-set change per line, in line order,
// chaining expected versions when a product appears on several lines.
// sign is +1 for goods coming in. setPrice overwrites the last purchase
// price with the line price. Stock may never go below zero.
func stockChanges(op string, sign int64, lines []Line, products map[int64]*Product, setPrice bool) ([]StockChange, error) {
	qty := make(map[int64]int64, len(products))
	version := make(map[int64]int64, len(products))
	for id, p := range products {
		qty[id] = p.Quantity
		version[id] = p.Version
	}

	changes := make([]StockChange, 0, len(lines))
	for _, l := range lines {
		delta := sign * l.Quantity
		if qty[l.ProductID]+delta < 0 {
			return nil, ledger.Validation(op, "insufficient stock for product #%d: have %d, need %d",
				l.ProductID, qty[l.ProductID], l.Quantity)
		}
		c := StockChange{ProductID: l.ProductID, Delta: delta, ExpectedVersion: version[l.ProductID]}
		if setPrice {
			price := l.UnitPrice
			c.PurchasePrice = &price
		}
		changes = append(changes, c)
		qty[l.ProductID] += delta
		version[l.ProductID]++
	}
	return changes, nil
}
