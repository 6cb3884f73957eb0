package invoice

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/warp/invoice-ledger/ledger"
)

// Returns records return invoices. A return lowers what is owed on the
// original invoice by its total; money handed back is a separate
// settlement posting that raises it again.
//
// Purchase returns send goods back (stock decreases) and settle
// Dr Cash|Bank / Cr Inventory. Sale returns take goods back (stock
// increases) and settle Dr Sales / Cr Cash|Bank.
type Returns struct {
	store    Store
	accounts ledger.Accounts
	locker   StockLocker
	cache    Cache
	log      zerolog.Logger
	now      func() time.Time
}

func NewReturns(deps Deps) *Returns {
	deps = deps.withDefaults()
	return &Returns{
		store:    deps.Store,
		accounts: deps.Accounts,
		locker:   deps.Locker,
		cache:    deps.Cache,
		log:      deps.Logger.With().Str("component", "invoice_returns").Logger(),
		now:      time.Now,
	}
}

func (s *Returns) Record(ctx context.Context, d ReturnDraft) (*ReturnInvoice, error) {
	const op = "invoice.RecordReturn"
	if err := ValidateReturn(d); err != nil {
		return nil, err
	}
	lines := toLines(d.Lines)
	total := LinesTotal(lines)
	if d.Settlement.GreaterThan(total) {
		return nil, ledger.Validation(op, "settlement %s exceeds return total %s", d.Settlement, total)
	}

	unlock, err := s.locker.Lock(ctx, productIDs(lines))
	if err != nil {
		return nil, err
	}
	defer unlock()

	ret := &ReturnInvoice{
		InvoiceID:   d.InvoiceID,
		Date:        ledger.Day(d.Date),
		Note:        d.Note,
		TotalAmount: total,
		Lines:       lines,
		CreatedAt:   s.now().UTC(),
	}

	err = s.store.Update(ctx, func(tx Writer) error {
		inv, err := tx.Invoice(ctx, d.InvoiceID)
		if err != nil {
			return err
		}
		if inv == nil {
			return ledger.NotFound(op, "invoice #%d does not exist", d.InvoiceID)
		}
		ret.Direction = inv.Direction

		prior, err := tx.Returns(ctx, []ledger.InvoiceID{inv.ID})
		if err != nil {
			return err
		}
		if err := checkReturnable(op, *inv, prior, lines); err != nil {
			return err
		}
		products, err := loadProducts(ctx, tx, op, lines)
		if err != nil {
			return err
		}
		changes, err := stockChanges(op, -inv.Direction.StockSign(), lines, products, false)
		if err != nil {
			return err
		}

		if err := tx.InsertReturn(ctx, ret); err != nil {
			return err
		}
		if d.Settlement.IsPositive() {
			if _, err := ledger.New(tx).Append(ctx, s.settlement(*inv, ret, d)); err != nil {
				return err
			}
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
		abortEvent(s.log, err).Err(err).Int64("invoice_id", int64(d.InvoiceID)).Msg("return aborted")
		return nil, err
	}

	if err := s.cache.Invalidate(ctx, d.InvoiceID); err != nil {
		s.log.Warn().Err(err).Int64("invoice_id", int64(d.InvoiceID)).Msg("cache invalidation failed")
	}
	s.log.Info().
		Int64("invoice_id", int64(d.InvoiceID)).
		Int64("return_id", ret.ID).
		Str("total", ret.TotalAmount.String()).
		Str("settlement", d.Settlement.String()).
		Msg("return recorded")
	return ret, nil
}

func (s *Returns) settlement(inv Invoice, ret *ReturnInvoice, d ReturnDraft) ledger.Posting {
	cash := cashAccount(s.accounts, d.SettlementAccount)
	p := ledger.Posting{
		Amount:           d.Settlement,
		Type:             inv.Direction.ReturnPostingType(),
		RelatedInvoiceID: inv.ID,
		Date:             ret.Date,
	}
	if inv.Direction == Sale {
		p.DebitAccountID = s.accounts.Sales
		p.CreditAccountID = cash
		p.Particulars = fmt.Sprintf("Refund paid on return #%d of %s #%d", ret.ID, inv.Direction.Title(), inv.ID)
		return p
	}
	p.DebitAccountID = cash
	p.CreditAccountID = s.accounts.Inventory
	p.Particulars = fmt.Sprintf("Refund received on return #%d of %s #%d", ret.ID, inv.Direction.Title(), inv.ID)
	return p
}

// checkReturnable rejects returning a product that is not on the invoice,
// more units of it than were invoiced minus earlier returns, or at a unit
// price above what the invoice charged for it. A product on several lines
// is priced at their quantity-weighted average.
func checkReturnable(op string, inv Invoice, prior []ReturnInvoice, lines []Line) error {
	remaining := make(map[int64]int64)
	invoiced := make(map[int64]Line)
	for _, l := range inv.Lines {
		remaining[l.ProductID] += l.Quantity
		sum := invoiced[l.ProductID]
		sum.Quantity += l.Quantity
		sum.UnitPrice = sum.UnitPrice.Add(l.Amount())
		invoiced[l.ProductID] = sum
	}
	for _, r := range prior {
		for _, l := range r.Lines {
			remaining[l.ProductID] -= l.Quantity
		}
	}
	for _, l := range lines {
		left, ok := remaining[l.ProductID]
		if !ok {
			return ledger.Validation(op, "product #%d is not on invoice #%d", l.ProductID, inv.ID)
		}
		if l.Quantity > left {
			return ledger.Validation(op, "cannot return %d of product #%d, only %d left on invoice #%d",
				l.Quantity, l.ProductID, left, inv.ID)
		}
		// UnitPrice of the summed line holds the invoiced amount.
		sum := invoiced[l.ProductID]
		if l.UnitPrice.Mul(decimal.NewFromInt(sum.Quantity)).GreaterThan(sum.UnitPrice) {
			return ledger.Validation(op, "unit price %s of product #%d exceeds its invoiced price %s on invoice #%d",
				l.UnitPrice, l.ProductID, sum.UnitPrice.DivRound(decimal.NewFromInt(sum.Quantity), 2), inv.ID)
		}
		remaining[l.ProductID] = left - l.Quantity
	}
	return nil
}
