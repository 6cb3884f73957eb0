/*
reconcile.go - Derive paid, discount and due amounts from the ledger

PURPOSE:
  The due amount of an invoice is never stored. It is recomputed from the
  postings related to the invoice and the return invoices referencing it:

    due = total − discount − paid − discountEarned − returnAmount + returnSettlement

  where, for the invoice's direction,
    paid             = postings of the invoice's type moving money through cash/bank
    discountEarned   = postings of the invoice's type against the discount account
    returnSettlement = return postings moving money back through cash/bank
    returnAmount     = Σ totalAmount of return invoices

  status is PAID exactly when due equals zero; any other value, including a
  negative credit balance, is UNPAID.

PURITY:
  Compute is a pure function over its inputs. The Engine wraps it with one
  snapshot read so that an invoice is never observed without the postings
  committed together with it.

SEE ALSO:
  - batch.go: Applies Compute to a page of invoices with bulk queries
*/
package invoice

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/warp/invoice-ledger/ledger"
)

// =============================================================================
// POSTING RULES PER DIRECTION
// =============================================================================

// rules are the three posting classes reconciliation distinguishes. They
// carry no invoice ids; callers add those.
type rules struct {
	paid       ledger.Filter
	discount   ledger.Filter
	settlement ledger.Filter
}

func rulesFor(dir Direction, a ledger.Accounts) rules {
	own := []ledger.PostingType{dir.PostingType()}
	ret := []ledger.PostingType{dir.ReturnPostingType()}
	if dir == Sale {
		return rules{
			paid:       ledger.Filter{Types: own, DebitIn: a.CashAccounts()},
			discount:   ledger.Filter{Types: own, DebitIn: []ledger.AccountID{a.DiscountGiven}},
			settlement: ledger.Filter{Types: ret, CreditIn: a.CashAccounts()},
		}
	}
	return rules{
		paid:       ledger.Filter{Types: own, CreditIn: a.CashAccounts()},
		discount:   ledger.Filter{Types: own, CreditIn: []ledger.AccountID{a.DiscountEarned}},
		settlement: ledger.Filter{Types: ret, DebitIn: a.CashAccounts()},
	}
}

func withInvoices(f ledger.Filter, ids []ledger.InvoiceID) ledger.Filter {
	f.RelatedInvoiceIDs = ids
	return f
}

// =============================================================================
// PURE COMPUTATION
// =============================================================================

// Compute reconciles inv against postings and returns. Postings and returns
// belonging to other invoices are ignored, so callers may pass a batch.
func Compute(inv Invoice, postings []ledger.Posting, returns []ReturnInvoice, accounts ledger.Accounts) Reconciliation {
	r := rulesFor(inv.Direction, accounts)
	ids := []ledger.InvoiceID{inv.ID}
	paidF := withInvoices(r.paid, ids)
	discountF := withInvoices(r.discount, ids)
	settlementF := withInvoices(r.settlement, ids)

	rec := Reconciliation{
		Invoice:          inv,
		PaidAmount:       decimal.Zero,
		DiscountEarned:   decimal.Zero,
		ReturnAmount:     decimal.Zero,
		ReturnSettlement: decimal.Zero,
	}
	for _, p := range postings {
		if p.RelatedInvoiceID != inv.ID {
			continue
		}
		rec.Postings = append(rec.Postings, p)
		switch {
		case paidF.Matches(p):
			rec.PaidAmount = rec.PaidAmount.Add(p.Amount)
		case discountF.Matches(p):
			rec.DiscountEarned = rec.DiscountEarned.Add(p.Amount)
		case settlementF.Matches(p):
			rec.ReturnSettlement = rec.ReturnSettlement.Add(p.Amount)
		}
	}
	for _, ret := range returns {
		if ret.InvoiceID != inv.ID {
			continue
		}
		rec.Returns = append(rec.Returns, ret)
		rec.ReturnAmount = rec.ReturnAmount.Add(ret.TotalAmount)
	}

	rec.Discount = inv.Discount.Add(rec.DiscountEarned)
	rec.DueAmount = inv.TotalAmount.
		Sub(inv.Discount).
		Sub(rec.PaidAmount).
		Sub(rec.DiscountEarned).
		Sub(rec.ReturnAmount).
		Add(rec.ReturnSettlement)
	rec.Status = StatusUnpaid
	if rec.DueAmount.IsZero() {
		rec.Status = StatusPaid
	}
	return rec
}

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	store    Store
	accounts ledger.Accounts
	cache    Cache
	log      zerolog.Logger
}

func NewEngine(deps Deps) *Engine {
	deps = deps.withDefaults()
	return &Engine{store: deps.Store, accounts: deps.Accounts, cache: deps.Cache, log: deps.Logger}
}

// Reconcile derives the current state of one invoice. It never writes.
func (e *Engine) Reconcile(ctx context.Context, id ledger.InvoiceID) (*Reconciliation, error) {
	if rec, ok, err := e.cache.Get(ctx, id); err != nil {
		e.log.Warn().Err(err).Int64("invoice_id", int64(id)).Msg("reconciliation cache read failed")
	} else if ok {
		return rec, nil
	}

	// Taken before the snapshot so that a write committed after it
	// keeps this result out of the cache.
	gen, genErr := e.cache.Generation(ctx, id)
	if genErr != nil {
		e.log.Warn().Err(genErr).Int64("invoice_id", int64(id)).Msg("reconciliation cache read failed")
	}

	var rec Reconciliation
	err := e.store.View(ctx, func(r Reader) error {
		var err error
		rec, err = reconcileIn(ctx, r, id, e.accounts)
		return err
	})
	if err != nil {
		return nil, ledger.Persistence("invoice.Reconcile", err)
	}

	if genErr != nil {
		return &rec, nil
	}
	if err := e.cache.Set(ctx, &rec, gen); err != nil {
		e.log.Warn().Err(err).Int64("invoice_id", int64(id)).Msg("reconciliation cache write failed")
	}
	return &rec, nil
}

// reconcileIn is shared with the workflows that need the current due
// amount inside their own transaction.
func reconcileIn(ctx context.Context, r Reader, id ledger.InvoiceID, accounts ledger.Accounts) (Reconciliation, error) {
	inv, err := r.Invoice(ctx, id)
	if err != nil {
		return Reconciliation{}, err
	}
	if inv == nil {
		return Reconciliation{}, ledger.NotFound("invoice.Reconcile", "invoice #%d does not exist", id)
	}
	postings, err := r.Query(ctx, ledger.Filter{
		Types:             []ledger.PostingType{inv.Direction.PostingType(), inv.Direction.ReturnPostingType()},
		RelatedInvoiceIDs: []ledger.InvoiceID{id},
	})
	if err != nil {
		return Reconciliation{}, err
	}
	returns, err := r.Returns(ctx, []ledger.InvoiceID{id})
	if err != nil {
		return Reconciliation{}, err
	}
	return Compute(*inv, postings, returns, accounts), nil
}
