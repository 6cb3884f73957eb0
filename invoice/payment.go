package invoice

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/warp/invoice-ledger/ledger"
)

// Payments records money and discounts settled against an invoice after it
// was created. Each settlement is new postings; the invoice row is untouched.
type Payments struct {
	store    Store
	accounts ledger.Accounts
	cache    Cache
	log      zerolog.Logger
}

func NewPayments(deps Deps) *Payments {
	deps = deps.withDefaults()
	return &Payments{
		store:    deps.Store,
		accounts: deps.Accounts,
		cache:    deps.Cache,
		log:      deps.Logger.With().Str("component", "invoice_payments").Logger(),
	}
}

// Record appends the payment and discount postings for p and returns the
// invoice's reconciliation after them. Settling more than is due is a
// validation error.
func (s *Payments) Record(ctx context.Context, p PaymentDraft) (*Reconciliation, error) {
	const op = "invoice.RecordPayment"
	if err := ValidatePayment(p); err != nil {
		return nil, err
	}

	var after Reconciliation
	err := s.store.Update(ctx, func(tx Writer) error {
		before, err := reconcileIn(ctx, tx, p.InvoiceID, s.accounts)
		if err != nil {
			return err
		}
		settled := p.Amount.Add(p.Discount)
		if settled.GreaterThan(before.DueAmount) {
			return ledger.Validation(op, "settlement %s exceeds due amount %s on invoice #%d", settled, before.DueAmount, p.InvoiceID)
		}

		postings := s.postings(before.Invoice, p)
		if _, err := ledger.New(tx).AppendBatch(ctx, postings); err != nil {
			return err
		}
		after, err = reconcileIn(ctx, tx, p.InvoiceID, s.accounts)
		return err
	})
	if err != nil {
		err = ledger.Persistence(op, err)
		abortEvent(s.log, err).Err(err).Int64("invoice_id", int64(p.InvoiceID)).Msg("payment aborted")
		return nil, err
	}

	if err := s.cache.Invalidate(ctx, p.InvoiceID); err != nil {
		s.log.Warn().Err(err).Int64("invoice_id", int64(p.InvoiceID)).Msg("cache invalidation failed")
	}
	s.log.Info().
		Int64("invoice_id", int64(p.InvoiceID)).
		Str("amount", p.Amount.String()).
		Str("discount", p.Discount.String()).
		Str("due", after.DueAmount.String()).
		Msg("payment recorded")
	return &after, nil
}

func (s *Payments) postings(inv Invoice, p PaymentDraft) []ledger.Posting {
	a := s.accounts
	cash := cashAccount(a, p.Account)
	var out []ledger.Posting
	add := func(debit, credit ledger.AccountID, amount decimal.Decimal, particulars string) {
		out = append(out, ledger.Posting{
			DebitAccountID:   debit,
			CreditAccountID:  credit,
			Amount:           amount,
			Type:             inv.Direction.PostingType(),
			RelatedInvoiceID: inv.ID,
			Date:             ledger.Day(p.Date),
			Particulars:      fmt.Sprintf("%s on %s #%d", particulars, inv.Direction.Title(), inv.ID),
		})
	}

	if inv.Direction == Sale {
		if p.Amount.IsPositive() {
			add(cash, a.AccountsReceivable, p.Amount, "Payment received")
		}
		if p.Discount.IsPositive() {
			add(a.DiscountGiven, a.AccountsReceivable, p.Discount, "Discount given")
		}
		return out
	}
	if p.Amount.IsPositive() {
		add(a.AccountsPayable, cash, p.Amount, "Payment made")
	}
	if p.Discount.IsPositive() {
		add(a.AccountsPayable, a.DiscountEarned, p.Discount, "Discount earned")
	}
	return out
}

// cashAccount resolves "cash" / "bank" to an account id, cash by default.
func cashAccount(a ledger.Accounts, name string) ledger.AccountID {
	if name == "bank" {
		return a.Bank
	}
	return a.Cash
}
