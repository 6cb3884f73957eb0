/*
ledger.go - Validating, append-only posting log

PURPOSE:
  The Ledger is the immutable source of truth for every amount paid,
  owed, discounted or refunded on an invoice. Due amounts are always
  computed by summing postings - there is no separate "due" field that
  can get out of sync.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete.
  2. IMMUTABLE: Once written, postings cannot be modified.
  3. NON-NEGATIVE: A posting amount is never below zero; direction is
     expressed by the debit/credit accounts, not by sign.

CORRECTIONS:
  A wrong payment is not edited. An offsetting posting is appended and
  both stay in the log.

SEE ALSO:
  - store.go: Low-level persistence interface
  - invoice/reconcile.go: Derives due amounts from postings
*/
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Ledger struct {
	Store Store
	now   func() time.Time
}

func New(store Store) *Ledger {
	return &Ledger{Store: store, now: time.Now}
}

// Append validates p, assigns an id if missing and persists it.
func (l *Ledger) Append(ctx context.Context, p Posting) (PostingID, error) {
	p, err := l.prepare(p)
	if err != nil {
		return "", err
	}
	id, err := l.Store.Append(ctx, p)
	if err != nil {
		return "", Persistence("ledger.Append", err)
	}
	return id, nil
}

// AppendBatch validates every posting before writing any of them.
func (l *Ledger) AppendBatch(ctx context.Context, ps []Posting) ([]PostingID, error) {
	prepared := make([]Posting, 0, len(ps))
	for _, p := range ps {
		p, err := l.prepare(p)
		if err != nil {
			return nil, err
		}
		prepared = append(prepared, p)
	}
	ids, err := l.Store.AppendBatch(ctx, prepared)
	if err != nil {
		return nil, Persistence("ledger.AppendBatch", err)
	}
	return ids, nil
}

func (l *Ledger) Query(ctx context.Context, f Filter) ([]Posting, error) {
	ps, err := l.Store.Query(ctx, f)
	if err != nil {
		return nil, Persistence("ledger.Query", err)
	}
	return ps, nil
}

// Sum returns the total amount of the postings matching f.
func (l *Ledger) Sum(ctx context.Context, f Filter) (decimal.Decimal, error) {
	ps, err := l.Query(ctx, f)
	if err != nil {
		return decimal.Zero, err
	}
	return SumAmounts(ps), nil
}

func (l *Ledger) prepare(p Posting) (Posting, error) {
	if err := Check(p); err != nil {
		return p, err
	}
	if p.ID == "" {
		p.ID = NewPostingID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = l.now().UTC()
	}
	return p, nil
}

// Check enforces the invariants every posting must satisfy before it is
// written.
func Check(p Posting) error {
	const op = "ledger.Check"
	if !p.Type.Valid() {
		return Validation(op, "unknown posting type %q", p.Type)
	}
	if p.Amount.IsNegative() {
		return Validation(op, "posting amount %s is negative", p.Amount)
	}
	if p.DebitAccountID == p.CreditAccountID {
		return Validation(op, "debit and credit account are both %d", p.DebitAccountID)
	}
	if p.RelatedInvoiceID <= 0 {
		return Validation(op, "posting has no related invoice")
	}
	if p.Date.IsZero() {
		return Validation(op, "posting has no date")
	}
	return nil
}

func NewPostingID() PostingID {
	return PostingID(uuid.NewString())
}
