/*
Package ledger provides the append-only posting log behind invoice reconciliation.

PURPOSE:
  Every monetary event on an invoice (payment at creation, amount left on
  credit, later payment, discount recognized after the fact, return
  settlement) is one immutable Posting between two accounts. Nothing in
  the system stores a mutable "amount due": outstanding balances are always
  derived by summing postings.

KEY CONCEPTS IN THIS FILE (types.go):
  - Posting: one immutable ledger entry
  - PostingType: which invoice flow produced it (purchase, sale, returns)
  - Filter: the query shapes the reconciliation engine needs

DESIGN PRINCIPLES:
  1. Immutability: postings are never modified, corrections are new postings
  2. Precision: amounts use decimal.Decimal, never float64
  3. Type Safety: account, invoice and posting ids are distinct types

SEE ALSO:
  - accounts.go: Named account roles
  - ledger.go: Validating wrapper around a Store
  - store.go: Persistence contracts
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type PostingID string
type AccountID int64
type InvoiceID int64

// =============================================================================
// POSTING - Immutable movement between two accounts
// =============================================================================

type PostingType string

const (
	TypePurchase       PostingType = "purchase"
	TypePurchaseReturn PostingType = "purchase_return"
	TypeSale           PostingType = "sale"
	TypeSaleReturn     PostingType = "sale_return"
)

// Valid reports whether t is one of the four known posting types.
func (t PostingType) Valid() bool {
	switch t {
	case TypePurchase, TypePurchaseReturn, TypeSale, TypeSaleReturn:
		return true
	}
	return false
}

type Posting struct {
	ID               PostingID
	DebitAccountID   AccountID
	CreditAccountID  AccountID
	Amount           decimal.Decimal
	Type             PostingType
	RelatedInvoiceID InvoiceID
	Date             time.Time
	Particulars      string
	CreatedAt        time.Time
}

// =============================================================================
// FILTER - Query shape for Store.Query
// =============================================================================

// Filter selects postings. Every non-empty field narrows the result and all
// of them apply together.
type Filter struct {
	Types             []PostingType
	RelatedInvoiceIDs []InvoiceID
	DebitIn           []AccountID
	CreditIn          []AccountID
}

// Matches reports whether p satisfies the filter. Stores that cannot push a
// filter down to their backend use this.
func (f Filter) Matches(p Posting) bool {
	if len(f.Types) > 0 && !containsType(f.Types, p.Type) {
		return false
	}
	if len(f.RelatedInvoiceIDs) > 0 && !containsInvoice(f.RelatedInvoiceIDs, p.RelatedInvoiceID) {
		return false
	}
	if len(f.DebitIn) > 0 && !containsAccount(f.DebitIn, p.DebitAccountID) {
		return false
	}
	if len(f.CreditIn) > 0 && !containsAccount(f.CreditIn, p.CreditAccountID) {
		return false
	}
	return true
}

func containsType(ts []PostingType, t PostingType) bool {
	for _, v := range ts {
		if v == t {
			return true
		}
	}
	return false
}

func containsInvoice(ids []InvoiceID, id InvoiceID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func containsAccount(ids []AccountID, id AccountID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// SumAmounts adds up the amounts of ps.
func SumAmounts(ps []Posting) decimal.Decimal {
	total := decimal.Zero
	for _, p := range ps {
		total = total.Add(p.Amount)
	}
	return total
}
