/*
Package invoice implements purchase and sale invoices on top of the posting
ledger: creation with its initial postings and stock effects, later
payments and returns, and reconciliation of paid/due amounts.

PURPOSE:
  An invoice's total is frozen at creation. What has been paid, discounted
  or returned since is never written back onto the invoice; it is derived
  from postings and return invoices every time it is asked for.

KEY CONCEPTS IN THIS FILE (types.go):
  - Direction: purchase or sale; decides account roles and stock sign
  - Invoice / Line: the frozen header and its items
  - ReturnInvoice: a downward adjustment referencing an invoice
  - Product / Counterparty: collaborators touched as side effects

SEE ALSO:
  - workflow.go: Invoice creation
  - reconcile.go: Paid/due derivation
  - batch.go: Paginated listing with summaries
*/
package invoice

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/invoice-ledger/ledger"
)

// =============================================================================
// DIRECTION
// =============================================================================

type Direction string

const (
	Purchase Direction = "purchase"
	Sale     Direction = "sale"
)

func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case Purchase, Sale:
		return Direction(s), nil
	}
	return "", ledger.Validation("invoice.ParseDirection", "unknown invoice direction %q", s)
}

// PostingType is the ledger type used for this direction's own postings.
func (d Direction) PostingType() ledger.PostingType {
	if d == Sale {
		return ledger.TypeSale
	}
	return ledger.TypePurchase
}

// ReturnPostingType is the ledger type used for return settlements.
func (d Direction) ReturnPostingType() ledger.PostingType {
	if d == Sale {
		return ledger.TypeSaleReturn
	}
	return ledger.TypePurchaseReturn
}

// StockSign is +1 when the invoice brings goods in and -1 when it ships them out.
func (d Direction) StockSign() int64 {
	if d == Sale {
		return -1
	}
	return 1
}

// Title is used in posting particulars, e.g. "Purchase Invoice".
func (d Direction) Title() string {
	if d == Sale {
		return "Sale Invoice"
	}
	return "Purchase Invoice"
}

// CounterpartyKind is the kind of counterparty an invoice of this direction needs.
func (d Direction) CounterpartyKind() CounterpartyKind {
	if d == Sale {
		return Customer
	}
	return Supplier
}

// =============================================================================
// INVOICE
// =============================================================================

type Invoice struct {
	ID             ledger.InvoiceID
	Direction      Direction
	Date           time.Time
	CounterpartyID int64
	Note           string
	MemoNo         string
	TotalAmount    decimal.Decimal // Σ unitPrice × quantity, frozen at creation
	Discount       decimal.Decimal // known at creation
	Lines          []Line
	CreatedAt      time.Time
}

type Line struct {
	ProductID int64
	Quantity  int64
	UnitPrice decimal.Decimal
}

// Amount returns unitPrice × quantity.
func (l Line) Amount() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(l.Quantity))
}

// LinesTotal sums the line amounts.
func LinesTotal(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Amount())
	}
	return total
}

// =============================================================================
// RETURN INVOICE
// =============================================================================

type ReturnInvoice struct {
	ID          int64
	InvoiceID   ledger.InvoiceID
	Direction   Direction
	Date        time.Time
	Note        string
	TotalAmount decimal.Decimal
	Lines       []Line
	CreatedAt   time.Time
}

// =============================================================================
// COLLABORATORS
// =============================================================================

type Product struct {
	ID            int64
	Name          string
	Quantity      int64
	PurchasePrice decimal.Decimal // last purchase price, overwritten, never averaged
	SalePrice     decimal.Decimal
	Version       int64
}

type CounterpartyKind string

const (
	Supplier CounterpartyKind = "supplier"
	Customer CounterpartyKind = "customer"
)

type Counterparty struct {
	ID   int64
	Kind CounterpartyKind
	Name string
}

// =============================================================================
// RECONCILED VIEW
// =============================================================================

type Status string

const (
	StatusPaid   Status = "PAID"
	StatusUnpaid Status = "UNPAID"
)

// Reconciliation is the derived state of one invoice.
type Reconciliation struct {
	Invoice          Invoice
	PaidAmount       decimal.Decimal
	DiscountEarned   decimal.Decimal // discount postings recognized after creation
	Discount         decimal.Decimal // invoice discount + DiscountEarned
	ReturnAmount     decimal.Decimal
	ReturnSettlement decimal.Decimal
	DueAmount        decimal.Decimal
	Status           Status
	Returns          []ReturnInvoice
	Postings         []ledger.Posting
}

func (r Reconciliation) String() string {
	return fmt.Sprintf("invoice #%d: paid=%s discount=%s due=%s %s",
		r.Invoice.ID, r.PaidAmount, r.Discount, r.DueAmount, r.Status)
}
