package invoice

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/warp/invoice-ledger/ledger"
)

// Reader is the read side of the invoice store. Inside View every call
// observes the same snapshot.
type Reader interface {
	// Query returns postings, see ledger.Store.
	Query(ctx context.Context, f ledger.Filter) ([]ledger.Posting, error)

	// Invoice returns the invoice with its lines, or nil if it does not exist.
	Invoice(ctx context.Context, id ledger.InvoiceID) (*Invoice, error)

	// Invoices returns one page of invoices dated within r, latest id first.
	Invoices(ctx context.Context, dir Direction, r ledger.DateRange, offset, limit int) ([]Invoice, error)

	// Aggregate returns count and sums over invoices of dir. A nil range
	// means all invoices.
	Aggregate(ctx context.Context, dir Direction, r *ledger.DateRange) (Aggregate, error)

	// Returns lists the return invoices referencing any of ids.
	Returns(ctx context.Context, ids []ledger.InvoiceID) ([]ReturnInvoice, error)

	// ReturnTotal sums every return invoice of dir.
	ReturnTotal(ctx context.Context, dir Direction) (decimal.Decimal, error)

	Product(ctx context.Context, id int64) (*Product, error)
	Counterparty(ctx context.Context, id int64) (*Counterparty, error)
}

// Writer is available only inside Update. It embeds ledger.Store so the
// validating ledger.Ledger can be layered on top of it.
type Writer interface {
	Reader
	ledger.Store

	// InsertInvoice persists inv and its lines and assigns inv.ID.
	InsertInvoice(ctx context.Context, inv *Invoice) error

	// InsertReturn persists ret and its lines and assigns ret.ID.
	InsertReturn(ctx context.Context, ret *ReturnInvoice) error

	// AdjustStock applies a compare-and-set stock change. It fails with a
	// concurrency error when the product's version is not ExpectedVersion.
	AdjustStock(ctx context.Context, c StockChange) error
}

// Store runs read-only snapshots and atomic read-write units of work.
type Store interface {
	View(ctx context.Context, fn func(Reader) error) error
	Update(ctx context.Context, fn func(Writer) error) error
}

type StockChange struct {
	ProductID       int64
	Delta           int64
	PurchasePrice   *decimal.Decimal // overwritten when non-nil
	ExpectedVersion int64
}

// Aggregate is the structurally simple SUM/COUNT view over invoice headers.
type Aggregate struct {
	Count       int
	TotalAmount decimal.Decimal
	Discount    decimal.Decimal
}
