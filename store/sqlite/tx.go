package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/invoice-ledger/invoice"
	"github.com/warp/invoice-ledger/ledger"
)

// txView implements invoice.Writer (and so invoice.Reader and ledger.Store)
// on one SQL transaction.
type txView struct {
	tx  *sql.Tx
	now func() time.Time
}

// =============================================================================
// POSTINGS
// =============================================================================

func (t *txView) Append(ctx context.Context, p ledger.Posting) (ledger.PostingID, error) {
	if p.ID == "" {
		p.ID = ledger.NewPostingID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = t.now().UTC()
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO postings (id, debit_account_id, credit_account_id, amount, posting_type,
			related_invoice_id, date, particulars, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.DebitAccountID, p.CreditAccountID, decimalArg(p.Amount), p.Type,
		p.RelatedInvoiceID, formatDate(p.Date), p.Particulars, p.CreatedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert posting: %w", err)
	}
	return p.ID, nil
}

func (t *txView) AppendBatch(ctx context.Context, ps []ledger.Posting) ([]ledger.PostingID, error) {
	ids := make([]ledger.PostingID, 0, len(ps))
	for _, p := range ps {
		id, err := t.Append(ctx, p)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (t *txView) Query(ctx context.Context, f ledger.Filter) ([]ledger.Posting, error) {
	var (
		where []string
		args  []any
	)
	if len(f.Types) > 0 {
		where = append(where, "posting_type IN ("+placeholders(len(f.Types))+")")
		for _, v := range f.Types {
			args = append(args, v)
		}
	}
	if len(f.RelatedInvoiceIDs) > 0 {
		where = append(where, "related_invoice_id IN ("+placeholders(len(f.RelatedInvoiceIDs))+")")
		for _, v := range f.RelatedInvoiceIDs {
			args = append(args, v)
		}
	}
	if len(f.DebitIn) > 0 {
		where = append(where, "debit_account_id IN ("+placeholders(len(f.DebitIn))+")")
		for _, v := range f.DebitIn {
			args = append(args, v)
		}
	}
	if len(f.CreditIn) > 0 {
		where = append(where, "credit_account_id IN ("+placeholders(len(f.CreditIn))+")")
		for _, v := range f.CreditIn {
			args = append(args, v)
		}
	}

	query := `
		SELECT id, debit_account_id, credit_account_id, amount, posting_type,
			related_invoice_id, date, COALESCE(particulars, ''), created_at
		FROM postings`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date, created_at, rowid"

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query postings: %w", err)
	}
	defer rows.Close()

	var postings []ledger.Posting
	for rows.Next() {
		var (
			p               ledger.Posting
			date, createdAt string
		)
		if err := rows.Scan(&p.ID, &p.DebitAccountID, &p.CreditAccountID, &p.Amount, &p.Type,
			&p.RelatedInvoiceID, &date, &p.Particulars, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan posting: %w", err)
		}
		p.Date = parseDate(date)
		p.CreatedAt = parseTimestamp(createdAt)
		postings = append(postings, p)
	}
	return postings, rows.Err()
}

// =============================================================================
// INVOICES
// =============================================================================

const invoiceColumns = `id, direction, date, counterparty_id, COALESCE(note, ''), COALESCE(memo_no, ''),
	total_amount, discount, created_at`

func scanInvoice(sc interface{ Scan(...any) error }) (invoice.Invoice, error) {
	var (
		inv             invoice.Invoice
		date, createdAt string
	)
	err := sc.Scan(&inv.ID, &inv.Direction, &date, &inv.CounterpartyID, &inv.Note, &inv.MemoNo,
		&inv.TotalAmount, &inv.Discount, &createdAt)
	inv.Date = parseDate(date)
	inv.CreatedAt = parseTimestamp(createdAt)
	return inv, err
}

func (t *txView) Invoice(ctx context.Context, id ledger.InvoiceID) (*invoice.Invoice, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`, id)
	inv, err := scanInvoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}

	inv.Lines, err = t.lines(ctx, `
		SELECT product_id, quantity, unit_price FROM invoice_lines
		WHERE invoice_id = ? ORDER BY line_no`, id)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// Invoices returns headers only; reconciliation does not need the lines.
func (t *txView) Invoices(ctx context.Context, dir invoice.Direction, r ledger.DateRange, offset, limit int) ([]invoice.Invoice, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT `+invoiceColumns+` FROM invoices
		WHERE direction = ? AND date >= ? AND date <= ?
		ORDER BY id DESC
		LIMIT ? OFFSET ?`,
		dir, formatDate(r.Start), formatDate(r.End), limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	var out []invoice.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (t *txView) Aggregate(ctx context.Context, dir invoice.Direction, r *ledger.DateRange) (invoice.Aggregate, error) {
	query := `SELECT total_amount, discount FROM invoices WHERE direction = ?`
	args := []any{dir}
	if r != nil {
		query += ` AND date >= ? AND date <= ?`
		args = append(args, formatDate(r.Start), formatDate(r.End))
	}
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return invoice.Aggregate{}, fmt.Errorf("failed to aggregate invoices: %w", err)
	}
	defer rows.Close()

	agg := invoice.Aggregate{TotalAmount: decimal.Zero, Discount: decimal.Zero}
	for rows.Next() {
		var total, discount decimal.Decimal
		if err := rows.Scan(&total, &discount); err != nil {
			return invoice.Aggregate{}, fmt.Errorf("failed to scan invoice amounts: %w", err)
		}
		agg.Count++
		agg.TotalAmount = agg.TotalAmount.Add(total)
		agg.Discount = agg.Discount.Add(discount)
	}
	return agg, rows.Err()
}

func (t *txView) InsertInvoice(ctx context.Context, inv *invoice.Invoice) error {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO invoices (direction, date, counterparty_id, note, memo_no, total_amount, discount, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.Direction, formatDate(inv.Date), inv.CounterpartyID, inv.Note, inv.MemoNo,
		decimalArg(inv.TotalAmount), decimalArg(inv.Discount), inv.CreatedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to insert invoice: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read invoice id: %w", err)
	}
	inv.ID = ledger.InvoiceID(id)

	for i, l := range inv.Lines {
		if _, err := t.tx.ExecContext(ctx, `
			INSERT INTO invoice_lines (invoice_id, line_no, product_id, quantity, unit_price)
			VALUES (?, ?, ?, ?, ?)`,
			inv.ID, i, l.ProductID, l.Quantity, decimalArg(l.UnitPrice),
		); err != nil {
			return fmt.Errorf("failed to insert invoice line: %w", err)
		}
	}
	return nil
}

// =============================================================================
// RETURNS
// =============================================================================

func (t *txView) Returns(ctx context.Context, ids []ledger.InvoiceID) ([]invoice.ReturnInvoice, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, invoice_id, direction, date, COALESCE(note, ''), total_amount, created_at
		FROM return_invoices
		WHERE invoice_id IN (`+placeholders(len(ids))+`)
		ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list returns: %w", err)
	}

	var out []invoice.ReturnInvoice
	for rows.Next() {
		var (
			r               invoice.ReturnInvoice
			date, createdAt string
		)
		if err := rows.Scan(&r.ID, &r.InvoiceID, &r.Direction, &date, &r.Note, &r.TotalAmount, &createdAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan return: %w", err)
		}
		r.Date = parseDate(date)
		r.CreatedAt = parseTimestamp(createdAt)
		out = append(out, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Lines are loaded after the cursor is closed; one connection may only
	// have a single statement in flight inside a transaction.
	for i := range out {
		out[i].Lines, err = t.lines(ctx, `
			SELECT product_id, quantity, unit_price FROM return_lines
			WHERE return_id = ? ORDER BY line_no`, out[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (t *txView) ReturnTotal(ctx context.Context, dir invoice.Direction) (decimal.Decimal, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT total_amount FROM return_invoices WHERE direction = ?`, dir)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum returns: %w", err)
	}
	defer rows.Close()

	sum := decimal.Zero
	for rows.Next() {
		var amount decimal.Decimal
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan return amount: %w", err)
		}
		sum = sum.Add(amount)
	}
	return sum, rows.Err()
}

func (t *txView) InsertReturn(ctx context.Context, ret *invoice.ReturnInvoice) error {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO return_invoices (invoice_id, direction, date, note, total_amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ret.InvoiceID, ret.Direction, formatDate(ret.Date), ret.Note,
		decimalArg(ret.TotalAmount), ret.CreatedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to insert return: %w", err)
	}
	if ret.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("failed to read return id: %w", err)
	}

	for i, l := range ret.Lines {
		if _, err := t.tx.ExecContext(ctx, `
			INSERT INTO return_lines (return_id, line_no, product_id, quantity, unit_price)
			VALUES (?, ?, ?, ?, ?)`,
			ret.ID, i, l.ProductID, l.Quantity, decimalArg(l.UnitPrice),
		); err != nil {
			return fmt.Errorf("failed to insert return line: %w", err)
		}
	}
	return nil
}

func (t *txView) lines(ctx context.Context, query string, args ...any) ([]invoice.Line, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load lines: %w", err)
	}
	defer rows.Close()

	var lines []invoice.Line
	for rows.Next() {
		var l invoice.Line
		if err := rows.Scan(&l.ProductID, &l.Quantity, &l.UnitPrice); err != nil {
			return nil, fmt.Errorf("failed to scan line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// =============================================================================
// PRODUCTS AND COUNTERPARTIES
// =============================================================================

func (t *txView) Product(ctx context.Context, id int64) (*invoice.Product, error) {
	var p invoice.Product
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, name, quantity, purchase_price, sale_price, version
		FROM products WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.Quantity, &p.PurchasePrice, &p.SalePrice, &p.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &p, nil
}

func (t *txView) Counterparty(ctx context.Context, id int64) (*invoice.Counterparty, error) {
	var c invoice.Counterparty
	err := t.tx.QueryRowContext(ctx, `SELECT id, kind, name FROM counterparties WHERE id = ?`, id).
		Scan(&c.ID, &c.Kind, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get counterparty: %w", err)
	}
	return &c, nil
}

// AdjustStock applies c only if the product is still at c.ExpectedVersion.
func (t *txView) AdjustStock(ctx context.Context, c invoice.StockChange) error {
	const op = "sqlite.AdjustStock"
	var price any
	if c.PurchasePrice != nil {
		price = decimalArg(*c.PurchasePrice)
	}
	res, err := t.tx.ExecContext(ctx, `
		UPDATE products
		SET quantity = quantity + ?,
			purchase_price = COALESCE(?, purchase_price),
			version = version + 1,
			updated_at = ?
		WHERE id = ? AND version = ? AND quantity + ? >= 0`,
		c.Delta, price, t.now().UTC().Format(timestampLayout), c.ProductID, c.ExpectedVersion, c.Delta,
	)
	if err != nil {
		return fmt.Errorf("failed to adjust stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to adjust stock: %w", err)
	}
	if n == 1 {
		return nil
	}

	p, err := t.Product(ctx, c.ProductID)
	if err != nil {
		return err
	}
	switch {
	case p == nil:
		return ledger.Validation(op, "product #%d does not exist", c.ProductID)
	case p.Version != c.ExpectedVersion:
		return ledger.Concurrency(op, "product #%d changed (version %d, expected %d)", c.ProductID, p.Version, c.ExpectedVersion)
	default:
		return ledger.Validation(op, "insufficient stock for product #%d: have %d, change %d", c.ProductID, p.Quantity, c.Delta)
	}
}
