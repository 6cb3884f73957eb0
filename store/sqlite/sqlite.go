/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements ledger.TxStore and invoice.Store on one database so that an
  invoice, its lines, its postings and the stock changes it causes commit
  in a single transaction.

INTERFACES IMPLEMENTED:
  ledger.TxStore:  Posting persistence (append-only)
  invoice.Store:   View (snapshot reads) and Update (atomic writes)

APPEND-ONLY ENFORCEMENT:
  - No UPDATE or DELETE statement on postings exists in this package
  - Triggers abort any UPDATE or DELETE on postings issued by anyone else
  - Corrections are offsetting postings only

KEY TABLES:
  postings:        Immutable ledger
  invoices:        Purchase and sale invoice headers (one id sequence)
  invoice_lines:   Frozen line items
  return_invoices: Returns referencing an invoice
  return_lines:    Returned items
  products:        Stock on hand, last purchase price, CAS version
  counterparties:  Suppliers and customers

SNAPSHOTS:
  View runs inside a read transaction. With WAL journaling SQLite keeps the
  snapshot taken at the first read for the life of the transaction, so
  every read in a View observes the same committed state.

CONCURRENCY:
  Writers are serialized by a mutex (SQLite allows one writer at a time).
  Product stock updates are compare-and-set on a version column.

MONEY:
  Amounts are stored as decimal strings and scanned with decimal.Decimal's
  sql.Scanner. SUM() in SQL would go through floating point, so sums are
  computed in Go.

SEE ALSO:
  - ledger/store.go: Posting store contract
  - invoice/store.go: Invoice store contract
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/invoice-ledger/invoice"
	"github.com/warp/invoice-ledger/ledger"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db  *sql.DB
	mu  sync.RWMutex
	now func() time.Time
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, now: time.Now}
	if err := store.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

const schema = `
	-- Postings (append-only ledger)
	CREATE TABLE IF NOT EXISTS postings (
		id TEXT PRIMARY KEY,
		debit_account_id INTEGER NOT NULL,
		credit_account_id INTEGER NOT NULL,
		amount TEXT NOT NULL,
		posting_type TEXT NOT NULL,
		related_invoice_id INTEGER NOT NULL,
		date TEXT NOT NULL,
		particulars TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_postings_related
		ON postings(related_invoice_id, posting_type);
	CREATE INDEX IF NOT EXISTS idx_postings_type
		ON postings(posting_type);

	CREATE TRIGGER IF NOT EXISTS trg_postings_no_update
		BEFORE UPDATE ON postings
		BEGIN SELECT RAISE(ABORT, 'postings are append-only'); END;
	CREATE TRIGGER IF NOT EXISTS trg_postings_no_delete
		BEFORE DELETE ON postings
		BEGIN SELECT RAISE(ABORT, 'postings are append-only'); END;

	-- Counterparties (suppliers and customers)
	CREATE TABLE IF NOT EXISTS counterparties (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Products
	CREATE TABLE IF NOT EXISTS products (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		quantity INTEGER NOT NULL DEFAULT 0,
		purchase_price TEXT NOT NULL DEFAULT '0',
		sale_price TEXT NOT NULL DEFAULT '0',
		version INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Invoices (purchase and sale share one id sequence)
	CREATE TABLE IF NOT EXISTS invoices (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		direction TEXT NOT NULL,
		date TEXT NOT NULL,
		counterparty_id INTEGER NOT NULL REFERENCES counterparties(id),
		note TEXT,
		memo_no TEXT,
		total_amount TEXT NOT NULL,
		discount TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Listing hot path: direction + date range, newest id first
	CREATE INDEX IF NOT EXISTS idx_invoices_direction_date
		ON invoices(direction, date, id DESC);

	CREATE TABLE IF NOT EXISTS invoice_lines (
		invoice_id INTEGER NOT NULL REFERENCES invoices(id),
		line_no INTEGER NOT NULL,
		product_id INTEGER NOT NULL REFERENCES products(id),
		quantity INTEGER NOT NULL,
		unit_price TEXT NOT NULL,
		PRIMARY KEY (invoice_id, line_no)
	);

	-- Returns
	CREATE TABLE IF NOT EXISTS return_invoices (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		invoice_id INTEGER NOT NULL REFERENCES invoices(id),
		direction TEXT NOT NULL,
		date TEXT NOT NULL,
		note TEXT,
		total_amount TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_return_invoices_invoice
		ON return_invoices(invoice_id);

	CREATE TABLE IF NOT EXISTS return_lines (
		return_id INTEGER NOT NULL REFERENCES return_invoices(id),
		line_no INTEGER NOT NULL,
		product_id INTEGER NOT NULL REFERENCES products(id),
		quantity INTEGER NOT NULL,
		unit_price TEXT NOT NULL,
		PRIMARY KEY (return_id, line_no)
	);
`

// migrate creates the database schema.
func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// =============================================================================
// UNITS OF WORK (invoice.Store)
// =============================================================================

// View runs fn in a read transaction.
func (s *Store) View(ctx context.Context, fn func(invoice.Reader) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin read transaction: %w", err)
	}
	defer sqlTx.Rollback()

	return fn(&txView{tx: sqlTx, now: s.now})
}

// Update runs fn in a write transaction, committing only if fn succeeds.
func (s *Store) Update(ctx context.Context, fn func(invoice.Writer) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txView{tx: sqlTx, now: s.now}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// =============================================================================
// POSTING STORE (ledger.TxStore)
// =============================================================================

// Append adds a posting to the ledger.
func (s *Store) Append(ctx context.Context, p ledger.Posting) (ledger.PostingID, error) {
	var id ledger.PostingID
	err := s.Update(ctx, func(w invoice.Writer) error {
		var err error
		id, err = w.Append(ctx, p)
		return err
	})
	return id, err
}

// AppendBatch adds multiple postings atomically.
func (s *Store) AppendBatch(ctx context.Context, ps []ledger.Posting) ([]ledger.PostingID, error) {
	var ids []ledger.PostingID
	err := s.Update(ctx, func(w invoice.Writer) error {
		var err error
		ids, err = w.AppendBatch(ctx, ps)
		return err
	})
	return ids, err
}

func (s *Store) Query(ctx context.Context, f ledger.Filter) ([]ledger.Posting, error) {
	var ps []ledger.Posting
	err := s.View(ctx, func(r invoice.Reader) error {
		var err error
		ps, err = r.Query(ctx, f)
		return err
	})
	return ps, err
}

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	return s.Update(ctx, func(w invoice.Writer) error { return fn(w) })
}

// =============================================================================
// CATALOG (products and counterparties)
// =============================================================================

func (s *Store) CreateProduct(ctx context.Context, p *invoice.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC().Format(timestampLayout)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO products (name, quantity, purchase_price, sale_price, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)`,
		p.Name, p.Quantity, p.PurchasePrice.String(), p.SalePrice.String(), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	p.ID, err = res.LastInsertId()
	p.Version = 0
	return err
}

func (s *Store) GetProduct(ctx context.Context, id int64) (*invoice.Product, error) {
	var p *invoice.Product
	err := s.View(ctx, func(r invoice.Reader) error {
		var err error
		p, err = r.Product(ctx, id)
		return err
	})
	return p, err
}

func (s *Store) ListProducts(ctx context.Context) ([]invoice.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, quantity, purchase_price, sale_price, version
		FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []invoice.Product
	for rows.Next() {
		var p invoice.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Quantity, &p.PurchasePrice, &p.SalePrice, &p.Version); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *Store) CreateCounterparty(ctx context.Context, c *invoice.Counterparty) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO counterparties (kind, name, created_at) VALUES (?, ?, ?)`,
		c.Kind, c.Name, s.now().UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to create counterparty: %w", err)
	}
	c.ID, err = res.LastInsertId()
	return err
}

func (s *Store) ListCounterparties(ctx context.Context, kind invoice.CounterpartyKind) ([]invoice.Counterparty, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, kind, name FROM counterparties`
	var args []any
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, kind)
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list counterparties: %w", err)
	}
	defer rows.Close()

	var out []invoice.Counterparty
	for rows.Next() {
		var c invoice.Counterparty
		if err := rows.Scan(&c.ID, &c.Kind, &c.Name); err != nil {
			return nil, fmt.Errorf("failed to scan counterparty: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset drops and recreates every table (for demo scenarios). Dropping is
// the only way past the append-only triggers.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"return_lines", "return_invoices", "invoice_lines", "invoices", "postings", "products", "counterparties"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return fmt.Errorf("failed to drop %s: %w", table, err)
		}
	}
	return s.migrate(ctx)
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func formatDate(t time.Time) string {
	return t.Format(ledger.DateLayout)
}

func parseDate(s string) time.Time {
	t, _ := ledger.ParseDate(s)
	return t
}

// timestampLayout is fixed width so created_at sorts as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func parseTimestamp(s string) time.Time {
	t, _ := time.Parse(timestampLayout, s)
	return t
}

// decimalArg stores amounts as their exact string form.
func decimalArg(d decimal.Decimal) string {
	return d.String()
}
