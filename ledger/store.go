/*
store.go - Persistence contracts for postings

PURPOSE:
  Defines the boundary between reconciliation logic and the database.
  Stores keep append-only semantics: there is no Update and no Delete.

KEY INTERFACES:
  Store:   Append, AppendBatch, Query
  TxStore: Store plus WithTx for atomic multi-write operations

ATOMIC BATCHES:
  AppendBatch() is all-or-nothing. Creating an invoice with a payment and
  a due amount writes two postings; either both exist or neither does.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - ledger/store/memory.go: In-memory for testing
*/
package ledger

import "context"

// Store handles persistence of postings.
// IMPORTANT: Store is APPEND-ONLY. No Update, No Delete. Ever.
type Store interface {
	// Append persists a posting and returns its id.
	Append(ctx context.Context, p Posting) (PostingID, error)

	// AppendBatch persists several postings atomically.
	AppendBatch(ctx context.Context, ps []Posting) ([]PostingID, error)

	// Query returns matching postings ordered by date, then creation time.
	Query(ctx context.Context, f Filter) ([]Posting, error)
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
