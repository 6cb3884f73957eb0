// Package store provides in-process ledger.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/invoice-ledger/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	postings []ledger.Posting
	ids      map[ledger.PostingID]bool
}

func NewMemory() *Memory {
	return &Memory{ids: make(map[ledger.PostingID]bool)}
}

// Append adds a single posting. Append-only.
func (m *Memory) Append(_ context.Context, p ledger.Posting) (ledger.PostingID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(p)
}

// AppendBatch adds multiple postings atomically.
func (m *Memory) AppendBatch(_ context.Context, ps []ledger.Posting) ([]ledger.PostingID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Check all ids first (atomic check)
	batch := make(map[ledger.PostingID]bool, len(ps))
	for _, p := range ps {
		if p.ID == "" {
			continue
		}
		if m.ids[p.ID] || batch[p.ID] {
			return nil, ledger.Validation("memory.AppendBatch", "duplicate posting id %s", p.ID)
		}
		batch[p.ID] = true
	}

	ids := make([]ledger.PostingID, 0, len(ps))
	for _, p := range ps {
		id, err := m.appendLocked(p)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *Memory) appendLocked(p ledger.Posting) (ledger.PostingID, error) {
	if p.ID == "" {
		p.ID = ledger.NewPostingID()
	}
	if m.ids[p.ID] {
		return "", ledger.Validation("memory.Append", "duplicate posting id %s", p.ID)
	}

	// Binary search for insertion point keeps postings ordered by date.
	i := sort.Search(len(m.postings), func(i int) bool {
		return m.postings[i].Date.After(p.Date)
	})
	m.postings = append(m.postings, ledger.Posting{})
	copy(m.postings[i+1:], m.postings[i:])
	m.postings[i] = p
	m.ids[p.ID] = true
	return p.ID, nil
}

func (m *Memory) Query(_ context.Context, f ledger.Filter) ([]ledger.Posting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.queryLocked(f), nil
}

func (m *Memory) queryLocked(f ledger.Filter) []ledger.Posting {
	var result []ledger.Posting
	for _, p := range m.postings {
		if f.Matches(p) {
			result = append(result, p)
		}
	}
	return result
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	postings := append([]ledger.Posting(nil), tm.postings...)
	ids := make(map[ledger.PostingID]bool, len(tm.ids))
	for k, v := range tm.ids {
		ids[k] = v
	}

	if err := fn(&txMemoryView{parent: tm}); err != nil {
		tm.postings = postings
		tm.ids = ids
		return err
	}
	return nil
}

type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) Append(_ context.Context, p ledger.Posting) (ledger.PostingID, error) {
	return tv.parent.appendLocked(p)
}

func (tv *txMemoryView) AppendBatch(_ context.Context, ps []ledger.Posting) ([]ledger.PostingID, error) {
	ids := make([]ledger.PostingID, 0, len(ps))
	for _, p := range ps {
		id, err := tv.parent.appendLocked(p)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (tv *txMemoryView) Query(_ context.Context, f ledger.Filter) ([]ledger.Posting, error) {
	return tv.parent.queryLocked(f), nil
}
