package invoice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/warp/invoice-ledger/ledger"
)

// Cache holds reconciliation results keyed by invoice id. Every write that
// touches an invoice invalidates its entry after commit.
//
// Each id also has a generation that Invalidate and Clear advance. A reader takes
// the generation before its snapshot read and passes it to Set; Set drops
// the result if a write was invalidated in between, so a snapshot older
// than a committed write is never stored.
type Cache interface {
	Get(ctx context.Context, id ledger.InvoiceID) (*Reconciliation, bool, error)
	Generation(ctx context.Context, id ledger.InvoiceID) (uint64, error)
	// Set stores rec unless its invoice has moved past generation gen.
	Set(ctx context.Context, rec *Reconciliation, gen uint64) error
	Invalidate(ctx context.Context, ids ...ledger.InvoiceID) error
	// Clear drops every entry. Used when the store is reset.
	Clear(ctx context.Context) error
}

// NopCache never stores anything.
type NopCache struct{}

func (NopCache) Get(context.Context, ledger.InvoiceID) (*Reconciliation, bool, error) {
	return nil, false, nil
}
func (NopCache) Generation(context.Context, ledger.InvoiceID) (uint64, error) { return 0, nil }
func (NopCache) Set(context.Context, *Reconciliation, uint64) error           { return nil }
func (NopCache) Invalidate(context.Context, ...ledger.InvoiceID) error        { return nil }
func (NopCache) Clear(context.Context) error                                  { return nil }

// =============================================================================
// MEMORY CACHE
// =============================================================================

type MemoryCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[ledger.InvoiceID]memoryEntry
	gens    map[ledger.InvoiceID]uint64
	epoch   uint64 // advanced by Clear, added to every generation
	now     func() time.Time
}

type memoryEntry struct {
	rec     Reconciliation
	expires time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		ttl:     ttl,
		entries: make(map[ledger.InvoiceID]memoryEntry),
		gens:    make(map[ledger.InvoiceID]uint64),
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, id ledger.InvoiceID) (*Reconciliation, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	if !ok || c.now().After(e.expires) {
		return nil, false, nil
	}
	rec := e.rec
	return &rec, true, nil
}

func (c *MemoryCache) Generation(_ context.Context, id ledger.InvoiceID) (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.epoch + c.gens[id], nil
}

func (c *MemoryCache) Set(_ context.Context, rec *Reconciliation, gen uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch+c.gens[rec.Invoice.ID] != gen {
		return nil
	}
	c.entries[rec.Invoice.ID] = memoryEntry{rec: *rec, expires: c.now().Add(c.ttl)}
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, ids ...ledger.InvoiceID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.entries, id)
		c.gens[id]++
	}
	return nil
}

func (c *MemoryCache) Clear(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
	c.epoch++
	return nil
}

// =============================================================================
// REDIS CACHE
// =============================================================================

// RedisCache stores entries under reconciliation:<id>, per-id generations
// under reconciliation-gen:<id> and the Clear epoch under
// reconciliation-epoch. Set writes inside WATCH on both counters.
//
// Entries are plain encoding/json of Reconciliation, decimals quoted.
type RedisCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisCache(client redis.UniversalClient, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

const (
	reconciliationPrefix = "reconciliation:"
	generationPrefix     = "reconciliation-gen:"
	epochKey             = "reconciliation-epoch"
)

func reconciliationKey(id ledger.InvoiceID) string {
	return fmt.Sprintf("%s%d", reconciliationPrefix, id)
}

func generationKey(id ledger.InvoiceID) string {
	return fmt.Sprintf("%s%d", generationPrefix, id)
}

func (c *RedisCache) Get(ctx context.Context, id ledger.InvoiceID) (*Reconciliation, bool, error) {
	val, err := c.client.Get(ctx, reconciliationKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var rec Reconciliation
	if err := json.Unmarshal(val, &rec); err != nil {
		return nil, false, err
	}
	return &rec, true, nil
}

func (c *RedisCache) Generation(ctx context.Context, id ledger.InvoiceID) (uint64, error) {
	return readGeneration(ctx, c.client, id)
}

// readGeneration sums the epoch and id's counter; missing keys count as 0.
func readGeneration(ctx context.Context, r redis.Cmdable, id ledger.InvoiceID) (uint64, error) {
	vals, err := r.MGet(ctx, epochKey, generationKey(id)).Result()
	if err != nil {
		return 0, err
	}
	var gen uint64
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return 0, err
		}
		gen += n
	}
	return gen, nil
}

func (c *RedisCache) Set(ctx context.Context, rec *Reconciliation, gen uint64) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	id := rec.Invoice.ID
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := readGeneration(ctx, tx, id)
		if err != nil {
			return err
		}
		if cur != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, reconciliationKey(id), b, c.ttl)
			return nil
		})
		return err
	}, epochKey, generationKey(id))
	if errors.Is(err, redis.TxFailedErr) {
		// The generation moved while we were writing.
		return nil
	}
	return err
}

func (c *RedisCache) Invalidate(ctx context.Context, ids ...ledger.InvoiceID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := c.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, id := range ids {
			p.Incr(ctx, generationKey(id))
			p.Del(ctx, reconciliationKey(id))
		}
		return nil
	})
	return err
}

// Clear advances the epoch, then removes every entry, found with SCAN.
func (c *RedisCache) Clear(ctx context.Context) error {
	if err := c.client.Incr(ctx, epochKey).Err(); err != nil {
		return err
	}
	iter := c.client.Scan(ctx, 0, reconciliationPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
