package invoice

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bsm/redislock"

	"github.com/warp/invoice-ledger/ledger"
)

// StockLocker serializes stock read-modify-write per product. Lock acquires
// every id (in ascending order, so two callers never deadlock) and returns
// a function releasing them all.
type StockLocker interface {
	Lock(ctx context.Context, productIDs []int64) (unlock func(), err error)
}

// sortedUnique returns ids ascending without duplicates.
func sortedUnique(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// =============================================================================
// KEYED MUTEX - In-process per-product locks
// =============================================================================

type KeyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[int64]*refMutex)}
}

func (k *KeyedMutex) Lock(_ context.Context, productIDs []int64) (func(), error) {
	ids := sortedUnique(productIDs)
	held := make([]int64, 0, len(ids))
	for _, id := range ids {
		k.acquire(id).Lock()
		held = append(held, id)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			k.release(held[i])
		}
	}, nil
}

func (k *KeyedMutex) acquire(id int64) *refMutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	m, ok := k.locks[id]
	if !ok {
		m = &refMutex{}
		k.locks[id] = m
	}
	m.refs++
	return m
}

func (k *KeyedMutex) release(id int64) {
	k.mu.Lock()
	defer k.mu.Unlock()
	m := k.locks[id]
	m.Unlock()
	m.refs--
	if m.refs == 0 {
		delete(k.locks, id)
	}
}

// =============================================================================
// REDIS LOCKER - Per-product locks shared by every server instance
// =============================================================================

type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	retry  redislock.RetryStrategy
}

// NewRedisLocker locks products through client. ttl bounds how long a
// crashed holder can block a product.
func NewRedisLocker(client *redislock.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		client: client,
		ttl:    ttl,
		retry:  redislock.LimitRetry(redislock.LinearBackoff(50*time.Millisecond), 40),
	}
}

func (r *RedisLocker) Lock(ctx context.Context, productIDs []int64) (func(), error) {
	ids := sortedUnique(productIDs)
	held := make([]*redislock.Lock, 0, len(ids))
	unlock := func() {
		for i := len(held) - 1; i >= 0; i-- {
			_ = held[i].Release(context.Background())
		}
	}
	for _, id := range ids {
		lock, err := r.client.Obtain(ctx, fmt.Sprintf("lock:product:%d", id), r.ttl, &redislock.Options{RetryStrategy: r.retry})
		if err != nil {
			unlock()
			if errors.Is(err, redislock.ErrNotObtained) {
				return nil, ledger.Concurrency("invoice.RedisLocker", "product %d is locked by another writer", id)
			}
			return nil, ledger.Persistence("invoice.RedisLocker", err)
		}
		held = append(held, lock)
	}
	return unlock, nil
}
