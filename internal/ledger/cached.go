package ledger

import (
	"context"
	"sync"
	"time"

	"reminders/internal/domain"

	"github.com/patrickmn/go-cache"
)

const listCacheKey = "\x00list"

// CachedLedger is a read-through cache in front of a persisted ledger.
// Params: backing ledger and go-cache instance.
// Returns: ledger whose reads may be served locally; every write flushes the cache.
//
// Reads remember the generation they started in and are not cached if a write
// finished meanwhile, so a read racing a mark cannot pin a stale answer.
type CachedLedger struct {
	next  Ledger
	cache *cache.Cache

	mu  sync.Mutex
	gen uint64
}

// NewCachedLedger wraps next with a TTL cache.
// Params: backing ledger and entry lifetime.
// Returns: cached ledger.
func NewCachedLedger(next Ledger, ttl time.Duration) *CachedLedger {
	return &CachedLedger{next: next, cache: cache.New(ttl, 2*ttl)}
}

// IsSent answers from cache or the backing ledger.
// Params: message id.
// Returns: presence flag.
func (c *CachedLedger) IsSent(ctx context.Context, messageID string) (bool, error) {
	if cached, ok := c.cache.Get(messageID); ok {
		return cached.(bool), nil
	}
	gen := c.generation()
	sent, err := c.next.IsSent(ctx, messageID)
	if err != nil {
		return false, err
	}
	c.store(gen, messageID, sent)
	return sent, nil
}

// Get always reads the backing ledger.
// Params: message id.
// Returns: record or ErrNotFound.
func (c *CachedLedger) Get(ctx context.Context, messageID string) (domain.SentMessageRecord, error) {
	return c.next.Get(ctx, messageID)
}

// MarkSent writes through and flushes cached answers.
// Params: record to store.
// Returns: backing ledger error.
func (c *CachedLedger) MarkSent(ctx context.Context, record domain.SentMessageRecord) error {
	defer c.invalidate()
	return c.next.MarkSent(ctx, record)
}

// UnmarkSent writes through and flushes cached answers.
// Params: message id.
// Returns: backing ledger error.
func (c *CachedLedger) UnmarkSent(ctx context.Context, messageID string) error {
	defer c.invalidate()
	return c.next.UnmarkSent(ctx, messageID)
}

// List answers from cache or the backing ledger.
// Params: context.
// Returns: copy of the record list.
func (c *CachedLedger) List(ctx context.Context) ([]domain.SentMessageRecord, error) {
	if cached, ok := c.cache.Get(listCacheKey); ok {
		return append([]domain.SentMessageRecord(nil), cached.([]domain.SentMessageRecord)...), nil
	}
	gen := c.generation()
	records, err := c.next.List(ctx)
	if err != nil {
		return nil, err
	}
	c.store(gen, listCacheKey, append([]domain.SentMessageRecord(nil), records...))
	return records, nil
}

func (c *CachedLedger) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// store caches value only when no write finished since gen was taken.
func (c *CachedLedger) store(gen uint64, key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen == gen {
		c.cache.SetDefault(key, value)
	}
}

func (c *CachedLedger) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.cache.Flush()
}

// Close flushes the cache and closes the backing ledger.
// Params: none.
// Returns: backing close error.
func (c *CachedLedger) Close() error {
	c.cache.Flush()
	return c.next.Close()
}
