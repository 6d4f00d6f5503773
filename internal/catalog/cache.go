package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/angelmondragon/storefront-backoffice/pkg/logger"
	"github.com/angelmondragon/storefront-backoffice/pkg/redis"
)

const defaultCacheTTL = 5 * time.Minute

// CachedLookup reads snapshots through a redis cache. Cache failures are
// logged and never fail the lookup. Entries live until the TTL expires or the
// stock ledger invalidates them on retirement.
type CachedLookup struct {
	next  Lookup
	cache redis.CacheStore
	ttl   time.Duration
	logg  *logger.Logger
}

// NewCachedLookup wraps next with a read-through cache.
func NewCachedLookup(next Lookup, cache redis.CacheStore, ttl time.Duration, logg *logger.Logger) (*CachedLookup, error) {
	if next == nil {
		return nil, errors.New("catalog lookup required")
	}
	if cache == nil {
		return nil, errors.New("cache store required")
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachedLookup{next: next, cache: cache, ttl: ttl, logg: logg}, nil
}

func (c *CachedLookup) ResolveStockUnit(ctx context.Context, unitPublicID string) (*StockUnitSnapshot, error) {
	key := c.cache.CatalogKey("stock_unit", unitPublicID)

	raw, err := c.cache.Get(ctx, key)
	switch {
	case err == nil:
		var snapshot StockUnitSnapshot
		if jsonErr := json.Unmarshal([]byte(raw), &snapshot); jsonErr == nil {
			return &snapshot, nil
		}
		c.warn(ctx, key, "discarding malformed catalog cache entry")
	case !redis.IsMiss(err):
		c.warn(ctx, key, "catalog cache read failed")
	}

	snapshot, err := c.next.ResolveStockUnit(ctx, unitPublicID)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(snapshot)
	if err == nil {
		err = c.cache.Set(ctx, key, payload, c.ttl)
	}
	if err != nil {
		c.warn(ctx, key, "catalog cache write failed")
	}
	return snapshot, nil
}

// CurrentTerms always goes to the wrapped lookup.
func (c *CachedLookup) CurrentTerms(ctx context.Context, unitPublicID string) (*LiveTerms, error) {
	return c.next.CurrentTerms(ctx, unitPublicID)
}

// Invalidate drops the cached snapshot for a stock unit.
func (c *CachedLookup) Invalidate(ctx context.Context, unitPublicID string) error {
	return c.cache.Del(ctx, c.cache.CatalogKey("stock_unit", unitPublicID))
}

func (c *CachedLookup) warn(ctx context.Context, key, msg string) {
	if c.logg == nil {
		return
	}
	c.logg.Warn(c.logg.WithField(ctx, "cache_key", key), msg)
}
