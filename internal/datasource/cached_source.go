package datasource

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/yourusername/factorlab/internal/metrics"
	"github.com/yourusername/factorlab/internal/models"
)

// CachedPriceSource memoizes price requests for a TTL
type CachedPriceSource struct {
	source    PriceSource
	cache     *cache.Cache
	hitCount  uint64
	missCount uint64
}

// NewCachedPriceSource wraps source with an in-memory cache
func NewCachedPriceSource(source PriceSource, ttl time.Duration) *CachedPriceSource {
	return &CachedPriceSource{
		source: source,
		cache:  cache.New(ttl, ttl*2),
	}
}

// Name returns the wrapped source's name
func (c *CachedPriceSource) Name() string {
	return c.source.Name()
}

// FetchPrices serves a cached frame for an identical request, fetching otherwise
func (c *CachedPriceSource) FetchPrices(ctx context.Context, tickers []string, start, end time.Time) (models.Frame, error) {
	key := strings.Join(tickers, ",") + "|" + rangeKey(start, end)
	if v, found := c.cache.Get(key); found {
		if frame, ok := v.(models.Frame); ok {
			atomic.AddUint64(&c.hitCount, 1)
			metrics.RecordPriceCacheHit()
			return frame, nil
		}
	}
	atomic.AddUint64(&c.missCount, 1)

	frame, err := c.source.FetchPrices(ctx, tickers, start, end)
	if err != nil {
		return models.Frame{}, err
	}
	c.cache.SetDefault(key, frame)
	return frame, nil
}

// Invalidate drops every cached entry
func (c *CachedPriceSource) Invalidate() {
	c.cache.Flush()
}

// Stats returns hit and miss counts
func (c *CachedPriceSource) Stats() (hits, misses uint64) {
	return atomic.LoadUint64(&c.hitCount), atomic.LoadUint64(&c.missCount)
}

// HitRate returns the fraction of requests served from cache
func (c *CachedPriceSource) HitRate() float64 {
	hits, misses := c.Stats()
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}
