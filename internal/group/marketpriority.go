// Dynamic per-sport main-market priority list, cached 12h and prepended to
// the static fallback.

package group

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const marketPriorityTTL = 12 * time.Hour

// PriorityFetcher retrieves the upstream's dynamic market-type priority
// list for one sport. A legitimately empty result is not an error.
type PriorityFetcher interface {
	FetchMarketPriority(ctx context.Context, sportID string) ([]string, error)
}

// marketPriorityCache holds the merged (dynamic + fallback) priority list
// per sport, refreshed at most once per TTL.
type marketPriorityCache struct {
	lru     *expirable.LRU[string, []string]
	fetcher PriorityFetcher
}

func newMarketPriorityCache(fetcher PriorityFetcher) *marketPriorityCache {
	return &marketPriorityCache{
		lru:     expirable.NewLRU[string, []string](256, nil, marketPriorityTTL),
		fetcher: fetcher,
	}
}

// Get returns the merged priority list for sportID, fetching and caching it
// if absent or expired. A fetch error falls back to the static list alone
// rather than failing the caller.
func (c *marketPriorityCache) Get(ctx context.Context, sportID string) []string {
	fallback := defaultMarketPriority(sportID)
	if cached, ok := c.lru.Get(sportID); ok {
		return cached
	}
	if c.fetcher == nil {
		return fallback
	}
	dynamic, err := c.fetcher.FetchMarketPriority(ctx, sportID)
	if err != nil {
		return fallback
	}
	merged := mergePriority(dynamic, fallback)
	c.lru.Add(sportID, merged)
	return merged
}
