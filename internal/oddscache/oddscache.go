// Per-group bounded odds cache and the fingerprint gate deciding whether a
// freshly computed payload is worth broadcasting.

package oddscache

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"sporthub/internal/entity"
)

// MaxEntries and TTL bound a group's odds cache: at most MaxEntries games
// tracked, entries older than TTL dropped.
const (
	MaxEntries = 1000
	TTL        = time.Hour
)

type entry struct {
	odds         []entity.OddsOutcome
	marketsCount int
	fp           string
}

// Cache is one group's bounded per-game odds cache, backed by an
// expirable LRU so both bounds (size and age) are enforced by the same
// structure instead of a hand-rolled sweep.
type Cache struct {
	lru *expirable.LRU[string, *entry]
}

func New() *Cache {
	return &Cache{lru: expirable.NewLRU[string, *entry](MaxEntries, nil, TTL)}
}

// Upsert compares (fp, marketsCount) against the cached entry for gameID.
// It returns true when the caller should emit an update for this game: the
// cache was empty for this game, or either field differs from what's
// cached. The cache is always refreshed, including on a no-op comparison,
// so unchanged entries still age correctly.
func (c *Cache) Upsert(gameID string, odds []entity.OddsOutcome, marketsCount int, fp string) bool {
	prev, ok := c.lru.Get(gameID)
	changed := !ok || prev.fp != fp || prev.marketsCount != marketsCount
	c.lru.Add(gameID, &entry{odds: odds, marketsCount: marketsCount, fp: fp})
	return changed
}

// Snapshot returns every currently cached, non-expired game's odds, for
// rebuilding the coalesced attach-replay payload.
func (c *Cache) Snapshot() []entity.OddsGameUpdate {
	keys := c.lru.Keys()
	out := make([]entity.OddsGameUpdate, 0, len(keys))
	for _, gameID := range keys {
		e, ok := c.lru.Get(gameID)
		if !ok {
			continue
		}
		out = append(out, entity.OddsGameUpdate{
			GameID:       gameID,
			Odds:         e.odds,
			MarketsCount: e.marketsCount,
		})
	}
	return out
}

// Len reports the number of tracked games.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Gate additionally tracks the last-sent fingerprint for a whole-payload
// emission (games snapshots, counts), independent of the per-game odds
// cache above. It is safe to embed one Gate per group per event kind.
type Gate struct {
	mu     sync.Mutex
	lastFp string
	sent   bool
}

// ShouldEmit reports whether a payload with this fingerprint is worth
// sending: either this is the first payload after attach, or the
// fingerprint differs from the last one sent. Updates the retained
// fingerprint as a side effect when it returns true.
func (g *Gate) ShouldEmit(fp string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.sent || g.lastFp != fp {
		g.lastFp = fp
		g.sent = true
		return true
	}
	return false
}

// Reset clears the gate's memory, used when a group's upstream subscription
// is re-established after a disconnect and the next payload must always be
// treated as "first after attach".
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = false
	g.lastFp = ""
}
