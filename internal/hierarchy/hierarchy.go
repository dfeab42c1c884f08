// Process-local cache of the sport/region/competition taxonomy, TTL 30
// minutes with stale-while-revalidate.

package hierarchy

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"sporthub/internal/entity"
	"sporthub/pkg/db"
	"sporthub/pkg/log"
)

// TTL is how long a cached taxonomy document is served without refresh.
const TTL = 30 * time.Minute

const redisKey = "sporthub:hierarchy"

// Fetcher retrieves a fresh taxonomy document from upstream. Implemented by
// whatever issues the upstream request; kept as an interface here so this
// package has no dependency on internal/upstream.
type Fetcher interface {
	FetchHierarchy(ctx context.Context) (entity.HierarchyDoc, error)
}

type persisted struct {
	CachedAtMs int64               `json:"cachedAtMs"`
	Data       entity.HierarchyDoc `json:"data"`
}

// Cache holds the current taxonomy document, refreshing it on read once TTL
// has elapsed. A failed or empty refresh retains the previous value rather
// than blanking the cache (stale-while-revalidate).
type Cache struct {
	mu        sync.RWMutex
	doc       entity.HierarchyDoc
	fetchedAt time.Time
	index     entity.NameIndex

	fetcher Fetcher
	db      *db.RedisDB
	logger  log.Logger
}

func New(fetcher Fetcher, redisDB *db.RedisDB, logger log.Logger) *Cache {
	return &Cache{fetcher: fetcher, db: redisDB, logger: logger}
}

// Get returns the current document and whether it was served from cache
// (as opposed to a fresh refresh), refreshing first if TTL has elapsed.
func (c *Cache) Get(ctx context.Context, forceRefresh bool) (entity.HierarchyDoc, bool) {
	c.mu.RLock()
	stale := forceRefresh || time.Since(c.fetchedAt) > TTL
	doc := c.doc
	c.mu.RUnlock()

	if !stale {
		return doc, true
	}

	fresh, err := c.fetcher.FetchHierarchy(ctx)
	if err != nil || len(fresh.Sports) == 0 {
		// Feed glitch or fetch error: keep serving what we have.
		if err != nil {
			c.logger.WithCtx(ctx).Warn().Err(err).Msg("hierarchy: refresh failed, serving stale cache")
		}
		c.mu.RLock()
		defer c.mu.RUnlock()
		return c.doc, !c.fetchedAt.IsZero()
	}

	c.mu.Lock()
	c.doc = fresh
	c.fetchedAt = time.Now()
	c.index = buildIndex(fresh)
	c.mu.Unlock()

	c.persist(ctx, fresh)
	return fresh, false
}

// Index returns the name index derived from the currently cached document.
// It is rebuilt whenever the cache is replaced, never mutated in place.
func (c *Cache) Index() entity.NameIndex {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index
}

func buildIndex(doc entity.HierarchyDoc) entity.NameIndex {
	idx := entity.NameIndex{
		Sports:       make(map[string]string),
		Regions:      make(map[string]string),
		Competitions: make(map[string]string),
	}
	for _, sport := range doc.Sports {
		idx.Sports[sport.ID] = sport.Name
		for _, region := range sport.Region {
			idx.Regions[region.ID] = region.Name
			for _, comp := range region.Competition {
				idx.Competitions[comp.ID] = comp.Name
			}
		}
	}
	return idx
}

// persist writes the cache to Redis, best-effort: a persistence failure
// never affects the in-memory cache; this durable copy exists only to
// warm-start the next process.
func (c *Cache) persist(ctx context.Context, doc entity.HierarchyDoc) {
	if c.db == nil {
		return
	}
	body, err := json.Marshal(persisted{CachedAtMs: time.Now().UnixMilli(), Data: doc})
	if err != nil {
		return
	}
	if err := c.db.Client().Set(ctx, redisKey, body, 0).Err(); err != nil {
		c.logger.WithCtx(ctx).Warn().Err(err).Msg("hierarchy: persistence flush failed")
	}
}

// LoadPersisted warm-starts the cache from Redis at process start, treating
// the loaded document as already-fetched-once so the first serve doesn't
// have to wait on upstream.
func (c *Cache) LoadPersisted(ctx context.Context) {
	if c.db == nil {
		return
	}
	body, err := c.db.Client().Get(ctx, redisKey).Bytes()
	if err != nil {
		return
	}
	var p persisted
	if err := json.Unmarshal(body, &p); err != nil {
		return
	}
	c.mu.Lock()
	c.doc = p.Data
	c.fetchedAt = time.UnixMilli(p.CachedAtMs)
	c.index = buildIndex(p.Data)
	c.mu.Unlock()
}
