package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/portalo/portalo/internal/metrics"
	"github.com/portalo/portalo/internal/model"
)

const (
	DefaultLinkCacheSize = 1024
	DefaultLinkCacheTTL  = 5 * time.Minute
)

// LinkLoader resolves link metadata from the system of record.
type LinkLoader interface {
	LinksByIDs(ctx context.Context, ids []string) (map[string]model.LinkMeta, error)
}

// LinkMetaCache is an in-process LRU of link titles and URLs. Only links
// that exist are cached, so a newly created link is seen on the next miss.
type LinkMetaCache struct {
	lru     *expirable.LRU[string, model.LinkMeta]
	loader  LinkLoader
	metrics metrics.Recorder
}

// NewLinkMetaCache creates a new LinkMetaCache. Non-positive size or ttl
// take the defaults.
func NewLinkMetaCache(loader LinkLoader, size int, ttl time.Duration, recorder metrics.Recorder) *LinkMetaCache {
	if size <= 0 {
		size = DefaultLinkCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultLinkCacheTTL
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &LinkMetaCache{
		lru:     expirable.NewLRU[string, model.LinkMeta](size, nil, ttl),
		loader:  loader,
		metrics: recorder,
	}
}

// LinksByIDs serves cached entries and loads the rest in one batch.
func (c *LinkMetaCache) LinksByIDs(ctx context.Context, ids []string) (map[string]model.LinkMeta, error) {
	out := make(map[string]model.LinkMeta, len(ids))
	var missing []string

	for _, id := range ids {
		if meta, ok := c.lru.Get(id); ok {
			out[id] = meta
			c.metrics.IncCacheHit("link")
			continue
		}
		missing = append(missing, id)
		c.metrics.IncCacheMiss("link")
	}

	if len(missing) == 0 {
		return out, nil
	}

	loaded, err := c.loader.LinksByIDs(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("load link metadata: %w", err)
	}
	for id, meta := range loaded {
		c.lru.Add(id, meta)
		out[id] = meta
	}
	return out, nil
}
