package spatial

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

func bboxKey(bbox BBox) string {
	return fmt.Sprintf("%v:%v", bbox.Min, bbox.Max)
}

// CachedIndex wraps an Index with an LRU cache of recent bbox-query
// results, invalidated wholesale on every Insert/Remove since a single
// mutation can affect an unbounded number of cached regions.
type CachedIndex struct {
	inner Index
	cache *lru.Cache[string, []Entity]
	mu    sync.Mutex
}

// NewCachedIndex wraps inner with a bbox-result cache of the given
// capacity.
func NewCachedIndex(inner Index, capacity int) (*CachedIndex, error) {
	c, err := lru.New[string, []Entity](capacity)
	if err != nil {
		return nil, fmt.Errorf("constructing spatial query cache: %w", err)
	}

	return &CachedIndex{inner: inner, cache: c}, nil
}

func (c *CachedIndex) Insert(entity Entity) {
	c.mu.Lock()
	c.cache.Purge()
	c.mu.Unlock()

	c.inner.Insert(entity)
}

func (c *CachedIndex) Remove(id uint64) bool {
	c.mu.Lock()
	c.cache.Purge()
	c.mu.Unlock()

	return c.inner.Remove(id)
}

func (c *CachedIndex) QueryBBox(bbox BBox) []Entity {
	key := bboxKey(bbox)

	c.mu.Lock()
	if cached, ok := c.cache.Get(key); ok {
		c.mu.Unlock()
		return cached
	}
	c.mu.Unlock()

	results := c.inner.QueryBBox(bbox)

	c.mu.Lock()
	c.cache.Add(key, results)
	c.mu.Unlock()

	return results
}

func (c *CachedIndex) QueryPoint(point [3]float64) []Entity {
	return c.inner.QueryPoint(point)
}

func (c *CachedIndex) Nearest(point [3]float64, maxCount int) ([]Entity, error) {
	return c.inner.Nearest(point, maxCount)
}

func (c *CachedIndex) Stats() Stats {
	return c.inner.Stats()
}

func (c *CachedIndex) Len() int {
	return c.inner.Len()
}
