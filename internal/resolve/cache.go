package resolve

import (
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/openauto/dealerdesk/internal/domain"
)

type cacheKey struct {
	t  domain.EntityType
	id string
}

// Cache memoizes fetched records for one logical operation. It is write-once
// per key and discarded when the operation ends, so staleness is bounded to a
// single user action. The embedded single-flight group guarantees that two
// branches of a resolution graph never issue two network calls for one key.
type Cache struct {
	mu      sync.Mutex
	entries map[cacheKey]domain.Record
	flight  singleflight.Group
}

// NewCache creates an empty per-operation cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[cacheKey]domain.Record)}
}

// Get returns the cached record for (t, id), if any.
func (c *Cache) Get(t domain.EntityType, id string) (domain.Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.entries[cacheKey{t: t, id: id}]
	return rec, ok
}

// put stores a record unless the key is already present.
func (c *Cache) put(t domain.EntityType, id string, rec domain.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := cacheKey{t: t, id: id}
	if _, ok := c.entries[k]; !ok {
		c.entries[k] = rec
	}
}

// do runs fn under the single-flight guard for (t, id).
func (c *Cache) do(t domain.EntityType, id string, fn func() (any, error)) (any, error) {
	v, err, _ := c.flight.Do(string(t)+":"+id, fn)
	return v, err
}
