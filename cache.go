package schemata

import (
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/silverstone-i/pg-schemata-sub000/schema"
)

// Default bounds for the registry-owned column-set cache.
const (
	DefaultCacheSize = 256
	DefaultCacheTTL  = time.Hour
)

// Cache stores compiled column sets between model constructions.
// Keys are schema.ColumnSetKey values ("<db schema>.<table>").
// Implementations must be safe for concurrent use. Entries are pure
// derivations of an immutable table descriptor, so eviction at any
// time is safe; the registry recomputes on a miss.
type Cache interface {
	// Get retrieves a compiled column set. ok is false on a miss.
	Get(key string) (cs *schema.ColumnSet, ok bool)

	// Set stores a compiled column set.
	Set(key string, cs *schema.ColumnSet)

	// Delete removes a single entry.
	Delete(key string)

	// DeletePrefix removes all entries whose key starts with prefix.
	// Used to drop every table of one database schema at once.
	DeletePrefix(prefix string)

	// Clear removes all entries.
	Clear()
}

// lruCache is the default Cache, bounded by entry count and age.
type lruCache struct {
	lru *expirable.LRU[string, *schema.ColumnSet]
}

// NewLRUCache returns a thread-safe Cache holding at most size entries,
// each expiring ttl after it was stored. size <= 0 means unbounded;
// ttl <= 0 means entries never expire.
func NewLRUCache(size int, ttl time.Duration) Cache {
	return &lruCache{lru: expirable.NewLRU[string, *schema.ColumnSet](size, nil, ttl)}
}

func (c *lruCache) Get(key string) (*schema.ColumnSet, bool) {
	return c.lru.Get(key)
}

func (c *lruCache) Set(key string, cs *schema.ColumnSet) {
	c.lru.Add(key, cs)
}

func (c *lruCache) Delete(key string) {
	c.lru.Remove(key)
}

func (c *lruCache) DeletePrefix(prefix string) {
	for _, key := range c.lru.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.lru.Remove(key)
		}
	}
}

func (c *lruCache) Clear() {
	c.lru.Purge()
}

var _ Cache = (*lruCache)(nil)
