// Package schemata turns declarative Postgres table descriptors into
// executable SQL: DDL from schema.Table values, parameterized WHERE
// clauses from filter condition trees, and versioned migrations
// through the migrate engine. The Registry ties the pieces together:
// it compiles and caches column sets and hands out per-table Model
// handles bound to one driver.
package schemata

import (
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/silverstone-i/pg-schemata-sub000/dialect"
	"github.com/silverstone-i/pg-schemata-sub000/schema"
)

// Registry hands out table models backed by a single driver and owns
// the column-set cache they share. It is safe for concurrent use.
type Registry struct {
	drv       dialect.Driver
	cache     Cache
	log       *slog.Logger
	cacheSize int
	cacheTTL  time.Duration
	sf        singleflight.Group
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithCache replaces the default LRU cache with a caller-provided one.
func WithCache(c Cache) RegistryOption {
	return func(r *Registry) {
		r.cache = c
	}
}

// WithCacheSize bounds the default cache to n entries.
// Ignored when WithCache is also given.
func WithCacheSize(n int) RegistryOption {
	return func(r *Registry) {
		r.cacheSize = n
	}
}

// WithCacheTTL expires default-cache entries d after insertion.
// Ignored when WithCache is also given.
func WithCacheTTL(d time.Duration) RegistryOption {
	return func(r *Registry) {
		r.cacheTTL = d
	}
}

// WithLogger sets the logger used by the registry and the models it
// builds. Defaults to slog.Default.
func WithLogger(log *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.log = log
	}
}

// NewRegistry returns a registry that builds models on drv.
func NewRegistry(drv dialect.Driver, opts ...RegistryOption) *Registry {
	r := &Registry{
		drv:       drv,
		log:       slog.Default(),
		cacheSize: DefaultCacheSize,
		cacheTTL:  DefaultCacheTTL,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cache == nil {
		r.cache = NewLRUCache(r.cacheSize, r.cacheTTL)
	}
	return r
}

// Driver returns the driver the registry builds models on.
func (r *Registry) Driver() dialect.Driver {
	return r.drv
}

// Model validates and compiles t and returns a handle for running
// statements against it. The compiled column set is cached per
// (schema, table) key; concurrent first requests for one key share a
// single compilation.
//
// The cache memoizes immutable descriptor snapshots. Redefining a
// table under a key that is already cached requires Invalidate first,
// or the stale column set is served.
func (r *Registry) Model(t *schema.Table) (*Model, error) {
	if t == nil {
		return nil, schema.NewDefinitionError("", "", "table descriptor is required")
	}
	nt := t.Normalize()
	cs, err := r.columnSet(schema.ColumnSetKey(nt.Schema, nt.Name), nt)
	if err != nil {
		return nil, err
	}
	return &Model{
		drv:   r.drv,
		table: nt,
		cs:    cs,
		log:   r.log.With("table", displayName(nt)),
	}, nil
}

func (r *Registry) columnSet(key string, nt *schema.Table) (*schema.ColumnSet, error) {
	if cs, ok := r.cache.Get(key); ok {
		return cs, nil
	}
	v, err, _ := r.sf.Do(key, func() (any, error) {
		if cs, ok := r.cache.Get(key); ok {
			return cs, nil
		}
		cs, err := schema.CompileColumnSet(nt)
		if err != nil {
			return nil, err
		}
		r.cache.Set(key, cs)
		r.log.Debug("column set compiled",
			"key", key, "base", len(cs.Base), "insert", len(cs.Insert), "update", len(cs.Update))
		return cs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*schema.ColumnSet), nil
}

// Invalidate drops the cached column set for one table. Call it after
// redefining a descriptor under the same schema and table name.
func (r *Registry) Invalidate(schemaName, table string) {
	r.cache.Delete(schema.ColumnSetKey(schemaName, table))
}

// InvalidateSchema drops every cached column set under schemaName.
func (r *Registry) InvalidateSchema(schemaName string) {
	r.cache.DeletePrefix(schemaName + ".")
}
