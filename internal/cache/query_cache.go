// Package cache implements the read-through query cache with registry-based
// bulk invalidation. Every cache key written for a (table, tenant) pair is
// recorded in that pair's registry; a write to the pair blanks every
// registered entry in one pass, so no reader observes a post-write version
// with pre-write cached content. No external cache-scanning facility exists;
// the registry is the sole way to discover a pair's outstanding keys.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/alselawi/apexo-database/internal/store"
)

// QueryCache caches serialized query results in a KVCache backend, namespacing
// every entry by tenant.
type QueryCache struct {
	kv     store.KVCache
	ttl    time.Duration
	logger *zap.Logger
}

// New creates a new query cache. A zero ttl caches entries until they are
// invalidated.
func New(kv store.KVCache, ttl time.Duration, logger *zap.Logger) *QueryCache {
	return &QueryCache{
		kv:     kv,
		ttl:    ttl,
		logger: logger,
	}
}

// RequestKey derives a stable cache key from the shape of a read request.
// xxhash is fast and collision-resistant enough here: a collision causes a
// wrong cache hit within one tenant's namespace, never across tenants.
func RequestKey(method, path, rawQuery string) string {
	h := xxhash.New()
	h.WriteString(method)
	h.WriteString(" ")
	h.WriteString(path)
	h.WriteString("?")
	h.WriteString(rawQuery)
	return fmt.Sprintf("%016x", h.Sum64())
}

// Get returns the cached value for (tenant, key). A blank stored value means
// the entry was invalidated and is reported as a miss.
func (c *QueryCache) Get(ctx context.Context, tenant, key string) (string, bool, error) {
	value, err := c.kv.Get(ctx, entryKey(key, tenant))
	if errors.Is(err, store.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if value == "" {
		return "", false, nil
	}
	return value, true, nil
}

// Put stores value under (tenant, key) and records key in the (table, tenant)
// registry. The registry update is a read-modify-write; two concurrent Puts
// for the same pair can lose one key, leaving that entry unreachable by
// Nullify. The consequence is a stale cache entry, never row-store
// corruption.
func (c *QueryCache) Put(ctx context.Context, tenant, table, key, value string) error {
	if err := c.kv.Set(ctx, entryKey(key, tenant), value, c.ttl); err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}

	members, err := c.registryMembers(ctx, table, tenant)
	if err != nil {
		return err
	}
	members = append(members, key)
	return c.writeRegistry(ctx, table, tenant, members)
}

// Nullify blanks every cache entry registered for (table, tenant) and resets
// the registry. It must run after the underlying write completes and before
// the write's version is returned to the caller.
func (c *QueryCache) Nullify(ctx context.Context, tenant, table string) error {
	members, err := c.registryMembers(ctx, table, tenant)
	if err != nil {
		return err
	}

	for _, key := range members {
		if err := c.kv.Set(ctx, entryKey(key, tenant), "", c.ttl); err != nil {
			return fmt.Errorf("failed to blank cache entry: %w", err)
		}
	}

	if err := c.writeRegistry(ctx, table, tenant, []string{}); err != nil {
		return err
	}

	c.logger.Debug("Nullified cache entries",
		zap.String("tenant", tenant),
		zap.String("table", table),
		zap.Int("entries", len(members)))

	return nil
}

// registryMembers reads the current registry for (table, tenant). An absent
// or blanked registry means no outstanding keys.
func (c *QueryCache) registryMembers(ctx context.Context, table, tenant string) ([]string, error) {
	raw, err := c.kv.Get(ctx, registryKey(table, tenant))
	if errors.Is(err, store.ErrNotFound) || (err == nil && raw == "") {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache registry: %w", err)
	}

	var members []string
	if err := json.Unmarshal([]byte(raw), &members); err != nil {
		return nil, fmt.Errorf("failed to decode cache registry: %w", err)
	}
	return members, nil
}

func (c *QueryCache) writeRegistry(ctx context.Context, table, tenant string, members []string) error {
	raw, err := json.Marshal(members)
	if err != nil {
		return fmt.Errorf("failed to encode cache registry: %w", err)
	}
	if err := c.kv.Set(ctx, registryKey(table, tenant), string(raw), 0); err != nil {
		return fmt.Errorf("failed to write cache registry: %w", err)
	}
	return nil
}

// entryKey namespaces a cache key by tenant, so one tenant can never reach
// another tenant's entries.
func entryKey(key, tenant string) string {
	return key + "@" + tenant
}

func registryKey(table, tenant string) string {
	return "reg:" + table + "@" + tenant
}
