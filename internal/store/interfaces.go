package store

import (
	"context"
	"errors"
	"time"

	"github.com/alselawi/apexo-database/internal/model"
)

// ErrNotFound is returned when a key is not found
var ErrNotFound = errors.New("not found")

// ErrEmptyID is returned when a row write carries an empty id
var ErrEmptyID = errors.New("row id must not be empty")

// MaxVariables bounds the number of ids per backend query, to respect query
// parameter ceilings. Larger id lists are split into chunks of this size.
const MaxVariables = 99

// RowStore is the keyed store of opaque row payloads, partitioned by tenant.
type RowStore interface {
	// PutRow idempotently overwrites the row. Empty ids are rejected.
	PutRow(ctx context.Context, tenant, table, id, payload string) error

	// GetRows returns the rows with the given ids belonging to tenant.
	// Ids are deduplicated and fetched in chunks of at most MaxVariables.
	// Missing ids are silently omitted.
	GetRows(ctx context.Context, tenant, table string, ids []string) ([]model.Row, error)

	// ScanRows returns rows in storage order, offset page*pageSize, limit
	// pageSize. A negative page or a page past the end yields an empty
	// slice, not an error.
	ScanRows(ctx context.Context, tenant, table string, page, pageSize int64) ([]model.Row, error)

	// DeleteRows removes the rows with the given ids. Ids are deduplicated
	// and deleted in chunks of at most MaxVariables. An empty list is a
	// no-op; callers reject empty-id deletes before reaching this layer.
	DeleteRows(ctx context.Context, tenant, table string, ids []string) error

	// DeleteAll erases every row and every change-log entry for the
	// tenant+table. Used only by the explicit reset path.
	DeleteAll(ctx context.Context, tenant, table string) error
}

// ChangeLog is the append-only per-table log of (version, ids) tuples.
type ChangeLog interface {
	// AppendChange records one entry. A call with no ids leaves no trace.
	AppendChange(ctx context.Context, tenant, table string, version int64, ids []string) error

	// ChangesSince returns all entries with version > the baseline, ordered
	// ascending by version. No entries is a valid, non-error result.
	ChangesSince(ctx context.Context, tenant, table string, version int64) ([]model.ChangeLogEntry, error)

	// LatestVersion returns the maximum version ever appended for the
	// tenant+table, or 0 if none exists.
	LatestVersion(ctx context.Context, tenant, table string) (int64, error)
}

// Store combines the row store and the change log, which share a backend.
type Store interface {
	RowStore
	ChangeLog

	// Ping checks the backend connection
	Ping(ctx context.Context) error
	Close()
}

// KVCache is the key/value backend underneath the query cache. No
// transactional cross-key guarantee is required of it.
type KVCache interface {
	// Get returns the stored value, or ErrNotFound when the key is absent.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key. A zero ttl means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Ping checks the backend connection
	Ping(ctx context.Context) error
	Close() error
}

// dedupe returns ids with duplicates removed, preserving first-seen order.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// chunk splits ids into slices of at most size elements.
func chunk(ids []string, size int) [][]string {
	if len(ids) == 0 {
		return nil
	}
	chunks := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
