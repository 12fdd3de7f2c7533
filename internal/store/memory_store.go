package store

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/alselawi/apexo-database/internal/model"
)

// MemoryStore implements Store using in-memory maps. It backs the memory
// storage driver and the unit tests; semantics match PostgresStore, including
// id-ordered scans.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[partition]map[string]string
	log  map[partition][]model.ChangeLogEntry
}

type partition struct {
	tenant string
	table  string
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows: make(map[partition]map[string]string),
		log:  make(map[partition][]model.ChangeLogEntry),
	}
}

// PutRow idempotently overwrites a row
func (s *MemoryStore) PutRow(ctx context.Context, tenant, table, id, payload string) error {
	if id == "" {
		return ErrEmptyID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := partition{tenant, table}
	if s.rows[p] == nil {
		s.rows[p] = make(map[string]string)
	}
	s.rows[p][id] = payload
	return nil
}

// GetRows returns the rows with the given ids belonging to tenant
func (s *MemoryStore) GetRows(ctx context.Context, tenant, table string, ids []string) ([]model.Row, error) {
	ids = dedupe(ids)

	s.mu.RLock()
	defer s.mu.RUnlock()

	part := s.rows[partition{tenant, table}]
	result := make([]model.Row, 0, len(ids))
	for _, batch := range chunk(ids, MaxVariables) {
		for _, id := range batch {
			payload, ok := part[id]
			if !ok {
				continue
			}
			result = append(result, model.Row{ID: id, Tenant: tenant, Payload: payload})
		}
	}
	return result, nil
}

// ScanRows returns one page of rows in id order
func (s *MemoryStore) ScanRows(ctx context.Context, tenant, table string, page, pageSize int64) ([]model.Row, error) {
	if page < 0 || pageSize <= 0 || page > math.MaxInt64/pageSize {
		return []model.Row{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	part := s.rows[partition{tenant, table}]
	ids := make([]string, 0, len(part))
	for id := range part {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	start := page * pageSize
	if start >= int64(len(ids)) {
		return []model.Row{}, nil
	}
	end := start + pageSize
	if end > int64(len(ids)) {
		end = int64(len(ids))
	}

	result := make([]model.Row, 0, end-start)
	for _, id := range ids[start:end] {
		result = append(result, model.Row{ID: id, Tenant: tenant, Payload: part[id]})
	}
	return result, nil
}

// DeleteRows removes the rows with the given ids
func (s *MemoryStore) DeleteRows(ctx context.Context, tenant, table string, ids []string) error {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	part := s.rows[partition{tenant, table}]
	for _, batch := range chunk(ids, MaxVariables) {
		for _, id := range batch {
			delete(part, id)
		}
	}
	return nil
}

// DeleteAll erases every row and change-log entry for the tenant+table
func (s *MemoryStore) DeleteAll(ctx context.Context, tenant, table string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := partition{tenant, table}
	delete(s.rows, p)
	delete(s.log, p)
	return nil
}

// AppendChange records one change-log entry
func (s *MemoryStore) AppendChange(ctx context.Context, tenant, table string, version int64, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := partition{tenant, table}
	entry := model.ChangeLogEntry{
		Version: version,
		Tenant:  tenant,
		IDs:     append([]string(nil), ids...),
	}

	// Keep the log sorted by version; appends arrive in stamp order under
	// normal operation but coarse clocks can tie or invert.
	log := s.log[p]
	idx := sort.Search(len(log), func(i int) bool { return log[i].Version > version })
	log = append(log, model.ChangeLogEntry{})
	copy(log[idx+1:], log[idx:])
	log[idx] = entry
	s.log[p] = log
	return nil
}

// ChangesSince returns all entries newer than the baseline version, ascending
func (s *MemoryStore) ChangesSince(ctx context.Context, tenant, table string, version int64) ([]model.ChangeLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]model.ChangeLogEntry, 0)
	for _, entry := range s.log[partition{tenant, table}] {
		if entry.Version > version {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// LatestVersion returns the maximum version ever appended, or 0
func (s *MemoryStore) LatestVersion(ctx context.Context, tenant, table string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest int64
	for _, entry := range s.log[partition{tenant, table}] {
		if entry.Version > latest {
			latest = entry.Version
		}
	}
	return latest, nil
}

// Ping always succeeds for the in-memory store
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store
func (s *MemoryStore) Close() {}
