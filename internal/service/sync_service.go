// Package service implements the sync engine: reconstruction of incremental
// change sets from the change log, and the facade orchestrating the row
// store, change log and query cache with write-then-invalidate ordering.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/alselawi/apexo-database/internal/cache"
	apierrors "github.com/alselawi/apexo-database/internal/errors"
	"github.com/alselawi/apexo-database/internal/metrics"
	"github.com/alselawi/apexo-database/internal/model"
	"github.com/alselawi/apexo-database/internal/store"
)

// SyncService exposes fetch, upsert, delete and reset over one tenant+table
// partition. It assumes the caller has already authenticated the tenant and
// validated the (table, operation, arguments) triple.
type SyncService struct {
	store    store.Store
	cache    *cache.QueryCache
	metrics  *metrics.Metrics
	logger   *zap.Logger
	pageSize int64

	// now mints version stamps; wall-clock milliseconds in production,
	// overridden in tests.
	now func() int64
}

// NewSyncService creates a new sync service
func NewSyncService(st store.Store, qc *cache.QueryCache, m *metrics.Metrics, logger *zap.Logger) *SyncService {
	return &SyncService{
		store:    st,
		cache:    qc,
		metrics:  m,
		logger:   logger,
		pageSize: DefaultPageSize,
		now:      func() int64 { return time.Now().UnixMilli() },
	}
}

// Fetch returns the rows of the table as of now. A baseline of 0 means "all
// rows" and is served by a paginated scan; any other baseline is served by
// reconstructing the change set since that baseline. PageVersionOnly returns
// only the current high-water version.
func (s *SyncService) Fetch(ctx context.Context, tenant, table string, since, page int64) (*model.FetchResult, error) {
	if since < 0 {
		return nil, apierrors.New(apierrors.CodeInvalidVersion, "version must not be negative")
	}
	if page < 0 {
		return nil, apierrors.New(apierrors.CodeInvalidPage, "page must not be negative")
	}

	if page == PageVersionOnly {
		latest, err := s.store.LatestVersion(ctx, tenant, table)
		if err != nil {
			return nil, apierrors.Backend("latest version", err)
		}
		if latest < since {
			latest = since
		}
		return &model.FetchResult{Rows: []model.SyncRow{}, Version: latest}, nil
	}

	key := cache.RequestKey("GET", "tables/"+table+"/rows",
		fmt.Sprintf("page=%d&since=%d", page, since))

	if raw, ok, err := s.cache.Get(ctx, tenant, key); err != nil {
		return nil, apierrors.Backend("cache get", err)
	} else if ok {
		var result model.FetchResult
		if err := json.Unmarshal([]byte(raw), &result); err == nil {
			s.metrics.CacheHits.WithLabelValues(table).Inc()
			return &result, nil
		}
		// An undecodable entry is treated as a miss and overwritten below.
		s.logger.Warn("Discarding undecodable cache entry",
			zap.String("tenant", tenant),
			zap.String("table", table))
	}
	s.metrics.CacheMisses.WithLabelValues(table).Inc()

	var result *model.FetchResult
	var err error
	if since == 0 {
		result, err = s.fetchAll(ctx, tenant, table, page)
	} else {
		result, err = s.fetchSince(ctx, tenant, table, since, page)
	}
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return nil, apierrors.Backend("serialize result", err)
	}
	if err := s.cache.Put(ctx, tenant, table, key, string(raw)); err != nil {
		return nil, apierrors.Backend("cache put", err)
	}

	s.metrics.RowsReturned.WithLabelValues(table).Add(float64(len(result.Rows)))
	return result, nil
}

// fetchAll serves baseline 0 with a direct paginated scan. Version 0 predates
// the log entirely, so a scan is both correct and cheaper than reconstruction.
func (s *SyncService) fetchAll(ctx context.Context, tenant, table string, page int64) (*model.FetchResult, error) {
	rows, err := s.store.ScanRows(ctx, tenant, table, page, s.pageSize)
	if err != nil {
		return nil, apierrors.Backend("scan rows", err)
	}

	latest, err := s.store.LatestVersion(ctx, tenant, table)
	if err != nil {
		return nil, apierrors.Backend("latest version", err)
	}

	out := make([]model.SyncRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, model.SyncRow{ID: row.ID, Data: row.Payload})
	}
	return &model.FetchResult{Rows: out, Version: latest}, nil
}

// fetchSince serves an incremental pull by reconstructing the change set
// since the baseline. The reconstructed envelope is cached keyed by the
// baseline so successive pages of one pull share a single log scan.
func (s *SyncService) fetchSince(ctx context.Context, tenant, table string, since, page int64) (*model.FetchResult, error) {
	cs, err := s.changeSet(ctx, tenant, table, since)
	if err != nil {
		return nil, err
	}

	ids := pageOf(cs.AllIDs, page, s.pageSize)
	rows, err := s.store.GetRows(ctx, tenant, table, ids)
	if err != nil {
		return nil, apierrors.Backend("get rows", err)
	}

	out := make([]model.SyncRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, model.SyncRow{
			ID:   row.ID,
			Data: row.Payload,
			TS:   cs.IDVersions[row.ID],
		})
	}
	return &model.FetchResult{Rows: out, Version: cs.LatestVersion}, nil
}

// changeSet returns the reconstruction envelope for (tenant, table, since),
// from cache when a prior page of the same pull already built it.
func (s *SyncService) changeSet(ctx context.Context, tenant, table string, since int64) (*model.ChangeSet, error) {
	key := fmt.Sprintf("changes:%s:%d", table, since)

	if raw, ok, err := s.cache.Get(ctx, tenant, key); err != nil {
		return nil, apierrors.Backend("cache get", err)
	} else if ok {
		var cs model.ChangeSet
		if err := json.Unmarshal([]byte(raw), &cs); err == nil {
			return &cs, nil
		}
	}

	entries, err := s.store.ChangesSince(ctx, tenant, table, since)
	if err != nil {
		return nil, apierrors.Backend("changes since", err)
	}

	cs := buildChangeSet(entries, since)

	raw, err := json.Marshal(cs)
	if err != nil {
		return nil, apierrors.Backend("serialize change set", err)
	}
	if err := s.cache.Put(ctx, tenant, table, key, string(raw)); err != nil {
		return nil, apierrors.Backend("cache put", err)
	}
	return cs, nil
}

// Upsert writes the given id→payload mapping, invalidates the pair's cache
// and appends one change-log entry listing every id actually written. Keys
// with an empty id are silently ignored.
func (s *SyncService) Upsert(ctx context.Context, tenant, table string, rows map[string]string) (*model.WriteResult, error) {
	if len(rows) == 0 {
		return nil, apierrors.New(apierrors.CodeEmptyPayload, "no rows provided")
	}

	written := make([]string, 0, len(rows))
	for id := range rows {
		if id == "" {
			continue
		}
		written = append(written, id)
	}
	if len(written) == 0 {
		return nil, apierrors.New(apierrors.CodeNoIDsProvided, "every row id is empty")
	}
	sort.Strings(written)

	for _, id := range written {
		if err := s.store.PutRow(ctx, tenant, table, id, rows[id]); err != nil {
			return nil, apierrors.Backend("put row", err)
		}
	}

	version, err := s.finishWrite(ctx, tenant, table, written)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Upserted rows",
		zap.String("tenant", tenant),
		zap.String("table", table),
		zap.Int("rows", len(written)),
		zap.Int64("version", version))

	return &model.WriteResult{Version: version}, nil
}

// Delete removes the given rows, invalidates the pair's cache and appends one
// change-log entry with the deleted ids. An empty id list is rejected; wiping
// a whole partition is the job of Reset, never of Delete.
func (s *SyncService) Delete(ctx context.Context, tenant, table string, ids []string) (*model.WriteResult, error) {
	if len(ids) == 0 {
		return nil, apierrors.New(apierrors.CodeNoIDsProvided, "no ids provided")
	}

	seen := make(map[string]struct{}, len(ids))
	deduped := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		deduped = append(deduped, id)
	}
	ids = deduped

	if err := s.store.DeleteRows(ctx, tenant, table, ids); err != nil {
		return nil, apierrors.Backend("delete rows", err)
	}

	version, err := s.finishWrite(ctx, tenant, table, ids)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Deleted rows",
		zap.String("tenant", tenant),
		zap.String("table", table),
		zap.Int("rows", len(ids)),
		zap.Int64("version", version))

	return &model.WriteResult{Version: version}, nil
}

// Reset erases every row and change-log entry of the tenant+table partition,
// then invalidates its cache. The next fetch starts from version 0.
func (s *SyncService) Reset(ctx context.Context, tenant, table string) error {
	if err := s.store.DeleteAll(ctx, tenant, table); err != nil {
		return apierrors.Backend("delete all", err)
	}

	if err := s.cache.Nullify(ctx, tenant, table); err != nil {
		return apierrors.Backend("cache nullify", err)
	}
	s.metrics.CacheInvalidations.WithLabelValues(table).Inc()

	s.logger.Info("Reset table partition",
		zap.String("tenant", tenant),
		zap.String("table", table))

	return nil
}

// finishWrite runs the post-mutation half of a write: nullify the pair's
// cache, mint a version, append the change-log entry. A failure after the
// store mutation is surfaced, never rolled back; the affected rows stay
// invisible to incremental pulls until the append succeeds or the client
// resyncs from version 0.
func (s *SyncService) finishWrite(ctx context.Context, tenant, table string, ids []string) (int64, error) {
	if err := s.cache.Nullify(ctx, tenant, table); err != nil {
		return 0, apierrors.Backend("cache nullify", err)
	}
	s.metrics.CacheInvalidations.WithLabelValues(table).Inc()

	version := s.now()
	if err := s.store.AppendChange(ctx, tenant, table, version, ids); err != nil {
		return 0, apierrors.Backend("append change", err)
	}
	s.metrics.ChangeAppends.WithLabelValues(table).Inc()

	return version, nil
}
