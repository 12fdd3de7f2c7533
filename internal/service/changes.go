package service

import (
	"math"

	"github.com/alselawi/apexo-database/internal/model"
)

// DefaultPageSize bounds the number of rows returned per fetch page.
const DefaultPageSize int64 = 1000

// PageVersionOnly is the sentinel page meaning "just tell me the latest
// version, no rows". It never touches the row store.
const PageVersionOnly int64 = math.MaxInt64

// buildChangeSet reconstructs the de-duplicated change set from the log
// entries newer than the baseline. Entries must arrive ordered ascending by
// version.
//
// A row touched by several writes between two pulls must be reported exactly
// once, tagged with the version of its most recent change: reported twice is
// wasteful, and a stale per-row tag misleads any consumer that trusts it.
// Each id is therefore attributed to exactly one entry, the one carrying its
// maximum version; entries left empty after attribution are dropped.
func buildChangeSet(entries []model.ChangeLogEntry, baseline int64) *model.ChangeSet {
	idVersions := make(map[string]int64)
	for _, entry := range entries {
		for _, id := range entry.IDs {
			if entry.Version > idVersions[id] {
				idVersions[id] = entry.Version
			}
		}
	}

	latest := baseline
	claimed := make(map[string]struct{}, len(idVersions))
	allIDs := make([]string, 0, len(idVersions))
	filtered := make([]model.ChangeLogEntry, 0, len(entries))

	for _, entry := range entries {
		if entry.Version > latest {
			latest = entry.Version
		}

		keep := make([]string, 0, len(entry.IDs))
		for _, id := range entry.IDs {
			if idVersions[id] != entry.Version {
				continue
			}
			// Identical stamps on two entries sharing an id: the first
			// entry claims it, keeping attribution unique.
			if _, ok := claimed[id]; ok {
				continue
			}
			claimed[id] = struct{}{}
			keep = append(keep, id)
			allIDs = append(allIDs, id)
		}
		if len(keep) == 0 {
			continue
		}
		filtered = append(filtered, model.ChangeLogEntry{
			Version: entry.Version,
			Tenant:  entry.Tenant,
			IDs:     keep,
		})
	}

	return &model.ChangeSet{
		LatestVersion: latest,
		AllIDs:        allIDs,
		IDVersions:    idVersions,
		Entries:       filtered,
	}
}

// pageOf slices ids to the requested page. Pages beyond the end yield an
// empty slice, the client's signal that pagination is exhausted.
func pageOf(ids []string, page, pageSize int64) []string {
	if page < 0 || pageSize <= 0 {
		return []string{}
	}
	// page*pageSize would overflow; such a page is past the end of any slice.
	if page > math.MaxInt64/pageSize {
		return []string{}
	}
	start := page * pageSize
	if start >= int64(len(ids)) {
		return []string{}
	}
	end := start + pageSize
	if end > int64(len(ids)) {
		end = int64(len(ids))
	}
	return ids[start:end]
}
