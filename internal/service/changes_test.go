package service

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alselawi/apexo-database/internal/model"
)

func entry(version int64, ids ...string) model.ChangeLogEntry {
	return model.ChangeLogEntry{Version: version, Tenant: "t1", IDs: ids}
}

func TestBuildChangeSet(t *testing.T) {
	tests := []struct {
		name         string
		entries      []model.ChangeLogEntry
		baseline     int64
		wantIDs      []string
		wantVersions map[string]int64
		wantLatest   int64
	}{
		{
			name:         "empty log keeps baseline",
			entries:      nil,
			baseline:     42,
			wantIDs:      []string{},
			wantVersions: map[string]int64{},
			wantLatest:   42,
		},
		{
			name: "single entry",
			entries: []model.ChangeLogEntry{
				entry(100, "a", "b"),
			},
			baseline:     0,
			wantIDs:      []string{"a", "b"},
			wantVersions: map[string]int64{"a": 100, "b": 100},
			wantLatest:   100,
		},
		{
			name: "id changed twice reported once at latest version",
			entries: []model.ChangeLogEntry{
				entry(100, "a", "b"),
				entry(200, "a"),
			},
			baseline:     0,
			wantIDs:      []string{"b", "a"},
			wantVersions: map[string]int64{"a": 200, "b": 100},
			wantLatest:   200,
		},
		{
			name: "entry emptied by filtering is dropped",
			entries: []model.ChangeLogEntry{
				entry(100, "a"),
				entry(200, "a"),
			},
			baseline:     0,
			wantIDs:      []string{"a"},
			wantVersions: map[string]int64{"a": 200},
			wantLatest:   200,
		},
		{
			name: "tied stamps attribute each id once",
			entries: []model.ChangeLogEntry{
				entry(100, "a", "b"),
				entry(100, "a", "c"),
			},
			baseline:     0,
			wantIDs:      []string{"a", "b", "c"},
			wantVersions: map[string]int64{"a": 100, "b": 100, "c": 100},
			wantLatest:   100,
		},
		{
			name: "latest never regresses below baseline",
			entries: []model.ChangeLogEntry{
				entry(100, "a"),
			},
			baseline:     500,
			wantIDs:      []string{"a"},
			wantVersions: map[string]int64{"a": 100},
			wantLatest:   500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs := buildChangeSet(tt.entries, tt.baseline)

			assert.Equal(t, tt.wantIDs, cs.AllIDs)
			assert.Equal(t, tt.wantVersions, cs.IDVersions)
			assert.Equal(t, tt.wantLatest, cs.LatestVersion)
		})
	}
}

func TestBuildChangeSetFilteredEntries(t *testing.T) {
	cs := buildChangeSet([]model.ChangeLogEntry{
		entry(100, "a", "b"),
		entry(200, "b", "c"),
	}, 0)

	// b moved to the version-200 entry; the version-100 entry keeps only a.
	assert.Len(t, cs.Entries, 2)
	assert.Equal(t, []string{"a"}, cs.Entries[0].IDs)
	assert.Equal(t, []string{"b", "c"}, cs.Entries[1].IDs)
}

func TestPageOf(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e"}

	tests := []struct {
		name     string
		page     int64
		pageSize int64
		want     []string
	}{
		{"first page", 0, 2, []string{"a", "b"}},
		{"middle page", 1, 2, []string{"c", "d"}},
		{"partial last page", 2, 2, []string{"e"}},
		{"page past the end", 3, 2, []string{}},
		{"negative page", -1, 2, []string{}},
		{"page size covers everything", 0, 10, ids},
		{"huge page overflowing the offset", 1 << 60, DefaultPageSize, []string{}},
		{"maximum page", math.MaxInt64 - 1, 2, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pageOf(ids, tt.page, tt.pageSize))
		})
	}
}
