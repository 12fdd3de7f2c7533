package store

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutRowRejectsEmptyID(t *testing.T) {
	s := NewMemoryStore()

	err := s.PutRow(context.Background(), "t1", "patients", "", "data")
	assert.ErrorIs(t, err, ErrEmptyID)
}

func TestPutRowOverwrites(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.PutRow(ctx, "t1", "patients", "p1", "v1"))
	require.NoError(t, s.PutRow(ctx, "t1", "patients", "p1", "v2"))

	rows, err := s.GetRows(ctx, "t1", "patients", []string{"p1"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "v2", rows[0].Payload)
}

func TestGetRowsDeduplicatesAndOmitsMissing(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.PutRow(ctx, "t1", "patients", "p1", "v1"))

	rows, err := s.GetRows(ctx, "t1", "patients", []string{"p1", "p1", "missing"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "p1", rows[0].ID)
}

func TestGetRowsAcrossBatchBoundary(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	// More ids than one backend batch can carry.
	ids := make([]string, 0, MaxVariables+10)
	for i := 0; i < MaxVariables+10; i++ {
		id := fmt.Sprintf("p%03d", i)
		ids = append(ids, id)
		require.NoError(t, s.PutRow(ctx, "t1", "patients", id, "data"))
	}

	rows, err := s.GetRows(ctx, "t1", "patients", ids)
	require.NoError(t, err)
	assert.Len(t, rows, MaxVariables+10)
}

func TestScanRowsPagination(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.PutRow(ctx, "t1", "patients", fmt.Sprintf("p%d", i), "data"))
	}

	tests := []struct {
		name     string
		page     int64
		pageSize int64
		wantIDs  []string
	}{
		{"first page", 0, 2, []string{"p0", "p1"}},
		{"second page", 1, 2, []string{"p2", "p3"}},
		{"partial last page", 2, 2, []string{"p4"}},
		{"page past the end", 3, 2, []string{}},
		{"negative page", -1, 2, []string{}},
		{"huge page overflowing the offset", 1 << 60, 1000, []string{}},
		{"maximum page", math.MaxInt64, 2, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := s.ScanRows(ctx, "t1", "patients", tt.page, tt.pageSize)
			require.NoError(t, err)

			ids := make([]string, 0, len(rows))
			for _, row := range rows {
				ids = append(ids, row.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestDeleteRowsEmptyListIsNoOp(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.PutRow(ctx, "t1", "patients", "p1", "data"))
	require.NoError(t, s.DeleteRows(ctx, "t1", "patients", nil))

	rows, err := s.GetRows(ctx, "t1", "patients", []string{"p1"})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestDeleteAllClearsRowsAndLog(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.PutRow(ctx, "t1", "patients", "p1", "data"))
	require.NoError(t, s.AppendChange(ctx, "t1", "patients", 100, []string{"p1"}))
	require.NoError(t, s.PutRow(ctx, "t2", "patients", "p1", "other"))

	require.NoError(t, s.DeleteAll(ctx, "t1", "patients"))

	rows, err := s.ScanRows(ctx, "t1", "patients", 0, 10)
	require.NoError(t, err)
	assert.Empty(t, rows)

	latest, err := s.LatestVersion(ctx, "t1", "patients")
	require.NoError(t, err)
	assert.Zero(t, latest)

	// Another tenant's partition is untouched.
	rows, err = s.ScanRows(ctx, "t2", "patients", 0, 10)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestAppendChangeEmptyIDsLeavesNoTrace(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.AppendChange(ctx, "t1", "patients", 100, nil))

	entries, err := s.ChangesSince(ctx, "t1", "patients", 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestChangesSinceStrictlyNewer(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.AppendChange(ctx, "t1", "patients", 100, []string{"a"}))
	require.NoError(t, s.AppendChange(ctx, "t1", "patients", 200, []string{"b"}))
	require.NoError(t, s.AppendChange(ctx, "t1", "patients", 300, []string{"c"}))

	entries, err := s.ChangesSince(ctx, "t1", "patients", 200)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(300), entries[0].Version)

	entries, err = s.ChangesSince(ctx, "t1", "patients", 300)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestChangesSinceOrderedWithOutOfOrderAppends(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	// Coarse clocks can hand a later append a smaller stamp.
	require.NoError(t, s.AppendChange(ctx, "t1", "patients", 300, []string{"c"}))
	require.NoError(t, s.AppendChange(ctx, "t1", "patients", 100, []string{"a"}))
	require.NoError(t, s.AppendChange(ctx, "t1", "patients", 200, []string{"b"}))

	entries, err := s.ChangesSince(ctx, "t1", "patients", 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, int64(100), entries[0].Version)
	assert.Equal(t, int64(200), entries[1].Version)
	assert.Equal(t, int64(300), entries[2].Version)
}

func TestLatestVersion(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	latest, err := s.LatestVersion(ctx, "t1", "patients")
	require.NoError(t, err)
	assert.Zero(t, latest)

	require.NoError(t, s.AppendChange(ctx, "t1", "patients", 100, []string{"a"}))
	require.NoError(t, s.AppendChange(ctx, "t1", "patients", 250, []string{"b"}))

	latest, err = s.LatestVersion(ctx, "t1", "patients")
	require.NoError(t, err)
	assert.Equal(t, int64(250), latest)
}

func TestChunk(t *testing.T) {
	assert.Nil(t, chunk(nil, 3))

	chunks := chunk([]string{"a", "b", "c", "d", "e"}, 2)
	require.Len(t, chunks, 3)
	assert.Equal(t, []string{"a", "b"}, chunks[0])
	assert.Equal(t, []string{"c", "d"}, chunks[1])
	assert.Equal(t, []string{"e"}, chunks[2])
}
