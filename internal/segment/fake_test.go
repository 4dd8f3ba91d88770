package segment

import (
	"context"
	"testing"

	"github.com/GannettDigital/tablediff/internal/keyspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRows() []Row {
	return []Row{
		{int64(1), "alice"},
		{int64(2), "bob"},
		{int64(3), "carol"},
		{int64(4), "dave"},
	}
}

func TestFakeSegmentCount(t *testing.T) {
	seg := NewFakeSegment("t", []string{"id"}, []string{"id", "name"}, sampleRows())

	n, err := seg.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestFakeSegmentQueryKeyRange(t *testing.T) {
	seg := NewFakeSegment("t", []string{"id"}, []string{"id", "name"}, sampleRows())

	r, err := seg.QueryKeyRange(context.Background())
	require.NoError(t, err)
	assert.True(t, r.Contains(keyspace.Key{int64(1)}))
	assert.True(t, r.Contains(keyspace.Key{int64(4)}))
	assert.False(t, r.Contains(keyspace.Key{int64(5)}))
}

func TestFakeSegmentNewKeyBoundsFiltersRows(t *testing.T) {
	seg := NewFakeSegment("t", []string{"id"}, []string{"id", "name"}, sampleRows())
	bounded := seg.NewKeyBounds(keyspace.NewRange(keyspace.Key{int64(2)}, keyspace.Key{int64(4)}))

	rows, err := bounded.GetValues(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, int64(2), rows[0][0])
	assert.Equal(t, int64(3), rows[1][0])
}

func TestFakeSegmentCountAndChecksumDeterministic(t *testing.T) {
	seg := NewFakeSegment("t", []string{"id"}, []string{"id", "name"}, sampleRows())

	_, sum1, err := seg.CountAndChecksum(context.Background())
	require.NoError(t, err)
	_, sum2, err := seg.CountAndChecksum(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sum1, sum2)
}

func TestFakeSegmentCountAndChecksumOrderIndependent(t *testing.T) {
	rows := sampleRows()
	reversed := make([]Row, len(rows))
	for i, r := range rows {
		reversed[len(rows)-1-i] = r
	}

	a := NewFakeSegment("t", []string{"id"}, []string{"id", "name"}, rows)
	b := NewFakeSegment("t", []string{"id"}, []string{"id", "name"}, reversed)

	_, sumA, err := a.CountAndChecksum(context.Background())
	require.NoError(t, err)
	_, sumB, err := b.CountAndChecksum(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sumA, sumB)
}

func TestFakeSegmentWithIgnoredColumnsChangesChecksum(t *testing.T) {
	rows := []Row{
		{int64(1), "alice", "note-a"},
		{int64(2), "bob", "note-b"},
	}
	seg := NewFakeSegment("t", []string{"id"}, []string{"id", "name", "notes"}, rows)

	_, withNotes, err := seg.CountAndChecksum(context.Background())
	require.NoError(t, err)

	ignored := seg.WithIgnoredColumns(map[string]struct{}{"notes": {}})
	_, withoutNotes, err := ignored.CountAndChecksum(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, withNotes, withoutNotes)
}

func TestFakeSegmentSegmentByCheckpointsCoversWholeRange(t *testing.T) {
	seg := NewFakeSegment("t", []string{"id"}, []string{"id", "name"}, sampleRows())
	bounded := seg.NewKeyBounds(keyspace.NewRange(keyspace.Key{int64(1)}, keyspace.Key{int64(5)}))

	children, err := bounded.SegmentByCheckpoints([]keyspace.Key{{int64(3)}})
	require.NoError(t, err)
	require.Len(t, children, 2)

	var total int
	for _, c := range children {
		rows, err := c.GetValues(context.Background())
		require.NoError(t, err)
		total += len(rows)
	}
	assert.Equal(t, 4, total)
}

func TestFakeSegmentChooseCheckpointsMonotonic(t *testing.T) {
	seg := NewFakeSegment("t", []string{"id"}, []string{"id", "name"}, sampleRows())
	bounded := seg.NewKeyBounds(keyspace.NewRange(keyspace.Key{int64(1)}, keyspace.Key{int64(5)}))

	checkpoints, err := bounded.ChooseCheckpoints(context.Background(), 2)
	require.NoError(t, err)

	for i := 1; i < len(checkpoints); i++ {
		assert.True(t, checkpoints[i-1].Less(checkpoints[i]))
	}
}
