package differ

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GannettDigital/tablediff/internal/leafdiff"
	"github.com/GannettDigital/tablediff/internal/logger"
	"github.com/GannettDigital/tablediff/internal/segment"
)

var keyCols = []string{"id"}
var relCols = []string{"id", "value"}

func makeRows(n int, value func(id int) int64) []segment.Row {
	rows := make([]segment.Row, 0, n)
	for id := 1; id <= n; id++ {
		rows = append(rows, segment.Row{int64(id), value(id)})
	}
	return rows
}

func newEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	e, err := New(cfg, logger.NewDefault())
	require.NoError(t, err)
	return e
}

func collectDiffs(t *testing.T, e *Engine, a, b segment.TableSegment) ([]leafdiff.Diff, *Stats) {
	t.Helper()
	var diffs []leafdiff.Diff
	stats, err := e.Run(context.Background(), a, b, func(d leafdiff.Diff) {
		diffs = append(diffs, d)
	})
	require.NoError(t, err)
	return diffs, stats
}

func TestRunIdenticalTablesNoDiff(t *testing.T) {
	rows := makeRows(100, func(id int) int64 { return 100 })
	a := segment.NewFakeSegment("a", keyCols, relCols, rows)
	b := segment.NewFakeSegment("b", keyCols, relCols, append([]segment.Row{}, rows...))

	e := newEngine(t, Config{BisectionFactor: 4, BisectionThreshold: 10})
	diffs, stats := collectDiffs(t, e, a, b)

	assert.Empty(t, diffs)
	assert.Equal(t, int64(100), stats.RowsA)
	assert.Equal(t, int64(100), stats.RowsB)
	assert.Equal(t, int64(0), stats.Updated)
	assert.Equal(t, int64(100), stats.Unchanged)
	assert.Equal(t, float64(0), stats.DiffPercent)
}

func TestRunSingleUpdatedRow(t *testing.T) {
	rowsA := makeRows(100, func(id int) int64 { return 100 })
	rowsB := makeRows(100, func(id int) int64 {
		if id == 42 {
			return 200
		}
		return 100
	})
	a := segment.NewFakeSegment("a", keyCols, relCols, rowsA)
	b := segment.NewFakeSegment("b", keyCols, relCols, rowsB)

	e := newEngine(t, Config{BisectionFactor: 4, BisectionThreshold: 10})
	diffs, stats := collectDiffs(t, e, a, b)

	require.Len(t, diffs, 2)
	assert.Equal(t, byte('-'), diffs[0].Side)
	assert.Equal(t, int64(42), diffs[0].Key[0])
	assert.Equal(t, int64(100), diffs[0].Row[1])
	assert.Equal(t, byte('+'), diffs[1].Side)
	assert.Equal(t, int64(42), diffs[1].Key[0])
	assert.Equal(t, int64(200), diffs[1].Row[1])

	assert.Equal(t, int64(1), stats.Updated)
	assert.Equal(t, int64(0), stats.ExclusiveA)
	assert.Equal(t, int64(0), stats.ExclusiveB)
	assert.Equal(t, int64(99), stats.Unchanged)
}

func TestRunExtraKeyOnRightSide(t *testing.T) {
	rowsA := makeRows(100, func(id int) int64 { return 100 })
	rowsB := append(makeRows(100, func(id int) int64 { return 100 }),
		segment.Row{int64(101), int64(100)})
	a := segment.NewFakeSegment("a", keyCols, relCols, rowsA)
	b := segment.NewFakeSegment("b", keyCols, relCols, rowsB)

	e := newEngine(t, Config{BisectionFactor: 4, BisectionThreshold: 10})
	diffs, stats := collectDiffs(t, e, a, b)

	require.Len(t, diffs, 1)
	assert.Equal(t, byte('+'), diffs[0].Side)
	assert.Equal(t, int64(101), diffs[0].Key[0])
	assert.Equal(t, int64(1), stats.ExclusiveB)
}

func TestRunPermutedRowOrderSameResult(t *testing.T) {
	rowsA := makeRows(50, func(id int) int64 { return int64(id * 7) })
	rowsB := makeRows(50, func(id int) int64 { return int64(id * 7) })
	// reverse B's physical row order; checksum must be order-independent.
	for i, j := 0, len(rowsB)-1; i < j; i, j = i+1, j-1 {
		rowsB[i], rowsB[j] = rowsB[j], rowsB[i]
	}
	a := segment.NewFakeSegment("a", keyCols, relCols, rowsA)
	b := segment.NewFakeSegment("b", keyCols, relCols, rowsB)

	e := newEngine(t, Config{BisectionFactor: 4, BisectionThreshold: 10})
	diffs, stats := collectDiffs(t, e, a, b)

	assert.Empty(t, diffs)
	assert.Equal(t, int64(0), stats.Updated)
}

func TestRunDuplicateKeySurfaces(t *testing.T) {
	rowsA := append(makeRows(20, func(id int) int64 { return 100 }),
		segment.Row{int64(7), int64(999)}) // duplicate key 7
	rowsB := makeRows(20, func(id int) int64 { return 100 })
	a := segment.NewFakeSegment("a", keyCols, relCols, rowsA)
	b := segment.NewFakeSegment("b", keyCols, relCols, rowsB)

	e := newEngine(t, Config{BisectionFactor: 4, BisectionThreshold: 10})
	diffs, _ := collectDiffs(t, e, a, b)

	var forKey7 int
	for _, d := range diffs {
		if d.Key[0] == int64(7) {
			forKey7++
		}
	}
	assert.Equal(t, 3, forKey7, "both left rows for key 7 and the single right row must all surface")
}

func TestRunJSONEquivalentColumnSuppressed(t *testing.T) {
	cols := []string{"id", "payload"}
	rowsA := []segment.Row{{int64(1), `{"a":1,"b":2}`}}
	rowsB := []segment.Row{{int64(1), `{"b":2,"a":1}`}}
	a := segment.NewFakeSegment("a", keyCols, cols, rowsA)
	b := segment.NewFakeSegment("b", keyCols, cols, rowsB)

	e := newEngine(t, Config{
		BisectionFactor:    4,
		BisectionThreshold: 10,
		JSONColumns:        []leafdiff.JSONColumn{{Index: 1, Name: "payload"}},
	})
	diffs, stats := collectDiffs(t, e, a, b)

	assert.Empty(t, diffs)
	assert.Equal(t, int64(1), stats.Unchanged)
}

func TestRunIgnoredColumnNotCompared(t *testing.T) {
	cols := []string{"id", "value", "notes"}
	rowsA := []segment.Row{
		{int64(1), int64(100), "left note"},
		{int64(2), int64(200), "same note"},
	}
	rowsB := []segment.Row{
		{int64(1), int64(100), "right note"}, // differs only in ignored column
		{int64(2), int64(999), "same note"},  // differs in a compared column
	}
	ignored := map[string]struct{}{"notes": {}}
	a := segment.NewFakeSegment("a", keyCols, cols, rowsA).WithIgnoredColumns(ignored)
	b := segment.NewFakeSegment("b", keyCols, cols, rowsB).WithIgnoredColumns(ignored)

	e := newEngine(t, Config{BisectionFactor: 4, BisectionThreshold: 10})
	diffs, stats := collectDiffs(t, e, a, b)

	require.Len(t, diffs, 2)
	for _, d := range diffs {
		assert.Equal(t, int64(2), d.Key[0], "row 1 differs only in the ignored column and must not surface")
	}
	assert.Equal(t, int64(1), stats.Updated)
	assert.Equal(t, int64(1), stats.Unchanged)
}

func TestRunEmptyTablesNoDiff(t *testing.T) {
	a := segment.NewFakeSegment("a", keyCols, relCols, nil)
	b := segment.NewFakeSegment("b", keyCols, relCols, nil)

	e := newEngine(t, Config{BisectionFactor: 4, BisectionThreshold: 10})
	diffs, stats := collectDiffs(t, e, a, b)

	assert.Empty(t, diffs)
	assert.Equal(t, int64(0), stats.RowsA)
	assert.Equal(t, int64(0), stats.RowsB)
	assert.Equal(t, float64(0), stats.DiffPercent)
}

func TestRunRecursesBelowThreshold(t *testing.T) {
	// 200 rows with a small threshold forces at least one split; the result
	// must still be identical to the single-leaf case.
	rowsA := makeRows(200, func(id int) int64 { return int64(id) })
	rowsB := makeRows(200, func(id int) int64 {
		if id == 150 {
			return 999
		}
		return int64(id)
	})
	a := segment.NewFakeSegment("a", keyCols, relCols, rowsA)
	b := segment.NewFakeSegment("b", keyCols, relCols, rowsB)

	e := newEngine(t, Config{BisectionFactor: 4, BisectionThreshold: 10})
	diffs, stats := collectDiffs(t, e, a, b)

	require.Len(t, diffs, 2)
	assert.Equal(t, int64(150), diffs[0].Key[0])
	assert.Equal(t, int64(1), stats.Updated)
	assert.Equal(t, int64(199), stats.Unchanged)
}

func TestRunBisectionDisabledForcesSingleLeaf(t *testing.T) {
	rowsA := makeRows(200, func(id int) int64 { return int64(id) })
	rowsB := makeRows(200, func(id int) int64 {
		if id == 150 {
			return 999
		}
		return int64(id)
	})
	a := segment.NewFakeSegment("a", keyCols, relCols, rowsA)
	b := segment.NewFakeSegment("b", keyCols, relCols, rowsB)

	e := newEngine(t, Config{BisectionFactor: 4, BisectionThreshold: 10, BisectionDisabled: true})
	diffs, _ := collectDiffs(t, e, a, b)

	require.Len(t, diffs, 2)
	assert.Equal(t, int64(150), diffs[0].Key[0])
}

func TestRunAutoBisectionFactor(t *testing.T) {
	rowsA := makeRows(500, func(id int) int64 { return int64(id) })
	rowsB := makeRows(500, func(id int) int64 {
		if id == 333 {
			return -1
		}
		return int64(id)
	})
	a := segment.NewFakeSegment("a", keyCols, relCols, rowsA)
	b := segment.NewFakeSegment("b", keyCols, relCols, rowsB)

	e := newEngine(t, Config{
		BisectionFactor:     4,
		BisectionThreshold:  10,
		AutoBisectionFactor: true,
		SegmentRows:         50,
	})
	diffs, stats := collectDiffs(t, e, a, b)

	require.Len(t, diffs, 2)
	assert.Equal(t, int64(333), diffs[0].Key[0])
	assert.Equal(t, int64(1), stats.Updated)
}

func TestConfigValidateRejectsFactorBelowTwo(t *testing.T) {
	_, err := New(Config{BisectionFactor: 1, BisectionThreshold: 10}, logger.NewDefault())
	assert.Error(t, err)
}

func TestConfigValidateRejectsFactorNotLessThanThreshold(t *testing.T) {
	_, err := New(Config{BisectionFactor: 10, BisectionThreshold: 10}, logger.NewDefault())
	assert.Error(t, err)
}

func TestAutoFactorTieBreak(t *testing.T) {
	assert.Equal(t, 2, autoFactor(50, 100))  // ratio 0.5 -> forced to 2
	assert.Equal(t, 2, autoFactor(199, 100)) // ratio 1.99 -> still forced to 2
	assert.Equal(t, 5, autoFactor(500, 100)) // ratio 5.0 -> rounds to itself
	assert.Equal(t, 2, autoFactor(100, 0))   // no segment_rows configured
}
