// Package differ implements the bisection engine (spec.md §4.3): it drives
// two TableSegments through recursive checksum-compare-and-split, emitting
// row-level diffs through a yielder and recording every decision into an
// InfoTree. Grounded on internal/archiver/orchestrator.go's top-level
// "walk the dependency plan, dispatch work, collect results" shape,
// generalized from a fixed copy order to a priority-driven recursive split.
package differ

import (
	"context"
	"fmt"

	"github.com/GannettDigital/tablediff/internal/infotree"
	"github.com/GannettDigital/tablediff/internal/keyspace"
	"github.com/GannettDigital/tablediff/internal/leafdiff"
	"github.com/GannettDigital/tablediff/internal/logger"
	"github.com/GannettDigital/tablediff/internal/segment"
	"github.com/GannettDigital/tablediff/internal/yielder"
)

// seedPriority is the reserved low-priority level the two top-level mesh
// tasks run at, below any split-descended level, so the tree opens up
// across the whole key range before any one branch goes deep (spec.md
// §4.3 "the two top-level seed tasks use a reserved low priority").
const seedPriority = 999

// Config is the engine's configuration surface (spec.md §6).
type Config struct {
	BisectionFactor     int
	BisectionThreshold  int
	BisectionDisabled   bool
	AutoBisectionFactor bool
	SegmentRows         int
	Threaded            bool
	MaxThreadpoolSize   int
	JSONColumns         []leafdiff.JSONColumn
}

// Validate enforces spec.md §6's construction-time checks.
func (c Config) Validate() error {
	if c.BisectionFactor < 2 {
		return fmt.Errorf("differ: bisection_factor must be >= 2, got %d", c.BisectionFactor)
	}
	if c.BisectionFactor >= c.BisectionThreshold {
		return fmt.Errorf("differ: bisection_factor (%d) must be less than bisection_threshold (%d)",
			c.BisectionFactor, c.BisectionThreshold)
	}
	return nil
}

// Stats are the post-run statistics derived from the stream and the
// InfoTree (spec.md §6).
type Stats struct {
	RowsA         int64
	RowsB         int64
	ExclusiveA    int64
	ExclusiveB    int64
	Updated       int64
	Unchanged     int64
	DiffPercent   float64
}

// Engine owns one InfoTree and one yielder for the duration of a single
// diff call (spec.md §3 Ownership).
type Engine struct {
	cfg Config
	log *logger.Logger
}

// New constructs an Engine, failing fast on an invalid configuration
// (spec.md §7 "Configuration error... refuse construction").
func New(cfg Config, log *logger.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &Engine{cfg: cfg, log: log}, nil
}

// Run compares left and right, streaming diffs to onDiff as they're found.
// Returns the aggregated stats once every task has finished. A database or
// schema error aborts the run but the InfoTree is still aggregated on
// partial state before the error is returned (spec.md §5 Cancellation, §7
// Recovery policy).
func (e *Engine) Run(ctx context.Context, left, right segment.TableSegment, onDiff func(leafdiff.Diff)) (*Stats, error) {
	primary, secondary, _, err := e.queryRangesRaceFirst(ctx, left, right)
	if err != nil {
		return nil, err
	}

	tree := infotree.New(primary)

	y := yielder.New(ctx, yielder.Config{
		Threaded:          e.cfg.Threaded,
		MaxThreadpoolSize: e.cfg.MaxThreadpoolSize,
	})

	root := tree.Root.AddNode(primary, maxInt64(left.ApproximateSize(), right.ApproximateSize()))
	y.Submit(e.bisectTask(ctx, left.NewKeyBounds(primary), right.NewKeyBounds(primary), root, 0), seedPriority)

	// Second-pass boxes cover any row present only in the side whose range
	// query returned second (spec.md §4.2: the first-returned range defines
	// the primary box; the mesh guarantees completeness for the other side).
	for _, box := range keyspace.BuildMesh(primary, secondary) {
		node := tree.Root.AddNode(box, 0)
		y.Submit(e.bisectTask(ctx, left.NewKeyBounds(box), right.NewKeyBounds(box), node, 0), seedPriority)
	}

	var runErr error
	for result := range y.Results() {
		if result.Err != nil {
			if runErr == nil {
				runErr = result.Err
			}
			continue
		}
		diff, ok := result.Value.(leafdiff.Diff)
		if !ok {
			continue
		}
		if onDiff != nil {
			onDiff(diff)
		}
	}

	tree.Aggregate()
	stats := deriveStats(tree)
	if runErr != nil {
		return stats, runErr
	}
	return stats, nil
}

// queryRangesRaceFirst runs both sides' QueryKeyRange concurrently and
// reports whichever resolves first as primary, to avoid head-of-line
// blocking on the slower side (spec.md §4.2 Rationale).
func (e *Engine) queryRangesRaceFirst(ctx context.Context, left, right segment.TableSegment) (primary, secondary keyspace.Range, primaryIsLeft bool, err error) {
	type result struct {
		r         keyspace.Range
		err       error
		fromLeft  bool
	}
	resultCh := make(chan result, 2)

	go func() {
		r, err := left.QueryKeyRange(ctx)
		resultCh <- result{r: r, err: err, fromLeft: true}
	}()
	go func() {
		r, err := right.QueryKeyRange(ctx)
		resultCh <- result{r: r, err: err, fromLeft: false}
	}()

	first := <-resultCh
	second := <-resultCh
	if first.err != nil {
		return keyspace.Range{}, keyspace.Range{}, false, fmt.Errorf("differ: query key range: %w", first.err)
	}
	if second.err != nil {
		return keyspace.Range{}, keyspace.Range{}, false, fmt.Errorf("differ: query key range: %w", second.err)
	}
	return first.r, second.r, first.fromLeft, nil
}

// bisectTask returns the yielder.Task for one segment pair at the given
// recursion level (spec.md §4.3).
func (e *Engine) bisectTask(ctx context.Context, a, b segment.TableSegment, node *infotree.SegmentInfo, level int) yielder.Task {
	return func(y *yielder.Yielder) ([]any, error) {
		return nil, e.bisect(ctx, y, a, b, node, level)
	}
}

func (e *Engine) bisect(ctx context.Context, y *yielder.Yielder, a, b segment.TableSegment, node *infotree.SegmentInfo, level int) error {
	countA, checksumA, err := a.CountAndChecksum(ctx)
	if err != nil {
		return fmt.Errorf("differ: count_and_checksum left: %w", err)
	}
	countB, checksumB, err := b.CountAndChecksum(ctx)
	if err != nil {
		return fmt.Errorf("differ: count_and_checksum right: %w", err)
	}

	if checksumA == checksumB {
		node.SetPruned(infotree.RowCounts{Left: countA, Right: countB})
		return nil
	}

	maxRows := maxInt64(countA, countB)
	maxSpace := maxInt64(a.ApproximateSize(), b.ApproximateSize())

	factor := e.cfg.BisectionFactor
	if e.cfg.AutoBisectionFactor {
		factor = autoFactor(maxRows, e.cfg.SegmentRows)
	}

	isLeaf := e.cfg.BisectionDisabled || maxRows < int64(e.cfg.BisectionThreshold) || maxSpace < int64(2*factor)
	if isLeaf {
		return e.diffLeaf(ctx, y, a, b, node, countA, countB)
	}

	return e.splitAndRecurse(ctx, y, a, b, node, level, factor)
}

func (e *Engine) diffLeaf(ctx context.Context, y *yielder.Yielder, a, b segment.TableSegment, node *infotree.SegmentInfo, countA, countB int64) error {
	rowsA, err := a.GetValues(ctx)
	if err != nil {
		return fmt.Errorf("differ: get_values left: %w", err)
	}
	rowsB, err := b.GetValues(ctx)
	if err != nil {
		return fmt.Errorf("differ: get_values right: %w", err)
	}

	opts := leafdiff.Options{
		KeyColumns:      a.KeyColumns(),
		RelevantColumns: a.RelevantColumns(),
		IgnoredLeft:     a.IgnoredColumns(),
		IgnoredRight:    b.IgnoredColumns(),
		JSONColumns:     e.cfg.JSONColumns,
	}
	diffs := leafdiff.Run(rowsA, rowsB, opts, func(col string) {
		e.log.Warnf("leaf diff: suppressed JSON-equivalent difference in column %q", col)
	})

	node.SetLeafResult(infotree.RowCounts{Left: countA, Right: countB}, toInfoDiffs(diffs))
	for _, d := range diffs {
		y.Submit(func(y *yielder.Yielder) ([]any, error) {
			return []any{d}, nil
		}, -1)
	}
	return nil
}

func toInfoDiffs(diffs []leafdiff.Diff) []infotree.DiffRow {
	out := make([]infotree.DiffRow, len(diffs))
	for i, d := range diffs {
		out[i] = infotree.DiffRow{Key: d.Key, Side: d.Side, Row: d.Row}
	}
	return out
}

func (e *Engine) splitAndRecurse(ctx context.Context, y *yielder.Yielder, a, b segment.TableSegment, node *infotree.SegmentInfo, level, factor int) error {
	larger := a
	if b.ApproximateSize() > a.ApproximateSize() {
		larger = b
	}
	checkpoints, err := larger.ChooseCheckpoints(ctx, factor-1)
	if err != nil {
		return fmt.Errorf("differ: choose_checkpoints: %w", err)
	}

	aSegments, err := a.SegmentByCheckpoints(checkpoints)
	if err != nil {
		return fmt.Errorf("differ: segment_by_checkpoints left: %w", err)
	}
	bSegments, err := b.SegmentByCheckpoints(checkpoints)
	if err != nil {
		return fmt.Errorf("differ: segment_by_checkpoints right: %w", err)
	}
	if len(aSegments) != len(bSegments) {
		return fmt.Errorf("differ: split produced mismatched segment counts: %d vs %d", len(aSegments), len(bSegments))
	}

	for i := range aSegments {
		r, _ := aSegments[i].KeyRange()
		child := node.AddNode(r, maxInt64(aSegments[i].ApproximateSize(), bSegments[i].ApproximateSize()))
		y.Submit(e.bisectTask(ctx, aSegments[i], bSegments[i], child, level+1), level)
	}
	return nil
}

// autoFactor derives the bisection factor from the segment's row count
// (spec.md §4.3 "F = max(2, round(rows/segment_rows))... tie-break: when
// rows/segment_rows ∈ (0, 2), F = 2").
func autoFactor(rows int64, segmentRows int) int {
	if segmentRows <= 0 {
		return 2
	}
	ratio := float64(rows) / float64(segmentRows)
	if ratio > 0 && ratio < 2 {
		return 2
	}
	f := int(ratio + 0.5)
	if f < 2 {
		f = 2
	}
	return f
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// deriveStats computes spec.md §6's post-run statistics by consuming the
// InfoTree's recorded diffs once: a key with both '-' and '+' rows is
// updated, otherwise it's exclusive to whichever side emitted it.
func deriveStats(tree *infotree.InfoTree) *Stats {
	stats := &Stats{
		RowsA: tree.Root.RowCounts.Left,
		RowsB: tree.Root.RowCounts.Right,
	}

	bySide := make(map[string][2]bool) // [sawMinus, sawPlus]
	for _, d := range tree.AllDiffs() {
		ks := d.Key.String()
		v := bySide[ks]
		if d.Side == '-' {
			v[0] = true
		} else {
			v[1] = true
		}
		bySide[ks] = v
	}

	var exclusiveA, exclusiveB, updated int64
	for _, v := range bySide {
		switch {
		case v[0] && v[1]:
			updated++
		case v[0]:
			exclusiveA++
		case v[1]:
			exclusiveB++
		}
	}

	stats.ExclusiveA = exclusiveA
	stats.ExclusiveB = exclusiveB
	stats.Updated = updated
	stats.Unchanged = stats.RowsA - exclusiveA - updated
	denom := stats.RowsA
	if stats.RowsB > denom {
		denom = stats.RowsB
	}
	if denom > 0 {
		stats.DiffPercent = 1 - float64(stats.Unchanged)/float64(denom)
	}
	return stats
}
