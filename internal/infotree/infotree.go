// Package infotree records every bisection decision the differ makes into a
// rooted tree and aggregates per-segment counts and diff flags bottom-up
// once a run completes (spec.md §3 SegmentInfo/InfoTree, §4.7).
package infotree

import (
	"sync"

	"github.com/GannettDigital/tablediff/internal/keyspace"
	"github.com/GannettDigital/tablediff/internal/segment"
)

// RowCounts holds the two sides' row counts for a segment.
type RowCounts struct {
	Left  int64
	Right int64
}

// DiffRow is one emitted row-level difference, grouped by key the way the
// leaf differ produces it: a key's '-' rows precede its '+' rows.
type DiffRow struct {
	Key  keyspace.Key
	Side byte // '-' (exclusive to left) or '+' (exclusive to right)
	Row  segment.Row
}

// SegmentInfo is the per-node record of one bisection decision. Fields set
// at leaf comparison time or inherited from children by Aggregate;
// immutable once aggregation has visited the node (spec.md §3 SegmentInfo).
type SegmentInfo struct {
	KeyRange  keyspace.Range
	MaxRows   int64
	RowCounts RowCounts
	Diffs     []DiffRow
	DiffCount int64
	IsDiff    bool

	mu        sync.Mutex
	children  []*SegmentInfo
	processed bool
}

// InfoTree is a mutable rooted tree of SegmentInfo. The root is created
// empty; AddNode appends children under a parent, guarded by that parent's
// lock so concurrent appends to distinct parents never contend and
// concurrent appends to one parent never race (spec.md §5).
type InfoTree struct {
	Root *SegmentInfo
}

// New creates an InfoTree whose root spans the given key range.
func New(root keyspace.Range) *InfoTree {
	return &InfoTree{Root: &SegmentInfo{KeyRange: root}}
}

// AddNode appends a new child under parent, carrying the segment's key range
// and the max_rows upper bound known when the bisection task for this
// segment was created. Returns the new node so the caller can record its leaf diff (or
// further split it) once the child's own comparison resolves.
func (parent *SegmentInfo) AddNode(r keyspace.Range, maxRows int64) *SegmentInfo {
	child := &SegmentInfo{KeyRange: r, MaxRows: maxRows}

	parent.mu.Lock()
	defer parent.mu.Unlock()
	parent.children = append(parent.children, child)
	return child
}

// SetLeafResult records a leaf node's own comparison outcome: the row
// counts observed on each side and the diff rows the set-diff produced.
// Called at most once per leaf, before any concurrent reader can observe
// the node (the parent inserts children before submitting their tasks,
// spec.md §5), so no lock is needed here.
func (s *SegmentInfo) SetLeafResult(counts RowCounts, diffs []DiffRow) {
	s.RowCounts = counts
	s.Diffs = diffs
	s.DiffCount = int64(len(diffs))
	s.IsDiff = len(diffs) > 0
}

// SetPruned marks a node whose checksums matched: no diff, counts recorded
// for stats but nothing further to aggregate from below.
func (s *SegmentInfo) SetPruned(counts RowCounts) {
	s.RowCounts = counts
}

// Aggregate recomputes diff_count, is_diff, and rowcounts for s from its
// children, traversing children before parents. Idempotent: a second call
// on an already-processed node is a no-op (spec.md §4.7 "processed flag
// prevents double aggregation"). Must run only after every task touching
// this subtree has finished (spec.md §5).
func (s *SegmentInfo) Aggregate() {
	if s.processed {
		return
	}
	if len(s.children) == 0 {
		// Leaf: counts/diffs were already set by SetLeafResult/SetPruned.
		s.processed = true
		return
	}

	var left, right, diffCount int64
	var isDiff bool
	var diffs []DiffRow
	for _, child := range s.children {
		child.Aggregate()
		left += child.RowCounts.Left
		right += child.RowCounts.Right
		diffCount += child.DiffCount
		isDiff = isDiff || child.IsDiff
		diffs = append(diffs, child.Diffs...)
	}

	s.RowCounts = RowCounts{Left: left, Right: right}
	s.DiffCount = diffCount
	s.IsDiff = isDiff
	s.Diffs = diffs
	s.processed = true
}

// Aggregate runs aggregation from the tree's root. Call exactly once, after
// every submitted task has completed (spec.md §5).
func (t *InfoTree) Aggregate() {
	t.Root.Aggregate()
}

// AllDiffs returns every diff row recorded anywhere in the tree, in the
// order Aggregate concatenated them (child order, depth-first). Valid only
// after Aggregate has run.
func (t *InfoTree) AllDiffs() []DiffRow {
	return t.Root.Diffs
}
