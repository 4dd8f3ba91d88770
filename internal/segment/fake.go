package segment

import (
	"context"
	"sort"

	"github.com/GannettDigital/tablediff/internal/keyspace"
)

// FakeSegment is an in-memory TableSegment used by algorithm tests
// (bisection engine, leaf diff, mesh) so they exercise the real recursion
// and comparison logic without a database.
type FakeSegment struct {
	identity    string
	keyColumns  []string
	relColumns  []string
	ignored     map[string]struct{}
	rows        []Row // full table content, unfiltered by KeyRange
	keyRange    keyspace.Range
	hasRange    bool
}

// NewFakeSegment builds a FakeSegment over the given rows. keyColumns must
// be a prefix of relColumns's positions matching column names; rows are
// aligned with relColumns.
func NewFakeSegment(identity string, keyColumns, relColumns []string, rows []Row) *FakeSegment {
	return &FakeSegment{
		identity:   identity,
		keyColumns: keyColumns,
		relColumns: relColumns,
		rows:       rows,
	}
}

func (f *FakeSegment) Identity() string          { return f.identity }
func (f *FakeSegment) KeyColumns() []string       { return f.keyColumns }
func (f *FakeSegment) RelevantColumns() []string  { return f.relColumns }

func (f *FakeSegment) KeyRange() (keyspace.Range, bool) {
	return f.keyRange, f.hasRange
}

func (f *FakeSegment) keyOf(row Row) keyspace.Key {
	k := make(keyspace.Key, len(f.keyColumns))
	for i, col := range f.keyColumns {
		k[i] = row[f.colIndex(col)]
	}
	return k
}

func (f *FakeSegment) colIndex(name string) int {
	for i, c := range f.relColumns {
		if c == name {
			return i
		}
	}
	panic("segment: unknown column " + name)
}

func (f *FakeSegment) inRange(row Row) bool {
	if !f.hasRange {
		return true
	}
	return f.keyRange.Contains(f.keyOf(row))
}

func (f *FakeSegment) matchingRows() []Row {
	var out []Row
	for _, r := range f.rows {
		if f.inRange(r) {
			out = append(out, r)
		}
	}
	return out
}

func (f *FakeSegment) QueryKeyRange(ctx context.Context) (keyspace.Range, error) {
	rows := f.matchingRows()
	if len(rows) == 0 {
		return keyspace.Range{}, nil
	}
	n := len(f.keyColumns)
	min := make(keyspace.Key, n)
	max := make(keyspace.Key, n)
	copy(min, f.keyOf(rows[0]))
	copy(max, f.keyOf(rows[0]))

	// Component-wise min/max across all matching rows.
	for i := 0; i < n; i++ {
		for _, r := range rows {
			v := f.keyOf(r)[i]
			if lessComponent(v, min[i]) {
				min[i] = v
			}
			if lessComponent(max[i], v) {
				max[i] = v
			}
		}
	}
	maxExclusive := make(keyspace.Key, n)
	copy(maxExclusive, max)
	succ := keyspace.Key(maxExclusive).Successor()
	return keyspace.NewRange(min, succ), nil
}

// lessComponent compares two key components of the same concrete type.
// Mirrors keyspace's internal component ordering for the subset of types
// FakeSegment exercises in tests.
func lessComponent(a, b any) bool {
	switch av := a.(type) {
	case int64:
		return av < b.(int64)
	case float64:
		return av < b.(float64)
	case string:
		return av < b.(string)
	default:
		return keyspace.Key{a}.Less(keyspace.Key{b})
	}
}

func (f *FakeSegment) Count(ctx context.Context) (int64, error) {
	return int64(len(f.matchingRows())), nil
}

func (f *FakeSegment) CountAndChecksum(ctx context.Context) (int64, uint64, error) {
	rows := f.matchingRows()
	var checksum uint64
	for _, r := range rows {
		checksum ^= checksumRow(r, f.ignored, f.relColumns)
	}
	return int64(len(rows)), checksum, nil
}

func (f *FakeSegment) GetValues(ctx context.Context) ([]Row, error) {
	return f.matchingRows(), nil
}

func (f *FakeSegment) ChooseCheckpoints(ctx context.Context, n int) ([]keyspace.Key, error) {
	rows := f.matchingRows()
	if len(rows) == 0 || n <= 0 {
		return nil, nil
	}
	keys := make([]keyspace.Key, len(rows))
	for i, r := range rows {
		keys[i] = f.keyOf(r)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	var checkpoints []keyspace.Key
	seen := map[string]bool{}
	step := len(keys) / (n + 1)
	if step == 0 {
		step = 1
	}
	for i := step; i < len(keys) && len(checkpoints) < n; i += step {
		k := keys[i]
		if !seen[k.String()] {
			checkpoints = append(checkpoints, k)
			seen[k.String()] = true
		}
	}
	return checkpoints, nil
}

func (f *FakeSegment) SegmentByCheckpoints(checkpoints []keyspace.Key) ([]TableSegment, error) {
	r, _ := f.KeyRange()
	bounds := append([]keyspace.Key{r.Min}, checkpoints...)
	bounds = append(bounds, r.Max)

	segments := make([]TableSegment, 0, len(bounds)-1)
	for i := 0; i < len(bounds)-1; i++ {
		segments = append(segments, f.NewKeyBounds(keyspace.NewRange(bounds[i], bounds[i+1])))
	}
	return segments, nil
}

func (f *FakeSegment) NewKeyBounds(r keyspace.Range) TableSegment {
	clone := *f
	clone.keyRange = r
	clone.hasRange = true
	return &clone
}

func (f *FakeSegment) WithIgnoredColumns(ignored map[string]struct{}) TableSegment {
	clone := *f
	clone.ignored = ignored
	return &clone
}

func (f *FakeSegment) IgnoredColumns() map[string]struct{} {
	return f.ignored
}

func (f *FakeSegment) ApproximateSize() int64 {
	r, ok := f.KeyRange()
	if !ok {
		return int64(len(f.rows))
	}
	// Cheap estimate: count of rows physically within range, no query.
	var n int64
	for _, row := range f.rows {
		if r.Contains(f.keyOf(row)) {
			n++
		}
	}
	return n
}
