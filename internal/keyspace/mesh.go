package keyspace

import "sort"

// dimInterval is one of the three half-open sub-intervals a dimension is
// split into by its four sorted boundary values.
type dimInterval struct {
	lo, hi any
}

// BuildMesh constructs the union-cover mesh for two observed key ranges
// (spec.md §4.2). primary is the range whose table returned its min/max
// query first and is already planned as the top-level diff box; secondary
// is the other side's range. BuildMesh returns the extra boxes — at most
// 3^n - 1 of them, where n is the number of key dimensions — that together
// with primary cover every key lying in either range. Boxes entirely
// contained in primary, and empty boxes, are dropped.
func BuildMesh(primary, secondary Range) []Range {
	n := len(primary.Min)
	if n == 0 {
		return nil
	}

	intervals := make([][]dimInterval, n)
	for i := 0; i < n; i++ {
		intervals[i] = splitDimension(primary.Min[i], secondary.Min[i], primary.Max[i], secondary.Max[i])
	}

	var extra []Range
	combo := make([]dimInterval, n)
	var walk func(dim int)
	walk = func(dim int) {
		if dim == n {
			min := make(Key, n)
			max := make(Key, n)
			for i, iv := range combo {
				min[i] = iv.lo
				max[i] = iv.hi
			}
			box := Range{Min: min, Max: max}
			if box.Empty() {
				return
			}
			if primary.ContainsRange(box) {
				return
			}
			extra = append(extra, box)
			return
		}
		for _, iv := range intervals[dim] {
			combo[dim] = iv
			walk(dim + 1)
		}
	}
	walk(0)

	return extra
}

// splitDimension sorts the four boundary values for one key dimension and
// returns the three consecutive half-open intervals they form.
// Duplicate boundary values collapse an interval to empty width; such
// intervals are still returned (Range.Empty will drop the resulting box).
func splitDimension(a, b, c, d any) []dimInterval {
	bounds := []any{a, b, c, d}
	sort.Slice(bounds, func(i, j int) bool {
		return compareComponent(bounds[i], bounds[j]) < 0
	})

	return []dimInterval{
		{lo: bounds[0], hi: bounds[1]},
		{lo: bounds[1], hi: bounds[2]},
		{lo: bounds[2], hi: bounds[3]},
	}
}
