// Package leafdiff implements the set-diff of downloaded rows at a
// bisection leaf (spec.md §4.5): group both sides by key, emit '-'/'+'
// pairs for any key whose rows disagree or duplicate, then suppress groups
// whose only disagreement is JSON serialization noise.
package leafdiff

import (
	"sort"

	"github.com/elliotchance/orderedmap/v2"

	"github.com/GannettDigital/tablediff/internal/keyspace"
	"github.com/GannettDigital/tablediff/internal/segment"
)

// Diff is one emitted row-level difference. A given key's '-' rows always
// precede its '+' rows in Run's output, and all rows for a key are
// contiguous (spec.md §5 ordering guarantees).
type Diff struct {
	Key  keyspace.Key
	Side byte // '-' = exclusive to left, '+' = exclusive to right
	Row  segment.Row
}

// JSONColumn names a relevant-column position holding JSON text, checked
// for semantic equivalence rather than byte equality before a difference is
// surfaced (spec.md §4.5 "JSON post-filter").
type JSONColumn struct {
	Index int
	Name  string
}

// Options configures one leaf comparison.
type Options struct {
	KeyColumns      []string
	RelevantColumns []string
	IgnoredLeft     map[string]struct{}
	IgnoredRight    map[string]struct{}
	JSONColumns     []JSONColumn
}

// WarnFunc receives one "suppressed a JSON-only difference" notice per
// affected column, emitted at most once per column per Run call (spec.md
// §4.5 "log each affected column once").
type WarnFunc func(column string)

// Run computes the set-diff between rowsLeft and rowsRight, keyed by
// KeyColumns. warn, if non-nil, is called at most once per JSON column that
// had at least one difference suppressed as equivalent.
func Run(rowsLeft, rowsRight []segment.Row, opts Options, warn WarnFunc) []Diff {
	keyIndex := make(map[string]int, len(opts.KeyColumns))
	for _, kc := range opts.KeyColumns {
		for i, rc := range opts.RelevantColumns {
			if rc == kc {
				keyIndex[kc] = i
			}
		}
	}

	groups := unionGroupsSorted(rowsLeft, rowsRight, opts.KeyColumns, keyIndex)

	warned := make(map[string]bool)
	var out []Diff

	for _, g := range groups {
		k := g.key
		leftRows := g.left
		rightRows := g.right

		group := compareGroup(k, leftRows, rightRows, opts)
		if len(group) == 0 {
			continue
		}

		if suppressed := suppressIfJSONEquivalent(leftRows, rightRows, opts); suppressed {
			for _, jc := range opts.JSONColumns {
				if !columnDiffers(leftRows, rightRows, jc.Index) {
					continue
				}
				if !warned[jc.Name] {
					warned[jc.Name] = true
					if warn != nil {
						warn(jc.Name)
					}
				}
			}
			continue
		}

		out = append(out, group...)
	}

	return out
}

// compareGroup decides whether key k's rows differ (spec.md §4.5 step 2):
// duplicates on either side, or a single row pair whose cut values (ignored
// columns removed per side) don't match, both surface every row on both
// sides for that key.
func compareGroup(k keyspace.Key, leftRows, rightRows []segment.Row, opts Options) []Diff {
	equal := len(leftRows) == 1 && len(rightRows) == 1 &&
		rowsEqual(cutRow(leftRows[0], opts.RelevantColumns, opts.IgnoredLeft),
			cutRow(rightRows[0], opts.RelevantColumns, opts.IgnoredRight))
	if equal {
		return nil
	}

	var group []Diff
	for _, r := range leftRows {
		group = append(group, Diff{Key: k, Side: '-', Row: r})
	}
	for _, r := range rightRows {
		group = append(group, Diff{Key: k, Side: '+', Row: r})
	}
	return group
}

// cutRow returns row with any ignored column's value removed from
// comparison, keeping the remaining values' relative column order.
func cutRow(row segment.Row, columns []string, ignored map[string]struct{}) segment.Row {
	if len(ignored) == 0 {
		return row
	}
	cut := make(segment.Row, 0, len(row))
	for i, col := range columns {
		if _, skip := ignored[col]; skip {
			continue
		}
		cut = append(cut, row[i])
	}
	return cut
}

func rowsEqual(a, b segment.Row) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// keyedGroup pairs a key with each side's rows for that key.
type keyedGroup struct {
	key   keyspace.Key
	left  []segment.Row
	right []segment.Row
}

// unionGroupsSorted buckets both sides' rows by compound key into a single
// insertion-ordered map (elliotchance/orderedmap/v2 — an ordinary map's
// random iteration order would make the pre-sort grouping step
// non-reproducible run to run), then returns the groups sorted by key
// (spec.md §4.5 step 2 "iterated in sorted order").
func unionGroupsSorted(rowsLeft, rowsRight []segment.Row, keyColumns []string, keyIndex map[string]int) []keyedGroup {
	om := orderedmap.NewOrderedMap[string, *keyedGroup]()

	bucket := func(rows []segment.Row, assign func(g *keyedGroup, row segment.Row)) {
		for _, row := range rows {
			k := make(keyspace.Key, len(keyColumns))
			for i, kc := range keyColumns {
				k[i] = row[keyIndex[kc]]
			}
			ks := k.String()
			g, ok := om.Get(ks)
			if !ok {
				g = &keyedGroup{key: k}
				om.Set(ks, g)
			}
			assign(g, row)
		}
	}
	bucket(rowsLeft, func(g *keyedGroup, row segment.Row) { g.left = append(g.left, row) })
	bucket(rowsRight, func(g *keyedGroup, row segment.Row) { g.right = append(g.right, row) })

	groups := make([]keyedGroup, 0, om.Len())
	for el := om.Front(); el != nil; el = el.Next() {
		groups = append(groups, *el.Value)
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].key.Less(groups[j].key) })
	return groups
}

func suppressIfJSONEquivalent(leftRows, rightRows []segment.Row, opts Options) bool {
	if len(opts.JSONColumns) == 0 {
		return false
	}
	if len(leftRows) != 1 || len(rightRows) != 1 {
		return false // duplicate-key groups are never suppressed
	}

	l, r := leftRows[0], rightRows[0]
	nonJSONEqual := true
	for i := range opts.RelevantColumns {
		if isJSONColumn(i, opts.JSONColumns) {
			continue
		}
		if l[i] != r[i] {
			nonJSONEqual = false
			break
		}
	}
	if !nonJSONEqual {
		return false
	}

	for _, jc := range opts.JSONColumns {
		if columnDiffers(leftRows, rightRows, jc.Index) {
			if !jsonEquivalent(l[jc.Index], r[jc.Index]) {
				return false
			}
		}
	}
	return true
}

func isJSONColumn(index int, jsonColumns []JSONColumn) bool {
	for _, jc := range jsonColumns {
		if jc.Index == index {
			return true
		}
	}
	return false
}

func columnDiffers(leftRows, rightRows []segment.Row, index int) bool {
	if len(leftRows) != 1 || len(rightRows) != 1 {
		return false
	}
	return leftRows[0][index] != rightRows[0][index]
}
